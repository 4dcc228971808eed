package ledger

import (
	"fmt"
	"math/big"

	"github.com/L3pereira/ipfs-eth-console/pkg/core"
	"github.com/fxamacker/cbor/v2"
)

// Slot values are stored as plain CBOR with no type annotations. Reading
// them back yields whatever CBOR types were written, so queries hand out
// tokens whose shape callers must classify themselves.

var (
	slotEnc cbor.EncMode
	slotDec cbor.DecMode
)

func init() {
	var err error
	opts := cbor.CoreDetEncOptions()
	opts.BigIntConvert = cbor.BigIntConvertShortest
	if slotEnc, err = opts.EncMode(); err != nil {
		panic(err)
	}
	if slotDec, err = (cbor.DecOptions{
		BigIntDec:       cbor.BigIntDecodePointer,
		MaxNestedLevels: 4,
	}).DecMode(); err != nil {
		panic(err)
	}
}

func encodeToken(tok core.Token) ([]byte, error) {
	v, err := tokenValue(tok)
	if err != nil {
		return nil, err
	}
	return slotEnc.Marshal(v)
}

func decodeToken(b []byte) (core.Token, error) {
	var v any
	if err := slotDec.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("%w: slot value: %v", core.ErrCorrupt, err)
	}
	return valueToken(v)
}

func tokenValue(tok core.Token) (any, error) {
	switch t := tok.(type) {
	case core.FixedBytes:
		return []byte(t), nil
	case core.Uint:
		if t.Int == nil || t.Sign() < 0 {
			return nil, fmt.Errorf("%w: uint must be non-negative", core.ErrInvalidInput)
		}
		if t.IsUint64() {
			return t.Uint64(), nil
		}
		return t.Int, nil
	case core.String:
		return string(t), nil
	case core.Tuple:
		out := make([]any, len(t))
		for i, el := range t {
			v, err := tokenValue(el)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported token %T", core.ErrInvalidInput, tok)
	}
}

func valueToken(v any) (core.Token, error) {
	switch t := v.(type) {
	case []byte:
		return core.FixedBytes(t), nil
	case uint64:
		return core.NewUint(t), nil
	case *big.Int:
		return core.Uint{Int: t}, nil
	case big.Int:
		return core.Uint{Int: &t}, nil
	case string:
		return core.String(t), nil
	case []any:
		out := make(core.Tuple, len(t))
		for i, el := range t {
			tok, err := valueToken(el)
			if err != nil {
				return nil, err
			}
			out[i] = tok
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unexpected slot value %T", core.ErrCorrupt, v)
	}
}

// argKind describes one parameter of a contract method.
type argKind struct {
	name  string
	bytes int  // bytesN width, 0 when not a fixed byte array
	uint  int  // uintN width in bits, 0 when not an integer
	str   bool // string
}

func (k argKind) String() string {
	switch {
	case k.bytes > 0:
		return fmt.Sprintf("bytes%d", k.bytes)
	case k.uint > 0:
		return fmt.Sprintf("uint%d", k.uint)
	default:
		return "string"
	}
}

func (k argKind) check(tok core.Token) error {
	switch t := tok.(type) {
	case core.FixedBytes:
		if k.bytes > 0 && len(t) == k.bytes {
			return nil
		}
	case core.Uint:
		if k.uint > 0 && t.Int != nil && t.Sign() >= 0 && t.BitLen() <= k.uint {
			return nil
		}
	case core.String:
		if k.str {
			return nil
		}
	}
	return fmt.Errorf("%w: %s must be %s, got %v", core.ErrInvalidInput, k.name, k, tok)
}

func checkArgs(kinds []argKind, args core.Tuple) error {
	if len(args) != len(kinds) {
		return fmt.Errorf("%w: got %d arguments, want %d", core.ErrInvalidInput, len(args), len(kinds))
	}
	for i, k := range kinds {
		if err := k.check(args[i]); err != nil {
			return err
		}
	}
	return nil
}

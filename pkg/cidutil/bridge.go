package cidutil

import (
	"fmt"

	"github.com/L3pereira/ipfs-eth-console/pkg/core"
	"github.com/mr-tron/base58"
	"github.com/multiformats/go-multihash"
)

// Bridge converts between base-58 content identifiers and the fixed-width
// fields the ledger stores.
//
// The on-chain layout reserves one byte for the multihash function code and
// exactly 32 bytes for the digest. Only codes whose varint form is a single
// byte (0-127) and 32-byte digests round-trip. Supporting wider codes such as
// the sha3 or blake2 families changes the stored schema; it is not a fix to
// this package.
type Bridge interface {
	// Decode splits a content identifier into its multihash fields.
	Decode(id core.ContentID) (core.MultihashFields, error)
	// Encode renders fields as a content identifier. It never fails.
	Encode(f core.MultihashFields) core.ContentID

	// FieldsFromLedger classifies the three values of a ledger tuple by type
	// and length, in any order.
	FieldsFromLedger(tok core.Token) (core.MultihashFields, error)
	// FromLedgerFields rebuilds a content identifier from a ledger tuple.
	FromLedgerFields(tok core.Token) (core.ContentID, error)
	// ToLedgerFields returns the (digest, code, size) tuple submitted to the ledger.
	ToLedgerFields(f core.MultihashFields) core.Tuple
}

// BridgeOptions tune how ledger tuples are validated.
type BridgeOptions struct {
	// Permissive reads only the low byte of the code field and of the size
	// integer, ignoring anything above it, and skips the code and size range
	// checks. This accepts records written by tools that never validated
	// those bytes.
	Permissive bool
}

type bridge struct {
	opts BridgeOptions
}

// NewBridge returns a Bridge. The zero BridgeOptions value is strict.
func NewBridge(opts BridgeOptions) Bridge {
	return &bridge{opts: opts}
}

func (b *bridge) Decode(id core.ContentID) (core.MultihashFields, error) {
	if id == "" {
		return core.MultihashFields{}, fmt.Errorf("%w: empty identifier", core.ErrMalformedMultihash)
	}

	raw, err := base58.Decode(string(id))
	if err != nil {
		return core.MultihashFields{}, fmt.Errorf("%w: %v", core.ErrInvalidBase58, err)
	}

	dm, err := multihash.Decode(raw)
	if err != nil {
		return core.MultihashFields{}, fmt.Errorf("%w: %v", core.ErrMalformedMultihash, err)
	}

	if dm.Length != core.DigestSize {
		return core.MultihashFields{}, fmt.Errorf("%w: digest is %d bytes, want %d", core.ErrUnsupportedDigestSize, dm.Length, core.DigestSize)
	}
	if dm.Code > core.MaxSingleByteCode {
		return core.MultihashFields{}, fmt.Errorf("%w: 0x%x does not fit a single-byte varint", core.ErrUnsupportedCode, dm.Code)
	}

	f := core.MultihashFields{
		Code: [2]byte{0, byte(dm.Code)},
		Size: uint8(dm.Length),
	}
	copy(f.Digest[:], dm.Digest)
	return f, nil
}

func (b *bridge) Encode(f core.MultihashFields) core.ContentID {
	var buf [2 + core.DigestSize]byte
	buf[0] = f.Code[1]
	buf[1] = f.Size
	copy(buf[2:], f.Digest[:])
	return core.ContentID(base58.Encode(buf[:]))
}

func (b *bridge) FromLedgerFields(tok core.Token) (core.ContentID, error) {
	f, err := b.FieldsFromLedger(tok)
	if err != nil {
		return "", err
	}
	return b.Encode(f), nil
}

func (b *bridge) FieldsFromLedger(tok core.Token) (core.MultihashFields, error) {
	tuple, ok := tok.(core.Tuple)
	if !ok {
		return core.MultihashFields{}, fmt.Errorf("%w: expected a tuple, got %T", core.ErrWrongFieldCount, tok)
	}
	if len(tuple) != 3 {
		return core.MultihashFields{}, fmt.Errorf("%w: got %d values, want digest, code and size", core.ErrWrongFieldCount, len(tuple))
	}

	var (
		f                            core.MultihashFields
		haveDigest, haveCode, haveSz bool
	)
	for i, t := range tuple {
		switch v := t.(type) {
		case core.FixedBytes:
			switch len(v) {
			case core.DigestSize:
				if haveDigest {
					return core.MultihashFields{}, fmt.Errorf("%w: value %d is a second digest", core.ErrWrongFieldCount, i)
				}
				copy(f.Digest[:], v)
				haveDigest = true
			case 2:
				if haveCode {
					return core.MultihashFields{}, fmt.Errorf("%w: value %d is a second code", core.ErrWrongFieldCount, i)
				}
				if v[0] != 0 && !b.opts.Permissive {
					return core.MultihashFields{}, fmt.Errorf("%w: code high byte is 0x%02x", core.ErrUnexpectedFieldShape, v[0])
				}
				f.Code = [2]byte{0, v[1]}
				haveCode = true
			default:
				return core.MultihashFields{}, fmt.Errorf("%w: value %d is %d bytes, want 2 or %d", core.ErrUnexpectedFieldShape, i, len(v), core.DigestSize)
			}
		case core.Uint:
			if haveSz {
				return core.MultihashFields{}, fmt.Errorf("%w: value %d is a second size", core.ErrWrongFieldCount, i)
			}
			if v.Int == nil || v.Sign() < 0 {
				return core.MultihashFields{}, fmt.Errorf("%w: value %d is not an unsigned integer", core.ErrUnexpectedFieldShape, i)
			}
			if !b.opts.Permissive && (!v.IsUint64() || v.Uint64() > 0xff) {
				return core.MultihashFields{}, fmt.Errorf("%w: size %s does not fit one byte", core.ErrUnexpectedFieldShape, v.Int)
			}
			f.Size = v.LowByte()
			haveSz = true
		default:
			return core.MultihashFields{}, fmt.Errorf("%w: value %d has type %T", core.ErrUnexpectedFieldShape, i, t)
		}
	}

	if b.opts.Permissive {
		return f, nil
	}
	if f.Size != core.DigestSize {
		return core.MultihashFields{}, fmt.Errorf("%w: size field is %d, want %d", core.ErrUnsupportedDigestSize, f.Size, core.DigestSize)
	}
	if f.FunctionCode() > core.MaxSingleByteCode {
		return core.MultihashFields{}, fmt.Errorf("%w: 0x%x does not fit a single-byte varint", core.ErrUnsupportedCode, f.FunctionCode())
	}
	return f, nil
}

func (b *bridge) ToLedgerFields(f core.MultihashFields) core.Tuple {
	digest := make(core.FixedBytes, core.DigestSize)
	copy(digest, f.Digest[:])
	return core.Tuple{
		digest,
		core.FixedBytes{f.Code[0], f.Code[1]},
		core.NewUint(uint64(f.Size)),
	}
}

package core

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"
)

// CID represents binary CID bytes.
type CID struct {
	Bytes []byte
}

// String renders the CID in its default multibase form, or the raw bytes in
// hex when they do not parse as a CID.
func (c CID) String() string {
	id, err := cid.Cast(c.Bytes)
	if err != nil {
		return hex.EncodeToString(c.Bytes)
	}
	return id.String()
}

// ContentID is the shareable base-58 text form of a multihash, as handed out
// by the content store and kept on the ledger as a string.
type ContentID string

// DigestSize is the only digest length the on-chain layout can hold.
const DigestSize = 32

// MaxSingleByteCode is the largest function code whose varint encoding is a
// single byte. Codes above it need a wider on-chain code field, which is a
// schema change.
const MaxSingleByteCode = 0x7f

// MultihashFields is the fixed-width decomposition of a ContentID stored by
// the ledger: a 2-byte big-endian function code, a 1-byte digest length and
// a 32-byte digest.
type MultihashFields struct {
	Code   [2]byte
	Size   uint8
	Digest [DigestSize]byte
}

// FunctionCode returns the single-byte multihash function code.
func (f MultihashFields) FunctionCode() uint8 {
	return f.Code[1]
}

func (f MultihashFields) String() string {
	return fmt.Sprintf("code=0x%02x%02x size=%d digest=%x", f.Code[0], f.Code[1], f.Size, f.Digest[:])
}

// Address is a 20-byte account or contract address.
type Address [20]byte

// ParseAddress parses 40 hex digits, optionally prefixed with 0x.
func ParseAddress(s string) (Address, error) {
	var a Address
	h := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(h) != 2*len(a) {
		return Address{}, fmt.Errorf("%w: %q must be %d hex digits", ErrInvalidAddress, s, 2*len(a))
	}
	if _, err := hex.Decode(a[:], []byte(h)); err != nil {
		return Address{}, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
	}
	return a, nil
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(b []byte) error {
	parsed, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// TxHash identifies a ledger transaction.
type TxHash [32]byte

func (h TxHash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

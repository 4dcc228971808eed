package core

import (
	"fmt"
	"math/big"
	"strings"
)

// Token is a dynamically typed value exchanged with the ledger. Queries
// return tokens whose concrete type is only known at runtime.
type Token interface {
	token()
	String() string
}

// FixedBytes is a fixed-size byte sequence (bytesN).
type FixedBytes []byte

// Uint is an unsigned integer of up to 256 bits.
type Uint struct {
	*big.Int
}

// String is a UTF-8 string value.
type String string

// Tuple groups an ordered list of tokens.
type Tuple []Token

func (FixedBytes) token() {}
func (Uint) token()       {}
func (String) token()     {}
func (Tuple) token()      {}

// NewUint wraps v as a Uint token.
func NewUint(v uint64) Uint {
	return Uint{new(big.Int).SetUint64(v)}
}

// LowByte returns the least significant byte of u.
func (u Uint) LowByte() byte {
	if u.Int == nil {
		return 0
	}
	b := u.Int.Bytes()
	if len(b) == 0 {
		return 0
	}
	return b[len(b)-1]
}

func (b FixedBytes) String() string {
	return fmt.Sprintf("bytes%d(0x%x)", len(b), []byte(b))
}

func (u Uint) String() string {
	if u.Int == nil {
		return "uint(0)"
	}
	return "uint(" + u.Int.String() + ")"
}

func (s String) String() string {
	return fmt.Sprintf("string(%q)", string(s))
}

func (t Tuple) String() string {
	parts := make([]string, len(t))
	for i, tok := range t {
		parts[i] = tok.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

package core

import (
	"errors"
)

var (
	ErrNotFound     = errors.New("ipfseth: not found")
	ErrInvalidInput = errors.New("ipfseth: invalid input")
	ErrCorrupt      = errors.New("ipfseth: corrupt data")
	ErrTooLarge     = errors.New("ipfseth: too large")
	ErrClosed       = errors.New("ipfseth: store closed")
)

// Multihash/CID bridge failures.
var (
	ErrInvalidBase58         = errors.New("ipfseth: invalid base58")
	ErrMalformedMultihash    = errors.New("ipfseth: malformed multihash")
	ErrUnsupportedDigestSize = errors.New("ipfseth: unsupported digest size")
	ErrUnsupportedCode       = errors.New("ipfseth: unsupported hash function code")
	ErrUnexpectedFieldShape  = errors.New("ipfseth: unexpected ledger field shape")
	ErrWrongFieldCount       = errors.New("ipfseth: wrong ledger field count")
)

// Ledger and configuration failures.
var (
	ErrInvalidAddress       = errors.New("ipfseth: invalid address")
	ErrUnsupportedTransport = errors.New("ipfseth: unsupported transport")
	ErrUnknownMethod        = errors.New("ipfseth: unknown contract method")
	ErrInsufficientFunds    = errors.New("ipfseth: insufficient funds")
)

package transform

import (
	"fmt"

	"github.com/L3pereira/ipfs-eth-console/pkg/core"
	"github.com/klauspost/compress/zstd"
)

const (
	Magic   = "IECS"
	Version = 1

	headerLen = len(Magic) + 3
)

const (
	FlagCompressed = 1 << 0
)

const (
	AlgNone = 0
	AlgZstd = 1
)

// Transform encodes block payloads before they are written to a pack and
// decodes them on the way back. Every transform decodes every envelope, so
// switching the configured transform keeps old blocks readable.
type Transform interface {
	Name() string
	Encode(plain []byte) ([]byte, error)
	Decode(stored []byte) ([]byte, error)
}

type envelope struct {
	name    string
	encoder *zstd.Encoder // nil for "none"
	decoder *zstd.Decoder
}

// New returns the transform named by cfg: "zstd", or "none"/"".
func New(cfg core.TransformConfig) (Transform, error) {
	switch cfg.Name {
	case "zstd":
		return NewZstd(cfg.ZstdLevel)
	case "none", "":
		return NewNone()
	default:
		return nil, fmt.Errorf("%w: unsupported transform %q", core.ErrInvalidInput, cfg.Name)
	}
}

// NewNone stores payloads uncompressed.
func NewNone() (Transform, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	return &envelope{name: "none", decoder: dec}, nil
}

// NewZstd compresses payloads at the given encoder level (1 fastest, 4 best,
// 0 default).
func NewZstd(level int) (Transform, error) {
	lvl := zstd.EncoderLevel(level)
	if level == 0 {
		lvl = zstd.SpeedDefault
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(lvl))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd writer: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	return &envelope{name: "zstd", encoder: enc, decoder: dec}, nil
}

func (t *envelope) Name() string { return t.name }

func (t *envelope) Encode(plain []byte) ([]byte, error) {
	if t.encoder == nil {
		out := make([]byte, 0, headerLen+len(plain))
		out = append(out, Magic...)
		out = append(out, Version, 0, AlgNone)
		return append(out, plain...), nil
	}

	out := make([]byte, 0, headerLen+len(plain)/2)
	out = append(out, Magic...)
	out = append(out, Version, FlagCompressed, AlgZstd)
	return t.encoder.EncodeAll(plain, out), nil
}

func (t *envelope) Decode(stored []byte) ([]byte, error) {
	if len(stored) < headerLen {
		return nil, fmt.Errorf("%w: block too small for envelope", core.ErrCorrupt)
	}
	if string(stored[:len(Magic)]) != Magic {
		return nil, fmt.Errorf("%w: invalid magic", core.ErrCorrupt)
	}

	version, flags, alg := stored[4], stored[5], stored[6]
	payload := stored[headerLen:]

	if version != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", core.ErrCorrupt, version)
	}
	if flags&FlagCompressed == 0 {
		return payload, nil
	}
	if alg != AlgZstd {
		return nil, fmt.Errorf("%w: unsupported compression algorithm %d", core.ErrCorrupt, alg)
	}

	plain, err := t.decoder.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrCorrupt, err)
	}
	return plain, nil
}

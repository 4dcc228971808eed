package manifest

import (
	"crypto/sha256"
	"fmt"

	"github.com/L3pereira/ipfs-eth-console/pkg/core"
	"github.com/fxamacker/cbor/v2"
)

// ChunkRef references a chunk by its CID and its plaintext length.
type ChunkRef struct {
	CID core.CID `cbor:"cid"`
	Len uint32   `cbor:"len"`
}

// FileV1 describes a stored file. It holds only content-derived fields:
// its hash is the file's identifier, so equal content must encode equally.
type FileV1 struct {
	Version     uint16     `cbor:"version"`
	Length      uint64     `cbor:"length"`
	Chunks      []ChunkRef `cbor:"chunks"`
	WholeSha256 []byte     `cbor:"whole_sha256"`
}

// Codec defines the interface for manifest encoding/decoding and validation.
type Codec interface {
	Encode(m *FileV1) ([]byte, error)
	Decode(b []byte) (*FileV1, error)
}

type codec struct {
	limits  core.LimitsConfig
	encMode cbor.EncMode
	decMode cbor.DecMode
}

// NewCodec returns a new Codec implementation.
func NewCodec(limits core.LimitsConfig) Codec {
	// Core Deterministic Encoding keeps file identifiers stable.
	em, _ := cbor.CoreDetEncOptions().EncMode()
	dm, _ := cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}.DecMode()
	return &codec{
		limits:  limits,
		encMode: em,
		decMode: dm,
	}
}

func (c *codec) Encode(m *FileV1) ([]byte, error) {
	if err := c.validate(m); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidInput, err)
	}

	return c.encMode.Marshal(m)
}

func (c *codec) Decode(b []byte) (*FileV1, error) {
	var m FileV1
	if err := c.decMode.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal manifest: %v", core.ErrCorrupt, err)
	}

	if err := c.validate(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrCorrupt, err)
	}

	return &m, nil
}

func (c *codec) validate(m *FileV1) error {
	if m.Version != 1 {
		return fmt.Errorf("unsupported manifest version %d", m.Version)
	}

	if c.limits.MaxChunksPerFile > 0 && uint32(len(m.Chunks)) > c.limits.MaxChunksPerFile {
		return fmt.Errorf("too many chunks: %d > %d", len(m.Chunks), c.limits.MaxChunksPerFile)
	}
	if c.limits.MaxFileBytes > 0 && m.Length > c.limits.MaxFileBytes {
		return fmt.Errorf("file too large: %d > %d", m.Length, c.limits.MaxFileBytes)
	}

	var sumLength uint64
	for i, chunk := range m.Chunks {
		if len(chunk.CID.Bytes) == 0 {
			return fmt.Errorf("chunk %d has empty CID", i)
		}
		if chunk.Len == 0 {
			return fmt.Errorf("chunk %d is empty", i)
		}
		sumLength += uint64(chunk.Len)
	}

	if sumLength != m.Length {
		return fmt.Errorf("length mismatch: manifest says %d, chunks sum to %d", m.Length, sumLength)
	}

	if len(m.WholeSha256) != sha256.Size {
		return fmt.Errorf("whole-file digest is %d bytes, want %d", len(m.WholeSha256), sha256.Size)
	}

	return nil
}

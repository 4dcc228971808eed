package manifest

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/L3pereira/ipfs-eth-console/pkg/core"
	"github.com/fxamacker/cbor/v2"
)

func testManifest() *FileV1 {
	sum := sha256.Sum256([]byte("whole file"))
	return &FileV1{
		Version: 1,
		Length:  1234,
		Chunks: []ChunkRef{
			{CID: core.CID{Bytes: []byte("cid1")}, Len: 1000},
			{CID: core.CID{Bytes: []byte("cid2")}, Len: 234},
		},
		WholeSha256: sum[:],
	}
}

func TestManifestCodec(t *testing.T) {
	codec := NewCodec(core.LimitsConfig{
		MaxChunksPerFile: 10,
		MaxFileBytes:     1 << 20,
	})

	t.Run("RoundTrip", func(t *testing.T) {
		m := testManifest()
		encoded, err := codec.Encode(m)
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}

		decoded, err := codec.Decode(encoded)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if decoded.Length != m.Length || len(decoded.Chunks) != len(m.Chunks) {
			t.Fatalf("decoded manifest doesn't match original: %+v", decoded)
		}
		if !bytes.Equal(decoded.Chunks[1].CID.Bytes, m.Chunks[1].CID.Bytes) {
			t.Error("chunk CID lost in roundtrip")
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		a, _ := codec.Encode(testManifest())
		b, _ := codec.Encode(testManifest())
		if !bytes.Equal(a, b) {
			t.Error("equal manifests encoded differently")
		}
	})

	invalid := map[string]func(m *FileV1){
		"Version":        func(m *FileV1) { m.Version = 2 },
		"LengthMismatch": func(m *FileV1) { m.Length = 1 },
		"EmptyChunkCID":  func(m *FileV1) { m.Chunks[0].CID = core.CID{} },
		"EmptyChunk":     func(m *FileV1) { m.Chunks[1].Len = 0; m.Length = 1000 },
		"ShortDigest":    func(m *FileV1) { m.WholeSha256 = m.WholeSha256[:8] },
		"TooManyChunks": func(m *FileV1) {
			m.Chunks = nil
			m.Length = 0
			for i := 0; i < 11; i++ {
				m.Chunks = append(m.Chunks, ChunkRef{CID: core.CID{Bytes: []byte{byte(i)}}, Len: 1})
				m.Length++
			}
		},
		"TooLarge": func(m *FileV1) {
			m.Chunks = []ChunkRef{{CID: core.CID{Bytes: []byte("c")}, Len: 2 << 20}}
			m.Length = 2 << 20
		},
	}
	for name, mutate := range invalid {
		t.Run("Encode"+name, func(t *testing.T) {
			m := testManifest()
			mutate(m)
			if _, err := codec.Encode(m); !errors.Is(err, core.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
		t.Run("Decode"+name, func(t *testing.T) {
			m := testManifest()
			mutate(m)
			raw, err := cbor.Marshal(m)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := codec.Decode(raw); !errors.Is(err, core.ErrCorrupt) {
				t.Errorf("expected ErrCorrupt, got %v", err)
			}
		})
	}

	t.Run("Garbage", func(t *testing.T) {
		if _, err := codec.Decode([]byte("not cbor")); !errors.Is(err, core.ErrCorrupt) {
			t.Errorf("expected ErrCorrupt, got %v", err)
		}
	})
}

func FuzzManifestDecode(f *testing.F) {
	codec := NewCodec(core.LimitsConfig{MaxChunksPerFile: 1000})
	valid, _ := codec.Encode(testManifest())
	f.Add(valid)
	f.Add([]byte{0xa0})
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, in []byte) {
		m, err := codec.Decode(in)
		if err != nil {
			return
		}
		if _, err := codec.Encode(m); err != nil {
			t.Fatalf("decoded manifest fails to re-encode: %v", err)
		}
	})
}

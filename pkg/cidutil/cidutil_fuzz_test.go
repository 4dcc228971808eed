package cidutil

import (
	"crypto/sha256"
	"testing"

	"github.com/L3pereira/ipfs-eth-console/pkg/core"
)

// FuzzFileID checks that every file identifier fits the ledger layout.
func FuzzFileID(f *testing.F) {
	builder := NewBuilder()
	bridge := NewBridge(BridgeOptions{})

	f.Add([]byte{})
	f.Add([]byte{0xa1, 0x61, 'v', 0x01})
	f.Add([]byte("not cbor at all"))

	f.Fuzz(func(t *testing.T, manifest []byte) {
		id, err := builder.FileID(manifest)
		if err != nil {
			t.Fatalf("FileID failed: %v", err)
		}
		fields, err := bridge.Decode(id)
		if err != nil {
			t.Fatalf("bridge rejected %s: %v", id, err)
		}
		if fields.Digest != sha256.Sum256(manifest) {
			t.Fatalf("digest of %s is not sha2-256 of the manifest", id)
		}
		if got := bridge.Encode(fields); got != id {
			t.Fatalf("round trip changed %s to %s", id, got)
		}
	})
}

func FuzzCIDVerify(f *testing.F) {
	builder := NewBuilder()

	payload := []byte("ledger payload")
	chunk, _ := builder.ChunkCID(payload)
	f.Add(chunk.Bytes, payload)

	// CIDv0 bytes are a bare multihash.
	v0 := append([]byte{0x12, 0x20}, make([]byte, 32)...)
	f.Add(v0, payload)
	f.Add(v0[:10], payload)
	f.Add([]byte{}, payload)

	f.Fuzz(func(t *testing.T, cidBytes []byte, plain []byte) {
		_ = builder.Verify(core.CID{Bytes: cidBytes}, plain)
	})
}

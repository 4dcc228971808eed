package testkit

import (
	"math/rand"
	"time"
)

// RNG returns a seeded source. Seed 0 picks one from the clock.
func RNG(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// RandomBytes returns n incompressible bytes drawn from r.
func RandomBytes(r *rand.Rand, n int) []byte {
	b := make([]byte, n)
	_, _ = r.Read(b)
	return b
}

// CompressibleBytes returns n bytes of repeated text with a little noise.
func CompressibleBytes(r *rand.Rand, n int) []byte {
	const text = "ipfs identifier recorded on the ledger "
	b := make([]byte, n)
	for i := range b {
		b[i] = text[i%len(text)]
	}
	for i := 0; i < n/1024; i++ {
		b[r.Intn(n)] = byte(r.Intn(256))
	}
	return b
}

// Revise returns a copy of base with edits random single-byte overwrites
// and insertions, the way a small revision of a document looks on disk.
func Revise(r *rand.Rand, base []byte, edits int) []byte {
	out := append([]byte(nil), base...)
	for i := 0; i < edits; i++ {
		at := r.Intn(len(out) + 1)
		if at < len(out) && r.Intn(2) == 0 {
			out[at] ^= byte(1 + r.Intn(255))
			continue
		}
		out = append(out[:at], append([]byte{byte(r.Intn(256))}, out[at:]...)...)
	}
	return out
}

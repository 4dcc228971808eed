package cidutil

import (
	"testing"
)

func BenchmarkBridge(b *testing.B) {
	br := NewBridge(BridgeOptions{})
	tuple := br.ToLedgerFields(vectorFields)

	b.Run("Decode", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_, _ = br.Decode(vectorCID)
		}
	})

	b.Run("Encode", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_ = br.Encode(vectorFields)
		}
	})

	b.Run("FromLedgerFields", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_, _ = br.FromLedgerFields(tuple)
		}
	})
}

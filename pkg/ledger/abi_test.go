package ledger

import (
	"errors"
	"math/big"
	"testing"

	"github.com/L3pereira/ipfs-eth-console/pkg/core"
)

func TestSlotCodec(t *testing.T) {
	huge, _ := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)

	tests := []struct {
		name string
		tok  core.Token
	}{
		{"String", core.String("QmTJd6JnxTGrLgJqLfnhMHXaytrSaBHvos4ECeVTvqwHdi")},
		{"EmptyString", core.String("")},
		{"Bytes", core.FixedBytes{0x00, 0x12}},
		{"SmallUint", core.NewUint(32)},
		{"Uint256Max", core.Uint{Int: huge}},
		{"Tuple", structArgs()},
		{"NestedTuple", core.Tuple{core.Tuple{core.String("a")}, core.NewUint(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := encodeToken(tt.tok)
			if err != nil {
				t.Fatalf("encodeToken failed: %v", err)
			}
			got, err := decodeToken(raw)
			if err != nil {
				t.Fatalf("decodeToken failed: %v", err)
			}
			if got.String() != tt.tok.String() {
				t.Errorf("expected %v, got %v", tt.tok, got)
			}
		})
	}
}

func TestSlotCodecRejects(t *testing.T) {
	if _, err := encodeToken(core.Uint{Int: big.NewInt(-1)}); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for a negative uint, got %v", err)
	}
	if _, err := encodeToken(core.Uint{}); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for a nil uint, got %v", err)
	}

	for name, raw := range map[string][]byte{
		"Truncated":   {0x83, 0x01},
		"NegativeInt": {0x20},
		"Map":         {0xa1, 0x01, 0x02},
		"Bool":        {0xf5},
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := decodeToken(raw); !errors.Is(err, core.ErrCorrupt) {
				t.Errorf("expected ErrCorrupt, got %v", err)
			}
		})
	}
}

func TestCalldataGas(t *testing.T) {
	if got := calldataGas([]byte{0, 0, 1}); got != 2*GasTxDataZero+GasTxDataNonZero {
		t.Errorf("unexpected calldata gas %d", got)
	}
	if got := storageGas(nil, true); got != GasStorageSet {
		t.Errorf("empty value should still cost one word, got %d", got)
	}
	if got := storageGas(make([]byte, 33), false); got != 2*GasStorageReset {
		t.Errorf("33 bytes should cost two words, got %d", got)
	}
}

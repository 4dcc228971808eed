package ledger

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/L3pereira/ipfs-eth-console/pkg/core"
)

var (
	testContract = core.Address{0xd5, 0xf9, 0xb7, 0xc4}
	testWallet   = core.Address{0x56, 0xdd, 0xe9, 0x4c}
	testDigest   = bytes.Repeat([]byte{0xab}, core.DigestSize)
)

func dialMem(t *testing.T, cfg core.LedgerConfig) Client {
	t.Helper()
	client, err := Dial(context.Background(), "mem://", cfg)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func structArgs() core.Tuple {
	return core.Tuple{core.FixedBytes(testDigest), core.FixedBytes{0x00, 0x12}, core.NewUint(32)}
}

func TestDial(t *testing.T) {
	ctx := context.Background()

	for _, endpoint := range []string{
		"http://127.0.0.1:7545",
		"ws://localhost:8546",
		"ipc:///tmp/geth.ipc",
		"pebble://",
		"::not a url",
	} {
		t.Run(endpoint, func(t *testing.T) {
			if _, err := Dial(ctx, endpoint, core.LedgerConfig{}); !errors.Is(err, core.ErrUnsupportedTransport) {
				t.Errorf("expected ErrUnsupportedTransport, got %v", err)
			}
		})
	}

	t.Run("Pebble", func(t *testing.T) {
		client, err := Dial(ctx, "pebble://"+filepath.ToSlash(t.TempDir()), core.LedgerConfig{})
		if err != nil {
			t.Fatalf("Dial failed: %v", err)
		}
		if err := client.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
		if err := client.Close(); err != nil {
			t.Errorf("second Close failed: %v", err)
		}
	})
}

func TestQueryUnset(t *testing.T) {
	client := dialMem(t, core.LedgerConfig{})
	ctx := context.Background()

	tok, err := client.Query(ctx, testContract, MethodGetString)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if tok != core.String("") {
		t.Errorf("expected an empty string, got %v", tok)
	}

	tok, err = client.Query(ctx, testContract, MethodGetStruct)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	tuple, ok := tok.(core.Tuple)
	if !ok || len(tuple) != 3 {
		t.Fatalf("expected a 3-tuple, got %v", tok)
	}
	if d, ok := tuple[0].(core.FixedBytes); !ok || !bytes.Equal(d, make([]byte, 32)) {
		t.Errorf("expected a zero digest, got %v", tuple[0])
	}
	if n, ok := tuple[2].(core.Uint); !ok || n.Sign() != 0 {
		t.Errorf("expected a zero size, got %v", tuple[2])
	}
}

func TestCallAndQuery(t *testing.T) {
	client := dialMem(t, core.LedgerConfig{})
	ctx := context.Background()

	t.Run("String", func(t *testing.T) {
		id := core.String("QmTJd6JnxTGrLgJqLfnhMHXaytrSaBHvos4ECeVTvqwHdi")
		if _, err := client.Call(ctx, testContract, MethodStoreString, core.Tuple{id}, testWallet); err != nil {
			t.Fatalf("Call failed: %v", err)
		}
		tok, err := client.Query(ctx, testContract, MethodGetString)
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if tok != id {
			t.Errorf("expected %v, got %v", id, tok)
		}
	})

	t.Run("Struct", func(t *testing.T) {
		if _, err := client.Call(ctx, testContract, MethodStoreStruct, structArgs(), testWallet); err != nil {
			t.Fatalf("Call failed: %v", err)
		}
		tok, err := client.Query(ctx, testContract, MethodGetStruct)
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		tuple, ok := tok.(core.Tuple)
		if !ok || len(tuple) != 3 {
			t.Fatalf("expected a 3-tuple, got %v", tok)
		}
		if d, ok := tuple[0].(core.FixedBytes); !ok || !bytes.Equal(d, testDigest) {
			t.Errorf("digest mismatch: %v", tuple[0])
		}
		if c, ok := tuple[1].(core.FixedBytes); !ok || !bytes.Equal(c, []byte{0x00, 0x12}) {
			t.Errorf("code mismatch: %v", tuple[1])
		}
		if n, ok := tuple[2].(core.Uint); !ok || n.Uint64() != 32 {
			t.Errorf("size mismatch: %v", tuple[2])
		}
	})

	t.Run("ContractsAreIsolated", func(t *testing.T) {
		tok, err := client.Query(ctx, core.Address{0x01}, MethodGetString)
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if tok != core.String("") {
			t.Errorf("expected an unset slot, got %v", tok)
		}
	})
}

func TestCallRejects(t *testing.T) {
	client := dialMem(t, core.LedgerConfig{})
	ctx := context.Background()

	tests := []struct {
		name   string
		method string
		args   core.Tuple
		want   error
	}{
		{"UnknownMethod", "selfdestruct", nil, core.ErrUnknownMethod},
		{"ViewAsCall", MethodGetString, nil, core.ErrUnknownMethod},
		{"NoArgs", MethodStoreString, nil, core.ErrInvalidInput},
		{"WrongType", MethodStoreString, core.Tuple{core.NewUint(1)}, core.ErrInvalidInput},
		{"ShortDigest", MethodStoreStruct, core.Tuple{core.FixedBytes{1}, core.FixedBytes{0, 0x12}, core.NewUint(32)}, core.ErrInvalidInput},
		{"WideSize", MethodStoreStruct, core.Tuple{core.FixedBytes(testDigest), core.FixedBytes{0, 0x12}, core.NewUint(256)}, core.ErrInvalidInput},
		{"SwappedArgs", MethodStoreStruct, core.Tuple{core.FixedBytes{0, 0x12}, core.FixedBytes(testDigest), core.NewUint(32)}, core.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := client.Call(ctx, testContract, tt.method, tt.args, testWallet); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := client.Query(ctx, testContract, MethodStoreString); !errors.Is(err, core.ErrUnknownMethod) {
		t.Errorf("expected ErrUnknownMethod querying a transaction method, got %v", err)
	}
}

func TestReceiptsAndGas(t *testing.T) {
	cfg := core.DefaultLedgerConfig()
	client := dialMem(t, cfg)
	ctx := context.Background()

	first, err := client.Call(ctx, testContract, MethodStoreStruct, structArgs(), testWallet)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	second, err := client.Call(ctx, testContract, MethodStoreStruct, structArgs(), testWallet)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if first == second {
		t.Fatal("identical calls must get distinct transaction hashes")
	}

	r1, err := client.Receipt(ctx, first)
	if err != nil {
		t.Fatalf("Receipt failed: %v", err)
	}
	r2, err := client.Receipt(ctx, second)
	if err != nil {
		t.Fatalf("Receipt failed: %v", err)
	}

	if r1.TxHash != first || r1.From != testWallet || r1.To != testContract || r1.Method != MethodStoreStruct {
		t.Errorf("unexpected receipt: %+v", r1)
	}
	if r1.Block != 1 || r2.Block != 2 {
		t.Errorf("expected blocks 1 and 2, got %d and %d", r1.Block, r2.Block)
	}
	if r1.GasUsed <= GasTx+GasStorageSet {
		t.Errorf("first write should pay intrinsic, calldata and set costs, got %d", r1.GasUsed)
	}
	if r2.GasUsed >= r1.GasUsed {
		t.Errorf("overwrite should cost less than the first write: %d >= %d", r2.GasUsed, r1.GasUsed)
	}

	fee := new(big.Int).Mul(new(big.Int).SetUint64(r1.GasUsed), cfg.GasPrice)
	if r1.FeePaid().Cmp(fee) != 0 {
		t.Errorf("expected fee %s, got %s", fee, r1.FeePaid())
	}

	balance, err := client.Balance(ctx, testWallet)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	want := new(big.Int).Sub(cfg.InitialBalance, r1.FeePaid())
	want.Sub(want, r2.FeePaid())
	if balance.Cmp(want) != 0 {
		t.Errorf("expected balance %s, got %s", want, balance)
	}

	if _, err := client.Receipt(ctx, core.TxHash{0xff}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound for an unknown transaction, got %v", err)
	}
}

func TestInsufficientFunds(t *testing.T) {
	client := dialMem(t, core.LedgerConfig{InitialBalance: big.NewInt(1000), GasPrice: big.NewInt(1)})
	ctx := context.Background()

	_, err := client.Call(ctx, testContract, MethodStoreString, core.Tuple{core.String("Qm")}, testWallet)
	if !errors.Is(err, core.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	tok, err := client.Query(ctx, testContract, MethodGetString)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if tok != core.String("") {
		t.Errorf("rejected call must not change state, got %v", tok)
	}
	balance, err := client.Balance(ctx, testWallet)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if balance.Int64() != 1000 {
		t.Errorf("rejected call must not charge, balance is %s", balance)
	}
}

func TestPersistence(t *testing.T) {
	ctx := context.Background()
	endpoint := "pebble://" + filepath.ToSlash(t.TempDir())

	client, err := Dial(ctx, endpoint, core.LedgerConfig{})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	tx, err := client.Call(ctx, testContract, MethodStoreString, core.Tuple{core.String("QmPersisted")}, testWallet)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := client.Call(ctx, testContract, MethodStoreString, core.Tuple{core.String("x")}, testWallet); !errors.Is(err, core.ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
	if _, err := client.Query(ctx, testContract, MethodGetString); !errors.Is(err, core.ErrClosed) {
		t.Errorf("expected ErrClosed querying after Close, got %v", err)
	}

	client, err = Dial(ctx, endpoint, core.LedgerConfig{})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer client.Close()

	tok, err := client.Query(ctx, testContract, MethodGetString)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if tok != core.String("QmPersisted") {
		t.Errorf("expected the stored identifier after reopen, got %v", tok)
	}
	r, err := client.Receipt(ctx, tx)
	if err != nil {
		t.Fatalf("Receipt failed after reopen: %v", err)
	}
	if r.Block != 1 {
		t.Errorf("expected block 1, got %d", r.Block)
	}

	next, err := client.Call(ctx, testContract, MethodStoreString, core.Tuple{core.String("QmNext")}, testWallet)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	r, err = client.Receipt(ctx, next)
	if err != nil {
		t.Fatalf("Receipt failed: %v", err)
	}
	if r.Block != 2 {
		t.Errorf("block height should survive reopen, got %d", r.Block)
	}
}

func TestCancelled(t *testing.T) {
	client := dialMem(t, core.LedgerConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.Call(ctx, testContract, MethodStoreString, core.Tuple{core.String("Qm")}, testWallet); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if _, err := client.Query(ctx, testContract, MethodGetString); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

package ledger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/url"
	"path/filepath"
	"sync"

	"github.com/L3pereira/ipfs-eth-console/pkg/core"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"golang.org/x/crypto/sha3"
)

// Client submits transactions to, and reads state from, a contract ledger.
type Client interface {
	// Query runs a read-only contract method and returns its raw result.
	Query(ctx context.Context, contract core.Address, method string) (core.Token, error)
	// Call submits a state-changing contract method from the given account.
	Call(ctx context.Context, contract core.Address, method string, args core.Tuple, from core.Address) (core.TxHash, error)
	Receipt(ctx context.Context, tx core.TxHash) (Receipt, error)
	Balance(ctx context.Context, account core.Address) (*big.Int, error)
	Close() error
}

// Receipt records the outcome of a committed transaction.
type Receipt struct {
	TxHash  core.TxHash  `cbor:"tx"`
	Block   uint64       `cbor:"block"`
	From    core.Address `cbor:"from"`
	To      core.Address `cbor:"to"`
	Method  string       `cbor:"method"`
	GasUsed uint64       `cbor:"gas_used"`
	Fee     []byte       `cbor:"fee"` // big-endian wei
}

// FeePaid returns the fee charged for the transaction in wei.
func (r Receipt) FeePaid() *big.Int {
	return new(big.Int).SetBytes(r.Fee)
}

var (
	prefixState   = []byte("st:")
	prefixBalance = []byte("bal:")
	prefixNonce   = []byte("nonce:")
	prefixReceipt = []byte("tx:")
	keyHead       = []byte("head")
)

type pebbleLedger struct {
	db     *pebble.DB
	cfg    core.LedgerConfig
	logger *slog.Logger

	mu     sync.RWMutex // write-held for transactions and Close
	closed bool
}

// Dial opens the ledger addressed by endpoint: pebble://<dir> for an
// on-disk ledger, mem:// for a throwaway in-memory one.
func Dial(ctx context.Context, endpoint string, cfg core.LedgerConfig) (Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", core.ErrUnsupportedTransport, endpoint, err)
	}

	opts := &pebble.Options{}
	var dir string
	switch u.Scheme {
	case "pebble":
		dir = filepath.FromSlash(u.Host + u.Path)
		if dir == "" {
			return nil, fmt.Errorf("%w: %q has no directory", core.ErrUnsupportedTransport, endpoint)
		}
	case "mem":
		opts.FS = vfs.NewMem()
		dir = "ledger"
	default:
		return nil, fmt.Errorf("%w: %q (supported: pebble://, mem://)", core.ErrUnsupportedTransport, endpoint)
	}

	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	defaults := core.DefaultLedgerConfig()
	if cfg.InitialBalance == nil {
		cfg.InitialBalance = defaults.InitialBalance
	}
	if cfg.GasPrice == nil {
		cfg.GasPrice = defaults.GasPrice
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &pebbleLedger{db: db, cfg: cfg, logger: logger}, nil
}

func key(prefix []byte, parts ...[]byte) []byte {
	out := append([]byte(nil), prefix...)
	for i, p := range parts {
		if i > 0 {
			out = append(out, ':')
		}
		out = append(out, p...)
	}
	return out
}

func (l *pebbleLedger) readLock() error {
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return core.ErrClosed
	}
	return nil
}

func (l *pebbleLedger) get(k []byte) ([]byte, bool, error) {
	val, closer, err := l.db.Get(k)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()
	return append([]byte(nil), val...), true, nil
}

func (l *pebbleLedger) Query(ctx context.Context, contract core.Address, method string) (core.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, ok := methods[method]
	if !ok || m.mutates {
		return nil, fmt.Errorf("%w: %s is not a view method", core.ErrUnknownMethod, method)
	}
	if err := l.readLock(); err != nil {
		return nil, err
	}
	defer l.mu.RUnlock()

	raw, found, err := l.get(key(prefixState, contract[:], []byte(m.slot)))
	if err != nil {
		return nil, err
	}
	if !found {
		return m.zero(), nil
	}
	return decodeToken(raw)
}

func (l *pebbleLedger) Call(ctx context.Context, contract core.Address, method string, args core.Tuple, from core.Address) (core.TxHash, error) {
	if err := ctx.Err(); err != nil {
		return core.TxHash{}, err
	}
	m, ok := methods[method]
	if !ok || !m.mutates {
		return core.TxHash{}, fmt.Errorf("%w: %s is not a transaction method", core.ErrUnknownMethod, method)
	}
	if err := checkArgs(m.args, args); err != nil {
		return core.TxHash{}, fmt.Errorf("%s: %w", method, err)
	}

	value, err := encodeToken(m.store(args))
	if err != nil {
		return core.TxHash{}, err
	}
	calldata, err := slotEnc.Marshal([]any{method, value})
	if err != nil {
		return core.TxHash{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return core.TxHash{}, core.ErrClosed
	}

	slotKey := key(prefixState, contract[:], []byte(m.slot))
	_, used, err := l.get(slotKey)
	if err != nil {
		return core.TxHash{}, err
	}
	gas := GasTx + calldataGas(calldata) + storageGas(value, !used)
	fee := new(big.Int).Mul(new(big.Int).SetUint64(gas), l.cfg.GasPrice)

	balance, err := l.balance(from)
	if err != nil {
		return core.TxHash{}, err
	}
	if balance.Cmp(fee) < 0 {
		return core.TxHash{}, fmt.Errorf("%w: %s holds %s wei, transaction costs %s", core.ErrInsufficientFunds, from, balance, fee)
	}

	nonce, err := l.counter(key(prefixNonce, from[:]))
	if err != nil {
		return core.TxHash{}, err
	}
	head, err := l.counter(keyHead)
	if err != nil {
		return core.TxHash{}, err
	}

	var tx core.TxHash
	h := sha3.NewLegacyKeccak256()
	h.Write(from[:])
	h.Write(contract[:])
	h.Write(binary.BigEndian.AppendUint64(nil, nonce))
	h.Write(calldata)
	h.Sum(tx[:0])

	receipt, err := slotEnc.Marshal(Receipt{
		TxHash:  tx,
		Block:   head + 1,
		From:    from,
		To:      contract,
		Method:  method,
		GasUsed: gas,
		Fee:     fee.Bytes(),
	})
	if err != nil {
		return core.TxHash{}, err
	}

	batch := l.db.NewBatch()
	defer batch.Close()
	for _, kv := range [][2][]byte{
		{slotKey, value},
		{key(prefixBalance, from[:]), new(big.Int).Sub(balance, fee).Bytes()},
		{key(prefixNonce, from[:]), binary.BigEndian.AppendUint64(nil, nonce+1)},
		{keyHead, binary.BigEndian.AppendUint64(nil, head+1)},
		{key(prefixReceipt, tx[:]), receipt},
	} {
		if err := batch.Set(kv[0], kv[1], nil); err != nil {
			return core.TxHash{}, err
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return core.TxHash{}, err
	}

	l.logger.Debug("committed transaction",
		slog.String("tx", tx.String()),
		slog.String("method", method),
		slog.Uint64("block", head+1),
		slog.Uint64("gas", gas))
	return tx, nil
}

func (l *pebbleLedger) counter(k []byte) (uint64, error) {
	raw, found, err := l.get(k)
	if err != nil || !found {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("%w: counter %q", core.ErrCorrupt, k)
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (l *pebbleLedger) balance(account core.Address) (*big.Int, error) {
	raw, found, err := l.get(key(prefixBalance, account[:]))
	if err != nil {
		return nil, err
	}
	if !found {
		return new(big.Int).Set(l.cfg.InitialBalance), nil
	}
	return new(big.Int).SetBytes(raw), nil
}

func (l *pebbleLedger) Receipt(ctx context.Context, tx core.TxHash) (Receipt, error) {
	if err := l.readLock(); err != nil {
		return Receipt{}, err
	}
	defer l.mu.RUnlock()

	raw, found, err := l.get(key(prefixReceipt, tx[:]))
	if err != nil {
		return Receipt{}, err
	}
	if !found {
		return Receipt{}, fmt.Errorf("%w: transaction %s", core.ErrNotFound, tx)
	}

	var r Receipt
	if err := slotDec.Unmarshal(raw, &r); err != nil {
		return Receipt{}, fmt.Errorf("%w: receipt %s: %v", core.ErrCorrupt, tx, err)
	}
	return r, nil
}

func (l *pebbleLedger) Balance(ctx context.Context, account core.Address) (*big.Int, error) {
	if err := l.readLock(); err != nil {
		return nil, err
	}
	defer l.mu.RUnlock()
	return l.balance(account)
}

func (l *pebbleLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.db.Close()
}

package core

import (
	"log/slog"
	"math/big"
)

type Config struct {
	// Web3Transport addresses the ledger, e.g. pebble:///var/lib/ledger or mem://.
	Web3Transport   string
	ContractAddress Address
	WalletAddress   Address

	Store  StoreConfig
	Ledger LedgerConfig
}

// StoreConfig configures the local content store.
type StoreConfig struct {
	Dir string // repo root

	Chunking  ChunkingConfig
	Pack      PackConfig
	Catalog   CatalogConfig
	Limits    LimitsConfig
	Transform TransformConfig

	Logger *slog.Logger
}

type ChunkingConfig struct {
	Min int
	Avg int
	Max int
}

type PackConfig struct {
	Dir             string
	TargetPackBytes uint64
}

type CatalogConfig struct {
	Dir string
}

type TransformConfig struct {
	Name      string
	ZstdLevel int
}

type LimitsConfig struct {
	MaxFileBytes     uint64
	MaxChunksPerFile uint32
}

// LedgerConfig configures the local ledger's account model.
type LedgerConfig struct {
	InitialBalance *big.Int
	GasPrice       *big.Int

	Logger *slog.Logger
}

// DefaultStoreConfig returns the content store settings used when a config
// file leaves them out.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Dir: "./ipfs-store",
		Chunking: ChunkingConfig{
			Min: 64 << 10,
			Avg: 256 << 10,
			Max: 1 << 20,
		},
		Pack: PackConfig{
			TargetPackBytes: 256 << 20,
		},
		Limits: LimitsConfig{
			MaxFileBytes:     4 << 30,
			MaxChunksPerFile: 1 << 16,
		},
		Transform: TransformConfig{
			Name:      "zstd",
			ZstdLevel: 3,
		},
	}
}

// DefaultLedgerConfig funds new accounts with 100 ether and charges 20 gwei per gas.
func DefaultLedgerConfig() LedgerConfig {
	balance, _ := new(big.Int).SetString("100000000000000000000", 10)
	return LedgerConfig{
		InitialBalance: balance,
		GasPrice:       big.NewInt(20_000_000_000),
	}
}

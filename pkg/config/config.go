// Package config loads the console's JSON configuration file.
package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/L3pereira/ipfs-eth-console/pkg/core"
	jsoniter "github.com/json-iterator/go"
)

// DefaultPath is where the console looks for its configuration.
const DefaultPath = "./config.json"

var json = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	DisallowUnknownFields:  true,
}.Froze()

type file struct {
	Web3Transport   string `json:"web3_transport"`
	ContractAddress string `json:"contract_address"`
	WalletAddress   string `json:"wallet_address"`

	StoreDir       string `json:"store_dir,omitempty"`
	Transform      string `json:"transform,omitempty"`
	ZstdLevel      *int   `json:"zstd_level,omitempty"`
	InitialBalance string `json:"initial_balance,omitempty"`
	GasPrice       string `json:"gas_price,omitempty"`
}

// Load reads and parses the configuration at path.
func Load(path string) (core.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return core.Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a configuration document and merges it onto the defaults.
func Parse(data []byte) (core.Config, error) {
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return core.Config{}, fmt.Errorf("%w: config JSON was not well-formatted: %v", core.ErrInvalidInput, err)
	}

	if f.Web3Transport == "" {
		return core.Config{}, fmt.Errorf("%w: web3_transport is required", core.ErrInvalidInput)
	}
	contract, err := core.ParseAddress(f.ContractAddress)
	if err != nil {
		return core.Config{}, fmt.Errorf("contract_address: %w", err)
	}
	wallet, err := core.ParseAddress(f.WalletAddress)
	if err != nil {
		return core.Config{}, fmt.Errorf("wallet_address: %w", err)
	}

	cfg := core.Config{
		Web3Transport:   f.Web3Transport,
		ContractAddress: contract,
		WalletAddress:   wallet,
		Store:           core.DefaultStoreConfig(),
		Ledger:          core.DefaultLedgerConfig(),
	}

	if f.StoreDir != "" {
		cfg.Store.Dir = filepath.Clean(f.StoreDir)
	}
	if f.Transform != "" {
		cfg.Store.Transform.Name = f.Transform
	}
	if f.ZstdLevel != nil {
		cfg.Store.Transform.ZstdLevel = *f.ZstdLevel
	}
	if f.InitialBalance != "" {
		if cfg.Ledger.InitialBalance, err = parseWei("initial_balance", f.InitialBalance); err != nil {
			return core.Config{}, err
		}
	}
	if f.GasPrice != "" {
		if cfg.Ledger.GasPrice, err = parseWei("gas_price", f.GasPrice); err != nil {
			return core.Config{}, err
		}
	}

	return cfg, nil
}

func parseWei(field, s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s must be a non-negative decimal integer, got %q", core.ErrInvalidInput, field, s)
	}
	return v, nil
}

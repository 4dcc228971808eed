package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/L3pereira/ipfs-eth-console/pkg/cidutil"
	"github.com/L3pereira/ipfs-eth-console/pkg/config"
	"github.com/L3pereira/ipfs-eth-console/pkg/contentstore"
	"github.com/L3pereira/ipfs-eth-console/pkg/core"
	"github.com/L3pereira/ipfs-eth-console/pkg/ledger"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:               "ipfs-eth-console",
		Short:             "Store content identifiers on a ledger as text or as multihash fields",
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	root.PersistentFlags().StringP("config", "c", config.DefaultPath, "configuration file")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().Bool("permissive", false, "read ledger records without validating the code and size bytes")

	root.AddCommand(
		newAddCmd(),
		newDecodeCmd(),
		newEncodeCmd(),
		newStoreCmd(),
		newShowCmd(),
		newCatCmd(),
		newListCmd(),
		newVerifyCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is what every command needs after flags and config are resolved.
type env struct {
	cfg    core.Config
	bridge cidutil.Bridge
	logger *slog.Logger
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("%w: log level %q", core.ErrInvalidInput, level)
	}

	noColor := true
	if f, ok := w.(*os.File); ok {
		if fi, err := f.Stat(); err == nil {
			noColor = fi.Mode()&os.ModeCharDevice == 0
		}
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: time.Kitchen,
		NoColor:    noColor,
	})), nil
}

// bridgeOnly resolves logging and the bridge without reading the config
// file, for commands that never touch the store or the ledger.
func bridgeOnly(cmd *cobra.Command) (*env, error) {
	level, _ := cmd.Flags().GetString("log-level")
	logger, err := newLogger(cmd.ErrOrStderr(), level)
	if err != nil {
		return nil, err
	}
	permissive, _ := cmd.Flags().GetBool("permissive")
	return &env{
		bridge: cidutil.NewBridge(cidutil.BridgeOptions{Permissive: permissive}),
		logger: logger,
	}, nil
}

func loadEnv(cmd *cobra.Command) (*env, error) {
	e, err := bridgeOnly(cmd)
	if err != nil {
		return nil, err
	}
	path, _ := cmd.Flags().GetString("config")
	if e.cfg, err = config.Load(path); err != nil {
		return nil, err
	}
	e.cfg.Store.Logger = e.logger
	e.cfg.Ledger.Logger = e.logger
	return e, nil
}

func (e *env) openStore(ctx context.Context) (contentstore.Store, error) {
	return contentstore.Open(ctx, e.cfg.Store)
}

func (e *env) openContract(ctx context.Context) (*ledger.CIDContract, ledger.Client, error) {
	client, err := ledger.Dial(ctx, e.cfg.Web3Transport, e.cfg.Ledger)
	if err != nil {
		return nil, nil, err
	}
	return ledger.NewCIDContract(client, e.cfg.ContractAddress, e.cfg.WalletAddress, e.bridge), client, nil
}

package main

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/L3pereira/ipfs-eth-console/pkg/core"
	"github.com/spf13/cobra"
)

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode cid",
		Short: "Split an identifier into its multihash fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := bridgeOnly(cmd)
			if err != nil {
				return err
			}
			f, err := e.bridge.Decode(core.ContentID(args[0]))
			if err != nil {
				return err
			}
			printFields(cmd, f)
			return nil
		},
	}
}

func newEncodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Build an identifier from multihash fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := bridgeOnly(cmd)
			if err != nil {
				return err
			}

			codeFlag, _ := cmd.Flags().GetString("code")
			sizeFlag, _ := cmd.Flags().GetString("size")
			digestFlag, _ := cmd.Flags().GetString("digest")

			code, err := strconv.ParseUint(codeFlag, 0, 8)
			if err != nil || code > core.MaxSingleByteCode {
				return fmt.Errorf("%w: --code %q must be 0 to 0x7f", core.ErrUnsupportedCode, codeFlag)
			}
			size, err := strconv.ParseUint(sizeFlag, 0, 8)
			if err != nil || size != core.DigestSize {
				return fmt.Errorf("%w: --size %q must be %d", core.ErrUnsupportedDigestSize, sizeFlag, core.DigestSize)
			}
			digest, err := hex.DecodeString(digestFlag)
			if err != nil || len(digest) != core.DigestSize {
				return fmt.Errorf("%w: --digest must be %d hex-encoded bytes", core.ErrInvalidInput, core.DigestSize)
			}

			f := core.MultihashFields{Code: [2]byte{0, byte(code)}, Size: uint8(size)}
			copy(f.Digest[:], digest)
			fmt.Fprintln(cmd.OutOrStdout(), e.bridge.Encode(f))
			return nil
		},
	}
	cmd.Flags().String("code", "0x12", "multihash function code")
	cmd.Flags().String("size", "32", "digest length in bytes")
	cmd.Flags().String("digest", "", "digest as hex")
	_ = cmd.MarkFlagRequired("digest")
	return cmd
}

func newStoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store cid",
		Short: "Record an identifier on the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			id := core.ContentID(args[0])

			as, _ := cmd.Flags().GetString("as")
			if as != "string" && as != "struct" {
				return fmt.Errorf("%w: --as must be string or struct, got %q", core.ErrInvalidInput, as)
			}

			contract, client, err := e.openContract(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			var tx core.TxHash
			if as == "string" {
				tx, err = contract.StoreString(ctx, id)
			} else {
				tx, err = contract.StoreFields(ctx, id)
			}
			if err != nil {
				return err
			}

			receipt, err := client.Receipt(ctx, tx)
			if err != nil {
				return err
			}
			balance, err := client.Balance(ctx, e.cfg.WalletAddress)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tx:       %s\n", tx)
			fmt.Fprintf(out, "block:    %d\n", receipt.Block)
			fmt.Fprintf(out, "gas used: %d\n", receipt.GasUsed)
			fmt.Fprintf(out, "balance:  %s wei\n", balance)
			return nil
		},
	}
	cmd.Flags().String("as", "struct", "record representation: string or struct")
	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print both ledger records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			contract, client, err := e.openContract(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			out := cmd.OutOrStdout()
			s, err := contract.String(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "string: %s\n", s)

			f, err := contract.Fields(ctx)
			if err != nil {
				fmt.Fprintf(out, "struct: unusable record: %v\n", err)
				return nil
			}
			fmt.Fprintf(out, "struct: %s\n", e.bridge.Encode(f))
			printFields(cmd, f)
			return nil
		},
	}
}

func printFields(cmd *cobra.Command, f core.MultihashFields) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "code:   0x%02x\n", f.FunctionCode())
	fmt.Fprintf(out, "size:   %d\n", f.Size)
	fmt.Fprintf(out, "digest: %x\n", f.Digest[:])
}

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/L3pereira/ipfs-eth-console/pkg/core"
	"github.com/spf13/cobra"
)

func newAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add path",
		Short: "Add a file to the content store and print its identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			store, err := e.openStore(ctx)
			if err != nil {
				return err
			}
			id, err := store.Add(ctx, f)
			if cerr := store.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "added %s %s\n", id, args[0])

			if skip, _ := cmd.Flags().GetBool("no-check"); skip {
				return nil
			}
			contract, client, err := e.openContract(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			stored, err := contract.String(ctx)
			if err != nil {
				return err
			}
			if stored == id {
				fmt.Fprintln(out, "already stored as string")
			}
			fromFields, err := contract.FromFields(ctx)
			if err != nil {
				e.logger.Debug("no usable multihash record", slog.Any("err", err))
			} else if fromFields == id {
				fmt.Fprintln(out, "already stored as multihash struct")
			}
			return nil
		},
	}
	cmd.Flags().Bool("no-check", false, "skip comparing against the ledger records")
	return cmd
}

func newCatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat cid",
		Short: "Write stored file content to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			store, err := e.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			rc, _, err := store.Cat(ctx, core.ContentID(args[0]))
			if err != nil {
				return err
			}
			defer rc.Close()

			_, err = io.Copy(cmd.OutOrStdout(), rc)
			return err
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored files with their sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			store, err := e.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			return store.List(ctx, func(id core.ContentID) error {
				st, err := store.Stat(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s %d bytes, %d chunks\n", id, st.Length, st.ChunkCount)
				return nil
			})
		},
	}
}

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Re-read every stored file and report damaged or orphaned blocks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			store, err := e.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			rep, err := store.Audit(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "files: %d, live blocks: %d, sealed packs: %d, orphans: %d\n",
				rep.Files, rep.LiveBlocks, rep.SealedPacks, rep.Orphans)
			for _, p := range rep.Problems {
				fmt.Fprintln(out, p.Error())
			}
			if !rep.OK() {
				return fmt.Errorf("%w: %d damaged blocks", core.ErrCorrupt, len(rep.Problems))
			}
			return nil
		},
	}
}

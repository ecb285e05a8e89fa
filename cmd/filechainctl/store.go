// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ManuGH/filechain/internal/chainstore"
)

var errStoreCorrupt = errors.New("store integrity check failed")

func newStoreCheckCmd(opts *rootOptions) *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "store-check",
		Short: "Check the chain store itself for corruption",
		Long: `Pings the configured store and decodes every block. For the sqlite
backend it also runs PRAGMA quick_check, or integrity_check with --full.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, cfg, err := opts.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Checking %s store at %s...\n", store.Backend(), cfg.Storage.Path)

			if err := store.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("%w: %v", errStoreCorrupt, err)
			}
			if sq, ok := store.(*chainstore.SQLiteStore); ok {
				issues, err := sq.VerifyIntegrity(cmd.Context(), full)
				if err != nil {
					return err
				}
				if issues != nil {
					for _, issue := range issues {
						_, _ = fmt.Fprintf(out, "  - %s\n", issue)
					}
					return errStoreCorrupt
				}
			}
			blocks, err := store.Load(cmd.Context())
			switch {
			case errors.Is(err, chainstore.ErrNotFound):
				_, _ = fmt.Fprintln(out, "Store is empty.")
				return nil
			case err != nil:
				return fmt.Errorf("%w: %v", errStoreCorrupt, err)
			}
			_, _ = fmt.Fprintf(out, "Store ok: %d blocks decoded.\n", len(blocks))
			return nil
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "run the full sqlite integrity_check")
	return cmd
}

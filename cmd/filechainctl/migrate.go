// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/ManuGH/filechain/internal/chain"
	"github.com/ManuGH/filechain/internal/chainstore"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var toBackend, toPath string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy the chain into another store backend",
		Long: `Copies every block from the configured store into the --to backend.
The copy is validated first; an invalid chain is copied as-is and reported.
Point filechaind at the new store afterwards with --backend/--store-path or
FILECHAIN_STORE_BACKEND/FILECHAIN_STORE_PATH.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !slices.Contains(chainstore.Backends, toBackend) || toBackend == chainstore.BackendMemory {
				return fmt.Errorf("--to must be one of json, bolt, badger, sqlite (got %q)", toBackend)
			}
			src, cfg, err := opts.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = src.Close() }()

			if toPath == "" {
				toPath = chainstore.DefaultPath(toBackend, cfg.DataDir)
			}
			if samePath(toPath, cfg.Storage.Path) {
				return errors.New("source and destination are the same store")
			}

			dst, err := chainstore.Open(chainstore.Config{Backend: toBackend, Path: toPath})
			if err != nil {
				return err
			}
			defer func() { _ = dst.Close() }()

			n, err := chainstore.Copy(cmd.Context(), src, dst)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "migrated %d blocks from %s (%s) to %s (%s)\n",
				n, src.Backend(), cfg.Storage.Path, dst.Backend(), toPath)

			blocks, err := dst.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("re-read destination: %w", err)
			}
			if verr := chain.FromBlocks(blocks, nil).Validate(); verr != nil {
				_, _ = fmt.Fprintf(out, "warning: migrated chain is invalid: %s\n", verr.Error())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&toBackend, "to", "", "destination backend: json, bolt, badger, sqlite")
	cmd.Flags().StringVar(&toPath, "to-path", "", "destination location (defaults to one derived from --data)")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func samePath(a, b string) bool {
	aa, errA := filepath.Abs(a)
	bb, errB := filepath.Abs(b)
	return errA == nil && errB == nil && aa == bb
}

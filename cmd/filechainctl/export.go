// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the raw chain as JSON",
		Long:  "Writes the chain in the JSON ledger format, to stdout or atomically to --out.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, err := opts.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			blocks, err := store.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("load chain: %w", err)
			}
			data, err := json.MarshalIndent(blocks, "", "    ")
			if err != nil {
				return err
			}
			data = append(data, '\n')

			if outPath == "" || outPath == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := renameio.WriteFile(outPath, data, 0o640); err != nil {
				return fmt.Errorf("write %s: %w", outPath, err)
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "exported %d blocks to %s\n", len(blocks), outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	return cmd
}

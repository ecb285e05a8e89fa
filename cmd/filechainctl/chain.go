// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuGH/filechain/internal/ledger"
)

var (
	errChainInvalid = errors.New("chain is invalid")
	errFilesFailed  = errors.New("file audit found problems")
	errNeedForce    = errors.New("refusing to reset without --force")
)

const timestampLayout = "2006-01-02 15:04:05"

func newListCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the files recorded in the chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeFn, err := opts.openLedger(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeFn()

			ov := svc.List(cmd.Context())
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(ov)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "BLOCK\tFILENAME\tUPLOADED\tSHA-256")
			for _, f := range ov.Files {
				_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", f.BlockIndex, f.Filename, f.UploadedAt.In(time.Local).Format(timestampLayout), f.FileHash)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			state := "valid"
			if !ov.Valid {
				state = "INVALID: " + strings.Join(ov.Errors, ", ")
			}
			_, _ = fmt.Fprintf(out, "\n%d blocks, chain %s\n", ov.Blocks, state)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the overview as JSON")
	return cmd
}

func newVerifyCmd(opts *rootOptions) *cobra.Command {
	var files bool
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Validate the chain and optionally re-hash every stored file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeFn, err := opts.openLedger(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeFn()

			out := cmd.OutOrStdout()
			report := svc.Verify(cmd.Context())
			if report.Valid {
				_, _ = fmt.Fprintln(out, "Blockchain integrity verified. All data is intact.")
			} else {
				_, _ = fmt.Fprintf(out, "Blockchain integrity check failed! Issues detected: %s\n", strings.Join(report.Errors, ", "))
			}

			var filesErr error
			if files {
				results, err := svc.AuditFiles(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				_, _ = fmt.Fprintln(tw, "FILENAME\tSTATUS\tBLOCK")
				for _, r := range results {
					_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\n", r.Filename, r.Status, r.BlockIndex)
					if r.Status != ledger.StatusOK {
						filesErr = errFilesFailed
					}
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}

			if !report.Valid {
				return errors.Join(errChainInvalid, filesErr)
			}
			return filesErr
		},
	}
	cmd.Flags().BoolVar(&files, "files", false, "also verify every stored file against its latest block")
	return cmd
}

func newRepairCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Relink an invalid chain, keeping the genesis block",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeFn, err := opts.openLedger(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := svc.Repair(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case res.AlreadyValid:
				_, _ = fmt.Fprintln(out, "Blockchain is already valid. No repair needed.")
			case res.Repaired:
				_, _ = fmt.Fprintf(out, "Blockchain has been successfully repaired. Previous issues: %s\n", strings.Join(res.PreviousErrors, ", "))
			default:
				_, _ = fmt.Fprintf(out, "Failed to repair blockchain. Issues remain: %s\n", strings.Join(res.RemainingErrors, ", "))
				return errChainInvalid
			}
			return nil
		},
	}
}

func newResetCmd(opts *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Replace the chain with a fresh genesis block",
		Long:  "Discards every recorded block. Stored files are left on disk but are no longer tracked.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !force {
				return errNeedForce
			}
			svc, closeFn, err := opts.openLedger(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := svc.Reset(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Blockchain has been reset to initial state.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "confirm the reset")
	return cmd
}

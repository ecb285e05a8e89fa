// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ManuGH/filechain/internal/blobstore"
	"github.com/ManuGH/filechain/internal/chainstore"
	"github.com/ManuGH/filechain/internal/config"
	"github.com/ManuGH/filechain/internal/ledger"
	xlog "github.com/ManuGH/filechain/internal/log"
	"github.com/ManuGH/filechain/internal/version"
)

type rootOptions struct {
	configPath string
	dataDir    string
	backend    string
	storePath  string
	uploadDir  string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "filechainctl",
		Short:        "Inspect and maintain a filechain ledger",
		Long:         "Operates directly on the chain store and upload directory. Stop filechaind before changing the chain.",
		Version:      version.String(),
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := "error"
			if opts.verbose {
				level = "debug"
			}
			xlog.Configure(xlog.Config{
				Level:   level,
				Format:  xlog.FormatConsole,
				Output:  cmd.ErrOrStderr(),
				Service: "filechainctl",
				Version: version.Version,
			})
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "path to config file (YAML)")
	pf.StringVar(&opts.dataDir, "data", "", "data directory (overrides FILECHAIN_DATA)")
	pf.StringVar(&opts.backend, "backend", "", "chain store backend: json, bolt, badger, sqlite")
	pf.StringVar(&opts.storePath, "store-path", "", "chain store location (defaults to one derived from --data)")
	pf.StringVar(&opts.uploadDir, "upload-dir", "", "upload directory (defaults to <data>/uploads)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level to stderr")

	root.AddCommand(
		newListCmd(opts),
		newVerifyCmd(opts),
		newRepairCmd(opts),
		newResetCmd(opts),
		newExportCmd(opts),
		newMigrateCmd(opts),
		newStoreCheckCmd(opts),
	)
	return root
}

// loadConfig applies the command-line flags on top of the usual
// environment, file and default precedence.
func (o *rootOptions) loadConfig() (config.AppConfig, error) {
	return config.NewLoader(o.configPath, version.Version).
		Override(func(c *config.AppConfig) {
			if o.dataDir != "" {
				c.DataDir = o.dataDir
			}
			if o.backend != "" {
				c.Storage.Backend = o.backend
			}
			if o.storePath != "" {
				c.Storage.Path = o.storePath
			}
			if o.uploadDir != "" {
				c.Uploads.Dir = o.uploadDir
			}
		}).
		Load()
}

// openStore opens the configured chain store without loading it.
func (o *rootOptions) openStore() (chainstore.Store, config.AppConfig, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, cfg, err
	}
	if cfg.Storage.Backend == chainstore.BackendMemory {
		return nil, cfg, fmt.Errorf("backend %q has nothing to operate on offline", cfg.Storage.Backend)
	}
	store, err := chainstore.Open(chainstore.Config{Backend: cfg.Storage.Backend, Path: cfg.Storage.Path})
	if err != nil {
		return nil, cfg, err
	}
	return store, cfg, nil
}

// openLedger opens the ledger over the configured store and upload directory.
// Unless discardCorrupt is set an undecodable store is reported, never
// overwritten. The returned close function releases the store.
func (o *rootOptions) openLedger(ctx context.Context, discardCorrupt bool) (*ledger.Service, func(), error) {
	store, cfg, err := o.openStore()
	if err != nil {
		return nil, nil, err
	}
	blobs, err := blobstore.New(cfg.Uploads.Dir, blobstore.WithMaxBytes(cfg.Uploads.MaxBytes))
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	svc, err := ledger.Open(ctx, ledger.Options{
		Store:            store,
		Blobs:            blobs,
		AuditConcurrency: cfg.Audit.Concurrency,
		Strict:           !discardCorrupt,
	})
	if err != nil {
		_ = store.Close()
		if errors.Is(err, chainstore.ErrCorrupt) {
			return nil, nil, fmt.Errorf("%w (inspect it with 'filechainctl store-check' or start over with 'filechainctl reset --force')", err)
		}
		return nil, nil, err
	}
	return svc, func() { _ = store.Close() }, nil
}

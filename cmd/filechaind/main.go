// SPDX-License-Identifier: MIT

// Command filechaind serves the filechain web UI and JSON API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ManuGH/filechain/internal/config"
	"github.com/ManuGH/filechain/internal/daemon"
	xlog "github.com/ManuGH/filechain/internal/log"
	"github.com/ManuGH/filechain/internal/version"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		os.Exit(runHealthcheckCLI(os.Args[2:]))
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	// Safe defaults until the configuration is loaded.
	xlog.Configure(xlog.Config{
		Level:   "info",
		Service: daemon.ServiceName,
		Version: version.Version,
	})
	logger := xlog.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	effectiveConfigPath := resolveConfigPath(*configPath)
	cfg, err := config.NewLoader(effectiveConfigPath, version.Version).Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(xlog.FieldEvent, "config.load_failed").
			Str("config_path", effectiveConfigPath).
			Msg("failed to load configuration")
	}

	xlog.Configure(xlog.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: daemon.ServiceName,
		Version: cfg.Version,
	})
	logger = xlog.WithComponent("main")

	source := "env+defaults"
	if effectiveConfigPath != "" {
		source = "file"
	}
	logger.Info().
		Str(xlog.FieldEvent, "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("config_source", source).
		Str("config_path", effectiveConfigPath).
		Str("listen", cfg.Server.Listen).
		Str("data_dir", cfg.DataDir).
		Msg("starting filechaind")

	d, err := daemon.Build(ctx, &cfg)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(xlog.FieldEvent, "daemon.build_failed").
			Msg("failed to initialise filechaind")
	}

	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().
			Err(err).
			Str(xlog.FieldEvent, "daemon.failed").
			Msg("filechaind failed")
	}
	logger.Info().Str(xlog.FieldEvent, "shutdown").Msg("server exiting")
}

// resolveConfigPath returns the explicit --config path, or
// $FILECHAIN_DATA/config.yaml when that file exists.
func resolveConfigPath(explicit string) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return p
	}
	dataDir := config.ParseString(config.EnvPrefix+"DATA", config.Defaults().DataDir)
	autoPath := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(autoPath); err == nil {
		return autoPath
	}
	return ""
}

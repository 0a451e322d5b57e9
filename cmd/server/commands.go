package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httpapi "dossier/internal/http"
	"dossier/internal/platform/config"
	"dossier/internal/platform/httpserver"
	"dossier/internal/platform/logger"
	"dossier/internal/platform/postgres"
)

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:          "dossier",
		Short:        "Player identity tracker",
		Long:         "dossier resolves community handles to stable player identities and records reports and attestations about them.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("DOSSIER_CONFIG"), "Path to a TOML config file (env: DOSSIER_CONFIG)")

	load := func() (config.Config, error) {
		return config.Load(configPath)
	}

	serve := newServeCmd(load)
	root.AddCommand(serve, newMigrateCmd(load), newResolveCmd(load))
	// Running the binary without a subcommand serves.
	root.RunE = serve.RunE
	return root
}

func newServeCmd(load func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			log := logger.New(cfg.Log.Level)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, log, appOptions{metrics: true, migrate: true})
			if err != nil {
				log.Error("failed to start", "error", err)
				return err
			}
			defer a.Close()

			router := httpapi.NewRouter(httpapi.Config{
				Logger:       log,
				Metrics:      a.httpMetrics,
				CallerHeader: cfg.Server.CallerHeader,
				Checks:       a.checks,
				Modules:      a.modules(),
			})
			return httpserver.Run(ctx, httpserver.New(cfg.Server.Addr, router), cfg.Server.ShutdownTimeout, log)
		},
	}
}

func newMigrateCmd(load func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return fmt.Errorf("migrate: DATABASE_URL is not set")
			}
			log := logger.New(cfg.Log.Level)
			db, err := postgres.Open(cmd.Context(), cfg.Database, log)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := postgres.EnsureSchema(cmd.Context(), db); err != nil {
				return err
			}
			log.Info("schema applied")
			return nil
		},
	}
}

func newResolveCmd(load func() (config.Config, error)) *cobra.Command {
	var byExternalID bool
	cmd := &cobra.Command{
		Use:   "resolve <handle>",
		Short: "Resolve one handle (or external id) and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			log := logger.New(cfg.Log.Level)
			ctx := cmd.Context()

			a, err := buildApp(ctx, cfg, log, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			resolve := a.players.ResolveByHandle
			if byExternalID {
				resolve = a.players.ResolveByExternalID
			}
			res, err := resolve(ctx, args[0])
			if err != nil {
				return err
			}
			a.dispatcher.Dispatch(ctx, res.Signal)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"player":      res.Player,
				"outcome":     res.Outcome,
				"invalidated": res.Signal.ExternalIDs,
			})
		},
	}
	cmd.Flags().BoolVar(&byExternalID, "external-id", false, "Treat the argument as an upstream external id")
	return cmd
}

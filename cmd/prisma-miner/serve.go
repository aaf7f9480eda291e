package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/prisma-miner/internal/api"
	"github.com/prisma-miner/internal/database"
	"github.com/prisma-miner/internal/domain"
	"github.com/prisma-miner/internal/mcp"
	"github.com/prisma-miner/internal/metrics"
	"github.com/prisma-miner/internal/setup"
	"github.com/prisma-miner/internal/store"
	"github.com/prisma-miner/internal/vocabulary"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve query building, quality assessment and vocabulary lookups over HTTP.
Stored runs are listed when a run store is configured, and POST /api/v1/runs
starts a mining run when an NCBI contact email is configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd)
		},
	}
	cmd.Flags().String("host", "0.0.0.0", "listen address")
	cmd.Flags().Int("port", 8080, "listen port")
	return cmd
}

func (a *app) serve(cmd *cobra.Command) error {
	if err := a.manager.Validate(false); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []api.Option{api.WithLogger(a.logger)}

	var collector *metrics.Collector
	if a.cfg.Metrics.Enabled {
		collector = metrics.New()
		opts = append(opts, api.WithMetrics(collector))
	}

	runs, db, cleanup, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer cleanup()
	if runs != nil {
		opts = append(opts, api.WithRunStore(runs))
	}
	if db != nil {
		opts = append(opts, api.WithHealthCheck("postgres", db))
	}

	if strings.Contains(a.cfg.NCBI.Email, "@") {
		client, closeClient, err := a.ncbiClient(ctx, collector)
		if err != nil {
			return err
		}
		defer closeClient()

		miner, err := a.newMiner(client, runs, collector)
		if err != nil {
			return err
		}
		defaults := a.cfg.Pipeline
		defaults.OutputDir = ""
		opts = append(opts, api.WithRunner(miner, defaults))
	} else {
		a.logger.Warn("No NCBI email configured, run endpoint disabled")
	}

	server, err := api.NewServer(a.cfg.Server, vocabulary.Default(), opts...)
	if err != nil {
		return err
	}
	return server.Start(ctx)
}

// openStore opens the configured run store. PostgreSQL goes through the pgx
// pool, which is also returned so the API can report database health.
func (a *app) openStore(ctx context.Context) (store.RunStore, *database.DB, func(), error) {
	if !strings.EqualFold(a.cfg.Store.Driver, "postgres") {
		runs, err := store.Open(a.cfg.Store)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open run store: %w", err)
		}
		if runs == nil {
			return nil, nil, func() {}, nil
		}
		return runs, nil, func() { runs.Close() }, nil
	}

	db, err := database.NewConnection(ctx, database.DefaultConfig(a.cfg.Store.PostgresURL), a.logger)
	if err != nil {
		return nil, nil, nil, err
	}
	runs, err := store.NewPostgresStore(db.SQL())
	if err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("failed to open run store: %w", err)
	}
	return runs, db, db.Close, nil
}

func newMCPCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve query and assessment tools over MCP stdio",
		Long: `Serve build_query, validate_query, expand_term, assess_records and
detect_domain as Model Context Protocol tools on stdin/stdout. Logs go to
stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			server, err := mcp.NewServer(vocabulary.Default(), version, a.logger)
			if err != nil {
				return err
			}
			return server.Start(ctx)
		},
	}

	var clientConfig string
	cmd.PersistentFlags().StringVar(&clientConfig, "client-config", "", "desktop client config file (default: per-OS location)")
	resolve := func() (string, error) {
		if clientConfig != "" {
			return clientConfig, nil
		}
		return setup.DefaultClientConfigPath()
	}

	var (
		binary string
		env    map[string]string
	)
	install := &cobra.Command{
		Use:   "install",
		Short: "Register this binary as an MCP server in the desktop client config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolve()
			if err != nil {
				return err
			}
			entry, err := setup.Install(path, setup.Options{
				BinaryPath: binary,
				ConfigFile: a.configFile,
				Env:        env,
			})
			if err != nil {
				return err
			}
			a.logger.WithField("path", path).Info("Registered MCP server")
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s in %s\n  %s %s\n",
				setup.ServerName, path, entry.Command, strings.Join(entry.Args, " "))
			return nil
		},
	}
	install.Flags().StringVar(&binary, "binary", "", "server binary (default: this executable)")
	install.Flags().StringToStringVar(&env, "env", nil, "environment passed to the server, KEY=VALUE")

	uninstall := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the MCP server registration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolve()
			if err != nil {
				return err
			}
			removed, err := setup.Uninstall(path)
			if err != nil {
				return err
			}
			if removed {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n", setup.ServerName, path)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is not registered in %s\n", setup.ServerName, path)
			}
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Check the MCP server registration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolve()
			if err != nil {
				return err
			}
			st, err := setup.CheckStatus(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config: %s\n", st.ConfigPath)
			fmt.Fprintf(out, "Registered: %t\n", st.Installed)
			if st.Installed {
				fmt.Fprintf(out, "Command: %s %s\n", st.Entry.Command, strings.Join(st.Entry.Args, " "))
			}
			for _, issue := range st.Issues {
				fmt.Fprintf(out, "  ! %s\n", issue)
			}
			return nil
		},
	}

	cmd.AddCommand(install, uninstall, status)
	return cmd
}

func newMigrateCmd(a *app) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:       "migrate <up|down|version>",
		Short:     "Manage the PostgreSQL run-store schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			url := a.cfg.Store.PostgresURL
			if url == "" {
				return domain.NewValidationError("store.postgres_url", "required for migrations", "")
			}

			var (
				runner *database.MigrationRunner
				err    error
			)
			if path != "" {
				runner, err = database.NewMigrationRunner(url, path, a.logger)
			} else {
				runner, err = database.NewEmbeddedMigrationRunner(url, a.logger)
			}
			if err != nil {
				return err
			}
			defer runner.Close()

			switch args[0] {
			case "up":
				return runner.Up(cmd.Context())
			case "down":
				return runner.Down(cmd.Context())
			}
			v, dirty, err := runner.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", v, dirty)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "migrations directory (default: embedded)")
	return cmd
}

// server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rexlx/spark/forum"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgFile string
		cfg     Config
		log     zerolog.Logger
	)

	cmd := &cobra.Command{
		Use:           "spark",
		Short:         "Spark is a question and answer forum organised by topic pages.",
		Version:       version,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = loadConfig(cmd, cfgFile)
			if err != nil {
				return fmt.Errorf("error loading config: %w", err)
			}
			log, err = forum.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
			}
			forum.SetLogger(log)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./spark.yaml or /etc/spark/spark.yaml)")
	cmd.PersistentFlags().String("database.type", "sqlite", `Database type ("sqlite", "postgres", "mysql")`)
	cmd.PersistentFlags().String("database.dsn", "./spark.db", "Database connection string (DSN)")
	cmd.PersistentFlags().String("log.level", "info", "Log level")
	cmd.PersistentFlags().String("log.format", "json", `Log format ("json", "console")`)

	// Subcommands read the config through these closures, after
	// PersistentPreRunE has filled it in.
	getCfg := func() Config { return cfg }
	getLog := func() *zerolog.Logger { return &log }

	cmd.AddCommand(
		newServeCmd(getCfg, getLog),
		newMigrateCmd(getCfg, getLog),
		newSeedCmd(getCfg),
		newPromoteCmd(getCfg),
	)
	return cmd
}

func openForum(ctx context.Context, cfg Config) (*forum.Forum, forum.Store, error) {
	st, err := forum.OpenStore(ctx, cfg.Database.Type, cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("could not initialize database: %w", err)
	}
	f := forum.New(st,
		forum.WithTokenTTL(cfg.Auth.TokenTTL),
		forum.WithBcryptCost(cfg.Auth.BcryptCost),
	)
	return f, st, nil
}

func newServeCmd(getCfg func() Config, getLog func() *zerolog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log := getCfg(), getLog()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			f, st, err := openForum(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			log.Info().Str("db", cfg.Database.Type).Msg("connected to the database")

			if cfg.Seed.Pages {
				if _, err := f.Pages.Seed(ctx, cfg.Seed.Defaults); err != nil {
					return err
				}
			}

			h := forum.NewHandlers(f, forum.SessionOptions{
				Lifetime: cfg.Session.Lifetime,
				Secure:   cfg.Session.Secure,
			})
			svr := &http.Server{
				Addr:              cfg.HTTP.Addr,
				Handler:           h.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errc := make(chan error, 1)
			go func() {
				log.Info().Str("addr", cfg.HTTP.Addr).Msg("starting forum server")
				errc <- svr.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return svr.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().String("http.addr", ":8080", "Address to listen on")
	cmd.Flags().Bool("seed.pages", true, "Create the default pages on start")
	cmd.Flags().Bool("session.secure", false, "Mark the session cookie Secure (serve behind TLS)")
	return cmd
}

func newMigrateCmd(getCfg func() Config, getLog func() *zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getCfg()
			st, err := forum.OpenStore(cmd.Context(), cfg.Database.Type, cfg.Database.DSN)
			if err != nil {
				return err
			}
			defer st.Close()
			getLog().Info().Str("db", cfg.Database.Type).Msg("schema is up to date")
			return nil
		},
	}
}

func newSeedCmd(getCfg func() Config) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the default pages that do not exist yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getCfg()
			f, st, err := openForum(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			n, err := f.Pages.Seed(cmd.Context(), cfg.Seed.Defaults)
			if err != nil {
				return err
			}
			cmd.Printf("created %d page(s)\n", n)
			return nil
		},
	}
}

func newPromoteCmd(getCfg func() Config) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "promote <email>",
		Short: "Change the role of an existing user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, st, err := openForum(cmd.Context(), getCfg())
			if err != nil {
				return err
			}
			defer st.Close()
			if err := f.Accounts.SetRole(cmd.Context(), args[0], forum.Role(strings.ToUpper(role))); err != nil {
				return err
			}
			cmd.Printf("%s is now %s\n", args[0], role)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", string(forum.RoleAdmin), `Role to assign ("USER", "ADMIN")`)
	return cmd
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/diewo77/stockroom/internal/config"
	"github.com/diewo77/stockroom/internal/db"
	"github.com/diewo77/stockroom/internal/identity"
)

type cliState struct {
	cfgPath string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	st := &cliState{}
	root := &cobra.Command{
		Use:   "stockroom",
		Short: "Multi-tenant product and project inventory",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(st.cfgPath)
			if err != nil {
				return err
			}
			st.cfg = cfg
			slog.SetDefault(newLogger(cmd.ErrOrStderr(), cfg.App))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&st.cfgPath, "config", "", "config file path (default ./stockroom.yaml)")
	root.AddCommand(cmdServe(st), cmdMigrate(st), cmdSeed(st), cmdWhoami(st))
	return root
}

func (st *cliState) connect() (*gorm.DB, error) {
	conn, err := db.Connect(st.cfg.Database, st.cfg.App.Dev)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return conn, nil
}

func (st *cliState) seedOptions(demo bool) db.SeedOptions {
	return db.SeedOptions{AdminID: st.cfg.Auth.AdminID, AdminEmail: st.cfg.Auth.AdminEmail, Demo: demo}
}

func cmdMigrate(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := st.connect()
			if err != nil {
				return err
			}
			if err := db.Migrate(conn); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			slog.Info("migrations completed")
			return nil
		},
	}
}

func cmdSeed(st *cliState) *cobra.Command {
	var demo bool
	c := &cobra.Command{
		Use:   "seed",
		Short: "Create the bootstrap admin and optional demo catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := st.connect()
			if err != nil {
				return err
			}
			if err := db.Seed(conn, st.seedOptions(demo)); err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			slog.Info("seeding completed", "demo", demo)
			return nil
		},
	}
	c.Flags().BoolVar(&demo, "demo", false, "add an unowned demo catalog")
	return c
}

func cmdServe(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := st.cfg
			if err := cfg.Validate(); err != nil {
				return err
			}
			conn, err := st.connect()
			if err != nil {
				return err
			}
			if cfg.App.Migrations {
				if err := db.Migrate(conn); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				slog.Info("migrations completed")
			}
			if err := db.Seed(conn, st.seedOptions(cfg.App.Dev)); err != nil {
				return fmt.Errorf("seed: %w", err)
			}

			ident, err := identity.New(conn, cfg.Auth, cfg.Cache)
			if err != nil {
				return fmt.Errorf("identity: %w", err)
			}
			rc := NewRouterConfig(conn, ident.Authenticator, ident.Users, ident.Cache)

			srv := &http.Server{
				Addr:         ":" + cfg.Server.Port,
				Handler:      NewRouter(rc, cfg.Server.CORSOrigins),
				ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
				WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
				IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
			}
			return run(cmd.Context(), srv)
		},
	}
}

// run serves until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server stopped gracefully")
	return nil
}

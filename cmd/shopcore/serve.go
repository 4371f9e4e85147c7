package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	shopcore "github.com/MrEthical07/shopcore"
	"github.com/MrEthical07/shopcore/catalog/sqlsource"
	"github.com/MrEthical07/shopcore/database"
	"github.com/MrEthical07/shopcore/envconfig"
	"github.com/MrEthical07/shopcore/users"
	"github.com/spf13/cobra"
)

type serveOptions struct {
	addr            string
	shutdownTimeout time.Duration
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the auth and product HTTP API",
		Long: `serve exposes login, refresh, logout, the cached product listing and
admin product writes over HTTP. Accounts and products are read from DATABASE_URL (run "migrate up"
first); sessions and the catalog cache live in Redis, or an in-process
miniredis when REDIS_ADDR is empty.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := root.settings()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd.OutOrStdout(), s, opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", ":8080", "listen address")
	cmd.Flags().DurationVar(&opts.shutdownTimeout, "shutdown-timeout", 10*time.Second, "grace period for in-flight requests")
	return cmd
}

func runServe(ctx context.Context, out io.Writer, s *envconfig.Settings, opts *serveOptions) error {
	if s.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set")
	}
	if s.JWTSigningMethod == "hs256" && s.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	cfg, err := s.EngineConfig()
	if err != nil {
		return err
	}

	db, err := database.Open(ctx, s.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()

	client, cleanup, err := connectRedis(out, s)
	if err != nil {
		return err
	}
	defer cleanup()

	logger := log.New(out, "shopcore ", log.LstdFlags)
	accounts := users.New(db)
	b := shopcore.New().
		WithConfig(cfg).
		WithRedis(client).
		WithIdentityProvider(accounts).
		WithCatalogSource(sqlsource.New(db)).
		WithLogger(logger)
	if cfg.Audit.Enabled {
		b.WithAuditSink(shopcore.NewLoggerSink(logger))
	}
	engine, err := b.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	ln, err := net.Listen("tcp", opts.addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           newServer(engine, accounts),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	fmt.Fprintf(out, "listening on %s\n", ln.Addr())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

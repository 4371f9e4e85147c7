package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/shopcore/catalog/sqlsource"
	"github.com/MrEthical07/shopcore/database"
	"github.com/MrEthical07/shopcore/session/sqlstore"
	"github.com/MrEthical07/shopcore/users"
	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the tokens, products and users schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Create or upgrade the schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, opts, database.Up)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration (postgres only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, opts, database.Down)
		},
	})
	return cmd
}

func runMigrate(cmd *cobra.Command, opts *rootOptions, dir database.Direction) error {
	s, err := opts.settings()
	if err != nil {
		return err
	}
	if s.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set")
	}

	if database.DetectType(s.DatabaseURL) == database.TypePostgres {
		if err := database.Migrate(s.DatabaseURL, dir); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: done\n", dir)
		return nil
	}

	// SQLite has no migration history; up creates missing tables.
	if dir != database.Up {
		return fmt.Errorf("migrate %s is only supported on postgres", dir)
	}
	return createSQLiteSchema(cmd.Context(), s.DatabaseURL, cmd)
}

func createSQLiteSchema(ctx context.Context, dsn string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := database.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()

	if err := sqlstore.CreateSchema(ctx, db); err != nil {
		return fmt.Errorf("tokens schema: %w", err)
	}
	if err := sqlsource.CreateSchema(ctx, db); err != nil {
		return fmt.Errorf("products schema: %w", err)
	}
	if err := users.CreateSchema(ctx, db); err != nil {
		return fmt.Errorf("users schema: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "migrate up: sqlite tables ready")
	return nil
}

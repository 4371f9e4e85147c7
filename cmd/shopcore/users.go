package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	shopcore "github.com/MrEthical07/shopcore"
	"github.com/MrEthical07/shopcore/database"
	"github.com/MrEthical07/shopcore/session/sqlstore"
	"github.com/MrEthical07/shopcore/users"
	"github.com/spf13/cobra"
)

type addUserOptions struct {
	phone    string
	password string
	roles    string
}

func newUsersCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage login accounts",
	}

	add := &addUserOptions{}
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Register an account with an Argon2id password hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAddUser(cmd, root, add)
		},
	}
	addCmd.Flags().StringVar(&add.phone, "phone", "", "phone number used to log in")
	addCmd.Flags().StringVar(&add.password, "password", "", "plain password")
	addCmd.Flags().StringVar(&add.roles, "roles", "customer", "comma separated roles")
	_ = addCmd.MarkFlagRequired("phone")
	_ = addCmd.MarkFlagRequired("password")
	cmd.AddCommand(addCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "disable <id>",
		Short: "Block logins and refreshes for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id int64
			if _, err := fmt.Sscan(args[0], &id); err != nil || id <= 0 {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			return withAccounts(cmd.Context(), root, func(ctx context.Context, s *users.Store, _ *shopcore.Engine) error {
				if err := s.SetActive(ctx, id, false); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "user %d disabled\n", id)
				return nil
			})
		},
	})
	return cmd
}

func runAddUser(cmd *cobra.Command, root *rootOptions, opts *addUserOptions) error {
	var roles []string
	for _, r := range strings.Split(opts.roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return withAccounts(cmd.Context(), root, func(ctx context.Context, s *users.Store, engine *shopcore.Engine) error {
		hash, err := engine.HashPassword(opts.password)
		if err != nil {
			return err
		}
		id, err := s.Create(ctx, opts.phone, hash, roles)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "user %d created\n", id)
		return nil
	})
}

// withAccounts opens DATABASE_URL and builds an engine over the SQL
// session store, which is all account management needs.
func withAccounts(ctx context.Context, root *rootOptions, fn func(context.Context, *users.Store, *shopcore.Engine) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := root.settings()
	if err != nil {
		return err
	}
	if s.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set")
	}
	if s.JWTSigningMethod == "hs256" && s.JWTSecret == "" {
		// Only the password hasher is used here.
		if s.JWTSecret, err = randomSecret(); err != nil {
			return err
		}
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

	accounts := users.New(db)
	engine, err := shopcore.New().
		WithConfig(cfg).
		WithSessionStore(sqlstore.New(db)).
		WithIdentityProvider(accounts).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	return fn(ctx, accounts, engine)
}

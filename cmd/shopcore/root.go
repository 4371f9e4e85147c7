package main

import (
	"github.com/MrEthical07/shopcore/envconfig"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	envFile string
}

func (o *rootOptions) settings() (*envconfig.Settings, error) {
	return envconfig.Load(o.envFile)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "shopcore",
		Short: "shopcore - session and catalog cache tooling",
		Long: `shopcore manages the schema and accounts behind the session and catalog
stores, serves the HTTP API and drives load against a Redis-backed engine. Settings come from the
environment and an optional .env file.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "settings file (default .env, ignored when missing)")

	cmd.AddCommand(newMigrateCmd(opts))
	cmd.AddCommand(newLoadtestCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newUsersCmd(opts))
	return cmd
}

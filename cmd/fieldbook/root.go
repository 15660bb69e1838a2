// ABOUTME: Root cobra command and shared config loading for the fieldbook CLI
// ABOUTME: Every subcommand resolves its config through the --config flag or the default path

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/2389/fieldbook/internal/config"
)

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

// newRootCmd creates the root command for the fieldbook CLI.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "fieldbook",
		Short: "fieldbook - record keeping for agricultural plots",
		Long: `fieldbook stores plots and their history of field actions
(planting, fertilizing, watering, treatment, harvesting, soil readings)
behind stateless bearer-token authentication.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file path (default $FIELDBOOK_CONFIG or ~/.config/fieldbook/config.yaml)")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newInitCmd(opts))
	cmd.AddCommand(newHealthCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// resolveConfigPath returns the --config flag or the default location.
func (o *rootOptions) resolveConfigPath() string {
	if o.configPath != "" {
		return o.configPath
	}
	return config.DefaultPath()
}

// loadConfig loads the config file. When no --config was given and the
// default file does not exist, the environment alone is used.
func (o *rootOptions) loadConfig() (*config.Config, string, error) {
	path := o.resolveConfigPath()

	cfg, err := config.Load(path)
	if err == nil {
		return cfg, path, nil
	}
	if o.configPath == "" && errors.Is(err, fs.ErrNotExist) {
		cfg, envErr := config.FromEnv()
		if envErr != nil {
			return nil, "", fmt.Errorf("no config file at %s and environment is incomplete: %w", path, envErr)
		}
		return cfg, "(environment)", nil
	}
	return nil, "", fmt.Errorf("loading config: %w", err)
}

// newVersionCmd creates the version subcommand.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the fieldbook version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fieldbook %s\n", version)
		},
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

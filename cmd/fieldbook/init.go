// ABOUTME: init subcommand that writes a starter config with a random JWT secret
// ABOUTME: Emits YAML, or TOML when the target path ends in .toml

package main

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/2389/fieldbook/internal/config"
)

// initOptions holds flags for the init command.
type initOptions struct {
	force    bool
	httpAddr string
	dbPath   string
}

// newInitCmd creates the init subcommand.
func newInitCmd(opts *rootOptions) *cobra.Command {
	initOpts := &initOptions{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a new config file with a generated JWT secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd, opts, initOpts)
		},
	}

	cmd.Flags().BoolVar(&initOpts.force, "force", false, "overwrite an existing config file")
	cmd.Flags().StringVar(&initOpts.httpAddr, "http-addr", "127.0.0.1:8080", "HTTP listen address")
	cmd.Flags().StringVar(&initOpts.dbPath, "db", defaultDBPath(), "SQLite database path")

	return cmd
}

// defaultDBPath returns the database location.
// Priority: XDG_DATA_HOME/fieldbook > ~/.local/share/fieldbook
func defaultDBPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "fieldbook.db"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "fieldbook", "fieldbook.db")
}

// generateSecret returns 32 random bytes, base64 encoded.
func generateSecret() (string, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(secretBytes), nil
}

func runInit(cmd *cobra.Command, opts *rootOptions, initOpts *initOptions) error {
	out := cmd.OutOrStdout()
	path := opts.resolveConfigPath()

	if fileExists(path) && !initOpts.force {
		return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
	}

	secret, err := generateSecret()
	if err != nil {
		return err
	}

	cfg := config.Default()
	cfg.Server.HTTPAddr = initOpts.httpAddr
	cfg.Database.Path = initOpts.dbPath
	cfg.Auth.JWTSecret = secret
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := encodeConfig(path, cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	// The file holds the signing secret.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Fprintf(out, "  ✓ Created config: %s\n", path)
	green.Fprintf(out, "  ✓ Data directory: %s\n", dataDir)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "To start the server:")
	fmt.Fprintln(out, "  fieldbook serve")

	return nil
}

// encodeConfig renders cfg in the format implied by the file extension.
func encodeConfig(path string, cfg *config.Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# fieldbook configuration\n")
	buf.WriteString("# Generated by fieldbook init\n\n")

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, fmt.Errorf("encoding config: %w", err)
		}
		return buf.Bytes(), nil
	}

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return buf.Bytes(), nil
}

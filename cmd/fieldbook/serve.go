// ABOUTME: serve subcommand that prints the startup banner and runs the HTTP server
// ABOUTME: Blocks until SIGINT/SIGTERM, then shuts down gracefully

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/fieldbook/internal/config"
	"github.com/2389/fieldbook/internal/server"
)

const banner = `
  __ _      _     _ _                 _
 / _(_) ___| | __| | |__   ___   ___ | | __
| |_| |/ _ \ |/ _' | '_ \ / _ \ / _ \| |/ /
|  _| |  __/ | (_| | |_) | (_) | (_) |   <
|_| |_|\___|_|\__,_|_.__/ \___/ \___/|_|\_\
`

// newServeCmd creates the serve subcommand.
func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the fieldbook server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
}

func runServe(ctx context.Context, out io.Writer, opts *rootOptions) error {
	cyan := color.New(color.FgCyan)
	cyan.Fprint(out, banner)

	gray := color.New(color.FgHiBlack)
	gray.Fprintf(out, "    version: %s\n\n", version)

	cfg, configPath, err := opts.loadConfig()
	if err != nil {
		return err
	}

	logger, err := setupLogger(cfg.Logging, out)
	if err != nil {
		return err
	}

	printStartup(out, cfg, configPath)

	logger.Info("starting fieldbook",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"database", cfg.Database.Path,
	)

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return srv.Run(ctx)
}

// printStartup prints the resolved settings under the banner.
func printStartup(out io.Writer, cfg *config.Config, configPath string) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)

	line := func(label, value string) {
		green.Fprint(out, "    ▶ ")
		fmt.Fprintf(out, "%-10s %s\n", label+":", value)
	}

	line("Config", configPath)
	line("Database", cfg.Database.Path)
	if cfg.Tailscale.Enabled {
		green.Fprint(out, "    ▶ ")
		fmt.Fprintf(out, "%-10s ", "Tailscale:")
		cyan.Fprint(out, cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Fprint(out, " [funnel]")
		} else if cfg.Tailscale.HTTPS {
			gray.Fprint(out, " [https]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Fprint(out, " (ephemeral)")
		}
		fmt.Fprintln(out)
	} else {
		line("HTTP", cfg.Server.HTTPAddr)
	}
	if cfg.Metrics.Enabled {
		line("Metrics", cfg.Metrics.Path)
	}
	if cfg.Auth.AllowAnonymous {
		green.Fprint(out, "    ▶ ")
		yellow.Fprintln(out, "Anonymous plot reads enabled")
	}

	fmt.Fprintln(out)
}

// ABOUTME: health subcommand that checks a running fieldbook server
// ABOUTME: Checks /health, or /health/ready with --ready

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// newHealthCmd creates the health subcommand.
func newHealthCmd(opts *rootOptions) *cobra.Command {
	var ready bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the health of a running fieldbook server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHealth(cmd.Context(), cmd.OutOrStdout(), opts, ready)
		},
	}

	cmd.Flags().BoolVar(&ready, "ready", false, "also require the database to be reachable")

	return cmd
}

func runHealth(ctx context.Context, out io.Writer, opts *rootOptions, ready bool) error {
	cfg, _, err := opts.loadConfig()
	if err != nil {
		return err
	}

	path := "/health"
	if ready {
		path = "/health/ready"
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	url := fmt.Sprintf("http://%s%s", cfg.Server.HTTPAddr, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, body)
	}

	fmt.Fprintln(out, "healthy")
	return nil
}

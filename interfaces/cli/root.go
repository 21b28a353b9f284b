// Package cli implements mindoctl, the operator tool for inspecting and
// maintaining learners' graphs directly against the configured store.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mindo/infrastructure/config"
	"mindo/infrastructure/di"
)

var (
	userID string
	output string
)

var rootCmd = &cobra.Command{
	Use:           "mindoctl",
	Short:         "Operate on Mindo knowledge graphs",
	Long:          "mindoctl loads a learner's graph from the configured store and runs layout, decay and analytics jobs against it.",
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "learner whose graph to operate on")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "json", "output format: json or yaml")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(organizeCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(dueCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(tokenCmd)
}

// withContainer wires the application, runs fn and waits for the writes fn
// queued to reach the store
func withContainer(ctx context.Context, fn func(c *di.Container) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer cleanup()
	defer c.Logger.Sync() //nolint:errcheck

	runErr := fn(c)
	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if !c.Drain(drainCtx) {
		return fmt.Errorf("persistence did not finish within %s", cfg.ShutdownTimeout)
	}
	return runErr
}

func requireUser() error {
	if userID == "" {
		return fmt.Errorf("--user is required")
	}
	return nil
}

func render(w io.Writer, v interface{}) error {
	switch output {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format %q", output)
	}
}

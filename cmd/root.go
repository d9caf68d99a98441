// Package cmd defines and implements the CLI commands for the siteaudit
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/avalonreset/siteaudit/internal/config"
	"github.com/avalonreset/siteaudit/internal/logging"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "siteaudit",
		Short: "Full-site marketing and SEO audit tool.",
		Long: `siteaudit crawls a public website within a fixed page budget, scores it
across seven categories (technical, content, on-page, schema, performance,
images, AI readiness), runs its analysis tracks in parallel, and writes an
aggregated report with prioritized issues to the output directory.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default uses built-in defaults plus SITEAUDIT_* env vars)")

	cmd.AddCommand(newAuditCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// loadConfig reads configuration for a command invocation.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// buildLogger constructs the process logger from config.
func buildLogger(cfg config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

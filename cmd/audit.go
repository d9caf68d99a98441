package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/avalonreset/siteaudit/internal/audit"
	"github.com/avalonreset/siteaudit/internal/config"
	"github.com/avalonreset/siteaudit/internal/report"
)

type auditFlags struct {
	maxPages      int
	delayMs       int
	userAgent     string
	ignoreRobots  bool
	outputDir     string
	noTracks      bool
	workers       int
	trackTimeout  int
	disableTracks []string
	perfSource    string
	perfAPIKey    string
}

func newAuditCmd() *cobra.Command {
	flags := &auditFlags{}

	cmd := &cobra.Command{
		Use:   "audit <url>",
		Short: "Run a full audit against one site",
		Long: `Crawls the target site breadth-first within the page budget, honoring
robots.txt, then scores the site and runs the analysis tracks in parallel.
Artifacts land in a timestamped subdirectory of the output directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(cmd, args[0], flags)
		},
	}

	cmd.Flags().IntVar(&flags.maxPages, "max-pages", 0, "crawl page budget (overrides config)")
	cmd.Flags().IntVar(&flags.delayMs, "delay-ms", 0, "politeness delay between fetches in milliseconds")
	cmd.Flags().StringVar(&flags.userAgent, "user-agent", "", "User-Agent header for all requests")
	cmd.Flags().BoolVar(&flags.ignoreRobots, "ignore-robots", false, "crawl without consulting robots.txt")
	cmd.Flags().StringVar(&flags.outputDir, "output", "", "output directory for run artifacts")
	cmd.Flags().BoolVar(&flags.noTracks, "no-tracks", false, "skip the parallel analysis tracks")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "track worker pool size")
	cmd.Flags().IntVar(&flags.trackTimeout, "track-timeout", 0, "per-track timeout in seconds")
	cmd.Flags().StringSliceVar(&flags.disableTracks, "disable-track", nil, "track name to skip (repeatable)")
	cmd.Flags().StringVar(&flags.perfSource, "perf-source", "", "performance data source: auto, pagespeed, or off")
	cmd.Flags().StringVar(&flags.perfAPIKey, "perf-api-key", "", "PageSpeed API key")

	return cmd
}

func runAudit(cmd *cobra.Command, rawTarget string, flags *auditFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg = applyAuditFlags(cfg, cmd, flags)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	runner := audit.NewRunner(auditOptions(cfg), logger)
	result, runDir, err := runner.Run(cmd.Context(), rawTarget)
	if err != nil {
		return fmt.Errorf("audit %s: %w", rawTarget, err)
	}

	writer := report.NewWriter(logger)
	path, err := writer.Write(runDir, result)
	if err != nil {
		return fmt.Errorf("persist report: %w", err)
	}
	logger.Info("run artifacts saved", zap.String("audit_json", path))

	cmd.Println(report.Digest(result))
	cmd.Printf("Full report: %s\n", path)
	return nil
}

// applyAuditFlags overlays explicitly-set command flags on the loaded config.
func applyAuditFlags(cfg config.Config, cmd *cobra.Command, flags *auditFlags) config.Config {
	set := cmd.Flags().Changed
	if set("max-pages") {
		cfg.Crawl.MaxPages = flags.maxPages
	}
	if set("delay-ms") {
		cfg.Crawl.DelayMs = flags.delayMs
	}
	if set("user-agent") {
		cfg.Crawl.UserAgent = flags.userAgent
	}
	if set("ignore-robots") {
		cfg.Crawl.IgnoreRobots = flags.ignoreRobots
	}
	if set("output") {
		cfg.Output.Dir = flags.outputDir
	}
	if set("no-tracks") {
		cfg.Tracks.Enabled = !flags.noTracks
	}
	if set("workers") {
		cfg.Tracks.Workers = flags.workers
	}
	if set("track-timeout") {
		cfg.Tracks.TimeoutSeconds = flags.trackTimeout
	}
	if set("disable-track") {
		cfg.Tracks.Disabled = append(cfg.Tracks.Disabled, flags.disableTracks...)
	}
	if set("perf-source") {
		cfg.Perf.Source = flags.perfSource
	}
	if set("perf-api-key") {
		cfg.Perf.APIKey = flags.perfAPIKey
	}
	return cfg
}

func auditOptions(cfg config.Config) audit.Options {
	return audit.Options{
		UserAgent:     cfg.Crawl.UserAgent,
		MaxPages:      cfg.Crawl.MaxPages,
		Delay:         cfg.CrawlDelay(),
		IgnoreRobots:  cfg.Crawl.IgnoreRobots,
		FetchTimeout:  cfg.FetchTimeout(),
		MaxBodyBytes:  cfg.HTTP.MaxBodyBytes,
		TracksEnabled: cfg.Tracks.Enabled,
		TrackWorkers:  cfg.Tracks.Workers,
		TrackTimeout:  cfg.TrackTimeout(),
		TrackDisabled: cfg.TrackDisabled,
		PerfSource:    cfg.Perf.Source,
		PerfAPIKey:    cfg.Perf.APIKey,
		PerfEndpoint:  cfg.Perf.Endpoint,
		OutputDir:     cfg.Output.Dir,
	}
}

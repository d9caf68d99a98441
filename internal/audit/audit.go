// Package audit wires the full run: target resolution, robots policy,
// breadth-first crawl, root-path probes, scoring, issue prioritization, and
// the parallel analysis tracks.
package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avalonreset/siteaudit/internal/crawl"
	"github.com/avalonreset/siteaudit/internal/fetch"
	"github.com/avalonreset/siteaudit/internal/perf"
	"github.com/avalonreset/siteaudit/internal/robots"
	"github.com/avalonreset/siteaudit/internal/score"
	"github.com/avalonreset/siteaudit/internal/target"
	"github.com/avalonreset/siteaudit/internal/track"
)

const quickWinLimit = 5

// Options configures one audit Runner.
type Options struct {
	UserAgent    string
	MaxPages     int
	Delay        time.Duration
	IgnoreRobots bool

	FetchTimeout time.Duration
	MaxBodyBytes int64

	TracksEnabled bool
	TrackWorkers  int
	TrackTimeout  time.Duration
	TrackDisabled func(name string) bool

	PerfSource   string
	PerfAPIKey   string
	PerfEndpoint string

	OutputDir string

	// Lookup overrides DNS resolution for the public-address check. Nil
	// uses the system resolver.
	Lookup target.LookupFunc
}

// Report is the aggregated payload of one audit run.
type Report struct {
	RunID       string  `json:"run_id"`
	TargetURL   string  `json:"target_url"`
	StartedAt   string  `json:"started_at"`
	CompletedAt string  `json:"completed_at"`
	DurationSec float64 `json:"duration_sec"`

	Composite   float64          `json:"composite_score"`
	Grade       string           `json:"grade"`
	Band        string           `json:"band"`
	Scores      score.Set        `json:"scores"`
	NotMeasured []score.Category `json:"not_measured,omitempty"`

	Stats     Stats         `json:"stats"`
	Issues    []score.Issue `json:"issues"`
	QuickWins []score.Issue `json:"quick_wins"`

	Pages     []crawl.PageResult `json:"pages"`
	CrawlInfo crawl.Info         `json:"crawl_info"`

	Orchestration *track.OrchestrationResult `json:"orchestration,omitempty"`
}

// Runner executes audits. Safe for sequential reuse; each Run gets its own
// output directory.
type Runner struct {
	opts    Options
	logger  *zap.Logger
	checker *target.Checker
	client  *fetch.Client
	prober  *Prober
	perf    *perf.Provider
}

// NewRunner builds a Runner from Options. A nil logger is replaced with a
// no-op one.
func NewRunner(opts Options, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	checker := target.NewChecker(opts.Lookup)
	client := fetch.NewClient(fetch.Config{
		UserAgent:    opts.UserAgent,
		Timeout:      opts.FetchTimeout,
		MaxBodyBytes: opts.MaxBodyBytes,
	}, checker, logger)

	perfEnabled := opts.PerfSource == "auto" || opts.PerfSource == "pagespeed"
	provider := perf.NewProvider(perf.Config{
		APIKey:   opts.PerfAPIKey,
		Endpoint: opts.PerfEndpoint,
		Enabled:  perfEnabled,
	}, logger)

	return &Runner{
		opts:    opts,
		logger:  logger,
		checker: checker,
		client:  client,
		prober:  NewProber(client, logger),
		perf:    provider,
	}
}

// RunDir names the directory a run's artifacts land in.
func RunDir(outputDir, runID string, startedAt time.Time) string {
	return filepath.Join(outputDir, startedAt.UTC().Format("20060102-150405")+"-"+runID[:8])
}

// Run audits rawTarget end to end and returns the aggregated report plus the
// directory its track artifacts were written to. It fails only on an invalid
// or non-public target and on output-directory setup problems; everything
// downstream degrades into the report instead.
func (r *Runner) Run(ctx context.Context, rawTarget string) (*Report, string, error) {
	startedAt := time.Now()

	t, err := target.Resolve(rawTarget)
	if err != nil {
		return nil, "", err
	}
	startURL := t.String()

	if !r.checker.IsPublic(ctx, startURL) {
		return nil, "", fmt.Errorf("target %s: %w", startURL, fetch.ErrSSRFRejected)
	}

	runID := uuid.NewString()
	runDir := RunDir(r.opts.OutputDir, runID, startedAt)
	if err := os.MkdirAll(runDir, 0o750); err != nil {
		return nil, "", fmt.Errorf("create run directory: %w", err)
	}

	r.logger.Info("audit started",
		zap.String("run_id", runID),
		zap.String("target", startURL),
		zap.Int("max_pages", r.opts.MaxPages),
	)

	var policy *robots.Policy
	if !r.opts.IgnoreRobots {
		policy = robots.Build(ctx, r.client, t, r.opts.UserAgent, r.logger)
	}

	engine := crawl.NewEngine(r.client, policy, crawl.Config{
		MaxPages:  r.opts.MaxPages,
		Delay:     r.opts.Delay,
		UserAgent: r.opts.UserAgent,
	}, r.logger)
	pages, info := engine.Run(ctx, t)

	probes := ProbeResults{
		Robots:  r.prober.Exists(ctx, startURL, "/robots.txt"),
		Sitemap: r.prober.Exists(ctx, startURL, "/sitemap.xml"),
		LLMs:    r.prober.Exists(ctx, startURL, "/llms.txt"),
	}
	security := r.prober.SecurityHeaders(ctx, startURL)
	assessment := r.perf.Assess(ctx, startURL)

	scores, stats, rawIssues := Compute(pages, startURL, info, probes, security, assessment)
	composite, notMeasured := score.Aggregate(scores)

	report := &Report{
		RunID:       runID,
		TargetURL:   startURL,
		StartedAt:   startedAt.UTC().Format(time.RFC3339),
		Composite:   composite,
		Grade:       score.Grade(composite),
		Band:        score.Band(composite),
		Scores:      scores,
		NotMeasured: notMeasured,
		Stats:       stats,
		Issues:      score.Prioritize(rawIssues),
		QuickWins:   score.QuickWins(rawIssues, quickWinLimit),
		Pages:       pages,
		CrawlInfo:   info,
	}

	if r.opts.TracksEnabled {
		data := trackData{
			pages:    pages,
			stats:    stats,
			scores:   scores,
			sitemaps: policy.Sitemaps(),
		}
		tracks := buildTracks(data, filepath.Join(runDir, "tracks"), r.opts.TrackDisabled)
		orch := track.NewOrchestrator(track.Config{
			Workers:      r.opts.TrackWorkers,
			TrackTimeout: r.opts.TrackTimeout,
		}, r.logger)
		result, err := orch.Run(ctx, startURL, tracks)
		if err != nil {
			return nil, "", fmt.Errorf("track setup: %w", err)
		}
		if _, err := track.WriteRunSummary(runDir, result); err != nil {
			r.logger.Warn("failed to persist orchestration summary", zap.Error(err))
		}
		report.Orchestration = &result
	}

	report.CompletedAt = time.Now().UTC().Format(time.RFC3339)
	report.DurationSec = round2(time.Since(startedAt).Seconds())

	r.logger.Info("audit completed",
		zap.String("run_id", runID),
		zap.Float64("composite", composite),
		zap.String("grade", report.Grade),
		zap.Int("pages", len(pages)),
		zap.Int("issues", len(report.Issues)),
	)
	return report, runDir, nil
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

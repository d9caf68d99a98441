package track

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config controls Orchestrator behavior. TrackTimeout is an explicit policy
// value; it is never derived from other timeouts.
type Config struct {
	Workers      int
	TrackTimeout time.Duration
}

// Orchestrator fans the fixed track menu out over a bounded worker pool and
// collects one Result per track.
type Orchestrator struct {
	cfg    Config
	logger *zap.Logger
}

// NewOrchestrator builds an Orchestrator.
func NewOrchestrator(cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 7
	}
	if cfg.TrackTimeout <= 0 {
		cfg.TrackTimeout = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{cfg: cfg, logger: logger}
}

// Run executes every track and reports per-track outcomes. Completion order
// is non-deterministic but the returned Tracks slice is always in submission
// order. The only error this returns is host-level setup failure; failing
// tracks are reported, not raised.
func (o *Orchestrator) Run(ctx context.Context, targetURL string, tracks []Track) (OrchestrationResult, error) {
	started := time.Now().UTC()

	for _, tr := range tracks {
		if err := os.MkdirAll(tr.OutputDir, 0o750); err != nil {
			return OrchestrationResult{}, fmt.Errorf("create track output dir %s: %w", tr.OutputDir, err)
		}
	}

	results := make([]Result, len(tracks))
	jobs := make(chan int)
	var wg sync.WaitGroup

	workers := o.cfg.Workers
	if len(tracks) < workers {
		workers = len(tracks)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = o.runTrack(ctx, targetURL, tracks[idx])
			}
		}()
	}
	for idx := range tracks {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	completed := time.Now().UTC()
	out := OrchestrationResult{
		StartedAt:    started.Format(time.RFC3339),
		CompletedAt:  completed.Format(time.RFC3339),
		TotalTracks:  len(results),
		FailedTracks: []string{},
		Tracks:       results,
	}
	for _, r := range results {
		if r.Status == StatusOK {
			out.SuccessCount++
		} else {
			out.FailedTracks = append(out.FailedTracks, r.Name)
		}
	}
	return out, nil
}

type trackOutcome struct {
	summary Summary
	err     error
}

func (o *Orchestrator) runTrack(ctx context.Context, targetURL string, tr Track) Result {
	started := time.Now()
	result := Result{
		Name:      tr.Name,
		Status:    StatusFailed,
		OutputDir: tr.OutputDir,
	}

	trackCtx, cancel := context.WithTimeout(ctx, o.cfg.TrackTimeout)
	defer cancel()

	tail := newTailBuffer(20)
	req := Request{
		TargetURL: targetURL,
		OutputDir: tr.OutputDir,
		log:       tail,
	}

	done := make(chan trackOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- trackOutcome{err: fmt.Errorf("track panic: %v", r)}
			}
		}()
		summary, err := tr.Runner.Run(trackCtx, req)
		done <- trackOutcome{summary: summary, err: err}
	}()

	var outcome trackOutcome
	select {
	case outcome = <-done:
	case <-trackCtx.Done():
		// The goroutine is abandoned, not killed; well-behaved runners
		// observe the cancelled context and unwind on their own.
		result.Reason = "timeout"
		result.DurationSec = round2(time.Since(started).Seconds())
		result.OutputTail = tail.String()
		o.logger.Warn("track timed out", zap.String("track", tr.Name), zap.Duration("timeout", o.cfg.TrackTimeout))
		return result
	}

	result.DurationSec = round2(time.Since(started).Seconds())
	result.OutputTail = tail.String()

	if outcome.err != nil {
		result.Reason = outcome.err.Error()
		o.logger.Warn("track failed", zap.String("track", tr.Name), zap.Error(outcome.err))
		return result
	}

	result.Status = StatusOK
	result.Metrics = outcome.summary
	if path, err := writeSummary(tr.OutputDir, outcome.summary); err != nil {
		o.logger.Warn("track summary write failed", zap.String("track", tr.Name), zap.Error(err))
	} else {
		result.SummaryPath = path
	}
	o.logger.Info("track completed",
		zap.String("track", tr.Name),
		zap.Float64("duration_sec", result.DurationSec),
	)
	return result
}

// WriteRunSummary persists the run-level orchestration report next to the
// per-track directories.
func WriteRunSummary(dir string, result OrchestrationResult) (string, error) {
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal orchestration summary: %w", err)
	}
	path := filepath.Join(dir, "ORCHESTRATION-SUMMARY.json")
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return "", fmt.Errorf("write orchestration summary: %w", err)
	}
	return path, nil
}

func writeSummary(dir string, summary Summary) (string, error) {
	if summary == nil {
		summary = Summary{}
	}
	payload, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}
	path := filepath.Join(dir, "SUMMARY.json")
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}
	return path, nil
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

// tailBuffer keeps the last n non-empty lines written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	lines []string
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) append(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
	if len(b.lines) > b.limit {
		b.lines = b.lines[len(b.lines)-b.limit:]
	}
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.lines, "\n")
}

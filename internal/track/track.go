// Package track runs the audit's independent analysis tracks under a bounded
// worker pool. Tracks are isolated units of work: one track failing, hanging,
// or panicking never disturbs its siblings.
package track

import (
	"context"
	"fmt"
)

// Status classifies a finished track.
type Status string

// Track statuses recorded in results.
const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Request is what a track receives when launched.
type Request struct {
	TargetURL string
	OutputDir string

	log *tailBuffer
}

// Logf records a diagnostic line for this track. The orchestrator keeps only
// a bounded tail and surfaces it on the track's Result so failures can be
// investigated without re-running the audit.
func (r Request) Logf(format string, args ...any) {
	if r.log != nil {
		r.log.append(fmt.Sprintf(format, args...))
	}
}

// Summary is the opaque key→value bag a track chooses to report back. The
// orchestrator stores it verbatim and never interprets it.
type Summary map[string]any

// Runner executes one analysis track. Implementations must honor ctx
// cancellation on their blocking operations; the orchestrator's timeout is a
// reporting boundary, not a forceful kill.
type Runner interface {
	Run(ctx context.Context, req Request) (Summary, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, req Request) (Summary, error)

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, req Request) (Summary, error) {
	return f(ctx, req)
}

// Track is one named entry in the fixed orchestration menu.
type Track struct {
	Name      string
	OutputDir string
	Runner    Runner
}

// Result records the outcome of one track. Produced exactly once and
// written to disk immediately; tracks are never retried automatically.
type Result struct {
	Name        string  `json:"name"`
	Status      Status  `json:"status"`
	Reason      string  `json:"reason,omitempty"`
	DurationSec float64 `json:"duration_sec"`
	OutputDir   string  `json:"output_dir"`
	SummaryPath string  `json:"summary_path,omitempty"`
	Metrics     Summary `json:"summary_metrics,omitempty"`
	OutputTail  string  `json:"output_tail,omitempty"`
}

// OrchestrationResult is the run-level report. Partial failure is a
// first-class outcome, never an error.
type OrchestrationResult struct {
	StartedAt    string   `json:"started_at"`
	CompletedAt  string   `json:"completed_at"`
	TotalTracks  int      `json:"total_tracks"`
	SuccessCount int      `json:"success_count"`
	FailedTracks []string `json:"failed_tracks"`
	Tracks       []Result `json:"tracks"`
}

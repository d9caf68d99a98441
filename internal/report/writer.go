// Package report persists the aggregated audit payload and a short
// plain-text digest to the run directory.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/avalonreset/siteaudit/internal/audit"
	"github.com/avalonreset/siteaudit/internal/score"
)

// AuditFileName is the machine-readable payload file.
const AuditFileName = "audit.json"

// DigestFileName is the human-readable companion.
const DigestFileName = "DIGEST.txt"

// Writer saves run artifacts under a run directory.
type Writer struct {
	logger *zap.Logger
}

// NewWriter builds a Writer.
func NewWriter(logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{logger: logger}
}

// Write persists the report into runDir and returns the audit.json path.
func (w *Writer) Write(runDir string, report *audit.Report) (string, error) {
	if report == nil {
		return "", fmt.Errorf("nil report")
	}
	if err := os.MkdirAll(runDir, 0o750); err != nil {
		return "", fmt.Errorf("create report dir %s: %w", runDir, err)
	}

	auditPath := filepath.Join(runDir, AuditFileName)
	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(auditPath, payload, 0o600); err != nil {
		return "", fmt.Errorf("write report %s: %w", auditPath, err)
	}

	digestPath := filepath.Join(runDir, DigestFileName)
	if err := os.WriteFile(digestPath, []byte(Digest(report)), 0o600); err != nil {
		return "", fmt.Errorf("write digest %s: %w", digestPath, err)
	}

	w.logger.Info("report written",
		zap.String("path", auditPath),
		zap.Float64("composite", report.Composite),
		zap.String("grade", report.Grade),
	)
	return auditPath, nil
}

// Digest renders the report as a short terminal-friendly summary.
func Digest(report *audit.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Site audit: %s\n", report.TargetURL)
	fmt.Fprintf(&b, "Run %s at %s\n\n", report.RunID, report.StartedAt)
	fmt.Fprintf(&b, "Composite score: %.1f (%s, %s)\n\n", report.Composite, report.Grade, report.Band)

	for _, cat := range score.AllCategories() {
		v, ok := report.Scores[cat]
		if !ok || v == nil {
			fmt.Fprintf(&b, "  %-26s not measured\n", score.Labels[cat])
			continue
		}
		fmt.Fprintf(&b, "  %-26s %5.1f\n", score.Labels[cat], *v)
	}

	fmt.Fprintf(&b, "\nPages crawled: %d (%d HTML, %d errors, %d skipped by robots)\n",
		report.Stats.PagesTotal, report.Stats.PagesHTML, report.CrawlInfo.FetchErrors, report.CrawlInfo.SkippedByRobots)

	if report.Orchestration != nil {
		fmt.Fprintf(&b, "Tracks: %d/%d succeeded", report.Orchestration.SuccessCount, report.Orchestration.TotalTracks)
		if len(report.Orchestration.FailedTracks) > 0 {
			fmt.Fprintf(&b, " (failed: %s)", strings.Join(report.Orchestration.FailedTracks, ", "))
		}
		b.WriteString("\n")
	}

	if len(report.Issues) > 0 {
		fmt.Fprintf(&b, "\nTop issues:\n")
		limit := len(report.Issues)
		if limit > 5 {
			limit = 5
		}
		for _, issue := range report.Issues[:limit] {
			fmt.Fprintf(&b, "  [%s] %s: %s\n", issue.Severity, issue.Category, issue.Title)
		}
	}
	if len(report.QuickWins) > 0 {
		fmt.Fprintf(&b, "\nQuick wins:\n")
		for _, issue := range report.QuickWins {
			fmt.Fprintf(&b, "  - %s (effort %s, lift %s)\n", issue.Title, issue.Effort, issue.ExpectedLift)
		}
	}
	return b.String()
}

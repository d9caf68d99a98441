package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avalonreset/siteaudit/internal/audit"
	"github.com/avalonreset/siteaudit/internal/crawl"
	"github.com/avalonreset/siteaudit/internal/score"
	"github.com/avalonreset/siteaudit/internal/track"
)

func sampleReport() *audit.Report {
	return &audit.Report{
		RunID:     "3f6c2e1a-0000-0000-0000-000000000000",
		TargetURL: "https://example.com/",
		StartedAt: "2026-08-25T10:00:00Z",
		Composite: 72.4,
		Grade:     "C",
		Band:      "Good",
		Scores: score.Set{
			score.Technical: score.Value(80),
			score.Content:   score.Value(65),
		},
		NotMeasured: []score.Category{score.Performance},
		Stats:       audit.Stats{PagesTotal: 12, PagesHTML: 10},
		Issues: []score.Issue{
			{Severity: score.SeverityCritical, Category: "Technical SEO", Title: "HTTP errors during crawl"},
			{Severity: score.SeverityMedium, Category: "Crawl Control", Title: "Missing sitemap.xml", Effort: score.EffortLow, ExpectedLift: score.LiftMedium},
		},
		QuickWins: []score.Issue{
			{Severity: score.SeverityMedium, Title: "Missing sitemap.xml", Effort: score.EffortLow, ExpectedLift: score.LiftMedium},
		},
		Pages:     []crawl.PageResult{{URL: "https://example.com/"}},
		CrawlInfo: crawl.Info{Visited: 12},
		Orchestration: &track.OrchestrationResult{
			TotalTracks:  7,
			SuccessCount: 6,
			FailedTracks: []string{"geo"},
		},
	}
}

func TestWriterPersistsPayloadAndDigest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w := NewWriter(zap.NewNop())

	path, err := w.Write(dir, sampleReport())
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, AuditFileName), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded audit.Report
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, "https://example.com/", decoded.TargetURL)
	require.InDelta(t, 72.4, decoded.Composite, 0.001)
	require.Len(t, decoded.Issues, 2)
	require.NotNil(t, decoded.Scores[score.Technical])

	require.FileExists(t, filepath.Join(dir, DigestFileName))
}

func TestWriterRejectsNilReport(t *testing.T) {
	t.Parallel()

	w := NewWriter(nil)
	_, err := w.Write(t.TempDir(), nil)
	require.Error(t, err)
}

func TestDigestContents(t *testing.T) {
	t.Parallel()

	text := Digest(sampleReport())
	require.Contains(t, text, "Composite score: 72.4 (C, Good)")
	require.Contains(t, text, "Technical SEO")
	require.Contains(t, text, "not measured")
	require.Contains(t, text, "Tracks: 6/7 succeeded (failed: geo)")
	require.Contains(t, text, "[Critical] Technical SEO: HTTP errors during crawl")
	require.Contains(t, text, "Quick wins:")
}

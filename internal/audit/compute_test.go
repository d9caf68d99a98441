package audit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avalonreset/siteaudit/internal/crawl"
	"github.com/avalonreset/siteaudit/internal/perf"
	"github.com/avalonreset/siteaudit/internal/score"
)

func intPtr(v int) *int        { return &v }
func msPtr(v float64) *float64 { return &v }

func fixturePages() []crawl.PageResult {
	return []crawl.PageResult{
		{
			URL:             "https://example.com/",
			StatusCode:      intPtr(200),
			ResponseMs:      msPtr(100),
			Title:           "Premium Widgets and Industrial Tooling",
			MetaDescription: "A catalog of industrial widgets, tooling, and accessories for manufacturers.",
			Canonical:       "https://example.com/",
			H1Count:         1,
			WordCount:       500,
			SchemaCount:     1,
			ImageCount:      2,
			InternalLinks: []string{
				"https://example.com/about",
				"https://example.com/catalog",
				"https://example.com/contact",
			},
			IsHTML: true,
		},
		{
			URL:             "https://example.com/landing",
			StatusCode:      intPtr(200),
			ResponseMs:      msPtr(200),
			MetaRobots:      "noindex, nofollow",
			WordCount:       100,
			ImageCount:      2,
			MissingAltCount: 2,
			InternalLinks:   []string{"https://example.com/"},
			IsHTML:          true,
		},
		{
			URL:        "https://example.com/broken",
			FetchError: "connection reset",
		},
		{
			URL:        "https://example.com/gone",
			StatusCode: intPtr(404),
			ResponseMs: msPtr(300),
		},
	}
}

func fixtureInputs() (ProbeResults, SecurityReport, perf.Assessment) {
	probes := ProbeResults{Robots: true, Sitemap: false, LLMs: false}
	security := SecurityReport{
		Status:   "ok",
		Present:  []string{"strict-transport-security", "x-content-type-options"},
		Missing:  []string{"content-security-policy", "x-frame-options", "referrer-policy"},
		FinalURL: "https://example.com/",
	}
	assessment := perf.Assessment{Status: perf.StatusUnavailable, Source: "pagespeed", Reason: "HTTP 403"}
	return probes, security, assessment
}

func TestComputeCategoryScores(t *testing.T) {
	t.Parallel()

	probes, security, assessment := fixtureInputs()
	scores, stats, _ := Compute(fixturePages(), "https://example.com/", crawl.Info{}, probes, security, assessment)

	require.NotNil(t, scores[score.Technical])
	require.InDelta(t, 55.0, *scores[score.Technical], 0.01)
	require.InDelta(t, 71.0, *scores[score.Content], 0.01)
	require.InDelta(t, 63.0, *scores[score.OnPage], 0.01)
	require.InDelta(t, 75.0, *scores[score.Schema], 0.01)
	require.InDelta(t, 65.0, *scores[score.Images], 0.01)
	require.InDelta(t, 59.0, *scores[score.AIReadiness], 0.01)
	require.InDelta(t, 96.0, *scores[score.Performance], 0.01)

	require.Equal(t, 4, stats.PagesTotal)
	require.Equal(t, 3, stats.PagesSuccessful)
	require.Equal(t, 2, stats.PagesHTML)
	require.Equal(t, 2, stats.ErrorPages)
	require.Equal(t, 1, stats.Status4xx)
	require.Equal(t, 1, stats.NoindexPages)
	require.Equal(t, 1, stats.ThinPages)
	require.Equal(t, 4, stats.TotalImages)
	require.Equal(t, 2, stats.MissingAlt)
	require.Equal(t, "proxy", stats.PerformanceSource)
	require.True(t, stats.AboutOrContactLinks)
	require.NotNil(t, stats.MedianResponseMs)
	require.InDelta(t, 200.0, *stats.MedianResponseMs, 0.01)
}

func TestComputeIssueSelection(t *testing.T) {
	t.Parallel()

	probes, security, assessment := fixtureInputs()
	_, _, issues := Compute(fixturePages(), "https://example.com/", crawl.Info{}, probes, security, assessment)

	titles := make(map[string]score.Issue, len(issues))
	for _, issue := range issues {
		titles[issue.Title] = issue
	}

	require.Contains(t, titles, "HTTP errors during crawl")
	require.Equal(t, score.SeverityCritical, titles["HTTP errors during crawl"].Severity)
	require.Contains(t, titles["HTTP errors during crawl"].Detail, "1x 4xx")

	require.Contains(t, titles, "Noindex directives detected")
	require.Equal(t, score.SeverityHigh, titles["Noindex directives detected"].Severity)
	require.Equal(t, []string{"https://example.com/landing"}, titles["Noindex directives detected"].Evidence)

	require.Contains(t, titles, "Missing title tags")
	require.Contains(t, titles, "Missing meta descriptions")
	require.Contains(t, titles, "Missing sitemap.xml")
	require.Contains(t, titles, "Missing llms.txt")
	require.Contains(t, titles, "Images missing alt text")
	require.Contains(t, titles, "Live performance API data unavailable")

	require.Contains(t, titles, "Missing security headers")
	require.Equal(t, score.SeverityHigh, titles["Missing security headers"].Severity)

	require.NotContains(t, titles, "Missing robots.txt")
	require.NotContains(t, titles, "Thin content footprint")
	require.NotContains(t, titles, "No HTML pages crawled")
}

func TestComputeWithoutHTMLPages(t *testing.T) {
	t.Parallel()

	pages := []crawl.PageResult{
		{URL: "https://example.com/data.json", StatusCode: intPtr(200), ResponseMs: msPtr(120)},
	}
	probes := ProbeResults{Robots: true, Sitemap: true, LLMs: true}
	security := SecurityReport{Status: "ok", FinalURL: "https://example.com/"}

	scores, stats, issues := Compute(pages, "https://example.com/", crawl.Info{}, probes, security, perf.Assessment{Status: perf.StatusDisabled})

	require.NotNil(t, scores[score.Technical])
	require.Nil(t, scores[score.Content])
	require.Nil(t, scores[score.OnPage])
	require.Nil(t, scores[score.Schema])
	require.Nil(t, scores[score.Images])
	require.Nil(t, scores[score.AIReadiness])
	require.NotNil(t, scores[score.Performance])
	require.Equal(t, 0, stats.PagesHTML)

	var found bool
	for _, issue := range issues {
		if issue.Title == "No HTML pages crawled" {
			found = true
		}
	}
	require.True(t, found)
}

func TestComputePerformancePrefersAssessment(t *testing.T) {
	t.Parallel()

	probes, security, _ := fixtureInputs()
	composite := 88.0
	assessment := perf.Assessment{Status: perf.StatusOK, Source: "pagespeed", CompositeScore: &composite}

	scores, stats, _ := Compute(fixturePages(), "https://example.com/", crawl.Info{}, probes, security, assessment)

	require.InDelta(t, 88.0, *scores[score.Performance], 0.01)
	require.Equal(t, "pagespeed", stats.PerformanceSource)
}

func TestComputeSlowSiteProxyScore(t *testing.T) {
	t.Parallel()

	pages := []crawl.PageResult{
		{URL: "https://example.com/", StatusCode: intPtr(200), ResponseMs: msPtr(1200), IsHTML: true, Title: "t", H1Count: 1, WordCount: 400},
		{URL: "https://example.com/slow", StatusCode: intPtr(200), ResponseMs: msPtr(3000), IsHTML: true, Title: "u", H1Count: 1, WordCount: 400},
	}
	probes := ProbeResults{Robots: true, Sitemap: true, LLMs: true}

	scores, _, _ := Compute(pages, "https://example.com/", crawl.Info{}, probes, SecurityReport{Status: "ok"}, perf.Assessment{Status: perf.StatusDisabled})

	// Median 2100ms lands in the 52 bucket; p90 above 2500ms costs 8 more.
	require.InDelta(t, 44.0, *scores[score.Performance], 0.01)
}

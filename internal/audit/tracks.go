package audit

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/avalonreset/siteaudit/internal/crawl"
	"github.com/avalonreset/siteaudit/internal/score"
	"github.com/avalonreset/siteaudit/internal/track"
)

// TrackNames is the fixed orchestration menu, in submission order.
var TrackNames = []string{"technical", "content", "schema", "sitemap", "images", "page", "geo"}

// trackData is the shared read-only input every track runner works from.
// Runners never mutate it.
type trackData struct {
	pages    []crawl.PageResult
	stats    Stats
	scores   score.Set
	sitemaps []string
}

// buildTracks assembles the menu for one run, skipping disabled names.
// Each track gets its own subdirectory under outputRoot.
func buildTracks(data trackData, outputRoot string, disabled func(string) bool) []track.Track {
	runners := map[string]track.Runner{
		"technical": track.RunnerFunc(data.runTechnical),
		"content":   track.RunnerFunc(data.runContent),
		"schema":    track.RunnerFunc(data.runSchema),
		"sitemap":   track.RunnerFunc(data.runSitemap),
		"images":    track.RunnerFunc(data.runImages),
		"page":      track.RunnerFunc(data.runPage),
		"geo":       track.RunnerFunc(data.runGeo),
	}

	tracks := make([]track.Track, 0, len(TrackNames))
	for _, name := range TrackNames {
		if disabled != nil && disabled(name) {
			continue
		}
		tracks = append(tracks, track.Track{
			Name:      name,
			OutputDir: filepath.Join(outputRoot, name),
			Runner:    runners[name],
		})
	}
	return tracks
}

func (d trackData) runTechnical(ctx context.Context, req track.Request) (track.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req.Logf("technical: %d error pages across %d crawled URLs", d.stats.ErrorPages, d.stats.PagesTotal)
	return track.Summary{
		"score":                    scoreOrNil(d.scores, score.Technical),
		"error_pages":              d.stats.ErrorPages,
		"status_4xx":               d.stats.Status4xx,
		"status_5xx":               d.stats.Status5xx,
		"long_redirects":           d.stats.LongRedirects,
		"missing_canonical":        d.stats.MissingCanonical,
		"noindex_pages":            d.stats.NoindexPages,
		"security_headers_missing": d.stats.SecurityHeaders.Missing,
	}, nil
}

func (d trackData) runContent(ctx context.Context, req track.Request) (track.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.stats.PagesHTML == 0 {
		return nil, fmt.Errorf("no HTML pages to analyze")
	}
	req.Logf("content: %d/%d pages under %d words", d.stats.ThinPages, d.stats.PagesHTML, thinWordThreshold)
	return track.Summary{
		"score":             scoreOrNil(d.scores, score.Content),
		"pages_html":        d.stats.PagesHTML,
		"thin_pages":        d.stats.ThinPages,
		"duplicate_titles":  d.stats.DuplicateTitles,
		"invalid_h1":        d.stats.InvalidH1,
		"word_count_p25":    d.stats.WordCountP25,
		"word_count_median": d.stats.WordCountMedian,
		"word_count_p75":    d.stats.WordCountP75,
	}, nil
}

func (d trackData) runSchema(ctx context.Context, req track.Request) (track.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.stats.PagesHTML == 0 {
		return nil, fmt.Errorf("no HTML pages to analyze")
	}
	coverage := float64(d.stats.SchemaPages) / float64(d.stats.PagesHTML) * 100
	req.Logf("schema: %d/%d pages carry JSON-LD", d.stats.SchemaPages, d.stats.PagesHTML)
	return track.Summary{
		"score":            scoreOrNil(d.scores, score.Schema),
		"schema_pages":     d.stats.SchemaPages,
		"coverage_percent": round1(coverage),
		"missing_examples": d.stats.ExampleURLs["missing_schema"],
	}, nil
}

func (d trackData) runSitemap(ctx context.Context, req track.Request) (track.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req.Logf("sitemap: robots=%t sitemap=%t llms=%t", d.stats.RobotsOK, d.stats.SitemapOK, d.stats.LLMsOK)
	return track.Summary{
		"robots_ok":          d.stats.RobotsOK,
		"sitemap_ok":         d.stats.SitemapOK,
		"llms_ok":            d.stats.LLMsOK,
		"declared_sitemaps":  d.sitemaps,
		"skipped_by_robots":  d.stats.SkippedByRobots,
		"crawl_fetch_errors": d.stats.FetchErrors,
	}, nil
}

func (d trackData) runImages(ctx context.Context, req track.Request) (track.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	altCoverage := 100.0
	if d.stats.TotalImages > 0 {
		altCoverage = float64(d.stats.TotalImages-d.stats.MissingAlt) / float64(d.stats.TotalImages) * 100
	}
	req.Logf("images: %d/%d missing alt text", d.stats.MissingAlt, d.stats.TotalImages)
	return track.Summary{
		"score":                scoreOrNil(d.scores, score.Images),
		"total_images":         d.stats.TotalImages,
		"missing_alt":          d.stats.MissingAlt,
		"alt_coverage_percent": round1(altCoverage),
		"worst_pages":          d.stats.ExampleURLs["alt_missing"],
	}, nil
}

func (d trackData) runPage(ctx context.Context, req track.Request) (track.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.stats.PagesHTML == 0 {
		return nil, fmt.Errorf("no HTML pages to analyze")
	}
	req.Logf("page: %d missing titles, %d missing meta descriptions", d.stats.MissingTitle, d.stats.MissingMeta)
	return track.Summary{
		"score":         scoreOrNil(d.scores, score.OnPage),
		"missing_title": d.stats.MissingTitle,
		"missing_meta":  d.stats.MissingMeta,
		"short_titles":  d.stats.ShortTitles,
		"long_titles":   d.stats.LongTitles,
		"short_meta":    d.stats.ShortMeta,
		"long_meta":     d.stats.LongMeta,
	}, nil
}

// localePattern matches a leading language or language-region path segment,
// e.g. /en/, /fr/, /en-us/, /pt_BR/.
var localePattern = regexp.MustCompile(`^/([a-z]{2}(?:[-_][a-zA-Z]{2})?)(?:/|$)`)

func (d trackData) runGeo(ctx context.Context, req track.Request) (track.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	locales := make(map[string]int)
	for _, p := range d.pages {
		if !p.OK() || !p.IsHTML {
			continue
		}
		if loc := localeFromURL(p.URL); loc != "" {
			locales[loc]++
		}
		for _, link := range p.InternalLinks {
			if loc := localeFromURL(link); loc != "" {
				locales[loc]++
			}
		}
	}
	names := make([]string, 0, len(locales))
	for loc := range locales {
		names = append(names, loc)
	}
	sort.Strings(names)
	req.Logf("geo: %d locale path prefixes detected", len(names))
	return track.Summary{
		"locales_detected": names,
		"multi_locale":     len(names) > 1,
	}, nil
}

func localeFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	m := localePattern.FindStringSubmatch(u.Path)
	if m == nil {
		return ""
	}
	return strings.ToLower(strings.ReplaceAll(m[1], "_", "-"))
}

func scoreOrNil(scores score.Set, cat score.Category) any {
	if v, ok := scores[cat]; ok && v != nil {
		return *v
	}
	return nil
}

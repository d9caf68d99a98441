package audit

import (
	"fmt"
	"math"
	"net/url"
	"sort"
	"strings"

	"github.com/avalonreset/siteaudit/internal/crawl"
	"github.com/avalonreset/siteaudit/internal/perf"
	"github.com/avalonreset/siteaudit/internal/score"
)

const (
	thinWordThreshold = 300
	evidenceLimit     = 8
)

// ProbeResults holds the well-known-path existence checks that feed the
// technical and AI-readiness scores.
type ProbeResults struct {
	Robots  bool `json:"robots_ok"`
	Sitemap bool `json:"sitemap_ok"`
	LLMs    bool `json:"llms_ok"`
}

// Stats is the run-level rollup of crawl signals. Everything in here is
// derived; the per-page truth stays in the page list.
type Stats struct {
	PagesTotal        int  `json:"pages_total"`
	PagesSuccessful   int  `json:"pages_successful"`
	PagesHTML         int  `json:"pages_html"`
	PagesNonHTML      int  `json:"pages_non_html"`
	RobotsOK          bool `json:"robots_ok"`
	SitemapOK         bool `json:"sitemap_ok"`
	LLMsOK            bool `json:"llms_ok"`
	MissingTitle      int  `json:"missing_title"`
	MissingMeta       int  `json:"missing_meta"`
	MissingCanonical  int  `json:"missing_canonical"`
	InvalidH1         int  `json:"invalid_h1"`
	ThinPages         int  `json:"thin_pages"`
	SchemaPages       int  `json:"schema_pages"`
	DuplicateTitles   int  `json:"duplicate_titles"`
	NoindexPages      int  `json:"noindex_pages"`
	WeakInternalLinks int  `json:"weak_internal_link_pages"`
	ShortTitles       int  `json:"short_titles"`
	LongTitles        int  `json:"long_titles"`
	ShortMeta         int  `json:"short_meta"`
	LongMeta          int  `json:"long_meta"`
	TotalImages       int  `json:"total_images"`
	MissingAlt        int  `json:"missing_alt"`
	ErrorPages        int  `json:"error_pages"`
	Status4xx         int  `json:"status_4xx"`
	Status5xx         int  `json:"status_5xx"`
	LongRedirects     int  `json:"long_redirects"`

	MedianResponseMs *float64 `json:"median_response_ms"`
	P90ResponseMs    *float64 `json:"p90_response_ms"`
	WordCountP25     *float64 `json:"word_count_p25"`
	WordCountMedian  *float64 `json:"word_count_median"`
	WordCountP75     *float64 `json:"word_count_p75"`

	PerformanceSource string          `json:"performance_source"`
	Performance       perf.Assessment `json:"performance"`

	AboutOrContactLinks bool           `json:"about_or_contact_links"`
	SecurityHeaders     SecurityReport `json:"security_headers"`

	ExampleURLs map[string][]string `json:"example_urls"`

	SkippedByRobots int `json:"skipped_by_robots"`
	FetchErrors     int `json:"fetch_errors"`
}

// Compute turns the crawl output plus probe results into category scores,
// run stats, and the raw (unprioritized) issue list.
//
// The technical score is always measured when the crawl ran at all; content,
// on-page, schema, images, and AI readiness stay nil without HTML pages, and
// performance stays nil without timing data, so absent signals never drag
// the composite down.
func Compute(pages []crawl.PageResult, startURL string, info crawl.Info, probes ProbeResults, security SecurityReport, assessment perf.Assessment) (score.Set, Stats, []score.Issue) {
	var pagesOK, pagesHTML []crawl.PageResult
	for _, p := range pages {
		if !p.OK() {
			continue
		}
		pagesOK = append(pagesOK, p)
		if p.IsHTML {
			pagesHTML = append(pagesHTML, p)
		}
	}

	htmlCount := len(pagesHTML)
	total := htmlCount
	if total == 0 {
		total = 1
	}
	allCount := len(pages)

	var (
		missingTitle, missingMeta, missingCanonical int
		invalidH1, thinPages, schemaPages           int
		totalImages, missingAlt, noindexPages       int
		weakInternalLinks                           int
		shortTitles, longTitles                     int
		shortMeta, longMeta                         int
	)
	titleCounts := make(map[string]int)
	for _, p := range pagesHTML {
		title := strings.TrimSpace(p.Title)
		if title == "" {
			missingTitle++
		} else {
			titleCounts[strings.ToLower(title)]++
			if len(title) < 30 {
				shortTitles++
			}
			if len(title) > 60 {
				longTitles++
			}
		}
		meta := strings.TrimSpace(p.MetaDescription)
		if meta == "" {
			missingMeta++
		} else {
			if len(meta) < 70 {
				shortMeta++
			}
			if len(meta) > 160 {
				longMeta++
			}
		}
		if p.Canonical == "" {
			missingCanonical++
		}
		if p.H1Count != 1 {
			invalidH1++
		}
		if p.WordCount < thinWordThreshold {
			thinPages++
		}
		if p.SchemaCount > 0 {
			schemaPages++
		}
		totalImages += p.ImageCount
		missingAlt += p.MissingAltCount
		if hasNoindex(p) {
			noindexPages++
		}
		if len(p.InternalLinks) < 2 {
			weakInternalLinks++
		}
	}

	duplicateTitles := 0
	for _, c := range titleCounts {
		if c > 1 {
			duplicateTitles += c - 1
		}
	}

	var errorPages, status4xx, status5xx, longRedirects int
	for _, p := range pages {
		if !p.OK() || (p.StatusCode != nil && *p.StatusCode >= 400) {
			errorPages++
		}
		if p.StatusCode != nil && *p.StatusCode >= 400 && *p.StatusCode < 500 {
			status4xx++
		}
		if p.StatusCode != nil && *p.StatusCode >= 500 {
			status5xx++
		}
	}
	for _, p := range pagesOK {
		if p.RedirectHops > 2 {
			longRedirects++
		}
	}

	var responseTimes []float64
	for _, p := range pagesOK {
		if p.ResponseMs != nil {
			responseTimes = append(responseTimes, *p.ResponseMs)
		}
	}
	medianResponse := median(responseTimes)
	p90Response := percentile(responseTimes, 0.90)

	var wordCounts []float64
	for _, p := range pagesHTML {
		wordCounts = append(wordCounts, float64(p.WordCount))
	}

	aboutOrContact := hasAboutOrContactLinks(pagesHTML)

	// Technical penalties stack; the clamp keeps a broken site at zero
	// rather than negative.
	technical := 100.0
	technical -= 22.0 * float64(errorPages) / float64(maxInt(allCount, 1))
	technical -= 16.0 * float64(missingCanonical) / float64(total)
	technical -= 14.0 * float64(longRedirects) / float64(total)
	technical -= 18.0 * float64(noindexPages) / float64(total)
	technical -= math.Min(18.0, float64(len(security.Missing))*3.0)
	if !probes.Robots {
		technical -= 8.0
	}
	if !probes.Sitemap {
		technical -= 8.0
	}
	technical = score.Clamp(technical, 0, 100)

	scores := score.Set{score.Technical: score.Value(round1(technical))}

	if htmlCount > 0 {
		content := 100.0
		content -= 36.0 * float64(thinPages) / float64(total)
		content -= 18.0 * float64(duplicateTitles) / float64(total)
		content -= 14.0 * float64(invalidH1) / float64(total)
		content -= 8.0 * float64(weakInternalLinks) / float64(total)
		scores[score.Content] = score.Value(round1(score.Clamp(content, 0, 100)))

		onpage := 100.0
		onpage -= 32.0 * float64(missingTitle) / float64(total)
		onpage -= 24.0 * float64(missingMeta) / float64(total)
		onpage -= 18.0 * float64(invalidH1) / float64(total)
		onpage -= 8.0 * float64(shortTitles+longTitles) / float64(total)
		onpage -= 8.0 * float64(shortMeta+longMeta) / float64(total)
		scores[score.OnPage] = score.Value(round1(score.Clamp(onpage, 0, 100)))

		schema := score.Clamp(50.0+50.0*float64(schemaPages)/float64(total), 0, 100)
		scores[score.Schema] = score.Value(round1(schema))

		images := 100.0
		if totalImages > 0 {
			images = score.Clamp(100.0-float64(missingAlt)/float64(totalImages)*70.0, 0, 100)
		}
		scores[score.Images] = score.Value(round1(images))

		aiReadiness := 100.0
		if !probes.LLMs {
			aiReadiness -= 18.0
		}
		if !aboutOrContact {
			aiReadiness -= 16.0
		}
		aiReadiness -= 20.0 * (1.0 - float64(schemaPages)/float64(total))
		aiReadiness -= 14.0 * float64(thinPages) / float64(total)
		aiReadiness -= 12.0 * float64(noindexPages) / float64(total)
		scores[score.AIReadiness] = score.Value(round1(score.Clamp(aiReadiness, 0, 100)))
	}

	performanceSource := "proxy"
	if assessment.Status == perf.StatusOK && assessment.CompositeScore != nil {
		performanceSource = assessment.Source
		scores[score.Performance] = score.Value(round1(*assessment.CompositeScore))
	} else if medianResponse != nil {
		var performance float64
		switch m := *medianResponse; {
		case m <= 500:
			performance = 96.0
		case m <= 900:
			performance = 84.0
		case m <= 1500:
			performance = 70.0
		case m <= 2500:
			performance = 52.0
		default:
			performance = 30.0
		}
		if p90Response != nil && *p90Response > 2500 {
			performance = score.Clamp(performance-8.0, 0, 100)
		}
		scores[score.Performance] = score.Value(round1(performance))
	}

	stats := Stats{
		PagesTotal:          allCount,
		PagesSuccessful:     len(pagesOK),
		PagesHTML:           htmlCount,
		PagesNonHTML:        len(pagesOK) - htmlCount,
		RobotsOK:            probes.Robots,
		SitemapOK:           probes.Sitemap,
		LLMsOK:              probes.LLMs,
		MissingTitle:        missingTitle,
		MissingMeta:         missingMeta,
		MissingCanonical:    missingCanonical,
		InvalidH1:           invalidH1,
		ThinPages:           thinPages,
		SchemaPages:         schemaPages,
		DuplicateTitles:     duplicateTitles,
		NoindexPages:        noindexPages,
		WeakInternalLinks:   weakInternalLinks,
		ShortTitles:         shortTitles,
		LongTitles:          longTitles,
		ShortMeta:           shortMeta,
		LongMeta:            longMeta,
		TotalImages:         totalImages,
		MissingAlt:          missingAlt,
		ErrorPages:          errorPages,
		Status4xx:           status4xx,
		Status5xx:           status5xx,
		LongRedirects:       longRedirects,
		MedianResponseMs:    medianResponse,
		P90ResponseMs:       p90Response,
		WordCountP25:        percentile(wordCounts, 0.25),
		WordCountMedian:     median(wordCounts),
		WordCountP75:        percentile(wordCounts, 0.75),
		PerformanceSource:   performanceSource,
		Performance:         assessment,
		AboutOrContactLinks: aboutOrContact,
		SecurityHeaders:     security,
		ExampleURLs: map[string][]string{
			"missing_title": sampleURLs(pagesHTML, func(p crawl.PageResult) bool {
				return strings.TrimSpace(p.Title) == ""
			}),
			"missing_meta": sampleURLs(pagesHTML, func(p crawl.PageResult) bool {
				return strings.TrimSpace(p.MetaDescription) == ""
			}),
			"thin_content": sampleURLs(pagesHTML, func(p crawl.PageResult) bool {
				return p.WordCount < thinWordThreshold
			}),
			"noindex": sampleURLs(pagesHTML, hasNoindex),
			"missing_schema": sampleURLs(pagesHTML, func(p crawl.PageResult) bool {
				return p.SchemaCount == 0
			}),
			"alt_missing": sampleURLs(pagesHTML, func(p crawl.PageResult) bool {
				return p.MissingAltCount > 0
			}),
		},
		SkippedByRobots: info.SkippedByRobots,
		FetchErrors:     info.FetchErrors,
	}

	issues := buildIssues(pages, pagesHTML, startURL, stats, security, assessment)
	return scores, stats, issues
}

func buildIssues(pages, pagesHTML []crawl.PageResult, startURL string, stats Stats, security SecurityReport, assessment perf.Assessment) []score.Issue {
	var issues []score.Issue
	total := stats.PagesHTML
	if total == 0 {
		total = 1
	}

	add := func(severity score.Severity, category, title, detail, impact, recommendation, effort, lift string, evidence []string) {
		issue := score.NewIssue(severity, category, title, detail, evidence...)
		issue.Impact = impact
		issue.Recommendation = recommendation
		issue.Effort = effort
		issue.ExpectedLift = lift
		issues = append(issues, issue)
	}

	if stats.PagesHTML == 0 {
		add(score.SeverityHigh, "Crawl Coverage", "No HTML pages crawled",
			"Crawl did not find HTML documents in scope. Verify start URL and crawl scope.",
			"Most SEO checks are blocked when no indexable HTML is collected.",
			"Validate the canonical start URL, then rerun with a larger crawl budget.",
			score.EffortLow, score.LiftHigh, []string{startURL})
	}
	if stats.ErrorPages > 0 {
		add(score.SeverityCritical, "Technical SEO", "HTTP errors during crawl",
			fmt.Sprintf("%d pages returned errors (%dx 4xx, %dx 5xx).", stats.ErrorPages, stats.Status4xx, stats.Status5xx),
			"Error URLs waste crawl budget and suppress organic visibility.",
			"Repair broken URLs and eliminate server-side failures on key templates first.",
			score.EffortMedium, score.LiftHigh,
			sampleURLs(pages, func(p crawl.PageResult) bool {
				return !p.OK() || (p.StatusCode != nil && *p.StatusCode >= 400)
			}))
	}
	if stats.NoindexPages > 0 {
		severity := score.SeverityHigh
		if stats.NoindexPages > maxInt(2, total/10) {
			severity = score.SeverityCritical
		}
		add(severity, "Indexability", "Noindex directives detected",
			fmt.Sprintf("%d/%d HTML pages include noindex directives.", stats.NoindexPages, total),
			"Important pages can be dropped from the index despite internal links.",
			"Remove unintended noindex tags from pages intended to rank.",
			score.EffortLow, score.LiftHigh, sampleURLs(pagesHTML, hasNoindex))
	}
	if stats.MissingTitle > 0 {
		add(score.SeverityHigh, "On-Page SEO", "Missing title tags",
			fmt.Sprintf("%d/%d crawled HTML pages have no title tag.", stats.MissingTitle, total),
			"Pages lose core relevance and CTR signals in search results.",
			"Set unique, intent-matched titles (30-60 chars) for all indexable pages.",
			score.EffortLow, score.LiftHigh,
			sampleURLs(pagesHTML, func(p crawl.PageResult) bool {
				return strings.TrimSpace(p.Title) == ""
			}))
	}
	if stats.MissingMeta > 0 {
		add(score.SeverityHigh, "On-Page SEO", "Missing meta descriptions",
			fmt.Sprintf("%d/%d crawled HTML pages are missing meta descriptions.", stats.MissingMeta, total),
			"Search snippets become less controlled and usually underperform on CTR.",
			"Write concise, differentiated descriptions aligned to page intent.",
			score.EffortLow, score.LiftMedium,
			sampleURLs(pagesHTML, func(p crawl.PageResult) bool {
				return strings.TrimSpace(p.MetaDescription) == ""
			}))
	}
	if stats.PagesHTML > 0 && stats.ThinPages > maxInt(3, total/5) {
		add(score.SeverityHigh, "Content Quality", "Thin content footprint",
			fmt.Sprintf("%d/%d pages are below %d words.", stats.ThinPages, total, thinWordThreshold),
			"Thin pages are less competitive and less citable in AI answers.",
			"Expand high-value pages and consolidate low-value overlaps.",
			score.EffortMedium, score.LiftHigh,
			sampleURLs(pagesHTML, func(p crawl.PageResult) bool {
				return p.WordCount < thinWordThreshold
			}))
	}
	if !stats.RobotsOK {
		add(score.SeverityMedium, "Crawl Control", "Missing robots.txt",
			"No valid robots.txt detected.",
			"Crawler policy is ambiguous and difficult to manage.",
			"Publish robots.txt with allow/disallow policy and sitemap pointers.",
			score.EffortLow, score.LiftMedium, []string{joinPath(startURL, "/robots.txt")})
	}
	if !stats.SitemapOK {
		add(score.SeverityMedium, "Crawl Control", "Missing sitemap.xml",
			"No valid sitemap.xml detected.",
			"Search engines discover deep URLs less reliably.",
			"Generate and submit XML sitemap(s) with canonical URLs only.",
			score.EffortLow, score.LiftMedium, []string{joinPath(startURL, "/sitemap.xml")})
	}
	if len(security.Missing) > 0 {
		severity := score.SeverityMedium
		if len(security.Missing) >= 3 {
			severity = score.SeverityHigh
		}
		add(severity, "Security Signals", "Missing security headers",
			fmt.Sprintf("Missing %d/%d security headers: %s.", len(security.Missing), len(securityHeaders), strings.Join(security.Missing, ", ")),
			"Weakens trust signals and increases security risk surface.",
			"Set missing headers at the edge or server and validate on primary templates.",
			score.EffortMedium, score.LiftMedium, []string{security.FinalURL})
	}
	if !stats.LLMsOK {
		add(score.SeverityLow, "AI Readiness", "Missing llms.txt",
			"No llms.txt detected.",
			"No explicit AI retrieval guidance is available at the root.",
			"Publish llms.txt with clear citation and crawl guidance.",
			score.EffortLow, score.LiftLow, []string{joinPath(startURL, "/llms.txt")})
	}
	if stats.TotalImages > 0 && stats.MissingAlt > 0 {
		add(score.SeverityMedium, "Images", "Images missing alt text",
			fmt.Sprintf("%d/%d images are missing alt text.", stats.MissingAlt, stats.TotalImages),
			"Hurts accessibility and weakens image relevance context.",
			"Add descriptive alt text to informative images; keep decorative images empty-alt.",
			score.EffortLow, score.LiftMedium,
			sampleURLs(pagesHTML, func(p crawl.PageResult) bool {
				return p.MissingAltCount > 0
			}))
	}
	switch assessment.Status {
	case perf.StatusOK:
		if assessment.CompositeScore != nil && *assessment.CompositeScore < 50 {
			add(score.SeverityHigh, "Performance", "Poor lab performance score",
				fmt.Sprintf("Lab performance composite is %.1f/100 (target >= 90).", *assessment.CompositeScore),
				"Slow loading hurts rankings, user retention, and conversion rates.",
				"Optimize hero assets, critical CSS, TTFB, and render-blocking scripts.",
				score.EffortMedium, score.LiftHigh, []string{startURL})
		}
	case perf.StatusUnavailable:
		add(score.SeverityLow, "Performance", "Live performance API data unavailable",
			fmt.Sprintf("PageSpeed fetch failed: %s.", assessment.Reason),
			"Performance score falls back to response-time proxy and may miss real-user regressions.",
			"Provide a PageSpeed API key and rerun for full lab coverage.",
			score.EffortLow, score.LiftLow, []string{startURL})
	}

	return issues
}

func hasNoindex(p crawl.PageResult) bool {
	return strings.Contains(strings.ToLower(p.MetaRobots), "noindex")
}

func hasAboutOrContactLinks(pagesHTML []crawl.PageResult) bool {
	markers := []string{"/about", "/contact", "/team", "/company"}
	for _, page := range pagesHTML {
		for _, link := range page.InternalLinks {
			u, err := url.Parse(link)
			if err != nil {
				continue
			}
			path := strings.ToLower(u.Path)
			for _, marker := range markers {
				if strings.Contains(path, marker) {
					return true
				}
			}
		}
	}
	return false
}

func sampleURLs(pages []crawl.PageResult, predicate func(crawl.PageResult) bool) []string {
	var picked []string
	for _, page := range pages {
		if predicate(page) {
			picked = append(picked, page.URL)
			if len(picked) >= evidenceLimit {
				break
			}
		}
	}
	return picked
}

func median(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	ordered := append([]float64(nil), values...)
	sort.Float64s(ordered)
	n := len(ordered)
	var m float64
	if n%2 == 1 {
		m = ordered[n/2]
	} else {
		m = (ordered[n/2-1] + ordered[n/2]) / 2
	}
	return &m
}

func percentile(values []float64, p float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	ordered := append([]float64(nil), values...)
	sort.Float64s(ordered)
	if len(ordered) == 1 {
		return &ordered[0]
	}
	idx := int(math.Round(float64(len(ordered)-1) * p))
	return &ordered[idx]
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func joinPath(base, path string) string {
	resolved, err := resolvePath(base, path)
	if err != nil {
		return base + path
	}
	return resolved
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

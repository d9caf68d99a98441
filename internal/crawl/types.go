// Package crawl implements the single-threaded breadth-first site crawl
// that feeds the audit with per-page structural signals.
package crawl

import "time"

// PageResult captures one crawled resource. Instances are created once per
// unique URL and never mutated afterwards.
type PageResult struct {
	URL             string   `json:"url"`
	StatusCode      *int     `json:"status_code"`
	ResponseMs      *float64 `json:"response_ms"`
	Title           string   `json:"title,omitempty"`
	MetaDescription string   `json:"meta_description,omitempty"`
	MetaRobots      string   `json:"meta_robots,omitempty"`
	Canonical       string   `json:"canonical,omitempty"`
	H1Count         int      `json:"h1_count"`
	WordCount       int      `json:"word_count"`
	SchemaCount     int      `json:"schema_count"`
	ImageCount      int      `json:"image_count"`
	MissingAltCount int      `json:"missing_alt_count"`
	InternalLinks   []string `json:"internal_links,omitempty"`
	FetchError      string   `json:"fetch_error,omitempty"`
	RedirectHops    int      `json:"redirect_hops"`
	ContentType     string   `json:"content_type,omitempty"`
	IsHTML          bool     `json:"is_html"`
}

// OK reports whether the page was fetched without a transport failure.
func (p PageResult) OK() bool {
	return p.FetchError == ""
}

// Info holds run-level crawl counters, finalized when the queue empties or
// the page budget is reached.
type Info struct {
	SkippedByRobots int    `json:"skipped_by_robots"`
	FetchErrors     int    `json:"fetch_errors"`
	Visited         int    `json:"visited"`
	RobotsURL       string `json:"robots_url,omitempty"`
}

// Config bounds one crawl run.
type Config struct {
	MaxPages  int
	Delay     time.Duration
	UserAgent string
}

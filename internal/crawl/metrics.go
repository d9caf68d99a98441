package crawl

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalRequests tracks the number of page fetches dispatched by the crawl engine.
	TotalRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siteaudit_crawl_requests_total",
		Help: "The total number of page fetches dispatched by the crawl engine.",
	})
	// TotalFetchErrors tracks fetches that ended in a transport-level failure.
	TotalFetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siteaudit_crawl_fetch_errors_total",
		Help: "The total number of page fetches that failed.",
	})
	// TotalRobotsSkips tracks URLs skipped because robots.txt denied them.
	TotalRobotsSkips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siteaudit_crawl_robots_skips_total",
		Help: "The total number of URLs skipped by robots policy.",
	})
	// TotalPagesParsed tracks HTML documents that went through signal extraction.
	TotalPagesParsed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siteaudit_crawl_pages_parsed_total",
		Help: "The total number of HTML pages parsed for structural signals.",
	})
)

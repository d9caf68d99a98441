package crawl

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/avalonreset/siteaudit/internal/fetch"
	"github.com/avalonreset/siteaudit/internal/robots"
	"github.com/avalonreset/siteaudit/internal/target"
)

// pauser abstracts the politeness delay between requests.
type pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

type timerPauser struct{}

func (timerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Engine walks a site breadth-first, one in-flight request at a time. The
// queue and seen set are owned exclusively by the calling goroutine; the
// only shared state is the read-only robots policy.
type Engine struct {
	client *fetch.Client
	policy *robots.Policy
	cfg    Config
	logger *zap.Logger
	pause  pauser
}

// NewEngine builds a crawl engine. The policy may be permissive (nil ruleset)
// when robots.txt was unavailable.
func NewEngine(client *fetch.Client, policy *robots.Policy, cfg Config, logger *zap.Logger) *Engine {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		client: client,
		policy: policy,
		cfg:    cfg,
		logger: logger,
		pause:  timerPauser{},
	}
}

// Run crawls same-site links starting from start until the queue empties or
// the page budget is reached. Fetch failures are recorded per page and never
// abort the traversal.
func (e *Engine) Run(ctx context.Context, start target.Target) ([]PageResult, Info) {
	queue := []string{start.String()}
	seen := make(map[string]struct{})
	var pages []PageResult
	info := Info{RobotsURL: e.policy.URL()}

	for len(queue) > 0 && len(seen) < e.cfg.MaxPages {
		if ctx.Err() != nil {
			break
		}
		current := queue[0]
		queue = queue[1:]
		if _, ok := seen[current]; ok {
			continue
		}

		if e.policy.Restricted() && !e.policy.Allowed(current) {
			info.SkippedByRobots++
			seen[current] = struct{}{}
			TotalRobotsSkips.Inc()
			e.logger.Debug("skipped by robots policy", zap.String("url", current))
			continue
		}

		seen[current] = struct{}{}
		TotalRequests.Inc()
		res, err := e.client.Fetch(ctx, current)
		if err != nil {
			info.FetchErrors++
			TotalFetchErrors.Inc()
			e.logger.Warn("page fetch failed", zap.String("url", current), zap.Error(err))
			pages = append(pages, PageResult{URL: current, FetchError: err.Error()})
			info.Visited = len(seen)
			continue
		}

		finalURL := current
		if normalized, nerr := target.Normalize(res.FinalURL); nerr == nil {
			finalURL = normalized
		}
		seen[finalURL] = struct{}{}

		page := e.buildPage(finalURL, res)
		pages = append(pages, page)

		for _, link := range page.InternalLinks {
			if _, ok := seen[link]; ok {
				continue
			}
			if target.SameSite(start.String(), link) {
				queue = append(queue, link)
			}
		}

		info.Visited = len(seen)
		e.pause.Pause(ctx, e.cfg.Delay)
	}

	info.Visited = len(seen)
	return pages, info
}

func (e *Engine) buildPage(finalURL string, res fetch.Result) PageResult {
	status := res.StatusCode
	elapsed := res.ElapsedMs
	contentType := res.Header.Get("Content-Type")
	page := PageResult{
		URL:          finalURL,
		StatusCode:   &status,
		ResponseMs:   &elapsed,
		RedirectHops: res.Hops,
		ContentType:  contentType,
		IsHTML:       isHTMLContent(contentType, res.Body),
	}
	if !page.IsHTML {
		return page
	}

	sig, err := extractSignals(res.Body, finalURL)
	if err != nil {
		e.logger.Warn("signal extraction failed", zap.String("url", finalURL), zap.Error(err))
		return page
	}
	TotalPagesParsed.Inc()
	page.Title = sig.Title
	page.MetaDescription = sig.MetaDescription
	page.MetaRobots = sig.MetaRobots
	page.Canonical = sig.Canonical
	page.H1Count = sig.H1Count
	page.WordCount = sig.WordCount
	page.SchemaCount = sig.SchemaCount
	page.ImageCount = sig.ImageCount
	page.MissingAltCount = sig.MissingAltCount
	page.InternalLinks = sig.InternalLinks
	return page
}

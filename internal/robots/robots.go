// Package robots builds a per-run robots.txt policy. The policy is fetched
// through the policy-aware fetcher so it inherits the same redirect and
// public-address discipline as every other request, and it is read-only once
// built.
package robots

import (
	"context"
	"net/url"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/avalonreset/siteaudit/internal/fetch"
	"github.com/avalonreset/siteaudit/internal/target"
)

// Policy answers "may this agent fetch this URL" for one site. A nil ruleset
// means robots.txt was unavailable and everything is allowed.
type Policy struct {
	data      *robotstxt.RobotsData
	agent     string
	robotsURL string
}

// Build fetches and parses robots.txt at the target's origin. Unreachable,
// erroring, or malformed robots.txt yields a permissive policy, never a
// failure; a crawl proceeds as if unrestricted.
func Build(ctx context.Context, client *fetch.Client, t target.Target, agent string, logger *zap.Logger) *Policy {
	if logger == nil {
		logger = zap.NewNop()
	}
	robotsURL := t.URL.ResolveReference(&url.URL{Path: "/robots.txt"}).String()
	policy := &Policy{agent: agent, robotsURL: robotsURL}

	res, err := client.Fetch(ctx, robotsURL)
	if err != nil {
		logger.Warn("robots.txt unavailable; crawling unrestricted",
			zap.String("robots_url", robotsURL),
			zap.Error(err),
		)
		return policy
	}
	policy.robotsURL = res.FinalURL
	if res.StatusCode >= 400 {
		logger.Debug("robots.txt returned error status; crawling unrestricted",
			zap.String("robots_url", res.FinalURL),
			zap.Int("status", res.StatusCode),
		)
		return policy
	}
	data, err := robotstxt.FromStatusAndBytes(res.StatusCode, res.Body)
	if err != nil {
		logger.Warn("robots.txt parse failed; crawling unrestricted",
			zap.String("robots_url", res.FinalURL),
			zap.Error(err),
		)
		return policy
	}
	policy.data = data
	return policy
}

// URL reports the robots.txt location actually consulted.
func (p *Policy) URL() string {
	if p == nil {
		return ""
	}
	return p.robotsURL
}

// Restricted reports whether a ruleset was successfully built.
func (p *Policy) Restricted() bool {
	return p != nil && p.data != nil
}

// Allowed reports whether the configured agent may fetch rawURL. Evaluation
// problems (unparsable URLs, missing groups) always fall open to allowed so
// a malformed rule never halts a crawl.
func (p *Policy) Allowed(rawURL string) bool {
	if p == nil || p.data == nil {
		return true
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	group := p.data.FindGroup(p.agent)
	if group == nil {
		return true
	}
	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}
	return group.Test(path)
}

// Sitemaps returns any sitemap URLs declared in robots.txt.
func (p *Policy) Sitemaps() []string {
	if p == nil || p.data == nil {
		return nil
	}
	return p.data.Sitemaps
}

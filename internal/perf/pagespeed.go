// Package perf talks to an external performance-data provider (the
// PageSpeed v5 API). The provider is strictly optional: a missing API key or
// any request failure degrades to "unavailable" and the audit falls back to
// its response-time proxy metric. This package never fails a run.
package perf

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// DefaultEndpoint is the public PageSpeed Insights API.
const DefaultEndpoint = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"

// Assessment statuses.
const (
	StatusOK          = "ok"
	StatusDisabled    = "disabled"
	StatusUnavailable = "unavailable"
)

// Assessment is the provider's verdict for one target.
type Assessment struct {
	Status         string   `json:"status"`
	Source         string   `json:"source"`
	Reason         string   `json:"reason,omitempty"`
	CompositeScore *float64 `json:"composite_score,omitempty"`
	MobileScore    *float64 `json:"mobile_score,omitempty"`
	DesktopScore   *float64 `json:"desktop_score,omitempty"`
}

// Config controls the Provider.
type Config struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration
	Enabled  bool
}

// Provider queries the external API for lab performance scores.
type Provider struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// NewProvider builds a Provider.
func NewProvider(cfg Config, logger *zap.Logger) *Provider {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Assess fetches mobile and desktop lab scores for targetURL. Both failing
// yields an unavailable assessment; one succeeding is enough for a
// composite.
func (p *Provider) Assess(ctx context.Context, targetURL string) Assessment {
	if !p.cfg.Enabled {
		return Assessment{Status: StatusDisabled, Source: "off", Reason: "performance API checks disabled"}
	}

	mobile, mErr := p.runStrategy(ctx, targetURL, "mobile")
	desktop, dErr := p.runStrategy(ctx, targetURL, "desktop")
	if mErr != nil && dErr != nil {
		p.logger.Warn("performance provider unavailable; falling back to proxy metric",
			zap.Error(mErr),
			zap.Error(dErr),
		)
		return Assessment{
			Status: StatusUnavailable,
			Source: "pagespeed",
			Reason: mErr.Error(),
		}
	}

	out := Assessment{Status: StatusOK, Source: "pagespeed"}
	var sum float64
	var n int
	if mErr == nil {
		out.MobileScore = &mobile
		sum += mobile
		n++
	}
	if dErr == nil {
		out.DesktopScore = &desktop
		sum += desktop
		n++
	}
	composite := sum / float64(n)
	out.CompositeScore = &composite
	return out
}

type pagespeedPayload struct {
	LighthouseResult struct {
		Categories struct {
			Performance struct {
				Score *float64 `json:"score"`
			} `json:"performance"`
		} `json:"categories"`
	} `json:"lighthouseResult"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *Provider) runStrategy(ctx context.Context, targetURL, strategy string) (float64, error) {
	params := url.Values{}
	params.Set("url", targetURL)
	params.Set("strategy", strategy)
	params.Set("category", "performance")
	params.Set("locale", "en_US")
	if p.cfg.APIKey != "" {
		params.Set("key", p.cfg.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("pagespeed request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return 0, fmt.Errorf("read pagespeed response: %w", err)
	}

	var payload pagespeedPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("decode pagespeed response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		reason := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if payload.Error.Message != "" {
			reason += ": " + payload.Error.Message
		}
		return 0, fmt.Errorf("pagespeed: %s", reason)
	}
	score := payload.LighthouseResult.Categories.Performance.Score
	if score == nil {
		return 0, fmt.Errorf("pagespeed: no performance score in payload")
	}
	return *score * 100, nil
}

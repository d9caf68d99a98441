// Package fetch implements the policy-aware HTTP fetcher. Redirects are
// disabled at the transport level and walked manually so every hop can be
// re-validated against the public-address check before a request is issued.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/avalonreset/siteaudit/internal/target"
)

// MaxRedirectHops caps how many 3xx responses a single fetch will follow.
const MaxRedirectHops = 10

// Typed failures surfaced by Fetch. Callers branch with errors.Is.
var (
	// ErrSSRFRejected means the URL (initial or post-redirect) resolves only
	// to non-public addresses.
	ErrSSRFRejected = errors.New("target resolves to non-public or invalid host")
	// ErrTooManyRedirects means the redirect chain exceeded MaxRedirectHops.
	ErrTooManyRedirects = errors.New("too many redirects")
	// ErrFetchFailed wraps transport-level failures.
	ErrFetchFailed = errors.New("fetch failed")
)

// Result is the outcome of one manually-walked fetch.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	ElapsedMs  float64
	FinalURL   string
	Hops       int
}

// Config controls Client behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// MaxBodyBytes bounds how much of a response body is read. Zero means
	// the default of 8 MiB.
	MaxBodyBytes int64
}

// Client performs single GET requests with a bounded, revalidated redirect
// walk. It never retries; retry policy belongs to callers.
type Client struct {
	httpClient *http.Client
	checker    *target.Checker
	cfg        Config
	logger     *zap.Logger
}

// NewClient builds a Client. The checker is consulted before the first
// request and again after every redirect hop.
func NewClient(cfg Config, checker *target.Checker, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 8 << 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		checker: checker,
		cfg:     cfg,
		logger:  logger,
	}
}

// Fetch issues a GET against rawURL, following up to MaxRedirectHops
// redirects by hand. Each hop target is normalized and checked for
// publicness before any request goes out.
func (c *Client) Fetch(ctx context.Context, rawURL string) (Result, error) {
	started := time.Now()
	current, err := target.Normalize(rawURL)
	if err != nil {
		return Result{}, err
	}

	hops := 0
	for {
		if !c.checker.IsPublic(ctx, current) {
			return Result{}, fmt.Errorf("%w: %s", ErrSSRFRejected, current)
		}

		resp, err := c.do(ctx, current)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
		}

		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			location := strings.TrimSpace(resp.Header.Get("Location"))
			if location == "" {
				// A 3xx without Location is terminal; report it as-is.
				return c.finish(resp, current, hops, started)
			}
			drainAndClose(resp.Body)
			if hops >= MaxRedirectHops {
				return Result{}, fmt.Errorf("%w (>%d)", ErrTooManyRedirects, MaxRedirectHops)
			}
			next, err := resolveLocation(current, location)
			if err != nil {
				return Result{}, fmt.Errorf("invalid redirect URL: %w", err)
			}
			c.logger.Debug("following redirect",
				zap.String("from", current),
				zap.String("to", next),
				zap.Int("hop", hops+1),
			)
			current = next
			hops++
			continue
		}

		return c.finish(resp, current, hops, started)
	}
}

func (c *Client) do(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")
	return c.httpClient.Do(req)
}

func (c *Client) finish(resp *http.Response, finalURL string, hops int, started time.Time) (Result, error) {
	defer drainAndClose(resp.Body)
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes))
	if err != nil {
		return Result{}, fmt.Errorf("%w: read body: %v", ErrFetchFailed, err)
	}
	return Result{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		ElapsedMs:  float64(time.Since(started)) / float64(time.Millisecond),
		FinalURL:   finalURL,
		Hops:       hops,
	}, nil
}

func resolveLocation(current, location string) (string, error) {
	base, err := url.Parse(current)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return target.Normalize(base.ResolveReference(ref).String())
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 1<<16))
	_ = body.Close()
}

package audit

import (
	"context"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/avalonreset/siteaudit/internal/fetch"
)

// securityHeaders are the response headers the root-page probe checks for.
var securityHeaders = []string{
	"content-security-policy",
	"strict-transport-security",
	"x-frame-options",
	"x-content-type-options",
	"referrer-policy",
}

// SecurityReport describes which recommended headers the site's root page
// serves.
type SecurityReport struct {
	Status   string   `json:"status"`
	Reason   string   `json:"reason,omitempty"`
	Present  []string `json:"present"`
	Missing  []string `json:"missing"`
	FinalURL string   `json:"final_url"`
}

// Prober runs the well-known-path existence checks through the policy-aware
// fetcher, so every probe inherits the same SSRF and redirect discipline as
// the crawl itself.
type Prober struct {
	client *fetch.Client
	logger *zap.Logger
}

// NewProber builds a Prober.
func NewProber(client *fetch.Client, logger *zap.Logger) *Prober {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{client: client, logger: logger}
}

// Exists reports whether path resolves against base to a URL that answers
// with a non-error status. Any fetch failure counts as absent.
func (p *Prober) Exists(ctx context.Context, base, path string) bool {
	probeURL, err := resolvePath(base, path)
	if err != nil {
		return false
	}
	res, err := p.client.Fetch(ctx, probeURL)
	if err != nil {
		p.logger.Debug("probe failed", zap.String("url", probeURL), zap.Error(err))
		return false
	}
	return res.StatusCode < http.StatusBadRequest
}

// SecurityHeaders fetches the root page and reports which of the recommended
// security headers are present on the final response.
func (p *Prober) SecurityHeaders(ctx context.Context, startURL string) SecurityReport {
	res, err := p.client.Fetch(ctx, startURL)
	if err != nil {
		return SecurityReport{
			Status:   "unavailable",
			Reason:   err.Error(),
			Present:  []string{},
			Missing:  append([]string(nil), securityHeaders...),
			FinalURL: startURL,
		}
	}

	report := SecurityReport{
		Status:   "ok",
		Present:  []string{},
		Missing:  []string{},
		FinalURL: res.FinalURL,
	}
	for _, header := range securityHeaders {
		if res.Header.Get(header) != "" {
			report.Present = append(report.Present, header)
		} else {
			report.Missing = append(report.Missing, header)
		}
	}
	return report
}

func resolvePath(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	return u.ResolveReference(ref).String(), nil
}

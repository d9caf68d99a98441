// Package target normalizes audit targets and guards against requests to
// non-public network addresses.
package target

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

// ErrInvalidTarget is returned when a raw URL cannot be turned into an
// auditable http(s) target.
var ErrInvalidTarget = errors.New("invalid target")

// Target is a normalized absolute URL. Equality across the audit is based on
// scheme+host+path+query; fragments never survive normalization.
type Target struct {
	URL *url.URL
}

// String returns the normalized URL text.
func (t Target) String() string {
	if t.URL == nil {
		return ""
	}
	return t.URL.String()
}

// Host returns the target hostname without port.
func (t Target) Host() string {
	if t.URL == nil {
		return ""
	}
	return t.URL.Hostname()
}

// Resolve normalizes a user-supplied URL. Bare hosts default to https, the
// path defaults to "/", and fragments are stripped. Schemes outside http and
// https are rejected.
func Resolve(raw string) (Target, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return Target{}, fmt.Errorf("%w: empty URL", ErrInvalidTarget)
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if parsed.Scheme == "" {
		parsed, err = url.Parse("https://" + value)
		if err != nil {
			return Target{}, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
		}
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return Target{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidTarget, parsed.Scheme)
	}
	parsed.Scheme = scheme
	parsed.Host = strings.ToLower(parsed.Host)
	if parsed.Hostname() == "" {
		return Target{}, fmt.Errorf("%w: missing host", ErrInvalidTarget)
	}
	if parsed.Path == "" {
		parsed.Path = "/"
	}
	parsed.Fragment = ""
	return Target{URL: parsed}, nil
}

// Normalize is Resolve for URL strings already flowing through the crawl.
// Normalizing an already-normalized URL is a no-op.
func Normalize(raw string) (string, error) {
	t, err := Resolve(raw)
	if err != nil {
		return "", err
	}
	return t.String(), nil
}

// NormalizeHost lowercases a hostname, trims stray dots, and strips a
// leading "www.".
func NormalizeHost(host string) string {
	lowered := strings.Trim(strings.ToLower(host), ".")
	return strings.TrimPrefix(lowered, "www.")
}

// SameSite reports whether two URLs belong to the same site: equal hosts
// after www-stripping, or one host being a subdomain of the other.
func SameSite(a, b string) bool {
	ua, errA := url.Parse(a)
	ub, errB := url.Parse(b)
	if errA != nil || errB != nil {
		return false
	}
	ha := NormalizeHost(ua.Hostname())
	hb := NormalizeHost(ub.Hostname())
	if ha == "" || hb == "" {
		return false
	}
	return ha == hb || strings.HasSuffix(ha, "."+hb) || strings.HasSuffix(hb, "."+ha)
}

// LookupFunc resolves a hostname into addresses. It matches the signature of
// net.Resolver.LookupHost so the system resolver can be injected directly.
type LookupFunc func(ctx context.Context, host string) ([]string, error)

// Checker decides whether a URL resolves to the public internet. The lookup
// is injectable so tests never touch real DNS.
type Checker struct {
	lookup LookupFunc
}

// NewChecker builds a Checker. A nil lookup uses the system resolver.
func NewChecker(lookup LookupFunc) *Checker {
	if lookup == nil {
		lookup = (&net.Resolver{}).LookupHost
	}
	return &Checker{lookup: lookup}
}

// IsPublic resolves the URL host via DNS and returns true as soon as one
// resolved address is publicly routable. Resolution failures and hosts whose
// every address is private, loopback, link-local, multicast, or unspecified
// all report false.
func (c *Checker) IsPublic(ctx context.Context, rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := parsed.Hostname()
	if host == "" {
		return false
	}
	addrs, err := c.lookup(ctx, host)
	if err != nil {
		return false
	}
	for _, addr := range addrs {
		ip, err := netip.ParseAddr(addr)
		if err != nil {
			continue
		}
		if isPublicAddr(ip) {
			return true
		}
	}
	return false
}

func isPublicAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	switch {
	case ip.IsLoopback(), ip.IsPrivate(), ip.IsLinkLocalUnicast(),
		ip.IsLinkLocalMulticast(), ip.IsMulticast(), ip.IsUnspecified():
		return false
	}
	return true
}

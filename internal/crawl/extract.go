package crawl

import (
	"bytes"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/avalonreset/siteaudit/internal/target"
)

// signals are the structural facts pulled out of one HTML document.
type signals struct {
	Title           string
	MetaDescription string
	MetaRobots      string
	Canonical       string
	H1Count         int
	WordCount       int
	SchemaCount     int
	ImageCount      int
	MissingAltCount int
	InternalLinks   []string
}

var wordPattern = regexp.MustCompile(`[\pL\pN_]+`)

// isHTMLContent classifies a response as HTML. The Content-Type header wins;
// when it is absent or claims otherwise, the body is sniffed for an <html
// marker because servers frequently mislabel documents.
func isHTMLContent(contentType string, body []byte) bool {
	lowered := strings.ToLower(contentType)
	if strings.Contains(lowered, "text/html") || strings.Contains(lowered, "application/xhtml+xml") {
		return true
	}
	return bytes.Contains(bytes.ToLower(body), []byte("<html"))
}

// extractSignals parses an HTML document and pulls out the audit signals.
// Links are resolved against baseURL, normalized, filtered to same-site
// targets, deduplicated, and sorted.
func extractSignals(body []byte, baseURL string) (signals, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return signals{}, err
	}

	var sig signals
	sig.Title = strings.TrimSpace(doc.Find("title").First().Text())
	sig.MetaDescription, _ = doc.Find(`meta[name="description"]`).First().Attr("content")
	sig.MetaRobots, _ = doc.Find(`meta[name="robots"]`).First().Attr("content")
	sig.Canonical, _ = doc.Find(`link[rel="canonical"]`).First().Attr("href")
	sig.H1Count = doc.Find("h1").Length()

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		if strings.TrimSpace(s.Text()) != "" {
			sig.SchemaCount++
		}
	})

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		sig.ImageCount++
		alt, exists := s.Attr("alt")
		if !exists || strings.TrimSpace(alt) == "" {
			sig.MissingAltCount++
		}
	})

	sig.InternalLinks = collectInternalLinks(doc, baseURL)

	// Word count over visible text only.
	doc.Find("script, style, noscript").Remove()
	sig.WordCount = len(wordPattern.FindAllString(doc.Text(), -1))

	return sig, nil
}

func collectInternalLinks(doc *goquery.Document, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		normalized, err := target.Normalize(resolved.String())
		if err != nil {
			return
		}
		if !target.SameSite(baseURL, normalized) {
			return
		}
		seen[normalized] = struct{}{}
	})
	if len(seen) == 0 {
		return nil
	}
	links := make([]string, 0, len(seen))
	for link := range seen {
		links = append(links, link)
	}
	sort.Strings(links)
	return links
}

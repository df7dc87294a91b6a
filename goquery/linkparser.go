// Package goquery parses harvest catalog pages with goquery.
package goquery

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/harvest"
)

// DefaultNextLabel is the anchor text of the next-page link.
const DefaultNextLabel = "Next Page"

// DefaultArchiveSuffix identifies archive links.
const DefaultArchiveSuffix = ".zip"

// Ensure LinkParser implements harvest.LinkParser at compile time.
var _ harvest.LinkParser = (*LinkParser)(nil)

// LinkParser extracts archive links and the next-page link from catalog
// HTML.
type LinkParser struct {
	nextLabel     string
	archiveSuffix string
}

// Option configures a LinkParser.
type Option func(*LinkParser)

// WithNextLabel sets the anchor text that marks the next-page link.
func WithNextLabel(label string) Option {
	return func(p *LinkParser) {
		p.nextLabel = label
	}
}

// WithArchiveSuffix sets the path suffix that marks archive links.
func WithArchiveSuffix(suffix string) Option {
	return func(p *LinkParser) {
		p.archiveSuffix = suffix
	}
}

// NewLinkParser creates a new LinkParser.
func NewLinkParser(opts ...Option) *LinkParser {
	p := &LinkParser{
		nextLabel:     DefaultNextLabel,
		archiveSuffix: DefaultArchiveSuffix,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse returns archive links in document order, deduplicated, and the
// first next-page link. All links are resolved against pageURL. Archive
// links may point at any host.
func (p *LinkParser) Parse(html string, pageURL string) (*harvest.CatalogPage, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, harvest.Errorf(harvest.EINVALID, "invalid page URL: %v", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, harvest.Errorf(harvest.EINVALID, "failed to parse HTML: %v", err)
	}

	page := &harvest.CatalogPage{Links: []string{}}
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || isNonHTTPLink(href) {
			return
		}

		resolved, ok := resolveURL(base, href)
		if !ok {
			return
		}

		if page.Next == "" && strings.TrimSpace(sel.Text()) == p.nextLabel {
			page.Next = resolved.String()
			return
		}

		if !strings.HasSuffix(resolved.Path, p.archiveSuffix) {
			return
		}
		link := resolved.String()
		if seen[link] {
			return
		}
		seen[link] = true
		page.Links = append(page.Links, link)
	})

	return page, nil
}

// resolveURL resolves href against base and strips the fragment.
func resolveURL(base *url.URL, href string) (*url.URL, bool) {
	ref, err := url.Parse(href)
	if err != nil {
		return nil, false
	}
	resolved := base.ResolveReference(ref)
	resolved.Fragment = ""
	return resolved, true
}

// isNonHTTPLink checks if a href is a non-HTTP link that should be skipped.
func isNonHTTPLink(href string) bool {
	href = strings.ToLower(href)
	return strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "data:")
}

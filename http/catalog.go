package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/fwojciec/harvest"
)

// DefaultCatalogURL is the Project Gutenberg robot harvest endpoint.
const DefaultCatalogURL = "https://www.gutenberg.org/robot/harvest"

// DefaultLanguage is the catalog language filter used when none is given.
const DefaultLanguage = "en"

// Ensure Catalog implements harvest.Catalog at compile time.
var _ harvest.Catalog = (*Catalog)(nil)

// Catalog fetches catalog pages over HTTP and delegates link extraction
// to a harvest.LinkParser.
type Catalog struct {
	client    *http.Client
	parser    harvest.LinkParser
	lang      string
	userAgent string
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithCatalogClient sets the HTTP client used for page requests.
func WithCatalogClient(c *http.Client) CatalogOption {
	return func(cat *Catalog) {
		cat.client = c
	}
}

// WithLanguage sets the language appended to page URLs.
func WithLanguage(lang string) CatalogOption {
	return func(cat *Catalog) {
		cat.lang = lang
	}
}

// NewCatalog creates a new Catalog.
func NewCatalog(parser harvest.LinkParser, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		client:    &http.Client{Timeout: DefaultTimeout},
		parser:    parser,
		lang:      DefaultLanguage,
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartURL returns the first page URL for the catalog at base.
func (c *Catalog) StartURL(base string) string {
	return WithLocaleQuery(base, c.lang)
}

// Page fetches and parses the catalog page at pageURL. The next-page URL
// carries the language filter even when the page omitted it.
func (c *Catalog) Page(ctx context.Context, pageURL string) (*harvest.CatalogPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, harvest.Errorf(harvest.EINVALID, "invalid page URL %q: %v", pageURL, err)
	}
	setHeaders(req, c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, harvest.Errorf(harvest.EUNAVAILABLE, "HTTP %d for %s", resp.StatusCode, pageURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}

	page, err := c.parser.Parse(string(body), pageURL)
	if err != nil {
		return nil, err
	}
	if page.Next != "" {
		page.Next = WithLocaleQuery(page.Next, c.lang)
	}
	return page, nil
}

// WithLocaleQuery appends the text file type and language filters to
// rawURL unless it already carries a file type filter.
func WithLocaleQuery(rawURL, lang string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if _, ok := u.Query()["filetypes[]"]; ok {
		return rawURL
	}
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
		if strings.HasSuffix(rawURL, "?") || strings.HasSuffix(rawURL, "&") {
			sep = ""
		}
	}
	return rawURL + sep + "filetypes[]=txt&langs[]=" + url.QueryEscape(lang)
}

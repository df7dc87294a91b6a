package harvest

import "context"

// CatalogPage is one page of the harvest catalog.
type CatalogPage struct {
	// Links holds absolute archive URLs in page order.
	Links []string

	// Next is the absolute URL of the following page, empty on the last page.
	Next string
}

// Catalog serves the paginated list of archives.
type Catalog interface {
	// Page fetches the catalog page at pageURL.
	Page(ctx context.Context, pageURL string) (*CatalogPage, error)
}

// LinkParser extracts archive links and the next-page link from catalog HTML.
type LinkParser interface {
	// Parse resolves every link against pageURL.
	Parse(html string, pageURL string) (*CatalogPage, error)
}

package mock

import (
	"context"

	"github.com/fwojciec/harvest"
)

var _ harvest.Catalog = (*Catalog)(nil)

// Catalog is a mock implementation of harvest.Catalog.
type Catalog struct {
	PageFn func(ctx context.Context, pageURL string) (*harvest.CatalogPage, error)
}

func (c *Catalog) Page(ctx context.Context, pageURL string) (*harvest.CatalogPage, error) {
	return c.PageFn(ctx, pageURL)
}

var _ harvest.LinkParser = (*LinkParser)(nil)

// LinkParser is a mock implementation of harvest.LinkParser.
type LinkParser struct {
	ParseFn func(html string, pageURL string) (*harvest.CatalogPage, error)
}

func (p *LinkParser) Parse(html string, pageURL string) (*harvest.CatalogPage, error) {
	return p.ParseFn(html, pageURL)
}

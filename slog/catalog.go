// Package slog decorates harvest services with structured logging.
package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/harvest"
)

// Ensure LoggingCatalog implements harvest.Catalog.
var _ harvest.Catalog = (*LoggingCatalog)(nil)

// LoggingCatalog wraps a Catalog with logging.
type LoggingCatalog struct {
	next   harvest.Catalog
	logger *slog.Logger
}

// NewLoggingCatalog creates a new LoggingCatalog.
func NewLoggingCatalog(next harvest.Catalog, logger *slog.Logger) *LoggingCatalog {
	return &LoggingCatalog{next: next, logger: logger}
}

// Page delegates to the wrapped catalog and logs the operation.
func (c *LoggingCatalog) Page(ctx context.Context, pageURL string) (page *harvest.CatalogPage, err error) {
	defer func(begin time.Time) {
		links, next := 0, ""
		if page != nil {
			links, next = len(page.Links), page.Next
		}
		c.logger.Info("catalog page",
			"url", pageURL,
			"links", links,
			"next", next,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return c.next.Page(ctx, pageURL)
}

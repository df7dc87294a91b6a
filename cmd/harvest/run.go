package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/fwojciec/harvest"
	"github.com/fwojciec/harvest/crawl"
	"github.com/fwojciec/harvest/fs"
	"github.com/fwojciec/harvest/goquery"
	harvesthttp "github.com/fwojciec/harvest/http"
	"github.com/fwojciec/harvest/mirror"
	"github.com/fwojciec/harvest/normalize"
	harvestslog "github.com/fwojciec/harvest/slog"
	"github.com/fwojciec/harvest/sqlite"
	"github.com/fwojciec/harvest/zip"
)

// Run executes the run command.
func (c *RunCmd) Run(deps *Dependencies) error {
	h := deps.Harvester
	if h == nil {
		built, closeFn, err := c.harvester(deps)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %v\n", err)
			return err
		}
		defer closeFn()
		h = built
	}

	summary, err := h.Harvest(deps.Ctx, c.progress(deps))
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error harvesting: %v\n", err)
		return err
	}

	if summary.Resumed {
		fmt.Fprintf(deps.Stdout, "Resumed run %s\n", summary.RunID)
	}
	fmt.Fprintf(deps.Stdout, "Harvested %d documents from %d pages\n", len(summary.Processed), summary.Pages)
	if len(summary.Failed) > 0 {
		fmt.Fprintf(deps.Stdout, "Failed %d: %s\n", len(summary.Failed), strings.Join(summary.Failed, ", "))
	}
	return nil
}

// harvester wires the production components from flags. The returned
// function releases the state database.
func (c *RunCmd) harvester(deps *Dependencies) (*crawl.Harvester, func(), error) {
	logger := deps.Logger

	staging := fs.NewStaging(c.Staging)
	if err := staging.Init(); err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(c.Output, 0755); err != nil {
		return nil, nil, fmt.Errorf("create output directory: %w", err)
	}

	patterns := c.Mirror
	if len(patterns) == 0 {
		patterns = mirror.DefaultPatterns()
	}
	validator := zip.NewValidator()

	fetchOpts := []harvesthttp.FetcherOption{
		harvesthttp.WithTimeout(c.Timeout),
		harvesthttp.WithMinBytes(c.MinBytes),
		harvesthttp.WithLogger(logger),
	}
	if c.RPS > 0 {
		fetchOpts = append(fetchOpts, harvesthttp.WithDomainLimiter(crawl.NewDomainLimiter(c.RPS, 1)))
	}
	fetcher := harvesthttp.NewArchiveFetcher(c.Staging, mirror.NewResolver(patterns...), validator, fetchOpts...)

	catalog := harvesthttp.NewCatalog(goquery.NewLinkParser(),
		harvesthttp.WithLanguage(c.Lang),
		harvesthttp.WithCatalogClient(&http.Client{Timeout: c.Timeout}),
	)

	h := &crawl.Harvester{
		Catalog:            harvestslog.NewLoggingCatalog(catalog, logger),
		Fetcher:            harvestslog.NewLoggingArchiveFetcher(fetcher, logger),
		Staging:            staging,
		Validator:          validator,
		Extractor:          zip.NewExtractor(),
		Normalizer:         normalize.NewNormalizer(normalize.GutenbergMarkers(), normalize.WithLogger(logger)),
		Documents:          harvestslog.NewLoggingDocumentWriter(fs.NewWriter(c.Output), logger),
		StartURL:           catalog.StartURL(c.CatalogURL),
		Concurrency:        c.Concurrency,
		MaxRetries:         c.Retries,
		Backoff:            c.Backoff,
		PageDelay:          c.PageDelay,
		MaxPages:           c.MaxPages,
		CatalogErrorsFatal: c.CatalogErrorsFatal,
		Log:                logFunc(logger),
	}

	if c.StateDB == "" {
		return h, func() {}, nil
	}

	db := sqlite.NewDB(c.StateDB)
	if err := db.Open(); err != nil {
		return nil, nil, fmt.Errorf("failed to open state database at %q: %w", c.StateDB, err)
	}
	store := sqlite.NewStateStore(db)
	if c.Fresh {
		if err := discardProgress(deps, store); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
	}
	h.States = harvestslog.NewLoggingStateStore(store, logger)

	return h, func() { _ = db.Close() }, nil
}

// discardProgress deletes the most recent run from the store.
func discardProgress(deps *Dependencies, store *sqlite.StateStore) error {
	snap, err := store.Load(deps.Ctx)
	if harvest.ErrorCode(err) == harvest.ENOTFOUND {
		return nil
	}
	if err != nil {
		return err
	}
	return store.DeleteRun(deps.Ctx, snap.RunID)
}

// progress prints harvest events: milestones to stdout, problems to stderr.
func (c *RunCmd) progress(deps *Dependencies) crawl.ProgressFunc {
	return func(e crawl.ProgressEvent) {
		switch e.Type {
		case crawl.ProgressPageFetched:
			fmt.Fprintf(deps.Stdout, "Page %d: %d archives\n", e.Page, e.Links)
		case crawl.ProgressProcessed:
			fmt.Fprintf(deps.Stdout, "  saved %s\n", e.ID)
		case crawl.ProgressDuplicate:
			fmt.Fprintf(deps.Stdout, "  %s has the same content as %s\n", e.ID, e.DuplicateOf)
		case crawl.ProgressFetchFailed:
			fmt.Fprintf(deps.Stderr, "  failed %s: no mirror served a valid archive\n", e.ID)
		case crawl.ProgressProcessFailed:
			fmt.Fprintf(deps.Stderr, "  failed %s: %s\n", e.ID, e.Reason)
		case crawl.ProgressInvalidLink:
			fmt.Fprintf(deps.Stderr, "  skip %s: %s\n", e.URL, harvest.ErrorMessage(e.Error))
		case crawl.ProgressCatalogError:
			fmt.Fprintf(deps.Stderr, "catalog page %s unavailable, stopping: %v\n", e.URL, e.Error)
		case crawl.ProgressPaginationLoop:
			fmt.Fprintf(deps.Stderr, "catalog page %s already visited, stopping\n", e.URL)
		}
	}
}

// logFunc adapts a structured logger to crawl.LogFunc.
func logFunc(logger *slog.Logger) crawl.LogFunc {
	return func(format string, args ...any) {
		logger.Info(fmt.Sprintf(format, args...))
	}
}

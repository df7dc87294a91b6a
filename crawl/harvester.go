// Package crawl orchestrates a harvest run: it walks the catalog page by
// page, fetches archives with retries under a shared concurrency bound,
// and turns staged archives into documents.
package crawl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/harvest"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Harvest defaults.
const (
	DefaultConcurrency = 10
	DefaultPageDelay   = 1 * time.Second
)

// ReasonEmptyContent is recorded when normalization leaves nothing to write.
const ReasonEmptyContent = "empty processed content"

// Harvester runs a complete harvest over a paginated catalog.
type Harvester struct {
	Catalog    harvest.Catalog
	Fetcher    harvest.ArchiveFetcher
	Staging    harvest.StagingArea
	Validator  harvest.ArchiveValidator
	Extractor  harvest.ArchiveExtractor
	Normalizer harvest.Normalizer
	Documents  harvest.DocumentWriter
	// States is optional. When set, progress is loaded at start and saved
	// after every page.
	States harvest.StateStore

	StartURL    string
	Concurrency int
	MaxRetries  int
	Backoff     time.Duration
	PageDelay   time.Duration
	// MaxPages stops the run after that many pages. Zero means no limit.
	MaxPages int
	// CatalogErrorsFatal makes a failed catalog request end the run with an
	// error instead of treating it as the last page.
	CatalogErrorsFatal bool
	// RunID labels saved snapshots. Generated when empty.
	RunID string
	Sleep SleepFunc
	Log   LogFunc
}

// Summary holds the outcome of a harvest run.
type Summary struct {
	RunID     string
	Processed []string
	Failed    []string
	Pages     int
	Resumed   bool
}

// run holds the per-call state of one Harvest invocation.
type run struct {
	*Harvester
	id       string
	state    *State
	limiter  *semaphore.Weighted
	coord    *Coordinator
	progress ProgressFunc
	sleep    SleepFunc
}

// Harvest walks the catalog from StartURL, or from the saved next page
// when resuming, until a page has no links, no next page, or the page
// limit is reached. Per-identifier failures are recorded in the summary;
// storage failures end the run with an error.
func (h *Harvester) Harvest(ctx context.Context, progress ProgressFunc) (*Summary, error) {
	r := &run{
		Harvester: h,
		id:        h.RunID,
		state:     NewState(),
		progress:  serialize(progress),
		sleep:     h.Sleep,
	}
	if r.sleep == nil {
		r.sleep = Sleep
	}

	concurrency := h.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	backoff := h.Backoff
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	r.limiter = semaphore.NewWeighted(int64(concurrency))
	r.coord = &Coordinator{
		Fetcher:    h.Fetcher,
		State:      r.state,
		Limiter:    r.limiter,
		MaxRetries: h.MaxRetries,
		Backoff:    backoff,
		Sleep:      r.sleep,
		Log:        h.Log,
	}

	pageURL := h.StartURL
	resumed := false
	if h.States != nil {
		snap, err := h.States.Load(ctx)
		switch {
		case err == nil:
			r.state.Restore(snap)
			if snap.NextPage != "" {
				pageURL = snap.NextPage
			}
			if r.id == "" {
				r.id = snap.RunID
			}
			resumed = true
			r.logf("resuming run %s: %d processed, %d failed", snap.RunID, len(snap.Processed), len(snap.Failed))
		case harvest.ErrorCode(err) == harvest.ENOTFOUND:
		default:
			return nil, fmt.Errorf("load state: %w", err)
		}
	}
	if r.id == "" {
		r.id = uuid.New().String()
	}

	pages, err := r.walk(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	r.progress(ProgressEvent{Type: ProgressFinished, Page: pages})

	return &Summary{
		RunID:     r.id,
		Processed: r.state.Processed(),
		Failed:    r.state.Failed(),
		Pages:     pages,
		Resumed:   resumed,
	}, nil
}

// walk is the pagination loop. It returns the number of pages handled.
func (r *run) walk(ctx context.Context, pageURL string) (int, error) {
	delay := r.PageDelay
	if delay <= 0 {
		delay = DefaultPageDelay
	}
	visited := NewPageTracker(DefaultExpectedPages, DefaultPageFalseRate)
	visited.Visit(pageURL)

	pages := 0
	for pageURL != "" {
		r.progress(ProgressEvent{Type: ProgressPageStarted, Page: pages + 1, URL: pageURL})

		page, err := r.Catalog.Page(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return pages, ctx.Err()
			}
			if r.CatalogErrorsFatal {
				return pages, fmt.Errorf("catalog page %s: %w", pageURL, err)
			}
			r.progress(ProgressEvent{Type: ProgressCatalogError, Page: pages + 1, URL: pageURL, Error: err})
			return pages, nil
		}
		if len(page.Links) == 0 {
			r.logf("no archive links on %s", pageURL)
			return pages, nil
		}

		pages++
		r.progress(ProgressEvent{Type: ProgressPageFetched, Page: pages, URL: pageURL, Links: len(page.Links)})

		if err := r.fetchAll(ctx, pages, page.Links); err != nil {
			return pages, err
		}
		if err := r.processStaged(ctx, pages); err != nil {
			return pages, err
		}

		next := page.Next
		done := false
		switch {
		case next == "":
			done = true
		case r.MaxPages > 0 && pages >= r.MaxPages:
			r.logf("page limit %d reached", r.MaxPages)
			done = true
		case !visited.Visit(next):
			r.progress(ProgressEvent{Type: ProgressPaginationLoop, Page: pages, URL: next})
			next = ""
			done = true
		}

		if r.States != nil {
			if err := r.States.Save(ctx, r.state.Snapshot(r.id, next)); err != nil {
				return pages, fmt.Errorf("save state: %w", err)
			}
		}
		r.progress(ProgressEvent{Type: ProgressPageFinished, Page: pages, URL: next})

		if done {
			return pages, nil
		}
		if err := r.sleep(ctx, delay); err != nil {
			return pages, err
		}
		pageURL = next
	}
	return pages, nil
}

// fetchAll stages the archives of one page. Each link gets its own task;
// only fatal errors cancel the siblings.
func (r *run) fetchAll(ctx context.Context, page int, links []string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, raw := range links {
		link, err := harvest.NewLink(raw)
		if err != nil {
			r.progress(ProgressEvent{Type: ProgressInvalidLink, Page: page, URL: raw, Error: err})
			continue
		}
		g.Go(func() error {
			outcome, err := r.coord.FetchWithRetry(gctx, link)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", link.ID, err)
			}
			event := ProgressEvent{Page: page, URL: link.URL, ID: link.ID, Outcome: outcome}
			switch {
			case outcome == OutcomeFetched:
				event.Type = ProgressFetched
			case outcome == OutcomeFailed:
				event.Type = ProgressFetchFailed
			default:
				event.Type = ProgressSkipped
			}
			r.progress(event)
			return nil
		})
	}
	return g.Wait()
}

// processStaged turns every staged archive into a document, including
// archives left behind by an earlier run.
func (r *run) processStaged(ctx context.Context, page int) error {
	archives, err := r.Staging.List(ctx)
	if err != nil {
		return fmt.Errorf("list staging: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, archive := range archives {
		g.Go(func() error {
			if err := r.limiter.Acquire(gctx, 1); err != nil {
				return err
			}
			defer r.limiter.Release(1)
			return r.processArchive(gctx, page, archive)
		})
	}
	return g.Wait()
}

func (r *run) processArchive(ctx context.Context, page int, archive *harvest.Archive) error {
	if r.state.Status(archive.ID).Terminal() {
		if err := r.Staging.Remove(ctx, archive); err != nil {
			return err
		}
		r.progress(ProgressEvent{Type: ProgressStaleArchive, Page: page, ID: archive.ID})
		return nil
	}
	if !r.state.BeginProcessing(archive.ID) {
		return nil
	}

	content, reason := r.content(archive)
	if reason != "" {
		r.state.MarkFailed(archive.ID)
		if err := r.Staging.Remove(ctx, archive); err != nil {
			return err
		}
		r.progress(ProgressEvent{Type: ProgressProcessFailed, Page: page, ID: archive.ID, Reason: reason})
		return nil
	}

	source := archive.SourceURL
	if source == "" {
		source = r.state.Source(archive.ID)
	}
	doc := &harvest.Document{
		ID:          archive.ID,
		SourceURL:   source,
		Content:     content,
		ContentHash: ComputeHash(content),
	}
	if err := r.Documents.CreateDocument(ctx, doc); err != nil {
		r.state.Release(archive.ID)
		return fmt.Errorf("write document %s: %w", archive.ID, err)
	}
	r.state.MarkProcessed(archive.ID)
	duplicateOf := r.state.RecordHash(archive.ID, doc.ContentHash)

	if err := r.Staging.Remove(ctx, archive); err != nil {
		return err
	}
	r.progress(ProgressEvent{Type: ProgressProcessed, Page: page, URL: source, ID: archive.ID})
	if duplicateOf != "" {
		r.progress(ProgressEvent{Type: ProgressDuplicate, Page: page, ID: archive.ID, DuplicateOf: duplicateOf})
	}
	return nil
}

// content validates and extracts an archive. A non-empty reason means the
// identifier failed.
func (r *run) content(archive *harvest.Archive) (string, string) {
	if result := r.Validator.Validate(archive.Path); !result.Valid {
		return "", result.Reason
	}

	members, err := r.Extractor.Extract(archive.Path)
	if err != nil {
		return "", harvest.ErrorMessage(err)
	}

	var parts []string
	for _, m := range members {
		if text := r.Normalizer.Normalize(m.Text); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", ReasonEmptyContent
	}
	return strings.Join(parts, "\n\n"), ""
}

func (r *run) logf(format string, args ...any) {
	if r.Log != nil {
		r.Log(format, args...)
	}
}

// ComputeHash computes a hash of the content using xxhash.
func ComputeHash(content string) string {
	return fmt.Sprintf("%x", xxhash.Sum64String(content))
}

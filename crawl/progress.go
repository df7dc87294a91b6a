package crawl

import "sync"

// ProgressEvent reports progress during a harvest run.
type ProgressEvent struct {
	Type ProgressType
	// Page is the 1-based catalog page number.
	Page int
	URL  string
	ID   string
	// Links is the number of archive links on the page.
	Links   int
	Outcome Outcome
	Reason  string
	Error   error
	// DuplicateOf names the identifier whose document has the same content.
	DuplicateOf string
}

// ProgressType indicates the type of progress event.
type ProgressType int

const (
	ProgressPageStarted ProgressType = iota
	ProgressPageFetched
	ProgressCatalogError
	ProgressInvalidLink
	ProgressFetched
	ProgressSkipped
	ProgressFetchFailed
	ProgressProcessed
	ProgressProcessFailed
	ProgressStaleArchive
	ProgressDuplicate
	ProgressPaginationLoop
	ProgressPageFinished
	ProgressFinished
)

// ProgressFunc is a callback for reporting harvest progress.
type ProgressFunc func(event ProgressEvent)

// serialize wraps fn so concurrent workers never call it at the same time.
func serialize(fn ProgressFunc) ProgressFunc {
	if fn == nil {
		return func(ProgressEvent) {}
	}
	var mu sync.Mutex
	return func(event ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		fn(event)
	}
}

package crawl

import (
	"context"
	"time"

	"github.com/fwojciec/harvest"
	"golang.org/x/sync/semaphore"
)

// Retry defaults.
const (
	DefaultMaxRetries = 3
	DefaultBackoff    = 1 * time.Second
)

// Outcome is the result of one FetchWithRetry call.
type Outcome int

const (
	// OutcomeFetched means the archive is staged.
	OutcomeFetched Outcome = iota
	// OutcomeFailed means every attempt failed and the identifier is now
	// recorded as failed.
	OutcomeFailed
	// OutcomeAlreadyProcessed means the identifier was processed earlier.
	OutcomeAlreadyProcessed
	// OutcomeAlreadyFailed means the identifier failed earlier.
	OutcomeAlreadyFailed
	// OutcomeInProgress means another worker owns the identifier.
	OutcomeInProgress
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFetched:
		return "fetched"
	case OutcomeFailed:
		return "failed"
	case OutcomeAlreadyProcessed:
		return "already processed"
	case OutcomeAlreadyFailed:
		return "already failed"
	case OutcomeInProgress:
		return "in progress"
	default:
		return "unknown"
	}
}

// Skipped reports whether no fetch was attempted.
func (o Outcome) Skipped() bool {
	return o == OutcomeAlreadyProcessed || o == OutcomeAlreadyFailed || o == OutcomeInProgress
}

// LogFunc is the signature for a logging function.
type LogFunc func(format string, args ...any)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep waits for d, returning the context error if ctx is done first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// attemptState is a position in the per-identifier retry machine.
type attemptState int

const (
	stateAttempting attemptState = iota
	stateRetryPending
	stateSuccess
	stateExhausted
)

// Coordinator fetches archives with bounded concurrency and retries,
// consulting State so no identifier is fetched twice.
type Coordinator struct {
	Fetcher harvest.ArchiveFetcher
	State   *State
	// Limiter bounds concurrent work across the whole run.
	Limiter    *semaphore.Weighted
	MaxRetries int
	Backoff    time.Duration
	Sleep      SleepFunc
	Log        LogFunc
}

// FetchWithRetry stages the archive for link unless the identifier is
// already known. Known identifiers return at once without waiting for a
// concurrency slot. EUNAVAILABLE fetch errors are retried; every other
// fetch error, including context cancellation, is returned.
func (c *Coordinator) FetchWithRetry(ctx context.Context, link harvest.Link) (Outcome, error) {
	if o, known := c.precheck(link.ID); known {
		return o, nil
	}

	if err := c.Limiter.Acquire(ctx, 1); err != nil {
		return OutcomeInProgress, err
	}
	defer c.Limiter.Release(1)

	if !c.State.Claim(link.ID) {
		if o, known := c.precheck(link.ID); known {
			return o, nil
		}
		return OutcomeInProgress, nil
	}

	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	sleep := c.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var (
		archive *harvest.Archive
		lastErr error
	)
	attempt := 0
	state := stateAttempting
	for {
		switch state {
		case stateAttempting:
			attempt++
			a, err := c.Fetcher.Fetch(ctx, link)
			switch {
			case err == nil:
				archive = a
				state = stateSuccess
			case ctx.Err() != nil:
				c.State.Release(link.ID)
				return OutcomeInProgress, ctx.Err()
			case harvest.ErrorCode(err) != harvest.EUNAVAILABLE:
				c.State.Release(link.ID)
				return OutcomeInProgress, err
			case attempt >= maxRetries:
				lastErr = err
				state = stateExhausted
			default:
				lastErr = err
				state = stateRetryPending
			}

		case stateRetryPending:
			c.logf("retry %s (attempt %d/%d): %v", link.ID, attempt+1, maxRetries, lastErr)
			if err := sleep(ctx, c.Backoff); err != nil {
				c.State.Release(link.ID)
				return OutcomeInProgress, err
			}
			state = stateAttempting

		case stateSuccess:
			source := link.URL
			if archive != nil && archive.SourceURL != "" {
				source = archive.SourceURL
			}
			c.State.Stage(link.ID, source)
			return OutcomeFetched, nil

		case stateExhausted:
			c.State.MarkFailed(link.ID)
			c.logf("giving up on %s after %d attempts: %v", link.ID, attempt, lastErr)
			return OutcomeFailed, nil
		}
	}
}

// precheck maps a known identifier to its skip outcome.
func (c *Coordinator) precheck(id string) (Outcome, bool) {
	switch c.State.Status(id) {
	case StatusProcessed:
		return OutcomeAlreadyProcessed, true
	case StatusFailed:
		return OutcomeAlreadyFailed, true
	case StatusInFlight, StatusStaged:
		return OutcomeInProgress, true
	default:
		return 0, false
	}
}

func (c *Coordinator) logf(format string, args ...any) {
	if c.Log != nil {
		c.Log(format, args...)
	}
}

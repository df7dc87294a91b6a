package crawl_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fwojciec/harvest"
	"github.com/fwojciec/harvest/crawl"
	"github.com/fwojciec/harvest/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"
)

// sleepRecorder is a SleepFunc that returns at once and remembers every
// requested delay.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func unavailable(id string) error {
	return harvest.Errorf(harvest.EUNAVAILABLE, "all attempts failed for %s", id)
}

func newCoordinator(fetcher harvest.ArchiveFetcher, state *crawl.State, limit int64, sleep crawl.SleepFunc) *crawl.Coordinator {
	return &crawl.Coordinator{
		Fetcher:    fetcher,
		State:      state,
		Limiter:    semaphore.NewWeighted(limit),
		MaxRetries: 3,
		Backoff:    time.Second,
		Sleep:      sleep,
	}
}

func TestCoordinator_FetchWithRetry(t *testing.T) {
	t.Parallel()

	link := harvest.Link{URL: "https://example.com/files/7/7.zip", ID: "7"}

	t.Run("known identifiers skip without network or slot", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		fetcher := &mock.ArchiveFetcher{
			FetchFn: func(context.Context, harvest.Link) (*harvest.Archive, error) {
				calls.Add(1)
				return &harvest.Archive{}, nil
			},
		}
		state := crawl.NewState()
		state.MarkProcessed("7")
		state.MarkFailed("8")
		c := newCoordinator(fetcher, state, 1, (&sleepRecorder{}).Sleep)

		// Hold the only slot so a waiting call would block forever.
		require.NoError(t, c.Limiter.Acquire(context.Background(), 1))
		defer c.Limiter.Release(1)

		outcome, err := c.FetchWithRetry(context.Background(), link)
		require.NoError(t, err)
		assert.Equal(t, crawl.OutcomeAlreadyProcessed, outcome)

		outcome, err = c.FetchWithRetry(context.Background(), harvest.Link{URL: "https://example.com/files/8/8.zip", ID: "8"})
		require.NoError(t, err)
		assert.Equal(t, crawl.OutcomeAlreadyFailed, outcome)

		assert.Equal(t, int32(0), calls.Load())
	})

	t.Run("stages archive on first success", func(t *testing.T) {
		t.Parallel()

		fetcher := &mock.ArchiveFetcher{
			FetchFn: func(_ context.Context, l harvest.Link) (*harvest.Archive, error) {
				return &harvest.Archive{ID: l.ID}, nil
			},
		}
		state := crawl.NewState()
		c := newCoordinator(fetcher, state, 1, (&sleepRecorder{}).Sleep)

		outcome, err := c.FetchWithRetry(context.Background(), link)

		require.NoError(t, err)
		assert.Equal(t, crawl.OutcomeFetched, outcome)
		assert.Equal(t, crawl.StatusStaged, state.Status("7"))
		assert.Equal(t, link.URL, state.Source("7"))
	})

	t.Run("stages the mirror the archive came from", func(t *testing.T) {
		t.Parallel()

		fetcher := &mock.ArchiveFetcher{
			FetchFn: func(_ context.Context, l harvest.Link) (*harvest.Archive, error) {
				return &harvest.Archive{ID: l.ID, SourceURL: "https://mirror.example.com/7.zip"}, nil
			},
		}
		state := crawl.NewState()
		c := newCoordinator(fetcher, state, 1, (&sleepRecorder{}).Sleep)

		_, err := c.FetchWithRetry(context.Background(), link)

		require.NoError(t, err)
		assert.Equal(t, "https://mirror.example.com/7.zip", state.Source("7"))
	})

	t.Run("retries unavailable then succeeds", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		fetcher := &mock.ArchiveFetcher{
			FetchFn: func(_ context.Context, l harvest.Link) (*harvest.Archive, error) {
				if calls.Add(1) == 1 {
					return nil, unavailable(l.ID)
				}
				return &harvest.Archive{ID: l.ID}, nil
			},
		}
		sleeps := &sleepRecorder{}
		c := newCoordinator(fetcher, crawl.NewState(), 1, sleeps.Sleep)

		outcome, err := c.FetchWithRetry(context.Background(), link)

		require.NoError(t, err)
		assert.Equal(t, crawl.OutcomeFetched, outcome)
		assert.Equal(t, int32(2), calls.Load())
		assert.Equal(t, []time.Duration{time.Second}, sleeps.Delays())
	})

	t.Run("exhausted identifier is failed and never retried", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		fetcher := &mock.ArchiveFetcher{
			FetchFn: func(_ context.Context, l harvest.Link) (*harvest.Archive, error) {
				calls.Add(1)
				return nil, unavailable(l.ID)
			},
		}
		state := crawl.NewState()
		sleeps := &sleepRecorder{}
		var logged []string
		c := newCoordinator(fetcher, state, 1, sleeps.Sleep)
		c.Log = func(format string, args ...any) {
			logged = append(logged, fmt.Sprintf(format, args...))
		}

		outcome, err := c.FetchWithRetry(context.Background(), link)
		require.NoError(t, err)
		assert.Equal(t, crawl.OutcomeFailed, outcome)
		assert.Equal(t, int32(3), calls.Load())
		assert.Equal(t, []time.Duration{time.Second, time.Second}, sleeps.Delays())
		assert.Equal(t, []string{"7"}, state.Failed())
		assert.Len(t, logged, 3)

		outcome, err = c.FetchWithRetry(context.Background(), link)
		require.NoError(t, err)
		assert.Equal(t, crawl.OutcomeAlreadyFailed, outcome)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("fatal fetch error is returned without retry", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		fetcher := &mock.ArchiveFetcher{
			FetchFn: func(context.Context, harvest.Link) (*harvest.Archive, error) {
				calls.Add(1)
				return nil, harvest.Errorf(harvest.EINTERNAL, "disk full")
			},
		}
		state := crawl.NewState()
		c := newCoordinator(fetcher, state, 1, (&sleepRecorder{}).Sleep)

		_, err := c.FetchWithRetry(context.Background(), link)

		require.Error(t, err)
		assert.Equal(t, harvest.EINTERNAL, harvest.ErrorCode(err))
		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, crawl.StatusUnknown, state.Status("7"))
	})

	t.Run("cancellation during backoff is returned", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		fetcher := &mock.ArchiveFetcher{
			FetchFn: func(_ context.Context, l harvest.Link) (*harvest.Archive, error) {
				return nil, unavailable(l.ID)
			},
		}
		sleep := func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		}
		state := crawl.NewState()
		c := newCoordinator(fetcher, state, 1, sleep)

		_, err := c.FetchWithRetry(ctx, link)

		assert.True(t, errors.Is(err, context.Canceled))
		assert.Empty(t, state.Failed())
	})

	t.Run("duplicate concurrent links fetch once", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		fetcher := &mock.ArchiveFetcher{
			FetchFn: func(_ context.Context, l harvest.Link) (*harvest.Archive, error) {
				calls.Add(1)
				time.Sleep(5 * time.Millisecond)
				return &harvest.Archive{ID: l.ID}, nil
			},
		}
		c := newCoordinator(fetcher, crawl.NewState(), 4, (&sleepRecorder{}).Sleep)

		var wg sync.WaitGroup
		var fetched atomic.Int32
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				outcome, err := c.FetchWithRetry(context.Background(), link)
				if err == nil && outcome == crawl.OutcomeFetched {
					fetched.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, int32(1), fetched.Load())
	})

	t.Run("never exceeds the concurrency bound", func(t *testing.T) {
		t.Parallel()

		const limit = 3
		var inFlight, peak atomic.Int32
		fetcher := &mock.ArchiveFetcher{
			FetchFn: func(_ context.Context, l harvest.Link) (*harvest.Archive, error) {
				n := inFlight.Add(1)
				defer inFlight.Add(-1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				return &harvest.Archive{ID: l.ID}, nil
			},
		}
		state := crawl.NewState()
		c := newCoordinator(fetcher, state, limit, (&sleepRecorder{}).Sleep)

		var wg sync.WaitGroup
		for i := range 5 * limit {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id := fmt.Sprintf("%d", i+1)
				_, _ = c.FetchWithRetry(context.Background(), harvest.Link{URL: "https://example.com/" + id + "/" + id + ".zip", ID: id})
			}()
		}
		wg.Wait()

		assert.LessOrEqual(t, peak.Load(), int32(limit))
		for i := range 5 * limit {
			assert.Equal(t, crawl.StatusStaged, state.Status(fmt.Sprintf("%d", i+1)))
		}
	})
}

func TestOutcome_Skipped(t *testing.T) {
	t.Parallel()

	assert.False(t, crawl.OutcomeFetched.Skipped())
	assert.False(t, crawl.OutcomeFailed.Skipped())
	assert.True(t, crawl.OutcomeAlreadyProcessed.Skipped())
	assert.True(t, crawl.OutcomeAlreadyFailed.Skipped())
	assert.True(t, crawl.OutcomeInProgress.Skipped())
}

package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/harvest"
)

// Ensure LoggingStateStore implements harvest.StateStore.
var _ harvest.StateStore = (*LoggingStateStore)(nil)

// LoggingStateStore wraps a StateStore with debug logging.
type LoggingStateStore struct {
	next   harvest.StateStore
	logger *slog.Logger
}

// NewLoggingStateStore creates a new LoggingStateStore.
func NewLoggingStateStore(next harvest.StateStore, logger *slog.Logger) *LoggingStateStore {
	return &LoggingStateStore{next: next, logger: logger}
}

// Load delegates to the wrapped store and logs the operation.
func (s *LoggingStateStore) Load(ctx context.Context) (snap *harvest.Snapshot, err error) {
	defer func(begin time.Time) {
		attrs := []any{"duration", time.Since(begin), "err", err}
		if snap != nil {
			attrs = append(attrs,
				"run", snap.RunID,
				"processed", len(snap.Processed),
				"failed", len(snap.Failed),
				"next", snap.NextPage,
			)
		}
		s.logger.Debug("load state", attrs...)
	}(time.Now())
	return s.next.Load(ctx)
}

// Save delegates to the wrapped store and logs the operation.
func (s *LoggingStateStore) Save(ctx context.Context, snap *harvest.Snapshot) (err error) {
	defer func(begin time.Time) {
		s.logger.Debug("save state",
			"run", snap.RunID,
			"processed", len(snap.Processed),
			"failed", len(snap.Failed),
			"next", snap.NextPage,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Save(ctx, snap)
}

package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/harvest"
)

// Ensure LoggingArchiveFetcher implements harvest.ArchiveFetcher.
var _ harvest.ArchiveFetcher = (*LoggingArchiveFetcher)(nil)

// LoggingArchiveFetcher wraps an ArchiveFetcher with logging.
type LoggingArchiveFetcher struct {
	next   harvest.ArchiveFetcher
	logger *slog.Logger
}

// NewLoggingArchiveFetcher creates a new LoggingArchiveFetcher.
func NewLoggingArchiveFetcher(next harvest.ArchiveFetcher, logger *slog.Logger) *LoggingArchiveFetcher {
	return &LoggingArchiveFetcher{next: next, logger: logger}
}

// Fetch delegates to the wrapped fetcher and logs the operation.
// Unavailable archives are logged at warn level, other failures at error.
func (f *LoggingArchiveFetcher) Fetch(ctx context.Context, link harvest.Link) (archive *harvest.Archive, err error) {
	defer func(begin time.Time) {
		level := slog.LevelInfo
		source := ""
		switch {
		case err == nil:
			if archive != nil {
				source = archive.SourceURL
			}
		case harvest.ErrorCode(err) == harvest.EUNAVAILABLE:
			level = slog.LevelWarn
		default:
			level = slog.LevelError
		}
		f.logger.Log(ctx, level, "fetch archive",
			"id", link.ID,
			"url", link.URL,
			"source", source,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return f.next.Fetch(ctx, link)
}

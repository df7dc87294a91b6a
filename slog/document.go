package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/harvest"
)

// Ensure LoggingDocumentWriter implements harvest.DocumentWriter.
var _ harvest.DocumentWriter = (*LoggingDocumentWriter)(nil)

// LoggingDocumentWriter wraps a DocumentWriter with logging.
type LoggingDocumentWriter struct {
	next   harvest.DocumentWriter
	logger *slog.Logger
}

// NewLoggingDocumentWriter creates a new LoggingDocumentWriter.
func NewLoggingDocumentWriter(next harvest.DocumentWriter, logger *slog.Logger) *LoggingDocumentWriter {
	return &LoggingDocumentWriter{next: next, logger: logger}
}

// CreateDocument delegates to the wrapped writer and logs the operation.
func (w *LoggingDocumentWriter) CreateDocument(ctx context.Context, doc *harvest.Document) (err error) {
	defer func(begin time.Time) {
		w.logger.Info("write document",
			"id", doc.ID,
			"bytes", len(doc.Content),
			"hash", doc.ContentHash,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return w.next.CreateDocument(ctx, doc)
}

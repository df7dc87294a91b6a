package mock

import (
	"context"

	"github.com/fwojciec/harvest"
)

var _ harvest.DocumentWriter = (*DocumentWriter)(nil)

// DocumentWriter is a mock implementation of harvest.DocumentWriter.
type DocumentWriter struct {
	CreateDocumentFn func(ctx context.Context, doc *harvest.Document) error
}

func (w *DocumentWriter) CreateDocument(ctx context.Context, doc *harvest.Document) error {
	return w.CreateDocumentFn(ctx, doc)
}

var _ harvest.Normalizer = (*Normalizer)(nil)

// Normalizer is a mock implementation of harvest.Normalizer.
type Normalizer struct {
	NormalizeFn func(text string) string
}

func (n *Normalizer) Normalize(text string) string {
	return n.NormalizeFn(text)
}

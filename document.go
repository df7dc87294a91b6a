package harvest

import "context"

// Document is the normalized text harvested for one identifier.
type Document struct {
	ID          string `json:"id"`
	SourceURL   string `json:"sourceUrl"`
	Content     string `json:"content"`
	ContentHash string `json:"contentHash"`
}

// Validate returns an error if the document contains invalid fields.
func (d *Document) Validate() error {
	if d.ID == "" {
		return Errorf(EINVALID, "document ID required")
	}
	if d.Content == "" {
		return Errorf(EINVALID, "document content required")
	}
	return nil
}

// DocumentWriter writes documents to the output store.
type DocumentWriter interface {
	// CreateDocument writes the document under its final name only once
	// it is complete.
	CreateDocument(ctx context.Context, doc *Document) error
}

// Normalizer strips source boilerplate from extracted text.
type Normalizer interface {
	// Normalize never fails. On internal error it returns text unchanged.
	Normalize(text string) string
}

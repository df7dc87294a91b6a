package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fwojciec/harvest"
)

// Ensure Writer implements harvest.DocumentWriter at compile time.
var _ harvest.DocumentWriter = (*Writer)(nil)

// Writer writes documents as <id>.txt files to a directory.
type Writer struct {
	baseDir string
}

// NewWriter creates a new Writer that writes to the given base directory.
func NewWriter(baseDir string) *Writer {
	return &Writer{baseDir: baseDir}
}

// CreateDocument writes the document's content to disk. The file appears
// under its final name only once fully written.
func (w *Writer) CreateDocument(ctx context.Context, doc *harvest.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(doc.ID, `/\`) {
		return harvest.Errorf(harvest.EINVALID, "document ID %q contains a path separator", doc.ID)
	}

	if err := os.MkdirAll(w.baseDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	path := filepath.Join(w.baseDir, harvest.DocumentFileName(doc.ID))
	return writeFileAtomic(path, []byte(doc.Content))
}

// ListDocuments returns the paths of every document in dir, sorted by name.
func ListDocuments(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// CountDocuments returns the number of documents in dir.
// A missing directory holds no documents.
func CountDocuments(dir string) (int, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return 0, nil
	}
	paths, err := ListDocuments(dir)
	if err != nil {
		return 0, err
	}
	return len(paths), nil
}

package fs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

// Combine defaults.
const (
	DefaultMaxDocumentBytes = 5 * 1024 * 1024
	DefaultBatchSize        = 1000
	DefaultCombineWorkers   = 8
)

// CombineOption configures Combine.
type CombineOption func(*combineOptions)

type combineOptions struct {
	maxBytes  int
	batchSize int
	workers   int
}

// WithMaxDocumentBytes sets the size each document is truncated to.
func WithMaxDocumentBytes(n int) CombineOption {
	return func(o *combineOptions) {
		o.maxBytes = n
	}
}

// WithBatchSize sets how many documents are read before being written out.
func WithBatchSize(n int) CombineOption {
	return func(o *combineOptions) {
		o.batchSize = n
	}
}

// WithCombineWorkers sets how many documents are read concurrently.
func WithCombineWorkers(n int) CombineOption {
	return func(o *combineOptions) {
		o.workers = n
	}
}

// Combine concatenates every document in dir into w, each wrapped in
// start and end delimiter lines naming its file. Documents are trimmed and
// truncated to the configured maximum size. Returns the number of documents
// written.
func Combine(ctx context.Context, dir string, w io.Writer, opts ...CombineOption) (int, error) {
	o := combineOptions{
		maxBytes:  DefaultMaxDocumentBytes,
		batchSize: DefaultBatchSize,
		workers:   DefaultCombineWorkers,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.batchSize < 1 {
		o.batchSize = 1
	}
	if o.workers < 1 {
		o.workers = 1
	}

	paths, err := ListDocuments(dir)
	if err != nil {
		return 0, err
	}

	written := 0
	for start := 0; start < len(paths); start += o.batchSize {
		end := min(start+o.batchSize, len(paths))
		batch := paths[start:end]

		sections := make([]string, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.workers)
		for i, p := range batch {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				s, err := readSection(p, o.maxBytes)
				if err != nil {
					return err
				}
				sections[i] = s
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return written, err
		}

		for _, s := range sections {
			if written > 0 {
				if _, err := io.WriteString(w, "\n"); err != nil {
					return written, err
				}
			}
			if _, err := io.WriteString(w, s); err != nil {
				return written, err
			}
			written++
		}
	}
	return written, nil
}

func readSection(path string, maxBytes int) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	content := truncate(strings.TrimSpace(string(data)), maxBytes)
	name := filepath.Base(path)

	var b strings.Builder
	b.WriteString("--- Start of " + name + " ---\n")
	b.WriteString(content)
	b.WriteString("\n--- End of " + name + " ---\n\n")
	return b.String(), nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

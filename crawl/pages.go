package crawl

import (
	"strings"
	"sync"

	"github.com/fwojciec/harvest/bloom"
)

// Page tracker sizing.
const (
	DefaultExpectedPages = 100_000
	DefaultPageFalseRate = 0.0001
)

// PageTracker remembers visited catalog pages so a pagination loop ends
// the run. It is safe for concurrent use.
type PageTracker struct {
	mu   sync.Mutex
	seen *bloom.Filter
}

// NewPageTracker creates a PageTracker sized for n pages with the given
// false positive rate.
func NewPageTracker(n uint, fpRate float64) *PageTracker {
	return &PageTracker{seen: bloom.NewFilter(n, fpRate)}
}

// Visit records pageURL and reports whether it was new.
// URL fragments are ignored.
func (p *PageTracker) Visit(pageURL string) bool {
	if idx := strings.Index(pageURL, "#"); idx != -1 {
		pageURL = pageURL[:idx]
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seen.TestAndAdd(pageURL)
}

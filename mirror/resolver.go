// Package mirror expands an identifier into the ordered list of URLs it
// can be downloaded from.
package mirror

import (
	"strings"

	"github.com/fwojciec/harvest"
)

// Template placeholders.
const (
	// PlaceholderID is replaced with the identifier.
	PlaceholderID = "{id}"
	// PlaceholderPath is replaced with the identifier's leading digits
	// joined by "/" (1234 → 1/2/3).
	PlaceholderPath = "{path}"
)

// DefaultPatterns returns the Project Gutenberg primary and mirror layouts.
func DefaultPatterns() []string {
	bases := []string{
		"https://www.gutenberg.org/files",
		"http://aleph.gutenberg.org",
		"http://www.gutenberg.org/cache/epub",
	}
	var patterns []string
	for _, base := range bases {
		patterns = append(patterns,
			base+"/{path}/{id}/{id}.zip",
			base+"/{id}/pg{id}.txt.utf8.zip",
		)
	}
	return patterns
}

// Ensure Resolver implements harvest.MirrorResolver at compile time.
var _ harvest.MirrorResolver = (*Resolver)(nil)

// Resolver expands URL templates for an identifier.
// The first pattern is the primary source; the rest are mirrors.
type Resolver struct {
	patterns []string
}

// NewResolver creates a Resolver over the given patterns.
// If no patterns are given, DefaultPatterns is used.
func NewResolver(patterns ...string) *Resolver {
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}
	return &Resolver{patterns: patterns}
}

// Resolve returns the primary URL followed by every mirror URL,
// without duplicates. Identifiers that are not purely numeric cannot be
// split into a digit path, so only the primary URL is returned for them.
func (r *Resolver) Resolve(id string) []string {
	if id == "" {
		return nil
	}

	digits, ok := digitPath(id)
	if !ok {
		return []string{expand(r.patterns[0], id, "")}
	}

	seen := make(map[string]bool, len(r.patterns))
	urls := make([]string, 0, len(r.patterns))
	for _, p := range r.patterns {
		u := expand(p, id, digits)
		if seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	return urls
}

// digitPath splits all but the last digit of id into path segments.
func digitPath(id string) (string, bool) {
	for _, c := range id {
		if c < '0' || c > '9' {
			return "", false
		}
	}
	parts := make([]string, 0, len(id))
	for i := 0; i < len(id)-1; i++ {
		parts = append(parts, id[i:i+1])
	}
	return strings.Join(parts, "/"), true
}

// expand fills in a template and collapses empty path segments left by an
// empty {path}.
func expand(pattern, id, digits string) string {
	u := strings.ReplaceAll(pattern, PlaceholderPath, digits)
	u = strings.ReplaceAll(u, PlaceholderID, id)

	scheme := ""
	if i := strings.Index(u, "://"); i != -1 {
		scheme, u = u[:i+3], u[i+3:]
	}
	for strings.Contains(u, "//") {
		u = strings.ReplaceAll(u, "//", "/")
	}
	return scheme + u
}

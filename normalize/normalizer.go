// Package normalize strips source boilerplate from harvested text.
package normalize

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/fwojciec/harvest"
)

// Markers configures the boilerplate boundaries recognized by a Normalizer.
type Markers struct {
	// Start markers end the header; the header runs through the end of the
	// line holding the earliest match.
	Start []string

	// End markers begin the footer; the earliest match and everything after
	// it is dropped.
	End []string

	// License markers begin a trailing license block; the last match and
	// everything after it is dropped.
	License []string
}

// GutenbergMarkers returns the Project Gutenberg header, footer and
// license markers.
func GutenbergMarkers() Markers {
	return Markers{
		Start: []string{
			"*** START OF THIS PROJECT GUTENBERG",
			"*** START OF THE PROJECT GUTENBERG",
		},
		End: []string{
			"*** END OF THIS PROJECT GUTENBERG",
			"*** END OF THE PROJECT GUTENBERG",
		},
		License: []string{
			"End of the Project Gutenberg",
			"End of Project Gutenberg",
			"*** END OF THIS PROJECT GUTENBERG",
			"*** END OF THE PROJECT GUTENBERG",
		},
	}
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// Ensure Normalizer implements harvest.Normalizer at compile time.
var _ harvest.Normalizer = (*Normalizer)(nil)

// Normalizer removes header, footer and license boilerplate and collapses
// runs of blank lines.
type Normalizer struct {
	markers Markers
	logger  *slog.Logger
	steps   []func(string) string
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithLogger sets the logger that records recovered normalization failures.
func WithLogger(l *slog.Logger) Option {
	return func(n *Normalizer) {
		n.logger = l
	}
}

// NewNormalizer creates a Normalizer for the given markers.
func NewNormalizer(markers Markers, opts ...Option) *Normalizer {
	n := &Normalizer{
		markers: markers,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.steps = []func(string) string{
		n.cutHeader,
		n.cutFooter,
		n.cutLicense,
		collapse,
	}
	return n
}

// Normalize applies every step that finds its marker; a missing marker
// leaves the text as it is. If a step panics, the failure is logged and
// the original text is returned unchanged.
func (n *Normalizer) Normalize(text string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			n.log().Warn("normalize failed, keeping original text", "panic", r, "bytes", len(text))
			out = text
		}
	}()

	s := strings.ReplaceAll(text, "\r\n", "\n")
	for _, step := range n.steps {
		s = step(s)
	}
	return s
}

func (n *Normalizer) log() *slog.Logger {
	if n == nil || n.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return n.logger
}

// cutHeader drops everything through the end of the line holding the
// earliest start marker.
func (n *Normalizer) cutHeader(s string) string {
	i := firstIndex(s, n.markers.Start)
	if i == -1 {
		return s
	}
	if nl := strings.IndexByte(s[i:], '\n'); nl != -1 {
		return s[i+nl+1:]
	}
	return ""
}

func (n *Normalizer) cutFooter(s string) string {
	if i := firstIndex(s, n.markers.End); i != -1 {
		return s[:i]
	}
	return s
}

func (n *Normalizer) cutLicense(s string) string {
	if i := lastIndex(s, n.markers.License); i != -1 {
		return s[:i]
	}
	return s
}

func collapse(s string) string {
	return blankRuns.ReplaceAllString(strings.TrimSpace(s), "\n\n")
}

// firstIndex returns the earliest position of any marker in s, or -1.
func firstIndex(s string, markers []string) int {
	best := -1
	for _, m := range markers {
		if m == "" {
			continue
		}
		if i := strings.Index(s, m); i != -1 && (best == -1 || i < best) {
			best = i
		}
	}
	return best
}

// lastIndex returns the latest position of any marker in s, or -1.
func lastIndex(s string, markers []string) int {
	best := -1
	for _, m := range markers {
		if m == "" {
			continue
		}
		if i := strings.LastIndex(s, m); i > best {
			best = i
		}
	}
	return best
}

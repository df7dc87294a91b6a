package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/fwojciec/harvest"
)

// DefaultMinBytes is the smallest response body considered a plausible
// archive.
const DefaultMinBytes = 100

// partSuffix marks a download that has not been validated yet.
const partSuffix = ".part"

// Ensure ArchiveFetcher implements harvest.ArchiveFetcher at compile time.
var _ harvest.ArchiveFetcher = (*ArchiveFetcher)(nil)

// ArchiveFetcher downloads archives into a staging directory, falling back
// through mirror URLs until one yields a valid archive.
type ArchiveFetcher struct {
	client     *http.Client
	stagingDir string
	resolver   harvest.MirrorResolver
	validator  harvest.ArchiveValidator
	limiter    harvest.DomainLimiter
	timeout    time.Duration
	minBytes   int
	userAgent  string
	logger     *slog.Logger
}

// FetcherOption configures an ArchiveFetcher.
type FetcherOption func(*ArchiveFetcher)

// WithClient sets the HTTP client used for downloads.
func WithClient(c *http.Client) FetcherOption {
	return func(f *ArchiveFetcher) {
		f.client = c
	}
}

// WithTimeout sets the timeout applied to each download attempt.
// Defaults to DefaultTimeout (30s) if not specified.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *ArchiveFetcher) {
		f.timeout = d
	}
}

// WithMinBytes sets the minimum body size of a plausible archive.
func WithMinBytes(n int) FetcherOption {
	return func(f *ArchiveFetcher) {
		f.minBytes = n
	}
}

// WithDomainLimiter paces requests per host.
func WithDomainLimiter(l harvest.DomainLimiter) FetcherOption {
	return func(f *ArchiveFetcher) {
		f.limiter = l
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *ArchiveFetcher) {
		f.userAgent = ua
	}
}

// WithLogger sets the logger that records why each candidate was skipped.
func WithLogger(l *slog.Logger) FetcherOption {
	return func(f *ArchiveFetcher) {
		f.logger = l
	}
}

// NewArchiveFetcher creates an ArchiveFetcher that stages archives in
// stagingDir.
func NewArchiveFetcher(stagingDir string, resolver harvest.MirrorResolver, validator harvest.ArchiveValidator, opts ...FetcherOption) *ArchiveFetcher {
	f := &ArchiveFetcher{
		client:     http.DefaultClient,
		stagingDir: stagingDir,
		resolver:   resolver,
		validator:  validator,
		timeout:    DefaultTimeout,
		minBytes:   DefaultMinBytes,
		userAgent:  DefaultUserAgent,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Candidates returns the URLs tried for link in attempt order: the link URL
// followed by every mirror, without duplicates.
func (f *ArchiveFetcher) Candidates(link harvest.Link) []string {
	seen := make(map[string]bool)
	var urls []string
	add := func(u string) {
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		urls = append(urls, u)
	}
	add(link.URL)
	for _, u := range f.resolver.Resolve(link.ID) {
		add(u)
	}
	return urls
}

// Fetch downloads the archive for link. Each candidate body is written to
// a .part file, validated, and renamed to <id>.zip only when valid.
func (f *ArchiveFetcher) Fetch(ctx context.Context, link harvest.Link) (*harvest.Archive, error) {
	final := filepath.Join(f.stagingDir, harvest.ArchiveFileName(link.ID))
	part := final + partSuffix

	for _, candidate := range f.Candidates(link) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body, err := f.download(ctx, candidate)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.logger.Debug("candidate skipped", "id", link.ID, "url", candidate, "reason", err.Error())
			continue
		}

		if err := os.WriteFile(part, body, 0644); err != nil {
			return nil, harvest.Errorf(harvest.EINTERNAL, "stage archive %s: %v", link.ID, err)
		}

		result := f.validator.Validate(part)
		if !result.Valid {
			_ = os.Remove(part)
			f.logger.Debug("candidate skipped", "id", link.ID, "url", candidate, "reason", result.Reason)
			continue
		}

		if err := os.Rename(part, final); err != nil {
			_ = os.Remove(part)
			return nil, harvest.Errorf(harvest.EINTERNAL, "commit archive %s: %v", link.ID, err)
		}

		return &harvest.Archive{
			ID:        link.ID,
			Path:      final,
			SourceURL: candidate,
		}, nil
	}

	return nil, harvest.Errorf(harvest.EUNAVAILABLE, "all attempts failed for %s", link.ID)
}

// download performs one GET with the per-attempt timeout and returns the
// body of a plausible archive.
func (f *ArchiveFetcher) download(ctx context.Context, rawURL string) ([]byte, error) {
	if f.limiter != nil {
		if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
			if err := f.limiter.Wait(ctx, u.Host); err != nil {
				return nil, err
			}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	setHeaders(req, f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(body) < f.minBytes {
		return nil, fmt.Errorf("body too small: %d bytes", len(body))
	}
	return body, nil
}

var errNotFound = errors.New("not found")

package mock

import (
	"context"

	"github.com/fwojciec/harvest"
)

var _ harvest.ArchiveValidator = (*ArchiveValidator)(nil)

// ArchiveValidator is a mock implementation of harvest.ArchiveValidator.
type ArchiveValidator struct {
	ValidateFn func(path string) harvest.ValidationResult
}

func (v *ArchiveValidator) Validate(path string) harvest.ValidationResult {
	return v.ValidateFn(path)
}

var _ harvest.ArchiveExtractor = (*ArchiveExtractor)(nil)

// ArchiveExtractor is a mock implementation of harvest.ArchiveExtractor.
type ArchiveExtractor struct {
	ExtractFn func(path string) ([]harvest.Member, error)
}

func (e *ArchiveExtractor) Extract(path string) ([]harvest.Member, error) {
	return e.ExtractFn(path)
}

var _ harvest.MirrorResolver = (*MirrorResolver)(nil)

// MirrorResolver is a mock implementation of harvest.MirrorResolver.
type MirrorResolver struct {
	ResolveFn func(id string) []string
}

func (r *MirrorResolver) Resolve(id string) []string {
	return r.ResolveFn(id)
}

var _ harvest.ArchiveFetcher = (*ArchiveFetcher)(nil)

// ArchiveFetcher is a mock implementation of harvest.ArchiveFetcher.
type ArchiveFetcher struct {
	FetchFn func(ctx context.Context, link harvest.Link) (*harvest.Archive, error)
}

func (f *ArchiveFetcher) Fetch(ctx context.Context, link harvest.Link) (*harvest.Archive, error) {
	return f.FetchFn(ctx, link)
}

var _ harvest.StagingArea = (*StagingArea)(nil)

// StagingArea is a mock implementation of harvest.StagingArea.
type StagingArea struct {
	ListFn   func(ctx context.Context) ([]*harvest.Archive, error)
	RemoveFn func(ctx context.Context, archive *harvest.Archive) error
}

func (s *StagingArea) List(ctx context.Context) ([]*harvest.Archive, error) {
	return s.ListFn(ctx)
}

func (s *StagingArea) Remove(ctx context.Context, archive *harvest.Archive) error {
	return s.RemoveFn(ctx, archive)
}

var _ harvest.DomainLimiter = (*DomainLimiter)(nil)

// DomainLimiter is a mock implementation of harvest.DomainLimiter.
type DomainLimiter struct {
	WaitFn func(ctx context.Context, domain string) error
}

func (l *DomainLimiter) Wait(ctx context.Context, domain string) error {
	return l.WaitFn(ctx, domain)
}

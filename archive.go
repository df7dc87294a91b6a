package harvest

import "context"

// Archive is a downloaded archive sitting in the staging area.
type Archive struct {
	ID        string
	Path      string
	SourceURL string
}

// ValidationResult is the judgement passed on a staged archive.
// Reason is empty when Valid is true.
type ValidationResult struct {
	Valid  bool
	Reason string
}

// Validation failure reasons.
const (
	ReasonCorrupt      = "corrupt archive"
	ReasonNoPayload    = "no text payload"
	ReasonEmptyPayload = "empty payload member"
)

// ArchiveValidator inspects an archive on disk for integrity and expected
// content shape.
type ArchiveValidator interface {
	// Validate never fails; every problem is reported through the result.
	// It does not modify or delete the archive.
	Validate(path string) ValidationResult
}

// Member is one text payload read out of an archive.
type Member struct {
	Name string
	Text string
}

// ArchiveExtractor reads the text payload members of an archive.
type ArchiveExtractor interface {
	// Extract returns the payload members in archive order.
	Extract(path string) ([]Member, error)
}

// MirrorResolver produces the candidate source URLs for an identifier.
type MirrorResolver interface {
	// Resolve returns candidate URLs in attempt order, primary first.
	// It performs no I/O and never fails.
	Resolve(id string) []string
}

// ArchiveFetcher downloads one archive into the staging area.
type ArchiveFetcher interface {
	// Fetch tries the link URL and every mirror in order and returns the
	// first archive that passes validation.
	// Returns EUNAVAILABLE when every candidate failed. Any other error is
	// fatal for the run.
	Fetch(ctx context.Context, link Link) (*Archive, error)
}

// StagingArea lists and removes staged archives.
type StagingArea interface {
	// List returns every archive currently staged, including leftovers
	// from earlier runs.
	List(ctx context.Context) ([]*Archive, error)

	// Remove deletes a staged archive. Removing a missing archive is not
	// an error.
	Remove(ctx context.Context, archive *Archive) error
}

// DomainLimiter provides per-domain rate limiting.
type DomainLimiter interface {
	// Wait blocks until the rate limit allows a request to the domain.
	// Returns an error if the context is canceled.
	Wait(ctx context.Context, domain string) error
}

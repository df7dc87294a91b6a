package harvest

import "context"

// Snapshot is the persisted form of a harvest run's progress.
type Snapshot struct {
	RunID     string
	Processed []string
	Failed    []string

	// Hashes maps processed identifiers to their document content hash.
	// Identifiers processed before hashes were recorded are absent.
	Hashes map[string]string

	// NextPage is the catalog page to resume from. Empty when the run
	// finished or has not fetched a page yet.
	NextPage string
}

// StateStore persists harvest progress so a run can resume after a restart.
type StateStore interface {
	// Load returns the last saved snapshot.
	// Returns ENOTFOUND if nothing has been saved yet.
	Load(ctx context.Context) (*Snapshot, error)

	// Save replaces the stored snapshot.
	Save(ctx context.Context, snap *Snapshot) error
}

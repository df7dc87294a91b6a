package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fwojciec/harvest"
	"github.com/google/uuid"
)

// Identifier statuses as stored in the identifiers table.
const (
	statusProcessed = "processed"
	statusFailed    = "failed"
)

// timeLayout is fixed-width so stored timestamps sort lexically in time
// order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Compile-time interface verification.
var _ harvest.StateStore = (*StateStore)(nil)

// StateStore implements harvest.StateStore using SQLite.
// Each run keeps its own snapshot; Load returns the most recently saved.
type StateStore struct {
	db  *DB
	now func() time.Time
}

// StateStoreOption configures a StateStore.
type StateStoreOption func(*StateStore)

// WithClock sets the time source used for run timestamps.
func WithClock(now func() time.Time) StateStoreOption {
	return func(s *StateStore) {
		s.now = now
	}
}

// NewStateStore creates a new StateStore.
func NewStateStore(db *DB, opts ...StateStoreOption) *StateStore {
	s := &StateStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the most recently saved snapshot.
func (s *StateStore) Load(ctx context.Context) (*harvest.Snapshot, error) {
	snap := &harvest.Snapshot{Processed: []string{}, Failed: []string{}}

	err := s.db.QueryRowContext(ctx, `
		SELECT id, next_page
		FROM runs
		ORDER BY updated_at DESC, rowid DESC
		LIMIT 1
	`).Scan(&snap.RunID, &snap.NextPage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, harvest.Errorf(harvest.ENOTFOUND, "no saved harvest state")
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, content_hash
		FROM identifiers
		WHERE run_id = ?
		ORDER BY id
	`, snap.RunID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id, status, hash string
		if err := rows.Scan(&id, &status, &hash); err != nil {
			return nil, err
		}
		if status == statusProcessed {
			snap.Processed = append(snap.Processed, id)
			if hash != "" {
				if snap.Hashes == nil {
					snap.Hashes = make(map[string]string)
				}
				snap.Hashes[id] = hash
			}
		} else {
			snap.Failed = append(snap.Failed, id)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return snap, nil
}

// Save replaces the stored snapshot of snap's run. A snapshot without a
// run ID is assigned a new one.
func (s *StateStore) Save(ctx context.Context, snap *harvest.Snapshot) error {
	if snap.RunID == "" {
		snap.RunID = uuid.New().String()
	}
	now := s.now().UTC().Format(timeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, next_page, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET next_page = excluded.next_page, updated_at = excluded.updated_at
	`, snap.RunID, snap.NextPage, now, now); err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM identifiers WHERE run_id = ?`, snap.RunID); err != nil {
		return fmt.Errorf("clear identifiers: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO identifiers (run_id, id, status, content_hash)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, id) DO UPDATE SET status = excluded.status, content_hash = excluded.content_hash
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	// Processed is written last so it wins over a conflicting failure.
	for _, id := range snap.Failed {
		if _, err := stmt.ExecContext(ctx, snap.RunID, id, statusFailed, ""); err != nil {
			return fmt.Errorf("save identifier %s: %w", id, err)
		}
	}
	for _, id := range snap.Processed {
		if _, err := stmt.ExecContext(ctx, snap.RunID, id, statusProcessed, snap.Hashes[id]); err != nil {
			return fmt.Errorf("save identifier %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// DeleteRun removes a run and its identifiers.
// Returns ENOTFOUND if the run does not exist.
func (s *StateStore) DeleteRun(ctx context.Context, runID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return harvest.Errorf(harvest.ENOTFOUND, "run not found")
	}
	return nil
}

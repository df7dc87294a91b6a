package mock

import (
	"context"

	"github.com/fwojciec/harvest"
)

var _ harvest.StateStore = (*StateStore)(nil)

// StateStore is a mock implementation of harvest.StateStore.
type StateStore struct {
	LoadFn func(ctx context.Context) (*harvest.Snapshot, error)
	SaveFn func(ctx context.Context, snap *harvest.Snapshot) error
}

func (s *StateStore) Load(ctx context.Context) (*harvest.Snapshot, error) {
	return s.LoadFn(ctx)
}

func (s *StateStore) Save(ctx context.Context, snap *harvest.Snapshot) error {
	return s.SaveFn(ctx, snap)
}

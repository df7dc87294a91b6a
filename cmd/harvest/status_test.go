package main_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/fwojciec/harvest"
	main "github.com/fwojciec/harvest/cmd/harvest"
	"github.com/fwojciec/harvest/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCmd(t *testing.T) {
	t.Parallel()

	t.Run("prints saved snapshot", func(t *testing.T) {
		t.Parallel()

		store := &mock.StateStore{
			LoadFn: func(ctx context.Context) (*harvest.Snapshot, error) {
				return &harvest.Snapshot{
					RunID:     "run-1",
					Processed: []string{"1", "2"},
					Failed:    []string{"3"},
					NextPage:  "https://example.com/harvest?page=4",
				}, nil
			},
		}
		stdout := &bytes.Buffer{}
		cmd := &main.StatusCmd{}

		err := cmd.Run(&main.Dependencies{Ctx: context.Background(), Stdout: stdout, Stderr: &bytes.Buffer{}, States: store})
		require.NoError(t, err)

		assert.Equal(t, "Run:       run-1\n"+
			"Processed: 2\n"+
			"Failed:    1\n"+
			"Next page: https://example.com/harvest?page=4\n", stdout.String())
	})

	t.Run("reports missing progress", func(t *testing.T) {
		t.Parallel()

		store := &mock.StateStore{
			LoadFn: func(ctx context.Context) (*harvest.Snapshot, error) {
				return nil, harvest.Errorf(harvest.ENOTFOUND, "no saved run")
			},
		}
		stdout := &bytes.Buffer{}
		cmd := &main.StatusCmd{}

		err := cmd.Run(&main.Dependencies{Ctx: context.Background(), Stdout: stdout, Stderr: &bytes.Buffer{}, States: store})
		require.NoError(t, err)
		assert.Equal(t, "No saved progress\n", stdout.String())
	})

	t.Run("returns load errors", func(t *testing.T) {
		t.Parallel()

		store := &mock.StateStore{
			LoadFn: func(ctx context.Context) (*harvest.Snapshot, error) {
				return nil, errors.New("disk on fire")
			},
		}
		stderr := &bytes.Buffer{}
		cmd := &main.StatusCmd{}

		err := cmd.Run(&main.Dependencies{Ctx: context.Background(), Stdout: &bytes.Buffer{}, Stderr: stderr, States: store})
		require.Error(t, err)
		assert.Contains(t, stderr.String(), "error:")
	})

	t.Run("requires a state database", func(t *testing.T) {
		t.Parallel()

		stderr := &bytes.Buffer{}
		cmd := &main.StatusCmd{}

		err := cmd.Run(&main.Dependencies{Ctx: context.Background(), Stdout: &bytes.Buffer{}, Stderr: stderr})
		require.Error(t, err)
		assert.Equal(t, harvest.EINVALID, harvest.ErrorCode(err))
		assert.Contains(t, stderr.String(), "--state-db is required")
	})
}

package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fwojciec/harvest"
)

// PartSuffix marks staged archives that have not passed validation yet.
const PartSuffix = ".part"

// Ensure Staging implements harvest.StagingArea at compile time.
var _ harvest.StagingArea = (*Staging)(nil)

// Staging is a directory of downloaded archives awaiting extraction.
// Validated archives are named <id>.zip; in-progress downloads carry
// PartSuffix and are never listed.
type Staging struct {
	dir string
}

// NewStaging creates a new Staging rooted at dir.
func NewStaging(dir string) *Staging {
	return &Staging{dir: dir}
}

// Dir returns the staging directory.
func (s *Staging) Dir() string {
	return s.dir
}

// Init creates the staging directory and removes in-progress downloads
// left behind by an interrupted run.
func (s *Staging) Init() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	parts, err := filepath.Glob(filepath.Join(s.dir, "*"+PartSuffix))
	if err != nil {
		return err
	}
	for _, p := range parts {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove partial download: %w", err)
		}
	}
	return nil
}

// List returns every validated archive in the staging directory, sorted by
// identifier.
func (s *Staging) List(ctx context.Context) ([]*harvest.Archive, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	paths, err := filepath.Glob(filepath.Join(s.dir, "*.zip"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	archives := make([]*harvest.Archive, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		archives = append(archives, &harvest.Archive{
			ID:   strings.TrimSuffix(filepath.Base(p), ".zip"),
			Path: p,
		})
	}
	return archives, nil
}

// Remove deletes a staged archive.
func (s *Staging) Remove(ctx context.Context, archive *harvest.Archive) error {
	if err := os.Remove(archive.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove staged archive %s: %w", archive.ID, err)
	}
	return nil
}

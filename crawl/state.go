package crawl

import (
	"sort"
	"sync"

	"github.com/fwojciec/harvest"
)

// Status is the lifecycle position of one identifier within a run.
type Status int

const (
	// StatusUnknown means the identifier has not been seen.
	StatusUnknown Status = iota
	// StatusInFlight means a worker owns the identifier.
	StatusInFlight
	// StatusStaged means the archive was fetched and awaits processing.
	StatusStaged
	// StatusProcessed is terminal: the document was written.
	StatusProcessed
	// StatusFailed is terminal: the identifier will not be retried.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusInFlight:
		return "in-flight"
	case StatusStaged:
		return "staged"
	case StatusProcessed:
		return "processed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusProcessed || s == StatusFailed
}

// State tracks identifiers across a harvest run.
// It is safe for concurrent use; every transition happens under one mutex.
type State struct {
	mu      sync.Mutex
	status  map[string]Status
	sources map[string]string
	hashes  map[string]string
	owners  map[string]string // content hash -> first identifier
}

// NewState creates an empty State.
func NewState() *State {
	return &State{
		status:  make(map[string]Status),
		sources: make(map[string]string),
		hashes:  make(map[string]string),
		owners:  make(map[string]string),
	}
}

// Status returns the current status of id.
func (s *State) Status(id string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status[id]
}

// Claim takes ownership of an unseen identifier for fetching.
// Returns false if the identifier is known in any state.
func (s *State) Claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.status[id]; ok {
		return false
	}
	s.status[id] = StatusInFlight
	return true
}

// Stage records that the claimed identifier's archive is staged and the
// URL it was downloaded from.
func (s *State) Stage(id, sourceURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status[id] == StatusInFlight {
		s.status[id] = StatusStaged
		if sourceURL != "" {
			s.sources[id] = sourceURL
		}
	}
}

// Source returns the URL id's archive was staged from during this run.
// Empty for archives left behind by an earlier run.
func (s *State) Source(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sources[id]
}

// BeginProcessing takes ownership of a staged archive's identifier.
// Identifiers that are unseen, such as leftovers from an earlier run, are
// accepted too. Returns false if the identifier is in flight or terminal.
func (s *State) BeginProcessing(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.status[id] {
	case StatusUnknown, StatusStaged:
		s.status[id] = StatusInFlight
		return true
	default:
		return false
	}
}

// Release forgets a non-terminal identifier so a later page may try it
// again. Used when a worker gives up without a verdict.
func (s *State) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.status[id].Terminal() {
		delete(s.status, id)
		delete(s.sources, id)
	}
}

// MarkProcessed records id as processed. Returns false if id already
// holds a terminal status.
func (s *State) MarkProcessed(id string) bool {
	return s.mark(id, StatusProcessed)
}

// MarkFailed records id as failed. Returns false if id already holds a
// terminal status.
func (s *State) MarkFailed(id string) bool {
	return s.mark(id, StatusFailed)
}

func (s *State) mark(id string, status Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status[id].Terminal() {
		return false
	}
	s.status[id] = status
	delete(s.sources, id)
	return true
}

// RecordHash stores the content hash of a processed identifier. It returns
// the identifier that first recorded the same hash, or "" when the content
// is new.
func (s *State) RecordHash(id, hash string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordHash(id, hash)
}

func (s *State) recordHash(id, hash string) string {
	s.hashes[id] = hash
	owner, ok := s.owners[hash]
	if !ok {
		s.owners[hash] = id
		return ""
	}
	if owner == id {
		return ""
	}
	return owner
}

// Processed returns the processed identifiers, sorted.
func (s *State) Processed() []string {
	return s.collect(StatusProcessed)
}

// Failed returns the failed identifiers, sorted.
func (s *State) Failed() []string {
	return s.collect(StatusFailed)
}

func (s *State) collect(status Status) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := []string{}
	for id, st := range s.status {
		if st == status {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Snapshot captures the terminal statuses and content hashes for
// persistence.
func (s *State) Snapshot(runID, nextPage string) *harvest.Snapshot {
	snap := &harvest.Snapshot{
		RunID:     runID,
		Processed: s.Processed(),
		Failed:    s.Failed(),
		NextPage:  nextPage,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range snap.Processed {
		hash, ok := s.hashes[id]
		if !ok {
			continue
		}
		if snap.Hashes == nil {
			snap.Hashes = make(map[string]string)
		}
		snap.Hashes[id] = hash
	}
	return snap
}

// Restore loads the terminal statuses of a snapshot. When an identifier
// appears in both lists, processed wins.
func (s *State) Restore(snap *harvest.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range snap.Failed {
		s.status[id] = StatusFailed
	}
	for _, id := range snap.Processed {
		s.status[id] = StatusProcessed
		if hash := snap.Hashes[id]; hash != "" {
			s.recordHash(id, hash)
		}
	}
}

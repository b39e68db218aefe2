// Package runstore archives terminal pipeline runs. Every run, successful or
// failed, leaves one record behind: identity, terminal status, the failing
// step when there is one, and the final context snapshot.
package runstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when no record exists for a run ID
var ErrNotFound = errors.New("run not found")

// Record is one archived pipeline run
type Record struct {
	RunID       string    `json:"run_id"`
	Pipeline    string    `json:"pipeline"`
	Status      string    `json:"status"`
	FailingStep string    `json:"failing_step,omitempty"`
	ErrorDetail string    `json:"error_detail,omitempty"`
	Context     []byte    `json:"context"` // final context snapshot, JSON
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Store is the run archive contract
type Store interface {
	// Save archives one run record
	Save(ctx context.Context, record *Record) error

	// Get returns the record for a run ID, or ErrNotFound
	Get(ctx context.Context, runID string) (*Record, error)

	// List returns records, newest first. pipeline filters when non-empty;
	// limit caps the result when positive.
	List(ctx context.Context, pipeline string, limit int) ([]*Record, error)

	// Close releases store resources
	Close() error
}

// ============================================================================
// IN-MEMORY STORE
// ============================================================================

// MemoryStore is an in-memory run archive. It is the default backend and
// the one tests use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
	}
}

// Save implements Store.Save
func (s *MemoryStore) Save(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *record
	s.records[record.RunID] = &copied
	return nil
}

// Get implements Store.Get
func (s *MemoryStore) Get(_ context.Context, runID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[runID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *record
	return &copied, nil
}

// List implements Store.List
func (s *MemoryStore) List(_ context.Context, pipeline string, limit int) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*Record, 0, len(s.records))
	for _, record := range s.records {
		if pipeline != "" && record.Pipeline != pipeline {
			continue
		}
		copied := *record
		records = append(records, &copied)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].FinishedAt.After(records[j].FinishedAt)
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Close implements Store.Close
func (s *MemoryStore) Close() error {
	return nil
}

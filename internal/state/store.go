// Package state persists the mapping from event identity keys to the
// metadata of the last successful sync. The whole store is one JSON
// snapshot replaced atomically on every write, so a crash mid-write
// leaves the previous valid snapshot intact.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/tazhate/icalsync/internal/domain"
)

// IOError reports a persistence failure. It is fatal for the run that
// hits it; the prior snapshot on disk remains valid.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("state store: %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

type snapshot struct {
	Records map[string]domain.SyncRecord `json:"records"`
}

// Store is the durable record of previously-synced events. It is safe for
// use from multiple goroutines within one process; cross-process locking
// is not supported.
type Store struct {
	path string

	mu      sync.Mutex
	records map[string]domain.SyncRecord
}

// Open loads the snapshot at path, or starts empty if none exists yet.
func Open(path string) (*Store, error) {
	s := &Store{
		path:    path,
		records: make(map[string]domain.SyncRecord),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, &IOError{Op: "read snapshot", Err: err}
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, &IOError{Op: "parse snapshot", Err: err}
	}
	if snap.Records != nil {
		s.records = snap.Records
	}
	return s, nil
}

// Get returns the record for the given identity key.
func (s *Store) Get(key string) (domain.SyncRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	return rec, ok
}

// Put stores the record and persists the snapshot.
func (s *Store) Put(rec domain.SyncRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.records[rec.IdentityKey]
	s.records[rec.IdentityKey] = rec
	if err := s.persistLocked(); err != nil {
		// Roll back the in-memory change so memory matches disk.
		if had {
			s.records[rec.IdentityKey] = prev
		} else {
			delete(s.records, rec.IdentityKey)
		}
		return err
	}
	return nil
}

// Delete removes the record for the given key and persists the snapshot.
// Deleting an absent key is a no-op.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.records[key]
	if !had {
		return nil
	}
	delete(s.records, key)
	if err := s.persistLocked(); err != nil {
		s.records[key] = prev
		return err
	}
	return nil
}

// All returns every record, ordered by identity key for determinism.
func (s *Store) All() []domain.SyncRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.SyncRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IdentityKey < out[j].IdentityKey })
	return out
}

// SnapshotFor returns the records belonging to one source calendar.
func (s *Store) SnapshotFor(calendar string) []domain.SyncRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SyncRecord
	for _, rec := range s.records {
		if rec.SourceCalendar == calendar {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IdentityKey < out[j].IdentityKey })
	return out
}

// Count returns the number of stored records.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Reset drops all records and persists the empty snapshot. Every source
// event is treated as new on the next sync.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.records
	s.records = make(map[string]domain.SyncRecord)
	if err := s.persistLocked(); err != nil {
		s.records = prev
		return err
	}
	return nil
}

// persistLocked writes the snapshot to a temp file in the same directory
// and renames it over the target. Callers must hold s.mu.
func (s *Store) persistLocked() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return &IOError{Op: "create state dir", Err: err}
	}

	data, err := json.MarshalIndent(snapshot{Records: s.records}, "", "  ")
	if err != nil {
		return &IOError{Op: "marshal snapshot", Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".sync_state-*.tmp")
	if err != nil {
		return &IOError{Op: "create temp snapshot", Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &IOError{Op: "write temp snapshot", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &IOError{Op: "sync temp snapshot", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &IOError{Op: "close temp snapshot", Err: err}
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return &IOError{Op: "chmod snapshot", Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return &IOError{Op: "replace snapshot", Err: err}
	}
	return nil
}

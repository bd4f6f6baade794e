package syncer

import (
	"sort"

	"github.com/tazhate/icalsync/internal/domain"
)

// memStore is an in-memory RecordStore for engine and executor tests.
type memStore struct {
	records map[string]domain.SyncRecord
	puts    int
	deletes int
	failPut bool
}

func newMemStore(records ...domain.SyncRecord) *memStore {
	s := &memStore{records: make(map[string]domain.SyncRecord)}
	for _, rec := range records {
		s.records[rec.IdentityKey] = rec
	}
	return s
}

func (s *memStore) Get(key string) (domain.SyncRecord, bool) {
	rec, ok := s.records[key]
	return rec, ok
}

func (s *memStore) All() []domain.SyncRecord {
	out := make([]domain.SyncRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IdentityKey < out[j].IdentityKey })
	return out
}

func (s *memStore) SnapshotFor(calendar string) []domain.SyncRecord {
	var out []domain.SyncRecord
	for _, rec := range s.records {
		if rec.SourceCalendar == calendar {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IdentityKey < out[j].IdentityKey })
	return out
}

func (s *memStore) Put(rec domain.SyncRecord) error {
	if s.failPut {
		return errPutFailed
	}
	s.puts++
	s.records[rec.IdentityKey] = rec
	return nil
}

func (s *memStore) Delete(key string) error {
	s.deletes++
	delete(s.records, key)
	return nil
}

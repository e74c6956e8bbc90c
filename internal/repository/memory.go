package repository

import (
	"context"
	"sync"

	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/entity"
)

// MemoryStore keeps records in process memory. Contents are lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	families map[string]*memoryFamily
}

type memoryFamily struct {
	records []entity.Record
	lastID  int64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{families: make(map[string]*memoryFamily)}
}

// family must be called with mu held for writing.
func (s *MemoryStore) family(d entity.Descriptor) *memoryFamily {
	f, ok := s.families[d.Name]
	if !ok {
		f = &memoryFamily{}
		s.families[d.Name] = f
	}
	return f
}

func (f *memoryFamily) index(d entity.Descriptor, id int64) int {
	for i, rec := range f.records {
		if recID, ok := rec.ID(d); ok && recID == id {
			return i
		}
	}
	return -1
}

func (s *MemoryStore) List(_ context.Context, d entity.Descriptor) ([]entity.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.families[d.Name]
	if !ok {
		return []entity.Record{}, nil
	}
	out := make([]entity.Record, 0, len(f.records))
	for _, rec := range f.records {
		out = append(out, rec.Clone())
	}
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, d entity.Descriptor, id int64) (entity.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.families[d.Name]
	if !ok {
		return nil, ErrRecordNotFound
	}
	i := f.index(d, id)
	if i < 0 {
		return nil, ErrRecordNotFound
	}
	return f.records[i].Clone(), nil
}

func (s *MemoryStore) Create(_ context.Context, d entity.Descriptor, rec entity.Record) (entity.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.family(d)
	f.lastID++
	stored := rec.WithID(d, f.lastID)
	f.records = append(f.records, stored)
	return stored.Clone(), nil
}

func (s *MemoryStore) Replace(_ context.Context, d entity.Descriptor, id int64, rec entity.Record) (entity.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.family(d)
	i := f.index(d, id)
	if i < 0 {
		return nil, ErrRecordNotFound
	}
	stored := rec.WithID(d, id)
	f.records[i] = stored
	return stored.Clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context, d entity.Descriptor, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.family(d)
	i := f.index(d, id)
	if i < 0 {
		return ErrRecordNotFound
	}
	f.records = append(f.records[:i], f.records[i+1:]...)
	return nil
}

func (s *MemoryStore) Seed(_ context.Context, d entity.Descriptor, recs []entity.Record) (bool, error) {
	ids, err := seedIDs(d, recs)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.family(d)
	if len(f.records) > 0 {
		return false, nil
	}
	for i, rec := range recs {
		f.records = append(f.records, rec.WithID(d, ids[i]))
		if ids[i] > f.lastID {
			f.lastID = ids[i]
		}
	}
	return len(recs) > 0, nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

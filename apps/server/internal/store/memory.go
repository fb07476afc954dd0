package store

import (
	"context"
	"sync"

	"rpg-lite/progression"
)

type memoryStore struct {
	mu      sync.RWMutex
	records map[progression.Key]*progression.Record
}

func NewMemory() Store {
	return &memoryStore{records: make(map[progression.Key]*progression.Record)}
}

func (s *memoryStore) Close() error { return nil }

func (s *memoryStore) Get(_ context.Context, key progression.Key) (*progression.Record, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.records[key]
	if rec == nil {
		rec = progression.NewRecord()
		s.records[key] = rec
	}
	return rec.Clone(), nil
}

func (s *memoryStore) Put(_ context.Context, key progression.Key, rec *progression.Record) error {
	if err := checkKey(key); err != nil {
		return err
	}
	cp := rec.Clone()
	progression.Normalize(cp)
	s.mu.Lock()
	s.records[key] = cp
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) LoadAll(context.Context) (map[progression.Key]*progression.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.records), nil
}

func (s *memoryStore) SaveAll(_ context.Context, records map[progression.Key]*progression.Record) error {
	for k := range records {
		if err := checkKey(k); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range records {
		cp := v.Clone()
		progression.Normalize(cp)
		s.records[k] = cp
	}
	return nil
}

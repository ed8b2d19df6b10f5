package store

import (
	"context"
	"strconv"
	"sync"
)

// MemoryStore is a mutex-guarded in-process Store. Records persist for the
// lifetime of the process; suitable for tests and single-node deployments.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]map[string]string
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]map[string]string)}
}

func (s *MemoryStore) GetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make(map[string]string, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := make(map[string]string, len(fields))
	for k, v := range fields {
		rec[k] = v
	}
	s.records[key] = rec
	return nil
}

func (s *MemoryStore) SetField(_ context.Context, key, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return ErrNotFound
	}
	rec[field] = value
	return nil
}

func (s *MemoryStore) IncrBy(_ context.Context, key, field string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return 0, ErrNotFound
	}
	cur, err := strconv.ParseInt(rec[field], 10, 64)
	if err != nil && rec[field] != "" {
		return 0, err
	}
	cur += delta
	rec[field] = strconv.FormatInt(cur, 10)
	return cur, nil
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.records[key]
	return ok, nil
}

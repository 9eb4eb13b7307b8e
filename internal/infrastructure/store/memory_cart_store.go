package store

import (
	"context"
	"sync"
)

// MemoryCartStore keeps cart records in memory
type MemoryCartStore struct {
	mu      sync.RWMutex
	records map[string]CartRecord // userID -> record
}

func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{records: make(map[string]CartRecord)}
}

func (s *MemoryCartStore) Get(_ context.Context, userID string) (*CartRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[userID]
	if !ok {
		return nil, ErrCartRecordNotFound
	}
	return &rec, nil
}

func (s *MemoryCartStore) Insert(_ context.Context, rec *CartRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.UserID]; ok {
		return ErrCartRecordExists
	}
	s.records[rec.UserID] = *rec
	return nil
}

func (s *MemoryCartStore) Update(_ context.Context, rec *CartRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[rec.UserID]
	if !ok {
		return ErrCartRecordNotFound
	}
	current.Items = rec.Items
	current.UpdatedAt = rec.UpdatedAt
	s.records[rec.UserID] = current
	return nil
}

func (s *MemoryCartStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, userID)
	return nil
}

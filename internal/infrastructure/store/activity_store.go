package store

import (
	"context"
	"sort"
	"sync"

	"github.com/example/itservices-cart/internal/readmodel"
)

// ActivityStoreInterface stores the cart activity read model
type ActivityStoreInterface interface {
	Get(ctx context.Context, userID string) (*readmodel.CartActivityReadModel, bool, error)
	Set(ctx context.Context, m *readmodel.CartActivityReadModel) error
	List(ctx context.Context) ([]readmodel.CartActivityReadModel, error)
}

// ActivityStore is an in-memory activity store
type ActivityStore struct {
	mu   sync.RWMutex
	data map[string]readmodel.CartActivityReadModel // userID -> model
}

func NewActivityStore() *ActivityStore {
	return &ActivityStore{data: make(map[string]readmodel.CartActivityReadModel)}
}

func (s *ActivityStore) Get(_ context.Context, userID string) (*readmodel.CartActivityReadModel, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.data[userID]
	if !ok {
		return nil, false, nil
	}
	return &m, true, nil
}

func (s *ActivityStore) Set(_ context.Context, m *readmodel.CartActivityReadModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[m.UserID] = *m
	return nil
}

// List returns the most recently active carts first
func (s *ActivityStore) List(_ context.Context) ([]readmodel.CartActivityReadModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]readmodel.CartActivityReadModel, 0, len(s.data))
	for _, m := range s.data {
		items = append(items, m)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].UpdatedAt.After(items[j].UpdatedAt) })
	return items, nil
}

package mocks

import (
	"context"
	"sync"

	"github.com/example/itservices-cart/internal/infrastructure/store"
)

// MockCartRecordStore is an in-memory CartRecordStore that records calls
// and can be told to fail.
type MockCartRecordStore struct {
	mu      sync.Mutex
	records map[string]store.CartRecord

	Calls []RecordCall

	GetErr    error
	InsertErr error
	UpdateErr error
	DeleteErr error

	// BeforeWrite, when set, runs before every Insert, Update and Delete
	BeforeWrite func(op, userID string)
}

// RecordCall records one operation
type RecordCall struct {
	Op     string
	UserID string
}

func NewMockCartRecordStore() *MockCartRecordStore {
	return &MockCartRecordStore{records: make(map[string]store.CartRecord)}
}

func (m *MockCartRecordStore) record(op, userID string) {
	m.Calls = append(m.Calls, RecordCall{Op: op, UserID: userID})
}

func (m *MockCartRecordStore) Get(_ context.Context, userID string) (*store.CartRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("get", userID)
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	rec, ok := m.records[userID]
	if !ok {
		return nil, store.ErrCartRecordNotFound
	}
	return &rec, nil
}

func (m *MockCartRecordStore) Insert(_ context.Context, rec *store.CartRecord) error {
	m.beforeWrite("insert", rec.UserID)
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("insert", rec.UserID)
	if m.InsertErr != nil {
		return m.InsertErr
	}
	if _, ok := m.records[rec.UserID]; ok {
		return store.ErrCartRecordExists
	}
	m.records[rec.UserID] = *rec
	return nil
}

func (m *MockCartRecordStore) Update(_ context.Context, rec *store.CartRecord) error {
	m.beforeWrite("update", rec.UserID)
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("update", rec.UserID)
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	current, ok := m.records[rec.UserID]
	if !ok {
		return store.ErrCartRecordNotFound
	}
	current.Items = rec.Items
	current.UpdatedAt = rec.UpdatedAt
	m.records[rec.UserID] = current
	return nil
}

func (m *MockCartRecordStore) Delete(_ context.Context, userID string) error {
	m.beforeWrite("delete", userID)
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("delete", userID)
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.records, userID)
	return nil
}

func (m *MockCartRecordStore) beforeWrite(op, userID string) {
	m.mu.Lock()
	hook := m.BeforeWrite
	m.mu.Unlock()
	if hook != nil {
		hook(op, userID)
	}
}

// Seed stores a record directly
func (m *MockCartRecordStore) Seed(rec store.CartRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.UserID] = rec
}

// Record returns the stored record for a user
func (m *MockCartRecordStore) Record(userID string) (store.CartRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[userID]
	return rec, ok
}

// Ops returns the operation names recorded so far
func (m *MockCartRecordStore) Ops() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ops := make([]string, len(m.Calls))
	for i, c := range m.Calls {
		ops[i] = c.Op
	}
	return ops
}

// SetErrors replaces the injected errors
func (m *MockCartRecordStore) SetErrors(get, insert, update, del error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetErr, m.InsertErr, m.UpdateErr, m.DeleteErr = get, insert, update, del
}

package cart

import (
	"context"
	"sync"
	"time"

	"github.com/example/itservices-cart/internal/infrastructure/cache"
	"go.uber.org/zap"
)

// Manager keeps one Store per cart session. Stores idle for longer than
// the eviction window are dropped; their snapshots stay in local storage.
type Manager struct {
	deps Deps
	now  func() time.Time

	mu     sync.Mutex
	stores map[string]*session
}

type session struct {
	store    *Store
	lastUsed time.Time
}

func NewManager(deps Deps) *Manager {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Local == nil {
		deps.Local = cache.NewMemoryStore()
	}
	return &Manager{
		deps:   deps,
		now:    time.Now,
		stores: make(map[string]*session),
	}
}

// Get returns the store of a session, restoring it from local storage
// until a restore succeeds. When the snapshot cannot be loaded the error
// is returned and the caller must not mutate the cart.
func (m *Manager) Get(ctx context.Context, id string) (*Store, error) {
	m.mu.Lock()
	sess, ok := m.stores[id]
	if !ok {
		sess = &session{store: NewStore(id, m.deps)}
		m.stores[id] = sess
	}
	sess.lastUsed = m.now()
	m.mu.Unlock()

	if err := sess.store.Restore(ctx); err != nil {
		m.deps.Logger.Warn("failed to restore cart", zap.String("session", id), zap.Error(err))
		return nil, err
	}
	return sess.store, nil
}

// Forget drops the in-memory store of a session. The persisted snapshot
// is kept, so the next Get restores it.
func (m *Manager) Forget(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stores, id)
}

// Evict forgets every session unused for longer than idle and returns
// how many were dropped.
func (m *Manager) Evict(idle time.Duration) int {
	cutoff := m.now().Add(-idle)

	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, sess := range m.stores {
		if sess.lastUsed.Before(cutoff) {
			delete(m.stores, id)
			n++
		}
	}
	return n
}

// RunEviction calls Evict every interval until ctx is done.
func (m *Manager) RunEviction(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Evict(idle); n > 0 {
				m.deps.Logger.Debug("evicted idle cart sessions", zap.Int("count", n))
			}
		}
	}
}

// Len returns the number of sessions held in memory.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stores)
}

package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/itservices-cart/internal/infrastructure/cache"
	"github.com/example/itservices-cart/internal/infrastructure/store"
	"github.com/example/itservices-cart/internal/notification"
	"go.uber.org/zap"
)

// IdentityResolver reports the signed-in user for a request, if any.
type IdentityResolver interface {
	CurrentUser(ctx context.Context) (string, bool)
}

// IdentityFunc adapts a function to IdentityResolver.
type IdentityFunc func(ctx context.Context) (string, bool)

func (f IdentityFunc) CurrentUser(ctx context.Context) (string, bool) {
	return f(ctx)
}

// Deps are the collaborators shared by every cart store. Only Local is
// required; a nil Syncer disables remote sync.
type Deps struct {
	Reducer  Reducer
	Local    cache.SnapshotStore
	Syncer   *Syncer
	Identity IdentityResolver
	Notifier notification.Notifier
	Logger   *zap.Logger
}

// Store holds the cart of one session. Every mutation commits in memory
// first, then persists the snapshot locally, shows a toast and queues a
// remote sync when a user is signed in. Remote failures never reach the
// caller.
type Store struct {
	session  string
	reducer  Reducer
	local    cache.SnapshotStore
	syncer   *Syncer
	identity IdentityResolver
	notifier notification.Notifier
	logger   *zap.Logger

	mu          sync.Mutex
	snap        Snapshot
	loaded      bool
	initialized bool
}

func NewStore(session string, deps Deps) *Store {
	if deps.Reducer.table == nil {
		deps.Reducer = NewReducer(nil)
	}
	if deps.Local == nil {
		deps.Local = cache.NewMemoryStore()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Store{
		session:  session,
		reducer:  deps.Reducer,
		local:    deps.Local,
		syncer:   deps.Syncer,
		identity: deps.Identity,
		notifier: deps.Notifier,
		logger:   deps.Logger.With(zap.String("session", session)),
		snap:     deps.Reducer.Clear(),
	}
}

// StorageKey is the local storage key of a session's snapshot.
func StorageKey(session string) string {
	return StorageNamespace + ":" + session
}

// Restore loads the persisted snapshot until one load succeeds. A load
// error leaves the store unrestored so the next call retries; mutating
// an unrestored store would overwrite the saved cart. An undecodable
// snapshot is dropped and the cart starts empty. Line totals are
// recomputed so a stale or hand-edited snapshot cannot break the totals.
func (s *Store) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}

	data, err := s.local.Load(ctx, StorageKey(s.session))
	switch {
	case errors.Is(err, cache.ErrCacheMiss):
	case err != nil:
		return fmt.Errorf("failed to load cart snapshot: %w", err)
	default:
		var persisted Snapshot
		if err := json.Unmarshal(data, &persisted); err != nil {
			s.logger.Warn("failed to restore cart", zap.Error(err))
			break
		}
		s.snap = s.reducer.Reprice(persisted.Items)
	}

	s.loaded = true
	return nil
}

// Restored reports whether Restore has succeeded.
func (s *Store) Restored() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Snapshot returns a copy of the current cart.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone()
}

// Initialized reports whether the cart has been reconciled with the
// remote record since the store was created.
func (s *Store) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// AddItem merges the candidate into the cart.
func (s *Store) AddItem(ctx context.Context, candidate LineItem) (Snapshot, error) {
	if err := candidate.Validate(); err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	next, _ := s.reducer.Add(s.snap, candidate)
	out := s.commit(ctx, next, Job{Kind: JobUpsert, EventType: EventItemAdded, ServiceID: candidate.ServiceID})
	s.mu.Unlock()

	s.toast(ctx, notification.LevelSuccess, "Service ajouté",
		fmt.Sprintf("%s a été ajouté à votre panier", displayName(candidate)))
	return out, nil
}

// UpdateItem applies a patch to one line.
func (s *Store) UpdateItem(ctx context.Context, serviceID string, patch Patch) (Snapshot, error) {
	if err := patch.Validate(); err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	next, err := s.reducer.Update(s.snap, serviceID, patch)
	if err != nil {
		s.mu.Unlock()
		return Snapshot{}, err
	}
	out := s.commit(ctx, next, Job{Kind: JobUpsert, EventType: EventItemUpdated, ServiceID: serviceID})
	s.mu.Unlock()

	s.toast(ctx, notification.LevelSuccess, "Panier mis à jour", "Le service a été mis à jour")
	return out, nil
}

// RemoveItem drops one line. Removing an unknown id changes nothing and
// returns false.
func (s *Store) RemoveItem(ctx context.Context, serviceID string) (Snapshot, bool) {
	s.mu.Lock()
	next, removed := s.reducer.Remove(s.snap, serviceID)
	if !removed {
		out := s.snap.Clone()
		s.mu.Unlock()
		return out, false
	}
	out := s.commit(ctx, next, Job{Kind: JobUpsert, EventType: EventItemRemoved, ServiceID: serviceID})
	s.mu.Unlock()

	s.toast(ctx, notification.LevelSuccess, "Service retiré", "Le service a été retiré de votre panier")
	return out, true
}

// ClearCart empties the cart and deletes the remote record.
func (s *Store) ClearCart(ctx context.Context) Snapshot {
	s.mu.Lock()
	out := s.commit(ctx, s.reducer.Clear(), Job{Kind: JobDelete, EventType: EventCartCleared})
	s.mu.Unlock()

	s.toast(ctx, notification.LevelSuccess, "Panier vidé", "Votre panier a été vidé")
	return out
}

// SyncWithUser reconciles the cart with the remote record of userID, or
// of the current user when userID is empty. An empty cart that was never
// reconciled adopts the remote cart; a non-empty cart is pushed. Without
// a user it does nothing.
func (s *Store) SyncWithUser(ctx context.Context, userID string) Snapshot {
	if userID == "" && s.identity != nil {
		userID, _ = s.identity.CurrentUser(ctx)
	}
	if userID == "" || s.syncer == nil {
		return s.Snapshot()
	}

	s.mu.Lock()
	pull := s.snap.IsEmpty() && !s.initialized
	if !pull && !s.snap.IsEmpty() {
		s.enqueue(Job{UserID: userID, Kind: JobUpsert, EventType: EventCartSynced, Snapshot: s.snap.Clone()})
	}
	s.mu.Unlock()

	adopted := false
	if pull {
		adopted = s.adopt(ctx, userID)
	}

	s.mu.Lock()
	s.initialized = true
	out := s.snap.Clone()
	s.mu.Unlock()

	if adopted {
		s.toast(ctx, notification.LevelInfo, "Panier récupéré", "Votre panier enregistré a été restauré")
	}
	return out
}

// adopt replaces an empty cart with the remote one
func (s *Store) adopt(ctx context.Context, userID string) bool {
	rec, err := s.syncer.Pull(ctx, userID)
	if errors.Is(err, store.ErrCartRecordNotFound) {
		return false
	}
	if err != nil {
		s.logger.Warn("failed to pull remote cart", zap.String("user_id", userID), zap.Error(err))
		return false
	}

	var items []LineItem
	if len(rec.Items) > 0 {
		if err := json.Unmarshal(rec.Items, &items); err != nil {
			s.logger.Warn("failed to decode remote cart", zap.String("user_id", userID), zap.Error(err))
			return false
		}
	}
	if len(items) == 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// a mutation may have landed while the pull was in flight
	if !s.snap.IsEmpty() {
		return false
	}
	s.snap = s.reducer.Reprice(items)
	s.persist(ctx, s.snap)
	return true
}

// commit installs next and returns a copy of it. Callers hold s.mu so
// local writes and sync jobs keep mutation order.
func (s *Store) commit(ctx context.Context, next Snapshot, job Job) Snapshot {
	s.snap = next
	s.persist(ctx, next)

	if s.syncer != nil && s.identity != nil {
		if userID, ok := s.identity.CurrentUser(ctx); ok && userID != "" {
			job.UserID = userID
			job.Snapshot = next.Clone()
			s.enqueue(job)
			s.initialized = true
		}
	}
	return next.Clone()
}

func (s *Store) enqueue(job Job) {
	if !s.syncer.Enqueue(job) {
		s.logger.Warn("cart sync job dropped", zap.String("user_id", job.UserID), zap.String("kind", string(job.Kind)))
	}
}

func (s *Store) persist(ctx context.Context, snap Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		s.logger.Error("failed to encode cart snapshot", zap.Error(err))
		return
	}
	if err := s.local.Save(ctx, StorageKey(s.session), data); err != nil {
		s.logger.Warn("failed to persist cart snapshot", zap.Error(err))
	}
}

func (s *Store) toast(ctx context.Context, level, title, message string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, notification.Toast{
		Level:     level,
		Title:     title,
		Message:   message,
		SessionID: s.session,
		CreatedAt: time.Now(),
	})
}

func displayName(item LineItem) string {
	if item.Name != "" {
		return item.Name
	}
	return "Le service"
}

package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/itservices-cart/internal/infrastructure/store"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ErrSyncerClosed = errors.New("syncer closed")

type JobKind string

const (
	JobUpsert JobKind = "upsert"
	JobDelete JobKind = "delete"
)

// Job is one remote write. Seq is assigned by Enqueue.
type Job struct {
	Seq       uint64
	UserID    string
	Kind      JobKind
	EventType string
	ServiceID string
	Snapshot  Snapshot

	flushed chan struct{}
}

// SyncStats counts what the worker did with enqueued jobs.
type SyncStats struct {
	Enqueued  uint64 `json:"enqueued"`
	Processed uint64 `json:"processed"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`
	Stale     uint64 `json:"stale"`
}

type SyncerConfig struct {
	QueueSize       int
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

func (c SyncerConfig) withDefaults() SyncerConfig {
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = 30 * time.Second
	}
	return c
}

// Syncer mirrors local carts to the remote record store on a single
// worker goroutine. Callers never wait for a write; tests can Flush.
//
// Jobs carry a sequence number. A job older than the newest job enqueued
// for the same user is skipped, so the remote record always converges on
// the last local mutation. Failed writes are logged and not retried.
type Syncer struct {
	remote  store.CartRecordStore
	journal store.EventStoreInterface
	breaker *gobreaker.CircuitBreaker[any]
	logger  *zap.Logger
	metrics *Metrics
	timeout time.Duration
	now     func() time.Time

	jobs     chan Job
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu     sync.Mutex
	closed bool
	seq    uint64
	latest map[string]uint64
	stats  SyncStats

	pulls singleflight.Group
}

// NewSyncer starts the worker. journal and metrics may be nil.
func NewSyncer(remote store.CartRecordStore, journal store.EventStoreInterface, cfg SyncerConfig, logger *zap.Logger, metrics *Metrics) *Syncer {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	s := &Syncer{
		remote:  remote,
		journal: journal,
		logger:  logger,
		metrics: metrics,
		timeout: cfg.Timeout,
		now:     time.Now,
		jobs:    make(chan Job, cfg.QueueSize),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		latest:  make(map[string]uint64),
	}
	s.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "cart-remote",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, store.ErrCartRecordNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	go s.run()
	return s
}

// Enqueue hands a job to the worker without blocking. It returns false
// when the job was dropped because the queue is full or closed.
func (s *Syncer) Enqueue(job Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.stats.Dropped++
		return false
	}

	job.Seq = s.seq + 1
	job.flushed = nil
	select {
	case s.jobs <- job:
		s.seq = job.Seq
		s.latest[job.UserID] = job.Seq
		s.stats.Enqueued++
		return true
	default:
		s.stats.Dropped++
		s.metrics.jobs.WithLabelValues(string(job.Kind), "dropped").Inc()
		s.logger.Warn("sync queue full, dropping job",
			zap.String("user_id", job.UserID),
			zap.String("kind", string(job.Kind)),
		)
		return false
	}
}

// Flush waits until every job enqueued before the call has been handled.
func (s *Syncer) Flush(ctx context.Context) error {
	barrier := Job{flushed: make(chan struct{})}
	select {
	case s.jobs <- barrier:
	case <-s.done:
		return ErrSyncerClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-barrier.flushed:
		return nil
	case <-s.done:
		return ErrSyncerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a copy of the counters.
func (s *Syncer) Stats() SyncStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close stops accepting jobs, drains the queue and waits for the worker.
func (s *Syncer) Close() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.quit)
	})
	<-s.done
}

// Pull fetches the remote record for a user. Concurrent pulls for the
// same user share one remote call.
func (s *Syncer) Pull(ctx context.Context, userID string) (*store.CartRecord, error) {
	v, err, _ := s.pulls.Do(userID, func() (any, error) {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return s.breaker.Execute(func() (any, error) {
			return s.remote.Get(ctx, userID)
		})
	})

	switch {
	case err == nil:
		s.metrics.pulls.WithLabelValues("found").Inc()
		return v.(*store.CartRecord), nil
	case errors.Is(err, store.ErrCartRecordNotFound):
		s.metrics.pulls.WithLabelValues("empty").Inc()
		return nil, err
	default:
		s.metrics.pulls.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to pull cart for %s: %w", userID, err)
	}
}

func (s *Syncer) run() {
	defer close(s.done)
	for {
		select {
		case job := <-s.jobs:
			s.handle(job)
		case <-s.quit:
			for {
				select {
				case job := <-s.jobs:
					s.handle(job)
				default:
					return
				}
			}
		}
	}
}

func (s *Syncer) handle(job Job) {
	if job.flushed != nil {
		close(job.flushed)
		return
	}

	s.mu.Lock()
	stale := job.Seq < s.latest[job.UserID]
	if stale {
		s.stats.Stale++
	}
	s.mu.Unlock()
	if stale {
		s.metrics.jobs.WithLabelValues(string(job.Kind), "stale").Inc()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	_, err := s.breaker.Execute(func() (any, error) {
		return nil, s.apply(ctx, job)
	})
	s.metrics.latency.Observe(time.Since(start).Seconds())

	if err != nil {
		outcome := "failed"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = "rejected"
		}
		s.mu.Lock()
		s.stats.Failed++
		s.mu.Unlock()
		s.metrics.jobs.WithLabelValues(string(job.Kind), outcome).Inc()
		s.logger.Warn("remote cart sync failed",
			zap.String("user_id", job.UserID),
			zap.String("kind", string(job.Kind)),
			zap.Uint64("seq", job.Seq),
			zap.Error(err),
		)
		return
	}

	s.mu.Lock()
	s.stats.Processed++
	s.mu.Unlock()
	s.metrics.jobs.WithLabelValues(string(job.Kind), "ok").Inc()

	s.record(ctx, job)
}

func (s *Syncer) apply(ctx context.Context, job Job) error {
	if job.Kind == JobDelete {
		return s.remote.Delete(ctx, job.UserID)
	}

	items, err := json.Marshal(job.Snapshot.Items)
	if err != nil {
		return fmt.Errorf("failed to encode cart items: %w", err)
	}
	now := s.now()

	rec, err := s.remote.Get(ctx, job.UserID)
	if errors.Is(err, store.ErrCartRecordNotFound) {
		return s.remote.Insert(ctx, &store.CartRecord{
			UserID:    job.UserID,
			Items:     items,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	if err != nil {
		return err
	}

	rec.Items = items
	rec.UpdatedAt = now
	return s.remote.Update(ctx, rec)
}

// record appends the synced change to the journal
func (s *Syncer) record(ctx context.Context, job Job) {
	if s.journal == nil {
		return
	}

	eventType := job.EventType
	if eventType == "" {
		eventType = EventCartSynced
	}

	event := CartChanged{
		CartID:    GetCartID(job.UserID),
		UserID:    job.UserID,
		ServiceID: job.ServiceID,
		ItemCount: job.Snapshot.ItemCount(),
		Subtotal:  job.Snapshot.Subtotal,
		Total:     job.Snapshot.Total,
		ChangedAt: s.now(),
	}
	if job.Kind == JobUpsert {
		if items, err := json.Marshal(job.Snapshot.Items); err == nil {
			event.Items = items
		}
	}

	if _, err := s.journal.Append(ctx, event.CartID, AggregateType, eventType, event); err != nil {
		s.logger.Warn("failed to append cart event",
			zap.String("cart_id", event.CartID),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}

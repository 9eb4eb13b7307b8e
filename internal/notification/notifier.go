package notification

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Toast levels
const (
	LevelSuccess = "success"
	LevelInfo    = "info"
)

// Toast is a short-lived message shown to the customer after an action.
type Toast struct {
	Level     string    `json:"level"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	SessionID string    `json:"session_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier displays toasts. Implementations must not block for long;
// the cart calls Notify on every mutation.
type Notifier interface {
	Notify(ctx context.Context, t Toast)
}

// LogNotifier writes toasts to the log
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, t Toast) {
	n.logger.Info("toast",
		zap.String("level", t.Level),
		zap.String("title", t.Title),
		zap.String("message", t.Message),
		zap.String("session_id", t.SessionID),
	)
}

// Multi fans a toast out to several notifiers
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, t Toast) {
	for _, n := range m {
		n.Notify(ctx, t)
	}
}

// Collector keeps toasts in memory until drained. The API drains it into
// the response of the request that caused them.
type Collector struct {
	mu     sync.Mutex
	toasts []Toast
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Notify(_ context.Context, t Toast) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toasts = append(c.toasts, t)
}

// Drain returns the collected toasts and forgets them
func (c *Collector) Drain() []Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.toasts
	c.toasts = nil
	return out
}

type collectorKey struct{}

// WithCollector attaches a request-scoped collector to ctx
func WithCollector(ctx context.Context, c *Collector) context.Context {
	return context.WithValue(ctx, collectorKey{}, c)
}

// ContextCollector forwards toasts to the collector found in ctx, if any
type ContextCollector struct{}

func (ContextCollector) Notify(ctx context.Context, t Toast) {
	if c, ok := CollectorFrom(ctx); ok {
		c.Notify(ctx, t)
	}
}

// CollectorFrom returns the collector attached to ctx
func CollectorFrom(ctx context.Context) (*Collector, bool) {
	c, ok := ctx.Value(collectorKey{}).(*Collector)
	return c, ok
}

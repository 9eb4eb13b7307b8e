package notification

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Publisher sends a keyed message to a topic
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// KafkaNotifier pushes toasts to a topic so a realtime gateway can
// forward them to the customer's open tabs.
type KafkaNotifier struct {
	publisher Publisher
	timeout   time.Duration
	logger    *zap.Logger
}

func NewKafkaNotifier(publisher Publisher, timeout time.Duration, logger *zap.Logger) *KafkaNotifier {
	return &KafkaNotifier{publisher: publisher, timeout: timeout, logger: logger}
}

// Notify publishes the toast keyed by session. Failures are logged only.
func (n *KafkaNotifier) Notify(ctx context.Context, t Toast) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	if err := n.publisher.Publish(ctx, t.SessionID, t); err != nil {
		n.logger.Warn("failed to publish toast", zap.String("session_id", t.SessionID), zap.Error(err))
	}
}

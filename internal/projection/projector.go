package projection

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/itservices-cart/internal/domain/cart"
	"github.com/example/itservices-cart/internal/infrastructure/store"
	"github.com/example/itservices-cart/internal/readmodel"
	"go.uber.org/zap"
)

// Projector folds journal events into the cart activity read model.
type Projector struct {
	activity store.ActivityStoreInterface
	logger   *zap.Logger
}

func NewProjector(activity store.ActivityStoreInterface, logger *zap.Logger) *Projector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Projector{activity: activity, logger: logger}
}

// HandleEvent is a kafka.MessageHandler.
func (p *Projector) HandleEvent(ctx context.Context, key, value []byte) error {
	var event store.Event
	if err := json.Unmarshal(value, &event); err != nil {
		return err
	}

	p.logger.Debug("received event",
		zap.String("event_type", event.EventType),
		zap.String("aggregate_type", event.AggregateType),
	)

	if event.AggregateType != cart.AggregateType {
		return nil
	}
	return p.handleCartEvent(ctx, event)
}

func (p *Projector) handleCartEvent(ctx context.Context, event store.Event) error {
	switch event.EventType {
	case cart.EventItemAdded, cart.EventItemUpdated, cart.EventItemRemoved,
		cart.EventCartCleared, cart.EventCartSynced:
	default:
		return nil
	}

	var e cart.CartChanged
	if err := json.Unmarshal(event.Data, &e); err != nil {
		return err
	}
	if e.UserID == "" {
		return fmt.Errorf("event %s has no user id", event.ID)
	}

	m, found, err := p.activity.Get(ctx, e.UserID)
	if err != nil {
		return err
	}
	if !found {
		m = &readmodel.CartActivityReadModel{UserID: e.UserID, CartID: e.CartID}
	}

	m.EventCount++
	if event.EventType == cart.EventCartCleared {
		m.ClearedCount++
	}
	m.LastEvent = event.EventType
	if e.ServiceID != "" {
		m.LastServiceID = e.ServiceID
	}
	m.ItemCount = e.ItemCount
	m.Subtotal = e.Subtotal
	m.Total = e.Total
	m.UpdatedAt = e.ChangedAt
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = event.Timestamp
	}

	return p.activity.Set(ctx, m)
}

package query

import (
	"context"
	"fmt"
	"time"

	"github.com/example/itservices-cart/internal/infrastructure/store"
	"go.uber.org/zap"
)

type Handler struct {
	activity store.ActivityStoreInterface
	logger   *zap.Logger
	now      func() time.Time
}

func NewHandler(activity store.ActivityStoreInterface, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{activity: activity, logger: logger, now: time.Now}
}

// GetCartActivity returns the activity of one user's cart
func (h *Handler) GetCartActivity(ctx context.Context, userID string) (*CartActivityReadModel, bool, error) {
	m, ok, err := h.activity.Get(ctx, userID)
	if err != nil {
		h.logger.Warn("error getting cart activity", zap.String("user_id", userID), zap.Error(err))
		return nil, false, fmt.Errorf("failed to get cart activity: %w", err)
	}
	return m, ok, nil
}

// ListCartActivity returns every known cart, most recent first
func (h *Handler) ListCartActivity(ctx context.Context) ([]CartActivityReadModel, error) {
	items, err := h.activity.List(ctx)
	if err != nil {
		h.logger.Warn("error listing cart activity", zap.Error(err))
		return nil, fmt.Errorf("failed to list cart activity: %w", err)
	}
	if items == nil {
		items = []CartActivityReadModel{}
	}
	return items, nil
}

// ListAbandonedCarts returns non-empty carts idle for longer than idle
func (h *Handler) ListAbandonedCarts(ctx context.Context, idle time.Duration) ([]CartActivityReadModel, error) {
	items, err := h.ListCartActivity(ctx)
	if err != nil {
		return nil, err
	}

	now := h.now()
	out := []CartActivityReadModel{}
	for _, m := range items {
		if m.Abandoned(now, idle) {
			out = append(out, m)
		}
	}
	return out, nil
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/itservices-cart/internal/api/middleware"
	"github.com/example/itservices-cart/internal/domain/cart"
	"github.com/example/itservices-cart/internal/domain/pricing"
	"github.com/example/itservices-cart/internal/notification"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handlers struct {
	carts  *cart.Manager
	table  pricing.Table
	logger *zap.Logger
}

func NewHandlers(carts *cart.Manager, table pricing.Table, logger *zap.Logger) *Handlers {
	if table == nil {
		table = pricing.DefaultTable
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{carts: carts, table: table, logger: logger}
}

// CartResponse is returned by every cart endpoint. Toasts holds the
// messages raised while handling the request.
type CartResponse struct {
	Cart   cart.Snapshot        `json:"cart"`
	Toasts []notification.Toast `json:"toasts"`
}

// store returns the session cart. When the saved cart cannot be loaded
// it answers 503 and returns false so nothing mutates an unrestored cart.
func (h *Handlers) store(w http.ResponseWriter, r *http.Request) (*cart.Store, bool) {
	st, err := h.carts.Get(r.Context(), middleware.SessionID(r.Context()))
	if err != nil {
		h.logger.Warn("cart unavailable", zap.Error(err))
		respondError(w, "cart temporarily unavailable", http.StatusServiceUnavailable)
		return nil, false
	}
	return st, true
}

func (h *Handlers) respondCart(w http.ResponseWriter, r *http.Request, snap cart.Snapshot) {
	toasts := []notification.Toast{}
	if c, ok := notification.CollectorFrom(r.Context()); ok {
		if drained := c.Drain(); drained != nil {
			toasts = drained
		}
	}
	respondJSON(w, http.StatusOK, CartResponse{Cart: snap, Toasts: toasts})
}

// Cart Handlers

// GetCart returns the session cart. A signed-in user's cart is
// reconciled with the remote copy on first sight.
func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	st, ok := h.store(w, r)
	if !ok {
		return
	}
	if middleware.GetUserID(r.Context()) != "" && !st.Initialized() {
		h.respondCart(w, r, st.SyncWithUser(r.Context(), ""))
		return
	}
	h.respondCart(w, r, st.Snapshot())
}

func (h *Handlers) AddItem(w http.ResponseWriter, r *http.Request) {
	var item cart.LineItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		respondError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	st, ok := h.store(w, r)
	if !ok {
		return
	}
	snap, err := st.AddItem(r.Context(), item)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondCart(w, r, snap)
}

func (h *Handlers) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var patch cart.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	st, ok := h.store(w, r)
	if !ok {
		return
	}
	snap, err := st.UpdateItem(r.Context(), chi.URLParam(r, "serviceID"), patch)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondCart(w, r, snap)
}

func (h *Handlers) RemoveItem(w http.ResponseWriter, r *http.Request) {
	st, ok := h.store(w, r)
	if !ok {
		return
	}
	snap, _ := st.RemoveItem(r.Context(), chi.URLParam(r, "serviceID"))
	h.respondCart(w, r, snap)
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	st, ok := h.store(w, r)
	if !ok {
		return
	}
	h.respondCart(w, r, st.ClearCart(r.Context()))
}

// SyncCart reconciles the session cart with the signed-in user's cart.
func (h *Handlers) SyncCart(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	st, ok := h.store(w, r)
	if !ok {
		return
	}
	h.respondCart(w, r, st.SyncWithUser(r.Context(), userID))
}

// Pricing Handlers

func (h *Handlers) GetRules(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.table.Rules())
}

// QuoteResponse prices a single line without touching the cart. The
// request body has the shape of a cart line.
type QuoteResponse struct {
	Breakdown    pricing.Breakdown `json:"breakdown"`
	Tax          string            `json:"tax"`
	TotalWithTax string            `json:"total_with_tax"`
}

func (h *Handlers) Quote(w http.ResponseWriter, r *http.Request) {
	var item cart.LineItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		respondError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if item.Quantity <= 0 {
		respondError(w, cart.ErrInvalidQuantity.Error(), http.StatusBadRequest)
		return
	}
	if item.Configuration != nil {
		if err := item.Configuration.Validate(); err != nil {
			respondError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	b := h.table.Quote(pricing.LineInput{
		Slug:          item.Slug,
		BasePrice:     item.BasePrice,
		Quantity:      item.Quantity,
		Options:       item.Options,
		Configuration: item.Configuration,
	})
	tax := b.Total.Mul(cart.VATRate)
	respondJSON(w, http.StatusOK, QuoteResponse{
		Breakdown:    b,
		Tax:          tax.String(),
		TotalWithTax: b.Total.Add(tax).String(),
	})
}

func (h *Handlers) respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrInvalidService),
		errors.Is(err, pricing.ErrNegativeSeats),
		errors.Is(err, pricing.ErrUnknownBilling),
		errors.Is(err, pricing.ErrUnknownServiceLevel):
		respondError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, cart.ErrItemNotFound):
		respondError(w, err.Error(), http.StatusNotFound)
	default:
		h.logger.Error("cart operation failed", zap.Error(err))
		respondError(w, "internal error", http.StatusInternalServerError)
	}
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, map[string]string{"error": message})
}

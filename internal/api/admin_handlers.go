package api

import (
	"net/http"
	"time"

	"github.com/example/itservices-cart/internal/domain/cart"
	"github.com/example/itservices-cart/internal/query"
	"github.com/go-chi/chi/v5"
)

// SyncStatser reports sync queue counters
type SyncStatser interface {
	Stats() cart.SyncStats
}

// AdminHandlers serve the staff-only views of cart activity.
type AdminHandlers struct {
	queries *query.Handler
	syncer  SyncStatser
}

func NewAdminHandlers(queries *query.Handler, syncer SyncStatser) *AdminHandlers {
	return &AdminHandlers{queries: queries, syncer: syncer}
}

// ListCarts lists cart activity. With ?abandoned=<duration> only carts
// idle for longer than that are returned.
func (h *AdminHandlers) ListCarts(w http.ResponseWriter, r *http.Request) {
	var (
		items []query.CartActivityReadModel
		err   error
	)
	if v := r.URL.Query().Get("abandoned"); v != "" {
		idle, perr := time.ParseDuration(v)
		if perr != nil || idle <= 0 {
			respondError(w, "invalid abandoned duration", http.StatusBadRequest)
			return
		}
		items, err = h.queries.ListAbandonedCarts(r.Context(), idle)
	} else {
		items, err = h.queries.ListCartActivity(r.Context())
	}
	if err != nil {
		respondError(w, "failed to list carts", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *AdminHandlers) GetCart(w http.ResponseWriter, r *http.Request) {
	m, ok, err := h.queries.GetCartActivity(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, "failed to get cart", http.StatusInternalServerError)
		return
	}
	if !ok {
		respondError(w, "cart not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (h *AdminHandlers) SyncStats(w http.ResponseWriter, r *http.Request) {
	if h.syncer == nil {
		respondJSON(w, http.StatusOK, cart.SyncStats{})
		return
	}
	respondJSON(w, http.StatusOK, h.syncer.Stats())
}

package api

import (
	"net/http"
	"time"

	"github.com/example/itservices-cart/internal/api/middleware"
	"github.com/example/itservices-cart/internal/auth"
	"github.com/example/itservices-cart/internal/notification"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Handlers       *Handlers
	AdminHandlers  *AdminHandlers
	JWTService     *auth.JWTService
	Gatherer       prometheus.Gatherer
	Logger         *zap.Logger
	SecureCookies  bool
	RequestTimeout time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	h := cfg.Handlers

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(chimw.Timeout(cfg.RequestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))

	// Pricing
	r.Get("/services/rules", h.GetRules)
	r.Post("/quote", h.Quote)

	// Cart
	r.Route("/cart", func(r chi.Router) {
		r.Use(middleware.Session(cfg.SecureCookies))
		r.Use(middleware.OptionalAuthMiddleware(cfg.JWTService))
		r.Use(collectToasts)

		r.Get("/", h.GetCart)
		r.Delete("/", h.ClearCart)
		r.Post("/items", h.AddItem)
		r.Patch("/items/{serviceID}", h.UpdateItem)
		r.Delete("/items/{serviceID}", h.RemoveItem)
		r.Post("/sync", h.SyncCart)
	})

	// Staff
	if cfg.AdminHandlers != nil {
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(cfg.JWTService))
			r.Use(middleware.RequireRole(auth.RoleStaff))

			r.Get("/carts", cfg.AdminHandlers.ListCarts)
			r.Get("/carts/{userID}", cfg.AdminHandlers.GetCart)
			r.Get("/sync", cfg.AdminHandlers.SyncStats)
		})
	}

	return r
}

// collectToasts gives each request its own toast collector so handlers
// can return the toasts raised by the request.
func collectToasts(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := notification.WithCollector(r.Context(), notification.NewCollector())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

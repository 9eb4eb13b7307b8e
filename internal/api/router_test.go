package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/itservices-cart/internal/api/middleware"
	"github.com/example/itservices-cart/internal/auth"
	"github.com/example/itservices-cart/internal/domain/cart"
	"github.com/example/itservices-cart/internal/infrastructure/cache"
	"github.com/example/itservices-cart/internal/infrastructure/store"
	"github.com/example/itservices-cart/internal/notification"
	"github.com/example/itservices-cart/internal/query"
	"github.com/example/itservices-cart/internal/readmodel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret-key-for-testing-purposes"

type testServer struct {
	handler  http.Handler
	jwt      *auth.JWTService
	remote   *store.MemoryCartStore
	syncer   *cart.Syncer
	activity *store.ActivityStore
	session  *http.Cookie
}

type serverOptions struct {
	local    cache.SnapshotStore
	activity store.ActivityStoreInterface
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, serverOptions{})
}

func newTestServerWith(t *testing.T, opts serverOptions) *testServer {
	t.Helper()
	jwtService, err := auth.NewJWTService(testSecret, "", 15*time.Minute)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	remote := store.NewMemoryCartStore()
	syncer := cart.NewSyncer(remote, nil, cart.SyncerConfig{}, zap.NewNop(), cart.NewMetrics(reg))
	t.Cleanup(syncer.Close)

	manager := cart.NewManager(cart.Deps{
		Local:    opts.local,
		Syncer:   syncer,
		Identity: middleware.Identity{},
		Notifier: notification.ContextCollector{},
	})
	activity := store.NewActivityStore()
	var queries store.ActivityStoreInterface = activity
	if opts.activity != nil {
		queries = opts.activity
	}

	return &testServer{
		handler: NewRouter(RouterConfig{
			Handlers:      NewHandlers(manager, nil, nil),
			AdminHandlers: NewAdminHandlers(query.NewHandler(queries, nil), syncer),
			JWTService:    jwtService,
			Gatherer:      reg,
		}),
		jwt:      jwtService,
		remote:   remote,
		syncer:   syncer,
		activity: activity,
	}
}

func (s *testServer) token(t *testing.T, userID, role string) string {
	t.Helper()
	token, _, err := s.jwt.GenerateAccessToken(userID, userID+"@example.com", role)
	require.NoError(t, err)
	return token
}

// do sends a request, keeping the cart session cookie between calls
func (s *testServer) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if s.session != nil {
		req.AddCookie(s.session)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			s.session = c
		}
	}
	return rec
}

func (s *testServer) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.syncer.Flush(ctx))
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) CartResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp CartResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "expected %s, got %s", want, got)
}

const maintenanceBody = `{
	"service_id": "svc-maint",
	"slug": "maintenance-informatique",
	"name": "Maintenance informatique",
	"base_price": "350",
	"quantity": 1,
	"configuration": {"billing": {"kind": "per-seat", "seats": 10}, "service_level": "standard"}
}`

// ============================================
// Health / Metrics
// ============================================

func TestRouter_Healthz(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/healthz", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestRouter_Metrics(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/cart/items", maintenanceBody, s.token(t, "u1", auth.RoleCustomer))
	s.flush(t)

	rec := s.do(t, http.MethodGet, "/metrics", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cart_sync_jobs_total")
}

// ============================================
// Cart Endpoints
// ============================================

func TestRouter_AddItem_GuestCart(t *testing.T) {
	s := newTestServer(t)

	resp := decodeCart(t, s.do(t, http.MethodPost, "/cart/items", maintenanceBody, ""))

	require.NotNil(t, s.session, "session cookie issued")
	require.Len(t, resp.Cart.Items, 1)
	assertAmount(t, "500", resp.Cart.Subtotal)
	assertAmount(t, "100", resp.Cart.Tax)
	assertAmount(t, "600", resp.Cart.Total)
	require.Len(t, resp.Toasts, 1)
	assert.Equal(t, "Service ajouté", resp.Toasts[0].Title)

	again := decodeCart(t, s.do(t, http.MethodGet, "/cart", "", ""))
	assert.Len(t, again.Cart.Items, 1)
	assert.Empty(t, again.Toasts)

	s.flush(t)
	_, err := s.remote.Get(context.Background(), "u1")
	assert.ErrorIs(t, err, store.ErrCartRecordNotFound)
}

func TestRouter_AddItem_Validation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"zero quantity", `{"service_id":"a","base_price":"10","quantity":0}`},
		{"missing service", `{"base_price":"10","quantity":1}`},
		{"negative seats", `{"service_id":"a","base_price":"10","quantity":1,"configuration":{"billing":{"kind":"per-seat","seats":-1}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/cart/items", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "error")
		})
	}
}

func TestRouter_UpdateItem(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/cart/items", maintenanceBody, "")

	resp := decodeCart(t, s.do(t, http.MethodPatch, "/cart/items/svc-maint", `{"quantity": 3}`, ""))
	assertAmount(t, "1500", resp.Cart.Subtotal)

	rec := s.do(t, http.MethodPatch, "/cart/items/missing", `{"quantity": 3}`, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPatch, "/cart/items/svc-maint", `{"quantity": 0}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_RemoveAndClear(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/cart/items", maintenanceBody, "")
	s.do(t, http.MethodPost, "/cart/items", `{"service_id":"svc-audit","base_price":"800","quantity":1}`, "")

	resp := decodeCart(t, s.do(t, http.MethodDelete, "/cart/items/svc-audit", "", ""))
	assert.Len(t, resp.Cart.Items, 1)

	noop := decodeCart(t, s.do(t, http.MethodDelete, "/cart/items/svc-audit", "", ""))
	assert.Len(t, noop.Cart.Items, 1)
	assert.Empty(t, noop.Toasts)

	cleared := decodeCart(t, s.do(t, http.MethodDelete, "/cart", "", ""))
	assert.Empty(t, cleared.Cart.Items)
	assert.True(t, cleared.Cart.Total.IsZero())
	assert.Equal(t, "Panier vidé", cleared.Toasts[0].Title)
}

// downSnapshotStore fails every load.
type downSnapshotStore struct {
	*cache.MemoryStore
}

func (downSnapshotStore) Load(context.Context, string) ([]byte, error) {
	return nil, errors.New("redis down")
}

func TestRouter_UnavailableSnapshotStore(t *testing.T) {
	s := newTestServerWith(t, serverOptions{local: downSnapshotStore{cache.NewMemoryStore()}})

	for _, req := range []struct{ method, path, body string }{
		{http.MethodGet, "/cart", ""},
		{http.MethodPost, "/cart/items", maintenanceBody},
		{http.MethodPatch, "/cart/items/svc-maint", `{"quantity": 2}`},
		{http.MethodDelete, "/cart/items/svc-maint", ""},
		{http.MethodDelete, "/cart", ""},
	} {
		rec := s.do(t, req.method, req.path, req.body, "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, req.method+" "+req.path)
	}
}

func TestRouter_SignedInCartIsMirrored(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, "u1", auth.RoleCustomer)

	decodeCart(t, s.do(t, http.MethodPost, "/cart/items", maintenanceBody, token))
	s.flush(t)

	rec, err := s.remote.Get(context.Background(), "u1")
	require.NoError(t, err)
	var items []cart.LineItem
	require.NoError(t, json.Unmarshal(rec.Items, &items))
	require.Len(t, items, 1)
	assertAmount(t, "500", items[0].TotalPrice)
}

func TestRouter_GetCart_AdoptsRemoteCartOnSignIn(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.remote.Insert(context.Background(), &store.CartRecord{
		UserID: "u2",
		Items:  json.RawMessage(`[{"service_id":"svc-audit","slug":"audit","name":"Audit","base_price":"800","quantity":2,"total_price":"0"}]`),
	}))

	resp := decodeCart(t, s.do(t, http.MethodGet, "/cart", "", s.token(t, "u2", auth.RoleCustomer)))

	require.Len(t, resp.Cart.Items, 1)
	assertAmount(t, "1600", resp.Cart.Items[0].TotalPrice)
	assertAmount(t, "1920", resp.Cart.Total)
	assert.Equal(t, "Panier récupéré", resp.Toasts[0].Title)
}

func TestRouter_SyncCart(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/cart/items", maintenanceBody, "")

	rec := s.do(t, http.MethodPost, "/cart/sync", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	decodeCart(t, s.do(t, http.MethodPost, "/cart/sync", "", s.token(t, "u3", auth.RoleCustomer)))
	s.flush(t)

	_, err := s.remote.Get(context.Background(), "u3")
	assert.NoError(t, err)
}

// ============================================
// Pricing Endpoints
// ============================================

func TestRouter_Rules(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/services/rules", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var rules []map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rules))
	require.Len(t, rules, 2)
	assert.Equal(t, "maintenance-informatique", rules[0]["slug"])
	assert.Equal(t, "securisation-reseau", rules[1]["slug"])
}

func TestRouter_Quote(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/quote", maintenanceBody, "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp QuoteResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assertAmount(t, "500", resp.Breakdown.Total)
	assert.Equal(t, "100", resp.Tax)
	assert.Equal(t, "600", resp.TotalWithTax)
	assert.Nil(t, s.session, "quotes do not open a cart session")
}

func TestRouter_Quote_Validation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/quote", `{"slug":"x","base_price":"10","quantity":-1}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/quote", `{"slug":"x","base_price":"10","quantity":1,"configuration":{"service_level":"gold"}}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ============================================
// Admin Endpoints
// ============================================

func TestRouter_Admin_RequiresStaff(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/admin/carts", "", "").Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/admin/carts", "", s.token(t, "u1", auth.RoleCustomer)).Code)
}

func TestRouter_Admin_Carts(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, s.activity.Set(ctx, &readmodel.CartActivityReadModel{UserID: "idle", ItemCount: 2, UpdatedAt: time.Now().Add(-72 * time.Hour)}))
	require.NoError(t, s.activity.Set(ctx, &readmodel.CartActivityReadModel{UserID: "busy", ItemCount: 1, UpdatedAt: time.Now()}))
	staff := s.token(t, "admin-1", auth.RoleStaff)

	rec := s.do(t, http.MethodGet, "/admin/carts", "", staff)
	require.Equal(t, http.StatusOK, rec.Code)
	var all []readmodel.CartActivityReadModel
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&all))
	assert.Len(t, all, 2)

	rec = s.do(t, http.MethodGet, "/admin/carts?abandoned=24h", "", staff)
	var idle []readmodel.CartActivityReadModel
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&idle))
	require.Len(t, idle, 1)
	assert.Equal(t, "idle", idle[0].UserID)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/admin/carts?abandoned=soon", "", staff).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/admin/carts/busy", "", staff).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/admin/carts/nobody", "", staff).Code)
}

type failingActivityStore struct{}

func (failingActivityStore) Get(context.Context, string) (*readmodel.CartActivityReadModel, bool, error) {
	return nil, false, errors.New("db down")
}

func (failingActivityStore) Set(context.Context, *readmodel.CartActivityReadModel) error {
	return errors.New("db down")
}

func (failingActivityStore) List(context.Context) ([]readmodel.CartActivityReadModel, error) {
	return nil, errors.New("db down")
}

func TestRouter_Admin_StoreErrors(t *testing.T) {
	s := newTestServerWith(t, serverOptions{activity: failingActivityStore{}})
	staff := s.token(t, "admin-1", auth.RoleStaff)

	assert.Equal(t, http.StatusInternalServerError, s.do(t, http.MethodGet, "/admin/carts", "", staff).Code)
	assert.Equal(t, http.StatusInternalServerError, s.do(t, http.MethodGet, "/admin/carts?abandoned=24h", "", staff).Code)
	assert.Equal(t, http.StatusInternalServerError, s.do(t, http.MethodGet, "/admin/carts/u1", "", staff).Code)
}

func TestRouter_Admin_SyncStats(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/cart/items", maintenanceBody, s.token(t, "u1", auth.RoleCustomer))
	s.flush(t)

	rec := s.do(t, http.MethodGet, "/admin/sync", "", s.token(t, "admin-1", auth.RoleStaff))

	require.Equal(t, http.StatusOK, rec.Code)
	var stats cart.SyncStats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, uint64(1), stats.Processed)
}

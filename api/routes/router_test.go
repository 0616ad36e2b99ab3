package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/fanjava-backend/internal/categories"
	"github.com/angelmondragon/fanjava-backend/internal/products"
	pkgauth "github.com/angelmondragon/fanjava-backend/pkg/auth"
	"github.com/angelmondragon/fanjava-backend/pkg/auth/session"
	"github.com/angelmondragon/fanjava-backend/pkg/config"
	"github.com/angelmondragon/fanjava-backend/pkg/enums"
	"github.com/angelmondragon/fanjava-backend/pkg/logger"
	"github.com/angelmondragon/fanjava-backend/pkg/metrics"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubSessions struct{}

func (stubSessions) HasSession(context.Context, string, uuid.UUID) (bool, error) {
	return true, nil
}

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
	hits map[string]int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}, hits: map[string]int64{}}
}

func (m *memoryStore) Ping(context.Context) error { return nil }

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryStore) RateLimitKey(scope string) string { return "fj:rate_limit:" + scope }

func (m *memoryStore) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits[key]++
	return m.hits[key], nil
}

type stubCategories struct{}

func (stubCategories) List(context.Context) ([]categories.CategoryDTO, error) {
	return []categories.CategoryDTO{{ID: uuid.New(), Name: "Coffee", Slug: "coffee", Active: true}}, nil
}

func (stubCategories) Create(_ context.Context, req categories.CreateRequest) (*categories.CategoryDTO, error) {
	return &categories.CategoryDTO{ID: uuid.New(), Name: req.Name}, nil
}

func (stubCategories) Delete(context.Context, uuid.UUID) error {
	return nil
}

type countingProducts struct {
	products.Service
	mu      sync.Mutex
	creates int
}

func (c *countingProducts) CreateProduct(_ context.Context, vendorID uuid.UUID, input products.CreateProductInput) (*products.ProductDTO, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creates++
	return &products.ProductDTO{ID: uuid.New(), VendorID: vendorID, Name: input.Name}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0", CORSOrigins: []string{"http://localhost:3000"}},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
	}
}

type testRouter struct {
	handler  http.Handler
	store    *memoryStore
	products *countingProducts
	registry *prometheus.Registry
}

func newTestRouter(cfg *config.Config) testRouter {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	store := newMemoryStore()
	prods := &countingProducts{}
	reg := prometheus.NewRegistry()
	handler := NewRouter(cfg, logg, Deps{
		DB:         stubPinger{},
		Store:      store,
		Sessions:   stubSessions{},
		Metrics:    reg,
		HTTP:       metrics.NewHTTPMetrics(reg),
		Products:   prods,
		Categories: stubCategories{},
	})
	return testRouter{handler: handler, store: store, products: prods, registry: reg}
}

func buildToken(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
		JTI:    session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestHealthLive(t *testing.T) {
	tr := newTestRouter(testConfig())
	resp := serve(tr.handler, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestHealthReady(t *testing.T) {
	tr := newTestRouter(testConfig())
	resp := serve(tr.handler, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestMetricsEndpointExposesHTTPMetrics(t *testing.T) {
	tr := newTestRouter(testConfig())
	serve(tr.handler, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	resp := serve(tr.handler, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "/health/live") {
		t.Fatalf("expected route label in metrics output")
	}
}

func TestPrivateRoutesRejectMissingJWT(t *testing.T) {
	tr := newTestRouter(testConfig())
	for _, target := range []string{"/api/v1/orders", "/api/v1/cart", "/api/v1/notifications"} {
		resp := serve(tr.handler, httptest.NewRequest(http.MethodGet, target, nil))
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 got %d", target, resp.Code)
		}
	}
}

func TestPublicCatalogNeedsNoToken(t *testing.T) {
	tr := newTestRouter(testConfig())
	resp := serve(tr.handler, httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestRoleGuards(t *testing.T) {
	cfg := testConfig()
	tr := newTestRouter(cfg)
	cases := []struct {
		name   string
		method string
		target string
		role   enums.UserRole
		want   int
	}{
		{name: "vendor cannot checkout", method: http.MethodPost, target: "/api/v1/checkout", role: enums.UserRoleVendor, want: http.StatusForbidden},
		{name: "client cannot manage products", method: http.MethodPost, target: "/api/v1/vendor/products", role: enums.UserRoleClient, want: http.StatusForbidden},
		{name: "vendor cannot broadcast", method: http.MethodPost, target: "/api/v1/notifications/bulk", role: enums.UserRoleVendor, want: http.StatusForbidden},
		{name: "client cannot delete categories", method: http.MethodDelete, target: "/api/v1/categories/" + uuid.NewString(), role: enums.UserRoleClient, want: http.StatusForbidden},
		{name: "admin deletes categories", method: http.MethodDelete, target: "/api/v1/categories/" + uuid.NewString(), role: enums.UserRoleAdmin, want: http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.target, strings.NewReader("{}"))
			req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, tc.role))
			if resp := serve(tr.handler, req); resp.Code != tc.want {
				t.Fatalf("expected %d got %d: %s", tc.want, resp.Code, resp.Body.String())
			}
		})
	}
}

func TestVendorCreateProductReplaysIdempotentRequest(t *testing.T) {
	cfg := testConfig()
	tr := newTestRouter(cfg)
	token := buildToken(t, cfg, enums.UserRoleVendor)
	body := `{"name":"Robusta 500g","price_cents":2500,"stock":4,"alert_threshold":1}`

	var first, second *httptest.ResponseRecorder
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/vendor/products", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", "create-robusta")
		resp := serve(tr.handler, req)
		if i == 0 {
			first = resp
		} else {
			second = resp
		}
	}

	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("expected 201 twice, got %d and %d", first.Code, second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("expected replayed body")
	}
	if tr.products.creates != 1 {
		t.Fatalf("expected one create, got %d", tr.products.creates)
	}
}

func TestCORSPreflight(t *testing.T) {
	tr := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/products", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	resp := serve(tr.handler, req)

	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("expected allowed origin header, got %q", got)
	}
}

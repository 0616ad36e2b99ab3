package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeRateStore struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newFakeRateStore() *fakeRateStore {
	return &fakeRateStore{counts: map[string]int64{}}
}

func (f *fakeRateStore) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeRateStore) RateLimitKey(scope string) string { return "fj:rate_limit:" + scope }

func (f *fakeRateStore) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.counts))
	for k := range f.counts {
		out = append(out, k)
	}
	return out
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
}

func loginRequest(email, ip string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"`+email+`","password":"secret"}`))
	req.RemoteAddr = ip + ":5678"
	return req
}

func TestRateLimitRestoresBodyForHandler(t *testing.T) {
	store := newFakeRateStore()
	handler := RateLimit(NewAuthRateLimitPolicy("login", time.Minute, 2, 2), store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Contains(t, string(body), `"email":"tester@example.com"`)
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("tester@example.com", "1.2.3.4"))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitEmailIsNormalizedAndHashed(t *testing.T) {
	store := newFakeRateStore()
	handler := RateLimit(NewAuthRateLimitPolicy("login", time.Minute, 0, 2), store, nil)(okHandler())

	codes := []int{}
	for i, email := range []string{"Blocked@Example.com", " blocked@example.com", "BLOCKED@example.com"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest(email, "10.0.0."+string(rune('1'+i))))
		codes = append(codes, rec.Code)
	}
	require.Equal(t, []int{200, 200, 429}, codes)
	for _, key := range store.keys() {
		require.NotContains(t, key, "blocked@example.com")
		require.True(t, strings.HasPrefix(key, "fj:rate_limit:login:email:"))
	}
}

func TestRateLimitIPUsesForwardedFor(t *testing.T) {
	store := newFakeRateStore()
	handler := RateLimit(NewAuthRateLimitPolicy("register", time.Minute, 1, 0), store, nil)(okHandler())

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := loginRequest("user"+string(rune('a'+i))+"@example.com", "127.0.0.1")
		req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, want, rec.Code)
		if want == http.StatusTooManyRequests {
			require.Equal(t, "60", rec.Header().Get("Retry-After"))
		}
	}
	require.Contains(t, store.keys(), "fj:rate_limit:register:ip:203.0.113.9")
}

func TestRateLimitPerUserSkipsAnonymous(t *testing.T) {
	store := newFakeRateStore()
	handler := RateLimit(NewRateLimitPolicy("checkout", time.Minute, PerUser(1)), store, nil)(okHandler())

	anon := httptest.NewRecorder()
	handler.ServeHTTP(anon, httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil))
	require.Equal(t, http.StatusOK, anon.Code)
	require.Empty(t, store.keys())

	clientID := uuid.New()
	for _, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
		req = req.WithContext(WithUserID(req.Context(), clientID.String()))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, want, rec.Code)
	}
}

func TestRateLimitStoreFailureIsUnavailable(t *testing.T) {
	store := newFakeRateStore()
	store.err = errors.New("redis down")
	handler := RateLimit(NewAuthRateLimitPolicy("login", time.Minute, 5, 5), store, nil)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("a@example.com", "1.1.1.1"))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	handler := RateLimit(NewAuthRateLimitPolicy("login", 0, 5, 5), newFakeRateStore(), nil)(okHandler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("a@example.com", "1.1.1.1"))
	require.Equal(t, http.StatusOK, rec.Code)
}

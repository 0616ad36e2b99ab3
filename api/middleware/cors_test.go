package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func preflight(origins []string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/checkout", nil)
	req.Header.Set("Origin", "https://shop.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", idempotencyHeader)
	rec := httptest.NewRecorder()
	CORS(origins)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {})).ServeHTTP(rec, req)
	return rec
}

func TestCORSListedOriginGetsCredentials(t *testing.T) {
	rec := preflight([]string{"https://shop.example"})
	require.Equal(t, "https://shop.example", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSWildcardDropsCredentials(t *testing.T) {
	rec := preflight([]string{"*"})
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSUnknownOriginRejected(t *testing.T) {
	rec := preflight([]string{"https://other.example"})
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

package authctx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMiddleware_CapturesBearer(t *testing.T) {
	var got string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = Token(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/legs/1", nil)
	req.Header.Set("Authorization", "Bearer abc123")
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, "abc123", got)
}

func TestMiddleware_NoHeader(t *testing.T) {
	var got string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = Token(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Empty(t, got)
}

func TestDecorate(t *testing.T) {
	ctx := WithToken(context.Background(), "tkn")
	req := httptest.NewRequest(http.MethodGet, "http://fleet/vehicles", nil).WithContext(ctx)
	Decorate(req)
	require.Equal(t, "Bearer tkn", req.Header.Get("Authorization"))

	plain := httptest.NewRequest(http.MethodGet, "http://fleet/vehicles", nil)
	Decorate(plain)
	require.Empty(t, plain.Header.Get("Authorization"))
}

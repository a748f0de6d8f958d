package customers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-token", 2*time.Second, zap.NewNop())
}

func TestResolve_Found(t *testing.T) {
	var gotAuth, gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":7,"name":"Ada","email":"ada@example.com","phone":null,"created_at":"2026-08-01T12:00:00Z"}`))
	})

	customer, err := client.Resolve(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), customer.ID)
	assert.Equal(t, "Ada", customer.Name)
	assert.Nil(t, customer.Phone)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "/internal/customers/7", gotPath)
}

func TestResolve_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.Resolve(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolve_UpstreamError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Resolve(context.Background(), 7)
	assert.ErrorIs(t, err, ErrLookupFailed)
	// A 5xx must never read as absence.
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestResolve_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	client := NewClient(srv.URL, "test-token", time.Second, zap.NewNop())

	_, err := client.Resolve(context.Background(), 7)
	assert.ErrorIs(t, err, ErrLookupFailed)
}

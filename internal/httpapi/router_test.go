package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"orderdesk/internal/catalog"
	"orderdesk/internal/orders"
)

func TestRouter_HealthIsOpenRoutesAreGuarded(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(RouterConfig{ServiceName: "orders-api", ServiceToken: "secret"},
		catalog.NewHandler(nil), orders.NewHandler(nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	// Every business route requires the service token.
	for _, path := range []string{"/orders", "/products"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

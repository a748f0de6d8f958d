package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"orderdesk/internal/catalog"
	"orderdesk/internal/orders"
)

// RouterConfig carries what the router needs from main.
type RouterConfig struct {
	ServiceName  string
	ServiceToken string
}

// NewRouter builds the gin engine: tracing middleware, an unauthenticated
// health endpoint, and the catalog and order routes behind the service
// token check.
func NewRouter(cfg RouterConfig, catalogHandler *catalog.Handler, orderHandler *orders.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": cfg.ServiceName})
	})

	authed := r.Group("/", RequireServiceToken(cfg.ServiceToken))
	catalogHandler.Register(authed)
	orderHandler.Register(authed)

	return r
}

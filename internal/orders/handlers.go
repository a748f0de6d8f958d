package orders

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// IdempotencyKeyHeader carries the caller-supplied confirmation key.
const IdempotencyKeyHeader = "X-Idempotency-Key"

// UseCaseInterface is the engine surface the handlers consume.
type UseCaseInterface interface {
	CreateOrder(ctx context.Context, customerID int64, items []NewOrderItemInput) (*Order, error)
	GetOrder(ctx context.Context, id int64) (*Order, error)
	ListOrders(ctx context.Context, query ListOrdersQuery) ([]Order, string, error)
	ConfirmOrder(ctx context.Context, orderID int64, key string) (*ConfirmResult, error)
	CancelOrder(ctx context.Context, orderID int64) (*Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*Order, error)
}

// Handler exposes the order engine over HTTP. It maps the engine's
// tagged errors to response codes and contains no business logic.
type Handler struct {
	useCase UseCaseInterface
}

// NewHandler constructs a Handler.
func NewHandler(useCase UseCaseInterface) *Handler {
	return &Handler{useCase: useCase}
}

// Register mounts the order routes on the given router group.
func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/orders", h.CreateOrder)
	r.GET("/orders/:id", h.GetOrder)
	r.GET("/orders", h.ListOrders)
	r.POST("/orders/:id/confirm", h.ConfirmOrder)
	r.POST("/orders/:id/cancel", h.CancelOrder)
	r.GET("/orders/by-idempotency-key/:key", h.GetOrderByIdempotencyKey)
}

type createOrderItem struct {
	ProductID int64 `json:"product_id" binding:"required,gt=0"`
	Qty       int32 `json:"qty" binding:"required,gt=0"`
}

type createOrderRequest struct {
	CustomerID int64             `json:"customer_id" binding:"required,gt=0"`
	Items      []createOrderItem `json:"items" binding:"required,min=1,dive"`
}

type listOrdersResponse struct {
	Orders     []Order `json:"orders"`
	NextCursor *string `json:"nextCursor"`
}

// CreateOrder handles POST /orders.
func (h *Handler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items := make([]NewOrderItemInput, 0, len(req.Items))
	for _, line := range req.Items {
		items = append(items, NewOrderItemInput{ProductID: line.ProductID, Qty: line.Qty})
	}

	order, err := h.useCase.CreateOrder(c.Request.Context(), req.CustomerID, items)
	if err != nil {
		h.writeCreateError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

func (h *Handler) writeCreateError(c *gin.Context, err error) {
	var productNotFound ProductNotFoundError
	var insufficientStock InsufficientStockError

	switch {
	case errors.Is(err, ErrCustomerNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found"})
	case errors.As(err, &productNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": productNotFound.Error()})
	case errors.As(err, &insufficientStock):
		c.JSON(http.StatusConflict, gin.H{"error": insufficientStock.Error()})
	case errors.Is(err, ErrUpstreamUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "customer lookup unavailable"})
	case errors.Is(err, ErrEmptyOrder), errors.Is(err, ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// GetOrder handles GET /orders/:id.
func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := pathOrderID(c)
	if !ok {
		return
	}

	order, err := h.useCase.GetOrder(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if order == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	c.JSON(http.StatusOK, order)
}

// ListOrders handles GET /orders.
func (h *Handler) ListOrders(c *gin.Context) {
	var query ListOrdersQuery

	if raw := c.Query("status"); raw != "" {
		status := OrderStatus(raw)
		switch status {
		case StatusCreated, StatusConfirmed, StatusCanceled:
			query.Status = status
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
	}
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from"})
			return
		}
		query.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to"})
			return
		}
		query.To = &to
	}
	if raw := c.Query("cursor"); raw != "" {
		// 0 is the exclusive lower bound, same as omitting the cursor.
		cursor, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || cursor < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cursor"})
			return
		}
		query.Cursor = cursor
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		query.Limit = limit
	}

	orders, nextCursor, err := h.useCase.ListOrders(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if orders == nil {
		orders = []Order{}
	}

	resp := listOrdersResponse{Orders: orders}
	if nextCursor != "" {
		resp.NextCursor = &nextCursor
	}
	c.JSON(http.StatusOK, resp)
}

// ConfirmOrder handles POST /orders/:id/confirm. Replays write the
// cached body verbatim so repeated calls are byte-identical.
func (h *Handler) ConfirmOrder(c *gin.Context) {
	id, ok := pathOrderID(c)
	if !ok {
		return
	}

	key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": IdempotencyKeyHeader + " header is required"})
		return
	}

	result, err := h.useCase.ConfirmOrder(c.Request.Context(), id, key)
	if err != nil {
		switch {
		case errors.Is(err, ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		case errors.Is(err, ErrOrderNotConfirmable):
			c.JSON(http.StatusConflict, gin.H{"error": "Order cannot be confirmed"})
		case errors.Is(err, ErrConfirmationInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": "Idempotency key in progress"})
		case errors.Is(err, ErrConfirmationFailed):
			c.JSON(http.StatusConflict, gin.H{"error": "Idempotency key previously failed; use a new key"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	if result.Replayed {
		c.Header("X-Idempotent-Replay", "true")
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", result.Body)
}

// CancelOrder handles POST /orders/:id/cancel.
func (h *Handler) CancelOrder(c *gin.Context) {
	id, ok := pathOrderID(c)
	if !ok {
		return
	}

	order, err := h.useCase.CancelOrder(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrCancelWindowExpired) {
			c.JSON(http.StatusConflict, gin.H{"error": "Cannot cancel CONFIRMED order after 10 minutes"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if order == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	c.JSON(http.StatusOK, order)
}

// GetOrderByIdempotencyKey handles GET /orders/by-idempotency-key/:key.
// Upstream orchestrators use it to find an order already confirmed
// under a key before creating a duplicate.
func (h *Handler) GetOrderByIdempotencyKey(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
		return
	}

	order, err := h.useCase.GetOrderByIdempotencyKey(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if order == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	c.JSON(http.StatusOK, order)
}

func pathOrderID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

package catalog

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// UseCaseInterface is the catalog surface the handlers consume.
type UseCaseInterface interface {
	CreateProduct(ctx context.Context, input NewProductInput) (*Product, error)
	GetProduct(ctx context.Context, id int64) (*Product, error)
	ListProducts(ctx context.Context, query ListProductsQuery) ([]Product, string, error)
	PatchProduct(ctx context.Context, id int64, input PatchProductInput) (*Product, error)
}

// Handler exposes the catalog over HTTP.
type Handler struct {
	useCase UseCaseInterface
}

// NewHandler constructs a Handler.
func NewHandler(useCase UseCaseInterface) *Handler {
	return &Handler{useCase: useCase}
}

// Register mounts the catalog routes on the given router group.
func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/products", h.CreateProduct)
	r.GET("/products/:id", h.GetProduct)
	r.GET("/products", h.ListProducts)
	r.PATCH("/products/:id", h.PatchProduct)
}

type createProductRequest struct {
	SKU        string `json:"sku" binding:"required"`
	Name       string `json:"name" binding:"required"`
	PriceCents int64  `json:"price_cents" binding:"min=0"`
	Stock      int32  `json:"stock" binding:"min=0"`
}

type patchProductRequest struct {
	PriceCents *int64 `json:"price_cents" binding:"omitempty,min=0"`
	Stock      *int32 `json:"stock" binding:"omitempty,min=0"`
}

type listProductsResponse struct {
	Products   []Product `json:"products"`
	NextCursor *string   `json:"nextCursor"`
}

// CreateProduct handles POST /products.
func (h *Handler) CreateProduct(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product, err := h.useCase.CreateProduct(c.Request.Context(), NewProductInput{
		SKU:        req.SKU,
		Name:       req.Name,
		PriceCents: req.PriceCents,
		Stock:      req.Stock,
	})
	if err != nil {
		if errors.Is(err, ErrSKUExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "SKU already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusCreated, product)
}

// GetProduct handles GET /products/:id.
func (h *Handler) GetProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	product, err := h.useCase.GetProduct(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if product == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	c.JSON(http.StatusOK, product)
}

// ListProducts handles GET /products.
func (h *Handler) ListProducts(c *gin.Context) {
	query := ListProductsQuery{
		Search: c.Query("search"),
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

	products, nextCursor, err := h.useCase.ListProducts(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if products == nil {
		products = []Product{}
	}

	resp := listProductsResponse{Products: products}
	if nextCursor != "" {
		resp.NextCursor = &nextCursor
	}
	c.JSON(http.StatusOK, resp)
}

// PatchProduct handles PATCH /products/:id.
func (h *Handler) PatchProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req patchProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product, err := h.useCase.PatchProduct(c.Request.Context(), id, PatchProductInput{
		PriceCents: req.PriceCents,
		Stock:      req.Stock,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if product == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	c.JSON(http.StatusOK, product)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

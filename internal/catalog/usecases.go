package catalog

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// UseCase contains the catalog business logic.
type UseCase struct {
	repository Repository
	logger     *zap.Logger
}

// NewUseCase constructs a UseCase.
func NewUseCase(repository Repository, logger *zap.Logger) *UseCase {
	return &UseCase{
		repository: repository,
		logger:     logger,
	}
}

// CreateProduct creates a catalog product.
func (uc *UseCase) CreateProduct(ctx context.Context, input NewProductInput) (*Product, error) {
	product, err := uc.repository.CreateProduct(ctx, input)
	if err != nil {
		return nil, err
	}
	uc.logger.Info("product created",
		zap.Int64("product_id", product.ID),
		zap.String("sku", product.SKU))
	return product, nil
}

// GetProduct returns a product by id, or nil when absent.
func (uc *UseCase) GetProduct(ctx context.Context, id int64) (*Product, error) {
	return uc.repository.GetProduct(ctx, id)
}

// ListProducts returns one page of products and the cursor for the next
// page, empty when there is none.
func (uc *UseCase) ListProducts(ctx context.Context, query ListProductsQuery) ([]Product, string, error) {
	limit := clampLimit(query.Limit)

	products, err := uc.repository.ListProducts(ctx, query, limit+1)
	if err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(products) > limit {
		products = products[:limit]
		nextCursor = fmt.Sprintf("%d", products[len(products)-1].ID)
	}
	return products, nextCursor, nil
}

// PatchProduct updates price and/or stock. Returns nil when absent.
func (uc *UseCase) PatchProduct(ctx context.Context, id int64, input PatchProductInput) (*Product, error) {
	product, err := uc.repository.PatchProduct(ctx, id, input)
	if err != nil {
		return nil, err
	}
	if product != nil {
		uc.logger.Info("product patched", zap.Int64("product_id", product.ID))
	}
	return product, nil
}

func clampLimit(limit int) int {
	if limit < 1 {
		return defaultPageLimit
	}
	if limit > maxPageLimit {
		return maxPageLimit
	}
	return limit
}

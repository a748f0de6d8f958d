package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"orderdesk/internal/customers"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// UseCase is the order lifecycle engine. All cross-row invariants
// (stock never negative, exactly-once confirmation effect, exactly-once
// stock restoration) are enforced through the repository's atomic
// units; the engine holds no in-process shared state.
type UseCase struct {
	repository Repository
	ledger     Ledger
	customers  customers.Resolver
	logger     *zap.Logger
	metrics    *Metrics
	now        func() time.Time
}

// NewUseCase constructs the engine. metrics may be nil.
func NewUseCase(repository Repository, ledger Ledger, resolver customers.Resolver, logger *zap.Logger, metrics *Metrics) *UseCase {
	return &UseCase{
		repository: repository,
		ledger:     ledger,
		customers:  resolver,
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
	}
}

// CreateOrder resolves the customer, then atomically prices the
// requested lines, decrements stock, and inserts the order with its
// items. Any validation failure aborts the whole unit: no order row, no
// item rows, no stock change.
func (uc *UseCase) CreateOrder(ctx context.Context, customerID int64, items []NewOrderItemInput) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	for _, line := range items {
		if line.Qty <= 0 {
			return nil, ErrInvalidQuantity
		}
	}

	if _, err := uc.customers.Resolve(ctx, customerID); err != nil {
		if errors.Is(err, customers.ErrNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	productIDs := distinctProductIDs(items)

	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	products, err := uc.repository.ProductsForUpdate(ctx, tx, productIDs)
	if err != nil {
		return nil, err
	}

	// Validate every line against the locked rows before touching
	// anything. remaining tracks cumulative demand so duplicate lines
	// for one product cannot oversell it.
	remaining := make(map[int64]int32, len(products))
	for id, p := range products {
		remaining[id] = p.Stock
	}
	var totalCents int64
	for _, line := range items {
		product, ok := products[line.ProductID]
		if !ok {
			return nil, ProductNotFoundError{ProductID: line.ProductID}
		}
		if remaining[line.ProductID] < line.Qty {
			return nil, InsufficientStockError{ProductID: line.ProductID}
		}
		remaining[line.ProductID] -= line.Qty
		totalCents += product.PriceCents * int64(line.Qty)
	}

	order, err := uc.repository.InsertOrder(ctx, tx, customerID, totalCents)
	if err != nil {
		return nil, err
	}

	for _, line := range items {
		product := products[line.ProductID]
		item := &OrderItem{
			OrderID:        order.ID,
			ProductID:      line.ProductID,
			Qty:            line.Qty,
			UnitPriceCents: product.PriceCents,
			SubtotalCents:  product.PriceCents * int64(line.Qty),
		}
		if err := uc.repository.InsertOrderItem(ctx, tx, item); err != nil {
			return nil, err
		}
		if err := uc.repository.AdjustStock(ctx, tx, line.ProductID, -line.Qty, order.ID, MovementDecreased); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, *item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create order: %w", err)
	}

	uc.metrics.recordCreated(ctx)
	uc.logger.Info("order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("customer_id", customerID),
		zap.Int64("total_cents", order.TotalCents),
		zap.Int("items", len(order.Items)))
	return order, nil
}

// GetOrder returns the order with its items, or nil when absent.
func (uc *UseCase) GetOrder(ctx context.Context, id int64) (*Order, error) {
	return uc.repository.GetOrder(ctx, id)
}

// ListOrders returns one page of orders and the cursor for the next
// page, empty when there is none.
func (uc *UseCase) ListOrders(ctx context.Context, query ListOrdersQuery) ([]Order, string, error) {
	limit := query.Limit
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	orders, err := uc.repository.ListOrders(ctx, query, limit+1)
	if err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(orders) > limit {
		orders = orders[:limit]
		nextCursor = fmt.Sprintf("%d", orders[len(orders)-1].ID)
	}
	return orders, nextCursor, nil
}

// ConfirmResult is the outcome of a confirmation. Body is the exact
// serialized payload the ledger caches; repeated calls with the same key
// return it byte for byte.
type ConfirmResult struct {
	Order    *Order
	Body     []byte
	Replayed bool
}

// ConfirmOrder transitions the order from CREATED to CONFIRMED exactly
// once per idempotency key. A COMPLETED key replays the cached response
// without touching order state.
func (uc *UseCase) ConfirmOrder(ctx context.Context, orderID int64, key string) (*ConfirmResult, error) {
	rec, err := uc.ledger.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		return uc.resolveExistingRecord(ctx, rec, key)
	}

	claimed, err := uc.ledger.Claim(ctx, key, orderID, uc.now().Add(IdempotencyExpiry))
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Lost the insert race; the winner's record decides.
		rec, err := uc.ledger.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, ErrConfirmationInProgress
		}
		return uc.resolveExistingRecord(ctx, rec, key)
	}

	result, err := uc.confirmOwned(ctx, orderID, key)
	if err != nil {
		// Never leave the record PROCESSING: the key must fail closed so
		// a distinguishable retry is possible with a fresh key.
		if failErr := uc.ledger.Fail(ctx, key); failErr != nil {
			uc.logger.Error("failed to mark idempotency record FAILED",
				zap.String("idempotency_key", key),
				zap.Error(failErr))
		}
		return nil, err
	}

	uc.metrics.recordConfirmed(ctx, false)
	uc.logger.Info("order confirmed",
		zap.Int64("order_id", result.Order.ID),
		zap.String("idempotency_key", key))
	return result, nil
}

func (uc *UseCase) resolveExistingRecord(ctx context.Context, rec *IdempotencyRecord, key string) (*ConfirmResult, error) {
	switch rec.Status {
	case IdempotencyCompleted:
		var order Order
		if err := json.Unmarshal(rec.ResponseBody, &order); err != nil {
			return nil, fmt.Errorf("decode cached confirmation: %w", err)
		}
		uc.metrics.recordConfirmed(ctx, true)
		uc.logger.Info("order confirmation replayed from cache",
			zap.Int64("order_id", rec.TargetID),
			zap.String("idempotency_key", key))
		return &ConfirmResult{Order: &order, Body: rec.ResponseBody, Replayed: true}, nil
	case IdempotencyFailed:
		return nil, ErrConfirmationFailed
	default:
		return nil, ErrConfirmationInProgress
	}
}

// confirmOwned runs the business logic while holding the PROCESSING
// record. The order row lock covers the status check and the write, so
// two confirms under different keys cannot both pass the CREATED check.
func (uc *UseCase) confirmOwned(ctx context.Context, orderID int64, key string) (*ConfirmResult, error) {
	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	order, err := uc.repository.OrderForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Status != StatusCreated {
		return nil, ErrOrderNotConfirmable
	}

	if err := uc.repository.UpdateOrderStatus(ctx, tx, orderID, StatusConfirmed); err != nil {
		return nil, err
	}

	updated, err := uc.repository.GetOrderTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrOrderNotFound
	}

	body, err := json.Marshal(updated)
	if err != nil {
		return nil, fmt.Errorf("encode confirmation response: %w", err)
	}

	if err := uc.ledger.Complete(ctx, tx, key, body); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit confirm order: %w", err)
	}

	return &ConfirmResult{Order: updated, Body: body, Replayed: false}, nil
}

// CancelOrder moves an order to CANCELED and restores stock for its
// items. Canceling an already-CANCELED order returns it unchanged; a
// CONFIRMED order is cancelable only inside the cancel window. An
// absent order returns (nil, nil).
func (uc *UseCase) CancelOrder(ctx context.Context, orderID int64) (*Order, error) {
	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	order, err := uc.repository.OrderForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, nil
	}
	// The row lock plus this check make the restoration exactly-once: a
	// second cancel observes CANCELED and returns without touching stock.
	if order.Status == StatusCanceled {
		return order, nil
	}
	if order.Status == StatusConfirmed {
		if uc.now().Sub(order.CreatedAt) > ConfirmedCancelWindow {
			return nil, ErrCancelWindowExpired
		}
	}

	if err := uc.repository.UpdateOrderStatus(ctx, tx, orderID, StatusCanceled); err != nil {
		return nil, err
	}
	for _, item := range order.Items {
		if err := uc.repository.AdjustStock(ctx, tx, item.ProductID, item.Qty, orderID, MovementIncreased); err != nil {
			return nil, err
		}
	}

	updated, err := uc.repository.GetOrderTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit cancel order: %w", err)
	}

	uc.metrics.recordCanceled(ctx)
	uc.logger.Info("order canceled",
		zap.Int64("order_id", orderID),
		zap.Int("items_restored", len(order.Items)))
	return updated, nil
}

// GetOrderByIdempotencyKey resolves a COMPLETED confirmation key to its
// order, or nil when the key is unknown or not completed.
func (uc *UseCase) GetOrderByIdempotencyKey(ctx context.Context, key string) (*Order, error) {
	rec, err := uc.ledger.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.Status != IdempotencyCompleted {
		return nil, nil
	}
	return uc.repository.GetOrder(ctx, rec.TargetID)
}

func distinctProductIDs(items []NewOrderItemInput) []int64 {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, line := range items {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

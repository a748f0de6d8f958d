package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"orderdesk/internal/catalog"
)

// Stock movement types recorded alongside every stock mutation.
const (
	MovementDecreased = "decreased"
	MovementIncreased = "increased"
)

// Tx is one atomic unit against the stores: every mutation grouped under
// it commits or rolls back together.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Repository defines the order store operations. Methods taking a Tx run
// inside that atomic unit.
type Repository interface {
	BeginTx(ctx context.Context) (Tx, error)

	// ProductsForUpdate reads the given products under row locks, in
	// ascending id order so concurrent creates acquire locks in the
	// same order.
	ProductsForUpdate(ctx context.Context, tx Tx, ids []int64) (map[int64]catalog.Product, error)
	InsertOrder(ctx context.Context, tx Tx, customerID, totalCents int64) (*Order, error)
	InsertOrderItem(ctx context.Context, tx Tx, item *OrderItem) error
	// AdjustStock shifts a product's stock by delta and records an
	// inventory movement in the same unit.
	AdjustStock(ctx context.Context, tx Tx, productID int64, delta int32, orderID int64, movementType string) error

	// OrderForUpdate locks the order row and returns it with items, or
	// nil when absent.
	OrderForUpdate(ctx context.Context, tx Tx, id int64) (*Order, error)
	UpdateOrderStatus(ctx context.Context, tx Tx, id int64, status OrderStatus) error
	GetOrderTx(ctx context.Context, tx Tx, id int64) (*Order, error)

	GetOrder(ctx context.Context, id int64) (*Order, error)
	ListOrders(ctx context.Context, query ListOrdersQuery, fetchLimit int) ([]Order, error)
}

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresRepository implements Repository on PostgreSQL.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository constructs a PostgresRepository.
func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *postgresTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

// BeginTx starts an atomic unit.
func (r *PostgresRepository) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &postgresTx{tx: tx}, nil
}

func pgtx(tx Tx) pgx.Tx {
	return tx.(*postgresTx).tx
}

const orderColumns = "id, customer_id, status, total_cents, created_at"

// ProductsForUpdate batch-reads products under FOR UPDATE row locks.
func (r *PostgresRepository) ProductsForUpdate(ctx context.Context, tx Tx, ids []int64) (map[int64]catalog.Product, error) {
	rows, err := pgtx(tx).Query(ctx, `
		SELECT id, sku, name, price_cents, stock, created_at
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	products := make(map[int64]catalog.Product, len(ids))
	for rows.Next() {
		var p catalog.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.PriceCents, &p.Stock, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	return products, nil
}

// InsertOrder inserts a CREATED order and returns the stored row.
func (r *PostgresRepository) InsertOrder(ctx context.Context, tx Tx, customerID, totalCents int64) (*Order, error) {
	var o Order
	err := pgtx(tx).QueryRow(ctx, `
		INSERT INTO orders (customer_id, status, total_cents)
		VALUES ($1, $2, $3)
		RETURNING `+orderColumns,
		customerID, StatusCreated, totalCents,
	).Scan(&o.ID, &o.CustomerID, &o.Status, &o.TotalCents, &o.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	return &o, nil
}

// InsertOrderItem inserts a line item and fills in its generated id.
func (r *PostgresRepository) InsertOrderItem(ctx context.Context, tx Tx, item *OrderItem) error {
	err := pgtx(tx).QueryRow(ctx, `
		INSERT INTO order_items (order_id, product_id, qty, unit_price_cents, subtotal_cents)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		item.OrderID, item.ProductID, item.Qty, item.UnitPriceCents, item.SubtotalCents,
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("insert order item: %w", err)
	}
	return nil
}

// AdjustStock shifts stock by delta and writes the movement row.
func (r *PostgresRepository) AdjustStock(ctx context.Context, tx Tx, productID int64, delta int32, orderID int64, movementType string) error {
	if _, err := pgtx(tx).Exec(ctx, `
		UPDATE products
		SET stock = stock + $2
		WHERE id = $1`,
		productID, delta,
	); err != nil {
		return fmt.Errorf("adjust stock: %w", err)
	}

	if _, err := pgtx(tx).Exec(ctx, `
		INSERT INTO inventory_movements (id, product_id, order_id, change_qty, movement_type)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.New().String(), productID, orderID, delta, movementType,
	); err != nil {
		return fmt.Errorf("insert inventory movement: %w", err)
	}
	return nil
}

// OrderForUpdate locks the order row and returns it with items, or nil
// when the order does not exist.
func (r *PostgresRepository) OrderForUpdate(ctx context.Context, tx Tx, id int64) (*Order, error) {
	var o Order
	err := pgtx(tx).QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
		FOR UPDATE`,
		id,
	).Scan(&o.ID, &o.CustomerID, &o.Status, &o.TotalCents, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}

	items, err := r.orderItems(ctx, pgtx(tx), id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

// UpdateOrderStatus sets the order's status.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, tx Tx, id int64, status OrderStatus) error {
	if _, err := pgtx(tx).Exec(ctx, `
		UPDATE orders SET status = $2 WHERE id = $1`,
		id, status,
	); err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return nil
}

// GetOrderTx reads the order with items inside the transaction.
func (r *PostgresRepository) GetOrderTx(ctx context.Context, tx Tx, id int64) (*Order, error) {
	return r.getOrder(ctx, pgtx(tx), id)
}

// GetOrder reads the order with items, or nil when absent.
func (r *PostgresRepository) GetOrder(ctx context.Context, id int64) (*Order, error) {
	return r.getOrder(ctx, r.db, id)
}

// querier covers both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *PostgresRepository) getOrder(ctx context.Context, q querier, id int64) (*Order, error) {
	var o Order
	err := q.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1`,
		id,
	).Scan(&o.ID, &o.CustomerID, &o.Status, &o.TotalCents, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := r.orderItems(ctx, q, id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (r *PostgresRepository) orderItems(ctx context.Context, q querier, orderID int64) ([]OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, qty, unit_price_cents, subtotal_cents
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Qty, &it.UnitPriceCents, &it.SubtotalCents); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	return items, nil
}

// ListOrders returns up to fetchLimit orders ordered by ascending id,
// starting after the cursor. Filters are conjunctive.
func (r *PostgresRepository) ListOrders(ctx context.Context, query ListOrdersQuery, fetchLimit int) ([]Order, error) {
	sql := `SELECT ` + orderColumns + ` FROM orders WHERE id > $1`
	args := []any{query.Cursor}

	if query.Status != "" {
		sql += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, query.Status)
	}
	if query.From != nil {
		sql += fmt.Sprintf(" AND created_at >= $%d", len(args)+1)
		args = append(args, *query.From)
	}
	if query.To != nil {
		sql += fmt.Sprintf(" AND created_at <= $%d", len(args)+1)
		args = append(args, *query.To)
	}
	sql += fmt.Sprintf(" ORDER BY id ASC LIMIT $%d", len(args)+1)
	args = append(args, fetchLimit)

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.Status, &o.TotalCents, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository defines the catalog store operations.
type Repository interface {
	CreateProduct(ctx context.Context, input NewProductInput) (*Product, error)
	GetProduct(ctx context.Context, id int64) (*Product, error)
	ListProducts(ctx context.Context, query ListProductsQuery, fetchLimit int) ([]Product, error)
	PatchProduct(ctx context.Context, id int64, input PatchProductInput) (*Product, error)
}

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository implements Repository on PostgreSQL.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository constructs a PostgresRepository.
func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const productColumns = "id, sku, name, price_cents, stock, created_at"

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.PriceCents, &p.Stock, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProduct inserts a product. A SKU collision maps to ErrSKUExists.
func (r *PostgresRepository) CreateProduct(ctx context.Context, input NewProductInput) (*Product, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO products (sku, name, price_cents, stock)
		VALUES ($1, $2, $3, $4)
		RETURNING `+productColumns,
		input.SKU, input.Name, input.PriceCents, input.Stock,
	)

	product, err := scanProduct(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrSKUExists
		}
		return nil, fmt.Errorf("insert product: %w", err)
	}
	return product, nil
}

// GetProduct returns a product by id, or nil when absent.
func (r *PostgresRepository) GetProduct(ctx context.Context, id int64) (*Product, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+productColumns+`
		FROM products WHERE id = $1`,
		id,
	)

	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return product, nil
}

// ListProducts returns up to fetchLimit products ordered by ascending id,
// starting after the cursor. Search filters on name or SKU.
func (r *PostgresRepository) ListProducts(ctx context.Context, query ListProductsQuery, fetchLimit int) ([]Product, error) {
	sql := `SELECT ` + productColumns + ` FROM products WHERE id > $1`
	args := []any{query.Cursor}

	if query.Search != "" {
		sql += fmt.Sprintf(" AND (name ILIKE $%d OR sku ILIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, "%"+query.Search+"%")
	}
	sql += fmt.Sprintf(" ORDER BY id ASC LIMIT $%d", len(args)+1)
	args = append(args, fetchLimit)

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.PriceCents, &p.Stock, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// PatchProduct applies the provided fields and returns the updated row,
// or nil when the product does not exist. COALESCE keeps the patch a
// single atomic statement.
func (r *PostgresRepository) PatchProduct(ctx context.Context, id int64, input PatchProductInput) (*Product, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE products
		SET price_cents = COALESCE($2, price_cents),
		    stock = COALESCE($3, stock)
		WHERE id = $1
		RETURNING `+productColumns,
		id, input.PriceCents, input.Stock,
	)

	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("patch product: %w", err)
	}
	return product, nil
}

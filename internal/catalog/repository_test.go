package catalog

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PostgresRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPostgresRepository(mock)
}

var testColumns = []string{"id", "sku", "name", "price_cents", "stock", "created_at"}

func TestCreateProduct(t *testing.T) {
	mock, repo := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO products")).
		WithArgs("sku-1", "Widget", int64(500), int32(10)).
		WillReturnRows(pgxmock.NewRows(testColumns).
			AddRow(int64(1), "sku-1", "Widget", int64(500), int32(10), now))

	product, err := repo.CreateProduct(context.Background(), NewProductInput{
		SKU: "sku-1", Name: "Widget", PriceCents: 500, Stock: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), product.ID)
	assert.Equal(t, "sku-1", product.SKU)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProduct_DuplicateSKU(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO products")).
		WithArgs("sku-1", "Widget", int64(500), int32(10)).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.CreateProduct(context.Background(), NewProductInput{
		SKU: "sku-1", Name: "Widget", PriceCents: 500, Stock: 10,
	})
	assert.ErrorIs(t, err, ErrSKUExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProduct_Absent(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM products")).
		WithArgs(int64(42)).
		WillReturnError(pgx.ErrNoRows)

	product, err := repo.GetProduct(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, product)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListProducts_SearchFilter(t *testing.T) {
	mock, repo := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("name ILIKE $2 OR sku ILIKE $2")).
		WithArgs(int64(0), "%widget%", 3).
		WillReturnRows(pgxmock.NewRows(testColumns).
			AddRow(int64(1), "sku-1", "Widget", int64(500), int32(10), now))

	products, err := repo.ListProducts(context.Background(), ListProductsQuery{Search: "widget"}, 3)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Widget", products[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatchProduct(t *testing.T) {
	mock, repo := newMockRepo(t)
	now := time.Now()
	price := int64(750)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE products")).
		WithArgs(int64(1), &price, (*int32)(nil)).
		WillReturnRows(pgxmock.NewRows(testColumns).
			AddRow(int64(1), "sku-1", "Widget", int64(750), int32(10), now))

	product, err := repo.PatchProduct(context.Background(), 1, PatchProductInput{PriceCents: &price})
	require.NoError(t, err)
	require.NotNil(t, product)
	assert.Equal(t, int64(750), product.PriceCents)
	assert.Equal(t, int32(10), product.Stock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatchProduct_Absent(t *testing.T) {
	mock, repo := newMockRepo(t)
	stock := int32(5)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE products")).
		WithArgs(int64(42), (*int64)(nil), &stock).
		WillReturnError(pgx.ErrNoRows)

	product, err := repo.PatchProduct(context.Background(), 42, PatchProductInput{Stock: &stock})
	require.NoError(t, err)
	assert.Nil(t, product)
	assert.NoError(t, mock.ExpectationsWereMet())
}

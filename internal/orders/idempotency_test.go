package orders

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockLedger(t *testing.T) (pgxmock.PgxPoolIface, *PostgresLedger) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPostgresLedger(mock)
}

func TestLedgerGet(t *testing.T) {
	mock, ledger := newMockLedger(t)
	expires := time.Now().Add(24 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("FROM idempotency_keys")).
		WithArgs("key-1").
		WillReturnRows(pgxmock.NewRows([]string{"key", "target_type", "target_id", "status", "response_body", "expires_at"}).
			AddRow("key-1", TargetTypeOrderConfirmation, int64(1), IdempotencyCompleted, []byte(`{"id":1}`), expires))

	rec, err := ledger.Get(context.Background(), "key-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, IdempotencyCompleted, rec.Status)
	assert.Equal(t, []byte(`{"id":1}`), rec.ResponseBody)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerGet_Absent(t *testing.T) {
	mock, ledger := newMockLedger(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM idempotency_keys")).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	rec, err := ledger.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerClaim(t *testing.T) {
	mock, ledger := newMockLedger(t)
	expires := time.Now().Add(24 * time.Hour)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (key) DO NOTHING")).
		WithArgs("key-1", TargetTypeOrderConfirmation, int64(1), IdempotencyProcessing, expires).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	claimed, err := ledger.Claim(context.Background(), "key-1", 1, expires)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerClaim_KeyTaken(t *testing.T) {
	mock, ledger := newMockLedger(t)
	expires := time.Now().Add(24 * time.Hour)

	// ON CONFLICT DO NOTHING reports zero rows for the loser.
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (key) DO NOTHING")).
		WithArgs("key-1", TargetTypeOrderConfirmation, int64(1), IdempotencyProcessing, expires).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	claimed, err := ledger.Claim(context.Background(), "key-1", 1, expires)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerComplete_RunsInTransaction(t *testing.T) {
	mock, ledger := newMockLedger(t)
	repo := NewPostgresRepository(mock)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE idempotency_keys")).
		WithArgs("key-1", IdempotencyCompleted, []byte(`{"id":1}`)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, ledger.Complete(ctx, tx, "key-1", []byte(`{"id":1}`)))
	require.NoError(t, tx.Commit(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerFail(t *testing.T) {
	mock, ledger := newMockLedger(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE idempotency_keys")).
		WithArgs("key-1", IdempotencyFailed).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, ledger.Fail(context.Background(), "key-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

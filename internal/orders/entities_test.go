package orders

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedErrorsCarryTheProductID(t *testing.T) {
	err := fmt.Errorf("create order: %w", InsufficientStockError{ProductID: 9})

	var stockErr InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(9), stockErr.ProductID)
	assert.Contains(t, stockErr.Error(), "9")

	var notFound ProductNotFoundError
	assert.False(t, errors.As(err, &notFound))
}

func TestOrderJSONOmitsEmptyItems(t *testing.T) {
	body, err := json.Marshal(Order{ID: 1, Status: StatusCreated})
	require.NoError(t, err)
	assert.NotContains(t, string(body), "items")

	body, err = json.Marshal(Order{ID: 1, Items: []OrderItem{{ID: 1}}})
	require.NoError(t, err)
	assert.Contains(t, string(body), "items")
}

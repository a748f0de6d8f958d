package customers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingResolver struct {
	customer *Customer
	err      error
	calls    int
}

func (r *countingResolver) Resolve(ctx context.Context, customerID int64) (*Customer, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.customer, nil
}

func newCacheFixture(t *testing.T, upstream *countingResolver) (*miniredis.Miniredis, *CachedResolver) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, NewCachedResolver(upstream, rdb, time.Minute, zap.NewNop())
}

func TestCachedResolve_SecondHitServedFromCache(t *testing.T) {
	upstream := &countingResolver{customer: &Customer{ID: 7, Name: "Ada"}}
	_, cached := newCacheFixture(t, upstream)
	ctx := context.Background()

	first, err := cached.Resolve(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Ada", first.Name)
	assert.Equal(t, 1, upstream.calls)

	second, err := cached.Resolve(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Ada", second.Name)
	assert.Equal(t, 1, upstream.calls)
}

func TestCachedResolve_FailuresNotCached(t *testing.T) {
	upstream := &countingResolver{err: ErrNotFound}
	_, cached := newCacheFixture(t, upstream)
	ctx := context.Background()

	_, err := cached.Resolve(ctx, 7)
	assert.ErrorIs(t, err, ErrNotFound)

	// A later registration must become visible: the upstream is asked
	// again instead of replaying the miss.
	upstream.err = nil
	upstream.customer = &Customer{ID: 7, Name: "Ada"}

	customer, err := cached.Resolve(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Ada", customer.Name)
	assert.Equal(t, 2, upstream.calls)
}

func TestCachedResolve_CorruptEntryDropped(t *testing.T) {
	upstream := &countingResolver{customer: &Customer{ID: 7, Name: "Ada"}}
	mr, cached := newCacheFixture(t, upstream)
	ctx := context.Background()

	require.NoError(t, mr.Set(cacheKey(7), "not-json"))

	customer, err := cached.Resolve(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Ada", customer.Name)
	assert.Equal(t, 1, upstream.calls)

	// The corrupt entry was replaced with the fresh record.
	raw, err := mr.Get(cacheKey(7))
	require.NoError(t, err)
	var stored Customer
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, "Ada", stored.Name)
}

func TestCachedResolve_RedisDownDegradesToUpstream(t *testing.T) {
	upstream := &countingResolver{customer: &Customer{ID: 7, Name: "Ada"}}
	mr, cached := newCacheFixture(t, upstream)
	mr.Close()

	customer, err := cached.Resolve(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Ada", customer.Name)
	assert.Equal(t, 1, upstream.calls)
}

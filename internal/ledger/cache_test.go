package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

// failingSetHook rejects SET so cache writes fail while reads still work.
type failingSetHook struct{}

func (failingSetHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (failingSetHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == "set" {
			return errors.New("READONLY You can't write against a read only replica")
		}
		return next(ctx, cmd)
	}
}

func (failingSetHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func newReadOnlyCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	client.AddHook(failingSetHook{})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

func TestCacheFetchTransactions(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	rng := DateRange{From: baseTime, To: baseTime.Add(time.Hour)}

	calls := 0
	loader := func(context.Context) ([]Transaction, error) {
		calls++
		return []Transaction{saleTxn("s1", "12.5", 0)}, nil
	}

	key, err := cache.TransactionsKey(ctx, "t1", "b1", rng)
	require.NoError(t, err)
	first, err := cache.FetchTransactions(ctx, key, loader)
	require.NoError(t, err)
	second, err := cache.FetchTransactions(ctx, key, loader)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	requireDecimal(t, "12.5", second[0].SalePrice)
}

func TestCacheBumpInvalidatesBuyer(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	rng := DateRange{From: baseTime, To: baseTime.Add(time.Hour)}

	before, err := cache.TransactionsKey(ctx, "", "b1", rng)
	require.NoError(t, err)
	other, err := cache.TransactionsKey(ctx, "", "b2", rng)
	require.NoError(t, err)

	require.NoError(t, cache.Bump(ctx, "", "b1"))

	after, err := cache.TransactionsKey(ctx, "", "b1", rng)
	require.NoError(t, err)
	otherAfter, err := cache.TransactionsKey(ctx, "", "b2", rng)
	require.NoError(t, err)

	assert.NotEqual(t, before, after)
	assert.Equal(t, other, otherAfter)
	assert.Contains(t, before, ":default:")
}

func TestCacheDoesNotStoreLoaderErrors(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := cache.FetchTransactions(ctx, "k", func(context.Context) ([]Transaction, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("k"))
}

func TestNilCacheCallsLoader(t *testing.T) {
	var cache *Cache
	txns, err := cache.FetchTransactions(context.Background(), "k", func(context.Context) ([]Transaction, error) {
		return []Transaction{saleTxn("s", "1", 0)}, nil
	})
	require.NoError(t, err)
	assert.Len(t, txns, 1)
	require.NoError(t, cache.Bump(context.Background(), "t", "b"))
}

func TestCacheFetchKeepsLoadedListWhenStoreFails(t *testing.T) {
	cache, mr := newReadOnlyCache(t)
	calls := 0
	txns, err := cache.FetchTransactions(context.Background(), "k", func(context.Context) ([]Transaction, error) {
		calls++
		return []Transaction{saleTxn("s1", "4", 0)}, nil
	})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, 1, calls)
	assert.False(t, mr.Exists("k"))
}

func TestCacheScope(t *testing.T) {
	assert.Equal(t, "t1", CacheScope("t1", "tok-a"))
	assert.Equal(t, "", CacheScope("", ""))

	a := CacheScope("", "opaque-a")
	b := CacheScope("", "opaque-b")
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, CacheScope("", "opaque-a"))
	assert.True(t, strings.HasPrefix(a, "tok-"))
	assert.NotContains(t, a, "opaque")

	cache, _ := newTestCache(t)
	ctx := context.Background()
	rng := DateRange{From: baseTime, To: baseTime.Add(time.Hour)}
	keyA, err := cache.TransactionsKey(ctx, a, "b1", rng)
	require.NoError(t, err)
	keyB, err := cache.TransactionsKey(ctx, b, "b1", rng)
	require.NoError(t, err)
	assert.NotEqual(t, keyA, keyB)
}

package lease

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis"
	"github.com/ethereum/go-ethereum/log"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) redis.UniversalClient {
	t.Helper()
	redisServer, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(redisServer.Close)

	client := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("127.0.0.1:%s", redisServer.Port()),
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisLease(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()
	require.NoError(t, CheckConnection(ctx, client))

	logger := log.NewLogger(log.DiscardHandler())
	first := NewRedisLease(client, "smoke", time.Minute, logger)
	second := NewRedisLease(client, "smoke", time.Minute, logger)
	other := NewRedisLease(client, "nightly", time.Minute, logger)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "lease is held by first")

	ok, err = other.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "leases are independent per name")

	require.NoError(t, first.Release(ctx))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Release(ctx))
	require.NoError(t, other.Release(ctx))
}

func TestRedisLease_ReleaseWithoutHolding(t *testing.T) {
	client := newClient(t)
	l := NewRedisLease(client, "smoke", time.Minute, log.NewLogger(log.DiscardHandler()))
	assert.Error(t, l.Release(context.Background()))
}

func TestNewRedisClient(t *testing.T) {
	_, err := NewRedisClient("not a url")
	assert.Error(t, err)

	client, err := NewRedisClient("redis://127.0.0.1:6379/0")
	require.NoError(t, err)
	assert.NotNil(t, client)
}

//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	endpoint, err := c.Endpoint(ctx, "")
	require.NoError(t, err)
	return endpoint
}

func TestTransactions(t *testing.T) {
	ctx := context.Background()
	rdb, err := Connect(ctx, startRedis(t), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	c := NewTransactions(rdb, "test", time.Minute)

	_, found, err := c.Lookup(ctx, "T1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Remember(ctx, "T1", "order-1"))
	require.NoError(t, c.Remember(ctx, "T1", "order-2"))

	orderID, found, err := c.Lookup(ctx, "T1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "order-1", orderID)

	ttl, err := rdb.TTL(ctx, "test:payment:txn:T1").Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)
}

//go:build integration

package replay

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestRedis_Claim(t *testing.T) {
	ctx := context.Background()

	ctr, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	uri, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)

	opt, err := redis.ParseURL(uri)
	require.NoError(t, err)
	client := redis.NewClient(opt)
	t.Cleanup(func() { _ = client.Close() })

	g := NewRedis(client, "idgate:test:")

	ok, err := g.Claim(ctx, "bob", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Claim(ctx, "bob", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ttl, err := client.PTTL(ctx, "idgate:test:totp:used:bob:1").Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)
}

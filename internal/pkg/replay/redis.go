package replay

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Guard shared by every instance behind the same Redis.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis returns a guard storing entries under prefix.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix + "totp:used:"}
}

// Claim implements Guard with SET NX PX.
func (r *Redis) Claim(ctx context.Context, key string, step uint64, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, r.prefix+entryKey(key, step), 1, ttl).Result()
}

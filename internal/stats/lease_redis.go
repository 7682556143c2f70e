package stats

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultLeaseKey = "catalog:stats:recompute"

// RedisLease is a SET NX lease on a single key.
type RedisLease struct {
	client *redis.Client
	key    string
	owner  string
}

func NewRedisLease(client *redis.Client, key string) *RedisLease {
	if key == "" {
		key = defaultLeaseKey
	}
	host, _ := os.Hostname()
	return &RedisLease{
		client: client,
		key:    key,
		owner:  fmt.Sprintf("%s:%d", host, os.Getpid()),
	}
}

func (l *RedisLease) Acquire(ctx context.Context, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.owner, ttl).Result()
}

func (l *RedisLease) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

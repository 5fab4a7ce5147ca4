package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease key only when the caller still holds it,
// so an expired lease taken over by another runner is never released by the
// previous holder.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis is a distributed lease backed by a single redis key with TTL, for
// deployments where several service instances run the pipeline schedule.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	token  string
}

// NewRedis creates a redis-backed lease. The TTL bounds how long a crashed
// holder can block other runners.
func NewRedis(client *redis.Client, key string, ttl time.Duration) *Redis {
	return &Redis{client: client, key: key, ttl: ttl}
}

// NewRedisFromURL connects a redis client and wraps it into a lease.
func NewRedisFromURL(ctx context.Context, url, key string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedis(client, key, ttl), nil
}

func (r *Redis) TryAcquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", r.key, err)
	}
	if ok {
		r.token = token
	}
	return ok, nil
}

func (r *Redis) Release(ctx context.Context) error {
	if r.token == "" {
		return nil
	}
	token := r.token
	r.token = ""
	if err := releaseScript.Run(ctx, r.client, []string{r.key}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release lease %s: %w", r.key, err)
	}
	return nil
}

// Close releases the underlying redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

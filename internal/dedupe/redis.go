package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures a shared dedupe store.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
	Timeout  time.Duration
}

// Redis keeps dedupe keys in Redis with a per-key expiry, so several bot
// processes can share one retention window. Capacity is bounded by the TTL
// alone.
type Redis struct {
	rdb    redis.Cmdable
	closer func() error
	prefix string
	ttl    time.Duration
}

// NewRedis connects a Redis guard.
func NewRedis(o RedisOptions) *Redis {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         o.Addr,
		Password:     o.Password,
		DB:           o.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})
	r := NewRedisWithClient(rdb, o.Prefix, o.TTL)
	r.closer = rdb.Close
	return r
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(rdb redis.Cmdable, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = "linebot:dedupe"
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Redis{rdb: rdb, prefix: prefix, ttl: ttl}
}

var _ Guard = (*Redis)(nil)

func (r *Redis) key(k string) string {
	return r.prefix + ":" + k
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (r *Redis) Contains(ctx context.Context, key string) (bool, error) {
	n, err := r.rdb.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

func (r *Redis) Add(ctx context.Context, key string) error {
	if err := r.rdb.Set(ctx, r.key(key), time.Now().Unix(), r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close releases the connection pool when the guard owns it.
func (r *Redis) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}

package dedupe

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newMiniRedis(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *Redis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, NewRedisWithClient(rdb, "bot", ttl)
}

func TestRedisKeyPrefix(t *testing.T) {
	r := NewRedisWithClient(nil, "", 0)
	if got := r.key("msg:1"); got != "linebot:dedupe:msg:1" {
		t.Errorf("unexpected key %q", got)
	}
	if r.ttl != 5*time.Minute {
		t.Errorf("expected default ttl, got %v", r.ttl)
	}
}

func TestRedisContainsAdd(t *testing.T) {
	mr, r := newMiniRedis(t, time.Minute)
	ctx := context.Background()

	ok, err := r.Contains(ctx, "msg:1")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected fresh key to be absent")
	}
	if err := r.Add(ctx, "msg:1"); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists("bot:msg:1") {
		t.Fatalf("expected prefixed key, have %v", mr.Keys())
	}
	if got := mr.TTL("bot:msg:1"); got != time.Minute {
		t.Errorf("expected 1m expiry, got %v", got)
	}
	if ok, err := r.Contains(ctx, "msg:1"); err != nil || !ok {
		t.Errorf("expected key present after add, got %v, %v", ok, err)
	}
	if ok, _ := r.Contains(ctx, "msg:2"); ok {
		t.Error("expected other keys to stay absent")
	}
}

func TestRedisExpiry(t *testing.T) {
	mr, r := newMiniRedis(t, 30*time.Second)
	ctx := context.Background()

	if err := r.Add(ctx, "rtok:abc"); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(31 * time.Second)
	if ok, err := r.Contains(ctx, "rtok:abc"); err != nil || ok {
		t.Errorf("expected key expired, got %v, %v", ok, err)
	}
}

func TestRedisErrors(t *testing.T) {
	mr, r := newMiniRedis(t, time.Minute)
	mr.Close()

	ctx := context.Background()
	if _, err := r.Contains(ctx, "msg:1"); err == nil {
		t.Error("expected Contains error with the server down")
	}
	if err := r.Add(ctx, "msg:1"); err == nil {
		t.Error("expected Add error with the server down")
	}
}

// TestRedisRoundTrip runs against a live server when LINEBOT_TEST_REDIS_ADDR is set.
func TestRedisRoundTrip(t *testing.T) {
	addr := os.Getenv("LINEBOT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("LINEBOT_TEST_REDIS_ADDR not set")
	}
	r := NewRedis(RedisOptions{Addr: addr, Prefix: "linebot-test", TTL: time.Minute})
	defer r.Close()

	ctx := context.Background()
	if err := r.Ping(ctx); err != nil {
		t.Fatal(err)
	}

	key := "msg:" + uuid.NewString()
	ok, err := r.Contains(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected fresh key to be absent")
	}
	if err := r.Add(ctx, key); err != nil {
		t.Fatal(err)
	}
	ok, err = r.Contains(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected key to be present after add")
	}
}

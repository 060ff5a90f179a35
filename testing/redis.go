package testing

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	gotesting "testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisURLEnv names the variable that enables tests against a real redis server
const RedisURLEnv = "TEST_REDIS_URL"

// TestRedis is a redis client plus a key prefix private to one test
type TestRedis struct {
	Client *redis.Client
	Prefix string
}

// Key returns name under the test's private prefix
func (tr *TestRedis) Key(name string) string {
	return tr.Prefix + name
}

// NewTestRedis connects to TEST_REDIS_URL and skips the test when it is unset.
// Keys under the returned prefix are deleted when the test ends.
func NewTestRedis(tb gotesting.TB) *TestRedis {
	tb.Helper()
	url := os.Getenv(RedisURLEnv)
	if url == "" {
		tb.Skipf("%s not set", RedisURLEnv)
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		tb.Fatalf("invalid %s: %v", RedisURLEnv, err)
	}
	rc := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		tb.Fatalf("failed to connect to test redis: %v", err)
	}

	tr := &TestRedis{
		Client: rc,
		Prefix: fmt.Sprintf("term_insurance_test:%d_%d:", time.Now().UnixNano(), rand.Intn(10000)),
	}
	tb.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		iter := rc.Scan(ctx, 0, tr.Prefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			rc.Del(ctx, iter.Val())
		}
		if err := iter.Err(); err != nil {
			tb.Logf("failed to clean test redis keys: %v", err)
		}
		_ = rc.Close()
	})
	return tr
}

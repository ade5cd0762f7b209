package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

// slidingWindowScript trims entries older than the window, then admits the
// call only when the remaining count is under the quota. Check and insert
// run atomically inside Redis.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
if redis.call('ZCARD', key) >= limit then
  return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return 1
`)

type SlidingWindow struct {
	client redis.Scripter
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewSlidingWindow(client redis.Scripter, limit int, window time.Duration) *SlidingWindow {
	if window <= 0 {
		window = time.Hour
	}
	return &SlidingWindow{
		client: client,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// NewClient opens a Redis client from a redis:// URL and verifies it answers.
func NewClient(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Allow counts one call against key. Store failures are returned to the
// caller, which treats them as a denial. A quota of zero or less disables
// the window.
func (l *SlidingWindow) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	now := l.now()
	member := fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString())

	result, err := slidingWindowScript.Run(ctx, l.client,
		[]string{keyPrefix + key},
		now.UnixMilli(), l.window.Milliseconds(), l.limit, member,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("sliding window %s: %w", key, err)
	}
	return result == 1, nil
}

// Unlimited admits every call. Used when no Redis endpoint is configured.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) (bool, error) {
	return true, nil
}

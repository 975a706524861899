package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

// slidingWindow 在一次往返内完成清理、计数与登记
// KEYS[1] 限流键；ARGV: now_ms, window_ms, limit, member
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
  return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return 1
`)

// RateLimiter 基于有序集合的滑动窗口限流
type RateLimiter struct {
	client *Client
}

func NewRateLimiter(client *Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow 窗口内请求数未达 limit 时登记本次请求并放行
func (l *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	ctx, span := tracer.Start(ctx, "ratelimit.Allow")
	defer span.End()
	span.SetAttributes(
		attribute.String("ratelimit.key", key),
		attribute.Int("ratelimit.limit", limit),
	)

	now := time.Now().UnixMilli()
	member := fmt.Sprintf("%d-%s", now, uuid.NewString()[:8])
	res, err := slidingWindow.Run(ctx, l.client.rdb, []string{key},
		now, window.Milliseconds(), limit, member).Int()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("rate limit script: %w", err)
	}

	allowed := res == 1
	span.SetAttributes(attribute.Bool("ratelimit.allowed", allowed))
	return allowed, nil
}

// BuildUserRateLimitKey 用户加路由的限流键，路由中的空格与斜杠统一替换
func BuildUserRateLimitKey(userID, endpoint string) string {
	route := strings.NewReplacer(" ", ":", "/", "_").Replace(endpoint)
	return "scriptgen:ratelimit:" + userID + ":" + route
}

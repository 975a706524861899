package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"scriptgen-api/internal/domain/entity"
	"scriptgen-api/pkg/logger"
)

var cacheTracer = otel.Tracer("redis.cache")

// DefaultBalanceTTL 余额缓存默认有效期
const DefaultBalanceTTL = 30 * time.Second

// BalanceCache 余额读穿缓存，写操作后由账本主动失效
type BalanceCache struct {
	client *Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewBalanceCache 创建余额缓存
func NewBalanceCache(client *Client, ttl time.Duration) *BalanceCache {
	if ttl <= 0 {
		ttl = DefaultBalanceTTL
	}
	return &BalanceCache{client: client, ttl: ttl}
}

// BalanceKey 余额缓存键
func BalanceKey(userID string) string {
	return "credits:balance:" + userID
}

// GetOrLoad 命中直接返回；未命中时用 singleflight 合并并发加载
func (c *BalanceCache) GetOrLoad(ctx context.Context, userID string, loader func(ctx context.Context) (*entity.CreditBalance, error)) (*entity.CreditBalance, error) {
	key := BalanceKey(userID)
	ctx, span := cacheTracer.Start(ctx, "cache.GetOrLoad",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	if b, ok := c.get(ctx, key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return b, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	result, err, shared := c.group.Do(key, func() (any, error) {
		if b, ok := c.get(ctx, key); ok {
			return b, nil
		}
		b, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal balance: %w", err)
		}
		if err := c.client.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			// 写缓存失败只影响下一次命中
			logger.Warn(ctx, "failed to cache balance", "user_id", userID, "error", err.Error())
		}
		return b, nil
	})
	span.SetAttributes(attribute.Bool("cache.shared", shared))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	b := *result.(*entity.CreditBalance)
	return &b, nil
}

// Invalidate 删除用户的余额缓存
func (c *BalanceCache) Invalidate(ctx context.Context, userID string) error {
	ctx, span := cacheTracer.Start(ctx, "cache.Invalidate")
	defer span.End()

	if err := c.client.rdb.Del(ctx, BalanceKey(userID)).Err(); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (c *BalanceCache) get(ctx context.Context, key string) (*entity.CreditBalance, bool) {
	data, err := c.client.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !IsNil(err) {
			logger.Warn(ctx, "balance cache read failed", "key", key, "error", err.Error())
		}
		return nil, false
	}
	var b entity.CreditBalance
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, false
	}
	return &b, true
}

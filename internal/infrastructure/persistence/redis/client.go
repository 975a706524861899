// Package redis 余额缓存、限流以及消息流共用的 Redis 连接
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"scriptgen-api/internal/config"
	"scriptgen-api/pkg/logger"
)

var tracer = otel.Tracer("redis")

const (
	pingAttempts = 3
	pingTimeout  = 2 * time.Second
)

// Client 持有 go-redis 连接
type Client struct {
	rdb  *redis.Client
	addr string
}

// NewClient 建立连接，启动阶段重试 ping
func NewClient(cfg *config.RedisConfig) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	var err error
	for attempt := 1; attempt <= pingAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		err = rdb.Ping(ctx).Err()
		cancel()
		if err == nil {
			return &Client{rdb: rdb, addr: addr}, nil
		}
		logger.Warn(context.Background(), "redis ping failed",
			"addr", addr,
			"attempt", attempt,
			"error", err.Error(),
		)
		time.Sleep(time.Duration(attempt) * 200 * time.Millisecond)
	}
	_ = rdb.Close()
	return nil, fmt.Errorf("ping redis %s: %w", addr, err)
}

// Redis 底层客户端，消息流生产者与消费者直接使用
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// HealthCheck 供 /ready 探测，附带连接池状态
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "redis.HealthCheck")
	defer span.End()

	stats := c.rdb.PoolStats()
	span.SetAttributes(
		attribute.String("redis.addr", c.addr),
		attribute.Int64("redis.pool.total", int64(stats.TotalConns)),
		attribute.Int64("redis.pool.idle", int64(stats.IdleConns)),
	)

	if err := c.rdb.Ping(ctx).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis %s unreachable: %w", c.addr, err)
	}
	return nil
}

// IsNil 键不存在
func IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

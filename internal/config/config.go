// Package config 提供配置加载和管理功能
package config

import (
	"fmt"
	"time"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Database      DatabaseConfig      `yaml:"database" mapstructure:"database"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Generation    GenerationConfig    `yaml:"generation" mapstructure:"generation"`
	Ledger        LedgerConfig        `yaml:"ledger" mapstructure:"ledger"`
	Messaging     MessagingConfig     `yaml:"messaging" mapstructure:"messaging"`
	Archive       ArchiveConfig       `yaml:"archive" mapstructure:"archive"`
	Jobs          JobsConfig          `yaml:"jobs" mapstructure:"jobs"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	Env     string `yaml:"env" mapstructure:"env"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

// HTTPServerConfig HTTP 服务器配置
type HTTPServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`

	// ShutdownTimeout 优雅关闭等待进行中的生成流结束
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// Addr 返回监听地址
func (c HTTPServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	User            string        `yaml:"user" mapstructure:"user"`
	Password        string        `yaml:"password" mapstructure:"password"`
	Database        string        `yaml:"database" mapstructure:"database"`
	SSLMode         string        `yaml:"ssl_mode" mapstructure:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// DSN 返回 PostgreSQL 连接串
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// LLMConfig 文本生成服务配置
type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider" mapstructure:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
	// Models 按阶段档位选择模型，primary 用于脚本正文与翻译，fast 用于衍生物料
	Models ModelTierConfig `yaml:"models" mapstructure:"models"`
}

// ProviderConfig LLM 提供商配置
type ProviderConfig struct {
	// Type 提供商协议：openai（默认，兼容 OpenAI 接口的服务均可）或 cohere
	Type        string        `yaml:"type" mapstructure:"type"`
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Model       string        `yaml:"model" mapstructure:"model"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ModelTierConfig 模型档位
type ModelTierConfig struct {
	Primary string `yaml:"primary" mapstructure:"primary"`
	Fast    string `yaml:"fast" mapstructure:"fast"`
}

// GenerationConfig 生成流水线配置
type GenerationConfig struct {
	MaxParallelArtifacts int           `yaml:"max_parallel_artifacts" mapstructure:"max_parallel_artifacts"`
	PriorTextRunes       int           `yaml:"prior_text_runes" mapstructure:"prior_text_runes"`
	TranslationChunkSize int           `yaml:"translation_chunk_size" mapstructure:"translation_chunk_size"`
	StageTimeout         time.Duration `yaml:"stage_timeout" mapstructure:"stage_timeout"`
	EventBuffer          int           `yaml:"event_buffer" mapstructure:"event_buffer"`
}

// LedgerConfig 额度账本配置
type LedgerConfig struct {
	FreeCap         int64            `yaml:"free_cap" mapstructure:"free_cap"`
	ReferralBonus   int64            `yaml:"referral_bonus" mapstructure:"referral_bonus"`
	PromoCodes      map[string]int64 `yaml:"promo_codes" mapstructure:"promo_codes"`
	BalanceCacheTTL time.Duration    `yaml:"balance_cache_ttl" mapstructure:"balance_cache_ttl"`
}

// MessagingConfig 消息队列配置
type MessagingConfig struct {
	RedisStream RedisStreamConfig `yaml:"redis_stream" mapstructure:"redis_stream"`
	Kafka       KafkaConfig       `yaml:"kafka" mapstructure:"kafka"`
}

// KafkaConfig 领域事件投递配置
type KafkaConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Brokers  []string      `yaml:"brokers" mapstructure:"brokers"`
	Topic    string        `yaml:"topic" mapstructure:"topic"`
	ClientID string        `yaml:"client_id" mapstructure:"client_id"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ArchiveConfig 生成结果归档配置
type ArchiveConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Bucket   string `yaml:"bucket" mapstructure:"bucket"`
	Prefix   string `yaml:"prefix" mapstructure:"prefix"`
	Region   string `yaml:"region" mapstructure:"region"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	// PathStyle 兼容 MinIO 等自建对象存储
	PathStyle bool `yaml:"path_style" mapstructure:"path_style"`
}

// JobsConfig 后台任务调度
type JobsConfig struct {
	ReconcileSchedule string `yaml:"reconcile_schedule" mapstructure:"reconcile_schedule"`
	ReconcileBatch    int    `yaml:"reconcile_batch" mapstructure:"reconcile_batch"`
	ReclaimSchedule   string `yaml:"reclaim_schedule" mapstructure:"reclaim_schedule"`
}

// RedisStreamConfig Redis Stream 配置
type RedisStreamConfig struct {
	MaxLen              int           `yaml:"max_len" mapstructure:"max_len"`
	ConsumerGroupPrefix string        `yaml:"consumer_group_prefix" mapstructure:"consumer_group_prefix"`
	BlockTimeout        time.Duration `yaml:"block_timeout" mapstructure:"block_timeout"`
	ClaimInterval       time.Duration `yaml:"claim_interval" mapstructure:"claim_interval"`
	RetryLimit          int           `yaml:"retry_limit" mapstructure:"retry_limit"`
	RetryBackoff        BackoffConfig `yaml:"retry_backoff" mapstructure:"retry_backoff"`
}

// BackoffConfig 退避配置
type BackoffConfig struct {
	Initial    time.Duration `yaml:"initial" mapstructure:"initial"`
	Max        time.Duration `yaml:"max" mapstructure:"max"`
	Multiplier float64       `yaml:"multiplier" mapstructure:"multiplier"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt" mapstructure:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors" mapstructure:"cors"`
	Webhook   WebhookConfig   `yaml:"webhook" mapstructure:"webhook"`
}

// JWTConfig JWT 配置
type JWTConfig struct {
	Secret     string        `yaml:"secret" mapstructure:"secret"`
	Issuer     string        `yaml:"issuer" mapstructure:"issuer"`
	Expiration time.Duration `yaml:"expiration" mapstructure:"expiration"`
}

// RateLimitConfig 限流配置，按用户滑动窗口计数
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Requests int           `yaml:"requests" mapstructure:"requests"`
	Window   time.Duration `yaml:"window" mapstructure:"window"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}

// WebhookConfig 支付回调配置
type WebhookConfig struct {
	// Secret 与支付网关约定的共享密钥，签名校验由网关侧完成
	Secret string `yaml:"secret" mapstructure:"secret"`
}

// Validate 校验启动所需的关键配置
func (c *Config) Validate() error {
	if c.Ledger.FreeCap < 0 {
		return fmt.Errorf("ledger.free_cap must not be negative")
	}
	if c.Generation.MaxParallelArtifacts <= 0 {
		return fmt.Errorf("generation.max_parallel_artifacts must be positive")
	}
	if c.Generation.TranslationChunkSize <= 0 {
		return fmt.Errorf("generation.translation_chunk_size must be positive")
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return fmt.Errorf("archive.bucket is required when archive is enabled")
	}
	if c.Messaging.Kafka.Enabled && len(c.Messaging.Kafka.Brokers) == 0 {
		return fmt.Errorf("messaging.kafka.brokers is required when kafka is enabled")
	}
	for name, p := range c.LLM.Providers {
		switch p.Type {
		case "", "openai", "cohere":
		default:
			return fmt.Errorf("llm.providers.%s.type %q is not supported", name, p.Type)
		}
	}
	for code, amount := range c.Ledger.PromoCodes {
		if amount <= 0 {
			return fmt.Errorf("ledger.promo_codes.%s must be positive", code)
		}
	}
	return nil
}

package wire

import (
	"context"

	"scriptgen-api/internal/application/generation"
	"scriptgen-api/internal/application/quota"
	"scriptgen-api/internal/config"
	"scriptgen-api/internal/domain/repository"
	"scriptgen-api/internal/infrastructure/archive"
	"scriptgen-api/internal/infrastructure/events"
	"scriptgen-api/internal/infrastructure/messaging"
	"scriptgen-api/internal/infrastructure/persistence/postgres"
	"scriptgen-api/internal/infrastructure/persistence/redis"
	"scriptgen-api/internal/interfaces/http/handler"
	"scriptgen-api/internal/workflow/port"
	"scriptgen-api/internal/workflow/prompt"
	"scriptgen-api/internal/workflow/translate"
	"scriptgen-api/pkg/logger"
)

// Worker 后台任务依赖容器
type Worker struct {
	RedisClient *redis.Client
	Payments    *quota.Payments
	Reconciler  *quota.Reconciler
}

// PostgresOnlyDataLayer 仅包含 PostgreSQL 的数据层（用于 bootstrap）
type PostgresOnlyDataLayer struct {
	PgClient *postgres.Client
	UserRepo *postgres.UserRepository
	Payments *quota.Payments
}

// ProvidePostgresClient 提供 PostgreSQL 客户端
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		client.Close()
	}
	return client, cleanup, nil
}

// ProvideBalanceCache 提供余额缓存
func ProvideBalanceCache(client *redis.Client, cfg *config.Config) *redis.BalanceCache {
	return redis.NewBalanceCache(client, cfg.Ledger.BalanceCacheTTL)
}

// ProvideNoCache bootstrap 不使用余额缓存
func ProvideNoCache() quota.BalanceCache {
	return nil
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(redisClient *redis.Client, cfg *config.Config) *messaging.Producer {
	maxLen := cfg.Messaging.RedisStream.MaxLen
	if maxLen <= 0 {
		maxLen = 100000
	}
	return messaging.NewProducer(redisClient.Redis(), int64(maxLen))
}

// ProvideEventPublisher 提供领域事件发布器，未启用 Kafka 时为空实现
func ProvideEventPublisher(cfg *config.Config) (events.Publisher, func(), error) {
	pub, err := events.NewPublisher(&cfg.Messaging.Kafka)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = pub.Close()
	}
	return pub, cleanup, nil
}

// ProvideLedger 提供额度账本并注册入账事件通知
func ProvideLedger(
	repo repository.CreditRepository,
	tx repository.Transactor,
	cache quota.BalanceCache,
	creditEvents *events.CreditEvents,
	cfg *config.Config,
) *quota.Ledger {
	ledger := quota.NewLedger(repo, tx, cache, cfg.Ledger.FreeCap)
	ledger.AddCreditListener(creditEvents)
	return ledger
}

// ProvideRewards 提供促销码与推荐奖励服务
func ProvideRewards(ledger *quota.Ledger, users repository.UserRepository, tx repository.Transactor, cfg *config.Config) *quota.Rewards {
	return quota.NewRewards(ledger, users, tx, cfg.Ledger.PromoCodes, cfg.Ledger.ReferralBonus)
}

// ProvidePayments 提供支付入账服务
func ProvidePayments(ledger *quota.Ledger) *quota.Payments {
	return quota.NewPayments(ledger)
}

// ProvideReconciler 提供账本对账器
func ProvideReconciler(repo repository.LedgerAuditRepository, cfg *config.Config) *quota.Reconciler {
	return quota.NewReconciler(repo, cfg.Jobs.ReconcileBatch)
}

// ProvidePromptBuilder 提供提示词构造器
func ProvidePromptBuilder(cfg *config.Config) *prompt.Builder {
	return prompt.NewBuilder(prompt.ModelSet{
		Primary: cfg.LLM.Models.Primary,
		Fast:    cfg.LLM.Models.Fast,
	}, cfg.Generation.PriorTextRunes)
}

// ProvideTranslator 提供分块翻译器
func ProvideTranslator(gen port.Generator, builder *prompt.Builder, cfg *config.Config) generation.Translator {
	return translate.NewTranslator(gen, builder, cfg.Generation.TranslationChunkSize)
}

// ProvideArchiveStore 提供对象存储归档，未启用时返回 nil
func ProvideArchiveStore(ctx context.Context, cfg *config.Config) (*archive.Store, error) {
	if !cfg.Archive.Enabled {
		return nil, nil
	}
	return archive.NewStore(ctx, &cfg.Archive)
}

// ProvideSinks 组装生成结果的下游投递
func ProvideSinks(ctx context.Context, store *archive.Store, genEvents *events.GenerationEvents) []generation.GenerationSink {
	sinks := []generation.GenerationSink{genEvents}
	if store != nil {
		sinks = append(sinks, store)
	} else {
		logger.Info(ctx, "generation archive disabled")
	}
	return sinks
}

// ProvideOrchestrator 提供生成编排器
func ProvideOrchestrator(
	builder *prompt.Builder,
	gen port.Generator,
	ledger *quota.Ledger,
	repo repository.GenerationRepository,
	tx repository.Transactor,
	registry *generation.RunRegistry,
	sinks []generation.GenerationSink,
	cfg *config.Config,
) *generation.Orchestrator {
	return generation.NewOrchestrator(builder, gen, ledger, repo, tx, registry, generation.Options{
		MaxParallelArtifacts: cfg.Generation.MaxParallelArtifacts,
		StageTimeout:         cfg.Generation.StageTimeout,
		EventBuffer:          cfg.Generation.EventBuffer,
	}, sinks...)
}

// ProvideHealthHandler 提供健康检查处理器
func ProvideHealthHandler(pg *postgres.Client, rc *redis.Client) *handler.HealthHandler {
	return handler.NewHealthHandler(pg, rc)
}

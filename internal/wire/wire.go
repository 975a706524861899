//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"scriptgen-api/internal/application/generation"
	"scriptgen-api/internal/application/quota"
	"scriptgen-api/internal/config"
	"scriptgen-api/internal/domain/repository"
	"scriptgen-api/internal/infrastructure/events"
	"scriptgen-api/internal/infrastructure/llm"
	"scriptgen-api/internal/infrastructure/messaging"
	"scriptgen-api/internal/infrastructure/persistence/postgres"
	"scriptgen-api/internal/infrastructure/persistence/redis"
	"scriptgen-api/internal/interfaces/http/handler"
	"scriptgen-api/internal/interfaces/http/middleware"
	"scriptgen-api/internal/interfaces/http/router"
)

// InitializeApp 初始化整个应用（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		RepoSet,
		RedisSet,
		MessagingSet,
		EventSet,
		LedgerSet,
		GenerationSet,
		RouterSet,
	)
	return nil, nil, nil
}

// InitializeWorker 初始化后台任务依赖
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	wire.Build(
		RepoSet,
		RedisSet,
		EventSet,
		LedgerSet,
		wire.Struct(new(Worker), "*"),
	)
	return nil, nil, nil
}

// InitializePostgresOnly 仅初始化 PostgreSQL 数据层（用于 bootstrap）
func InitializePostgresOnly(ctx context.Context, cfg *config.Config) (*PostgresOnlyDataLayer, func(), error) {
	wire.Build(
		PostgresSet,
		EventSet,
		wire.Bind(new(repository.Transactor), new(*postgres.TxManager)),
		wire.Bind(new(repository.CreditRepository), new(*postgres.CreditRepository)),
		wire.Bind(new(repository.UserRepository), new(*postgres.UserRepository)),
		ProvideNoCache,
		ProvideLedger,
		ProvidePayments,
		wire.Struct(new(PostgresOnlyDataLayer), "*"),
	)
	return nil, nil, nil
}

// PostgresSet PostgreSQL 提供者集合
var PostgresSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewTxManager,
	postgres.NewUserRepository,
	postgres.NewCreditRepository,
	postgres.NewGenerationRepository,
)

// RepoSet 整合了具体实现与接口绑定的集合
var RepoSet = wire.NewSet(
	PostgresSet,
	wire.Bind(new(repository.Transactor), new(*postgres.TxManager)),
	wire.Bind(new(repository.UserRepository), new(*postgres.UserRepository)),
	wire.Bind(new(repository.CreditRepository), new(*postgres.CreditRepository)),
	wire.Bind(new(repository.LedgerAuditRepository), new(*postgres.CreditRepository)),
	wire.Bind(new(repository.GenerationRepository), new(*postgres.GenerationRepository)),
)

// RedisSet Redis 提供者集合
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	ProvideBalanceCache,
	redis.NewRateLimiter,
	wire.Bind(new(quota.BalanceCache), new(*redis.BalanceCache)),
	wire.Bind(new(middleware.RateLimiter), new(*redis.RateLimiter)),
)

// MessagingSet 消息队列提供者集合
var MessagingSet = wire.NewSet(
	ProvideMessagingProducer,
)

// EventSet 领域事件提供者集合
var EventSet = wire.NewSet(
	ProvideEventPublisher,
	events.NewGenerationEvents,
	events.NewCreditEvents,
)

// LedgerSet 额度账本提供者集合
var LedgerSet = wire.NewSet(
	ProvideLedger,
	ProvideRewards,
	ProvidePayments,
	ProvideReconciler,
)

// GenerationSet 生成流水线提供者集合
var GenerationSet = wire.NewSet(
	llm.NewEinoFactory,
	llm.NewGenerator,
	ProvidePromptBuilder,
	ProvideTranslator,
	generation.NewRunRegistry,
	generation.NewTranslationService,
	ProvideArchiveStore,
	ProvideSinks,
	ProvideOrchestrator,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideHealthHandler,
	handler.NewGenerationHandler,
	handler.NewCreditHandler,
	handler.NewWebhookHandler,
	handler.NewUserHandler,
	wire.Bind(new(handler.GenerationService), new(*generation.Orchestrator)),
	wire.Bind(new(handler.TranslationService), new(*generation.TranslationService)),
	wire.Bind(new(handler.CreditLedger), new(*quota.Ledger)),
	wire.Bind(new(handler.RewardService), new(*quota.Rewards)),
	wire.Bind(new(handler.PaymentPublisher), new(*messaging.Producer)),
	wire.Bind(new(handler.UserReader), new(*postgres.UserRepository)),
	wire.Struct(new(router.Handlers), "*"),
	router.NewWithDeps,
)

// Package main 后台任务入口（job-worker）：支付入账消费、账本对账与挂起消息回收
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"scriptgen-api/internal/application/quota"
	"scriptgen-api/internal/config"
	"scriptgen-api/internal/infrastructure/messaging"
	"scriptgen-api/internal/wire"
	"scriptgen-api/pkg/logger"
	"scriptgen-api/pkg/tracer"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "job-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	worker, cleanup, err := wire.InitializeWorker(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize worker", err)
	}
	defer cleanup()

	consumer := messaging.NewConsumer(worker.RedisClient.Redis(), messaging.ConsumerConfig{
		Stream:       messaging.StreamCreditPurchase,
		Group:        messaging.ConsumerGroupLedgerWriter,
		ConsumerName: hostnameConsumerName(),
		BlockTimeout: cfg.Messaging.RedisStream.BlockTimeout,
		RetryLimit:   cfg.Messaging.RedisStream.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    cfg.Messaging.RedisStream.RetryBackoff.Initial,
			Max:        cfg.Messaging.RedisStream.RetryBackoff.Max,
			Multiplier: cfg.Messaging.RedisStream.RetryBackoff.Multiplier,
		},
	})
	consumer.RegisterHandler(messaging.TypeCreditPurchase, purchaseHandler(worker.Payments))

	if err := consumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Jobs.ReconcileSchedule, func() {
		reconcile(ctx, worker.Reconciler)
	}); err != nil {
		logger.Fatal(ctx, "invalid reconcile schedule", err, "schedule", cfg.Jobs.ReconcileSchedule)
	}
	if _, err := scheduler.AddFunc(cfg.Jobs.ReclaimSchedule, func() {
		if n := consumer.ReclaimStale(ctx); n > 0 {
			logger.Info(ctx, "stale payment messages reclaimed", "count", n)
		}
	}); err != nil {
		logger.Fatal(ctx, "invalid reclaim schedule", err, "schedule", cfg.Jobs.ReclaimSchedule)
	}
	scheduler.Start()

	log := logger.FromContext(ctx)
	log.Info("job-worker started",
		"stream", string(messaging.StreamCreditPurchase),
		"reconcile_schedule", cfg.Jobs.ReconcileSchedule,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("job-worker shutting down")
	<-scheduler.Stop().Done()
	consumer.Stop()
	cancel()
}

// purchaseHandler 将支付事件记入账本，重复投递由事件 ID 去重
func purchaseHandler(payments *quota.Payments) messaging.MessageHandler {
	return func(ctx context.Context, msg *messaging.Message) error {
		var payload messaging.PaymentEventMessage
		if err := msg.UnmarshalPayload(&payload); err != nil {
			return err
		}
		res, err := payments.Apply(ctx, quota.PaymentEvent{
			EventID:  payload.EventID,
			UserID:   payload.UserID,
			Credits:  payload.Credits,
			Provider: payload.Provider,
		})
		if err != nil {
			return err
		}
		logger.Info(ctx, "payment applied",
			"event_id", payload.EventID,
			"user_id", payload.UserID,
			"credits", payload.Credits,
			"applied", res.Applied,
		)
		return nil
	}
}

func reconcile(ctx context.Context, r *quota.Reconciler) {
	report, err := r.Reconcile(ctx)
	if err != nil {
		logger.Error(ctx, "ledger reconciliation failed", err)
		return
	}
	if len(report.Mismatches) > 0 {
		logger.Warn(ctx, "ledger mismatches found", "checked", report.Checked, "mismatches", len(report.Mismatches))
		return
	}
	logger.Info(ctx, "ledger reconciled", "checked", report.Checked)
}

func hostnameConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

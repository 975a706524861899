package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"scriptgen-api/internal/config"
	"scriptgen-api/internal/domain/entity"
	"scriptgen-api/pkg/logger"
	"scriptgen-api/pkg/metrics"
	"scriptgen-api/pkg/tracer"
)

// messageSender sarama.SyncProducer 的最小子集
type messageSender interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
	Close() error
}

// KafkaPublisher 同步投递到单一 topic
type KafkaPublisher struct {
	producer messageSender
	topic    string
}

// NewKafkaPublisher 创建 Kafka 发布者
func NewKafkaPublisher(cfg *config.KafkaConfig) (*KafkaPublisher, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_6_0_0
	saramaConfig.ClientID = cfg.ClientID
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Retry.Max = 3
	if cfg.Timeout > 0 {
		saramaConfig.Producer.Timeout = cfg.Timeout
		saramaConfig.Net.DialTimeout = cfg.Timeout
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return newKafkaPublisher(producer, cfg.Topic), nil
}

func newKafkaPublisher(producer messageSender, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// Publish 序列化并发送事件
func (p *KafkaPublisher) Publish(ctx context.Context, evt *Event) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", evt.Type, err)
	}

	headers := []sarama.RecordHeader{{Key: []byte("type"), Value: []byte(evt.Type)}}
	if traceID := tracer.TraceID(ctx); traceID != "" {
		headers = append(headers, sarama.RecordHeader{Key: []byte("trace_id"), Value: []byte(traceID)})
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(evt.UserID),
		Value:     sarama.ByteEncoder(value),
		Headers:   headers,
		Timestamp: evt.OccurredAt,
	})
	if err != nil {
		metrics.EventsPublished.WithLabelValues(evt.Type, "error").Inc()
		return fmt.Errorf("send event %s: %w", evt.Type, err)
	}

	metrics.EventsPublished.WithLabelValues(evt.Type, "success").Inc()
	logger.Debug(ctx, "event published",
		"type", evt.Type,
		"event_id", evt.ID,
		"partition", partition,
		"offset", offset,
	)
	return nil
}

// Close 关闭生产者
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// NopPublisher Kafka 未启用时使用
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *Event) error { return nil }

func (NopPublisher) Close() error { return nil }

// NewPublisher 按配置选择发布者
func NewPublisher(cfg *config.KafkaConfig) (Publisher, error) {
	if cfg == nil || !cfg.Enabled {
		return NopPublisher{}, nil
	}
	return NewKafkaPublisher(cfg)
}

// GenerationEvents 生成结果保存后发布 generation.completed
type GenerationEvents struct {
	pub Publisher
	now func() time.Time
}

// NewGenerationEvents 创建生成事件投递
func NewGenerationEvents(pub Publisher) *GenerationEvents {
	return &GenerationEvents{pub: pub, now: time.Now}
}

func (s *GenerationEvents) Name() string { return "events" }

func (s *GenerationEvents) Store(ctx context.Context, gen *entity.Generation) error {
	return s.pub.Publish(ctx, NewGenerationCompleted(gen, s.now()))
}

// CreditEvents 入账生效后发布 credits.credited
type CreditEvents struct {
	pub Publisher
	now func() time.Time
}

// NewCreditEvents 创建入账事件投递
func NewCreditEvents(pub Publisher) *CreditEvents {
	return &CreditEvents{pub: pub, now: time.Now}
}

func (s *CreditEvents) Credited(ctx context.Context, userID string, txn *entity.CreditTransaction) error {
	return s.pub.Publish(ctx, NewCreditsCredited(userID, txn, s.now()))
}

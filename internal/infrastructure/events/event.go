// Package events 将生成与入账的领域事件投递到 Kafka
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"scriptgen-api/internal/domain/entity"
)

// 事件类型
const (
	TypeGenerationCompleted = "generation.completed"
	TypeCreditsCredited     = "credits.credited"
)

// Event 事件信封，以 UserID 作为分区键保证同一用户有序
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// Publisher 事件发布者
type Publisher interface {
	Publish(ctx context.Context, evt *Event) error
	Close() error
}

// GenerationCompleted generation.completed 载荷，不含脚本正文
type GenerationCompleted struct {
	GenerationID    string                                 `json:"generation_id"`
	Topic           string                                 `json:"topic"`
	Language        entity.LanguageStyle                   `json:"language"`
	DurationMinutes float64                                `json:"duration_minutes"`
	Cost            int64                                  `json:"cost"`
	ArtifactStatus  map[entity.Stage]entity.ArtifactStatus `json:"artifact_status"`
	Tags            []string                               `json:"tags,omitempty"`
	CreatedAt       time.Time                              `json:"created_at"`
}

// CreditsCredited credits.credited 载荷
type CreditsCredited struct {
	TransactionID    string                 `json:"transaction_id"`
	Type             entity.TransactionType `json:"type"`
	Amount           int64                  `json:"amount"`
	PaidBalanceAfter int64                  `json:"paid_balance_after"`
	EventID          string                 `json:"event_id,omitempty"`
	Reference        string                 `json:"reference,omitempty"`
}

// NewGenerationCompleted 由已保存的生成结果构造事件
func NewGenerationCompleted(gen *entity.Generation, now time.Time) *Event {
	return &Event{
		ID:         uuid.NewString(),
		Type:       TypeGenerationCompleted,
		UserID:     gen.UserID,
		OccurredAt: now,
		Data: GenerationCompleted{
			GenerationID:    gen.ID,
			Topic:           gen.Topic,
			Language:        gen.Language,
			DurationMinutes: gen.DurationMinutes,
			Cost:            gen.Cost,
			ArtifactStatus:  gen.ArtifactStatus,
			Tags:            []string(gen.Tags),
			CreatedAt:       gen.CreatedAt,
		},
	}
}

// NewCreditsCredited 由入账流水构造事件
func NewCreditsCredited(userID string, txn *entity.CreditTransaction, now time.Time) *Event {
	data := CreditsCredited{
		TransactionID:    txn.ID,
		Type:             txn.Type,
		Amount:           txn.Amount,
		PaidBalanceAfter: txn.PaidBalanceAfter,
		Reference:        txn.Reference,
	}
	if txn.EventID != nil {
		data.EventID = *txn.EventID
	}
	return &Event{
		ID:         uuid.NewString(),
		Type:       TypeCreditsCredited,
		UserID:     userID,
		OccurredAt: now,
		Data:       data,
	}
}

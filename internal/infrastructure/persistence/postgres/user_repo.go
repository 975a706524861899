package postgres

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"scriptgen-api/internal/domain/entity"
)

// UserRepository 用户仓储实现
type UserRepository struct {
	client *Client
}

// NewUserRepository 创建用户仓储
func NewUserRepository(client *Client) *UserRepository {
	return &UserRepository{client: client}
}

// Create 创建用户
func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	ctx, span := tracer.Start(ctx, "postgres.UserRepository.Create")
	defer span.End()

	if err := getDB(ctx, r.client.db).Create(user).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取用户
func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	ctx, span := tracer.Start(ctx, "postgres.UserRepository.GetByID")
	defer span.End()

	return r.first(ctx, span, "id = ?", id)
}

// GetByEmail 根据邮箱获取用户
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	ctx, span := tracer.Start(ctx, "postgres.UserRepository.GetByEmail")
	defer span.End()

	return r.first(ctx, span, "email = ?", email)
}

// GetByReferralCode 根据推荐码获取用户
func (r *UserRepository) GetByReferralCode(ctx context.Context, code string) (*entity.User, error) {
	ctx, span := tracer.Start(ctx, "postgres.UserRepository.GetByReferralCode")
	defer span.End()

	return r.first(ctx, span, "referral_code = ?", code)
}

// SetReferredBy 条件更新保证推荐关系只绑定一次
func (r *UserRepository) SetReferredBy(ctx context.Context, userID, referrerID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "postgres.UserRepository.SetReferredBy")
	defer span.End()

	res := getDB(ctx, r.client.db).
		Model(&entity.User{}).
		Where("id = ? AND referred_by IS NULL", userID).
		Update("referred_by", referrerID)
	if res.Error != nil {
		span.RecordError(res.Error)
		return false, fmt.Errorf("failed to set referrer: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *UserRepository) first(ctx context.Context, span trace.Span, query string, arg any) (*entity.User, error) {
	var user entity.User
	if err := getDB(ctx, r.client.db).First(&user, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

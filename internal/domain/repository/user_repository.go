package repository

import (
	"context"

	"scriptgen-api/internal/domain/entity"
)

// UserRepository 用户仓储接口
type UserRepository interface {
	// Create 创建用户
	Create(ctx context.Context, user *entity.User) error

	// GetByID 根据 ID 获取用户，不存在返回 nil
	GetByID(ctx context.Context, id string) (*entity.User, error)

	// GetByEmail 根据邮箱获取用户
	GetByEmail(ctx context.Context, email string) (*entity.User, error)

	// GetByReferralCode 根据推荐码获取用户
	GetByReferralCode(ctx context.Context, code string) (*entity.User, error)

	// SetReferredBy 仅在尚未绑定推荐人时写入，返回是否写入成功
	SetReferredBy(ctx context.Context, userID, referrerID string) (bool, error)
}

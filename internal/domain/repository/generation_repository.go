package repository

import (
	"context"

	"scriptgen-api/internal/domain/entity"
)

// GenerationRepository 生成结果仓储
type GenerationRepository interface {
	// Create 保存一次完整生成
	Create(ctx context.Context, gen *entity.Generation) error

	// GetByID 获取用户的某次生成，不存在或不属于该用户返回 nil
	GetByID(ctx context.Context, userID, id string) (*entity.Generation, error)

	// GetForUpdate 同 GetByID 并对该行加写锁，必须在事务内调用
	GetForUpdate(ctx context.Context, userID, id string) (*entity.Generation, error)

	// Update 更新段落、物料或译文
	Update(ctx context.Context, gen *entity.Generation) error

	// ListByUser 分页列出用户的生成历史
	ListByUser(ctx context.Context, userID string, pagination Pagination) (*PagedResult[*entity.Generation], error)
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"scriptgen-api/internal/domain/entity"
	"scriptgen-api/internal/domain/repository"
)

// GenerationRepository 生成结果仓储实现
type GenerationRepository struct {
	client *Client
}

// NewGenerationRepository 创建生成结果仓储
func NewGenerationRepository(client *Client) *GenerationRepository {
	return &GenerationRepository{client: client}
}

// Create 保存生成结果
func (r *GenerationRepository) Create(ctx context.Context, gen *entity.Generation) error {
	ctx, span := tracer.Start(ctx, "postgres.GenerationRepository.Create")
	defer span.End()

	if err := getDB(ctx, r.client.db).Create(gen).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create generation: %w", err)
	}
	return nil
}

// GetByID 按用户与 ID 获取
func (r *GenerationRepository) GetByID(ctx context.Context, userID, id string) (*entity.Generation, error) {
	ctx, span := tracer.Start(ctx, "postgres.GenerationRepository.GetByID")
	defer span.End()

	var gen entity.Generation
	if err := getDB(ctx, r.client.db).First(&gen, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get generation: %w", err)
	}
	return &gen, nil
}

// GetForUpdate 以 SELECT ... FOR UPDATE 读取，须在 TxManager 事务内调用
func (r *GenerationRepository) GetForUpdate(ctx context.Context, userID, id string) (*entity.Generation, error) {
	ctx, span := tracer.Start(ctx, "postgres.GenerationRepository.GetForUpdate")
	defer span.End()

	var gen entity.Generation
	err := getDB(ctx, r.client.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&gen, "id = ? AND user_id = ?", id, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to lock generation: %w", err)
	}
	return &gen, nil
}

// Update 更新生成结果
func (r *GenerationRepository) Update(ctx context.Context, gen *entity.Generation) error {
	ctx, span := tracer.Start(ctx, "postgres.GenerationRepository.Update")
	defer span.End()

	res := getDB(ctx, r.client.db).Where("user_id = ?", gen.UserID).Save(gen)
	if res.Error != nil {
		span.RecordError(res.Error)
		return fmt.Errorf("failed to update generation: %w", res.Error)
	}
	return nil
}

// ListByUser 分页列出生成历史，列表不携带译文
func (r *GenerationRepository) ListByUser(ctx context.Context, userID string, pagination repository.Pagination) (*repository.PagedResult[*entity.Generation], error) {
	ctx, span := tracer.Start(ctx, "postgres.GenerationRepository.ListByUser")
	defer span.End()

	query := getDB(ctx, r.client.db).Model(&entity.Generation{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count generations: %w", err)
	}

	var items []*entity.Generation
	if err := query.Omit("translations").
		Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&items).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}
	return repository.NewPagedResult(items, total, pagination), nil
}

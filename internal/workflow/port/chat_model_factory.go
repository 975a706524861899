// Package port 定义工作流层对外部能力的最小依赖
package port

import (
	"context"

	"github.com/cloudwego/eino/components/model"

	"scriptgen-api/internal/domain/entity"
)

// ChatModelFactory 按提供商名获取 ChatModel
type ChatModelFactory interface {
	Get(ctx context.Context, name string) (model.BaseChatModel, error)
}

// Generator 执行单次文本生成，返回原始文本
type Generator interface {
	Generate(ctx context.Context, req *entity.GenerationRequest) (string, error)
}

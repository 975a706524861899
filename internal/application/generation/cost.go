package generation

import "scriptgen-api/internal/domain/entity"

// 计费单位
const (
	BaseCost         int64 = 10
	ArtifactCost     int64 = 10
	RegenerationCost int64 = 10
)

// RequiredCost 完整运行的费用：基础费用加每个已启用的可选物料
func RequiredCost(cfg entity.VideoConfig) int64 {
	return BaseCost + ArtifactCost*int64(len(cfg.OptionalArtifacts()))
}

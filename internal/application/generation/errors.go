package generation

import (
	"errors"
	"fmt"

	"scriptgen-api/internal/domain/entity"
)

var (
	// ErrInvalidConfig 视频配置不合法
	ErrInvalidConfig = errors.New("invalid video config")
	// ErrNotRegenerable 该段落不支持单独重新生成
	ErrNotRegenerable = errors.New("section cannot be regenerated")
	// ErrGenerationNotFound 生成记录不存在
	ErrGenerationNotFound = errors.New("generation not found")
	// ErrRunFinished 运行已结束，不能再次执行
	ErrRunFinished = errors.New("run already finished")
)

// StageError 关键路径阶段失败
type StageError struct {
	Stage entity.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

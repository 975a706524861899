// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/gin-gonic/gin"

	"scriptgen-api/internal/application/generation"
	"scriptgen-api/internal/application/quota"
	"scriptgen-api/internal/interfaces/http/dto"
	"scriptgen-api/internal/workflow/prompt"
	"scriptgen-api/pkg/errors"
	"scriptgen-api/pkg/logger"
)

var errCancelled = errors.New(errors.CodeGenerationCancelled, "request cancelled")

// toAppError 将应用层错误映射为对外错误码
func toAppError(err error) *errors.AppError {
	var insufficient quota.InsufficientCreditsError
	var stageErr *generation.StageError

	switch {
	case errors.IsAppError(err):
		return errors.AsAppError(err)
	case stderrors.As(err, &insufficient):
		return errors.ErrInsufficientCredits.WithDetail(
			fmt.Sprintf("required %d credits, available %d", insufficient.Required, insufficient.Available))
	case stderrors.Is(err, generation.ErrInvalidConfig), stderrors.Is(err, prompt.ErrMissingContext):
		return errors.ErrInvalidParam.WithDetail(err.Error())
	case stderrors.Is(err, generation.ErrNotRegenerable):
		return errors.ErrInvalidStage.WithDetail(err.Error())
	case stderrors.Is(err, generation.ErrGenerationNotFound):
		return errors.ErrGenerationNotFound
	case stderrors.Is(err, quota.ErrUnknownPromoCode):
		return errors.ErrInvalidPromoCode
	case stderrors.Is(err, quota.ErrInvalidReferral), stderrors.Is(err, quota.ErrInvalidPayment):
		return errors.ErrInvalidParam.WithDetail(err.Error())
	case stderrors.As(err, &stageErr):
		return errors.ErrGenerationFailed.WithDetail(string(stageErr.Stage)).WithError(err)
	case stderrors.Is(err, context.Canceled):
		return errCancelled
	default:
		return errors.ErrInternalError.WithError(err)
	}
}

// respondError 写出错误响应，5xx 记录错误日志
func respondError(c *gin.Context, err error, msg string) {
	appErr := toAppError(err)
	if appErr.HTTPStatus >= 500 {
		logger.Error(c.Request.Context(), msg, err)
	}
	dto.AppError(c, appErr)
}

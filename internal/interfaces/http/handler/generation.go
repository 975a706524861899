package handler

import (
	"context"
	stderrors "errors"
	"io"

	"github.com/gin-gonic/gin"

	"scriptgen-api/internal/application/generation"
	"scriptgen-api/internal/domain/entity"
	"scriptgen-api/internal/domain/repository"
	"scriptgen-api/internal/interfaces/http/dto"
	"scriptgen-api/internal/interfaces/http/middleware"
	"scriptgen-api/pkg/errors"
	"scriptgen-api/pkg/logger"
)

// GenerationService 生成编排能力
type GenerationService interface {
	Start(ctx context.Context, userID string, cfg entity.VideoConfig) (*generation.Run, error)
	Execute(ctx context.Context, run *generation.Run) (*generation.Outcome, error)
	Cancel(userID string) bool
	Get(ctx context.Context, userID, id string) (*entity.Generation, error)
	List(ctx context.Context, userID string, pagination repository.Pagination) (*repository.PagedResult[*entity.Generation], error)
	Regenerate(ctx context.Context, userID, generationID string, section entity.Stage) (*generation.RegenerateOutcome, error)
}

// TranslationService 译文能力
type TranslationService interface {
	Translate(ctx context.Context, userID, generationID, targetLanguage string) (*entity.Generation, string, error)
}

// SSE 事件名
const (
	sseStarted   = "started"
	sseProgress  = "progress"
	sseResult    = "result"
	sseError     = "error"
	sseCancelled = "cancelled"
)

// GenerationHandler 生成处理器
type GenerationHandler struct {
	svc          GenerationService
	translations TranslationService
}

// NewGenerationHandler 创建生成处理器
func NewGenerationHandler(svc GenerationService, translations TranslationService) *GenerationHandler {
	return &GenerationHandler{svc: svc, translations: translations}
}

// CreateGeneration 发起生成并以 SSE 推送进度
// @Summary 生成视频脚本
// @Description 校验配置与额度后运行生成流水线，通过 SSE 推送 started/progress 事件，最终推送 result、error 或 cancelled
// @Tags Generations
// @Accept json
// @Produce text/event-stream
// @Param body body dto.CreateGenerationRequest true "视频参数"
// @Success 200 "SSE stream"
// @Failure 400 {object} dto.ErrorResponse
// @Failure 402 {object} dto.ErrorResponse
// @Router /v1/generations [post]
func (h *GenerationHandler) CreateGeneration(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserIDFromGin(c)

	var req dto.CreateGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	// 配置与额度错误在流开始前以普通响应返回
	run, err := h.svc.Start(ctx, userID, req.ToVideoConfig())
	if err != nil {
		respondError(c, err, "failed to start generation")
		return
	}

	type result struct {
		outcome *generation.Outcome
		err     error
	}
	done := make(chan result, 1)
	go func() {
		outcome, err := h.svc.Execute(ctx, run)
		done <- result{outcome: outcome, err: err}
	}()

	setSSEHeaders(c)
	c.SSEvent(sseStarted, dto.RunStartedEvent{RunID: run.ID, Cost: run.Cost, Timing: run.Timing})
	c.Writer.Flush()

	events := run.Events()
	var res result
	finished := false
	c.Stream(func(io.Writer) bool {
		select {
		case evt, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(sseProgress, evt)
			return true
		case res = <-done:
			finished = true
			return false
		}
	})
	if !finished {
		res = <-done
	}
	drainProgress(c, events)

	if ctx.Err() != nil {
		logger.Info(ctx, "generation client disconnected", "run_id", run.ID)
		return
	}
	writeFinalEvent(c, run, res.outcome, res.err)
	c.Writer.Flush()
}

// drainProgress 推送运行结束前仍在缓冲区中的进度事件
func drainProgress(c *gin.Context, events <-chan generation.ProgressEvent) {
	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			c.SSEvent(sseProgress, evt)
		default:
			return
		}
	}
}

func writeFinalEvent(c *gin.Context, run *generation.Run, outcome *generation.Outcome, err error) {
	if outcome == nil {
		c.SSEvent(sseError, dto.RunErrorEvent{RunID: run.ID, Message: errorMessage(err)})
		return
	}
	switch outcome.State {
	case generation.StateDone:
		c.SSEvent(sseResult, dto.RunResultEvent{
			RunID:      outcome.RunID,
			Debited:    outcome.Debited,
			Saved:      outcome.Saved,
			Generation: dto.ToGenerationResponse(outcome.Generation),
		})
	case generation.StateCancelled:
		c.SSEvent(sseCancelled, gin.H{"run_id": outcome.RunID})
	default:
		evt := dto.RunErrorEvent{RunID: outcome.RunID, Message: errorMessage(err)}
		var stageErr *generation.StageError
		if stderrors.As(err, &stageErr) {
			evt.Stage = string(stageErr.Stage)
		}
		c.SSEvent(sseError, evt)
	}
}

func errorMessage(err error) string {
	if err == nil {
		return "generation failed"
	}
	return err.Error()
}

func setSSEHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
}

// CancelActive 取消当前用户的活跃运行
// @Summary 取消生成
// @Tags Generations
// @Produce json
// @Success 200 {object} dto.Response[dto.CancelResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/generations/active [delete]
func (h *GenerationHandler) CancelActive(c *gin.Context) {
	userID := middleware.GetUserIDFromGin(c)
	if !h.svc.Cancel(userID) {
		dto.AppError(c, errors.ErrRunNotFound)
		return
	}
	logger.Info(c.Request.Context(), "generation cancel requested")
	dto.Success(c, dto.CancelResponse{Cancelled: true})
}

// ListGenerations 生成历史
// @Summary 生成历史
// @Tags Generations
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.Response[[]dto.GenerationSummary]
// @Router /v1/generations [get]
func (h *GenerationHandler) ListGenerations(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserIDFromGin(c)
	page := dto.BindPage(c)

	result, err := h.svc.List(ctx, userID, page.Pagination())
	if err != nil {
		respondError(c, err, "failed to list generations")
		return
	}
	dto.SuccessWithPage(c, dto.ToGenerationSummaries(result.Items), dto.NewPageMeta(page.Page, page.PageSize, int(result.Total)))
}

// GetGeneration 生成详情
// @Summary 生成详情
// @Tags Generations
// @Produce json
// @Param id path string true "生成 ID"
// @Success 200 {object} dto.Response[dto.GenerationResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/generations/{id} [get]
func (h *GenerationHandler) GetGeneration(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserIDFromGin(c)

	gen, err := h.svc.Get(ctx, userID, dto.BindGenerationID(c))
	if err != nil {
		respondError(c, err, "failed to get generation")
		return
	}
	dto.Success(c, dto.ToGenerationResponse(gen))
}

// RegenerateSection 重新生成单个脚本段落
// @Summary 重新生成段落
// @Description 仅支持 hook_intro、main_content、demo_outro，成功后扣除 10 额度
// @Tags Generations
// @Produce json
// @Param id path string true "生成 ID"
// @Param section path string true "段落"
// @Success 200 {object} dto.Response[dto.RegenerateResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 402 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /v1/generations/{id}/sections/{section}/regenerate [post]
func (h *GenerationHandler) RegenerateSection(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserIDFromGin(c)

	section, ok := entity.ParseStage(dto.BindSection(c))
	if !ok || !section.IsRegenerable() {
		dto.AppError(c, errors.ErrInvalidStage.WithDetail("section must be one of hook_intro, main_content, demo_outro"))
		return
	}

	out, err := h.svc.Regenerate(ctx, userID, dto.BindGenerationID(c), section)
	if err != nil {
		respondError(c, err, "failed to regenerate section")
		return
	}
	dto.Success(c, dto.ToRegenerateResponse(out))
}

// TranslateGeneration 翻译已保存的脚本
// @Summary 翻译脚本
// @Tags Generations
// @Accept json
// @Produce json
// @Param id path string true "生成 ID"
// @Param body body dto.TranslateRequest true "目标语言"
// @Success 200 {object} dto.Response[dto.TranslateResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /v1/generations/{id}/translations [post]
func (h *GenerationHandler) TranslateGeneration(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserIDFromGin(c)

	var req dto.TranslateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	gen, text, err := h.translations.Translate(ctx, userID, dto.BindGenerationID(c), req.TargetLanguage)
	if err != nil {
		appErr := toAppError(err)
		if appErr.Code == errors.CodeInternalError {
			logger.Error(ctx, "translation failed", err)
			appErr = errors.ErrTranslationFailed.WithError(err)
		}
		dto.AppError(c, appErr)
		return
	}
	dto.Success(c, dto.TranslateResponse{
		GenerationID:   gen.ID,
		TargetLanguage: req.TargetLanguage,
		Text:           text,
	})
}

package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"scriptgen-api/internal/application/quota"
	"scriptgen-api/internal/domain/entity"
	"scriptgen-api/internal/domain/repository"
	"scriptgen-api/internal/interfaces/http/dto"
	"scriptgen-api/internal/interfaces/http/middleware"
	"scriptgen-api/pkg/logger"
)

// CreditLedger 额度查询能力
type CreditLedger interface {
	CheckAvailable(ctx context.Context, userID string) (quota.Availability, error)
	History(ctx context.Context, userID string, pagination repository.Pagination) (*repository.PagedResult[*entity.CreditTransaction], error)
}

// RewardService 促销码与推荐奖励
type RewardService interface {
	RedeemPromo(ctx context.Context, userID, code string) (*quota.CreditResult, error)
	ClaimReferral(ctx context.Context, userID, referralCode string) (*quota.CreditResult, error)
}

// CreditHandler 额度处理器
type CreditHandler struct {
	ledger  CreditLedger
	rewards RewardService
}

// NewCreditHandler 创建额度处理器
func NewCreditHandler(ledger CreditLedger, rewards RewardService) *CreditHandler {
	return &CreditHandler{ledger: ledger, rewards: rewards}
}

// GetBalance 查询可用额度
// @Summary 查询额度
// @Tags Credits
// @Produce json
// @Success 200 {object} dto.Response[dto.BalanceResponse]
// @Router /v1/credits [get]
func (h *CreditHandler) GetBalance(c *gin.Context) {
	ctx := c.Request.Context()
	avail, err := h.ledger.CheckAvailable(ctx, middleware.GetUserIDFromGin(c))
	if err != nil {
		respondError(c, err, "failed to load credit balance")
		return
	}
	dto.Success(c, dto.ToBalanceResponse(avail))
}

// ListTransactions 额度流水
// @Summary 额度流水
// @Tags Credits
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.Response[[]dto.TransactionResponse]
// @Router /v1/credits/transactions [get]
func (h *CreditHandler) ListTransactions(c *gin.Context) {
	ctx := c.Request.Context()
	page := dto.BindPage(c)

	result, err := h.ledger.History(ctx, middleware.GetUserIDFromGin(c), page.Pagination())
	if err != nil {
		respondError(c, err, "failed to list credit transactions")
		return
	}
	dto.SuccessWithPage(c, dto.ToTransactionResponses(result.Items), dto.NewPageMeta(page.Page, page.PageSize, int(result.Total)))
}

// RedeemPromo 兑换促销码
// @Summary 兑换促销码
// @Description 每个促销码每个用户只入账一次，重复兑换返回 applied=false
// @Tags Credits
// @Accept json
// @Produce json
// @Param body body dto.RedeemRequest true "促销码"
// @Success 200 {object} dto.Response[dto.CreditResultResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/credits/promo [post]
func (h *CreditHandler) RedeemPromo(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	res, err := h.rewards.RedeemPromo(ctx, middleware.GetUserIDFromGin(c), req.Code)
	if err != nil {
		respondError(c, err, "failed to redeem promo code")
		return
	}
	logger.Info(ctx, "promo code redeemed", "applied", res.Applied)
	dto.Success(c, dto.ToCreditResultResponse(res))
}

// ClaimReferral 绑定推荐码
// @Summary 绑定推荐码
// @Description 奖励发放给推荐人，响应不包含推荐人余额
// @Tags Credits
// @Accept json
// @Produce json
// @Param body body dto.RedeemRequest true "推荐码"
// @Success 200 {object} dto.Response[dto.CreditResultResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/credits/referral [post]
func (h *CreditHandler) ClaimReferral(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	res, err := h.rewards.ClaimReferral(ctx, middleware.GetUserIDFromGin(c), req.Code)
	if err != nil {
		respondError(c, err, "failed to claim referral")
		return
	}
	out := dto.ToCreditResultResponse(res)
	out.Balance = nil
	logger.Info(ctx, "referral claimed", "applied", res.Applied)
	dto.Success(c, out)
}

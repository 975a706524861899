package router

import (
	"github.com/gin-gonic/gin"

	"scriptgen-api/internal/interfaces/http/handler"
)

// RegisterV1Routes 注册需要用户认证的 v1 路由
func RegisterV1Routes(
	v1 *gin.RouterGroup,
	generationHandler *handler.GenerationHandler,
	creditHandler *handler.CreditHandler,
	userHandler *handler.UserHandler,
) {
	// 脚本生成
	generations := v1.Group("/generations")
	{
		generations.POST("", generationHandler.CreateGeneration) // SSE
		generations.GET("", generationHandler.ListGenerations)
		generations.DELETE("/active", generationHandler.CancelActive)
		generations.GET("/:id", generationHandler.GetGeneration)
		generations.POST("/:id/sections/:section/regenerate", generationHandler.RegenerateSection)
		generations.POST("/:id/translations", generationHandler.TranslateGeneration)
	}

	// 额度
	credits := v1.Group("/credits")
	{
		credits.GET("", creditHandler.GetBalance)
		credits.GET("/transactions", creditHandler.ListTransactions)
		credits.POST("/promo", creditHandler.RedeemPromo)
		credits.POST("/referral", creditHandler.ClaimReferral)
	}

	users := v1.Group("/users")
	{
		users.GET("/me", userHandler.GetMe)
	}
}

// RegisterWebhookRoutes 注册支付回调路由
func RegisterWebhookRoutes(webhooks *gin.RouterGroup, webhookHandler *handler.WebhookHandler) {
	webhooks.POST("/payments", webhookHandler.PaymentCompleted)
}

package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"scriptgen-api/internal/domain/entity"
	"scriptgen-api/internal/interfaces/http/dto"
	"scriptgen-api/internal/interfaces/http/middleware"
	"scriptgen-api/pkg/logger"
)

// UserReader 用户查询
type UserReader interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
}

// UserHandler 用户处理器
type UserHandler struct {
	users UserReader
}

// NewUserHandler 创建用户处理器
func NewUserHandler(users UserReader) *UserHandler {
	return &UserHandler{users: users}
}

// GetMe 获取当前用户信息
// @Summary 获取当前用户信息
// @Description 获取登录用户的资料与推荐码
// @Tags Users
// @Produce json
// @Success 200 {object} dto.Response[dto.UserResponse]
// @Failure 401 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/users/me [get]
func (h *UserHandler) GetMe(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserIDFromGin(c)

	user, err := h.users.GetByID(ctx, userID)
	if err != nil {
		logger.Error(ctx, "failed to get user", err)
		dto.InternalError(c, "failed to get user info")
		return
	}
	if user == nil {
		dto.NotFound(c, "user not found")
		return
	}
	dto.Success(c, dto.ToUserResponse(user))
}

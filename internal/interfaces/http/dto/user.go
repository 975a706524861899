package dto

import (
	"time"

	"scriptgen-api/internal/domain/entity"
)

// UserResponse 用户响应
type UserResponse struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	ReferralCode string     `json:"referral_code"`
	Referred     bool       `json:"referred"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ToUserResponse 实体转换为响应
func ToUserResponse(u *entity.User) *UserResponse {
	if u == nil {
		return nil
	}
	return &UserResponse{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		ReferralCode: u.ReferralCode,
		Referred:     u.ReferredBy != nil,
		LastLoginAt:  u.LastLoginAt,
		CreatedAt:    u.CreatedAt,
	}
}

package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User 用户
type User struct {
	ID           string     `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Email        string     `json:"email" gorm:"type:varchar(255);uniqueIndex"`
	Name         string     `json:"name" gorm:"type:varchar(255)"`
	ReferralCode string     `json:"referral_code" gorm:"type:varchar(32);uniqueIndex"`
	ReferredBy   *string    `json:"referred_by,omitempty" gorm:"type:varchar(64)"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName 表名
func (User) TableName() string { return "users" }

// NewUser 创建用户并分配推荐码
func NewUser(email, name string) *User {
	id := uuid.NewString()
	now := time.Now()
	return &User{
		ID:           id,
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Name:         name,
		ReferralCode: strings.ToUpper(strings.ReplaceAll(id, "-", "")[:10]),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

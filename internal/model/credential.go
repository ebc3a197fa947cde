package model

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// UserCredential 登录凭证，提现与重置密码时校验
type UserCredential struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       int64     `gorm:"uniqueIndex;not null" json:"user_id"`
	PasswordHash string    `gorm:"type:varchar(128);not null" json:"-"`
	Role         string    `gorm:"type:varchar(16);not null;default:user" json:"role"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (UserCredential) TableName() string {
	return "user_credential"
}

func (c *UserCredential) IsAdmin() bool {
	return c.IsActive && c.Role == RoleAdmin
}

package model

import (
	"time"
)

const (
	AccountStatusActive   = "active"
	AccountStatusInactive = "inactive"
)

// Account 用户硬币账户
// Balance 只能通过 AccountRepository.ApplyDelta 修改，任何已提交状态下都不小于 0
type Account struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         int64     `gorm:"uniqueIndex;not null" json:"user_id"`
	Balance        int64     `gorm:"not null;default:0" json:"balance"`
	InitialBalance int64     `gorm:"not null;default:0" json:"initial_balance"` // 开户余额，不对应任何流水
	TotalEarned    int64     `gorm:"not null;default:0" json:"total_earned"`
	TotalSpent     int64     `gorm:"not null;default:0" json:"total_spent"`
	Wins           int       `gorm:"not null;default:0" json:"wins"`
	Kills          int       `gorm:"not null;default:0" json:"kills"`
	Status         string    `gorm:"type:varchar(16);not null;default:active" json:"status"`
	Version        int       `gorm:"not null;default:0" json:"version"` // 乐观锁版本号
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}

func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

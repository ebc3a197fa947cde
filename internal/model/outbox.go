package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// OutboxMessage 待投递事件，与业务数据在同一事务内写入
type OutboxMessage struct {
	ID         int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string     `gorm:"type:varchar(64);not null" json:"message_key"` // 分区键，同一用户有序
	Topic      string     `gorm:"type:varchar(64);not null" json:"topic"`
	EventType  string     `gorm:"type:varchar(64);not null" json:"event_type"`
	UserID     int64      `gorm:"index;not null" json:"user_id"`
	Payload    string     `gorm:"type:text;not null" json:"payload"`
	Status     string     `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int        `gorm:"not null;default:0" json:"retry_count"`
	LastError  string     `gorm:"type:varchar(255);not null;default:''" json:"last_error,omitempty"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "wallet_outbox"
}

// TruncateError 截断到 last_error 列宽
func TruncateError(err error) string {
	msg := err.Error()
	if len(msg) > 255 {
		msg = msg[:255]
	}
	return msg
}

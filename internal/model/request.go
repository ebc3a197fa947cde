package model

import (
	"time"
)

// ============================================================================
// 充值 / 提现申请
// ============================================================================

const (
	RequestStatusPending   = "pending"
	RequestStatusApproved  = "approved"
	RequestStatusRejected  = "rejected"
	RequestStatusCompleted = "completed"
)

// 充值只能 pending -> approved | rejected
var DepositTransitions = map[string][]string{
	RequestStatusPending: {RequestStatusApproved, RequestStatusRejected},
}

// 提现另外支持 completed，余额处理与 approved 相同
var WithdrawalTransitions = map[string][]string{
	RequestStatusPending: {RequestStatusApproved, RequestStatusCompleted, RequestStatusRejected},
}

func CanTransitionTo(transitions map[string][]string, current, target string) bool {
	allowed, ok := transitions[current]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// TxStatusFor 申请终态对应的流水终态
func TxStatusFor(requestStatus string) string {
	switch requestStatus {
	case RequestStatusApproved:
		return TxStatusApproved
	case RequestStatusCompleted:
		return TxStatusCompleted
	case RequestStatusRejected:
		return TxStatusRejected
	default:
		return TxStatusPending
	}
}

type DepositRequest struct {
	ID                 int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	RequestNo          string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"request_no"`
	UserID             int64      `gorm:"index;not null;uniqueIndex:idx_deposit_idem" json:"user_id"`
	Amount             int64      `gorm:"not null" json:"amount"`
	PaymentMethod      string     `gorm:"type:varchar(32);not null" json:"payment_method"`
	ExternalAccountRef string     `gorm:"type:varchar(128);not null" json:"external_account_ref"`
	ProofRef           string     `gorm:"type:varchar(256)" json:"proof_ref,omitempty"`
	Status             string     `gorm:"type:varchar(16);index;not null" json:"status"`
	AdminNote          string     `gorm:"type:varchar(256)" json:"admin_note,omitempty"`
	ProcessedBy        int64      `gorm:"not null;default:0" json:"processed_by,omitempty"`
	ProcessedAt        *time.Time `json:"processed_at,omitempty"`
	IdempotencyKey     *string    `gorm:"type:varchar(64);uniqueIndex:idx_deposit_idem" json:"idempotency_key,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (DepositRequest) TableName() string {
	return "deposit_request"
}

type WithdrawalRequest struct {
	ID                 int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	RequestNo          string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"request_no"`
	UserID             int64      `gorm:"index;not null;uniqueIndex:idx_withdrawal_idem" json:"user_id"`
	Amount             int64      `gorm:"not null" json:"amount"`
	PaymentMethod      string     `gorm:"type:varchar(32);not null" json:"payment_method"`
	ExternalAccountRef string     `gorm:"type:varchar(128);not null" json:"external_account_ref"`
	PayoutRef          string     `gorm:"type:varchar(128)" json:"payout_ref,omitempty"`
	Status             string     `gorm:"type:varchar(16);index;not null" json:"status"`
	AdminNote          string     `gorm:"type:varchar(256)" json:"admin_note,omitempty"`
	ProcessedBy        int64      `gorm:"not null;default:0" json:"processed_by,omitempty"`
	ProcessedAt        *time.Time `json:"processed_at,omitempty"`
	IdempotencyKey     *string    `gorm:"type:varchar(64);uniqueIndex:idx_withdrawal_idem" json:"idempotency_key,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WithdrawalRequest) TableName() string {
	return "withdrawal_request"
}

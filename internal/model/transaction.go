package model

import (
	"time"
)

// ============================================================================
// 流水常量
// ============================================================================

const (
	DirectionCredit = "credit"
	DirectionDebit  = "debit"
)

const (
	CategoryDeposit         = "deposit"
	CategoryWithdrawal      = "withdrawal"
	CategoryTournamentEntry = "tournament_entry"
	CategoryTournamentWin   = "tournament_win"
	CategoryRefund          = "refund"
	CategoryAdjustment      = "adjustment"
)

const (
	TxStatusPending   = "pending"
	TxStatusCompleted = "completed"
	TxStatusApproved  = "approved"
	TxStatusRejected  = "rejected"
)

const (
	RequestKindDeposit    = "deposit"
	RequestKindWithdrawal = "withdrawal"
)

// ============================================================================
// 账户流水
// ============================================================================

// AccountTransaction 账户流水
//
// 状态约束：
//   - completed/approved：balance_after = balance_before ± amount，且等于提交后的账户余额
//   - pending：balance_after = balance_before，余额尚未变动
//   - rejected：余额从未因该流水变动
type AccountTransaction struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo      string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	UserID             int64     `gorm:"index;not null" json:"user_id"`
	Direction          string    `gorm:"type:varchar(8);not null" json:"direction"`
	Amount             int64     `gorm:"not null" json:"amount"` // 恒为正数，方向由 Direction 决定
	BalanceBefore      int64     `gorm:"not null" json:"balance_before"`
	BalanceAfter       int64     `gorm:"not null" json:"balance_after"`
	Category           string    `gorm:"type:varchar(32);index;not null" json:"category"`
	Status             string    `gorm:"type:varchar(16);index;not null" json:"status"`
	RelatedRequestKind string    `gorm:"type:varchar(16);index:idx_related_request" json:"related_request_kind,omitempty"`
	RelatedRequestNo   string    `gorm:"type:varchar(64);index:idx_related_request" json:"related_request_no,omitempty"`
	ProcessedBy        int64     `gorm:"not null;default:0" json:"processed_by,omitempty"`
	MetaJSON           string    `gorm:"column:meta;type:text" json:"-"`
	CreatedAt          time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (AccountTransaction) TableName() string {
	return "account_transaction"
}

// SignedAmount 按方向返回带符号金额
func (t *AccountTransaction) SignedAmount() int64 {
	return SignedAmount(t.Direction, t.Amount)
}

// IsSettled 流水是否已计入余额
func (t *AccountTransaction) IsSettled() bool {
	return t.Status == TxStatusCompleted || t.Status == TxStatusApproved
}

// SetMeta 写入与类别匹配的元数据
func (t *AccountTransaction) SetMeta(meta TransactionMeta) error {
	raw, err := EncodeMeta(t.Category, meta)
	if err != nil {
		return err
	}
	t.MetaJSON = raw
	return nil
}

// Meta 解析元数据，未设置时返回 nil
func (t *AccountTransaction) Meta() (TransactionMeta, error) {
	return DecodeMeta(t.Category, t.MetaJSON)
}

func SignedAmount(direction string, amount int64) int64 {
	if direction == DirectionDebit {
		return -amount
	}
	return amount
}

func ValidDirection(direction string) bool {
	return direction == DirectionCredit || direction == DirectionDebit
}

package repository

import (
	"context"
	"errors"

	"coinledger/internal/model"

	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.AccountTransaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

func (r *TransactionRepository) GetByTransactionNo(ctx context.Context, tx *gorm.DB, transactionNo string) (*model.AccountTransaction, error) {
	if tx == nil {
		tx = r.db
	}
	var trans model.AccountTransaction
	err := tx.WithContext(ctx).Where("transaction_no = ?", transactionNo).First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &trans, nil
}

// GetByRelatedRequest 查询申请单对应的唯一流水
func (r *TransactionRepository) GetByRelatedRequest(ctx context.Context, tx *gorm.DB, kind, requestNo string) (*model.AccountTransaction, error) {
	if tx == nil {
		tx = r.db
	}
	var trans model.AccountTransaction
	err := tx.WithContext(ctx).
		Where("related_request_kind = ? AND related_request_no = ?", kind, requestNo).
		First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &trans, nil
}

// Finalize 将 pending 流水置为终态，只会成功一次
func (r *TransactionRepository) Finalize(ctx context.Context, tx *gorm.DB, transactionNo, status string, before, after, processedBy int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.AccountTransaction{}).
		Where("transaction_no = ? AND status = ?", transactionNo, model.TxStatusPending).
		Updates(map[string]interface{}{
			"status":         status,
			"balance_before": before,
			"balance_after":  after,
			"processed_by":   processedBy,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *TransactionRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.AccountTransaction, int64, error) {
	var transactions []*model.AccountTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.AccountTransaction{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}

// SumSettledDeltas 已入账流水（completed/approved）的带符号金额之和
func (r *TransactionRepository) SumSettledDeltas(ctx context.Context, tx *gorm.DB, userID int64) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	var sum int64
	err := tx.WithContext(ctx).
		Model(&model.AccountTransaction{}).
		Select("COALESCE(SUM(CASE WHEN direction = ? THEN amount ELSE -amount END), 0)", model.DirectionCredit).
		Where("user_id = ? AND status IN ?", userID, []string{model.TxStatusCompleted, model.TxStatusApproved}).
		Scan(&sum).Error
	return sum, err
}

package repository

import (
	"context"
	"errors"
	"time"

	"coinledger/internal/model"

	"gorm.io/gorm"
)

type WithdrawalRepository struct {
	db *gorm.DB
}

func NewWithdrawalRepository(db *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

func (r *WithdrawalRepository) Create(ctx context.Context, tx *gorm.DB, req *model.WithdrawalRequest) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(req).Error
}

func (r *WithdrawalRepository) GetByRequestNo(ctx context.Context, tx *gorm.DB, requestNo string) (*model.WithdrawalRequest, error) {
	if tx == nil {
		tx = r.db
	}
	var req model.WithdrawalRequest
	err := tx.WithContext(ctx).Where("request_no = ?", requestNo).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

func (r *WithdrawalRepository) GetByIdempotencyKey(ctx context.Context, userID int64, key string) (*model.WithdrawalRequest, error) {
	var req model.WithdrawalRequest
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

// Resolve 条件更新 pending 申请，payoutRef 为打款凭证号
func (r *WithdrawalRepository) Resolve(ctx context.Context, tx *gorm.DB, requestNo, toStatus string, adminID int64, note, payoutRef string) error {
	if !model.CanTransitionTo(model.WithdrawalTransitions, model.RequestStatusPending, toStatus) {
		return ErrStatusConflict
	}
	if tx == nil {
		tx = r.db
	}

	now := time.Now()
	result := tx.WithContext(ctx).
		Model(&model.WithdrawalRequest{}).
		Where("request_no = ? AND status = ?", requestNo, model.RequestStatusPending).
		Updates(map[string]interface{}{
			"status":       toStatus,
			"processed_by": adminID,
			"processed_at": &now,
			"admin_note":   note,
			"payout_ref":   payoutRef,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *WithdrawalRepository) ListByStatus(ctx context.Context, status string, page, pageSize int) ([]*model.WithdrawalRequest, int64, error) {
	return r.list(ctx, r.db.WithContext(ctx).Model(&model.WithdrawalRequest{}).Where("status = ?", status), page, pageSize)
}

func (r *WithdrawalRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.WithdrawalRequest, int64, error) {
	return r.list(ctx, r.db.WithContext(ctx).Model(&model.WithdrawalRequest{}).Where("user_id = ?", userID), page, pageSize)
}

func (r *WithdrawalRepository) list(ctx context.Context, query *gorm.DB, page, pageSize int) ([]*model.WithdrawalRequest, int64, error) {
	var reqs []*model.WithdrawalRequest
	var total int64

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&reqs).Error

	return reqs, total, err
}

package repository

import (
	"context"
	"errors"
	"time"

	"coinledger/internal/model"

	"gorm.io/gorm"
)

type DepositRepository struct {
	db *gorm.DB
}

func NewDepositRepository(db *gorm.DB) *DepositRepository {
	return &DepositRepository{db: db}
}

func (r *DepositRepository) Create(ctx context.Context, tx *gorm.DB, req *model.DepositRequest) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(req).Error
}

func (r *DepositRepository) GetByRequestNo(ctx context.Context, tx *gorm.DB, requestNo string) (*model.DepositRequest, error) {
	if tx == nil {
		tx = r.db
	}
	var req model.DepositRequest
	err := tx.WithContext(ctx).Where("request_no = ?", requestNo).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

// GetByIdempotencyKey 幂等查询，不存在返回 nil, nil
func (r *DepositRepository) GetByIdempotencyKey(ctx context.Context, userID int64, key string) (*model.DepositRequest, error) {
	var req model.DepositRequest
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

// Resolve 只有 pending 状态能被处理，并发处理时只有一个能命中
func (r *DepositRepository) Resolve(ctx context.Context, tx *gorm.DB, requestNo, toStatus string, adminID int64, note string) error {
	if !model.CanTransitionTo(model.DepositTransitions, model.RequestStatusPending, toStatus) {
		return ErrStatusConflict
	}
	if tx == nil {
		tx = r.db
	}

	now := time.Now()
	result := tx.WithContext(ctx).
		Model(&model.DepositRequest{}).
		Where("request_no = ? AND status = ?", requestNo, model.RequestStatusPending).
		Updates(map[string]interface{}{
			"status":       toStatus,
			"processed_by": adminID,
			"processed_at": &now,
			"admin_note":   note,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *DepositRepository) ListByStatus(ctx context.Context, status string, page, pageSize int) ([]*model.DepositRequest, int64, error) {
	return r.list(ctx, r.db.WithContext(ctx).Model(&model.DepositRequest{}).Where("status = ?", status), page, pageSize)
}

func (r *DepositRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.DepositRequest, int64, error) {
	return r.list(ctx, r.db.WithContext(ctx).Model(&model.DepositRequest{}).Where("user_id = ?", userID), page, pageSize)
}

func (r *DepositRepository) list(ctx context.Context, query *gorm.DB, page, pageSize int) ([]*model.DepositRequest, int64, error) {
	var reqs []*model.DepositRequest
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

package repository

import (
	"context"
	"time"

	"coinledger/internal/model"

	"gorm.io/gorm"
)

type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Create(ctx context.Context, tx *gorm.DB, msg *model.OutboxMessage) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(msg).Error
}

// GetPending 按写入顺序取待投递消息
func (r *OutboxRepository) GetPending(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	var messages []*model.OutboxMessage
	err := r.db.WithContext(ctx).
		Where("status = ?", model.OutboxStatusPending).
		Order("id ASC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (r *OutboxRepository) MarkSent(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ? AND status = ?", id, model.OutboxStatusPending).
		Updates(map[string]interface{}{
			"status":  model.OutboxStatusSent,
			"sent_at": time.Now(),
		}).Error
}

// RecordFailure 失败次数 +1 并记录原因，达到上限后置为 FAILED
func (r *OutboxRepository) RecordFailure(ctx context.Context, id int64, maxRetry int, cause string) (bool, error) {
	var msg model.OutboxMessage
	exhausted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.OutboxMessage{}).
			Where("id = ?", id).
			UpdateColumns(map[string]interface{}{
				"retry_count": gorm.Expr("retry_count + 1"),
				"last_error":  cause,
			}).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", id).First(&msg).Error; err != nil {
			return err
		}
		if msg.RetryCount >= maxRetry {
			exhausted = true
			return tx.Model(&model.OutboxMessage{}).
				Where("id = ?", id).
				Update("status", model.OutboxStatusFailed).Error
		}
		return nil
	})
	return exhausted, err
}

func (r *OutboxRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("status = ?", status).
		Count(&n).Error
	return n, err
}

// ListByUserID 某用户的事件，按写入顺序
func (r *OutboxRepository) ListByUserID(ctx context.Context, userID int64) ([]*model.OutboxMessage, error) {
	var messages []*model.OutboxMessage
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&messages).Error
	return messages, err
}

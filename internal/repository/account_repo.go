package repository

import (
	"context"
	"errors"

	"coinledger/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, tx *gorm.DB, account *model.Account) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(account).Error
}

func (r *AccountRepository) GetByUserID(ctx context.Context, tx *gorm.DB, userID int64) (*model.Account, error) {
	if tx == nil {
		tx = r.db
	}
	var account model.Account
	err := tx.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

// GetByUserIDForUpdate 行锁读取，必须在事务内调用
func (r *AccountRepository) GetByUserIDForUpdate(ctx context.Context, tx *gorm.DB, userID int64) (*model.Account, error) {
	var account model.Account
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

// ApplyDelta 原子变更余额，返回变更前后余额
//
// 行锁读取后用 balance + delta >= 0 与 version 做条件更新，
// 入账累加 total_earned，出账累加 total_spent。
func (r *AccountRepository) ApplyDelta(ctx context.Context, tx *gorm.DB, userID int64, delta int64) (int64, int64, error) {
	if tx == nil {
		tx = r.db
	}

	account, err := r.GetByUserIDForUpdate(ctx, tx, userID)
	if err != nil {
		return 0, 0, err
	}
	if account.Balance+delta < 0 {
		return 0, 0, ErrBalanceNotEnough
	}

	updates := map[string]interface{}{
		"balance": gorm.Expr("balance + ?", delta),
		"version": gorm.Expr("version + 1"),
	}
	if delta > 0 {
		updates["total_earned"] = gorm.Expr("total_earned + ?", delta)
	} else if delta < 0 {
		updates["total_spent"] = gorm.Expr("total_spent + ?", -delta)
	}

	result := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("user_id = ? AND version = ? AND balance + ? >= 0", userID, account.Version, delta).
		Updates(updates)
	if result.Error != nil {
		return 0, 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, 0, ErrOptimisticLock
	}

	return account.Balance, account.Balance + delta, nil
}

// AddStats 累加胜场与击杀数
func (r *AccountRepository) AddStats(ctx context.Context, tx *gorm.DB, userID int64, wins, kills int) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"wins":  gorm.Expr("wins + ?", wins),
			"kills": gorm.Expr("kills + ?", kills),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAfter 按主键游标分页，供对账任务遍历
func (r *AccountRepository) ListAfter(ctx context.Context, afterID int64, limit int) ([]*model.Account, error) {
	var accounts []*model.Account
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&accounts).Error
	return accounts, err
}

package repository

import (
	"context"
	"errors"

	"coinledger/internal/model"

	"gorm.io/gorm"
)

type CredentialRepository struct {
	db *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

func (r *CredentialRepository) Create(ctx context.Context, tx *gorm.DB, cred *model.UserCredential) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(cred).Error
}

func (r *CredentialRepository) GetByUserID(ctx context.Context, userID int64) (*model.UserCredential, error) {
	var cred model.UserCredential
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cred, nil
}

func (r *CredentialRepository) UpdatePasswordHash(ctx context.Context, userID int64, hash string) error {
	result := r.db.WithContext(ctx).
		Model(&model.UserCredential{}).
		Where("user_id = ?", userID).
		Update("password_hash", hash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"time"

	"coinledger/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TournamentRepository struct {
	db *gorm.DB
}

func NewTournamentRepository(db *gorm.DB) *TournamentRepository {
	return &TournamentRepository{db: db}
}

// Create 连同奖金表一起写入
func (r *TournamentRepository) Create(ctx context.Context, tx *gorm.DB, t *model.Tournament) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(t).Error
}

func (r *TournamentRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Tournament, error) {
	if tx == nil {
		tx = r.db
	}
	var t model.Tournament
	err := tx.WithContext(ctx).Preload("Prizes").Where("id = ?", id).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// GetForUpdate 行锁读取比赛，报名计数在同一事务内修改
func (r *TournamentRepository) GetForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*model.Tournament, error) {
	var t model.Tournament
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *TournamentRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id int64, from, to string) error {
	if !model.CanTransitionTo(model.TournamentTransitions, from, to) {
		return ErrStatusConflict
	}
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Tournament{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// IncrementParticipants 名额未满时计数 +1
func (r *TournamentRepository) IncrementParticipants(ctx context.Context, tx *gorm.DB, id int64) error {
	result := tx.WithContext(ctx).
		Model(&model.Tournament{}).
		Where("id = ? AND participant_count < max_participants", id).
		UpdateColumn("participant_count", gorm.Expr("participant_count + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTournamentFull
	}
	return nil
}

// DecrementParticipants 计数 -1，不会低于 0
func (r *TournamentRepository) DecrementParticipants(ctx context.Context, tx *gorm.DB, id int64) error {
	return tx.WithContext(ctx).
		Model(&model.Tournament{}).
		Where("id = ? AND participant_count > 0", id).
		UpdateColumn("participant_count", gorm.Expr("participant_count - 1")).Error
}

func (r *TournamentRepository) CreateParticipant(ctx context.Context, tx *gorm.DB, p *model.TournamentParticipant) error {
	return tx.WithContext(ctx).Create(p).Error
}

func (r *TournamentRepository) GetParticipant(ctx context.Context, tx *gorm.DB, tournamentID, participantID int64) (*model.TournamentParticipant, error) {
	if tx == nil {
		tx = r.db
	}
	var p model.TournamentParticipant
	err := tx.WithContext(ctx).
		Where("id = ? AND tournament_id = ?", participantID, tournamentID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// FindParticipantByUser 未报名返回 nil, nil
func (r *TournamentRepository) FindParticipantByUser(ctx context.Context, tx *gorm.DB, tournamentID, userID int64) (*model.TournamentParticipant, error) {
	if tx == nil {
		tx = r.db
	}
	var p model.TournamentParticipant
	err := tx.WithContext(ctx).
		Where("tournament_id = ? AND user_id = ?", tournamentID, userID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *TournamentRepository) ListParticipants(ctx context.Context, tournamentID int64) ([]*model.TournamentParticipant, error) {
	var ps []*model.TournamentParticipant
	err := r.db.WithContext(ctx).
		Where("tournament_id = ?", tournamentID).
		Order("id ASC").
		Find(&ps).Error
	return ps, err
}

// DeleteParticipant 仅删除 pending 报名，已核验的结果不可撤销
func (r *TournamentRepository) DeleteParticipant(ctx context.Context, tx *gorm.DB, participantID int64) error {
	result := tx.WithContext(ctx).
		Where("id = ? AND status = ?", participantID, model.ParticipantStatusPending).
		Delete(&model.TournamentParticipant{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// MarkVerified pending -> verified，只会成功一次
func (r *TournamentRepository) MarkVerified(ctx context.Context, tx *gorm.DB, participantID int64, rank, kills int, coinsWon, adminID int64) error {
	now := time.Now()
	return r.transitionParticipant(ctx, tx, participantID, map[string]interface{}{
		"status":      model.ParticipantStatusVerified,
		"rank":        rank,
		"kills":       kills,
		"coins_won":   coinsWon,
		"verified_by": adminID,
		"verified_at": &now,
	})
}

// MarkRejected pending -> rejected，不发奖
func (r *TournamentRepository) MarkRejected(ctx context.Context, tx *gorm.DB, participantID, adminID int64) error {
	now := time.Now()
	return r.transitionParticipant(ctx, tx, participantID, map[string]interface{}{
		"status":      model.ParticipantStatusRejected,
		"verified_by": adminID,
		"verified_at": &now,
	})
}

func (r *TournamentRepository) transitionParticipant(ctx context.Context, tx *gorm.DB, participantID int64, updates map[string]interface{}) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.TournamentParticipant{}).
		Where("id = ? AND status = ?", participantID, model.ParticipantStatusPending).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

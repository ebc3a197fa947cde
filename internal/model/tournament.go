package model

import "time"

const (
	TournamentStatusDraft     = "draft"
	TournamentStatusApproved  = "approved"
	TournamentStatusLive      = "live"
	TournamentStatusCompleted = "completed"
	TournamentStatusCancelled = "cancelled"
)

var TournamentTransitions = map[string][]string{
	TournamentStatusDraft:    {TournamentStatusApproved, TournamentStatusCancelled},
	TournamentStatusApproved: {TournamentStatusLive, TournamentStatusCancelled},
	TournamentStatusLive:     {TournamentStatusCompleted, TournamentStatusCancelled},
}

const (
	ParticipantStatusPending  = "pending"
	ParticipantStatusVerified = "verified"
	ParticipantStatusRejected = "rejected"
)

type Tournament struct {
	ID               int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	Name             string            `gorm:"type:varchar(128);not null" json:"name"`
	Status           string            `gorm:"type:varchar(16);index;not null" json:"status"`
	EntryFee         int64             `gorm:"not null;default:0" json:"entry_fee"`
	MaxParticipants  int               `gorm:"not null" json:"max_participants"`
	ParticipantCount int               `gorm:"not null;default:0" json:"participant_count"`
	CreatedBy        int64             `gorm:"not null;default:0" json:"created_by"`
	Prizes           []TournamentPrize `gorm:"foreignKey:TournamentID" json:"prizes,omitempty"`
	CreatedAt        time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Tournament) TableName() string {
	return "tournament"
}

// AcceptsEntries 只有 approved / live 的比赛允许报名
func (t *Tournament) AcceptsEntries() bool {
	return t.Status == TournamentStatusApproved || t.Status == TournamentStatusLive
}

// PrizeFor 返回名次奖金，不在奖金表内返回 0
func (t *Tournament) PrizeFor(rank int) int64 {
	for _, p := range t.Prizes {
		if p.Rank == rank {
			return p.Coins
		}
	}
	return 0
}

type TournamentPrize struct {
	ID           int64 `gorm:"primaryKey;autoIncrement" json:"-"`
	TournamentID int64 `gorm:"uniqueIndex:idx_prize_rank;not null" json:"-"`
	Rank         int   `gorm:"uniqueIndex:idx_prize_rank;not null" json:"rank"`
	Coins        int64 `gorm:"not null" json:"coins"`
}

func (TournamentPrize) TableName() string {
	return "tournament_prize"
}

type TournamentParticipant struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	TournamentID int64      `gorm:"uniqueIndex:idx_participant_user;not null" json:"tournament_id"`
	UserID       int64      `gorm:"uniqueIndex:idx_participant_user;not null" json:"user_id"`
	Status       string     `gorm:"type:varchar(16);not null" json:"status"`
	Rank         int        `gorm:"not null;default:0" json:"rank,omitempty"`
	Kills        int        `gorm:"not null;default:0" json:"kills,omitempty"`
	CoinsWon     int64      `gorm:"not null;default:0" json:"coins_won"`
	EntryFeePaid int64      `gorm:"not null;default:0" json:"entry_fee_paid"`
	VerifiedBy   int64      `gorm:"not null;default:0" json:"verified_by,omitempty"`
	VerifiedAt   *time.Time `json:"verified_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (TournamentParticipant) TableName() string {
	return "tournament_participant"
}

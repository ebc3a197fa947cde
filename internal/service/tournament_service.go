package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"coinledger/internal/event"
	"coinledger/internal/infrastructure/metrics"
	"coinledger/internal/model"
	"coinledger/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ============================================================================
// 比赛结算
// ============================================================================
//
// 报名、移除、结果核验都是即时结算：余额变更、completed 流水、
// 报名记录与计数在同一事务内完成。
//
// ============================================================================

type TournamentService struct {
	base
	tournamentRepo *repository.TournamentRepository
}

func NewTournamentService(d Deps) *TournamentService {
	return &TournamentService{
		base:           newBase(d, "tournament"),
		tournamentRepo: repository.NewTournamentRepository(d.DB),
	}
}

type PrizeInput struct {
	Rank  int   `json:"rank" binding:"required"`
	Coins int64 `json:"coins" binding:"required"`
}

type CreateTournamentRequest struct {
	Name            string       `json:"name" binding:"required"`
	EntryFee        int64        `json:"entry_fee"`
	MaxParticipants int          `json:"max_participants" binding:"required"`
	Prizes          []PrizeInput `json:"prizes"`
	AdminID         int64        `json:"-"`
}

func (r *CreateTournamentRequest) validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return invalidArg("name 不能为空")
	}
	if r.EntryFee < 0 {
		return fmt.Errorf("%w: 报名费 %d", ErrInvalidAmount, r.EntryFee)
	}
	if r.MaxParticipants < 1 {
		return invalidArg("max_participants 必须大于0")
	}
	seen := make(map[int]bool, len(r.Prizes))
	for _, p := range r.Prizes {
		if p.Rank < 1 || p.Coins <= 0 {
			return invalidArg("奖金配置不合法: 名次 %d 金币 %d", p.Rank, p.Coins)
		}
		if seen[p.Rank] {
			return invalidArg("奖金名次重复 %d", p.Rank)
		}
		seen[p.Rank] = true
	}
	return nil
}

func (s *TournamentService) create(ctx context.Context, req *CreateTournamentRequest) (*model.Tournament, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	t := &model.Tournament{
		Name:            req.Name,
		Status:          model.TournamentStatusDraft,
		EntryFee:        req.EntryFee,
		MaxParticipants: req.MaxParticipants,
		CreatedBy:       req.AdminID,
	}
	for _, p := range req.Prizes {
		t.Prizes = append(t.Prizes, model.TournamentPrize{Rank: p.Rank, Coins: p.Coins})
	}

	if err := s.tournamentRepo.Create(ctx, nil, t); err != nil {
		return nil, fmt.Errorf("创建赛事失败: %w", err)
	}
	s.log.Info("tournament created", zap.Int64("tournament_id", t.ID), zap.Int64("entry_fee", t.EntryFee))
	return t, nil
}

func (s *TournamentService) updateStatus(ctx context.Context, tournamentID int64, status string) (*model.Tournament, error) {
	t, err := s.Get(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if err := s.tournamentRepo.UpdateStatus(ctx, nil, tournamentID, t.Status, status); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, &InvalidStateError{Entity: "tournament", ID: fmt.Sprint(tournamentID), Status: t.Status}
		}
		return nil, err
	}
	return s.Get(ctx, tournamentID)
}

func (s *TournamentService) Get(ctx context.Context, tournamentID int64) (*model.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		return nil, mapRepoErr(err, "tournament", tournamentID)
	}
	return t, nil
}

func (s *TournamentService) ListParticipants(ctx context.Context, tournamentID int64) ([]*model.TournamentParticipant, error) {
	return s.tournamentRepo.ListParticipants(ctx, tournamentID)
}

// Join 报名：校验状态与名额 → 扣报名费 → 记录报名并计数 → completed 流水，一起提交
func (s *TournamentService) Join(ctx context.Context, userID, tournamentID int64) (participant *model.TournamentParticipant, err error) {
	defer func() { metrics.Observe("tournament_join", err) }()

	var balanceAfter int64
	var t *model.Tournament
	err = s.withUserLock(ctx, userID, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			var err error
			t, err = s.tournamentRepo.GetForUpdate(ctx, tx, tournamentID)
			if err != nil {
				return mapRepoErr(err, "tournament", tournamentID)
			}
			if !t.AcceptsEntries() {
				return fmt.Errorf("%w: 赛事 %d 当前状态: %s", ErrTournamentClosed, tournamentID, t.Status)
			}

			// 已报名优先于满员，满员后重复报名仍返回 ErrAlreadyJoined
			joined, err := s.tournamentRepo.FindParticipantByUser(ctx, tx, tournamentID, userID)
			if err != nil {
				return err
			}
			if joined != nil {
				return ErrAlreadyJoined
			}
			if t.ParticipantCount >= t.MaxParticipants {
				return ErrTournamentFull
			}

			account, err := s.activeAccount(ctx, tx, userID)
			if err != nil {
				return err
			}
			balanceAfter = account.Balance

			if t.EntryFee > 0 {
				trans, err := s.ledger.OpenAndComplete(ctx, tx, Entry{
					UserID:    userID,
					Direction: model.DirectionDebit,
					Amount:    t.EntryFee,
					Category:  model.CategoryTournamentEntry,
					Meta:      model.TournamentEntryMeta{TournamentID: tournamentID},
				})
				if err != nil {
					return err
				}
				balanceAfter = trans.BalanceAfter
			}

			if err := s.tournamentRepo.IncrementParticipants(ctx, tx, tournamentID); err != nil {
				return mapRepoErr(err, "tournament", tournamentID)
			}

			participant = &model.TournamentParticipant{
				TournamentID: tournamentID,
				UserID:       userID,
				Status:       model.ParticipantStatusPending,
				EntryFeePaid: t.EntryFee,
			}
			if err := s.tournamentRepo.CreateParticipant(ctx, tx, participant); err != nil {
				return fmt.Errorf("创建报名记录失败: %w", err)
			}

			return s.enqueue(ctx, tx, userID, event.TournamentJoined{
				TournamentID:   tournamentID,
				TournamentName: t.Name,
				EntryFee:       t.EntryFee,
				BalanceAfter:   balanceAfter,
			})
		})
	})
	if err != nil {
		return nil, err
	}
	s.wake()

	s.log.Info("tournament joined",
		zap.Int64("tournament_id", tournamentID),
		zap.Int64("user_id", userID),
		zap.Int64("entry_fee", t.EntryFee),
		zap.Int64("balance_after", balanceAfter),
	)
	return participant, nil
}

// removeParticipant 退还报名费、计数 -1（不低于 0）并删除报名；已核验的不可移除
func (s *TournamentService) removeParticipant(ctx context.Context, tournamentID, participantID, adminID int64) error {
	p, err := s.tournamentRepo.GetParticipant(ctx, nil, tournamentID, participantID)
	if err != nil {
		return mapRepoErr(err, "participant", participantID)
	}
	if p.Status != model.ParticipantStatusPending {
		return &InvalidStateError{Entity: "participant", ID: fmt.Sprint(participantID), Status: p.Status}
	}

	var refund, balanceAfter int64
	err = s.withUserLock(ctx, p.UserID, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			if _, err := s.tournamentRepo.GetForUpdate(ctx, tx, tournamentID); err != nil {
				return mapRepoErr(err, "tournament", tournamentID)
			}
			// 条件删除同时防止重复移除
			if err := s.tournamentRepo.DeleteParticipant(ctx, tx, participantID); err != nil {
				if errors.Is(err, repository.ErrStatusConflict) {
					return &InvalidStateError{Entity: "participant", ID: fmt.Sprint(participantID)}
				}
				return err
			}

			refund = p.EntryFeePaid
			if refund > 0 {
				trans, err := s.ledger.OpenAndComplete(ctx, tx, Entry{
					UserID:      p.UserID,
					Direction:   model.DirectionCredit,
					Amount:      refund,
					Category:    model.CategoryRefund,
					Meta:        model.RefundMeta{TournamentID: tournamentID, ParticipantID: participantID},
					ProcessedBy: adminID,
				})
				if err != nil {
					return err
				}
				balanceAfter = trans.BalanceAfter
			} else {
				account, err := s.accountRepo.GetByUserID(ctx, tx, p.UserID)
				if err != nil {
					return mapRepoErr(err, "account", p.UserID)
				}
				balanceAfter = account.Balance
			}

			if err := s.tournamentRepo.DecrementParticipants(ctx, tx, tournamentID); err != nil {
				return err
			}

			return s.enqueue(ctx, tx, p.UserID, event.ParticipantRemoved{
				TournamentID: tournamentID,
				Refund:       refund,
				BalanceAfter: balanceAfter,
			})
		})
	})
	if err != nil {
		return err
	}
	s.wake()

	s.log.Info("participant removed",
		zap.Int64("tournament_id", tournamentID),
		zap.Int64("participant_id", participantID),
		zap.Int64("refund", refund),
		zap.Int64("admin_id", adminID),
	)
	return nil
}

type VerifyResultRequest struct {
	TournamentID  int64 `json:"tournament_id" binding:"required"`
	ParticipantID int64 `json:"participant_id" binding:"required"`
	Rank          int   `json:"rank" binding:"required"`
	Kills         int   `json:"kills"`
	AdminID       int64 `json:"-"`
}

// verifyResult pending -> verified 只发生一次；名次在奖金表内时发放奖金
func (s *TournamentService) verifyResult(ctx context.Context, req *VerifyResultRequest) (*model.TournamentParticipant, error) {
	if req.Rank < 1 {
		return nil, invalidArg("rank 至少为1")
	}
	if req.Kills < 0 {
		return nil, invalidArg("kills 不能为负")
	}

	p, err := s.tournamentRepo.GetParticipant(ctx, nil, req.TournamentID, req.ParticipantID)
	if err != nil {
		return nil, mapRepoErr(err, "participant", req.ParticipantID)
	}
	if p.Status != model.ParticipantStatusPending {
		return nil, &InvalidStateError{Entity: "participant", ID: fmt.Sprint(req.ParticipantID), Status: p.Status}
	}

	t, err := s.Get(ctx, req.TournamentID)
	if err != nil {
		return nil, err
	}
	if t.Status != model.TournamentStatusLive && t.Status != model.TournamentStatusCompleted {
		return nil, fmt.Errorf("%w: 赛事 %d 当前状态: %s", ErrTournamentClosed, t.ID, t.Status)
	}
	prize := t.PrizeFor(req.Rank)

	var balanceAfter int64
	err = s.withUserLock(ctx, p.UserID, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			if err := s.tournamentRepo.MarkVerified(ctx, tx, p.ID, req.Rank, req.Kills, prize, req.AdminID); err != nil {
				if errors.Is(err, repository.ErrStatusConflict) {
					return &InvalidStateError{Entity: "participant", ID: fmt.Sprint(p.ID)}
				}
				return err
			}

			if prize > 0 {
				trans, err := s.ledger.OpenAndComplete(ctx, tx, Entry{
					UserID:      p.UserID,
					Direction:   model.DirectionCredit,
					Amount:      prize,
					Category:    model.CategoryTournamentWin,
					Meta:        model.TournamentWinMeta{TournamentID: t.ID, Rank: req.Rank, Kills: req.Kills},
					ProcessedBy: req.AdminID,
				})
				if err != nil {
					return err
				}
				balanceAfter = trans.BalanceAfter
			}

			wins := 0
			if req.Rank == 1 {
				wins = 1
			}
			if err := s.accountRepo.AddStats(ctx, tx, p.UserID, wins, req.Kills); err != nil {
				return mapRepoErr(err, "account", p.UserID)
			}
			if prize == 0 {
				account, err := s.accountRepo.GetByUserID(ctx, tx, p.UserID)
				if err != nil {
					return mapRepoErr(err, "account", p.UserID)
				}
				balanceAfter = account.Balance
			}

			return s.enqueue(ctx, tx, p.UserID, event.ResultVerified{
				TournamentID: t.ID,
				Rank:         req.Rank,
				Kills:        req.Kills,
				CoinsWon:     prize,
				BalanceAfter: balanceAfter,
			})
		})
	})
	if err != nil {
		return nil, err
	}
	s.wake()

	s.log.Info("result verified",
		zap.Int64("tournament_id", t.ID),
		zap.Int64("participant_id", p.ID),
		zap.Int("rank", req.Rank),
		zap.Int64("coins_won", prize),
	)
	return s.tournamentRepo.GetParticipant(ctx, nil, req.TournamentID, req.ParticipantID)
}

// rejectResult pending -> rejected，不发奖
func (s *TournamentService) rejectResult(ctx context.Context, tournamentID, participantID, adminID int64) (*model.TournamentParticipant, error) {
	p, err := s.tournamentRepo.GetParticipant(ctx, nil, tournamentID, participantID)
	if err != nil {
		return nil, mapRepoErr(err, "participant", participantID)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.tournamentRepo.MarkRejected(ctx, tx, participantID, adminID); err != nil {
			if errors.Is(err, repository.ErrStatusConflict) {
				return &InvalidStateError{Entity: "participant", ID: fmt.Sprint(participantID), Status: p.Status}
			}
			return err
		}
		return s.enqueue(ctx, tx, p.UserID, event.ResultRejected{TournamentID: tournamentID})
	})
	if err != nil {
		return nil, err
	}
	s.wake()

	return s.tournamentRepo.GetParticipant(ctx, nil, tournamentID, participantID)
}

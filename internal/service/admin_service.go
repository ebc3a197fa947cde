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

// AdminService 管理员操作入口，所有方法先校验管理员身份
type AdminService struct {
	base
	accounts    *AccountService
	deposits    *DepositService
	withdrawals *WithdrawalService
	tournaments *TournamentService
}

func NewAdminService(d Deps, deposits *DepositService, withdrawals *WithdrawalService, tournaments *TournamentService) *AdminService {
	return &AdminService{
		base:        newBase(d, "admin"),
		accounts:    NewAccountService(d),
		deposits:    deposits,
		withdrawals: withdrawals,
		tournaments: tournaments,
	}
}

// requireAdmin 要求 active 且 role=admin
func (s *AdminService) requireAdmin(ctx context.Context, adminID int64) error {
	cred, err := s.credentialRepo.GetByUserID(ctx, adminID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrForbidden
		}
		return err
	}
	if !cred.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

// RegisterAccount 管理员开户，可指定角色与开户余额
func (s *AdminService) RegisterAccount(ctx context.Context, adminID int64, req *RegisterRequest) (*model.Account, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	return s.accounts.Register(ctx, req)
}

type ResolveRequest struct {
	RequestNo   string `json:"request_no" binding:"required"`
	Decision    string `json:"decision" binding:"required"`
	Note        string `json:"note"`
	ExternalRef string `json:"external_ref"`
	AdminID     int64  `json:"-"`
}

func (s *AdminService) ResolveDeposit(ctx context.Context, req *ResolveRequest) (result *model.DepositRequest, err error) {
	defer func() { metrics.Observe("deposit_resolve", err) }()

	if err := s.requireAdmin(ctx, req.AdminID); err != nil {
		return nil, err
	}
	return s.deposits.resolve(ctx, req.RequestNo, req.AdminID, req.Decision, req.Note)
}

func (s *AdminService) ResolveWithdrawal(ctx context.Context, req *ResolveRequest) (result *model.WithdrawalRequest, err error) {
	defer func() { metrics.Observe("withdrawal_resolve", err) }()

	if err := s.requireAdmin(ctx, req.AdminID); err != nil {
		return nil, err
	}
	return s.withdrawals.resolve(ctx, req.RequestNo, req.AdminID, req.Decision, req.Note, req.ExternalRef)
}

func (s *AdminService) ListPendingDeposits(ctx context.Context, adminID int64, page, pageSize int) ([]*model.DepositRequest, int64, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, 0, err
	}
	return s.deposits.listPending(ctx, page, pageSize)
}

func (s *AdminService) ListPendingWithdrawals(ctx context.Context, adminID int64, page, pageSize int) ([]*model.WithdrawalRequest, int64, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, 0, err
	}
	return s.withdrawals.listPending(ctx, page, pageSize)
}

func (s *AdminService) CreateTournament(ctx context.Context, req *CreateTournamentRequest) (*model.Tournament, error) {
	if err := s.requireAdmin(ctx, req.AdminID); err != nil {
		return nil, err
	}
	return s.tournaments.create(ctx, req)
}

func (s *AdminService) UpdateTournamentStatus(ctx context.Context, adminID, tournamentID int64, status string) (*model.Tournament, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	return s.tournaments.updateStatus(ctx, tournamentID, status)
}

func (s *AdminService) RemoveParticipant(ctx context.Context, tournamentID, participantID, adminID int64) (err error) {
	defer func() { metrics.Observe("participant_remove", err) }()

	if err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	return s.tournaments.removeParticipant(ctx, tournamentID, participantID, adminID)
}

func (s *AdminService) VerifyResult(ctx context.Context, req *VerifyResultRequest) (result *model.TournamentParticipant, err error) {
	defer func() { metrics.Observe("result_verify", err) }()

	if err := s.requireAdmin(ctx, req.AdminID); err != nil {
		return nil, err
	}
	return s.tournaments.verifyResult(ctx, req)
}

func (s *AdminService) RejectResult(ctx context.Context, tournamentID, participantID, adminID int64) (*model.TournamentParticipant, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	return s.tournaments.rejectResult(ctx, tournamentID, participantID, adminID)
}

type AdjustRequest struct {
	UserID  int64  `json:"user_id" binding:"required"`
	Delta   int64  `json:"delta" binding:"required"`
	Reason  string `json:"reason" binding:"required"`
	AdminID int64  `json:"-"`
}

// Adjust 人工调账，生成 completed 的 adjustment 流水
func (s *AdminService) Adjust(ctx context.Context, req *AdjustRequest) (trans *model.AccountTransaction, err error) {
	defer func() { metrics.Observe("balance_adjust", err) }()

	if err := s.requireAdmin(ctx, req.AdminID); err != nil {
		return nil, err
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if req.Delta == 0 {
		return nil, fmt.Errorf("%w: 调整金额不能为0", ErrInvalidAmount)
	}
	if req.Reason == "" {
		return nil, invalidArg("reason 不能为空")
	}

	direction, amount := model.DirectionCredit, req.Delta
	if req.Delta < 0 {
		direction, amount = model.DirectionDebit, -req.Delta
	}

	err = s.withUserLock(ctx, req.UserID, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			var err error
			trans, err = s.ledger.OpenAndComplete(ctx, tx, Entry{
				UserID:      req.UserID,
				Direction:   direction,
				Amount:      amount,
				Category:    model.CategoryAdjustment,
				Meta:        model.AdjustmentMeta{Reason: req.Reason},
				ProcessedBy: req.AdminID,
			})
			if err != nil {
				return err
			}
			return s.enqueue(ctx, tx, req.UserID, event.BalanceAdjusted{
				Delta:        req.Delta,
				Reason:       req.Reason,
				BalanceAfter: trans.BalanceAfter,
			})
		})
	})
	if err != nil {
		return nil, err
	}
	s.wake()

	s.log.Info("balance adjusted",
		zap.Int64("user_id", req.UserID),
		zap.Int64("delta", req.Delta),
		zap.Int64("admin_id", req.AdminID),
	)
	return trans, nil
}

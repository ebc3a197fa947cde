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
	"coinledger/pkg/idgen"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type WithdrawalService struct {
	base
	withdrawalRepo  *repository.WithdrawalRepository
	transactionRepo *repository.TransactionRepository
}

func NewWithdrawalService(d Deps) *WithdrawalService {
	return &WithdrawalService{
		base:            newBase(d, "withdrawal"),
		withdrawalRepo:  repository.NewWithdrawalRepository(d.DB),
		transactionRepo: repository.NewTransactionRepository(d.DB),
	}
}

type CreateWithdrawalRequest struct {
	UserID             int64  `json:"user_id" binding:"required"`
	Amount             int64  `json:"amount" binding:"required"`
	PaymentMethod      string `json:"payment_method" binding:"required"`
	ExternalAccountRef string `json:"external_account_ref" binding:"required"`
	Password           string `json:"password" binding:"required"`
	IdempotencyKey     string `json:"idempotency_key"`
}

func (r *CreateWithdrawalRequest) validate(minAmount int64) error {
	if r.Amount < minAmount {
		return fmt.Errorf("%w: 最低提现 %d", ErrInvalidAmount, minAmount)
	}
	r.PaymentMethod = strings.TrimSpace(r.PaymentMethod)
	r.ExternalAccountRef = strings.TrimSpace(r.ExternalAccountRef)
	if r.PaymentMethod == "" {
		return invalidArg("payment_method 不能为空")
	}
	if r.ExternalAccountRef == "" {
		return invalidArg("external_account_ref 不能为空")
	}
	return nil
}

// Create 校验密码与余额后创建提现申请与 pending 流水，余额不变
func (s *WithdrawalService) Create(ctx context.Context, req *CreateWithdrawalRequest) (result *model.WithdrawalRequest, err error) {
	defer func() { metrics.Observe("withdrawal_create", err) }()

	if err := req.validate(s.cfg.Business.WithdrawalMinAmount); err != nil {
		return nil, err
	}
	if _, err := verifyPassword(ctx, s.credentialRepo, req.UserID, req.Password); err != nil {
		return nil, err
	}

	if existing, err := s.findByIdempotencyKey(ctx, req.UserID, req.IdempotencyKey); err != nil || existing != nil {
		return existing, err
	}

	account, err := s.activeAccount(ctx, nil, req.UserID)
	if err != nil {
		return nil, err
	}
	if account.Balance < req.Amount {
		return nil, &InsufficientBalanceError{UserID: req.UserID, Available: account.Balance, Requested: req.Amount}
	}

	withdrawal := &model.WithdrawalRequest{
		RequestNo:          idgen.GenerateWithdrawalNo(),
		UserID:             req.UserID,
		Amount:             req.Amount,
		PaymentMethod:      req.PaymentMethod,
		ExternalAccountRef: req.ExternalAccountRef,
		Status:             model.RequestStatusPending,
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		withdrawal.IdempotencyKey = &key
	}

	var existing *model.WithdrawalRequest
	err = s.withUserLock(ctx, req.UserID, func() error {
		found, err := s.findByIdempotencyKey(ctx, req.UserID, req.IdempotencyKey)
		if err != nil || found != nil {
			existing = found
			return err
		}

		return s.db.Transaction(func(tx *gorm.DB) error {
			trans, err := s.ledger.OpenPending(ctx, tx, Entry{
				UserID:      req.UserID,
				Direction:   model.DirectionDebit,
				Amount:      req.Amount,
				Category:    model.CategoryWithdrawal,
				RequestKind: model.RequestKindWithdrawal,
				RequestNo:   withdrawal.RequestNo,
				Meta: model.WithdrawalMeta{
					PaymentMethod:      req.PaymentMethod,
					ExternalAccountRef: req.ExternalAccountRef,
				},
			})
			if err != nil {
				return err
			}
			// 加锁后余额可能已变化
			if trans.BalanceBefore < req.Amount {
				return &InsufficientBalanceError{UserID: req.UserID, Available: trans.BalanceBefore, Requested: req.Amount}
			}
			if err := s.withdrawalRepo.Create(ctx, tx, withdrawal); err != nil {
				return fmt.Errorf("创建提现申请失败: %w", err)
			}
			return s.enqueue(ctx, tx, req.UserID, event.WithdrawalRequested{
				RequestNo: withdrawal.RequestNo,
				Amount:    req.Amount,
			})
		})
	})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	s.wake()

	s.log.Info("withdrawal requested",
		zap.String("request_no", withdrawal.RequestNo),
		zap.Int64("user_id", req.UserID),
		zap.Int64("amount", req.Amount),
	)
	return withdrawal, nil
}

func (s *WithdrawalService) Get(ctx context.Context, requestNo string) (*model.WithdrawalRequest, error) {
	req, err := s.withdrawalRepo.GetByRequestNo(ctx, nil, requestNo)
	if err != nil {
		return nil, mapRepoErr(err, "withdrawal", requestNo)
	}
	return req, nil
}

func (s *WithdrawalService) ListByUser(ctx context.Context, userID int64, page, pageSize int) ([]*model.WithdrawalRequest, int64, error) {
	page, pageSize = normalizePage(page, pageSize)
	return s.withdrawalRepo.ListByUserID(ctx, userID, page, pageSize)
}

func (s *WithdrawalService) listPending(ctx context.Context, page, pageSize int) ([]*model.WithdrawalRequest, int64, error) {
	page, pageSize = normalizePage(page, pageSize)
	return s.withdrawalRepo.ListByStatus(ctx, model.RequestStatusPending, page, pageSize)
}

// resolve 审核提现申请
//
// 通过时在事务内重新校验余额：不足则整体回滚，申请保持 pending。
func (s *WithdrawalService) resolve(ctx context.Context, requestNo string, adminID int64, decision, note, payoutRef string) (*model.WithdrawalRequest, error) {
	var target string
	switch decision {
	case DecisionApprove:
		target = model.RequestStatusApproved
	case DecisionComplete:
		target = model.RequestStatusCompleted
	case DecisionReject:
		target = model.RequestStatusRejected
	default:
		return nil, invalidArg("未知的处理决定 %q", decision)
	}

	withdrawal, err := s.withdrawalRepo.GetByRequestNo(ctx, nil, requestNo)
	if err != nil {
		return nil, mapRepoErr(err, "withdrawal", requestNo)
	}
	if withdrawal.Status != model.RequestStatusPending {
		return nil, &InvalidStateError{Entity: "withdrawal", ID: requestNo, Status: withdrawal.Status}
	}

	var balanceAfter int64
	err = s.withUserLock(ctx, withdrawal.UserID, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			if err := s.withdrawalRepo.Resolve(ctx, tx, requestNo, target, adminID, note, payoutRef); err != nil {
				if errors.Is(err, repository.ErrStatusConflict) {
					return &InvalidStateError{Entity: "withdrawal", ID: requestNo}
				}
				return err
			}

			trans, err := s.transactionRepo.GetByRelatedRequest(ctx, tx, model.RequestKindWithdrawal, requestNo)
			if err != nil {
				return mapRepoErr(err, "withdrawal transaction", requestNo)
			}

			var change *BalanceChange
			if target != model.RequestStatusRejected {
				c, err := s.ledger.ApplyDelta(ctx, tx, withdrawal.UserID, -withdrawal.Amount)
				if err != nil {
					return err
				}
				change = &c
			}

			finalized, err := s.ledger.Finalize(ctx, tx, trans.TransactionNo, model.TxStatusFor(target), change, adminID)
			if err != nil {
				return err
			}
			balanceAfter = finalized.BalanceAfter

			return s.enqueue(ctx, tx, withdrawal.UserID, event.WithdrawalResolved{
				RequestNo:    requestNo,
				Amount:       withdrawal.Amount,
				Status:       target,
				BalanceAfter: balanceAfter,
				PayoutRef:    payoutRef,
				AdminNote:    note,
			})
		})
	})
	if err != nil {
		return nil, err
	}
	s.wake()

	s.log.Info("withdrawal resolved",
		zap.String("request_no", requestNo),
		zap.String("status", target),
		zap.Int64("admin_id", adminID),
		zap.Int64("balance_after", balanceAfter),
	)
	return s.Get(ctx, requestNo)
}

func (s *WithdrawalService) findByIdempotencyKey(ctx context.Context, userID int64, key string) (*model.WithdrawalRequest, error) {
	if key == "" {
		return nil, nil
	}
	return s.withdrawalRepo.GetByIdempotencyKey(ctx, userID, key)
}

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

const (
	DecisionApprove  = "approve"
	DecisionReject   = "reject"
	DecisionComplete = "complete"
)

type DepositService struct {
	base
	depositRepo     *repository.DepositRepository
	transactionRepo *repository.TransactionRepository
}

func NewDepositService(d Deps) *DepositService {
	return &DepositService{
		base:            newBase(d, "deposit"),
		depositRepo:     repository.NewDepositRepository(d.DB),
		transactionRepo: repository.NewTransactionRepository(d.DB),
	}
}

type CreateDepositRequest struct {
	UserID             int64  `json:"user_id" binding:"required"`
	Amount             int64  `json:"amount" binding:"required"`
	PaymentMethod      string `json:"payment_method" binding:"required"`
	ExternalAccountRef string `json:"external_account_ref" binding:"required"`
	ProofRef           string `json:"proof_ref"`
	IdempotencyKey     string `json:"idempotency_key"`
}

func (r *CreateDepositRequest) validate(minAmount int64) error {
	if r.Amount < minAmount {
		return fmt.Errorf("%w: 最低充值 %d", ErrInvalidAmount, minAmount)
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

// Create 创建充值申请与 pending 流水，余额不变
//
// 同一 idempotency_key 重复提交返回已有申请。
func (s *DepositService) Create(ctx context.Context, req *CreateDepositRequest) (result *model.DepositRequest, err error) {
	defer func() { metrics.Observe("deposit_create", err) }()

	if err := req.validate(s.cfg.Business.DepositMinAmount); err != nil {
		return nil, err
	}

	if existing, err := s.findByIdempotencyKey(ctx, req.UserID, req.IdempotencyKey); err != nil || existing != nil {
		return existing, err
	}

	if _, err := s.activeAccount(ctx, nil, req.UserID); err != nil {
		return nil, err
	}

	deposit := &model.DepositRequest{
		RequestNo:          idgen.GenerateDepositNo(),
		UserID:             req.UserID,
		Amount:             req.Amount,
		PaymentMethod:      req.PaymentMethod,
		ExternalAccountRef: req.ExternalAccountRef,
		ProofRef:           req.ProofRef,
		Status:             model.RequestStatusPending,
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		deposit.IdempotencyKey = &key
	}

	var existing *model.DepositRequest
	err = s.withUserLock(ctx, req.UserID, func() error {
		// 拿到锁后再查一次幂等
		found, err := s.findByIdempotencyKey(ctx, req.UserID, req.IdempotencyKey)
		if err != nil || found != nil {
			existing = found
			return err
		}

		return s.db.Transaction(func(tx *gorm.DB) error {
			if err := s.depositRepo.Create(ctx, tx, deposit); err != nil {
				return fmt.Errorf("创建充值申请失败: %w", err)
			}
			if _, err := s.ledger.OpenPending(ctx, tx, Entry{
				UserID:      req.UserID,
				Direction:   model.DirectionCredit,
				Amount:      req.Amount,
				Category:    model.CategoryDeposit,
				RequestKind: model.RequestKindDeposit,
				RequestNo:   deposit.RequestNo,
				Meta: model.DepositMeta{
					PaymentMethod:      req.PaymentMethod,
					ExternalAccountRef: req.ExternalAccountRef,
					ProofRef:           req.ProofRef,
				},
			}); err != nil {
				return err
			}
			return s.enqueue(ctx, tx, req.UserID, event.DepositRequested{
				RequestNo: deposit.RequestNo,
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

	s.log.Info("deposit requested",
		zap.String("request_no", deposit.RequestNo),
		zap.Int64("user_id", req.UserID),
		zap.Int64("amount", req.Amount),
	)
	return deposit, nil
}

func (s *DepositService) Get(ctx context.Context, requestNo string) (*model.DepositRequest, error) {
	req, err := s.depositRepo.GetByRequestNo(ctx, nil, requestNo)
	if err != nil {
		return nil, mapRepoErr(err, "deposit", requestNo)
	}
	return req, nil
}

func (s *DepositService) ListByUser(ctx context.Context, userID int64, page, pageSize int) ([]*model.DepositRequest, int64, error) {
	page, pageSize = normalizePage(page, pageSize)
	return s.depositRepo.ListByUserID(ctx, userID, page, pageSize)
}

func (s *DepositService) listPending(ctx context.Context, page, pageSize int) ([]*model.DepositRequest, int64, error) {
	page, pageSize = normalizePage(page, pageSize)
	return s.depositRepo.ListByStatus(ctx, model.RequestStatusPending, page, pageSize)
}

// resolve 审核充值申请，只有 pending 能被处理一次
//
// 同一事务内：条件更新申请单 → 通过时入账 → 终结流水 → 写事件。
func (s *DepositService) resolve(ctx context.Context, requestNo string, adminID int64, decision, note string) (*model.DepositRequest, error) {
	var target string
	switch decision {
	case DecisionApprove:
		target = model.RequestStatusApproved
	case DecisionReject:
		target = model.RequestStatusRejected
	default:
		return nil, invalidArg("未知的处理决定 %q", decision)
	}

	deposit, err := s.depositRepo.GetByRequestNo(ctx, nil, requestNo)
	if err != nil {
		return nil, mapRepoErr(err, "deposit", requestNo)
	}
	if deposit.Status != model.RequestStatusPending {
		return nil, &InvalidStateError{Entity: "deposit", ID: requestNo, Status: deposit.Status}
	}

	var balanceAfter int64
	err = s.withUserLock(ctx, deposit.UserID, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			if err := s.depositRepo.Resolve(ctx, tx, requestNo, target, adminID, note); err != nil {
				if errors.Is(err, repository.ErrStatusConflict) {
					return &InvalidStateError{Entity: "deposit", ID: requestNo}
				}
				return err
			}

			trans, err := s.transactionRepo.GetByRelatedRequest(ctx, tx, model.RequestKindDeposit, requestNo)
			if err != nil {
				return mapRepoErr(err, "deposit transaction", requestNo)
			}

			var change *BalanceChange
			if target == model.RequestStatusApproved {
				c, err := s.ledger.ApplyDelta(ctx, tx, deposit.UserID, deposit.Amount)
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

			return s.enqueue(ctx, tx, deposit.UserID, event.DepositResolved{
				RequestNo:    requestNo,
				Amount:       deposit.Amount,
				Status:       target,
				BalanceAfter: balanceAfter,
				AdminNote:    note,
			})
		})
	})
	if err != nil {
		return nil, err
	}
	s.wake()

	s.log.Info("deposit resolved",
		zap.String("request_no", requestNo),
		zap.String("status", target),
		zap.Int64("admin_id", adminID),
		zap.Int64("balance_after", balanceAfter),
	)
	return s.Get(ctx, requestNo)
}

func (s *DepositService) findByIdempotencyKey(ctx context.Context, userID int64, key string) (*model.DepositRequest, error) {
	if key == "" {
		return nil, nil
	}
	return s.depositRepo.GetByIdempotencyKey(ctx, userID, key)
}

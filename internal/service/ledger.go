package service

import (
	"context"
	"errors"
	"fmt"

	"coinledger/internal/model"
	"coinledger/internal/repository"
	"coinledger/pkg/idgen"

	"gorm.io/gorm"
)

// ============================================================================
// 余额存储 + 流水账本
// ============================================================================
//
// 所有写方法都接收调用方的 gorm 事务：余额变更、流水写入、申请单状态
// 与 outbox 事件要么一起提交，要么一起回滚。
//
// ============================================================================

// BalanceChange 一次余额变更前后的快照
type BalanceChange struct {
	Before int64
	After  int64
}

// Entry 描述一笔流水
type Entry struct {
	UserID      int64
	Direction   string
	Amount      int64
	Category    string
	RequestKind string
	RequestNo   string
	Meta        model.TransactionMeta
	ProcessedBy int64
}

func (e *Entry) validate() error {
	if e.Amount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, e.Amount)
	}
	if !model.ValidDirection(e.Direction) {
		return invalidArg("未知方向 %q", e.Direction)
	}
	return nil
}

type Ledger struct {
	db              *gorm.DB
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{
		db:              db,
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

func (l *Ledger) GetBalance(ctx context.Context, userID int64) (int64, error) {
	account, err := l.accountRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return 0, mapRepoErr(err, "account", userID)
	}
	return account.Balance, nil
}

// ApplyDelta 带符号变更余额，扣成负数时返回 *InsufficientBalanceError
func (l *Ledger) ApplyDelta(ctx context.Context, tx *gorm.DB, userID, delta int64) (BalanceChange, error) {
	before, after, err := l.accountRepo.ApplyDelta(ctx, tx, userID, delta)
	if err == nil {
		return BalanceChange{Before: before, After: after}, nil
	}

	switch {
	case errors.Is(err, repository.ErrBalanceNotEnough):
		available := int64(0)
		if account, getErr := l.accountRepo.GetByUserID(ctx, tx, userID); getErr == nil {
			available = account.Balance
		}
		return BalanceChange{}, &InsufficientBalanceError{UserID: userID, Available: available, Requested: -delta}
	case errors.Is(err, repository.ErrOptimisticLock):
		return BalanceChange{}, fmt.Errorf("%w: %v", ErrBusy, err)
	default:
		return BalanceChange{}, mapRepoErr(err, "account", userID)
	}
}

// OpenPending 写入 pending 流水，balance_before = balance_after = 当前余额
func (l *Ledger) OpenPending(ctx context.Context, tx *gorm.DB, e Entry) (*model.AccountTransaction, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}

	account, err := l.accountRepo.GetByUserID(ctx, tx, e.UserID)
	if err != nil {
		return nil, mapRepoErr(err, "account", e.UserID)
	}

	trans := l.newTransaction(e, model.TxStatusPending, BalanceChange{Before: account.Balance, After: account.Balance})
	if err := trans.SetMeta(e.Meta); err != nil {
		return nil, err
	}
	if err := l.transactionRepo.Create(ctx, tx, trans); err != nil {
		return nil, fmt.Errorf("创建待处理流水失败: %w", err)
	}
	return trans, nil
}

// Finalize 将 pending 流水置为终态，每笔流水只能成功一次
//
// approved/completed 必须带上 ApplyDelta 的结果；rejected 不带，保留 pending 时的快照。
func (l *Ledger) Finalize(ctx context.Context, tx *gorm.DB, transactionNo, outcome string, change *BalanceChange, processedBy int64) (*model.AccountTransaction, error) {
	trans, err := l.transactionRepo.GetByTransactionNo(ctx, tx, transactionNo)
	if err != nil {
		return nil, mapRepoErr(err, "transaction", transactionNo)
	}
	if trans.Status != model.TxStatusPending {
		return nil, &InvalidStateError{Entity: "transaction", ID: transactionNo, Status: trans.Status}
	}

	before, after := trans.BalanceBefore, trans.BalanceAfter
	switch outcome {
	case model.TxStatusApproved, model.TxStatusCompleted:
		if change == nil {
			return nil, invalidArg("%s 需要余额变动", outcome)
		}
		if change.After-change.Before != trans.SignedAmount() {
			return nil, invalidArg("余额变动 %d 与流水金额 %d 不一致", change.After-change.Before, trans.SignedAmount())
		}
		before, after = change.Before, change.After
	case model.TxStatusRejected:
		if change != nil {
			return nil, invalidArg("已拒绝的流水不能带余额变动")
		}
	default:
		return nil, invalidArg("未知结果 %q", outcome)
	}

	if err := l.transactionRepo.Finalize(ctx, tx, transactionNo, outcome, before, after, processedBy); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, &InvalidStateError{Entity: "transaction", ID: transactionNo}
		}
		return nil, err
	}

	trans.Status = outcome
	trans.BalanceBefore = before
	trans.BalanceAfter = after
	trans.ProcessedBy = processedBy
	return trans, nil
}

// OpenAndComplete 即时结算：变更余额并写入 completed 流水
func (l *Ledger) OpenAndComplete(ctx context.Context, tx *gorm.DB, e Entry) (*model.AccountTransaction, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}

	trans := l.newTransaction(e, model.TxStatusCompleted, BalanceChange{})
	if err := trans.SetMeta(e.Meta); err != nil {
		return nil, err
	}

	change, err := l.ApplyDelta(ctx, tx, e.UserID, model.SignedAmount(e.Direction, e.Amount))
	if err != nil {
		return nil, err
	}
	trans.BalanceBefore, trans.BalanceAfter = change.Before, change.After

	if err := l.transactionRepo.Create(ctx, tx, trans); err != nil {
		return nil, fmt.Errorf("记录流水失败: %w", err)
	}
	return trans, nil
}

// SettledSum 已入账流水净额，应等于 balance - initial_balance
func (l *Ledger) SettledSum(ctx context.Context, userID int64) (int64, error) {
	return l.transactionRepo.SumSettledDeltas(ctx, nil, userID)
}

func (l *Ledger) newTransaction(e Entry, status string, change BalanceChange) *model.AccountTransaction {
	return &model.AccountTransaction{
		TransactionNo:      idgen.GenerateTransactionNo(),
		UserID:             e.UserID,
		Direction:          e.Direction,
		Amount:             e.Amount,
		BalanceBefore:      change.Before,
		BalanceAfter:       change.After,
		Category:           e.Category,
		Status:             status,
		RelatedRequestKind: e.RequestKind,
		RelatedRequestNo:   e.RequestNo,
		ProcessedBy:        e.ProcessedBy,
	}
}

// mapRepoErr 把仓储层错误转换为服务层错误
func mapRepoErr(err error, entity string, id interface{}) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %s %v", ErrNotFound, entity, id)
	case errors.Is(err, repository.ErrStatusConflict):
		return &InvalidStateError{Entity: entity, ID: fmt.Sprint(id)}
	case errors.Is(err, repository.ErrTournamentFull):
		return ErrTournamentFull
	default:
		return err
	}
}

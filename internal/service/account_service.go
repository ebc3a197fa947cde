package service

import (
	"context"
	"errors"
	"fmt"

	"coinledger/internal/infrastructure/metrics"
	"coinledger/internal/model"
	"coinledger/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 6

type AccountService struct {
	base
	transactionRepo *repository.TransactionRepository
}

func NewAccountService(d Deps) *AccountService {
	return &AccountService{
		base:            newBase(d, "account"),
		transactionRepo: repository.NewTransactionRepository(d.DB),
	}
}

type RegisterRequest struct {
	UserID         int64  `json:"user_id" binding:"required"`
	Password       string `json:"password" binding:"required"`
	Role           string `json:"role"`
	InitialBalance int64  `json:"initial_balance"`
}

// Register 创建凭证与账户，开户余额记入 initial_balance，不生成流水
func (s *AccountService) Register(ctx context.Context, req *RegisterRequest) (account *model.Account, err error) {
	defer func() { metrics.Observe("register", err) }()

	if req.UserID <= 0 {
		return nil, invalidArg("user_id 必须大于0")
	}
	if len(req.Password) < minPasswordLength {
		return nil, invalidArg("密码至少 %d 位", minPasswordLength)
	}
	if req.InitialBalance < 0 {
		return nil, fmt.Errorf("%w: 初始余额 %d", ErrInvalidAmount, req.InitialBalance)
	}
	role := req.Role
	if role == "" {
		role = model.RoleUser
	}
	if role != model.RoleUser && role != model.RoleAdmin {
		return nil, invalidArg("未知角色 %q", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.Business.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("密码加密失败: %w", err)
	}

	account = &model.Account{
		UserID:         req.UserID,
		Balance:        req.InitialBalance,
		InitialBalance: req.InitialBalance,
		Status:         model.AccountStatusActive,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.accountRepo.GetByUserID(ctx, tx, req.UserID); err == nil {
			return ErrAccountExists
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		if err := s.credentialRepo.Create(ctx, tx, &model.UserCredential{
			UserID:       req.UserID,
			PasswordHash: string(hash),
			Role:         role,
			IsActive:     true,
		}); err != nil {
			return fmt.Errorf("创建凭证失败: %w", err)
		}
		if err := s.accountRepo.Create(ctx, tx, account); err != nil {
			return fmt.Errorf("创建账户失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("account registered",
		zap.Int64("user_id", req.UserID),
		zap.String("role", role),
		zap.Int64("initial_balance", req.InitialBalance),
	)
	return account, nil
}

func (s *AccountService) GetAccount(ctx context.Context, userID int64) (*model.Account, error) {
	account, err := s.accountRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, mapRepoErr(err, "account", userID)
	}
	return account, nil
}

func (s *AccountService) GetBalance(ctx context.Context, userID int64) (int64, error) {
	return s.ledger.GetBalance(ctx, userID)
}

// TransactionView 流水及解析后的元数据
type TransactionView struct {
	*model.AccountTransaction
	Meta model.TransactionMeta `json:"meta,omitempty"`
}

func (s *AccountService) ListTransactions(ctx context.Context, userID int64, page, pageSize int) ([]TransactionView, int64, error) {
	page, pageSize = normalizePage(page, pageSize)

	rows, total, err := s.transactionRepo.ListByUserID(ctx, userID, page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	views := make([]TransactionView, 0, len(rows))
	for _, row := range rows {
		meta, err := row.Meta()
		if err != nil {
			s.log.Warn("undecodable transaction meta", zap.String("transaction_no", row.TransactionNo), zap.Error(err))
		}
		views = append(views, TransactionView{AccountTransaction: row, Meta: meta})
	}
	return views, total, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

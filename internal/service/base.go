package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"coinledger/internal/config"
	"coinledger/internal/event"
	"coinledger/internal/infrastructure/lock"
	"coinledger/internal/model"
	"coinledger/internal/repository"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Waker 事务提交后唤醒 outbox 投递
type Waker interface {
	Kick()
}

// Deps 服务共享依赖
type Deps struct {
	DB     *gorm.DB
	Redis  redis.Cmdable
	Config *config.Config
	Logger *zap.Logger
	Waker  Waker
}

// base 各服务共用的仓储、账本与事件队列
type base struct {
	db     *gorm.DB
	redis  redis.Cmdable
	cfg    *config.Config
	log    *zap.Logger
	waker  Waker
	ledger *Ledger

	accountRepo    *repository.AccountRepository
	credentialRepo *repository.CredentialRepository
	outboxRepo     *repository.OutboxRepository
}

func newBase(d Deps, name string) base {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return base{
		db:             d.DB,
		redis:          d.Redis,
		cfg:            d.Config,
		log:            log.Named(name),
		waker:          d.Waker,
		ledger:         NewLedger(d.DB),
		accountRepo:    repository.NewAccountRepository(d.DB),
		credentialRepo: repository.NewCredentialRepository(d.DB),
		outboxRepo:     repository.NewOutboxRepository(d.DB),
	}
}

// withUserLock 持有用户钱包锁执行 fn
func (b *base) withUserLock(ctx context.Context, userID int64, fn func() error) error {
	walletLock := lock.NewWalletLock(b.redis, userID, b.cfg.Business.LockTTL())
	if err := walletLock.Lock(ctx, b.cfg.Business.LockRetryInterval(), b.cfg.Business.LockMaxRetries); err != nil {
		if errors.Is(err, lock.ErrLockFailed) {
			return fmt.Errorf("%w: %v", ErrBusy, err)
		}
		return fmt.Errorf("获取钱包锁失败: %w", err)
	}
	defer func() {
		// 业务 ctx 可能已取消，释放锁用独立 ctx
		if err := walletLock.Unlock(context.Background()); err != nil {
			b.log.Warn("release wallet lock failed", zap.String("key", walletLock.Key()), zap.Error(err))
		}
	}()
	return fn()
}

// enqueue 在业务事务内写入 outbox，提交后由 OutboxSender 投递
func (b *base) enqueue(ctx context.Context, tx *gorm.DB, userID int64, p event.Payload) error {
	env, err := event.New(userID, p)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("编码事件失败: %w", err)
	}
	msg := &model.OutboxMessage{
		MessageKey: fmt.Sprintf("%d", userID),
		Topic:      b.cfg.Kafka.Topic.WalletEvents,
		EventType:  string(env.Type),
		UserID:     userID,
		Payload:    string(raw),
		Status:     model.OutboxStatusPending,
	}
	if err := b.outboxRepo.Create(ctx, tx, msg); err != nil {
		return fmt.Errorf("写入消息失败: %w", err)
	}
	return nil
}

// wake 仅在事务提交后调用
func (b *base) wake() {
	if b.waker != nil {
		b.waker.Kick()
	}
}

// activeAccount 读取账户并要求为 active
func (b *base) activeAccount(ctx context.Context, tx *gorm.DB, userID int64) (*model.Account, error) {
	account, err := b.accountRepo.GetByUserID(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: 账户 %d", ErrNotFound, userID)
		}
		return nil, err
	}
	if !account.IsActive() {
		return nil, ErrAccountInactive
	}
	return account, nil
}

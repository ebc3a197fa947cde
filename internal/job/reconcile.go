package job

import (
	"context"
	"sync"
	"time"

	"coinledger/internal/infrastructure/metrics"
	"coinledger/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReconcileJob 定期核对每个账户：已入账流水净额 == balance - initial_balance
type ReconcileJob struct {
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
	log             *zap.Logger
	interval        time.Duration
	batchSize       int

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewReconcileJob(db *gorm.DB, interval time.Duration, log *zap.Logger) *ReconcileJob {
	return &ReconcileJob{
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		log:             log.Named("reconcile"),
		interval:        interval,
		batchSize:       200,
		stopCh:          make(chan struct{}),
	}
}

func (j *ReconcileJob) Start(ctx context.Context) {
	j.log.Info("reconcile job started", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-j.stopCh:
			j.log.Info("reconcile job stopped")
			return
		case <-ticker.C:
			checked, mismatched, err := j.reconcile(ctx)
			if err != nil {
				j.log.Error("reconcile failed", zap.Error(err))
				continue
			}
			j.log.Info("reconcile finished", zap.Int("checked", checked), zap.Int("mismatched", mismatched))
		}
	}
}

func (j *ReconcileJob) Stop() {
	j.stopOnce.Do(func() { close(j.stopCh) })
}

func (j *ReconcileJob) reconcile(ctx context.Context) (checked, mismatched int, err error) {
	var afterID int64
	for {
		accounts, err := j.accountRepo.ListAfter(ctx, afterID, j.batchSize)
		if err != nil {
			return checked, mismatched, err
		}
		if len(accounts) == 0 {
			return checked, mismatched, nil
		}

		for _, acc := range accounts {
			afterID = acc.ID
			sum, err := j.transactionRepo.SumSettledDeltas(ctx, nil, acc.UserID)
			if err != nil {
				return checked, mismatched, err
			}
			checked++

			if expected := acc.Balance - acc.InitialBalance; sum != expected {
				mismatched++
				metrics.ReconcileMismatches.Inc()
				j.log.Error("ledger mismatch",
					zap.Int64("user_id", acc.UserID),
					zap.Int64("balance", acc.Balance),
					zap.Int64("initial_balance", acc.InitialBalance),
					zap.Int64("settled_sum", sum),
				)
			}
		}
	}
}

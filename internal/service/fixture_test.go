package service

import (
	"context"
	"sync/atomic"
	"testing"

	"coinledger/internal/model"
	"coinledger/internal/otp"
	"coinledger/internal/repository"
	"coinledger/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	adminID      int64 = 900
	userPassword       = "secret-pass"
)

type countingWaker struct {
	n atomic.Int64
}

func (w *countingWaker) Kick() { w.n.Add(1) }

type fixture struct {
	db          *gorm.DB
	waker       *countingWaker
	otpStore    *otp.MemoryStore
	accounts    *AccountService
	auth        *AuthService
	deposits    *DepositService
	withdrawals *WithdrawalService
	tournaments *TournamentService
	admin       *AdminService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t)
	_, client := testutil.NewTestRedis(t)
	waker := &countingWaker{}
	store := otp.NewMemoryStore(0)
	t.Cleanup(store.Close)

	d := Deps{
		DB:     db,
		Redis:  client,
		Config: testutil.TestConfig(),
		Logger: zap.NewNop(),
		Waker:  waker,
	}

	f := &fixture{
		db:          db,
		waker:       waker,
		otpStore:    store,
		accounts:    NewAccountService(d),
		auth:        NewAuthService(d, store),
		deposits:    NewDepositService(d),
		withdrawals: NewWithdrawalService(d),
		tournaments: NewTournamentService(d),
	}
	f.admin = NewAdminService(d, f.deposits, f.withdrawals, f.tournaments)

	_, err := f.accounts.Register(context.Background(), &RegisterRequest{
		UserID:   adminID,
		Password: userPassword,
		Role:     model.RoleAdmin,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) register(t *testing.T, userID, balance int64) {
	t.Helper()
	_, err := f.accounts.Register(context.Background(), &RegisterRequest{
		UserID:         userID,
		Password:       userPassword,
		InitialBalance: balance,
	})
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, userID int64) int64 {
	t.Helper()
	b, err := f.accounts.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	return b
}

// assertLedgerConsistent 已入账流水净额 == balance - initial_balance
func (f *fixture) assertLedgerConsistent(t *testing.T, userID int64) {
	t.Helper()
	account, err := f.accounts.GetAccount(context.Background(), userID)
	require.NoError(t, err)
	sum, err := f.accounts.ledger.SettledSum(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, account.Balance-account.InitialBalance, sum, "ledger sum for user %d", userID)
}

func (f *fixture) transactions(t *testing.T, userID int64) []*model.AccountTransaction {
	t.Helper()
	var rows []*model.AccountTransaction
	require.NoError(t, f.db.Where("user_id = ?", userID).Order("id ASC").Find(&rows).Error)
	return rows
}

// tournament 直接写入指定状态的比赛
func (f *fixture) tournament(t *testing.T, status string, fee int64, max int, prizes ...model.TournamentPrize) *model.Tournament {
	t.Helper()
	tour := &model.Tournament{
		Name:            "weekend cup",
		Status:          status,
		EntryFee:        fee,
		MaxParticipants: max,
		Prizes:          prizes,
	}
	require.NoError(t, repository.NewTournamentRepository(f.db).Create(context.Background(), nil, tour))
	return tour
}

func (f *fixture) outboxTypes(t *testing.T, userID int64) []string {
	t.Helper()
	msgs, err := repository.NewOutboxRepository(f.db).ListByUserID(context.Background(), userID)
	require.NoError(t, err)
	types := make([]string, 0, len(msgs))
	for _, m := range msgs {
		types = append(types, m.EventType)
	}
	return types
}

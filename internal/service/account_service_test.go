package service

import (
	"context"
	"testing"

	"coinledger/internal/event"
	"coinledger/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	account, err := f.accounts.Register(ctx, &RegisterRequest{UserID: 1, Password: userPassword, InitialBalance: 500})
	require.NoError(t, err)
	assert.Equal(t, int64(500), account.Balance)
	assert.Equal(t, int64(500), account.InitialBalance)
	assert.Empty(t, f.transactions(t, 1))
	f.assertLedgerConsistent(t, 1)

	_, err = f.accounts.Register(ctx, &RegisterRequest{UserID: 1, Password: userPassword})
	assert.ErrorIs(t, err, ErrAccountExists)

	_, err = f.accounts.Register(ctx, &RegisterRequest{UserID: 2, Password: "short"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = f.accounts.Register(ctx, &RegisterRequest{UserID: 2, Password: userPassword, InitialBalance: -1})
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = f.accounts.Register(ctx, &RegisterRequest{UserID: 2, Password: userPassword, Role: "root"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestListTransactionsDecodesMeta(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1, 500)
	createDeposit(t, f, 1, 200)

	views, total, err := f.accounts.ListTransactions(context.Background(), 1, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, views, 1)
	meta, ok := views[0].Meta.(*model.DepositMeta)
	require.True(t, ok)
	assert.Equal(t, "bank_transfer", meta.PaymentMethod)
}

func TestAdjust(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1, 100)
	ctx := context.Background()

	trans, err := f.admin.Adjust(ctx, &AdjustRequest{UserID: 1, Delta: -40, Reason: "chargeback", AdminID: adminID})
	require.NoError(t, err)
	assert.Equal(t, model.DirectionDebit, trans.Direction)
	assert.Equal(t, int64(40), trans.Amount)
	assert.Equal(t, int64(60), f.balance(t, 1))

	_, err = f.admin.Adjust(ctx, &AdjustRequest{UserID: 1, Delta: -61, Reason: "too much", AdminID: adminID})
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	_, err = f.admin.Adjust(ctx, &AdjustRequest{UserID: 1, Delta: 0, Reason: "noop", AdminID: adminID})
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = f.admin.Adjust(ctx, &AdjustRequest{UserID: 1, Delta: 5, Reason: " ", AdminID: adminID})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = f.admin.Adjust(ctx, &AdjustRequest{UserID: 1, Delta: 5, Reason: "x", AdminID: 1})
	assert.ErrorIs(t, err, ErrForbidden)

	assert.Equal(t, int64(60), f.balance(t, 1))
	assert.Equal(t, []string{string(event.TypeBalanceAdjusted)}, f.outboxTypes(t, 1))
	f.assertLedgerConsistent(t, 1)
}

func TestPasswordReset(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1, 0)
	ctx := context.Background()

	require.NoError(t, f.auth.RequestPasswordReset(ctx, 1))
	assert.Equal(t, 2, f.otpStore.Len())

	msgs := f.outboxTypes(t, 1)
	require.Equal(t, []string{string(event.TypePasswordResetRequested)}, msgs)

	var row model.OutboxMessage
	require.NoError(t, f.db.Where("user_id = ?", 1).First(&row).Error)
	env, err := event.Parse([]byte(row.Payload))
	require.NoError(t, err)
	payload, err := env.Decode()
	require.NoError(t, err)
	ref := payload.(*event.PasswordResetRequested).DeliveryRef
	require.NotEmpty(t, ref)

	code, ok, err := f.otpStore.Take(ctx, event.PasswordResetDeliveryKey(ref))
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, code, 6)
	// 持久化的事件里没有验证码
	assert.NotContains(t, row.Payload, `"code"`)
	assert.Equal(t, 1, f.otpStore.Len())

	assert.ErrorIs(t, f.auth.ResetPassword(ctx, 1, "not-it", "new-secret"), ErrInvalidOTP)
	require.NoError(t, f.auth.ResetPassword(ctx, 1, code, "new-secret"))
	assert.ErrorIs(t, f.auth.ResetPassword(ctx, 1, code, "another-one"), ErrInvalidOTP)

	_, err = f.auth.VerifyPassword(ctx, 1, userPassword)
	assert.ErrorIs(t, err, ErrInvalidCredential)
	_, err = f.auth.VerifyPassword(ctx, 1, "new-secret")
	assert.NoError(t, err)
}

func TestPasswordReset_UnknownUser(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.auth.RequestPasswordReset(context.Background(), 42), ErrNotFound)
}

// 500 → 充值 200 待审(500) → 审核通过(700) → 报名 150(550) → 第一名奖金 300(850)
func TestExampleTrace(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1, 500)
	ctx := context.Background()

	dep := createDeposit(t, f, 1, 200)
	assert.Equal(t, int64(500), f.balance(t, 1))
	pending := f.transactions(t, 1)
	require.Len(t, pending, 1)
	assert.Equal(t, model.TxStatusPending, pending[0].Status)

	_, err := f.admin.ResolveDeposit(ctx, &ResolveRequest{RequestNo: dep.RequestNo, Decision: DecisionApprove, AdminID: adminID})
	require.NoError(t, err)
	assert.Equal(t, int64(700), f.balance(t, 1))
	approved := f.transactions(t, 1)
	assert.Equal(t, int64(700), approved[0].BalanceAfter)

	tour := f.tournament(t, model.TournamentStatusLive, 150, 10, model.TournamentPrize{Rank: 1, Coins: 300})
	p, err := f.tournaments.Join(ctx, 1, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(550), f.balance(t, 1))

	_, err = f.admin.VerifyResult(ctx, &VerifyResultRequest{TournamentID: tour.ID, ParticipantID: p.ID, Rank: 1, Kills: 3, AdminID: adminID})
	require.NoError(t, err)
	assert.Equal(t, int64(850), f.balance(t, 1))

	rows := f.transactions(t, 1)
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.True(t, row.IsSettled())
		assert.Equal(t, row.BalanceBefore+row.SignedAmount(), row.BalanceAfter)
	}
	assert.Equal(t, int64(850), rows[2].BalanceAfter)
	f.assertLedgerConsistent(t, 1)

	assert.Equal(t, []string{
		string(event.TypeDepositRequested),
		string(event.TypeDepositApproved),
		string(event.TypeTournamentJoined),
		string(event.TypeResultVerified),
	}, f.outboxTypes(t, 1))
}

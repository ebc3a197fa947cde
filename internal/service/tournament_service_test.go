package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"coinledger/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoin_ExactBalanceSucceeds(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1, 150)
	tour := f.tournament(t, model.TournamentStatusLive, 150, 10)

	p, err := f.tournaments.Join(context.Background(), 1, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ParticipantStatusPending, p.Status)
	assert.Equal(t, int64(0), f.balance(t, 1))

	rows := f.transactions(t, 1)
	require.Len(t, rows, 1)
	assert.Equal(t, model.CategoryTournamentEntry, rows[0].Category)
	assert.Equal(t, model.TxStatusCompleted, rows[0].Status)
	assert.Equal(t, int64(150), rows[0].BalanceBefore)
	assert.Equal(t, int64(0), rows[0].BalanceAfter)

	got, err := f.tournaments.Get(context.Background(), tour.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ParticipantCount)
	f.assertLedgerConsistent(t, 1)
}

func TestJoin_OneShortFailsWithoutSideEffects(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1, 149)
	tour := f.tournament(t, model.TournamentStatusLive, 150, 10)

	_, err := f.tournaments.Join(context.Background(), 1, tour.ID)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	assert.Equal(t, int64(149), f.balance(t, 1))
	assert.Empty(t, f.transactions(t, 1))

	participants, err := f.tournaments.ListParticipants(context.Background(), tour.ID)
	require.NoError(t, err)
	assert.Empty(t, participants)

	got, err := f.tournaments.Get(context.Background(), tour.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ParticipantCount)
	assert.Empty(t, f.outboxTypes(t, 1))
}

func TestJoin_Guards(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1, 1000)
	f.register(t, 2, 1000)
	ctx := context.Background()

	draft := f.tournament(t, model.TournamentStatusDraft, 10, 10)
	_, err := f.tournaments.Join(ctx, 1, draft.ID)
	assert.ErrorIs(t, err, ErrTournamentClosed)

	_, err = f.tournaments.Join(ctx, 1, 9999)
	assert.ErrorIs(t, err, ErrNotFound)

	single := f.tournament(t, model.TournamentStatusApproved, 10, 1)
	_, err = f.tournaments.Join(ctx, 1, single.ID)
	require.NoError(t, err)
	_, err = f.tournaments.Join(ctx, 1, single.ID)
	assert.ErrorIs(t, err, ErrAlreadyJoined)
	_, err = f.tournaments.Join(ctx, 2, single.ID)
	assert.ErrorIs(t, err, ErrTournamentFull)

	assert.Equal(t, int64(990), f.balance(t, 1))
	assert.Equal(t, int64(1000), f.balance(t, 2))
}

func TestJoin_FreeTournamentSkipsLedger(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1, 0)
	tour := f.tournament(t, model.TournamentStatusLive, 0, 5)

	_, err := f.tournaments.Join(context.Background(), 1, tour.ID)
	require.NoError(t, err)
	assert.Empty(t, f.transactions(t, 1))
}

func TestJoin_ConcurrentCapacity(t *testing.T) {
	f := newFixture(t)
	const users = 8
	for i := 1; i <= users; i++ {
		f.register(t, int64(i), 100)
	}
	tour := f.tournament(t, model.TournamentStatusLive, 40, 3)

	var wg sync.WaitGroup
	errs := make([]error, users)
	for i := 1; i <= users; i++ {
		wg.Add(1)
		go func(uid int) {
			defer wg.Done()
			_, errs[uid-1] = f.tournaments.Join(context.Background(), int64(uid), tour.ID)
		}(i)
	}
	wg.Wait()

	joined := 0
	for _, err := range errs {
		if err == nil {
			joined++
			continue
		}
		assert.ErrorIs(t, err, ErrTournamentFull)
	}
	assert.Equal(t, 3, joined)

	got, err := f.tournaments.Get(context.Background(), tour.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.ParticipantCount)
	for i := 1; i <= users; i++ {
		f.assertLedgerConsistent(t, int64(i))
	}
}

func TestJoin_ConcurrentSameUserCannotOverdraw(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1, 100)

	const n = 5
	tours := make([]*model.Tournament, n)
	for i := range tours {
		tours[i] = f.tournament(t, model.TournamentStatusLive, 40, 10)
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range tours {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.tournaments.Join(context.Background(), 1, tours[i].ID)
		}(i)
	}
	wg.Wait()

	joined := 0
	for _, err := range errs {
		if err == nil {
			joined++
		} else {
			assert.ErrorIs(t, err, ErrInsufficientBalance)
		}
	}
	assert.Equal(t, 2, joined)
	assert.Equal(t, int64(20), f.balance(t, 1))
	f.assertLedgerConsistent(t, 1)
}

func TestRemoveParticipant_RefundsEntryFee(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1, 500)
	ctx := context.Background()
	tour := f.tournament(t, model.TournamentStatusLive, 150, 10)

	p, err := f.tournaments.Join(ctx, 1, tour.ID)
	require.NoError(t, err)
	require.Equal(t, int64(350), f.balance(t, 1))

	require.NoError(t, f.admin.RemoveParticipant(ctx, tour.ID, p.ID, adminID))
	assert.Equal(t, int64(500), f.balance(t, 1))

	rows := f.transactions(t, 1)
	require.Len(t, rows, 2)
	assert.Equal(t, model.CategoryRefund, rows[1].Category)
	assert.Equal(t, int64(150), rows[1].Amount)
	assert.Equal(t, adminID, rows[1].ProcessedBy)

	got, err := f.tournaments.Get(ctx, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ParticipantCount)

	err = f.admin.RemoveParticipant(ctx, tour.ID, p.ID, adminID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(500), f.balance(t, 1))
	f.assertLedgerConsistent(t, 1)
}

func TestRemoveParticipant_CounterFloorsAtZero(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1, 500)
	ctx := context.Background()
	tour := f.tournament(t, model.TournamentStatusLive, 100, 10)

	p, err := f.tournaments.Join(ctx, 1, tour.ID)
	require.NoError(t, err)
	// 计数被外部改为 0
	require.NoError(t, f.db.Model(&model.Tournament{}).Where("id = ?", tour.ID).Update("participant_count", 0).Error)

	require.NoError(t, f.admin.RemoveParticipant(ctx, tour.ID, p.ID, adminID))
	got, err := f.tournaments.Get(ctx, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ParticipantCount)
	assert.Equal(t, int64(500), f.balance(t, 1))
}

func TestRemoveParticipant_VerifiedCannotBeRemoved(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1, 500)
	ctx := context.Background()
	tour := f.tournament(t, model.TournamentStatusLive, 100, 10)

	p, err := f.tournaments.Join(ctx, 1, tour.ID)
	require.NoError(t, err)
	_, err = f.admin.VerifyResult(ctx, &VerifyResultRequest{TournamentID: tour.ID, ParticipantID: p.ID, Rank: 4, AdminID: adminID})
	require.NoError(t, err)

	err = f.admin.RemoveParticipant(ctx, tour.ID, p.ID, adminID)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, int64(400), f.balance(t, 1))
}

func TestVerifyResult_PaysPrizeOnce(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1, 500)
	ctx := context.Background()
	tour := f.tournament(t, model.TournamentStatusLive, 150, 10,
		model.TournamentPrize{Rank: 1, Coins: 300},
		model.TournamentPrize{Rank: 2, Coins: 100},
	)

	p, err := f.tournaments.Join(ctx, 1, tour.ID)
	require.NoError(t, err)

	req := &VerifyResultRequest{TournamentID: tour.ID, ParticipantID: p.ID, Rank: 1, Kills: 7, AdminID: adminID}
	verified, err := f.admin.VerifyResult(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, model.ParticipantStatusVerified, verified.Status)
	assert.Equal(t, int64(300), verified.CoinsWon)
	assert.Equal(t, int64(650), f.balance(t, 1))

	_, err = f.admin.VerifyResult(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, int64(650), f.balance(t, 1))

	account, err := f.accounts.GetAccount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, account.Wins)
	assert.Equal(t, 7, account.Kills)

	wins := 0
	for _, row := range f.transactions(t, 1) {
		if row.Category == model.CategoryTournamentWin {
			wins++
			meta, err := row.Meta()
			require.NoError(t, err)
			assert.Equal(t, 1, meta.(*model.TournamentWinMeta).Rank)
		}
	}
	assert.Equal(t, 1, wins)
	f.assertLedgerConsistent(t, 1)
}

func TestVerifyResult_ConcurrentPaysOnce(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1, 100)
	ctx := context.Background()
	tour := f.tournament(t, model.TournamentStatusLive, 0, 10, model.TournamentPrize{Rank: 1, Coins: 300})

	p, err := f.tournaments.Join(ctx, 1, tour.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 6)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.admin.VerifyResult(ctx, &VerifyResultRequest{TournamentID: tour.ID, ParticipantID: p.ID, Rank: 1, AdminID: adminID})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, ErrInvalidState)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, int64(400), f.balance(t, 1))
}

func TestVerifyResult_RankOutsidePrizeTable(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1, 100)
	ctx := context.Background()
	tour := f.tournament(t, model.TournamentStatusLive, 0, 10, model.TournamentPrize{Rank: 1, Coins: 300})

	p, err := f.tournaments.Join(ctx, 1, tour.ID)
	require.NoError(t, err)

	verified, err := f.admin.VerifyResult(ctx, &VerifyResultRequest{TournamentID: tour.ID, ParticipantID: p.ID, Rank: 5, Kills: 2, AdminID: adminID})
	require.NoError(t, err)
	assert.Equal(t, int64(0), verified.CoinsWon)
	assert.Equal(t, int64(100), f.balance(t, 1))
	assert.Empty(t, f.transactions(t, 1))

	account, err := f.accounts.GetAccount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, account.Wins)
	assert.Equal(t, 2, account.Kills)
}

func TestVerifyResult_Validation(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1, 100)
	ctx := context.Background()
	tour := f.tournament(t, model.TournamentStatusLive, 0, 10)
	p, err := f.tournaments.Join(ctx, 1, tour.ID)
	require.NoError(t, err)

	_, err = f.admin.VerifyResult(ctx, &VerifyResultRequest{TournamentID: tour.ID, ParticipantID: p.ID, Rank: 0, AdminID: adminID})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = f.admin.VerifyResult(ctx, &VerifyResultRequest{TournamentID: tour.ID, ParticipantID: p.ID, Rank: 1, Kills: -1, AdminID: adminID})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = f.admin.VerifyResult(ctx, &VerifyResultRequest{TournamentID: tour.ID, ParticipantID: p.ID, Rank: 1, AdminID: 1})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRejectResult(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1, 100)
	ctx := context.Background()
	tour := f.tournament(t, model.TournamentStatusLive, 0, 10, model.TournamentPrize{Rank: 1, Coins: 300})
	p, err := f.tournaments.Join(ctx, 1, tour.ID)
	require.NoError(t, err)

	rejected, err := f.admin.RejectResult(ctx, tour.ID, p.ID, adminID)
	require.NoError(t, err)
	assert.Equal(t, model.ParticipantStatusRejected, rejected.Status)

	_, err = f.admin.VerifyResult(ctx, &VerifyResultRequest{TournamentID: tour.ID, ParticipantID: p.ID, Rank: 1, AdminID: adminID})
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, int64(100), f.balance(t, 1))
}

func TestTournamentAdministration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tour, err := f.admin.CreateTournament(ctx, &CreateTournamentRequest{
		Name:            "friday scrims",
		EntryFee:        25,
		MaxParticipants: 50,
		Prizes:          []PrizeInput{{Rank: 1, Coins: 500}, {Rank: 2, Coins: 200}},
		AdminID:         adminID,
	})
	require.NoError(t, err)
	assert.Equal(t, model.TournamentStatusDraft, tour.Status)

	for _, status := range []string{model.TournamentStatusApproved, model.TournamentStatusLive, model.TournamentStatusCompleted} {
		tour, err = f.admin.UpdateTournamentStatus(ctx, adminID, tour.ID, status)
		require.NoError(t, err, fmt.Sprintf("to %s", status))
	}
	assert.Equal(t, int64(500), tour.PrizeFor(1))

	_, err = f.admin.UpdateTournamentStatus(ctx, adminID, tour.ID, model.TournamentStatusLive)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = f.admin.CreateTournament(ctx, &CreateTournamentRequest{
		Name:            "dup prizes",
		MaxParticipants: 2,
		Prizes:          []PrizeInput{{Rank: 1, Coins: 5}, {Rank: 1, Coins: 6}},
		AdminID:         adminID,
	})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

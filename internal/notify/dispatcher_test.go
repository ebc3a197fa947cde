package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"coinledger/internal/event"
	"coinledger/internal/otp"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingSink struct {
	sent []*Notification
	err  error
}

func (s *recordingSink) Send(_ context.Context, n *Notification) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, n)
	return nil
}

func TestDispatcher_RendersEvent(t *testing.T) {
	env, err := event.New(7, event.DepositResolved{RequestNo: "DEP1", Amount: 200, Status: "approved", BalanceAfter: 700})
	require.NoError(t, err)

	sink := &recordingSink{}
	d := NewDispatcher(zap.NewNop(), sink)
	assert.True(t, d.Handle(context.Background(), env))

	require.Len(t, sink.sent, 1)
	assert.Equal(t, int64(7), sink.sent[0].UserID)
	assert.Equal(t, "Deposit approved", sink.sent[0].Subject)
	assert.Contains(t, sink.sent[0].Body, "Balance: 700")
	assert.Equal(t, env.ID, sink.sent[0].EventID)
}

func TestDispatcher_SinkFailureIsSwallowed(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	env, err := event.New(7, event.ResultRejected{TournamentID: 3})
	require.NoError(t, err)

	failing := &recordingSink{err: errors.New("smtp down")}
	ok := &recordingSink{}
	d := NewDispatcher(zap.New(core), failing, ok)

	assert.True(t, d.Handle(context.Background(), env))
	assert.Len(t, ok.sent, 1)
	assert.Equal(t, 1, logs.FilterMessage("notification delivery failed").Len())
}

func TestDispatcher_UnknownEvent(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(zap.NewNop(), sink)

	env := &event.Envelope{ID: "x", Type: "mystery", UserID: 1, Payload: []byte(`{}`)}
	assert.False(t, d.Handle(context.Background(), env))
	assert.Empty(t, sink.sent)
}

func TestDispatcher_PasswordResetTakesCodeOnce(t *testing.T) {
	ctx := context.Background()
	store := otp.NewMemoryStore(0)
	defer store.Close()
	require.NoError(t, store.Put(ctx, event.PasswordResetDeliveryKey("ref-1"), "482913", time.Minute))

	env, err := event.New(5, event.PasswordResetRequested{DeliveryRef: "ref-1", ExpiresAt: time.Now().Add(time.Minute)})
	require.NoError(t, err)
	assert.NotContains(t, string(env.Payload), "482913")

	sink := &recordingSink{}
	d := NewDispatcher(zap.NewNop(), sink).WithCodes(store)
	assert.True(t, d.Handle(ctx, env))
	require.Len(t, sink.sent, 1)
	assert.Contains(t, sink.sent[0].Body, "482913")

	// 重复投递同一事件时验证码已被取走
	assert.False(t, d.Handle(ctx, env))
	assert.Len(t, sink.sent, 1)
}

func TestDispatcher_PasswordResetWithoutCode(t *testing.T) {
	env, err := event.New(5, event.PasswordResetRequested{DeliveryRef: "gone", ExpiresAt: time.Now()})
	require.NoError(t, err)

	store := otp.NewMemoryStore(0)
	defer store.Close()
	sink := &recordingSink{}
	assert.False(t, NewDispatcher(zap.NewNop(), sink).WithCodes(store).Handle(context.Background(), env))

	// 没有验证码来源时同样不投递
	assert.False(t, NewDispatcher(zap.NewNop(), sink).Handle(context.Background(), env))
	assert.Empty(t, sink.sent)
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))

	require.NoError(t, sink.Send(context.Background(), &Notification{UserID: 1, Subject: "s", Body: "b"}))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, int64(1), logs.All()[0].ContextMap()["user_id"])
}

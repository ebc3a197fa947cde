package notify

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"coinledger/internal/event"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafkago.Message
	committed []int64
	drained   chan struct{}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	close(r.drained)
	<-ctx.Done()
	return kafkago.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func TestConsumer_DispatchesAndCommits(t *testing.T) {
	env, err := event.New(3, event.TournamentJoined{TournamentID: 1, TournamentName: "Cup", EntryFee: 150, BalanceAfter: 550})
	require.NoError(t, err)
	body, err := json.Marshal(env)
	require.NoError(t, err)

	reader := &fakeReader{
		queue: []kafkago.Message{
			{Offset: 1, Value: []byte("not json")},
			{Offset: 2, Value: body},
		},
		drained: make(chan struct{}),
	}
	sink := &recordingSink{}
	c := NewConsumer(reader, NewDispatcher(zap.NewNop(), sink), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case <-reader.drained:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not drain queue")
	}
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{1, 2}, reader.committed)
	require.Len(t, sink.sent, 1)
	assert.Equal(t, int64(3), sink.sent[0].UserID)
	assert.Contains(t, sink.sent[0].Body, "Cup")
}

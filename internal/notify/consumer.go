package notify

import (
	"context"
	"errors"
	"time"

	"coinledger/internal/event"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageReader kafka-go Reader 的子集
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
}

// Consumer 读取钱包事件并交给 Dispatcher
// 投递结果不影响提交位点，失败的通知不会重放
type Consumer struct {
	reader     MessageReader
	dispatcher *Dispatcher
	log        *zap.Logger
	backoff    time.Duration
}

func NewConsumer(reader MessageReader, dispatcher *Dispatcher, log *zap.Logger) *Consumer {
	return &Consumer{
		reader:     reader,
		dispatcher: dispatcher,
		log:        log.Named("consumer"),
		backoff:    time.Second,
	}
}

func NewKafkaReader(brokers []string, groupID, topic string) *kafkago.Reader {
	return kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

// Run 阻塞直到 ctx 取消
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			c.log.Warn("kafka read", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.backoff):
			}
			continue
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.log.Warn("commit offset", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafkago.Message) {
	env, err := event.Parse(msg.Value)
	if err != nil {
		c.log.Error("unmarshal wallet event", zap.Int64("offset", msg.Offset), zap.Error(err))
		return
	}
	c.dispatcher.Handle(ctx, env)
}

package job

import (
	"context"
	"sync"
	"time"

	"coinledger/internal/infrastructure/metrics"
	"coinledger/internal/infrastructure/mq"
	"coinledger/internal/model"
	"coinledger/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OutboxSender 把已提交的 outbox 事件投递到 Kafka
//
// 定时轮询兜底，业务提交后通过 Kick 立即唤醒。
// 投递失败只影响该消息的重试计数，不会回滚任何资金变更。
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	publisher  mq.Publisher
	log        *zap.Logger
	interval   time.Duration
	batchSize  int
	maxRetry   int

	kick     chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewOutboxSender(db *gorm.DB, publisher mq.Publisher, maxRetry int, log *zap.Logger) *OutboxSender {
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db),
		publisher:  publisher,
		log:        log.Named("outbox_sender"),
		interval:   500 * time.Millisecond,
		batchSize:  100,
		maxRetry:   maxRetry,
		kick:       make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
	}
}

// Kick 非阻塞唤醒，已有待处理信号时直接丢弃
func (s *OutboxSender) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	s.log.Info("outbox sender started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("outbox sender exiting", zap.Error(ctx.Err()))
			return
		case <-s.stopCh:
			s.log.Info("outbox sender stopped")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		case <-s.kick:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// processPendingMessages 处理一批消息，返回成功投递数
func (s *OutboxSender) processPendingMessages(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPending(ctx, s.batchSize)
	if err != nil {
		s.log.Error("load pending messages failed", zap.Error(err))
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if s.sendMessage(ctx, msg) {
			sent++
		}
	}
	return sent
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	err := s.publisher.Publish(ctx, msg.Topic, msg.MessageKey, []byte(msg.Payload))
	if err == nil {
		if err := s.outboxRepo.MarkSent(ctx, msg.ID); err != nil {
			s.log.Error("mark message sent failed", zap.Int64("id", msg.ID), zap.Error(err))
			return false
		}
		metrics.OutboxSent.Inc()
		s.log.Debug("message sent",
			zap.Int64("id", msg.ID),
			zap.String("event_type", msg.EventType),
			zap.Int64("user_id", msg.UserID),
		)
		return true
	}

	s.log.Warn("publish failed", zap.Int64("id", msg.ID), zap.Int("retry_count", msg.RetryCount), zap.Error(err))

	exhausted, recErr := s.outboxRepo.RecordFailure(ctx, msg.ID, s.maxRetry, model.TruncateError(err))
	if recErr != nil {
		s.log.Error("record failure failed", zap.Int64("id", msg.ID), zap.Error(recErr))
		return false
	}
	if exhausted {
		metrics.OutboxFailed.Inc()
		s.log.Error("message exceeded max retries", zap.Int64("id", msg.ID), zap.String("event_type", msg.EventType))
	}
	return false
}

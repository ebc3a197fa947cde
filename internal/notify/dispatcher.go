// Package notify 消费钱包事件并转成面向用户的通知
package notify

import (
	"context"
	"fmt"

	"coinledger/internal/event"

	"go.uber.org/zap"
)

// Notification 渲染后的用户通知
type Notification struct {
	UserID  int64
	Subject string
	Body    string
	EventID string
}

// Sink 通知出口，邮件、推送等
type Sink interface {
	Send(ctx context.Context, n *Notification) error
}

// LogSink 只写日志，本地和测试环境使用
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Send(_ context.Context, n *Notification) error {
	s.log.Info("notification",
		zap.Int64("user_id", n.UserID),
		zap.String("subject", n.Subject),
		zap.String("body", n.Body),
		zap.String("event_id", n.EventID),
	)
	return nil
}

// CodeSource 按投递引用取出验证码，取一次即失效
type CodeSource interface {
	Take(ctx context.Context, key string) (code string, ok bool, err error)
}

// Dispatcher 尽力投递，失败只记日志，从不回头影响账本
type Dispatcher struct {
	sinks []Sink
	codes CodeSource
	log   *zap.Logger
}

func NewDispatcher(log *zap.Logger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks, log: log.Named("notify")}
}

// WithCodes 设置验证码来源，未设置时重置密码事件不投递
func (d *Dispatcher) WithCodes(codes CodeSource) *Dispatcher {
	d.codes = codes
	return d
}

// Handle 处理一条事件，返回是否至少一个出口投递成功
func (d *Dispatcher) Handle(ctx context.Context, env *event.Envelope) bool {
	payload, err := env.Decode()
	if err != nil {
		d.log.Warn("skip undecodable event", zap.String("event_id", env.ID), zap.Error(err))
		return false
	}

	body, ok := d.render(ctx, payload)
	if !ok {
		return false
	}
	n := &Notification{
		UserID:  env.UserID,
		Subject: subjectFor(env.Type),
		Body:    body,
		EventID: env.ID,
	}

	delivered := false
	for _, sink := range d.sinks {
		if err := sink.Send(ctx, n); err != nil {
			d.log.Warn("notification delivery failed",
				zap.String("event_id", env.ID),
				zap.String("event_type", string(env.Type)),
				zap.Int64("user_id", env.UserID),
				zap.Error(err),
			)
			continue
		}
		delivered = true
	}
	return delivered
}

func subjectFor(t event.Type) string {
	switch t {
	case event.TypeDepositRequested:
		return "Deposit request received"
	case event.TypeDepositApproved:
		return "Deposit approved"
	case event.TypeDepositRejected:
		return "Deposit rejected"
	case event.TypeWithdrawalRequested:
		return "Withdrawal request received"
	case event.TypeWithdrawalApproved:
		return "Withdrawal approved"
	case event.TypeWithdrawalCompleted:
		return "Withdrawal paid out"
	case event.TypeWithdrawalRejected:
		return "Withdrawal rejected"
	case event.TypeTournamentJoined:
		return "Tournament entry confirmed"
	case event.TypeParticipantRemoved:
		return "Removed from tournament"
	case event.TypeResultVerified:
		return "Tournament result verified"
	case event.TypeResultRejected:
		return "Tournament result rejected"
	case event.TypeBalanceAdjusted:
		return "Balance adjusted"
	case event.TypePasswordResetRequested:
		return "Password reset code"
	}
	return string(t)
}

func (d *Dispatcher) render(ctx context.Context, p event.Payload) (string, bool) {
	reset, ok := p.(*event.PasswordResetRequested)
	if !ok {
		return render(p), true
	}
	if d.codes == nil {
		d.log.Warn("no code source, drop password reset")
		return "", false
	}
	code, found, err := d.codes.Take(ctx, event.PasswordResetDeliveryKey(reset.DeliveryRef))
	if err != nil {
		d.log.Warn("load reset code failed", zap.String("delivery_ref", reset.DeliveryRef), zap.Error(err))
		return "", false
	}
	if !found {
		d.log.Info("reset code expired before delivery", zap.String("delivery_ref", reset.DeliveryRef))
		return "", false
	}
	return fmt.Sprintf("Your password reset code is %s. It expires at %s.", code, reset.ExpiresAt.Format("2006-01-02 15:04 MST")), true
}

func render(p event.Payload) string {
	switch v := p.(type) {
	case *event.DepositRequested:
		return fmt.Sprintf("Your deposit %s of %d coins is awaiting review.", v.RequestNo, v.Amount)
	case *event.DepositResolved:
		if v.Status == "rejected" {
			return fmt.Sprintf("Your deposit %s of %d coins was rejected. %s", v.RequestNo, v.Amount, v.AdminNote)
		}
		return fmt.Sprintf("Your deposit %s of %d coins was credited. Balance: %d.", v.RequestNo, v.Amount, v.BalanceAfter)
	case *event.WithdrawalRequested:
		return fmt.Sprintf("Your withdrawal %s of %d coins is awaiting review.", v.RequestNo, v.Amount)
	case *event.WithdrawalResolved:
		switch v.Status {
		case "rejected":
			return fmt.Sprintf("Your withdrawal %s of %d coins was rejected. %s", v.RequestNo, v.Amount, v.AdminNote)
		case "completed":
			return fmt.Sprintf("Your withdrawal %s of %d coins was paid out (ref %s). Balance: %d.", v.RequestNo, v.Amount, v.PayoutRef, v.BalanceAfter)
		}
		return fmt.Sprintf("Your withdrawal %s of %d coins was approved. Balance: %d.", v.RequestNo, v.Amount, v.BalanceAfter)
	case *event.TournamentJoined:
		return fmt.Sprintf("You joined %s for %d coins. Balance: %d.", v.TournamentName, v.EntryFee, v.BalanceAfter)
	case *event.ParticipantRemoved:
		return fmt.Sprintf("You were removed from tournament %d and refunded %d coins. Balance: %d.", v.TournamentID, v.Refund, v.BalanceAfter)
	case *event.ResultVerified:
		return fmt.Sprintf("Tournament %d: rank %d, %d kills, %d coins won. Balance: %d.", v.TournamentID, v.Rank, v.Kills, v.CoinsWon, v.BalanceAfter)
	case *event.ResultRejected:
		return fmt.Sprintf("Your result for tournament %d was rejected.", v.TournamentID)
	case *event.BalanceAdjusted:
		return fmt.Sprintf("Your balance was adjusted by %d (%s). Balance: %d.", v.Delta, v.Reason, v.BalanceAfter)
	}
	return string(p.EventType())
}

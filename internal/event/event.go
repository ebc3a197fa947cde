// Package event 定义提交后投递的钱包事件，每种事件类型对应一个固定载荷结构
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeDepositRequested       Type = "deposit.requested"
	TypeDepositApproved        Type = "deposit.approved"
	TypeDepositRejected        Type = "deposit.rejected"
	TypeWithdrawalRequested    Type = "withdrawal.requested"
	TypeWithdrawalApproved     Type = "withdrawal.approved"
	TypeWithdrawalCompleted    Type = "withdrawal.completed"
	TypeWithdrawalRejected     Type = "withdrawal.rejected"
	TypeTournamentJoined       Type = "tournament.joined"
	TypeParticipantRemoved     Type = "tournament.participant_removed"
	TypeResultVerified         Type = "tournament.result_verified"
	TypeResultRejected         Type = "tournament.result_rejected"
	TypeBalanceAdjusted        Type = "balance.adjusted"
	TypePasswordResetRequested Type = "password_reset.requested"
)

// Payload 事件载荷，类型由实现决定
type Payload interface {
	EventType() Type
}

type DepositRequested struct {
	RequestNo string `json:"request_no"`
	Amount    int64  `json:"amount"`
}

// DepositResolved 审核结果，Status 为 approved 或 rejected
type DepositResolved struct {
	RequestNo    string `json:"request_no"`
	Amount       int64  `json:"amount"`
	Status       string `json:"status"`
	BalanceAfter int64  `json:"balance_after"`
	AdminNote    string `json:"admin_note,omitempty"`
}

type WithdrawalRequested struct {
	RequestNo string `json:"request_no"`
	Amount    int64  `json:"amount"`
}

type WithdrawalResolved struct {
	RequestNo    string `json:"request_no"`
	Amount       int64  `json:"amount"`
	Status       string `json:"status"`
	BalanceAfter int64  `json:"balance_after"`
	PayoutRef    string `json:"payout_ref,omitempty"`
	AdminNote    string `json:"admin_note,omitempty"`
}

type TournamentJoined struct {
	TournamentID   int64  `json:"tournament_id"`
	TournamentName string `json:"tournament_name"`
	EntryFee       int64  `json:"entry_fee"`
	BalanceAfter   int64  `json:"balance_after"`
}

type ParticipantRemoved struct {
	TournamentID int64 `json:"tournament_id"`
	Refund       int64 `json:"refund"`
	BalanceAfter int64 `json:"balance_after"`
}

type ResultVerified struct {
	TournamentID int64 `json:"tournament_id"`
	Rank         int   `json:"rank"`
	Kills        int   `json:"kills"`
	CoinsWon     int64 `json:"coins_won"`
	BalanceAfter int64 `json:"balance_after"`
}

type ResultRejected struct {
	TournamentID int64 `json:"tournament_id"`
}

type BalanceAdjusted struct {
	Delta        int64  `json:"delta"`
	Reason       string `json:"reason"`
	BalanceAfter int64  `json:"balance_after"`
}

// PasswordResetRequested 只携带投递引用，验证码留在 OTP 存储里，通知端凭引用取一次
type PasswordResetRequested struct {
	DeliveryRef string    `json:"delivery_ref"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// PasswordResetDeliveryKey 投递引用在 OTP 存储中的键
func PasswordResetDeliveryKey(ref string) string {
	return "pwreset:delivery:" + ref
}

func (DepositRequested) EventType() Type    { return TypeDepositRequested }
func (WithdrawalRequested) EventType() Type { return TypeWithdrawalRequested }
func (TournamentJoined) EventType() Type    { return TypeTournamentJoined }
func (ParticipantRemoved) EventType() Type  { return TypeParticipantRemoved }
func (ResultVerified) EventType() Type      { return TypeResultVerified }
func (ResultRejected) EventType() Type      { return TypeResultRejected }
func (BalanceAdjusted) EventType() Type     { return TypeBalanceAdjusted }

func (PasswordResetRequested) EventType() Type { return TypePasswordResetRequested }

func (d DepositResolved) EventType() Type {
	if d.Status == "rejected" {
		return TypeDepositRejected
	}
	return TypeDepositApproved
}

func (w WithdrawalResolved) EventType() Type {
	switch w.Status {
	case "rejected":
		return TypeWithdrawalRejected
	case "completed":
		return TypeWithdrawalCompleted
	default:
		return TypeWithdrawalApproved
	}
}

// Envelope 出站消息格式
type Envelope struct {
	ID         string          `json:"id"`
	Type       Type            `json:"event_type"`
	UserID     int64           `json:"user_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

func New(userID int64, p Payload) (*Envelope, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.EventType(), err)
	}
	return &Envelope{
		ID:         uuid.NewString(),
		Type:       p.EventType(),
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}, nil
}

// Decode 按事件类型解析载荷
func (e *Envelope) Decode() (Payload, error) {
	var p Payload
	switch e.Type {
	case TypeDepositRequested:
		p = &DepositRequested{}
	case TypeDepositApproved, TypeDepositRejected:
		p = &DepositResolved{}
	case TypeWithdrawalRequested:
		p = &WithdrawalRequested{}
	case TypeWithdrawalApproved, TypeWithdrawalCompleted, TypeWithdrawalRejected:
		p = &WithdrawalResolved{}
	case TypeTournamentJoined:
		p = &TournamentJoined{}
	case TypeParticipantRemoved:
		p = &ParticipantRemoved{}
	case TypeResultVerified:
		p = &ResultVerified{}
	case TypeResultRejected:
		p = &ResultRejected{}
	case TypeBalanceAdjusted:
		p = &BalanceAdjusted{}
	case TypePasswordResetRequested:
		p = &PasswordResetRequested{}
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
	if err := json.Unmarshal(e.Payload, p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return p, nil
}

// Parse 解析消息体
func Parse(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return &env, nil
}

package model

import (
	"encoding/json"
	"fmt"
)

// TransactionMeta 流水元数据，每个类别对应一个固定结构
type TransactionMeta interface {
	Category() string
	isTransactionMeta()
}

type DepositMeta struct {
	PaymentMethod      string `json:"payment_method"`
	ExternalAccountRef string `json:"external_account_ref"`
	ProofRef           string `json:"proof_ref,omitempty"`
}

type WithdrawalMeta struct {
	PaymentMethod      string `json:"payment_method"`
	ExternalAccountRef string `json:"external_account_ref"`
	PayoutRef          string `json:"payout_ref,omitempty"`
}

type TournamentEntryMeta struct {
	TournamentID int64 `json:"tournament_id"`
}

type TournamentWinMeta struct {
	TournamentID int64 `json:"tournament_id"`
	Rank         int   `json:"rank"`
	Kills        int   `json:"kills"`
}

type RefundMeta struct {
	TournamentID  int64 `json:"tournament_id"`
	ParticipantID int64 `json:"participant_id"`
}

type AdjustmentMeta struct {
	Reason string `json:"reason"`
}

func (DepositMeta) Category() string         { return CategoryDeposit }
func (WithdrawalMeta) Category() string      { return CategoryWithdrawal }
func (TournamentEntryMeta) Category() string { return CategoryTournamentEntry }
func (TournamentWinMeta) Category() string   { return CategoryTournamentWin }
func (RefundMeta) Category() string          { return CategoryRefund }
func (AdjustmentMeta) Category() string      { return CategoryAdjustment }

func (DepositMeta) isTransactionMeta()         {}
func (WithdrawalMeta) isTransactionMeta()      {}
func (TournamentEntryMeta) isTransactionMeta() {}
func (TournamentWinMeta) isTransactionMeta()   {}
func (RefundMeta) isTransactionMeta()          {}
func (AdjustmentMeta) isTransactionMeta()      {}

// EncodeMeta 序列化元数据，类别不一致时报错
func EncodeMeta(category string, meta TransactionMeta) (string, error) {
	if meta == nil {
		return "", nil
	}
	if meta.Category() != category {
		return "", fmt.Errorf("meta for %q attached to %q transaction", meta.Category(), category)
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encode meta: %w", err)
	}
	return string(raw), nil
}

// DecodeMeta 按类别反序列化元数据
func DecodeMeta(category, raw string) (TransactionMeta, error) {
	if raw == "" {
		return nil, nil
	}

	var meta TransactionMeta
	switch category {
	case CategoryDeposit:
		meta = &DepositMeta{}
	case CategoryWithdrawal:
		meta = &WithdrawalMeta{}
	case CategoryTournamentEntry:
		meta = &TournamentEntryMeta{}
	case CategoryTournamentWin:
		meta = &TournamentWinMeta{}
	case CategoryRefund:
		meta = &RefundMeta{}
	case CategoryAdjustment:
		meta = &AdjustmentMeta{}
	default:
		return nil, fmt.Errorf("unknown transaction category %q", category)
	}

	if err := json.Unmarshal([]byte(raw), meta); err != nil {
		return nil, fmt.Errorf("decode %s meta: %w", category, err)
	}
	return meta, nil
}

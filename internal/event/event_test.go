package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_DecodeByType(t *testing.T) {
	env, err := New(42, WithdrawalResolved{RequestNo: "WDR1", Amount: 100, Status: "completed", PayoutRef: "utr-9"})
	require.NoError(t, err)
	assert.Equal(t, TypeWithdrawalCompleted, env.Type)
	assert.NotEmpty(t, env.ID)

	raw, err := json.Marshal(env)
	require.NoError(t, err)

	parsed, err := Parse(raw)
	require.NoError(t, err)
	p, err := parsed.Decode()
	require.NoError(t, err)

	resolved, ok := p.(*WithdrawalResolved)
	require.True(t, ok)
	assert.Equal(t, "utr-9", resolved.PayoutRef)
	assert.Equal(t, int64(42), parsed.UserID)
}

func TestEnvelope_UnknownType(t *testing.T) {
	env := &Envelope{Type: "nope", Payload: json.RawMessage(`{}`)}
	_, err := env.Decode()
	assert.Error(t, err)
}

func TestDepositResolved_EventType(t *testing.T) {
	assert.Equal(t, TypeDepositRejected, DepositResolved{Status: "rejected"}.EventType())
	assert.Equal(t, TypeDepositApproved, DepositResolved{Status: "approved"}.EventType())
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"coinledger/internal/model"
	"coinledger/internal/otp"
	"coinledger/internal/service"
	"coinledger/internal/testutil"
	"coinledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testAdminID  int64 = 900
	testPassword       = "secret-pass"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	_, client := testutil.NewTestRedis(t)
	store := otp.NewMemoryStore(0)
	t.Cleanup(store.Close)

	d := service.Deps{
		DB:     testutil.NewTestDB(t),
		Redis:  client,
		Config: testutil.TestConfig(),
		Logger: zap.NewNop(),
	}

	_, err := service.NewAccountService(d).Register(context.Background(), &service.RegisterRequest{
		UserID:   testAdminID,
		Password: testPassword,
		Role:     model.RoleAdmin,
	})
	require.NoError(t, err)

	return &testServer{router: SetupRouter(d, store)}
}

func (s *testServer) call(t *testing.T, method, path string, body interface{}, adminID int64) envelope {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if adminID != 0 {
		req.Header.Set(adminIDHeader, fmt.Sprintf("%d", adminID))
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func (s *testServer) ok(t *testing.T, method, path string, body interface{}, adminID int64, out interface{}) {
	t.Helper()
	env := s.call(t, method, path, body, adminID)
	require.Equal(t, response.CodeSuccess, env.Code, env.Message)
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
}

func (s *testServer) balance(t *testing.T, userID int64) int64 {
	t.Helper()
	var out struct {
		Balance int64 `json:"balance"`
	}
	s.ok(t, http.MethodGet, fmt.Sprintf("/api/v1/account/balance?user_id=%d", userID), nil, 0, &out)
	return out.Balance
}

func (s *testServer) registerUser(t *testing.T, userID, initial int64) {
	t.Helper()
	s.ok(t, http.MethodPost, "/api/v1/admin/account/register", gin.H{
		"user_id":         userID,
		"password":        testPassword,
		"initial_balance": initial,
	}, testAdminID, nil)
}

func TestExampleTraceOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.registerUser(t, 1, 500)
	assert.Equal(t, int64(500), s.balance(t, 1))

	var deposit model.DepositRequest
	s.ok(t, http.MethodPost, "/api/v1/deposit/create", gin.H{
		"user_id":              1,
		"amount":               200,
		"payment_method":       "bank_transfer",
		"external_account_ref": "acct-001",
	}, 0, &deposit)
	assert.Equal(t, model.RequestStatusPending, deposit.Status)
	assert.Equal(t, int64(500), s.balance(t, 1))

	s.ok(t, http.MethodPost, "/api/v1/admin/deposit/resolve", gin.H{
		"request_no": deposit.RequestNo,
		"decision":   service.DecisionApprove,
	}, testAdminID, nil)
	assert.Equal(t, int64(700), s.balance(t, 1))

	var tournament model.Tournament
	s.ok(t, http.MethodPost, "/api/v1/admin/tournament/create", gin.H{
		"name":             "Friday Cup",
		"entry_fee":        150,
		"max_participants": 10,
		"prizes":           []gin.H{{"rank": 1, "coins": 300}},
	}, testAdminID, &tournament)
	assert.Equal(t, model.TournamentStatusDraft, tournament.Status)

	for _, status := range []string{model.TournamentStatusApproved, model.TournamentStatusLive} {
		s.ok(t, http.MethodPost, "/api/v1/admin/tournament/status", gin.H{
			"tournament_id": tournament.ID,
			"status":        status,
		}, testAdminID, nil)
	}

	var participant model.TournamentParticipant
	s.ok(t, http.MethodPost, "/api/v1/tournament/join", gin.H{
		"user_id":       1,
		"tournament_id": tournament.ID,
	}, 0, &participant)
	assert.Equal(t, int64(550), s.balance(t, 1))

	s.ok(t, http.MethodPost, "/api/v1/admin/tournament/verify", gin.H{
		"tournament_id":  tournament.ID,
		"participant_id": participant.ID,
		"rank":           1,
		"kills":          3,
	}, testAdminID, nil)
	assert.Equal(t, int64(850), s.balance(t, 1))

	var history struct {
		Total int64 `json:"total"`
		List  []struct {
			Category     string `json:"category"`
			Status       string `json:"status"`
			BalanceAfter int64  `json:"balance_after"`
		} `json:"list"`
	}
	s.ok(t, http.MethodGet, "/api/v1/account/transactions?user_id=1", nil, 0, &history)
	assert.Equal(t, int64(3), history.Total)
	require.Len(t, history.List, 3)
	assert.Equal(t, model.CategoryTournamentWin, history.List[0].Category)
	assert.Equal(t, int64(850), history.List[0].BalanceAfter)

	// 重复确认不再发奖
	env := s.call(t, http.MethodPost, "/api/v1/admin/tournament/verify", gin.H{
		"tournament_id":  tournament.ID,
		"participant_id": participant.ID,
		"rank":           1,
	}, testAdminID)
	assert.Equal(t, response.CodeInvalidState, env.Code)
	assert.Equal(t, int64(850), s.balance(t, 1))
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t)
	s.registerUser(t, 1, 0)

	body := gin.H{"request_no": "DEP1", "decision": "approve"}

	env := s.call(t, http.MethodPost, "/api/v1/admin/deposit/resolve", body, 0)
	assert.Equal(t, response.CodeUnauthorized, env.Code)

	env = s.call(t, http.MethodPost, "/api/v1/admin/deposit/resolve", body, 1)
	assert.Equal(t, response.CodeForbidden, env.Code)

	env = s.call(t, http.MethodPost, "/api/v1/admin/deposit/resolve", body, testAdminID)
	assert.Equal(t, response.CodeNotFound, env.Code)
}

func TestPublicRegisterCannotEscalate(t *testing.T) {
	s := newTestServer(t)

	s.ok(t, http.MethodPost, "/api/v1/account/register", gin.H{
		"user_id":         5,
		"password":        testPassword,
		"role":            model.RoleAdmin,
		"initial_balance": 1000000,
	}, 0, nil)
	assert.Equal(t, int64(0), s.balance(t, 5))

	env := s.call(t, http.MethodGet, "/api/v1/admin/deposit/pending", nil, 5)
	assert.Equal(t, response.CodeForbidden, env.Code)

	env = s.call(t, http.MethodPost, "/api/v1/account/register", gin.H{"user_id": 5, "password": testPassword}, 0)
	assert.Equal(t, response.CodeDuplicateAccount, env.Code)
}

func TestBusinessErrorCodes(t *testing.T) {
	s := newTestServer(t)
	s.registerUser(t, 1, 120)

	env := s.call(t, http.MethodPost, "/api/v1/withdrawal/create", gin.H{
		"user_id":              1,
		"amount":               500,
		"payment_method":       "bank_transfer",
		"external_account_ref": "acct-001",
		"password":             testPassword,
	}, 0)
	assert.Equal(t, response.CodeInsufficientBalance, env.Code)

	env = s.call(t, http.MethodPost, "/api/v1/withdrawal/create", gin.H{
		"user_id":              1,
		"amount":               100,
		"payment_method":       "bank_transfer",
		"external_account_ref": "acct-001",
		"password":             "wrong-pass",
	}, 0)
	assert.Equal(t, response.CodeInvalidCredential, env.Code)

	env = s.call(t, http.MethodPost, "/api/v1/deposit/create", gin.H{
		"user_id":              1,
		"amount":               10,
		"payment_method":       "bank_transfer",
		"external_account_ref": "acct-001",
	}, 0)
	assert.Equal(t, response.CodeParamError, env.Code)

	env = s.call(t, http.MethodGet, "/api/v1/account/balance?user_id=abc", nil, 0)
	assert.Equal(t, response.CodeParamError, env.Code)

	env = s.call(t, http.MethodGet, "/api/v1/account/balance?user_id=404", nil, 0)
	assert.Equal(t, response.CodeNotFound, env.Code)
	assert.Equal(t, int64(120), s.balance(t, 1))
}

func TestJoinTwice(t *testing.T) {
	s := newTestServer(t)
	s.registerUser(t, 1, 100)

	var tournament model.Tournament
	s.ok(t, http.MethodPost, "/api/v1/admin/tournament/create", gin.H{
		"name":             "Free Roll",
		"max_participants": 2,
	}, testAdminID, &tournament)
	s.ok(t, http.MethodPost, "/api/v1/admin/tournament/status", gin.H{
		"tournament_id": tournament.ID,
		"status":        model.TournamentStatusApproved,
	}, testAdminID, nil)

	join := gin.H{"user_id": 1, "tournament_id": tournament.ID}
	s.ok(t, http.MethodPost, "/api/v1/tournament/join", join, 0, nil)

	env := s.call(t, http.MethodPost, "/api/v1/tournament/join", join, 0)
	assert.Equal(t, response.CodeAlreadyJoined, env.Code)
	assert.Equal(t, int64(100), s.balance(t, 1))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

package handler

import (
	"coinledger/internal/service"
	"coinledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// CreateDeposit 提交充值申请
// POST /api/v1/deposit/create
func (h *Handler) CreateDeposit(c *gin.Context) {
	var req service.CreateDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	deposit, err := h.depositService.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, deposit)
}

// GetDeposit GET /api/v1/deposit/detail?request_no=xxx
func (h *Handler) GetDeposit(c *gin.Context) {
	requestNo := c.Query("request_no")
	if requestNo == "" {
		response.ParamError(c, "request_no 不能为空")
		return
	}

	deposit, err := h.depositService.Get(c.Request.Context(), requestNo)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, deposit)
}

// ListDeposits GET /api/v1/deposit/list?user_id=xxx
func (h *Handler) ListDeposits(c *gin.Context) {
	userID, ok := queryInt64(c, "user_id")
	if !ok {
		return
	}
	page, pageSize := pageParams(c)

	list, total, err := h.depositService.ListByUser(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Paged(c, list, total, page, pageSize)
}

// CreateWithdrawal 提交提现申请，需要登录密码
// POST /api/v1/withdrawal/create
func (h *Handler) CreateWithdrawal(c *gin.Context) {
	var req service.CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	withdrawal, err := h.withdrawalService.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, withdrawal)
}

// GetWithdrawal GET /api/v1/withdrawal/detail?request_no=xxx
func (h *Handler) GetWithdrawal(c *gin.Context) {
	requestNo := c.Query("request_no")
	if requestNo == "" {
		response.ParamError(c, "request_no 不能为空")
		return
	}

	withdrawal, err := h.withdrawalService.Get(c.Request.Context(), requestNo)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, withdrawal)
}

// ListWithdrawals GET /api/v1/withdrawal/list?user_id=xxx
func (h *Handler) ListWithdrawals(c *gin.Context) {
	userID, ok := queryInt64(c, "user_id")
	if !ok {
		return
	}
	page, pageSize := pageParams(c)

	list, total, err := h.withdrawalService.ListByUser(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Paged(c, list, total, page, pageSize)
}

type joinTournamentRequest struct {
	UserID       int64 `json:"user_id" binding:"required"`
	TournamentID int64 `json:"tournament_id" binding:"required"`
}

// JoinTournament 报名并扣除报名费
// POST /api/v1/tournament/join
func (h *Handler) JoinTournament(c *gin.Context) {
	var req joinTournamentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	participant, err := h.tournamentService.Join(c.Request.Context(), req.UserID, req.TournamentID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, participant)
}

// GetTournament GET /api/v1/tournament/detail?tournament_id=xxx
func (h *Handler) GetTournament(c *gin.Context) {
	tournamentID, ok := queryInt64(c, "tournament_id")
	if !ok {
		return
	}

	tournament, err := h.tournamentService.Get(c.Request.Context(), tournamentID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, tournament)
}

// ListParticipants GET /api/v1/tournament/participants?tournament_id=xxx
func (h *Handler) ListParticipants(c *gin.Context) {
	tournamentID, ok := queryInt64(c, "tournament_id")
	if !ok {
		return
	}

	list, err := h.tournamentService.ListParticipants(c.Request.Context(), tournamentID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, list)
}

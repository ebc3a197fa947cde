package handler

import (
	"coinledger/internal/service"
	"coinledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// ============================================================
// 管理端接口，操作人来自 AdminAuthMiddleware，角色校验在服务层
// ============================================================

// ResolveDeposit POST /api/v1/admin/deposit/resolve
func (h *Handler) ResolveDeposit(c *gin.Context) {
	var req service.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	req.AdminID = adminIDFrom(c)

	deposit, err := h.adminService.ResolveDeposit(c.Request.Context(), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, deposit)
}

// ResolveWithdrawal POST /api/v1/admin/withdrawal/resolve
// decision 为 approve / complete / reject，complete 时 external_ref 为打款凭证
func (h *Handler) ResolveWithdrawal(c *gin.Context) {
	var req service.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	req.AdminID = adminIDFrom(c)

	withdrawal, err := h.adminService.ResolveWithdrawal(c.Request.Context(), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, withdrawal)
}

// ListPendingDeposits GET /api/v1/admin/deposit/pending
func (h *Handler) ListPendingDeposits(c *gin.Context) {
	page, pageSize := pageParams(c)
	list, total, err := h.adminService.ListPendingDeposits(c.Request.Context(), adminIDFrom(c), page, pageSize)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Paged(c, list, total, page, pageSize)
}

// ListPendingWithdrawals GET /api/v1/admin/withdrawal/pending
func (h *Handler) ListPendingWithdrawals(c *gin.Context) {
	page, pageSize := pageParams(c)
	list, total, err := h.adminService.ListPendingWithdrawals(c.Request.Context(), adminIDFrom(c), page, pageSize)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Paged(c, list, total, page, pageSize)
}

// RegisterAccount 管理员开户，可指定角色
// POST /api/v1/admin/account/register
func (h *Handler) RegisterAccount(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	account, err := h.adminService.RegisterAccount(c.Request.Context(), adminIDFrom(c), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, account)
}

// Adjust POST /api/v1/admin/account/adjust
func (h *Handler) Adjust(c *gin.Context) {
	var req service.AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	req.AdminID = adminIDFrom(c)

	trans, err := h.adminService.Adjust(c.Request.Context(), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, trans)
}

// CreateTournament POST /api/v1/admin/tournament/create
func (h *Handler) CreateTournament(c *gin.Context) {
	var req service.CreateTournamentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	req.AdminID = adminIDFrom(c)

	tournament, err := h.adminService.CreateTournament(c.Request.Context(), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, tournament)
}

type tournamentStatusRequest struct {
	TournamentID int64  `json:"tournament_id" binding:"required"`
	Status       string `json:"status" binding:"required"`
}

// UpdateTournamentStatus POST /api/v1/admin/tournament/status
func (h *Handler) UpdateTournamentStatus(c *gin.Context) {
	var req tournamentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	tournament, err := h.adminService.UpdateTournamentStatus(c.Request.Context(), adminIDFrom(c), req.TournamentID, req.Status)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, tournament)
}

type participantRequest struct {
	TournamentID  int64 `json:"tournament_id" binding:"required"`
	ParticipantID int64 `json:"participant_id" binding:"required"`
}

// RemoveParticipant 移除报名并退还报名费
// POST /api/v1/admin/tournament/remove-participant
func (h *Handler) RemoveParticipant(c *gin.Context) {
	var req participantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.adminService.RemoveParticipant(c.Request.Context(), req.TournamentID, req.ParticipantID, adminIDFrom(c)); err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, nil)
}

// VerifyResult 确认成绩并发放奖金
// POST /api/v1/admin/tournament/verify
func (h *Handler) VerifyResult(c *gin.Context) {
	var req service.VerifyResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	req.AdminID = adminIDFrom(c)

	participant, err := h.adminService.VerifyResult(c.Request.Context(), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, participant)
}

// RejectResult POST /api/v1/admin/tournament/reject-result
func (h *Handler) RejectResult(c *gin.Context) {
	var req participantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	participant, err := h.adminService.RejectResult(c.Request.Context(), req.TournamentID, req.ParticipantID, adminIDFrom(c))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, participant)
}

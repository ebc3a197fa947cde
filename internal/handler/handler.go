package handler

import (
	"errors"
	"strconv"

	"coinledger/internal/model"
	"coinledger/internal/otp"
	"coinledger/internal/service"
	"coinledger/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	accountService    *service.AccountService
	authService       *service.AuthService
	depositService    *service.DepositService
	withdrawalService *service.WithdrawalService
	tournamentService *service.TournamentService
	adminService      *service.AdminService
	log               *zap.Logger
}

func NewHandler(d service.Deps, otpStore otp.Store) *Handler {
	deposits := service.NewDepositService(d)
	withdrawals := service.NewWithdrawalService(d)
	tournaments := service.NewTournamentService(d)
	return &Handler{
		accountService:    service.NewAccountService(d),
		authService:       service.NewAuthService(d, otpStore),
		depositService:    deposits,
		withdrawalService: withdrawals,
		tournamentService: tournaments,
		adminService:      service.NewAdminService(d, deposits, withdrawals, tournaments),
		log:               d.Logger.Named("handler"),
	}
}

// handleError 把服务层错误映射为业务码
func (h *Handler) handleError(c *gin.Context, err error) {
	var insufficient *service.InsufficientBalanceError
	switch {
	case errors.As(err, &insufficient):
		response.BusinessError(c, response.CodeInsufficientBalance, err.Error())
	case errors.Is(err, service.ErrInvalidAmount), errors.Is(err, service.ErrInvalidArgument):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrInvalidState):
		response.BusinessError(c, response.CodeInvalidState, err.Error())
	case errors.Is(err, service.ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, err.Error())
	case errors.Is(err, service.ErrAccountInactive):
		response.BusinessError(c, response.CodeAccountInactive, err.Error())
	case errors.Is(err, service.ErrAccountExists):
		response.BusinessError(c, response.CodeDuplicateAccount, err.Error())
	case errors.Is(err, service.ErrInvalidCredential):
		response.BusinessError(c, response.CodeInvalidCredential, err.Error())
	case errors.Is(err, service.ErrInvalidOTP):
		response.BusinessError(c, response.CodeInvalidOTP, err.Error())
	case errors.Is(err, service.ErrTournamentClosed):
		response.BusinessError(c, response.CodeTournamentClosed, err.Error())
	case errors.Is(err, service.ErrTournamentFull):
		response.BusinessError(c, response.CodeTournamentFull, err.Error())
	case errors.Is(err, service.ErrAlreadyJoined):
		response.BusinessError(c, response.CodeAlreadyJoined, err.Error())
	case errors.Is(err, service.ErrBusy):
		response.BusinessError(c, response.CodeBusy, err.Error())
	default:
		h.log.Error("unhandled error",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		response.ServerError(c, "系统内部错误")
	}
}

func queryInt64(c *gin.Context, key string) (int64, bool) {
	v, err := strconv.ParseInt(c.Query(key), 10, 64)
	if err != nil || v <= 0 {
		response.ParamError(c, key+" 参数错误")
		return 0, false
	}
	return v, true
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, pageSize
}

// ============================================================
// 账户
// ============================================================

// Register 开户，公开接口只能创建零余额的普通用户
// POST /api/v1/account/register
func (h *Handler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	req.Role = model.RoleUser
	req.InitialBalance = 0

	account, err := h.accountService.Register(c.Request.Context(), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, account)
}

// GetBalance 查询余额
// GET /api/v1/account/balance?user_id=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	userID, ok := queryInt64(c, "user_id")
	if !ok {
		return
	}

	account, err := h.accountService.GetAccount(c.Request.Context(), userID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	response.Success(c, gin.H{
		"user_id":      account.UserID,
		"balance":      account.Balance,
		"total_earned": account.TotalEarned,
		"total_spent":  account.TotalSpent,
		"wins":         account.Wins,
		"kills":        account.Kills,
		"status":       account.Status,
	})
}

// ListTransactions 流水分页
// GET /api/v1/account/transactions?user_id=xxx&page=1&page_size=20
func (h *Handler) ListTransactions(c *gin.Context) {
	userID, ok := queryInt64(c, "user_id")
	if !ok {
		return
	}
	page, pageSize := pageParams(c)

	list, total, err := h.accountService.ListTransactions(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Paged(c, list, total, page, pageSize)
}

type passwordResetRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// RequestPasswordReset 下发验证码，结果统一返回成功
// POST /api/v1/auth/password-reset/request
func (h *Handler) RequestPasswordReset(c *gin.Context) {
	var req passwordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.authService.RequestPasswordReset(c.Request.Context(), req.UserID); err != nil && !errors.Is(err, service.ErrNotFound) {
		h.handleError(c, err)
		return
	}
	response.Success(c, nil)
}

type passwordResetConfirm struct {
	UserID      int64  `json:"user_id" binding:"required"`
	Code        string `json:"code" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// ResetPassword 校验验证码并更新密码
// POST /api/v1/auth/password-reset/confirm
func (h *Handler) ResetPassword(c *gin.Context) {
	var req passwordResetConfirm
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.authService.ResetPassword(c.Request.Context(), req.UserID, req.Code, req.NewPassword); err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, nil)
}

package handler

import (
	"context"
	"time"

	"coinledger/internal/otp"
	"coinledger/internal/service"

	"github.com/gin-gonic/gin"
)

// SetupRouter 配置路由
func SetupRouter(d service.Deps, otpStore otp.Store) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	log := d.Logger.Named("http")
	r.Use(RecoveryMiddleware(log))
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware())

	h := NewHandler(d, otpStore)

	api := r.Group("/api/v1")
	{
		account := api.Group("/account")
		{
			account.POST("/register", h.Register)
			account.GET("/balance", h.GetBalance)
			account.GET("/transactions", h.ListTransactions)
		}

		auth := api.Group("/auth")
		{
			auth.POST("/password-reset/request", h.RequestPasswordReset)
			auth.POST("/password-reset/confirm", h.ResetPassword)
		}

		deposit := api.Group("/deposit")
		{
			deposit.POST("/create", h.CreateDeposit)
			deposit.GET("/detail", h.GetDeposit)
			deposit.GET("/list", h.ListDeposits)
		}

		withdrawal := api.Group("/withdrawal")
		{
			withdrawal.POST("/create", h.CreateWithdrawal)
			withdrawal.GET("/detail", h.GetWithdrawal)
			withdrawal.GET("/list", h.ListWithdrawals)
		}

		tournament := api.Group("/tournament")
		{
			tournament.POST("/join", h.JoinTournament)
			tournament.GET("/detail", h.GetTournament)
			tournament.GET("/participants", h.ListParticipants)
		}

		admin := api.Group("/admin", AdminAuthMiddleware())
		{
			admin.POST("/account/register", h.RegisterAccount)
			admin.POST("/account/adjust", h.Adjust)

			admin.GET("/deposit/pending", h.ListPendingDeposits)
			admin.POST("/deposit/resolve", h.ResolveDeposit)

			admin.GET("/withdrawal/pending", h.ListPendingWithdrawals)
			admin.POST("/withdrawal/resolve", h.ResolveWithdrawal)

			admin.POST("/tournament/create", h.CreateTournament)
			admin.POST("/tournament/status", h.UpdateTournamentStatus)
			admin.POST("/tournament/remove-participant", h.RemoveParticipant)
			admin.POST("/tournament/verify", h.VerifyResult)
			admin.POST("/tournament/reject-result", h.RejectResult)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		sqlDB, err := d.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			c.JSON(503, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}

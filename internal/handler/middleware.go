package handler

import (
	"strconv"
	"time"

	"coinledger/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	adminIDHeader = "X-Admin-ID"
	adminIDKey    = "admin_id"
)

// LoggerMiddleware 请求日志
func LoggerMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
		}
		if query != "" {
			fields = append(fields, zap.String("query", query))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		log.Info("http request", fields...)
	}
}

// RecoveryMiddleware 捕获 panic，返回 500
func RecoveryMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error("panic recovered",
					zap.Any("panic", err),
					zap.String("path", c.Request.URL.Path),
					zap.Stack("stack"),
				)
				c.AbortWithStatusJSON(500, response.Response{
					Code:    response.CodeServerError,
					Message: "internal error",
				})
			}
		}()
		c.Next()
	}
}

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Request-ID, "+adminIDHeader)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// AdminAuthMiddleware 解析操作人 ID，是否具备管理员角色由服务层判断
func AdminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		adminID, err := strconv.ParseInt(c.GetHeader(adminIDHeader), 10, 64)
		if err != nil || adminID <= 0 {
			response.Unauthorized(c, adminIDHeader+" 缺失或不合法")
			return
		}
		c.Set(adminIDKey, adminID)
		c.Next()
	}
}

func adminIDFrom(c *gin.Context) int64 {
	return c.GetInt64(adminIDKey)
}

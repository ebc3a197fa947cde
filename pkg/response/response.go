// Package response 统一 JSON 响应，业务错误一律 HTTP 200 + 业务码
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess      = 0
	CodeParamError   = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeServerError  = 500
)

// 钱包业务错误码，1xxx
const (
	CodeInsufficientBalance = 1001
	CodeInvalidState        = 1002
	CodeAccountInactive     = 1003
	CodeTournamentClosed    = 1004
	CodeTournamentFull      = 1005
	CodeAlreadyJoined       = 1006
	CodeInvalidCredential   = 1007
	CodeInvalidOTP          = 1008
	CodeBusy                = 1009
	CodeDuplicateAccount    = 1010
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Page 分页列表
type Page struct {
	List     interface{} `json:"list"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

func write(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: code, Message: message, Data: data})
}

func Success(c *gin.Context, data interface{}) {
	write(c, CodeSuccess, "success", data)
}

func Paged(c *gin.Context, list interface{}, total int64, page, pageSize int) {
	Success(c, Page{List: list, Total: total, Page: page, PageSize: pageSize})
}

func Error(c *gin.Context, code int, message string) {
	write(c, code, message, nil)
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, CodeNotFound, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, CodeForbidden, message)
}

// Unauthorized 中断后续 handler
func Unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusOK, Response{Code: CodeUnauthorized, Message: message})
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, code, message)
}

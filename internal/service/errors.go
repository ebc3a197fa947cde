package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount       = errors.New("金额不合法")
	ErrInvalidArgument     = errors.New("参数错误")
	ErrInvalidCredential   = errors.New("密码错误")
	ErrInvalidOTP          = errors.New("验证码错误或已过期")
	ErrInsufficientBalance = errors.New("余额不足")
	ErrInvalidState        = errors.New("状态不允许该操作")
	ErrNotFound            = errors.New("记录不存在")
	ErrAccountExists       = errors.New("账户已存在")
	ErrAccountInactive     = errors.New("账户已停用")
	ErrForbidden           = errors.New("无权限")
	ErrTournamentClosed    = errors.New("赛事未开放报名")
	ErrTournamentFull      = errors.New("赛事名额已满")
	ErrAlreadyJoined       = errors.New("已报名该赛事")
	ErrBusy                = errors.New("系统繁忙，请稍后重试")
)

// InsufficientBalanceError 余额不足，携带当前可用余额
type InsufficientBalanceError struct {
	UserID    int64
	Available int64
	Requested int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("用户 %d 余额不足: 可用 %d, 需要 %d", e.UserID, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// InvalidStateError 记录已不在可操作状态
type InvalidStateError struct {
	Entity string
	ID     string
	Status string
}

func (e *InvalidStateError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("%s %s 已被处理", e.Entity, e.ID)
	}
	return fmt.Sprintf("%s %s 当前状态: %s", e.Entity, e.ID, e.Status)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

func invalidArg(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

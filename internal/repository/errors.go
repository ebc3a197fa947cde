package repository

import "errors"

var (
	ErrNotFound         = errors.New("记录不存在")
	ErrBalanceNotEnough = errors.New("余额不足")
	ErrOptimisticLock   = errors.New("乐观锁冲突，请重试")
	// ErrStatusConflict 条件更新未命中：记录已不在预期状态
	ErrStatusConflict = errors.New("状态已变更")
	ErrTournamentFull = errors.New("赛事名额已满")
)

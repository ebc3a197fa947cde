// Package idgen 生成趋势递增的业务单号
//
// 布局：1 位符号 | 41 位毫秒时间戳 | 10 位节点 | 12 位序列
package idgen

import (
	"fmt"
	"sync"
	"time"
)

const (
	epochMs = int64(1704067200000) // 2024-01-01T00:00:00Z

	nodeBits = 10
	seqBits  = 12

	MaxNode = 1<<nodeBits - 1
	seqMask = 1<<seqBits - 1

	nodeShift = seqBits
	timeShift = seqBits + nodeBits
)

// Snowflake 单节点生成器，并发安全
type Snowflake struct {
	mu     sync.Mutex
	node   int64
	lastMs int64
	seq    int64
	now    func() int64
}

var (
	defaultGen *Snowflake
	initOnce   sync.Once
)

// Init 设置进程级节点号，只有第一次调用生效
func Init(node int64) {
	initOnce.Do(func() {
		defaultGen = New(node)
	})
}

// New 节点号超出 [0, MaxNode] 时取低 10 位
func New(node int64) *Snowflake {
	return &Snowflake{
		node: node & MaxNode,
		now:  func() int64 { return time.Now().UnixMilli() },
	}
}

func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := s.now()
	if ms < s.lastMs {
		// 时钟回拨
		ms = s.lastMs
	}

	if ms == s.lastMs {
		s.seq = (s.seq + 1) & seqMask
		if s.seq == 0 {
			ms = s.waitAfter(s.lastMs)
		}
	} else {
		s.seq = 0
	}
	s.lastMs = ms

	return (ms-epochMs)<<timeShift | s.node<<nodeShift | s.seq
}

func (s *Snowflake) waitAfter(ms int64) int64 {
	next := s.now()
	for next <= ms {
		time.Sleep(100 * time.Microsecond)
		next = s.now()
	}
	return next
}

// Decompose 拆出生成时间、节点号与序列号，排查单号来源用
func Decompose(id int64) (at time.Time, node, seq int64) {
	ms := id>>timeShift + epochMs
	return time.UnixMilli(ms), id >> nodeShift & MaxNode, id & seqMask
}

// NextID 未调用 Init 时按节点 1 初始化
func NextID() int64 {
	Init(1)
	return defaultGen.Generate()
}

func GenerateDepositNo() string {
	return fmt.Sprintf("DEP%d", NextID())
}

func GenerateWithdrawalNo() string {
	return fmt.Sprintf("WDR%d", NextID())
}

func GenerateTransactionNo() string {
	return fmt.Sprintf("TXN%d", NextID())
}

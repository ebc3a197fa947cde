// Package otp 一次性验证码存储，每个条目带过期时间，校验成功即删除
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"
)

var ErrInvalidLength = errors.New("otp length must be positive")

type Store interface {
	Put(ctx context.Context, key, code string, ttl time.Duration) error
	// Verify 匹配时消费该验证码并返回 true
	Verify(ctx context.Context, key, code string) (bool, error)
	Delete(ctx context.Context, key string) error
	// Take 取出并删除，不存在或已过期时 ok 为 false
	Take(ctx context.Context, key string) (code string, ok bool, err error)
}

// Generate 生成 n 位数字验证码
func Generate(n int) (string, error) {
	if n <= 0 {
		return "", ErrInvalidLength
	}
	buf := make([]byte, n)
	for i := range buf {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		buf[i] = byte('0' + d.Int64())
	}
	return string(buf), nil
}

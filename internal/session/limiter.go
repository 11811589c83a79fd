package session

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// CommandLimiter 基于 Token Bucket 的下行命令限速器
// 防止 HTTP 调用方高频开关数据流冲击固件。
type CommandLimiter struct {
	limiter       *rate.Limiter
	allowedCount  atomic.Int64
	rejectedCount atomic.Int64
}

// NewCommandLimiter 创建限速器
// ratePerSec<=0 表示不限速；burst<=0 时取 1。
func NewCommandLimiter(ratePerSec float64, burst int) *CommandLimiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(ratePerSec)
	if ratePerSec <= 0 {
		limit = rate.Inf
	}
	return &CommandLimiter{limiter: rate.NewLimiter(limit, burst)}
}

// Wait 等待令牌；ctx 取消或截止时间内拿不到令牌时返回 ErrRateLimited
func (l *CommandLimiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		l.rejectedCount.Add(1)
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	l.allowedCount.Add(1)
	return nil
}

// LimiterStats 限速统计
type LimiterStats struct {
	AllowedTotal  int64 `json:"allowed_total"`
	RejectedTotal int64 `json:"rejected_total"`
}

// Stats 获取统计信息
func (l *CommandLimiter) Stats() LimiterStats {
	return LimiterStats{
		AllowedTotal:  l.allowedCount.Load(),
		RejectedTotal: l.rejectedCount.Load(),
	}
}

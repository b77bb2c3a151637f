// Package backoff 实现指数退避重连机制。
// 用于行情 WebSocket 断线重连时的延迟计算，避免频繁重连被交易所限流。
// 默认基础间隔 1s，最大间隔 30s，抖动 ±20%
package backoff

import (
	"math/rand"
	"time"
)

// 默认参数
const (
	DefaultBase   = time.Second
	DefaultMax    = 30 * time.Second
	DefaultJitter = 0.2
)

// Backoff 指数退避计算器
// 每次调用 Next() 返回下一次重试的等待时间，按 base*2^attempt 增长直到 max
// 非并发安全：每个行情客户端持有独立实例
type Backoff struct {
	// base 基础等待时间
	base time.Duration
	// max 最大等待时间
	max time.Duration
	// jitter 抖动比例（0-1），例如 0.2 表示 ±20%
	jitter float64
	// attempt 当前重试次数
	attempt int
}

// New 创建新的退避计算器
// base/max 非正数时使用默认值；jitter 被限制在 [0, 1]
func New(base, max time.Duration, jitter float64) *Backoff {
	if base <= 0 {
		base = DefaultBase
	}
	if max <= 0 {
		max = DefaultMax
	}
	if max < base {
		max = base
	}
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	return &Backoff{
		base:   base,
		max:    max,
		jitter: jitter,
	}
}

// NewDefault 创建默认配置的退避计算器
func NewDefault() *Backoff {
	return New(DefaultBase, DefaultMax, DefaultJitter)
}

// Next 获取下次重试的等待时间
// 计算公式: min(base * 2^attempt, max)，然后应用抖动
func (b *Backoff) Next() time.Duration {
	delay := b.max
	// 超过 62 次位移会溢出，此时必然已达上限
	if b.attempt < 62 {
		multiplier := int64(1) << b.attempt
		if d := b.base * time.Duration(multiplier); d > 0 && d < b.max {
			delay = d
		}
	}

	if b.jitter > 0 {
		jitterFactor := 1.0 + (rand.Float64()*2-1)*b.jitter
		delay = time.Duration(float64(delay) * jitterFactor)
	}

	b.attempt++
	return delay
}

// Reset 重置退避计算器
// 在连接成功后调用
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Attempt 获取当前重试次数
func (b *Backoff) Attempt() int {
	return b.attempt
}

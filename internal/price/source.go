// Package price 提供投影期初 BTC 价格的获取。
// 远程来源按顺序尝试，成功结果取整到美元；全部失败时使用兜底价格。
package price

import (
	"context"
	"errors"
	"math"
	"time"
)

// ErrNoPrice 来源当前无可用价格
var ErrNoPrice = errors.New("无可用价格")

// SourceFallback 兜底价格的来源名称
const SourceFallback = "fallback"

// Source 价格来源
type Source interface {
	// Name 来源名称，用于日志与指标标签
	Name() string
	// Fetch 获取 BTC/USD 价格
	Fetch(ctx context.Context) (float64, error)
}

// Quote 一次价格解析结果
type Quote struct {
	// PriceUSD 价格（美元，已取整）
	PriceUSD float64 `json:"price_usd"`
	// Source 来源名称
	Source string `json:"source"`
	// Fallback 是否为兜底价格
	Fallback bool `json:"fallback"`
	// FetchedAt 获取时间
	FetchedAt time.Time `json:"fetched_at"`
}

// Round 取整到美元
func Round(p float64) float64 {
	return math.Round(p)
}

// Fixed 固定价格来源
type Fixed float64

// Name 来源名称
func (f Fixed) Name() string { return "fixed" }

// Fetch 返回固定价格；非正数视为无价格
func (f Fixed) Fetch(context.Context) (float64, error) {
	if !(f > 0) {
		return 0, ErrNoPrice
	}
	return float64(f), nil
}

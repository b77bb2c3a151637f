package model

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
)

const (
	// Horizon 投影季度数（5 年）
	Horizon = 20
	// QuartersPerYear 每年季度数
	QuartersPerYear = 4
	// SatsPerBTC 1 BTC = 100,000,000 sats
	SatsPerBTC = btcutil.SatoshiPerBitcoin
)

// QuarterLabel 生成季度标签 Y{year}Q{quarter}
// 参数 q: 季度序号，从 1 开始
func QuarterLabel(q int) string {
	year := (q-1)/QuartersPerYear + 1
	quarter := (q-1)%QuartersPerYear + 1
	return fmt.Sprintf("Y%dQ%d", year, quarter)
}

// PoolState 单个季度开始时的资金池与价格状态
type PoolState struct {
	// YieldPool 收益池 BTC
	YieldPool float64 `json:"yield_pool"`
	// IdlePool 闲置池 BTC（收益恒为 0）
	IdlePool float64 `json:"idle_pool"`
	// Price BTC 价格（USD）
	Price float64 `json:"price"`
}

// Total 两个池子的 BTC 总量
func (s PoolState) Total() float64 {
	return s.YieldPool + s.IdlePool
}

// YieldShare 收益池占比；总量为 0 时返回 0
func (s PoolState) YieldShare() float64 {
	total := s.Total()
	if total == 0 {
		return 0
	}
	return s.YieldPool / total
}

// QuarterResult 单季度结果
type QuarterResult struct {
	// Label 季度标签，如 Y1Q1
	Label string `json:"label"`
	// EpsUSD 该季度收益池收入对应的每股收益（USD）
	EpsUSD float64 `json:"eps_usd"`
	// SatsPerShare 该季度收益池收入折合每股 sats
	SatsPerShare float64 `json:"sats_per_share"`
	// EarnedBTC 该季度收益池赚取的 BTC
	EarnedBTC float64 `json:"earned_btc"`
	// PriceUSD 季度初 BTC 价格（EPS 计价基准）
	PriceUSD float64 `json:"price_usd"`
}

// ProjectionResult 单次投影结果
type ProjectionResult struct {
	// Quarters 20 个季度结果，按时间排序
	Quarters []QuarterResult `json:"quarters"`
	// Trace 每个季度开始时的池子状态，与 Quarters 一一对应
	Trace []PoolState `json:"trace"`
	// Final 第 20 季度结束后的状态
	Final PoolState `json:"final"`

	// CumulativeEpsUSD 20 个季度 EPS 之和
	CumulativeEpsUSD float64 `json:"cumulative_eps_usd"`
	// CumulativeSatsPerShare 20 个季度每股 sats 之和
	CumulativeSatsPerShare float64 `json:"cumulative_sats_per_share"`
	// CumulativeRoutingFeesBTC 收益池累计赚取的 BTC
	CumulativeRoutingFeesBTC float64 `json:"cumulative_routing_fees_btc"`
	// Year1EpsUplift 前 4 个季度 EPS 之和
	Year1EpsUplift float64 `json:"year1_eps_uplift"`
	// Q1EpsUplift 第 1 季度 EPS
	Q1EpsUplift float64 `json:"q1_eps_uplift"`

	// Input 本次运行的输入回显
	Input ProjectionInput `json:"input"`
	// PriceAtT0 期初 BTC 价格
	PriceAtT0 float64 `json:"price_at_t0"`
}

// Policy 本次运行使用的复利策略
func (r *ProjectionResult) Policy() CompoundingPolicy {
	return r.Input.Policy
}

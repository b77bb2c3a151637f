// Package delta 实现两次投影结果之间的相对变化计算。
// delta = (current - previous) / previous × 100
// 用于复利策略切换后展示“变化了多少”。
package delta

import (
	"lightning-yield-projector/internal/core/model"
)

// FullScaleIncrease 上一次为 0、本次非 0 时的约定返回值（%）
// 从 0 出发的真实百分比变化无定义，此处视为满额增长
const FullScaleIncrease = 100

// Deltas 累计指标的相对变化（%）
type Deltas struct {
	// SatsPerSharePct 累计每股 sats 的变化
	SatsPerSharePct float64 `json:"sats_per_share_pct"`
	// RoutingFeesBTCPct 累计路由收益 BTC 的变化
	RoutingFeesBTCPct float64 `json:"routing_fees_btc_pct"`
	// Comparable 是否存在上一次结果
	Comparable bool `json:"comparable"`
}

// RelativeDelta 计算相对变化百分比
// 规则:
//   - previous 为 nil（尚无上一次运行）=> 0
//   - previous == 0 且 current == 0 => 0
//   - previous == 0 且 current != 0 => 100
//   - 其他 => (current - previous) / previous × 100
func RelativeDelta(previous *float64, current float64) float64 {
	if previous == nil {
		return 0
	}
	prev := *previous
	if prev == 0 {
		if current == 0 {
			return 0
		}
		return FullScaleIncrease
	}
	return (current - prev) / prev * 100
}

// Compare 比较两次投影的累计每股 sats 与累计路由收益
// previous 为 nil 时返回零值（Comparable=false）
func Compare(previous, current *model.ProjectionResult) Deltas {
	if previous == nil || current == nil {
		return Deltas{}
	}
	return Deltas{
		SatsPerSharePct:   RelativeDelta(&previous.CumulativeSatsPerShare, current.CumulativeSatsPerShare),
		RoutingFeesBTCPct: RelativeDelta(&previous.CumulativeRoutingFeesBTC, current.CumulativeRoutingFeesBTC),
		Comparable:        true,
	}
}

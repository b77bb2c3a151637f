// Package model 定义投影器中使用的核心数据结构。
// 包含投影输入、季度结果、资金池状态以及价格行情事件。
package model

import (
	"fmt"
	"strings"
)

// CompoundingPolicy 复利策略
// 核心逻辑只认这一个枚举；界面上的“复投开关”极性由展示层自行换算。
type CompoundingPolicy string

const (
	// PolicyReinvest 复投模式：收益池独立复利，闲置池规模不变
	PolicyReinvest CompoundingPolicy = "reinvest"
	// PolicyRebalance 再平衡模式：每季度将两个池子重置回目标配置比例
	PolicyRebalance CompoundingPolicy = "rebalance"
)

// ParsePolicy 解析复利策略字符串（大小写不敏感）
// 参数 s: reinvest 或 rebalance
func ParsePolicy(s string) (CompoundingPolicy, error) {
	switch CompoundingPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyReinvest:
		return PolicyReinvest, nil
	case PolicyRebalance:
		return PolicyRebalance, nil
	default:
		return "", fmt.Errorf("无效的复利策略 '%s'，有效值: reinvest, rebalance", s)
	}
}

// Valid 判断策略取值是否合法
func (p CompoundingPolicy) Valid() bool {
	return p == PolicyReinvest || p == PolicyRebalance
}

// Toggle 返回另一种策略
func (p CompoundingPolicy) Toggle() CompoundingPolicy {
	if p == PolicyRebalance {
		return PolicyReinvest
	}
	return PolicyRebalance
}

// Rebalances 是否每季度再平衡
func (p CompoundingPolicy) Rebalances() bool {
	return p == PolicyRebalance
}

// String 实现 fmt.Stringer
func (p CompoundingPolicy) String() string {
	return string(p)
}

// RawInput 未经验证的原始输入
// 数值字段使用指针表示“缺失”，与表单层的空值语义一致。
type RawInput struct {
	// BtcReserves 期初国库 BTC 总量
	BtcReserves *float64 `json:"btc_reserves" yaml:"btc_reserves"`
	// SharesOutstanding 完全稀释股本
	SharesOutstanding *float64 `json:"shares_outstanding" yaml:"shares_outstanding"`
	// LightningAllocationPercent 分配到收益池的比例（0-100）
	LightningAllocationPercent float64 `json:"lightning_allocation_percent" yaml:"lightning_allocation_percent"`
	// LightningYieldAnnualPercent 收益池名义年化收益率（%）
	LightningYieldAnnualPercent float64 `json:"lightning_yield_annual_percent" yaml:"lightning_yield_annual_percent"`
	// BtcCagrAnnualPercent BTC 价格年复合增长率（%），必填，无默认值
	BtcCagrAnnualPercent *float64 `json:"btc_cagr_annual_percent" yaml:"btc_cagr_annual_percent"`
	// Policy 复利策略
	Policy CompoundingPolicy `json:"policy" yaml:"policy"`
}

// ProjectionInput 已验证的投影输入（单次运行内不可变）
type ProjectionInput struct {
	// BtcReserves 期初国库 BTC 总量，> 0
	BtcReserves float64 `json:"btc_reserves"`
	// SharesOutstanding 完全稀释股本，> 0
	SharesOutstanding float64 `json:"shares_outstanding"`
	// LightningAllocationPercent 收益池配置比例（0-100）
	LightningAllocationPercent float64 `json:"lightning_allocation_percent"`
	// LightningYieldAnnualPercent 收益池名义年化收益率（%）
	LightningYieldAnnualPercent float64 `json:"lightning_yield_annual_percent"`
	// BtcCagrAnnualPercent BTC 价格年复合增长率（%）
	BtcCagrAnnualPercent float64 `json:"btc_cagr_annual_percent"`
	// Policy 复利策略
	Policy CompoundingPolicy `json:"policy"`
}

// WithPolicy 返回仅替换策略后的输入副本
func (in ProjectionInput) WithPolicy(p CompoundingPolicy) ProjectionInput {
	in.Policy = p
	return in
}

// AllocationFraction 配置比例（0-1）
func (in ProjectionInput) AllocationFraction() float64 {
	return in.LightningAllocationPercent / 100
}

// Float 返回指向 v 的指针，便于构造 RawInput
func Float(v float64) *float64 {
	return &v
}

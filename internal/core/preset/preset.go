// Package preset 提供预置情景（熊市/基准/牛市）与默认输入。
package preset

import (
	"fmt"
	"sort"
	"strings"

	"lightning-yield-projector/internal/core/model"
)

// Preset 预置情景，仅覆盖配置比例、收益率与 CAGR
type Preset struct {
	// Name 情景标识: bear, base, bull
	Name string `json:"name" yaml:"name"`
	// Label 展示名称
	Label string `json:"label" yaml:"label"`
	// LightningAllocationPercent 收益池配置比例（%）
	LightningAllocationPercent float64 `json:"lightning_allocation_percent" yaml:"lightning_allocation_percent"`
	// LightningYieldAnnualPercent 年化收益率（%）
	LightningYieldAnnualPercent float64 `json:"lightning_yield_annual_percent" yaml:"lightning_yield_annual_percent"`
	// BtcCagrAnnualPercent BTC 价格 CAGR（%）
	BtcCagrAnnualPercent float64 `json:"btc_cagr_annual_percent" yaml:"btc_cagr_annual_percent"`
}

var presets = map[string]Preset{
	"bear": {Name: "bear", Label: "Bear Case", LightningAllocationPercent: 10, LightningYieldAnnualPercent: 2.5, BtcCagrAnnualPercent: 21},
	"base": {Name: "base", Label: "Base Case", LightningAllocationPercent: 15, LightningYieldAnnualPercent: 4, BtcCagrAnnualPercent: 29},
	"bull": {Name: "bull", Label: "Bull Case", LightningAllocationPercent: 25, LightningYieldAnnualPercent: 6, BtcCagrAnnualPercent: 37},
}

// order 展示顺序
var order = []string{"bear", "base", "bull"}

// Get 按名称获取情景（大小写不敏感）
func Get(name string) (Preset, bool) {
	p, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// All 按展示顺序返回全部情景
func All() []Preset {
	out := make([]Preset, 0, len(order))
	for _, name := range order {
		out = append(out, presets[name])
	}
	return out
}

// Names 全部情景名称（排序后）
func Names() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply 将情景覆盖到原始输入上，其余字段保持不变
func Apply(raw model.RawInput, name string) (model.RawInput, error) {
	p, ok := Get(name)
	if !ok {
		return raw, fmt.Errorf("未知情景 '%s'，有效值: %s", name, strings.Join(Names(), ", "))
	}
	raw.LightningAllocationPercent = p.LightningAllocationPercent
	raw.LightningYieldAnnualPercent = p.LightningYieldAnnualPercent
	raw.BtcCagrAnnualPercent = model.Float(p.BtcCagrAnnualPercent)
	return raw, nil
}

// Match 返回与原始输入三项参数完全一致的情景名称；无匹配返回空字符串
func Match(raw model.RawInput) string {
	if raw.BtcCagrAnnualPercent == nil {
		return ""
	}
	for _, name := range order {
		p := presets[name]
		if p.LightningAllocationPercent == raw.LightningAllocationPercent &&
			p.LightningYieldAnnualPercent == raw.LightningYieldAnnualPercent &&
			p.BtcCagrAnnualPercent == *raw.BtcCagrAnnualPercent {
			return name
		}
	}
	return ""
}

// DefaultInput 默认原始输入（CAGR 留空，需要用户填写）
func DefaultInput() model.RawInput {
	return model.RawInput{
		BtcReserves:                 model.Float(5021),
		SharesOutstanding:           model.Float(14805000),
		LightningAllocationPercent:  15,
		LightningYieldAnnualPercent: 4,
		BtcCagrAnnualPercent:        nil,
		Policy:                      model.PolicyReinvest,
	}
}

// Package delta 相对变化计算测试
package delta

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"lightning-yield-projector/internal/core/model"
	"lightning-yield-projector/internal/core/projection"
)

func ptr(v float64) *float64 { return &v }

func TestRelativeDelta_EdgeCases(t *testing.T) {
	cases := []struct {
		name string
		prev *float64
		cur  float64
		want float64
	}{
		{"零到零", ptr(0), 0, 0},
		{"零到非零", ptr(0), 5, 100},
		{"零到负数", ptr(0), -5, 100},
		{"无上一次", nil, 42, 0},
		{"无上一次且为零", nil, 0, 0},
		{"增长 50%", ptr(100), 150, 50},
		{"下降 25%", ptr(200), 150, -25},
		{"不变", ptr(7), 7, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := RelativeDelta(tc.prev, tc.cur)
			if math.Abs(got-tc.want) > 1e-12 {
				t.Fatalf("RelativeDelta=%g, want %g", got, tc.want)
			}
		})
	}
}

func TestRelativeDelta_Formula_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("非零基数时与公式一致", prop.ForAll(
		func(prev, cur float64) bool {
			if prev == 0 {
				return true
			}
			want := (cur - prev) / prev * 100
			return RelativeDelta(&prev, cur) == want
		},
		gen.Float64Range(-1e6, 1e6),
		gen.Float64Range(-1e6, 1e6),
	))

	properties.Property("无上一次结果时恒为 0", prop.ForAll(
		func(cur float64) bool {
			return RelativeDelta(nil, cur) == 0
		},
		gen.Float64Range(-1e6, 1e6),
	))

	properties.TestingRun(t)
}

func TestCompare_NilPrevious(t *testing.T) {
	cur := &model.ProjectionResult{CumulativeSatsPerShare: 10, CumulativeRoutingFeesBTC: 1}
	d := Compare(nil, cur)
	if d.Comparable || d.SatsPerSharePct != 0 || d.RoutingFeesBTCPct != 0 {
		t.Fatalf("Compare(nil, cur)=%+v, want zero", d)
	}
}

func TestCompare_PolicyToggle(t *testing.T) {
	in := model.ProjectionInput{
		BtcReserves:                 5021,
		SharesOutstanding:           14805000,
		LightningAllocationPercent:  15,
		LightningYieldAnnualPercent: 4,
		BtcCagrAnnualPercent:        29,
		Policy:                      model.PolicyRebalance,
	}

	rebalance, err := projection.Project(in, 65000)
	if err != nil {
		t.Fatalf("Project(rebalance): %v", err)
	}
	reinvest, err := projection.Project(in.WithPolicy(model.PolicyReinvest), 65000)
	if err != nil {
		t.Fatalf("Project(reinvest): %v", err)
	}

	d := Compare(rebalance, reinvest)
	if !d.Comparable {
		t.Fatalf("Comparable=false, want true")
	}
	want := (reinvest.CumulativeSatsPerShare - rebalance.CumulativeSatsPerShare) / rebalance.CumulativeSatsPerShare * 100
	if d.SatsPerSharePct != want {
		t.Fatalf("SatsPerSharePct=%g, want %g", d.SatsPerSharePct, want)
	}
	// 复投让收益池独立复利，累计收益高于每季度被稀释回 15% 的再平衡
	if d.RoutingFeesBTCPct <= 0 {
		t.Fatalf("RoutingFeesBTCPct=%g, want > 0", d.RoutingFeesBTCPct)
	}
}

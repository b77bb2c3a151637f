// Package projection 投影引擎测试
package projection

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"lightning-yield-projector/internal/core/model"
)

func baseInput(policy model.CompoundingPolicy) model.ProjectionInput {
	return model.ProjectionInput{
		BtcReserves:                 5021,
		SharesOutstanding:           14805000,
		LightningAllocationPercent:  15,
		LightningYieldAnnualPercent: 4,
		BtcCagrAnnualPercent:        29,
		Policy:                      policy,
	}
}

func TestProject_Scenario(t *testing.T) {
	res, err := Project(baseInput(model.PolicyReinvest), 65000)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}

	earned := 5021 * 0.15 * (math.Pow(1.04, 0.25) - 1)
	wantEps := earned * 65000 / 14805000

	q1 := res.Quarters[0]
	if q1.Label != "Y1Q1" {
		t.Fatalf("Label=%s, want Y1Q1", q1.Label)
	}
	if math.Abs(q1.EpsUSD-wantEps)/wantEps > 1e-12 {
		t.Fatalf("EpsUSD=%g, want %g", q1.EpsUSD, wantEps)
	}
	if q1.EpsUSD <= 0 {
		t.Fatalf("EpsUSD=%g, want > 0", q1.EpsUSD)
	}
	if res.CumulativeRoutingFeesBTC <= earned {
		t.Fatalf("CumulativeRoutingFeesBTC=%g, want > %g", res.CumulativeRoutingFeesBTC, earned)
	}
	if res.Q1EpsUplift != q1.EpsUSD {
		t.Fatalf("Q1EpsUplift=%g, want %g", res.Q1EpsUplift, q1.EpsUSD)
	}
	if res.PriceAtT0 != 65000 || res.Input.Policy != model.PolicyReinvest {
		t.Fatalf("输入回显不正确: price=%g policy=%s", res.PriceAtT0, res.Input.Policy)
	}
}

func TestProject_Labels(t *testing.T) {
	res, err := Project(baseInput(model.PolicyRebalance), 65000)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if len(res.Quarters) != model.Horizon {
		t.Fatalf("len(Quarters)=%d, want %d", len(res.Quarters), model.Horizon)
	}

	want := map[int]string{0: "Y1Q1", 3: "Y1Q4", 4: "Y2Q1", 10: "Y3Q3", 19: "Y5Q4"}
	for i, label := range want {
		if res.Quarters[i].Label != label {
			t.Fatalf("Quarters[%d].Label=%s, want %s", i, res.Quarters[i].Label, label)
		}
	}
}

func TestProject_Aggregates(t *testing.T) {
	res, err := Project(baseInput(model.PolicyReinvest), 65000)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}

	var eps, sats, btc, year1 float64
	for i, q := range res.Quarters {
		eps += q.EpsUSD
		sats += q.SatsPerShare
		btc += q.EarnedBTC
		if i < 4 {
			year1 += q.EpsUSD
		}
	}
	if eps != res.CumulativeEpsUSD {
		t.Fatalf("CumulativeEpsUSD=%g, want %g", res.CumulativeEpsUSD, eps)
	}
	if sats != res.CumulativeSatsPerShare {
		t.Fatalf("CumulativeSatsPerShare=%g, want %g", res.CumulativeSatsPerShare, sats)
	}
	if btc != res.CumulativeRoutingFeesBTC {
		t.Fatalf("CumulativeRoutingFeesBTC=%g, want %g", res.CumulativeRoutingFeesBTC, btc)
	}
	if year1 != res.Year1EpsUplift {
		t.Fatalf("Year1EpsUplift=%g, want %g", res.Year1EpsUplift, year1)
	}
}

func TestProject_ReinvestKeepsIdlePool(t *testing.T) {
	in := baseInput(model.PolicyReinvest)
	res, err := Project(in, 65000)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}

	wantIdle := in.BtcReserves * (1 - in.LightningAllocationPercent/100)
	for i, s := range append(res.Trace, res.Final) {
		if s.IdlePool != wantIdle {
			t.Fatalf("state[%d].IdlePool=%g, want %g", i, s.IdlePool, wantIdle)
		}
	}
	for i := 1; i < len(res.Trace); i++ {
		if res.Trace[i].YieldPool <= res.Trace[i-1].YieldPool {
			t.Fatalf("收益池在第 %d 季未增长", i+1)
		}
	}
}

func TestProject_RebalanceKeepsAllocation(t *testing.T) {
	in := baseInput(model.PolicyRebalance)
	res, err := Project(in, 65000)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}

	for i := 1; i < len(res.Trace); i++ {
		share := res.Trace[i].YieldShare()
		if math.Abs(share-0.15)/0.15 > 1e-9 {
			t.Fatalf("Trace[%d] 收益池占比=%g, want 0.15", i, share)
		}
	}
}

func TestProject_ZeroAllocation(t *testing.T) {
	for _, policy := range []model.CompoundingPolicy{model.PolicyReinvest, model.PolicyRebalance} {
		in := baseInput(policy)
		in.LightningAllocationPercent = 0

		res, err := Project(in, 65000)
		if err != nil {
			t.Fatalf("Project(%s): %v", policy, err)
		}
		for _, q := range res.Quarters {
			if q.EpsUSD != 0 || q.SatsPerShare != 0 {
				t.Fatalf("%s %s: eps=%g sats=%g, want 0", policy, q.Label, q.EpsUSD, q.SatsPerShare)
			}
		}
		if res.CumulativeRoutingFeesBTC != 0 {
			t.Fatalf("%s: CumulativeRoutingFeesBTC=%g, want 0", policy, res.CumulativeRoutingFeesBTC)
		}
	}
}

func TestProject_FullAllocationPoliciesAgree(t *testing.T) {
	in := baseInput(model.PolicyReinvest)
	in.LightningAllocationPercent = 100

	reinvest, err := Project(in, 65000)
	if err != nil {
		t.Fatalf("Project(reinvest): %v", err)
	}
	rebalance, err := Project(in.WithPolicy(model.PolicyRebalance), 65000)
	if err != nil {
		t.Fatalf("Project(rebalance): %v", err)
	}

	if !reflect.DeepEqual(reinvest.Quarters, rebalance.Quarters) {
		t.Fatalf("100%% 配置时两种策略的季度结果应一致")
	}
	for i, s := range reinvest.Trace {
		if s.IdlePool != 0 {
			t.Fatalf("Trace[%d].IdlePool=%g, want 0", i, s.IdlePool)
		}
	}
}

func TestProject_PricePath(t *testing.T) {
	res, err := Project(baseInput(model.PolicyReinvest), 65000)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}

	g := QuarterlyRate(29)
	ratio := res.Quarters[19].PriceUSD / res.Quarters[0].PriceUSD
	want := math.Pow(1+g, 19)
	if math.Abs(ratio-want)/want > 1e-12 {
		t.Fatalf("价格比=%g, want %g", ratio, want)
	}
	if res.Quarters[0].PriceUSD != 65000 {
		t.Fatalf("第一季度价格=%g, want 65000", res.Quarters[0].PriceUSD)
	}
}

func TestProject_NegativeCagrAccepted(t *testing.T) {
	in := baseInput(model.PolicyReinvest)
	in.BtcCagrAnnualPercent = -20

	res, err := Project(in, 65000)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if res.Quarters[19].PriceUSD >= res.Quarters[0].PriceUSD {
		t.Fatalf("负增长率下价格应下降")
	}
}

func TestProject_Preconditions(t *testing.T) {
	cases := []struct {
		name  string
		mut   func(*model.ProjectionInput)
		price float64
	}{
		{"零股本", func(in *model.ProjectionInput) { in.SharesOutstanding = 0 }, 65000},
		{"负储备", func(in *model.ProjectionInput) { in.BtcReserves = -1 }, 65000},
		{"零价格", func(in *model.ProjectionInput) {}, 0},
		{"NaN 价格", func(in *model.ProjectionInput) {}, math.NaN()},
		{"配置超过 100", func(in *model.ProjectionInput) { in.LightningAllocationPercent = 101 }, 65000},
		{"负收益率", func(in *model.ProjectionInput) { in.LightningYieldAnnualPercent = -1 }, 65000},
		{"增长率 -100", func(in *model.ProjectionInput) { in.BtcCagrAnnualPercent = -100 }, 65000},
		{"空策略", func(in *model.ProjectionInput) { in.Policy = "" }, 65000},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := baseInput(model.PolicyReinvest)
			tc.mut(&in)
			res, err := Project(in, tc.price)
			if !errors.Is(err, ErrPrecondition) {
				t.Fatalf("err=%v, want ErrPrecondition", err)
			}
			if res != nil {
				t.Fatalf("违反前置条件时不应返回结果")
			}
		})
	}
}

func TestQuarterlyRate(t *testing.T) {
	if r := QuarterlyRate(0); r != 0 {
		t.Fatalf("QuarterlyRate(0)=%g, want 0", r)
	}
	r := QuarterlyRate(4)
	if math.Abs(math.Pow(1+r, 4)-1.04) > 1e-12 {
		t.Fatalf("(1+r)^4=%g, want 1.04", math.Pow(1+r, 4))
	}
}

// Package projection 投影引擎属性测试
package projection

import (
	"math"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"lightning-yield-projector/internal/core/model"
)

func makeInput(reserves, shares, alloc, yield, cagr float64, rebalance bool) model.ProjectionInput {
	policy := model.PolicyReinvest
	if rebalance {
		policy = model.PolicyRebalance
	}
	return model.ProjectionInput{
		BtcReserves:                 reserves,
		SharesOutstanding:           shares,
		LightningAllocationPercent:  alloc,
		LightningYieldAnnualPercent: yield,
		BtcCagrAnnualPercent:        cagr,
		Policy:                      policy,
	}
}

func TestProject_Determinism_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("相同输入两次运行结果完全一致", prop.ForAll(
		func(reserves, shares, alloc, yield, cagr, price float64, rebalance bool) bool {
			in := makeInput(reserves, shares, alloc, yield, cagr, rebalance)
			a, errA := Project(in, price)
			b, errB := Project(in, price)
			if errA != nil || errB != nil {
				return false
			}
			return reflect.DeepEqual(a, b)
		},
		gen.Float64Range(0.01, 1_000_000),
		gen.Float64Range(1, 1e10),
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 50),
		gen.Float64Range(-90, 200),
		gen.Float64Range(1, 1_000_000),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestProject_Length_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("始终输出 20 个按序排列的季度", prop.ForAll(
		func(alloc, yield, cagr float64, rebalance bool) bool {
			res, err := Project(makeInput(5021, 14805000, alloc, yield, cagr, rebalance), 65000)
			if err != nil || len(res.Quarters) != model.Horizon || len(res.Trace) != model.Horizon {
				return false
			}
			for i, q := range res.Quarters {
				if q.Label != model.QuarterLabel(i+1) {
					return false
				}
			}
			return true
		},
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 50),
		gen.Float64Range(-90, 200),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestProject_Conservation_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("复投模式下闲置池规模不变", prop.ForAll(
		func(reserves, alloc, yield float64) bool {
			in := makeInput(reserves, 1_000_000, alloc, yield, 10, false)
			res, err := Project(in, 50000)
			if err != nil {
				return false
			}
			want := reserves * (1 - alloc/100)
			for _, s := range res.Trace {
				if s.IdlePool != want {
					return false
				}
			}
			return res.Final.IdlePool == want
		},
		gen.Float64Range(0.01, 1_000_000),
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 50),
	))

	properties.Property("池子总量只随收益增长", prop.ForAll(
		func(reserves, alloc, yield float64, rebalance bool) bool {
			in := makeInput(reserves, 1_000_000, alloc, yield, 10, rebalance)
			res, err := Project(in, 50000)
			if err != nil {
				return false
			}
			states := append(append([]model.PoolState{}, res.Trace...), res.Final)
			for i := 1; i < len(states); i++ {
				want := states[i-1].Total() + res.Quarters[i-1].EarnedBTC
				if !approx(states[i].Total(), want, 1e-12*want) {
					return false
				}
			}
			return true
		},
		gen.Float64Range(0.01, 1_000_000),
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 50),
		gen.Bool(),
	))

	properties.Property("累计 BTC 收益等于各季度收益之和（与策略无关）", prop.ForAll(
		func(alloc, yield float64, rebalance bool) bool {
			res, err := Project(makeInput(5021, 14805000, alloc, yield, 29, rebalance), 65000)
			if err != nil {
				return false
			}
			var sum float64
			for _, q := range res.Quarters {
				sum += q.EarnedBTC
			}
			return res.CumulativeRoutingFeesBTC == sum
		},
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 50),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestProject_Allocation_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("再平衡模式下每季度初收益池占比等于目标配置", prop.ForAll(
		func(reserves, alloc, yield float64) bool {
			res, err := Project(makeInput(reserves, 1_000_000, alloc, yield, 10, true), 50000)
			if err != nil {
				return false
			}
			target := alloc / 100
			states := append(append([]model.PoolState{}, res.Trace[1:]...), res.Final)
			for _, s := range states {
				if !approx(s.YieldShare(), target, 1e-9*target) {
					return false
				}
			}
			return true
		},
		gen.Float64Range(0.01, 1_000_000),
		gen.Float64Range(0.1, 100),
		gen.Float64Range(0, 50),
	))

	properties.Property("复投模式下收益率为正时收益池严格增长", prop.ForAll(
		func(alloc, yield float64) bool {
			res, err := Project(makeInput(5021, 14805000, alloc, yield, 29, false), 65000)
			if err != nil {
				return false
			}
			for i := 1; i < len(res.Trace); i++ {
				if !(res.Trace[i].YieldPool > res.Trace[i-1].YieldPool) {
					return false
				}
			}
			return res.Final.YieldPool > res.Trace[model.Horizon-1].YieldPool
		},
		gen.Float64Range(1, 100),
		gen.Float64Range(0.5, 50),
	))

	properties.TestingRun(t)
}

func TestProject_SatsConversion_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("sats/股 = earned/股本 × 1e8，earned 可由 EPS 还原", prop.ForAll(
		func(shares, alloc, yield, price float64, rebalance bool) bool {
			res, err := Project(makeInput(5021, shares, alloc, yield, 29, rebalance), price)
			if err != nil {
				return false
			}
			for _, q := range res.Quarters {
				if q.SatsPerShare != q.EarnedBTC/shares*1e8 {
					return false
				}
				recovered := q.EpsUSD * shares / q.PriceUSD
				if !approx(recovered, q.EarnedBTC, 1e-9*q.EarnedBTC) {
					return false
				}
			}
			return true
		},
		gen.Float64Range(1, 1e9),
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 50),
		gen.Float64Range(100, 1_000_000),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestProject_PricePath_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("第 20 季度价格 = 第 1 季度价格 × (1+g)^19", prop.ForAll(
		func(cagr, price float64) bool {
			res, err := Project(makeInput(5021, 14805000, 15, 4, cagr, false), price)
			if err != nil {
				return false
			}
			want := price * math.Pow(1+QuarterlyRate(cagr), 19)
			got := res.Quarters[model.Horizon-1].PriceUSD
			return approx(got, want, 1e-12*want) && got > res.Quarters[0].PriceUSD
		},
		gen.Float64Range(0.1, 200),
		gen.Float64Range(100, 1_000_000),
	))

	properties.TestingRun(t)
}

func TestProject_Boundaries_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("配置为 0 时所有季度 EPS 与 sats 为 0", prop.ForAll(
		func(yield, cagr float64, rebalance bool) bool {
			res, err := Project(makeInput(5021, 14805000, 0, yield, cagr, rebalance), 65000)
			if err != nil {
				return false
			}
			for _, q := range res.Quarters {
				if q.EpsUSD != 0 || q.SatsPerShare != 0 {
					return false
				}
			}
			return true
		},
		gen.Float64Range(0, 50),
		gen.Float64Range(-90, 200),
		gen.Bool(),
	))

	properties.Property("配置为 100 时两种策略结果一致", prop.ForAll(
		func(reserves, yield, cagr float64) bool {
			a, errA := Project(makeInput(reserves, 14805000, 100, yield, cagr, false), 65000)
			b, errB := Project(makeInput(reserves, 14805000, 100, yield, cagr, true), 65000)
			if errA != nil || errB != nil {
				return false
			}
			return reflect.DeepEqual(a.Quarters, b.Quarters) &&
				a.CumulativeRoutingFeesBTC == b.CumulativeRoutingFeesBTC &&
				a.Final.IdlePool == 0 && b.Final.IdlePool == 0
		},
		gen.Float64Range(0.01, 1_000_000),
		gen.Float64Range(0, 50),
		gen.Float64Range(-90, 200),
	))

	properties.TestingRun(t)
}

func approx(a float64, b float64, eps float64) bool {
	return math.Abs(a-b) <= eps
}

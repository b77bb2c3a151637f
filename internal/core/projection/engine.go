// Package projection 实现 Lightning 收益的季度投影引擎。
// 两个资金池（收益池/闲置池）在复利策略下逐季演化，共 20 个季度。
//
// 季度利率: r_q = (1 + r_annual/100)^(1/4) - 1
// 季度收益: earned = yieldPool × r_q（闲置池收益恒为 0）
// EPS:      earned × 季度初价格 / 股本
// sats:     earned / 股本 × 1e8
package projection

import (
	"errors"
	"fmt"
	"math"

	"lightning-yield-projector/internal/core/model"
)

// ErrPrecondition 输入违反引擎前置条件（应由上游校验拦截）
var ErrPrecondition = errors.New("投影前置条件不满足")

// QuarterlyRate 将名义年化利率（%）转换为有效季度利率
func QuarterlyRate(annualPercent float64) float64 {
	return math.Pow(1+annualPercent/100, 1.0/model.QuartersPerYear) - 1
}

// params 单次运行内不变的参数
type params struct {
	allocation  float64
	yieldRate   float64
	idleRate    float64
	growthRate  float64
	shares      float64
	rebalancing bool
}

// Project 运行 20 个季度的投影
// 参数 in: 已通过校验的输入
// 参数 priceAtT0: 期初 BTC 价格（USD）
// 返回: 投影结果；违反前置条件时返回 ErrPrecondition
func Project(in model.ProjectionInput, priceAtT0 float64) (*model.ProjectionResult, error) {
	if err := checkPreconditions(in, priceAtT0); err != nil {
		return nil, err
	}

	p := params{
		allocation:  in.AllocationFraction(),
		yieldRate:   QuarterlyRate(in.LightningYieldAnnualPercent),
		idleRate:    0,
		growthRate:  QuarterlyRate(in.BtcCagrAnnualPercent),
		shares:      in.SharesOutstanding,
		rebalancing: in.Policy.Rebalances(),
	}

	state := model.PoolState{
		YieldPool: in.BtcReserves * p.allocation,
		IdlePool:  in.BtcReserves * (1 - p.allocation),
		Price:     priceAtT0,
	}

	res := &model.ProjectionResult{
		Quarters:  make([]model.QuarterResult, 0, model.Horizon),
		Trace:     make([]model.PoolState, 0, model.Horizon),
		Input:     in,
		PriceAtT0: priceAtT0,
	}

	// 逐季折叠：第 q+1 季依赖第 q 季的池子与价格，不可并行
	for q := 1; q <= model.Horizon; q++ {
		res.Trace = append(res.Trace, state)

		var qr model.QuarterResult
		state, qr = step(p, state, q)

		res.Quarters = append(res.Quarters, qr)
		res.CumulativeRoutingFeesBTC += qr.EarnedBTC
	}
	res.Final = state

	for i, qr := range res.Quarters {
		res.CumulativeEpsUSD += qr.EpsUSD
		res.CumulativeSatsPerShare += qr.SatsPerShare
		if i < model.QuartersPerYear {
			res.Year1EpsUplift += qr.EpsUSD
		}
	}
	res.Q1EpsUplift = res.Quarters[0].EpsUSD

	return res, nil
}

// step 推进一个季度
// EPS 使用季度初价格计价，价格增长在本季结果计算之后才生效
func step(p params, s model.PoolState, q int) (model.PoolState, model.QuarterResult) {
	earned := s.YieldPool * p.yieldRate
	idleEarned := s.IdlePool * p.idleRate

	qr := model.QuarterResult{
		Label:        model.QuarterLabel(q),
		EpsUSD:       earned * s.Price / p.shares,
		SatsPerShare: earned / p.shares * model.SatsPerBTC,
		EarnedBTC:    earned,
		PriceUSD:     s.Price,
	}

	next := s
	if p.rebalancing {
		total := s.YieldPool + earned + s.IdlePool + idleEarned
		next.YieldPool = total * p.allocation
		next.IdlePool = total * (1 - p.allocation)
	} else {
		next.YieldPool = s.YieldPool + earned
		next.IdlePool = s.IdlePool + idleEarned
	}
	next.Price = s.Price * (1 + p.growthRate)

	return next, qr
}

// checkPreconditions 检查引擎前置条件
// 这些条件本应由 validate 包与价格来源保证；此处拒绝而不是输出 NaN/Inf
func checkPreconditions(in model.ProjectionInput, priceAtT0 float64) error {
	switch {
	case !(in.SharesOutstanding > 0) || math.IsInf(in.SharesOutstanding, 0):
		return fmt.Errorf("%w: shares_outstanding 必须为正数，当前值: %v", ErrPrecondition, in.SharesOutstanding)
	case !(in.BtcReserves > 0) || math.IsInf(in.BtcReserves, 0):
		return fmt.Errorf("%w: btc_reserves 必须为正数，当前值: %v", ErrPrecondition, in.BtcReserves)
	case !(priceAtT0 > 0) || math.IsInf(priceAtT0, 0):
		return fmt.Errorf("%w: price_at_t0 必须为正数，当前值: %v", ErrPrecondition, priceAtT0)
	case !(in.LightningAllocationPercent >= 0 && in.LightningAllocationPercent <= 100):
		return fmt.Errorf("%w: lightning_allocation_percent 必须在 0-100 之间，当前值: %v", ErrPrecondition, in.LightningAllocationPercent)
	case !(in.LightningYieldAnnualPercent >= 0) || math.IsInf(in.LightningYieldAnnualPercent, 0):
		return fmt.Errorf("%w: lightning_yield_annual_percent 不能为负数，当前值: %v", ErrPrecondition, in.LightningYieldAnnualPercent)
	case !(in.BtcCagrAnnualPercent > -100) || math.IsInf(in.BtcCagrAnnualPercent, 0):
		return fmt.Errorf("%w: btc_cagr_annual_percent 必须大于 -100，当前值: %v", ErrPrecondition, in.BtcCagrAnnualPercent)
	case !in.Policy.Valid():
		return fmt.Errorf("%w: 无效的复利策略 '%s'", ErrPrecondition, in.Policy)
	}
	return nil
}

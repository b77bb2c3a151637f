// Package report 将投影结果渲染为命令行文本报告。
package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"lightning-yield-projector/internal/core/model"
	"lightning-yield-projector/internal/stats/delta"
)

// Options 渲染选项
type Options struct {
	// PriceSource 期初价格来源，为空时不显示
	PriceSource string
	// Deltas 相对上一次设置的变化；nil 或不可比较时不显示
	Deltas *delta.Deltas
	// Quarters 是否输出季度明细表
	Quarters bool
}

// Render 输出一次投影的文本报告
func Render(w io.Writer, res *model.ProjectionResult, opts Options) error {
	if res == nil {
		return fmt.Errorf("投影结果为空")
	}
	in := res.Input

	price := WholeDollars(res.PriceAtT0)
	if opts.PriceSource != "" {
		price += " (" + opts.PriceSource + ")"
	}

	ew := &errWriter{w: w}
	ew.printf("Scenario inputs: %s BTC • %s%% Lightning • %s%% yield • %s%% BTC CAGR • %s shares • BTC price (t0): %s\n",
		Number(in.BtcReserves),
		Percent(in.LightningAllocationPercent),
		Percent(in.LightningYieldAnnualPercent),
		Percent(in.BtcCagrAnnualPercent),
		Number(in.SharesOutstanding),
		price,
	)
	ew.printf("Reinvest Yield: %s (%s)\n\n", ReinvestLabel(res.Policy()), res.Policy())

	ew.printf("Non-Dilutive EPS Uplift (Q1):     +%s per share\n", Currency(res.Q1EpsUplift))
	ew.printf("Run-Rate EPS Uplift (Year 1):     %s\n", Currency(res.Year1EpsUplift))
	ew.printf("Cumulative EPS Gain (5Y):         %s\n", Currency(res.CumulativeEpsUSD))
	ew.printf("Cumulative Routing Fees (5Y):     %s BTC\n", BTC(res.CumulativeRoutingFeesBTC))
	ew.printf("Cumulative Sats/Share Growth:     +%s\n", Number(res.CumulativeSatsPerShare))

	if d := opts.Deltas; d != nil && d.Comparable {
		ew.printf("\nvs. previous setting: sats/share %s, routing fees %s\n",
			SignedPercent(d.SatsPerSharePct), SignedPercent(d.RoutingFeesBTCPct))
	}

	ew.printf("\nFinal pools: yield %s, idle %s, BTC price %s\n",
		ExactBTC(res.Final.YieldPool), ExactBTC(res.Final.IdlePool), WholeDollars(res.Final.Price))

	if opts.Quarters && ew.err == nil {
		ew.printf("\n")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "Quarter\tBTC Price\tEPS (USD)\tSats/Share\tEarned BTC\t")
		for _, q := range res.Quarters {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n",
				q.Label, WholeDollars(q.PriceUSD), Currency(q.EpsUSD), Number(q.SatsPerShare), Fixed(q.EarnedBTC, 4))
		}
		if err := tw.Flush(); err != nil {
			return fmt.Errorf("写入季度明细失败: %w", err)
		}
	}
	return ew.err
}

// errWriter 记录第一次写入错误，之后的写入被忽略
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

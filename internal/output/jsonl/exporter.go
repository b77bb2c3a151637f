package jsonl

import (
	"errors"
	"fmt"
	"path/filepath"

	"lightning-yield-projector/internal/core/model"
)

// 输出文件名
const (
	QuartersFile = "quarters.jsonl"
	RunsFile     = "runs.jsonl"
)

// QuarterRecord quarters.jsonl 中的一行
type QuarterRecord struct {
	RunID        string  `json:"run_id"`
	Policy       string  `json:"policy"`
	Quarter      int     `json:"quarter"`
	Label        string  `json:"label"`
	EpsUSD       float64 `json:"eps_usd"`
	SatsPerShare float64 `json:"sats_per_share"`
	EarnedBTC    float64 `json:"earned_btc"`
	PriceUSD     float64 `json:"price_usd"`
	// YieldPoolBTC / IdlePoolBTC 季度初池子规模
	YieldPoolBTC float64 `json:"yield_pool_btc"`
	IdlePoolBTC  float64 `json:"idle_pool_btc"`
}

// RunRecord runs.jsonl 中的一行
type RunRecord struct {
	RunID                    string                `json:"run_id"`
	CreatedAtUnixMs          int64                 `json:"created_at_unix_ms"`
	Policy                   string                `json:"policy"`
	PriceUSD                 float64               `json:"price_usd"`
	PriceSource              string                `json:"price_source"`
	Input                    model.ProjectionInput `json:"input"`
	CumulativeEpsUSD         float64               `json:"cumulative_eps_usd"`
	CumulativeSatsPerShare   float64               `json:"cumulative_sats_per_share"`
	CumulativeRoutingFeesBTC float64               `json:"cumulative_routing_fees_btc"`
	Year1EpsUplift           float64               `json:"year1_eps_uplift"`
	Q1EpsUplift              float64               `json:"q1_eps_uplift"`
	FinalYieldPoolBTC        float64               `json:"final_yield_pool_btc"`
	FinalIdlePoolBTC         float64               `json:"final_idle_pool_btc"`
	FinalPriceUSD            float64               `json:"final_price_usd"`
}

// QuarterRecords 展开运行的逐季度记录
func QuarterRecords(run *model.Run) []QuarterRecord {
	r := run.Result
	out := make([]QuarterRecord, len(r.Quarters))
	for i, q := range r.Quarters {
		rec := QuarterRecord{
			RunID:        run.ID,
			Policy:       r.Policy().String(),
			Quarter:      i + 1,
			Label:        q.Label,
			EpsUSD:       q.EpsUSD,
			SatsPerShare: q.SatsPerShare,
			EarnedBTC:    q.EarnedBTC,
			PriceUSD:     q.PriceUSD,
		}
		if i < len(r.Trace) {
			rec.YieldPoolBTC = r.Trace[i].YieldPool
			rec.IdlePoolBTC = r.Trace[i].IdlePool
		}
		out[i] = rec
	}
	return out
}

// NewRunRecord 生成运行汇总记录
func NewRunRecord(run *model.Run) RunRecord {
	r := run.Result
	return RunRecord{
		RunID:                    run.ID,
		CreatedAtUnixMs:          run.CreatedAt.UnixMilli(),
		Policy:                   r.Policy().String(),
		PriceUSD:                 r.PriceAtT0,
		PriceSource:              run.PriceSource,
		Input:                    r.Input,
		CumulativeEpsUSD:         r.CumulativeEpsUSD,
		CumulativeSatsPerShare:   r.CumulativeSatsPerShare,
		CumulativeRoutingFeesBTC: r.CumulativeRoutingFeesBTC,
		Year1EpsUplift:           r.Year1EpsUplift,
		Q1EpsUplift:              r.Q1EpsUplift,
		FinalYieldPoolBTC:        r.Final.YieldPool,
		FinalIdlePoolBTC:         r.Final.IdlePool,
		FinalPriceUSD:            r.Final.Price,
	}
}

// Exporter 将运行写入 quarters.jsonl 与 runs.jsonl
// 任一写入器为 nil 时跳过对应文件
type Exporter struct {
	quarters *Writer
	runs     *Writer
}

// NewExporter 在 dir 下创建导出器
func NewExporter(dir string, quarters, runs bool, bufferSize int) (*Exporter, error) {
	e := &Exporter{}
	if quarters {
		w, err := NewWriter(filepath.Join(dir, QuartersFile), bufferSize)
		if err != nil {
			return nil, err
		}
		e.quarters = w
	}
	if runs {
		w, err := NewWriter(filepath.Join(dir, RunsFile), bufferSize)
		if err != nil {
			_ = e.quarters.Close()
			return nil, err
		}
		e.runs = w
	}
	return e, nil
}

// Export 投递一次运行
func (e *Exporter) Export(run *model.Run) error {
	if run == nil || run.Result == nil {
		return fmt.Errorf("运行结果为空")
	}
	if e.quarters != nil {
		for _, rec := range QuarterRecords(run) {
			if err := e.quarters.Write(rec); err != nil {
				return fmt.Errorf("写入 %s 失败: %w", QuartersFile, err)
			}
		}
	}
	if e.runs != nil {
		if err := e.runs.Write(NewRunRecord(run)); err != nil {
			return fmt.Errorf("写入 %s 失败: %w", RunsFile, err)
		}
	}
	return nil
}

// Flush 刷新两个文件
func (e *Exporter) Flush() error {
	return errors.Join(e.quarters.Flush(), e.runs.Flush())
}

// Close 关闭两个文件
func (e *Exporter) Close() error {
	return errors.Join(e.quarters.Close(), e.runs.Close())
}

// Package latency 统计交易所行情的送达延迟与到达间隔。
// 每个交易所维护独立的滚动窗口，输出 P50/P90/P99。
package latency

import (
	"sort"
	"sync"

	"lightning-yield-projector/internal/core/model"
	"lightning-yield-projector/internal/util/timeutil"
)

// DefaultWindowSize 默认滚动窗口大小
const DefaultWindowSize = 10000

// Stats 延迟统计快照（滚动窗口），单位毫秒
type Stats struct {
	// Exchange 交易所标识
	Exchange string `json:"exchange"`
	// Count 行情总数（累计）
	Count int64 `json:"count"`

	// DeliveryP50Ms 交易所事件时间到本机到达的 P50 延迟
	DeliveryP50Ms float64 `json:"delivery_p50_ms"`
	// DeliveryP90Ms P90 送达延迟
	DeliveryP90Ms float64 `json:"delivery_p90_ms"`
	// DeliveryP99Ms P99 送达延迟
	DeliveryP99Ms float64 `json:"delivery_p99_ms"`

	// GapP50Ms 相邻两条行情到达间隔的 P50
	GapP50Ms float64 `json:"gap_p50_ms"`
	// GapP90Ms P90 到达间隔
	GapP90Ms float64 `json:"gap_p90_ms"`
	// GapP99Ms P99 到达间隔
	GapP99Ms float64 `json:"gap_p99_ms"`
}

type rollingWindow struct {
	size int
	buf  []int64
	pos  int
	full bool
}

func newRollingWindow(size int) *rollingWindow {
	return &rollingWindow{size: size, buf: make([]int64, 0, size)}
}

func (w *rollingWindow) add(v int64) {
	if w.size <= 0 {
		return
	}
	if !w.full {
		w.buf = append(w.buf, v)
		w.full = len(w.buf) == w.size
		return
	}
	w.buf[w.pos] = v
	w.pos = (w.pos + 1) % w.size
}

// quantiles 返回窗口内的分位数（最近秩），窗口为空时全部为 0
func (w *rollingWindow) quantiles(qs ...float64) []int64 {
	values := make([]int64, len(qs))
	n := len(w.buf)
	if n == 0 {
		return values
	}

	tmp := make([]int64, n)
	copy(tmp, w.buf)
	sort.Slice(tmp, func(i, j int) bool { return tmp[i] < tmp[j] })

	for i, q := range qs {
		switch {
		case q <= 0:
			values[i] = tmp[0]
		case q >= 1:
			values[i] = tmp[n-1]
		default:
			values[i] = tmp[int(float64(n-1)*q)]
		}
	}
	return values
}

type exchangeTracker struct {
	count         int64
	lastArrivedNs int64
	delivery      *rollingWindow
	gap           *rollingWindow
}

// Tracker 行情延迟追踪器（并发安全）
type Tracker struct {
	windowSize int

	mu        sync.Mutex
	exchanges map[string]*exchangeTracker
}

// NewTracker 创建追踪器
// 参数 windowSize: 滚动窗口大小，非正数时使用 DefaultWindowSize
func NewTracker(windowSize int) *Tracker {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Tracker{
		windowSize: windowSize,
		exchanges:  make(map[string]*exchangeTracker),
	}
}

// Add 记录一条行情
// 延迟定义：
//   - delivery = ArrivedAtUnixNs - ExchTsUnixMs（ExchTsUnixMs<=0 时不记录，如 Binance bookTicker）
//   - gap = ArrivedAtUnixNs - 同一交易所上一条行情的 ArrivedAtUnixNs
func (t *Tracker) Add(tick *model.PriceTick) {
	if tick == nil || tick.Exchange == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	et, ok := t.exchanges[tick.Exchange]
	if !ok {
		et = &exchangeTracker{
			delivery: newRollingWindow(t.windowSize),
			gap:      newRollingWindow(t.windowSize),
		}
		t.exchanges[tick.Exchange] = et
	}

	et.count++
	if tick.ExchTsUnixMs > 0 {
		et.delivery.add(tick.ArrivedAtUnixNs - timeutil.MsToNano(tick.ExchTsUnixMs))
	}
	if et.lastArrivedNs > 0 && tick.ArrivedAtUnixNs >= et.lastArrivedNs {
		et.gap.add(tick.ArrivedAtUnixNs - et.lastArrivedNs)
	}
	et.lastArrivedNs = tick.ArrivedAtUnixNs
}

// Stats 获取指定交易所的统计快照；未见过的交易所返回零值
func (t *Tracker) Stats(exchange string) Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	et, ok := t.exchanges[exchange]
	if !ok {
		return Stats{Exchange: exchange}
	}

	d := et.delivery.quantiles(0.50, 0.90, 0.99)
	g := et.gap.quantiles(0.50, 0.90, 0.99)
	return Stats{
		Exchange:      exchange,
		Count:         et.count,
		DeliveryP50Ms: nsToMs(d[0]),
		DeliveryP90Ms: nsToMs(d[1]),
		DeliveryP99Ms: nsToMs(d[2]),
		GapP50Ms:      nsToMs(g[0]),
		GapP90Ms:      nsToMs(g[1]),
		GapP99Ms:      nsToMs(g[2]),
	}
}

func nsToMs(ns int64) float64 {
	return float64(ns) / 1_000_000.0
}

package price

import (
	"context"
	"sync"
	"time"

	"lightning-yield-projector/internal/core/model"
	"lightning-yield-projector/internal/observability/metrics"
	"lightning-yield-projector/internal/util/timeutil"
)

// StreamSource 以交易所实时行情作为价格来源
// 只接受 maxAge 内到达的有效行情
type StreamSource struct {
	name    string
	maxAge  time.Duration
	metrics *metrics.Metrics

	mu        sync.RWMutex
	latest    *model.PriceTick
	observers []func(*model.PriceTick)
}

// NewStreamSource 创建实时行情来源
// 参数 exchange: 交易所标识，来源名称为 stream:<exchange>
// 参数 maxAge: 行情最大可用年龄
func NewStreamSource(exchange string, maxAge time.Duration, m *metrics.Metrics) *StreamSource {
	return &StreamSource{
		name:    "stream:" + exchange,
		maxAge:  maxAge,
		metrics: m,
	}
}

// Name 来源名称
func (s *StreamSource) Name() string {
	return s.name
}

// Observe 注册有效行情的回调（须在 Consume 前调用）
func (s *StreamSource) Observe(fn func(*model.PriceTick)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// Update 记录一条行情，无效行情被忽略
func (s *StreamSource) Update(tick *model.PriceTick) {
	if tick == nil || !tick.IsValid() {
		return
	}
	s.metrics.RecordTick(tick.Exchange)
	s.mu.Lock()
	s.latest = tick
	observers := s.observers
	s.mu.Unlock()

	for _, fn := range observers {
		fn(tick)
	}
}

// Consume 持续消费行情通道，直到通道关闭或 ctx 取消
func (s *StreamSource) Consume(ctx context.Context, ticks <-chan *model.PriceTick) {
	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-ticks:
			if !ok {
				return
			}
			s.Update(tick)
		}
	}
}

// Fetch 返回最新行情价格；无行情或已过期时返回 ErrNoPrice
func (s *StreamSource) Fetch(context.Context) (float64, error) {
	s.mu.RLock()
	tick := s.latest
	s.mu.RUnlock()

	if tick == nil || timeutil.SinceNano(tick.ArrivedAtUnixNs) > s.maxAge {
		return 0, ErrNoPrice
	}
	return tick.Price(), nil
}

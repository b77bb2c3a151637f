package price

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Poller 定时刷新价格
// 刷新失败（兜底）时保留上一次成功的报价
type Poller struct {
	chain    *Chain
	interval time.Duration
	logger   *zap.Logger
	quit     chan struct{}
	stopOnce sync.Once

	mu     sync.RWMutex
	latest Quote
	subs   []func(Quote)
}

// NewPoller 创建价格轮询器
// 参数 interval: 刷新间隔
func NewPoller(chain *Chain, interval time.Duration, logger *zap.Logger) *Poller {
	return &Poller{
		chain:    chain,
		interval: interval,
		logger:   logger.Named("poller"),
		quit:     make(chan struct{}),
		latest:   chain.Default(),
	}
}

// OnUpdate 注册报价更新回调（须在 Start 前调用）
func (p *Poller) OnUpdate(fn func(Quote)) {
	p.mu.Lock()
	p.subs = append(p.subs, fn)
	p.mu.Unlock()
}

// Refresh 立即刷新一次并返回当前报价
func (p *Poller) Refresh(ctx context.Context) Quote {
	q := p.chain.Quote(ctx)

	p.mu.Lock()
	if q.Fallback && !p.latest.Fallback {
		q = p.latest
	} else {
		p.latest = q
	}
	subs := p.subs
	p.mu.Unlock()

	for _, fn := range subs {
		fn(q)
	}
	return q
}

// Latest 最新报价
func (p *Poller) Latest() Quote {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest
}

// Start 立即刷新一次，然后按间隔刷新，阻塞直到 ctx 取消或 Stop
func (p *Poller) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("价格轮询启动", zap.Duration("interval", p.interval))
	p.Refresh(ctx)

	for {
		select {
		case <-ticker.C:
			q := p.Refresh(ctx)
			p.logger.Debug("价格已刷新", zap.Float64("price_usd", q.PriceUSD), zap.String("source", q.Source))
		case <-ctx.Done():
			p.logger.Info("价格轮询停止（上下文取消）")
			return
		case <-p.quit:
			p.logger.Info("价格轮询停止")
			return
		}
	}
}

// Stop 停止轮询
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.quit) })
}

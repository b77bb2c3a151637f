package price

import (
	"context"
	"time"

	"go.uber.org/zap"

	"lightning-yield-projector/internal/observability/metrics"
)

// Chain 按顺序尝试多个来源
type Chain struct {
	sources    []Source
	defaultUSD float64
	logger     *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewChain 创建来源链
// 参数 defaultUSD: 全部来源失败时使用的兜底价格
// 参数 m: 指标，可为 nil
func NewChain(defaultUSD float64, logger *zap.Logger, m *metrics.Metrics, sources ...Source) *Chain {
	return &Chain{
		sources:    sources,
		defaultUSD: defaultUSD,
		logger:     logger.Named("price"),
		metrics:    m,
		now:        time.Now,
	}
}

// Quote 获取价格，永不失败
// 第一个返回正价格的来源胜出，远程价格先取整到美元再判断是否为正；
// Fixed 来源原样使用；全部失败时返回兜底价格
func (c *Chain) Quote(ctx context.Context) Quote {
	for _, src := range c.sources {
		start := c.now()
		p, err := src.Fetch(ctx)
		elapsed := c.now().Sub(start)
		if _, fixed := src.(Fixed); err == nil && !fixed {
			p = Round(p)
		}
		if err == nil && !(p > 0) {
			err = ErrNoPrice
		}
		if err != nil {
			c.metrics.RecordPriceFetch(src.Name(), metrics.Error, elapsed)
			c.logger.Warn("价格来源失败，尝试下一个", zap.String("source", src.Name()), zap.Error(err))
			continue
		}

		c.metrics.RecordPriceFetch(src.Name(), metrics.Success, elapsed)
		q := Quote{PriceUSD: p, Source: src.Name(), FetchedAt: c.now()}
		c.metrics.SetPrice(q.Source, q.PriceUSD)
		c.logger.Debug("获取价格成功", zap.String("source", q.Source), zap.Float64("price_usd", q.PriceUSD))
		return q
	}

	c.metrics.RecordPriceFetch(SourceFallback, metrics.Fallback, 0)
	c.logger.Warn("所有价格来源失败，使用兜底价格", zap.Float64("price_usd", c.defaultUSD))
	return Quote{PriceUSD: c.defaultUSD, Source: SourceFallback, Fallback: true, FetchedAt: c.now()}
}

// Default 兜底报价（尚未获取任何价格时使用）
func (c *Chain) Default() Quote {
	return Quote{PriceUSD: c.defaultUSD, Source: SourceFallback, Fallback: true, FetchedAt: c.now()}
}

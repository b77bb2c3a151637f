package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"lightning-yield-projector/internal/api"
	"lightning-yield-projector/internal/config"
	"lightning-yield-projector/internal/core/model"
	"lightning-yield-projector/internal/exchange"
	"lightning-yield-projector/internal/exchange/binance"
	"lightning-yield-projector/internal/exchange/okx"
	"lightning-yield-projector/internal/history"
	"lightning-yield-projector/internal/observability/metrics"
	"lightning-yield-projector/internal/price"
	"lightning-yield-projector/internal/stats/latency"
	"lightning-yield-projector/internal/util/timeutil"
)

// feedMetricsInterval 行情连接指标日志间隔
const feedMetricsInterval = time.Minute

// buildSources 按配置顺序构建 HTTP 价格来源
// 配置了固定价格时只使用固定价格
func buildSources(cfg *config.Config, logger *zap.Logger) []price.Source {
	if cfg.Price.FixedUSD > 0 {
		return []price.Source{price.Fixed(cfg.Price.FixedUSD)}
	}

	opts := price.HTTPOptions{
		Timeout:  timeutil.Ms(cfg.Price.TimeoutMs),
		Attempts: cfg.Price.RetryAttempts,
		Delay:    timeutil.Ms(cfg.Price.RetryDelayMs),
	}
	sources := make([]price.Source, 0, len(cfg.Price.Order))
	for _, name := range cfg.Price.Order {
		p, ok := cfg.Price.Provider(name)
		if !ok || p.Disabled {
			continue
		}
		switch name {
		case config.ProviderCoinGecko:
			sources = append(sources, price.NewCoinGecko(p.URL, opts, logger))
		case config.ProviderCoinDesk:
			sources = append(sources, price.NewCoinDesk(p.URL, opts, logger))
		}
	}
	return sources
}

// newFeed 按交易所名称创建行情连接
func newFeed(cfg *config.Config, logger *zap.Logger) (*exchange.Feed, error) {
	switch cfg.Price.Stream.Exchange {
	case model.ExchangeOKX:
		return okx.NewFeed(cfg.WS.OKX, logger), nil
	case model.ExchangeBinance:
		return binance.NewFeed(cfg.WS.Binance, logger), nil
	default:
		return nil, fmt.Errorf("不支持的行情交易所 '%s'", cfg.Price.Stream.Exchange)
	}
}

// startStream 连接交易所行情并返回流式价格来源
// 返回的 wait 在行情 goroutine 全部退出后返回
func startStream(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (*price.StreamSource, func(), error) {
	feed, err := newFeed(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	startCtx, startCancel := context.WithTimeout(ctx, 10*time.Second)
	defer startCancel()
	if err := feed.Connect(startCtx); err != nil {
		return nil, nil, fmt.Errorf("%s 连接失败: %w", feed.Name(), err)
	}
	if err := feed.Subscribe(); err != nil {
		_ = feed.Close()
		return nil, nil, fmt.Errorf("%s 订阅失败: %w", feed.Name(), err)
	}

	stream := price.NewStreamSource(feed.Name(), timeutil.Ms(cfg.Price.Stream.MaxAgeMs), m)
	lag := latency.NewTracker(latency.DefaultWindowSize)
	stream.Observe(lag.Add)

	var wg conc.WaitGroup
	wg.Go(func() {
		feed.Run(ctx)
		_ = feed.Close()
	})
	wg.Go(func() { stream.Consume(ctx, feed.TickCh()) })
	wg.Go(func() { logFeedMetrics(ctx, feed, lag, logger) })

	logger.Info("行情已订阅", zap.String("exchange", feed.Name()))
	return stream, wg.Wait, nil
}

// logFeedMetrics 定期输出行情连接指标与延迟统计
func logFeedMetrics(ctx context.Context, feed *exchange.Feed, lag *latency.Tracker, logger *zap.Logger) {
	ticker := time.NewTicker(feedMetricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fm := feed.Metrics()
			ls := lag.Stats(feed.Name())
			logger.Info("行情连接指标",
				zap.String("exchange", feed.Name()),
				zap.Int64("reconnects", fm.ReconnectCount),
				zap.Int64("parse_errors", fm.ParseErrorCount),
				zap.Int64("dropped", fm.DroppedCount),
				zap.Float64("updates_per_sec", fm.UpdatesPerSec),
				zap.Int64("last_message_age_ms", fm.LastMessageAgeMs),
				zap.Int64("ws_rtt_ms", fm.WsRttMs),
				zap.Int64("ticks", ls.Count),
				zap.Float64("delivery_p50_ms", ls.DeliveryP50Ms),
				zap.Float64("delivery_p99_ms", ls.DeliveryP99Ms),
				zap.Float64("gap_p99_ms", ls.GapP99Ms),
			)
		}
	}
}

// serve 启动价格轮询与 HTTP 服务，阻塞直到 ctx 取消
func serve(ctx context.Context, cfg *config.Config, reg *prometheus.Registry, m *metrics.Metrics, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sources := buildSources(cfg, logger)
	waitStream := func() {}
	if cfg.Price.Stream.Enabled && cfg.Price.FixedUSD <= 0 {
		stream, wait, err := startStream(ctx, cfg, m, logger)
		if err != nil {
			// 行情不可用时仅依赖 HTTP 来源
			logger.Warn("交易所行情不可用", zap.Error(err))
		} else {
			sources = append([]price.Source{stream}, sources...)
			waitStream = wait
		}
	}

	chain := price.NewChain(cfg.Price.DefaultUSD, logger, m, sources...)
	poller := price.NewPoller(chain, timeutil.Ms(cfg.Price.RefreshIntervalMs), logger)
	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		poller.Start(ctx)
	}()

	var store *history.Store
	if cfg.History.Enabled {
		var err error
		if store, err = history.Open(cfg.History.Path); err != nil {
			cancel()
			<-pollerDone
			waitStream()
			return fmt.Errorf("打开运行历史失败: %w", err)
		}
	}

	apiOpts := api.Options{
		Prices:    poller,
		Metrics:   m,
		ListLimit: cfg.History.ListLimit,
		Logger:    logger,
	}
	if store != nil {
		apiOpts.Runs = store
	}
	if cfg.Server.MetricsEnabled {
		apiOpts.Gatherer = reg
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.New(apiOpts).Handler(),
		ReadTimeout:  timeutil.Ms(cfg.Server.ReadTimeoutMs),
		WriteTimeout: timeutil.Ms(cfg.Server.WriteTimeoutMs),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP 服务启动", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("HTTP 服务异常退出: %w", err)
		}
	}
	cancel()

	// 优雅关闭（超时由配置决定，默认 10s）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeutil.Ms(cfg.Server.ShutdownTimeoutMs))
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP 服务关闭失败", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		poller.Stop()
		<-pollerDone
		waitStream()
		if err := store.Close(); err != nil {
			logger.Warn("关闭运行历史失败", zap.Error(err))
		}
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Warn("关闭超时，强制退出")
	case <-done:
		logger.Info("关闭完成")
	}
	return runErr
}

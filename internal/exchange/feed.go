// Package exchange 实现交易所 BTC 行情 WebSocket 订阅的公共连接管理。
// 连接、订阅、心跳、断线重连与指标统计由 Feed 负责；
// 各交易所只需实现 Protocol（订阅消息、心跳与解析）。
package exchange

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"lightning-yield-projector/internal/config"
	"lightning-yield-projector/internal/core/model"
	"lightning-yield-projector/internal/util/backoff"
	"lightning-yield-projector/internal/util/timeutil"
)

// tickBufferSize 行情输出通道容量
const tickBufferSize = 256

// Protocol 交易所协议差异
type Protocol interface {
	// Name 交易所标识: okx, binance
	Name() string
	// Header 握手请求头
	Header() http.Header
	// SubscribeMessage 订阅请求
	SubscribeMessage() ([]byte, error)
	// Ping 发送一次心跳（调用方已持有写锁）
	Ping(conn *websocket.Conn) error
	// IsPong 判断文本消息是否为心跳响应
	IsPong(data []byte) bool
	// IsControl 判断是否为订阅响应等非行情消息
	IsControl(data []byte) bool
	// Parse 将行情消息解析为 PriceTick
	Parse(data []byte) ([]*model.PriceTick, error)
}

// ConnectionMetrics 连接质量指标
type ConnectionMetrics struct {
	// ReconnectCount 重连次数
	ReconnectCount int64
	// ParseErrorCount 解析错误次数
	ParseErrorCount int64
	// DroppedCount 因通道已满丢弃的行情数
	DroppedCount int64
	// UpdatesPerSec 每秒更新次数
	UpdatesPerSec float64
	// LastMessageAgeMs 最后消息距今时间（毫秒）
	LastMessageAgeMs int64
	// WsRttMs 心跳往返时间（毫秒）
	WsRttMs int64
}

// Feed 单个交易所的行情订阅
type Feed struct {
	// cfg WebSocket 配置
	cfg config.ExchangeWSConfig
	// proto 交易所协议
	proto Protocol
	// logger 日志记录器
	logger *zap.Logger

	// conn WebSocket 连接
	conn *websocket.Conn
	// connMu 连接锁，同时串行化写入（gorilla/websocket 不支持并发写）
	connMu sync.Mutex

	// tickCh 行情输出通道
	tickCh chan *model.PriceTick

	// metrics 连接指标
	metrics ConnectionMetrics
	// metricsMu 指标锁
	metricsMu sync.RWMutex

	// lastMsgTime 最后消息时间（纳秒）
	lastMsgTime int64
	// lastPingSentNs 上次发送 ping 的时间（纳秒）
	lastPingSentNs int64
	// lastPongRecvNs 上次收到 pong 的时间（纳秒）
	lastPongRecvNs int64
	// updateCount 更新计数（用于计算 QPS）
	updateCount int64
	// backoff 重连退避
	backoff *backoff.Backoff
	// closed 是否已关闭
	closed int32
	// closeOnce 保证通道只关闭一次
	closeOnce sync.Once

	// parseErrSampleCount 解析错误计数（用于采样日志）
	parseErrSampleCount uint64
	// lastParseErrLogNs 上次解析错误日志时间（纳秒）
	lastParseErrLogNs int64
}

// NewFeed 创建行情订阅
// 参数 cfg: WebSocket 配置
// 参数 proto: 交易所协议
// 参数 logger: 日志记录器
func NewFeed(cfg config.ExchangeWSConfig, proto Protocol, logger *zap.Logger) *Feed {
	return &Feed{
		cfg:     cfg,
		proto:   proto,
		logger:  logger.Named(proto.Name()),
		tickCh:  make(chan *model.PriceTick, tickBufferSize),
		backoff: backoff.NewDefault(),
	}
}

// Name 交易所标识
func (f *Feed) Name() string {
	return f.proto.Name()
}

// Connect 建立 WebSocket 连接
// 参数 ctx: 上下文，用于取消连接
func (f *Feed) Connect(ctx context.Context) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.cfg.URL, f.proto.Header())
	if err != nil {
		return fmt.Errorf("连接 %s WebSocket 失败: %w", f.proto.Name(), err)
	}

	// 协议层 pong 与文本 pong 统一记录
	readTimeout := timeutil.Ms(f.cfg.ReadTimeoutMs)
	if readTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	}
	conn.SetPongHandler(func(string) error {
		f.recordPong(timeutil.NowNano())
		if readTimeout > 0 {
			return conn.SetReadDeadline(time.Now().Add(readTimeout))
		}
		return nil
	})

	f.conn = conn
	f.backoff.Reset()
	f.logger.Info("WebSocket 连接成功", zap.String("url", f.cfg.URL))
	return nil
}

// Subscribe 发送订阅请求
func (f *Feed) Subscribe() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	if f.conn == nil {
		return fmt.Errorf("WebSocket 未连接")
	}

	data, err := f.proto.SubscribeMessage()
	if err != nil {
		return fmt.Errorf("序列化订阅请求失败: %w", err)
	}
	if err := f.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("发送订阅请求失败: %w", err)
	}

	f.logger.Info("订阅请求已发送", zap.String("symbol", f.cfg.Symbol))
	return nil
}

// Run 启动主循环，阻塞直到 ctx 取消或 Close
// 首次连接失败时按退避重试
func (f *Feed) Run(ctx context.Context) {
	go f.heartbeatLoop(ctx)
	go f.metricsLoop(ctx)
	go func() {
		// 关闭连接以唤醒阻塞中的 ReadMessage
		<-ctx.Done()
		f.closeConn()
	}()
	f.readLoop(ctx)
}

// readLoop 持续读取消息并解析
func (f *Feed) readLoop(ctx context.Context) {
	readTimeout := timeutil.Ms(f.cfg.ReadTimeoutMs)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if atomic.LoadInt32(&f.closed) == 1 {
			return
		}

		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()

		if conn == nil {
			f.reconnect(ctx)
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if atomic.LoadInt32(&f.closed) == 1 || ctx.Err() != nil {
				return
			}
			f.logger.Warn("读取消息失败", zap.Error(err))
			f.incrementReconnectCount()
			f.reconnect(ctx)
			continue
		}
		if readTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		}

		nowNs := timeutil.NowNano()
		atomic.StoreInt64(&f.lastMsgTime, nowNs)

		if f.proto.IsPong(data) {
			f.recordPong(nowNs)
			continue
		}

		if f.proto.IsControl(data) {
			f.logger.Debug("收到控制消息", zap.ByteString("data", data))
			continue
		}

		ticks, err := f.proto.Parse(data)
		if err != nil {
			f.incrementParseErrorCount()
			f.maybeLogParseError(err, data)
			continue
		}

		for _, tick := range ticks {
			atomic.AddInt64(&f.updateCount, 1)
			select {
			case f.tickCh <- tick:
			default:
				// 消费方只关心最新价，丢弃旧行情即可
				f.metricsMu.Lock()
				f.metrics.DroppedCount++
				f.metricsMu.Unlock()
			}
		}
	}
}

// heartbeatLoop 心跳循环
// 按 PingIntervalMs 发送 ping；配置了 PongTimeoutMs 时检查响应超时
func (f *Feed) heartbeatLoop(ctx context.Context) {
	interval := timeutil.Ms(f.cfg.PingIntervalMs)
	if interval <= 0 {
		interval = timeutil.Ms(f.cfg.ReadTimeoutMs) / 2
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if atomic.LoadInt32(&f.closed) == 1 {
				return
			}

			f.connMu.Lock()
			conn := f.conn
			if conn == nil {
				f.connMu.Unlock()
				continue
			}
			pingTime := timeutil.NowNano()
			if err := f.proto.Ping(conn); err != nil {
				f.connMu.Unlock()
				f.logger.Warn("发送 ping 失败", zap.Error(err))
				continue
			}
			atomic.StoreInt64(&f.lastPingSentNs, pingTime)
			f.connMu.Unlock()

			if f.cfg.PongTimeoutMs > 0 && f.pongOverdue(timeutil.NowNano()) {
				f.logger.Warn("心跳超时，触发重连")
				f.incrementReconnectCount()
				f.closeConn()
			}
		}
	}
}

// pongOverdue 上一次 ping 之后是否已超时未收到 pong
func (f *Feed) pongOverdue(nowNs int64) bool {
	lastPing := atomic.LoadInt64(&f.lastPingSentNs)
	lastPong := atomic.LoadInt64(&f.lastPongRecvNs)
	if lastPing == 0 || lastPong >= lastPing {
		return false
	}
	return nowNs-lastPing > int64(timeutil.Ms(f.cfg.PongTimeoutMs))
}

// recordPong 记录 pong 时间与 RTT
func (f *Feed) recordPong(nowNs int64) {
	atomic.StoreInt64(&f.lastPongRecvNs, nowNs)
	if lastPing := atomic.LoadInt64(&f.lastPingSentNs); lastPing > 0 {
		f.metricsMu.Lock()
		f.metrics.WsRttMs = (nowNs - lastPing) / 1_000_000
		f.metricsMu.Unlock()
	}
}

// metricsLoop 每秒计算 QPS 与消息年龄
func (f *Feed) metricsLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lastCount int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if atomic.LoadInt32(&f.closed) == 1 {
				return
			}

			count := atomic.LoadInt64(&f.updateCount)
			qps := float64(count - lastCount)
			lastCount = count

			var ageMs int64
			if lastMsg := atomic.LoadInt64(&f.lastMsgTime); lastMsg > 0 {
				ageMs = timeutil.SinceNano(lastMsg).Milliseconds()
			}

			f.metricsMu.Lock()
			f.metrics.UpdatesPerSec = qps
			f.metrics.LastMessageAgeMs = ageMs
			f.metricsMu.Unlock()
		}
	}
}

// reconnect 关闭旧连接，等待退避后重新连接并订阅
func (f *Feed) reconnect(ctx context.Context) {
	f.closeConn()

	delay := f.backoff.Next()
	f.logger.Info("准备重连", zap.Duration("delay", delay), zap.Int("attempt", f.backoff.Attempt()))

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	if err := f.Connect(ctx); err != nil {
		f.logger.Error("重连失败", zap.Error(err))
		return
	}
	if err := f.Subscribe(); err != nil {
		f.logger.Error("重新订阅失败", zap.Error(err))
	}
}

// closeConn 关闭连接
func (f *Feed) closeConn() {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	if f.conn != nil {
		_ = f.conn.Close()
		f.conn = nil
	}
}

// Close 关闭订阅
// 应在 Run 返回后调用，以免读循环向已关闭的通道写入
func (f *Feed) Close() error {
	atomic.StoreInt32(&f.closed, 1)
	f.closeConn()
	f.closeOnce.Do(func() {
		close(f.tickCh)
		f.logger.Info("行情订阅已关闭")
	})
	return nil
}

// TickCh 获取行情通道
func (f *Feed) TickCh() <-chan *model.PriceTick {
	return f.tickCh
}

// Metrics 获取连接指标
func (f *Feed) Metrics() ConnectionMetrics {
	f.metricsMu.RLock()
	defer f.metricsMu.RUnlock()
	return f.metrics
}

func (f *Feed) incrementReconnectCount() {
	f.metricsMu.Lock()
	f.metrics.ReconnectCount++
	f.metricsMu.Unlock()
}

func (f *Feed) incrementParseErrorCount() {
	f.metricsMu.Lock()
	f.metrics.ParseErrorCount++
	f.metricsMu.Unlock()
}

// maybeLogParseError 采样记录解析错误原始消息
// 每 100 次错误记录 1 条，且至少间隔 1 分钟
func (f *Feed) maybeLogParseError(err error, data []byte) {
	count := atomic.AddUint64(&f.parseErrSampleCount, 1)
	if count%100 != 1 {
		return
	}

	nowNs := timeutil.NowNano()
	last := atomic.LoadInt64(&f.lastParseErrLogNs)
	if last > 0 && nowNs-last < int64(time.Minute) {
		return
	}
	atomic.StoreInt64(&f.lastParseErrLogNs, nowNs)

	sample := data
	if len(sample) > 200 {
		sample = sample[:200]
	}
	f.logger.Warn("解析消息失败（采样）", zap.Error(err), zap.ByteString("data", sample), zap.Uint64("count", count))
}

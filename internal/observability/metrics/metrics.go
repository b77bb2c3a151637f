// Package metrics 定义投影器的 Prometheus 指标。
// 指标注册到传入的 Registerer，便于测试隔离；服务模式下使用默认注册表。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome 操作结果标签
type Outcome string

const (
	Success  Outcome = "success"
	Error    Outcome = "error"
	Fallback Outcome = "fallback"
)

func (o Outcome) String() string {
	return string(o)
}

// Metrics 指标集合
type Metrics struct {
	projectionRuns     *prometheus.CounterVec
	projectionFailures *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	priceFetches       *prometheus.CounterVec
	priceFetchDuration *prometheus.HistogramVec
	priceUSD           *prometheus.GaugeVec
	streamTicks        *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

// New 创建并注册指标
// 参数 reg: 注册表，nil 时使用 prometheus.DefaultRegisterer
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	defaultHistogramBucketsSeconds := []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30}

	m := &Metrics{
		projectionRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projection_runs_total",
				Help: "Number of completed projection runs by compounding policy.",
			},
			[]string{"policy"},
		),
		projectionFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projection_failures_total",
				Help: "Number of projection runs rejected by engine preconditions.",
			},
			[]string{"policy"},
		),
		validationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "input_validation_failures_total",
				Help: "Number of input validation failures by field.",
			},
			[]string{"field"},
		),
		priceFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "price_fetch_total",
				Help: "Number of BTC price fetch attempts by source and outcome.",
			},
			[]string{"source", "outcome"},
		),
		priceFetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "price_fetch_duration_seconds",
				Help:    "Histogram of BTC price fetch durations in seconds.",
				Buckets: defaultHistogramBucketsSeconds,
			},
			[]string{"source", "outcome"},
		),
		priceUSD: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "btc_price_usd",
				Help: "Latest BTC price used as the projection starting price.",
			},
			[]string{"source"},
		),
		streamTicks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stream_ticks_total",
				Help: "Number of exchange price ticks received.",
			},
			[]string{"exchange"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of API request durations in seconds.",
				Buckets: defaultHistogramBucketsSeconds,
			},
			[]string{"route", "status"},
		),
	}

	reg.MustRegister(
		m.projectionRuns,
		m.projectionFailures,
		m.validationFailures,
		m.priceFetches,
		m.priceFetchDuration,
		m.priceUSD,
		m.streamTicks,
		m.httpDuration,
	)
	return m
}

// Handler 返回 /metrics 处理器
// 参数 g: 指标来源，nil 时使用 prometheus.DefaultGatherer
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordProjection 记录一次投影
func (m *Metrics) RecordProjection(policy string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.projectionFailures.WithLabelValues(policy).Inc()
		return
	}
	m.projectionRuns.WithLabelValues(policy).Inc()
}

// RecordValidationFailures 记录验证失败字段
func (m *Metrics) RecordValidationFailures(fields []string) {
	if m == nil {
		return
	}
	for _, f := range fields {
		m.validationFailures.WithLabelValues(f).Inc()
	}
}

// RecordPriceFetch 记录一次价格获取
func (m *Metrics) RecordPriceFetch(source string, outcome Outcome, d time.Duration) {
	if m == nil {
		return
	}
	m.priceFetches.WithLabelValues(source, outcome.String()).Inc()
	m.priceFetchDuration.WithLabelValues(source, outcome.String()).Observe(d.Seconds())
}

// SetPrice 更新最新价格
func (m *Metrics) SetPrice(source string, price float64) {
	if m == nil {
		return
	}
	m.priceUSD.WithLabelValues(source).Set(price)
}

// RecordTick 记录一条交易所行情
func (m *Metrics) RecordTick(exchange string) {
	if m == nil {
		return
	}
	m.streamTicks.WithLabelValues(exchange).Inc()
}

// ObserveHTTP 记录 API 请求耗时
func (m *Metrics) ObserveHTTP(route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(route, statusClass(status)).Observe(d.Seconds())
}

// statusClass 将状态码归并为 2xx/4xx/5xx
func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

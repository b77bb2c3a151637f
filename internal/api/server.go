// Package api 提供投影计算的 HTTP 接口。
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"lightning-yield-projector/internal/core/model"
	"lightning-yield-projector/internal/history"
	"lightning-yield-projector/internal/observability/metrics"
	"lightning-yield-projector/internal/price"
)

// maxBodyBytes 请求体大小上限
const maxBodyBytes = 1 << 20

// PriceProvider 最新价格来源（price.Poller 实现）
type PriceProvider interface {
	Latest() price.Quote
}

// RunStore 运行历史（history.Store 实现）
type RunStore interface {
	Save(ctx context.Context, run *model.Run) error
	Get(ctx context.Context, id string) (*model.Run, error)
	List(ctx context.Context, limit int) ([]history.Summary, error)
}

// MaxListLimit /v1/runs 单次最多返回条数
const MaxListLimit = 500

// Options 服务依赖
type Options struct {
	// Prices 必填
	Prices PriceProvider
	// Runs 为 nil 时不保存历史，/v1/runs 返回 404
	Runs RunStore
	// Metrics 可为 nil
	Metrics *metrics.Metrics
	// Gatherer 为 nil 时不暴露 /metrics
	Gatherer prometheus.Gatherer
	// ListLimit /v1/runs 默认条数
	ListLimit int
	Logger    *zap.Logger
}

// Server HTTP 接口
type Server struct {
	prices    PriceProvider
	runs      RunStore
	metrics   *metrics.Metrics
	listLimit int
	logger    *zap.Logger
	router    chi.Router
	now       func() time.Time
}

// New 创建服务并注册路由
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := opts.ListLimit
	if limit <= 0 {
		limit = 50
	}
	limit = min(limit, MaxListLimit)
	s := &Server{
		prices:    opts.Prices,
		runs:      opts.Runs,
		metrics:   opts.Metrics,
		listLimit: limit,
		logger:    logger.Named("api"),
		now:       time.Now,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/presets", s.handlePresets)
		r.Get("/price", s.handlePrice)
		r.Post("/projections", s.handleProject)
		r.Post("/projections/compare", s.handleCompare)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
	})
	if opts.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(opts.Gatherer))
	}
	s.router = r
	return s
}

// Handler 返回根 handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// instrument 记录每个路由的耗时与状态码
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveHTTP(route, status, time.Since(start))
	})
}

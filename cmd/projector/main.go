// Package main 是闪电网络收益投影器的入口点。
// 根命令输出 20 个季度的投影报告；serve 子命令提供 HTTP 接口并定时刷新 BTC 价格。
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"lightning-yield-projector/internal/config"
	"lightning-yield-projector/internal/core/model"
	"lightning-yield-projector/internal/core/session"
	"lightning-yield-projector/internal/core/validate"
	"lightning-yield-projector/internal/history"
	"lightning-yield-projector/internal/observability/metrics"
	"lightning-yield-projector/internal/output/jsonl"
	"lightning-yield-projector/internal/price"
	"lightning-yield-projector/internal/report"
	"lightning-yield-projector/internal/util/fastparse"
)

// 退出码
const (
	exitOK      = 0
	exitFailure = 1
	exitInvalid = 2
)

type options struct {
	configPath string
	policy     string
	preset     string
	price      string
	cagr       string
	quarters   bool
	compare    bool
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		var ec exitCode
		if errors.As(err, &ec) {
			os.Exit(int(ec))
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFailure)
	}
}

// exitCode 已输出错误信息，仅需以指定退出码结束
type exitCode int

func (c exitCode) Error() string {
	return fmt.Sprintf("exit status %d", int(c))
}

// newRootCmd 构建命令行
// 根命令执行一次性投影，serve 子命令启动 HTTP 服务
func newRootCmd() *cobra.Command {
	var opts options

	rootCmd := &cobra.Command{
		Use:           "projector",
		Short:         "闪电网络收益对每股收益与每股 BTC 的 5 年投影",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), opts, func(ctx context.Context, cfg *config.Config, _ *prometheus.Registry, m *metrics.Metrics, logger *zap.Logger) error {
				if code := runOnce(ctx, cfg, opts, m, logger); code != exitOK {
					return exitCode(code)
				}
				return nil
			})
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "config.yaml", "配置文件路径（不存在时使用默认配置）")
	pf.StringVar(&opts.policy, "policy", "", "复利策略: reinvest 或 rebalance")
	pf.StringVar(&opts.preset, "preset", "", "预置情景: bear, base, bull")
	pf.StringVar(&opts.price, "price", "", "期初 BTC 价格（USD），如 65,000")
	pf.StringVar(&opts.cagr, "cagr", "", "BTC 价格年复合增长率（%）")

	rootCmd.Flags().BoolVar(&opts.quarters, "quarters", false, "输出季度明细")
	rootCmd.Flags().BoolVar(&opts.compare, "compare", true, "同时输出切换策略后的结果与变化")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务并定时刷新 BTC 价格",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), opts, serve)
		},
	})
	return rootCmd
}

// withRuntime 加载配置、日志与信号处理后执行 fn
func withRuntime(parent context.Context, opts options, fn func(context.Context, *config.Config, *prometheus.Registry, *metrics.Metrics, *zap.Logger) error) error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return fmt.Errorf("加载 .env 失败: %w", err)
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if err := applyFlags(cfg, opts); err != nil {
		fmt.Fprintf(os.Stderr, "参数错误: %v\n", err)
		return exitCode(exitInvalid)
	}

	logger := newLogger(cfg.App.LogLevel)
	defer logger.Sync()

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// 捕获 SIGINT/SIGTERM，触发优雅退出
	sigCh := make(chan os.Signal, 2)
	ossignal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer ossignal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("收到退出信号，开始优雅关闭")
			cancel()
		case <-ctx.Done():
		}
	}()

	reg := prometheus.NewRegistry()
	return fn(ctx, cfg, reg, metrics.New(reg), logger)
}

// loadConfig 读取配置文件；文件不存在时使用默认配置
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Parse(nil)
	}
	return cfg, err
}

// applyFlags 用命令行参数覆盖配置
func applyFlags(cfg *config.Config, opts options) error {
	if opts.policy != "" {
		p, err := model.ParsePolicy(opts.policy)
		if err != nil {
			return err
		}
		cfg.Scenario.Policy = p.String()
	}
	if opts.preset != "" {
		cfg.Scenario.Preset = opts.preset
	}
	if opts.price != "" {
		p, err := fastparse.ParseNumber(opts.price)
		if err != nil || !(p > 0) {
			return fmt.Errorf("无效的价格 '%s'", opts.price)
		}
		cfg.Price.FixedUSD = p
	}
	if opts.cagr != "" {
		c, err := fastparse.ParseNumber(opts.cagr)
		if err != nil {
			return fmt.Errorf("无效的 CAGR '%s'", opts.cagr)
		}
		cfg.Scenario.BtcCagrAnnualPercent = model.Float(c)
	}
	return cfg.Validate()
}

// runOnce 一次性投影：计算、切换对比、输出报告并保存结果
func runOnce(ctx context.Context, cfg *config.Config, opts options, m *metrics.Metrics, logger *zap.Logger) int {
	raw, err := cfg.Scenario.RawInput()
	if err != nil {
		fmt.Fprintf(os.Stderr, "情景配置错误: %v\n", err)
		return exitInvalid
	}
	in, errs := validate.Build(raw)
	if !errs.Valid() {
		m.RecordValidationFailures(errs.Fields())
		fmt.Fprintln(os.Stderr, "输入校验失败:")
		for _, f := range errs.Fields() {
			fmt.Fprintf(os.Stderr, "  - %s: %s\n", f, errs[f])
		}
		return exitInvalid
	}

	chain := price.NewChain(cfg.Price.DefaultUSD, logger, m, buildSources(cfg, logger)...)
	quote := chain.Quote(ctx)
	logger.Info("期初价格", zap.Float64("price_usd", quote.PriceUSD), zap.String("source", quote.Source), zap.Bool("fallback", quote.Fallback))

	sess := session.New(in, quote.PriceUSD)
	changes := make([]*session.Change, 0, 2)

	first, err := sess.Calculate()
	m.RecordProjection(sess.Policy().String(), err)
	if err != nil {
		logger.Error("投影失败", zap.Error(err))
		return exitFailure
	}
	changes = append(changes, first)

	if opts.compare {
		toggled := sess.Policy().Toggle()
		second, err := sess.SetPolicy(toggled)
		m.RecordProjection(toggled.String(), err)
		if err != nil {
			logger.Error("切换策略后投影失败", zap.Error(err))
			return exitFailure
		}
		changes = append(changes, second)
	}

	for i, ch := range changes {
		if i > 0 {
			fmt.Fprintln(os.Stdout, "\n----------------------------------------")
		}
		if err := report.Render(os.Stdout, ch.Current, report.Options{
			PriceSource: quote.Source,
			Deltas:      &ch.Deltas,
			Quarters:    opts.quarters,
		}); err != nil {
			logger.Error("输出报告失败", zap.Error(err))
			return exitFailure
		}
	}

	now := time.Now()
	runs := make([]*model.Run, 0, len(changes))
	for _, ch := range changes {
		runs = append(runs, model.NewRun(ch.Current, quote.Source, now))
	}

	code := exitOK
	if err := exportRuns(cfg.Output, runs); err != nil {
		logger.Error("导出 JSONL 失败", zap.Error(err))
		code = exitFailure
	}
	if err := saveRuns(ctx, cfg.History, runs, logger); err != nil {
		logger.Error("保存运行历史失败", zap.Error(err))
		code = exitFailure
	}
	return code
}

// exportRuns 将运行写入 JSONL
func exportRuns(cfg config.OutputConfig, runs []*model.Run) error {
	if !cfg.QuartersEnabled && !cfg.RunsEnabled {
		return nil
	}
	exp, err := jsonl.NewExporter(cfg.Dir, cfg.QuartersEnabled, cfg.RunsEnabled, cfg.BufferSize)
	if err != nil {
		return err
	}
	var errs []error
	for _, run := range runs {
		if err := exp.Export(run); err != nil {
			errs = append(errs, err)
		}
	}
	errs = append(errs, exp.Close())
	return errors.Join(errs...)
}

// saveRuns 将运行保存到历史库
func saveRuns(ctx context.Context, cfg config.HistoryConfig, runs []*model.Run, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}
	store, err := history.Open(cfg.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, run := range runs {
		if err := store.Save(ctx, run); err != nil {
			return err
		}
		logger.Debug("运行已保存", zap.String("id", run.ID), zap.String("policy", run.Result.Policy().String()))
	}
	return nil
}

func newLogger(level string) *zap.Logger {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	// 报告输出到 stdout，日志单独走 stderr
	cfg.OutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

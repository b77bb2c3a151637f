// Package config 负责加载和验证 YAML 配置文件。
// 提供投影情景、价格来源、行情连接、结果输出、运行历史与 HTTP 服务的配置项。
// 加载顺序: .env -> YAML -> 环境变量覆盖 (LYP_*) -> 默认值 -> 验证
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"lightning-yield-projector/internal/core/model"
	"lightning-yield-projector/internal/core/preset"
	"lightning-yield-projector/internal/util/fastparse"
)

// 价格提供方名称
const (
	ProviderCoinGecko = "coingecko"
	ProviderCoinDesk  = "coindesk"
)

// Config 应用配置根结构
type Config struct {
	// App 应用基础配置
	App AppConfig `yaml:"app"`
	// Scenario 投影情景（原始输入）
	Scenario ScenarioConfig `yaml:"scenario"`
	// Price 期初 BTC 价格来源配置
	Price PriceConfig `yaml:"price"`
	// WS 交易所行情 WebSocket 配置
	WS WSConfig `yaml:"ws"`
	// Output JSONL 输出配置
	Output OutputConfig `yaml:"output"`
	// History 运行历史（SQLite）配置
	History HistoryConfig `yaml:"history"`
	// Server HTTP 服务配置
	Server ServerConfig `yaml:"server"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	// Name 应用名称，用于日志标识
	Name string `yaml:"name" env:"LYP_APP_NAME"`
	// LogLevel 日志级别: debug, info, warn, error
	LogLevel string `yaml:"log_level" env:"LYP_LOG_LEVEL"`
}

// ScenarioConfig 投影情景配置
// 数值字段为指针，缺失即为 nil，交由输入验证器判定
type ScenarioConfig struct {
	// Preset 预置情景名称: bear, base, bull；为空表示不使用
	Preset string `yaml:"preset" env:"LYP_PRESET"`
	// Policy 复利策略: reinvest, rebalance
	Policy string `yaml:"policy" env:"LYP_POLICY"`
	// BtcReserves 期初国库 BTC
	BtcReserves *float64 `yaml:"btc_reserves"`
	// SharesOutstanding 完全稀释股本
	SharesOutstanding *float64 `yaml:"shares_outstanding"`
	// LightningAllocationPercent 收益池配置比例（%）
	LightningAllocationPercent *float64 `yaml:"lightning_allocation_percent"`
	// LightningYieldAnnualPercent 收益池年化收益率（%）
	LightningYieldAnnualPercent *float64 `yaml:"lightning_yield_annual_percent"`
	// BtcCagrAnnualPercent BTC 年复合增长率（%）
	BtcCagrAnnualPercent *float64 `yaml:"btc_cagr_annual_percent"`

	// 环境变量中的数字为人工输入格式（允许千分位），加载时经 fastparse 解析
	EnvBtcReserves       string `yaml:"-" env:"LYP_BTC_RESERVES"`
	EnvSharesOutstanding string `yaml:"-" env:"LYP_SHARES_OUTSTANDING"`
	EnvAllocation        string `yaml:"-" env:"LYP_LIGHTNING_ALLOCATION"`
	EnvYield             string `yaml:"-" env:"LYP_LIGHTNING_YIELD"`
	EnvBtcCagr           string `yaml:"-" env:"LYP_BTC_CAGR"`
}

// PriceConfig 期初价格配置
type PriceConfig struct {
	// FixedUSD 固定价格，> 0 时跳过所有远程来源
	FixedUSD float64 `yaml:"fixed_usd" env:"LYP_PRICE_USD"`
	// DefaultUSD 所有来源失败时的兜底价格
	DefaultUSD float64 `yaml:"default_usd"`
	// Order 远程来源尝试顺序
	Order []string `yaml:"order"`
	// CoinGecko CoinGecko 接口配置
	CoinGecko ProviderConfig `yaml:"coingecko"`
	// CoinDesk CoinDesk 接口配置
	CoinDesk ProviderConfig `yaml:"coindesk"`
	// TimeoutMs 单次 HTTP 请求超时（毫秒）
	TimeoutMs int `yaml:"timeout_ms"`
	// RetryAttempts 单个来源的最大尝试次数
	RetryAttempts uint `yaml:"retry_attempts"`
	// RetryDelayMs 重试基础间隔（毫秒），按指数退避增长
	RetryDelayMs int `yaml:"retry_delay_ms"`
	// RefreshIntervalMs 服务模式下的刷新间隔（毫秒）
	RefreshIntervalMs int `yaml:"refresh_interval_ms" env:"LYP_PRICE_REFRESH_MS"`
	// Stream 交易所实时行情来源
	Stream StreamConfig `yaml:"stream"`
}

// ProviderConfig 单个 HTTP 价格接口
type ProviderConfig struct {
	// URL 接口地址
	URL string `yaml:"url"`
	// Disabled 是否停用该来源
	Disabled bool `yaml:"disabled"`
}

// StreamConfig 实时行情来源配置
type StreamConfig struct {
	// Enabled 是否启用（服务模式下生效）
	Enabled bool `yaml:"enabled" env:"LYP_STREAM_ENABLED"`
	// Exchange 行情交易所: okx, binance
	Exchange string `yaml:"exchange" env:"LYP_STREAM_EXCHANGE"`
	// MaxAgeMs 行情最大可用年龄（毫秒），超过则视为过期
	MaxAgeMs int `yaml:"max_age_ms"`
}

// WSConfig WebSocket 连接配置
type WSConfig struct {
	// OKX OKX WebSocket 配置
	OKX ExchangeWSConfig `yaml:"okx"`
	// Binance Binance WebSocket 配置
	Binance ExchangeWSConfig `yaml:"binance"`
}

// ExchangeWSConfig 单个交易所的 WebSocket 配置
type ExchangeWSConfig struct {
	// URL WebSocket 连接地址
	URL string `yaml:"url"`
	// Symbol 交易所原始交易对，如 BTC-USDT / btcusdt
	Symbol string `yaml:"symbol"`
	// PingIntervalMs 心跳间隔（毫秒）
	PingIntervalMs int `yaml:"ping_interval_ms"`
	// PongTimeoutMs 心跳响应超时（毫秒）
	PongTimeoutMs int `yaml:"pong_timeout_ms"`
	// ReadTimeoutMs 读取超时（毫秒）
	ReadTimeoutMs int `yaml:"read_timeout_ms"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	// Dir 输出目录
	Dir string `yaml:"dir" env:"LYP_OUTPUT_DIR"`
	// QuartersEnabled 是否输出逐季度结果 quarters.jsonl
	QuartersEnabled bool `yaml:"quarters_enabled"`
	// RunsEnabled 是否输出运行汇总 runs.jsonl
	RunsEnabled bool `yaml:"runs_enabled"`
	// BufferSize 异步写入缓冲区大小
	BufferSize int `yaml:"buffer_size"`
}

// HistoryConfig 运行历史配置
type HistoryConfig struct {
	// Enabled 是否持久化运行记录
	Enabled bool `yaml:"enabled" env:"LYP_HISTORY_ENABLED"`
	// Path SQLite 文件路径
	Path string `yaml:"path" env:"LYP_HISTORY_PATH"`
	// ListLimit 列表接口默认返回条数
	ListLimit int `yaml:"list_limit"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	// Addr 监听地址
	Addr string `yaml:"addr" env:"LYP_SERVER_ADDR"`
	// ReadTimeoutMs 读超时（毫秒）
	ReadTimeoutMs int `yaml:"read_timeout_ms"`
	// WriteTimeoutMs 写超时（毫秒）
	WriteTimeoutMs int `yaml:"write_timeout_ms"`
	// ShutdownTimeoutMs 优雅关闭超时（毫秒）
	ShutdownTimeoutMs int `yaml:"shutdown_timeout_ms"`
	// MetricsEnabled 是否暴露 /metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`
}

// Load 从文件加载配置并验证
// 参数 path: 配置文件路径
// 返回: 解析后的配置对象，若失败则返回错误
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	return Parse(data)
}

// Parse 从 YAML 字节解析配置，并应用环境变量覆盖、默认值与验证
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &cfg, nil
}

// LoadDotEnv 加载 .env 文件到进程环境变量
// 文件不存在时忽略；已存在的环境变量不会被覆盖
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("加载 %s 失败: %w", f, err)
		}
	}
	return nil
}

// applyEnv 应用 LYP_* 环境变量覆盖
func (c *Config) applyEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("解析环境变量失败: %w", err)
	}

	overrides := []struct {
		name string
		raw  string
		dst  **float64
	}{
		{"LYP_BTC_RESERVES", c.Scenario.EnvBtcReserves, &c.Scenario.BtcReserves},
		{"LYP_SHARES_OUTSTANDING", c.Scenario.EnvSharesOutstanding, &c.Scenario.SharesOutstanding},
		{"LYP_LIGHTNING_ALLOCATION", c.Scenario.EnvAllocation, &c.Scenario.LightningAllocationPercent},
		{"LYP_LIGHTNING_YIELD", c.Scenario.EnvYield, &c.Scenario.LightningYieldAnnualPercent},
		{"LYP_BTC_CAGR", c.Scenario.EnvBtcCagr, &c.Scenario.BtcCagrAnnualPercent},
	}
	for _, o := range overrides {
		v, err := fastparse.ParseOptionalNumber(o.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", o.name, err)
		}
		if v != nil {
			*o.dst = v
		}
	}
	return nil
}

// setDefaults 设置配置默认值
func (c *Config) setDefaults() {
	if c.App.Name == "" {
		c.App.Name = "lightning-yield-projector"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}

	// 情景默认值与界面初始表单一致；CAGR 无默认值
	if c.Scenario.Policy == "" {
		c.Scenario.Policy = string(model.PolicyReinvest)
	}
	def := preset.DefaultInput()
	if c.Scenario.BtcReserves == nil {
		c.Scenario.BtcReserves = model.Float(*def.BtcReserves)
	}
	if c.Scenario.SharesOutstanding == nil {
		c.Scenario.SharesOutstanding = model.Float(*def.SharesOutstanding)
	}
	if c.Scenario.LightningAllocationPercent == nil {
		c.Scenario.LightningAllocationPercent = model.Float(def.LightningAllocationPercent)
	}
	if c.Scenario.LightningYieldAnnualPercent == nil {
		c.Scenario.LightningYieldAnnualPercent = model.Float(def.LightningYieldAnnualPercent)
	}

	// 价格
	if c.Price.DefaultUSD == 0 {
		c.Price.DefaultUSD = 65000
	}
	if len(c.Price.Order) == 0 {
		c.Price.Order = []string{ProviderCoinGecko, ProviderCoinDesk}
	}
	if c.Price.CoinGecko.URL == "" {
		c.Price.CoinGecko.URL = "https://api.coingecko.com/api/v3/simple/price?ids=bitcoin&vs_currencies=usd"
	}
	if c.Price.CoinDesk.URL == "" {
		c.Price.CoinDesk.URL = "https://api.coindesk.com/v1/bpi/currentprice.json"
	}
	if c.Price.TimeoutMs == 0 {
		c.Price.TimeoutMs = 10000 // 10 秒
	}
	if c.Price.RetryAttempts == 0 {
		c.Price.RetryAttempts = 3
	}
	if c.Price.RetryDelayMs == 0 {
		c.Price.RetryDelayMs = 500
	}
	if c.Price.RefreshIntervalMs == 0 {
		c.Price.RefreshIntervalMs = 300000 // 5 分钟
	}
	if c.Price.Stream.Exchange == "" {
		c.Price.Stream.Exchange = model.ExchangeOKX
	}
	if c.Price.Stream.MaxAgeMs == 0 {
		c.Price.Stream.MaxAgeMs = 10000 // 10 秒
	}

	// WebSocket
	if c.WS.OKX.URL == "" {
		c.WS.OKX.URL = "wss://ws.okx.com:8443/ws/v5/public"
	}
	if c.WS.OKX.Symbol == "" {
		c.WS.OKX.Symbol = "BTC-USDT"
	}
	if c.WS.OKX.PingIntervalMs == 0 {
		c.WS.OKX.PingIntervalMs = 25000 // 25 秒
	}
	if c.WS.OKX.PongTimeoutMs == 0 {
		c.WS.OKX.PongTimeoutMs = 10000 // 10 秒
	}
	if c.WS.Binance.URL == "" {
		c.WS.Binance.URL = "wss://stream.binance.com:9443/ws"
	}
	if c.WS.Binance.Symbol == "" {
		c.WS.Binance.Symbol = "btcusdt"
	}
	if c.WS.Binance.ReadTimeoutMs == 0 {
		c.WS.Binance.ReadTimeoutMs = 30000 // 30 秒
	}

	// 输出
	if c.Output.Dir == "" {
		c.Output.Dir = "./output"
	}
	if c.Output.BufferSize == 0 {
		c.Output.BufferSize = 1000
	}

	// 历史
	if c.History.Path == "" {
		c.History.Path = "./output/history.db"
	}
	if c.History.ListLimit == 0 {
		c.History.ListLimit = 50
	}

	// 服务
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeoutMs == 0 {
		c.Server.ReadTimeoutMs = 5000
	}
	if c.Server.WriteTimeoutMs == 0 {
		c.Server.WriteTimeoutMs = 10000
	}
	if c.Server.ShutdownTimeoutMs == 0 {
		c.Server.ShutdownTimeoutMs = 10000
	}
}

// Validate 验证配置合法性
// 只检查配置本身；情景数值的业务校验由输入验证器负责
// 返回: 若配置无效则返回描述性错误
func (c *Config) Validate() error {
	var errs []string

	// 验证日志级别
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.App.LogLevel)] {
		errs = append(errs, fmt.Sprintf("app.log_level: 无效的日志级别 '%s'，有效值: debug, info, warn, error", c.App.LogLevel))
	}

	// 情景
	if _, err := model.ParsePolicy(c.Scenario.Policy); err != nil {
		errs = append(errs, "scenario.policy: "+err.Error())
	}
	if c.Scenario.Preset != "" {
		if _, ok := preset.Get(c.Scenario.Preset); !ok {
			errs = append(errs, fmt.Sprintf("scenario.preset: 未知情景 '%s'，有效值: %s", c.Scenario.Preset, strings.Join(preset.Names(), ", ")))
		}
	}
	if a := c.Scenario.LightningAllocationPercent; a != nil && (*a < 0 || *a > 100) {
		errs = append(errs, fmt.Sprintf("scenario.lightning_allocation_percent: 必须在 0-100 之间，当前值: %g", *a))
	}
	if y := c.Scenario.LightningYieldAnnualPercent; y != nil && *y < 0 {
		errs = append(errs, fmt.Sprintf("scenario.lightning_yield_annual_percent: 不能为负数，当前值: %g", *y))
	}

	// 价格
	if c.Price.FixedUSD < 0 {
		errs = append(errs, "price.fixed_usd: 固定价格不能为负数")
	}
	if c.Price.DefaultUSD <= 0 {
		errs = append(errs, "price.default_usd: 兜底价格必须为正数")
	}
	for i, name := range c.Price.Order {
		switch name {
		case ProviderCoinGecko, ProviderCoinDesk:
		default:
			errs = append(errs, fmt.Sprintf("price.order[%d]: 未知价格来源 '%s'", i, name))
		}
	}
	if c.Price.TimeoutMs <= 0 {
		errs = append(errs, "price.timeout_ms: 超时时间必须为正数")
	}
	if c.Price.RetryDelayMs < 0 {
		errs = append(errs, "price.retry_delay_ms: 重试间隔不能为负数")
	}
	if c.Price.RefreshIntervalMs <= 0 {
		errs = append(errs, "price.refresh_interval_ms: 刷新间隔必须为正数")
	}
	if c.Price.Stream.Exchange != model.ExchangeOKX && c.Price.Stream.Exchange != model.ExchangeBinance {
		errs = append(errs, fmt.Sprintf("price.stream.exchange: 无效的交易所 '%s'，有效值: okx, binance", c.Price.Stream.Exchange))
	}
	if c.Price.Stream.MaxAgeMs <= 0 {
		errs = append(errs, "price.stream.max_age_ms: 行情最大年龄必须为正数")
	}

	// WebSocket（仅在启用实时行情时要求）
	if c.Price.Stream.Enabled {
		ws := c.WS.OKX
		if c.Price.Stream.Exchange == model.ExchangeBinance {
			ws = c.WS.Binance
		}
		if ws.URL == "" {
			errs = append(errs, fmt.Sprintf("ws.%s.url: WebSocket 地址不能为空", c.Price.Stream.Exchange))
		}
		if ws.Symbol == "" {
			errs = append(errs, fmt.Sprintf("ws.%s.symbol: 交易对不能为空", c.Price.Stream.Exchange))
		}
	}

	// 输出
	if c.Output.BufferSize <= 0 {
		errs = append(errs, "output.buffer_size: 缓冲区大小必须为正数")
	}

	// 历史
	if c.History.ListLimit <= 0 {
		errs = append(errs, "history.list_limit: 列表条数必须为正数")
	}

	// 服务
	if c.Server.ShutdownTimeoutMs <= 0 {
		errs = append(errs, "server.shutdown_timeout_ms: 关闭超时必须为正数")
	}

	if len(errs) > 0 {
		return fmt.Errorf("配置验证错误:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// RawInput 将情景配置转换为未验证的原始输入
// 配置了预置情景时覆盖配置比例、收益率与 CAGR
func (s *ScenarioConfig) RawInput() (model.RawInput, error) {
	policy, err := model.ParsePolicy(s.Policy)
	if err != nil {
		return model.RawInput{}, err
	}

	raw := model.RawInput{
		BtcReserves:          s.BtcReserves,
		SharesOutstanding:    s.SharesOutstanding,
		BtcCagrAnnualPercent: s.BtcCagrAnnualPercent,
		Policy:               policy,
	}
	if s.LightningAllocationPercent != nil {
		raw.LightningAllocationPercent = *s.LightningAllocationPercent
	}
	if s.LightningYieldAnnualPercent != nil {
		raw.LightningYieldAnnualPercent = *s.LightningYieldAnnualPercent
	}

	if s.Preset != "" {
		return preset.Apply(raw, s.Preset)
	}
	return raw, nil
}

// Provider 按名称获取价格接口配置
func (p *PriceConfig) Provider(name string) (ProviderConfig, bool) {
	switch name {
	case ProviderCoinGecko:
		return p.CoinGecko, true
	case ProviderCoinDesk:
		return p.CoinDesk, true
	default:
		return ProviderConfig{}, false
	}
}

package price

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
)

// 远程来源名称
const (
	NameCoinGecko = "coingecko"
	NameCoinDesk  = "coindesk"
)

// HTTPOptions HTTP 来源参数
type HTTPOptions struct {
	// Timeout 单次请求超时
	Timeout time.Duration
	// Attempts 最大尝试次数（至少 1）
	Attempts uint
	// Delay 重试基础间隔，按指数退避增长
	Delay time.Duration
}

// StatusError 非 200 响应
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP 状态码错误: %d", e.Code)
}

// extractFunc 从响应体提取价格
type extractFunc func(body []byte) (float64, error)

// HTTPSource 基于 HTTP JSON 接口的价格来源
type HTTPSource struct {
	name    string
	url     string
	client  *http.Client
	opts    HTTPOptions
	extract extractFunc
	logger  *zap.Logger
}

// NewCoinGecko 创建 CoinGecko 来源
// 响应格式: {"bitcoin":{"usd":65000.12}}
func NewCoinGecko(url string, opts HTTPOptions, logger *zap.Logger) *HTTPSource {
	return newHTTPSource(NameCoinGecko, url, opts, ParseCoinGecko, logger)
}

// NewCoinDesk 创建 CoinDesk 来源
// 响应格式: {"bpi":{"USD":{"rate_float":65000.12}}}
func NewCoinDesk(url string, opts HTTPOptions, logger *zap.Logger) *HTTPSource {
	return newHTTPSource(NameCoinDesk, url, opts, ParseCoinDesk, logger)
}

func newHTTPSource(name, url string, opts HTTPOptions, extract extractFunc, logger *zap.Logger) *HTTPSource {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Attempts == 0 {
		opts.Attempts = 1
	}
	return &HTTPSource{
		name:    name,
		url:     url,
		client:  &http.Client{Timeout: opts.Timeout},
		opts:    opts,
		extract: extract,
		logger:  logger.Named(name),
	}
}

// Name 来源名称
func (s *HTTPSource) Name() string {
	return s.name
}

// Fetch 请求接口并提取价格
// 网络错误、429 与 5xx 按指数退避重试；其余错误立即返回
func (s *HTTPSource) Fetch(ctx context.Context) (float64, error) {
	call := func() (float64, error) {
		body, err := s.doRequest(ctx)
		if err != nil {
			return 0, err
		}
		return s.extract(body)
	}

	p, err := retry.DoWithData(call,
		retry.Context(ctx),
		retry.Attempts(s.opts.Attempts),
		retry.Delay(s.opts.Delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Debug("价格请求失败，准备重试",
				zap.Uint("attempt", n+1),
				zap.Uint("max_attempts", s.opts.Attempts),
				zap.Error(err))
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", s.name, err)
	}
	return p, nil
}

// doRequest 发送 GET 请求并读取响应体
func (s *HTTPSource) doRequest(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("User-Agent", "lightning-yield-projector/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}
	return body, nil
}

// retryable 判断错误是否值得重试
func retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	// 响应格式错误与缺少价格不会因重试改善
	if errors.Is(err, ErrNoPrice) {
		return false
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return !errors.As(err, &syntaxErr) && !errors.As(err, &typeErr)
}

// ParseCoinGecko 解析 CoinGecko simple/price 响应
func ParseCoinGecko(body []byte) (float64, error) {
	var resp struct {
		Bitcoin *struct {
			USD float64 `json:"usd"`
		} `json:"bitcoin"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("解析 CoinGecko 响应失败: %w", err)
	}
	if resp.Bitcoin == nil || !(resp.Bitcoin.USD > 0) {
		return 0, ErrNoPrice
	}
	return resp.Bitcoin.USD, nil
}

// ParseCoinDesk 解析 CoinDesk currentprice 响应
func ParseCoinDesk(body []byte) (float64, error) {
	var resp struct {
		BPI struct {
			USD *struct {
				RateFloat float64 `json:"rate_float"`
			} `json:"USD"`
		} `json:"bpi"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("解析 CoinDesk 响应失败: %w", err)
	}
	if resp.BPI.USD == nil || !(resp.BPI.USD.RateFloat > 0) {
		return 0, ErrNoPrice
	}
	return resp.BPI.USD.RateFloat, nil
}

package binance

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"lightning-yield-projector/internal/config"
	"lightning-yield-projector/internal/core/model"
	"lightning-yield-projector/internal/exchange"
)

var _ exchange.Protocol = (*Protocol)(nil)

// Protocol Binance 现货行情流协议
// 连接地址: wss://stream.binance.com:9443/ws
// 心跳机制: 协议层 ping/pong
type Protocol struct {
	symbol string
	parser *Parser
}

// NewProtocol 创建 Binance 协议
// 参数 symbol: 交易对，如 btcusdt
func NewProtocol(symbol string) *Protocol {
	return &Protocol{symbol: strings.ToLower(symbol), parser: NewParser(symbol)}
}

// NewFeed 创建 Binance BTC 行情订阅
func NewFeed(cfg config.ExchangeWSConfig, logger *zap.Logger) *exchange.Feed {
	return exchange.NewFeed(cfg, NewProtocol(cfg.Symbol), logger)
}

// Name 交易所标识
func (p *Protocol) Name() string { return model.ExchangeBinance }

// Header 握手请求头
func (p *Protocol) Header() http.Header {
	header := http.Header{}
	header.Set("User-Agent", "lightning-yield-projector/1.0")
	header.Set("Origin", "https://www.binance.com")
	return header
}

// SubscribeMessage 订阅 bookTicker 流（参数要求小写 symbol）
func (p *Protocol) SubscribeMessage() ([]byte, error) {
	return json.Marshal(SubscribeRequest{
		Method: "SUBSCRIBE",
		Params: []string{fmt.Sprintf("%s@bookTicker", p.symbol)},
		ID:     1,
	})
}

// Ping 发送协议层 ping
func (p *Protocol) Ping(conn *websocket.Conn) error {
	return conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
}

// IsPong pong 由协议层处理，文本消息中不存在
func (p *Protocol) IsPong([]byte) bool { return false }

// IsControl 判断是否为订阅响应
func (p *Protocol) IsControl(data []byte) bool { return IsSubscribeResponse(data) }

// Parse 解析 bookTicker 推送
func (p *Protocol) Parse(data []byte) ([]*model.PriceTick, error) { return p.parser.Parse(data) }

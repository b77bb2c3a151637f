package okx

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"lightning-yield-projector/internal/config"
	"lightning-yield-projector/internal/core/model"
	"lightning-yield-projector/internal/exchange"
)

var _ exchange.Protocol = (*Protocol)(nil)

// Protocol OKX 公共频道协议
// 连接地址: wss://ws.okx.com:8443/ws/v5/public
// 心跳机制: 文本 ping/pong
type Protocol struct {
	instId string
	parser *Parser
}

// NewProtocol 创建 OKX 协议
// 参数 instId: 产品 ID，如 BTC-USDT
func NewProtocol(instId string) *Protocol {
	return &Protocol{instId: instId, parser: NewParser(instId)}
}

// NewFeed 创建 OKX BTC 行情订阅
func NewFeed(cfg config.ExchangeWSConfig, logger *zap.Logger) *exchange.Feed {
	return exchange.NewFeed(cfg, NewProtocol(cfg.Symbol), logger)
}

// Name 交易所标识
func (p *Protocol) Name() string { return model.ExchangeOKX }

// Header 握手请求头
func (p *Protocol) Header() http.Header {
	header := http.Header{}
	header.Set("Origin", "https://www.okx.com")
	header.Set("User-Agent", "lightning-yield-projector/1.0")
	return header
}

// SubscribeMessage 订阅 tickers 频道
func (p *Protocol) SubscribeMessage() ([]byte, error) {
	return json.Marshal(SubscribeRequest{
		Op:   "subscribe",
		Args: []SubscribeArg{{Channel: channelTickers, InstId: p.instId}},
	})
}

// Ping 发送文本 ping
func (p *Protocol) Ping(conn *websocket.Conn) error {
	return conn.WriteMessage(websocket.TextMessage, []byte("ping"))
}

// IsPong 判断是否为文本 pong
func (p *Protocol) IsPong(data []byte) bool { return IsPong(data) }

// IsControl 判断是否为订阅响应
func (p *Protocol) IsControl(data []byte) bool { return IsSubscribeResponse(data) }

// Parse 解析 tickers 推送
func (p *Protocol) Parse(data []byte) ([]*model.PriceTick, error) { return p.parser.Parse(data) }

// Package binance 实现 Binance bookTicker 解析与连接协议。
// bookTicker 不含事件时间，ExchTsUnixMs 置 0
package binance

import (
	"encoding/json"
	"fmt"
	"strings"

	"lightning-yield-projector/internal/core/model"
	"lightning-yield-projector/internal/util/fastparse"
	"lightning-yield-projector/internal/util/timeutil"
)

// Parser Binance 消息解析器
type Parser struct {
	// symbol 订阅的交易对（大写），其余推送被忽略
	symbol string
}

// NewParser 创建 Binance 消息解析器
// 参数 symbol: 交易对，大小写均可，如 btcusdt
func NewParser(symbol string) *Parser {
	return &Parser{symbol: strings.ToUpper(symbol)}
}

// Parse 解析 Binance WebSocket 消息为 PriceTick
// 返回: 0 或 1 个 PriceTick
func (p *Parser) Parse(data []byte) ([]*model.PriceTick, error) {
	arrivedAt := timeutil.NowNano()

	var msg BookTicker
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("解析 Binance 消息失败: %w", err)
	}
	if msg.Symbol == "" || strings.ToUpper(msg.Symbol) != p.symbol {
		return nil, nil
	}

	bid, err := fastparse.ParseFloat(msg.BidPx)
	if err != nil {
		return nil, fmt.Errorf("解析 Binance 买一价失败: %w", err)
	}
	ask, err := fastparse.ParseFloat(msg.AskPx)
	if err != nil {
		return nil, fmt.Errorf("解析 Binance 卖一价失败: %w", err)
	}

	return []*model.PriceTick{{
		Exchange:        model.ExchangeBinance,
		Symbol:          msg.Symbol,
		BestBidPx:       bid,
		BestAskPx:       ask,
		ArrivedAtUnixNs: arrivedAt,
	}}, nil
}

// IsSubscribeResponse 判断是否为订阅响应
func IsSubscribeResponse(data []byte) bool {
	var resp SubscribeResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return false
	}
	return resp.ID != nil
}

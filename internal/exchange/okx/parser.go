// Package okx 实现 OKX tickers 频道解析与连接协议。
// 字段映射: bidPx/askPx -> 中间价, last -> 最新成交价, ts -> ExchTsUnixMs
package okx

import (
	"encoding/json"
	"fmt"

	"lightning-yield-projector/internal/core/model"
	"lightning-yield-projector/internal/util/fastparse"
	"lightning-yield-projector/internal/util/timeutil"
)

// channelTickers 行情频道
const channelTickers = "tickers"

// Parser OKX 消息解析器
type Parser struct {
	// instId 订阅的产品 ID，其余产品的推送被忽略
	instId string
}

// NewParser 创建 OKX 消息解析器
// 参数 instId: 产品 ID，如 BTC-USDT
func NewParser(instId string) *Parser {
	return &Parser{instId: instId}
}

// Parse 解析 OKX WebSocket 消息
// 返回: PriceTick 列表（一条消息可能包含多条数据），非 tickers 消息返回空
func (p *Parser) Parse(data []byte) ([]*model.PriceTick, error) {
	arrivedAt := timeutil.NowNano()

	var msg TickersMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("解析 OKX 消息失败: %w", err)
	}
	if msg.Arg.Channel != channelTickers || len(msg.Data) == 0 {
		return nil, nil
	}

	ticks := make([]*model.PriceTick, 0, len(msg.Data))
	for i := range msg.Data {
		d := &msg.Data[i]
		if d.InstId != p.instId {
			continue
		}
		tick, err := parseTicker(d, arrivedAt)
		if err != nil {
			return nil, err
		}
		ticks = append(ticks, tick)
	}
	return ticks, nil
}

// parseTicker 解析单条 tickers 数据
// 价格字段缺失时为 0，由 PriceTick.IsValid 判定可用性
func parseTicker(d *TickerData, arrivedAt int64) (*model.PriceTick, error) {
	tick := &model.PriceTick{
		Exchange:        model.ExchangeOKX,
		Symbol:          d.InstId,
		BestBidPx:       fastparse.MustParseFloat(d.BidPx),
		BestAskPx:       fastparse.MustParseFloat(d.AskPx),
		LastPx:          fastparse.MustParseFloat(d.Last),
		ArrivedAtUnixNs: arrivedAt,
	}
	if d.Ts != "" {
		ts, err := fastparse.ParseInt(d.Ts)
		if err != nil {
			return nil, fmt.Errorf("解析 OKX ts 失败: %w", err)
		}
		tick.ExchTsUnixMs = ts
	}
	return tick, nil
}

// IsSubscribeResponse 判断是否为订阅响应
func IsSubscribeResponse(data []byte) bool {
	var resp SubscribeResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return false
	}
	return resp.Event == "subscribe" || resp.Event == "error"
}

// IsPong 判断是否为 pong 响应
func IsPong(data []byte) bool {
	return string(data) == "pong"
}

package model

import (
	"time"
)

// 交易所标识常量
const (
	// ExchangeOKX OKX 交易所
	ExchangeOKX = "okx"
	// ExchangeBinance Binance 交易所
	ExchangeBinance = "binance"
)

// PriceTick 统一价格行情事件
// 用于归一化交易所推送的 BTC 报价，作为期初价格的实时来源
type PriceTick struct {
	// Exchange 交易所标识: okx, binance
	Exchange string
	// Symbol 交易所原始交易对，如 BTC-USDT / BTCUSDT
	Symbol string
	// BestBidPx 最优买价
	BestBidPx float64
	// BestAskPx 最优卖价
	BestAskPx float64
	// LastPx 最新成交价（Binance bookTicker 无此字段，设为 0）
	LastPx float64
	// ArrivedAtUnixNs 本机收到消息的时间戳（纳秒）
	ArrivedAtUnixNs int64
	// ExchTsUnixMs 交易所事件时间戳（毫秒），无则为 0
	ExchTsUnixMs int64
}

// IsValid 检查行情是否可用
// 有效条件: 买卖价格都大于 0 且买价 <= 卖价，或最新成交价大于 0
func (t *PriceTick) IsValid() bool {
	if t.BestBidPx > 0 && t.BestAskPx > 0 && t.BestBidPx <= t.BestAskPx {
		return true
	}
	return t.LastPx > 0
}

// MidPrice 计算中间价
// 公式: (BestBidPx + BestAskPx) / 2
func (t *PriceTick) MidPrice() float64 {
	return (t.BestBidPx + t.BestAskPx) / 2
}

// Price 行情代表价格：优先中间价，买卖盘缺失时退回最新成交价
func (t *PriceTick) Price() float64 {
	if t.BestBidPx > 0 && t.BestAskPx > 0 && t.BestBidPx <= t.BestAskPx {
		return t.MidPrice()
	}
	return t.LastPx
}

// ArrivedAt 获取到达时间的 time.Time 表示
func (t *PriceTick) ArrivedAt() time.Time {
	return time.Unix(0, t.ArrivedAtUnixNs)
}

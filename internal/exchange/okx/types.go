// Package okx 定义 OKX 交易所消息类型。
package okx

// SubscribeRequest OKX 订阅请求
type SubscribeRequest struct {
	// Op 操作类型: subscribe, unsubscribe
	Op string `json:"op"`
	// Args 订阅参数列表
	Args []SubscribeArg `json:"args"`
}

// SubscribeArg 订阅参数
type SubscribeArg struct {
	// Channel 频道名称: tickers
	Channel string `json:"channel"`
	// InstId 产品 ID: BTC-USDT
	InstId string `json:"instId"`
}

// SubscribeResponse OKX 订阅响应
type SubscribeResponse struct {
	// Event 事件类型: subscribe, error
	Event string `json:"event"`
	// Arg 订阅参数
	Arg *SubscribeArg `json:"arg,omitempty"`
	// Code 错误码
	Code string `json:"code,omitempty"`
	// Msg 错误消息
	Msg string `json:"msg,omitempty"`
}

// TickersMessage OKX tickers 频道推送
type TickersMessage struct {
	// Arg 订阅参数
	Arg SubscribeArg `json:"arg"`
	// Data 行情列表
	Data []TickerData `json:"data"`
}

// TickerData OKX 单条行情
// 数值字段均为字符串；ts 为毫秒时间戳字符串
type TickerData struct {
	// InstId 产品 ID
	InstId string `json:"instId"`
	// Last 最新成交价
	Last string `json:"last"`
	// BidPx 买一价
	BidPx string `json:"bidPx"`
	// AskPx 卖一价
	AskPx string `json:"askPx"`
	// Ts 交易所时间戳（毫秒字符串）
	Ts string `json:"ts"`
}

// Package binance 定义 Binance 交易所消息类型。
package binance

// SubscribeRequest Binance WebSocket 订阅请求
type SubscribeRequest struct {
	// Method 订阅方法: SUBSCRIBE
	Method string `json:"method"`
	// Params 订阅参数列表，如 "btcusdt@bookTicker"
	Params []string `json:"params"`
	// ID 请求 ID
	ID int64 `json:"id"`
}

// SubscribeResponse Binance WebSocket 订阅响应
// 通常形如 {"result":null,"id":1}
type SubscribeResponse struct {
	// Result 结果（成功为 null）
	Result any `json:"result"`
	// ID 请求 ID；行情推送中不存在该字段
	ID *int64 `json:"id"`
}

// BookTicker Binance bookTicker 推送
// 字段映射:
// - u: 订单簿更新 ID
// - s: Symbol（如 BTCUSDT）
// - b/B: 买一价/买一量（字符串）
// - a/A: 卖一价/卖一量（字符串）
type BookTicker struct {
	// UpdateID 订单簿更新 ID
	UpdateID int64 `json:"u"`
	// Symbol 交易对（大写）
	Symbol string `json:"s"`
	// BidPx 买一价
	BidPx string `json:"b"`
	// BidQty 买一量
	BidQty string `json:"B"`
	// AskPx 卖一价
	AskPx string `json:"a"`
	// AskQty 卖一量
	AskQty string `json:"A"`
}

// Package binance Binance 解析器测试
package binance

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"lightning-yield-projector/internal/core/model"
)

// TestParser_RoundTrip 解析后的买卖价应与推送一致
func TestParser_RoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	parser := NewParser("btcusdt")

	properties.Property("解析保留买卖价", prop.ForAll(
		func(bidPx, spread float64, updateID int64) bool {
			askPx := bidPx + spread
			msg := BookTicker{
				UpdateID: updateID,
				Symbol:   "BTCUSDT",
				BidPx:    fmt.Sprintf("%.2f", bidPx),
				BidQty:   "1.5",
				AskPx:    fmt.Sprintf("%.2f", askPx),
				AskQty:   "2.0",
			}
			data, err := json.Marshal(msg)
			if err != nil {
				return false
			}

			ticks, err := parser.Parse(data)
			if err != nil || len(ticks) != 1 {
				return false
			}
			tick := ticks[0]
			bidDiff := tick.BestBidPx - bidPx
			askDiff := tick.BestAskPx - askPx
			return bidDiff < 0.01 && bidDiff > -0.01 &&
				askDiff < 0.01 && askDiff > -0.01 &&
				tick.Exchange == model.ExchangeBinance &&
				tick.LastPx == 0 &&
				tick.IsValid()
		},
		gen.Float64Range(10000, 200000),
		gen.Float64Range(0.1, 50),
		gen.Int64Range(1, 1_000_000_000),
	))

	properties.TestingRun(t)
}

func TestParser_SpecificMessages(t *testing.T) {
	parser := NewParser("BTCUSDT")

	tests := []struct {
		name      string
		message   string
		wantTick  bool
		wantPrice float64
		wantErr   bool
	}{
		{
			name:      "标准 bookTicker 消息",
			message:   `{"u":400900217,"s":"BTCUSDT","b":"65000.00","B":"31.21","a":"65002.00","A":"40.66"}`,
			wantTick:  true,
			wantPrice: 65001,
		},
		{
			name:    "其他交易对",
			message: `{"u":1,"s":"ETHUSDT","b":"3000","B":"1","a":"3001","A":"1"}`,
		},
		{
			name:    "订阅响应无 symbol",
			message: `{"result":null,"id":1}`,
		},
		{
			name:    "非法价格",
			message: `{"u":1,"s":"BTCUSDT","b":"x","B":"1","a":"3001","A":"1"}`,
			wantErr: true,
		},
		{
			name:    "无效 JSON",
			message: `{invalid json}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticks, err := parser.Parse([]byte(tt.message))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantTick {
				if len(ticks) != 0 {
					t.Fatalf("行情数量=%d, want 0", len(ticks))
				}
				return
			}
			if len(ticks) != 1 {
				t.Fatalf("行情数量=%d, want 1", len(ticks))
			}
			if got := ticks[0].Price(); got != tt.wantPrice {
				t.Fatalf("Price()=%v, want %v", got, tt.wantPrice)
			}
		})
	}
}

func TestProtocol(t *testing.T) {
	p := NewProtocol("BTCUSDT")

	data, err := p.SubscribeMessage()
	if err != nil {
		t.Fatalf("SubscribeMessage: %v", err)
	}
	want := `{"method":"SUBSCRIBE","params":["btcusdt@bookTicker"],"id":1}`
	if string(data) != want {
		t.Fatalf("SubscribeMessage()=%s, want %s", data, want)
	}

	if !p.IsControl([]byte(`{"result":null,"id":1}`)) {
		t.Fatalf("订阅响应应识别为控制消息")
	}
	if p.IsControl([]byte(`{"u":1,"s":"BTCUSDT","b":"1","B":"1","a":"2","A":"1"}`)) {
		t.Fatalf("行情推送不应识别为控制消息")
	}
	if p.IsPong([]byte("pong")) {
		t.Fatalf("Binance 不使用文本 pong")
	}
}

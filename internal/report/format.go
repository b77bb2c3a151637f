package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"lightning-yield-projector/internal/core/model"
)

// NotAvailable 非有限数值的占位文本
const NotAvailable = "n/a"

var printer = message.NewPrinter(language.English)

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Number 千分位整数，如 14,805,000
func Number(v float64) string {
	if !finite(v) {
		return NotAvailable
	}
	return printer.Sprintf("%d", decimal.NewFromFloat(v).Round(0).IntPart())
}

// Fixed 千分位并保留 places 位小数
func Fixed(v float64, places int32) string {
	if !finite(v) {
		return NotAvailable
	}
	rounded := decimal.NewFromFloat(v).Round(places).InexactFloat64()
	return printer.Sprintf(fmt.Sprintf("%%.%df", places), rounded)
}

// Currency 美元金额，两位小数，如 $1,234.56
func Currency(v float64) string {
	s := Fixed(math.Abs(v), 2)
	if s == NotAvailable {
		return s
	}
	if v < 0 && s != "0.00" {
		return "-$" + s
	}
	return "$" + s
}

// WholeDollars 整数美元，如 $65,000
func WholeDollars(v float64) string {
	return strings.TrimSuffix(Currency(v), ".00")
}

// BTC 两位小数的 BTC 数量
func BTC(v float64) string {
	return Fixed(v, 2)
}

// ExactBTC 精确到 satoshi 的 BTC 数量，如 5021.5 BTC
func ExactBTC(v float64) string {
	amt, err := btcutil.NewAmount(v)
	if err != nil {
		return NotAvailable
	}
	return amt.Format(btcutil.AmountBTC)
}

// Percent 最多一位小数的百分比数值，如 15 或 12.5
func Percent(v float64) string {
	if !finite(v) {
		return NotAvailable
	}
	return decimal.NewFromFloat(v).Round(1).String()
}

// SignedPercent 带符号、一位小数的变化百分比，如 +12.3%
func SignedPercent(v float64) string {
	if !finite(v) {
		return NotAvailable
	}
	s := decimal.NewFromFloat(v).StringFixed(1)
	if v > 0 {
		s = "+" + s
	}
	return s + "%"
}

// ReinvestLabel 复投开关的展示状态
// 复投开关 ON 对应 reinvest，OFF 对应 rebalance
func ReinvestLabel(p model.CompoundingPolicy) string {
	if p.Rebalances() {
		return "OFF"
	}
	return "ON"
}

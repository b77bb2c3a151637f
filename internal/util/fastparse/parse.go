// Package fastparse 提供数值字符串解析函数。
// 用于解析交易所推送中的价格字段，以及用户输入中带千分位的数字。
package fastparse

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseFloat 解析浮点数字符串，如 "65012.5"
func ParseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// ParseInt 解析 64 位整数字符串，如交易所毫秒时间戳 "1700000000000"
func ParseInt(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// MustParseFloat 解析浮点数，失败时返回 0
// 用于已知格式正确的交易所字段
func MustParseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseNumber 解析人工输入的数字
// 去除首尾空白、千分位逗号、下划线与前导 $，百分号结尾会被忽略
// 例: "14,805,000" -> 14805000, "$65,000.50" -> 65000.5, "15%" -> 15
func ParseNumber(s string) (float64, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.TrimSuffix(cleaned, "%")
	cleaned = strings.NewReplacer(",", "", "_", "", " ", "").Replace(cleaned)
	if cleaned == "" {
		return 0, fmt.Errorf("空数字: %q", s)
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("无法解析数字 %q: %w", s, err)
	}
	return v, nil
}

// ParseOptionalNumber 解析可为空的人工输入
// 空字符串返回 nil（表示字段缺失），其余同 ParseNumber
func ParseOptionalNumber(s string) (*float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	v, err := ParseNumber(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

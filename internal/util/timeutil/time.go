// Package timeutil 提供时间相关的工具函数。
// 主要用于行情到达时间戳与报价新鲜度判断。
package timeutil

import (
	"time"
)

var (
	// baseTime 基准时间点（包含单调时钟读数）
	baseTime = time.Now()
	// baseUnixNs 基准时间点对应的 Unix 纳秒时间戳
	baseUnixNs = baseTime.UnixNano()
)

// NowNano 获取当前时间的纳秒时间戳
// NowNano = baseUnixNs + time.Since(baseTime).Nanoseconds()
// 系统时间跳变时仍保持单调，报价年龄不会出现负值
func NowNano() int64 {
	return baseUnixNs + time.Since(baseTime).Nanoseconds()
}

// SinceNano 计算从指定纳秒时间戳到现在的时间差
func SinceNano(startNs int64) time.Duration {
	return time.Duration(NowNano() - startNs)
}

// Ms 将毫秒配置值转换为 time.Duration
// 配置文件统一使用 *_ms 整数字段
func Ms(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// MsToNano 将毫秒时间戳转换为纳秒时间戳
func MsToNano(ms int64) int64 {
	return ms * int64(time.Millisecond)
}

// Package validate 实现投影输入的完整性校验。
// 所有规则独立评估并全部上报，不短路。
package validate

import (
	"lightning-yield-projector/internal/core/model"
)

// 字段名（ErrorMap 的 key）
const (
	FieldBtcReserves       = "btcReserves"
	FieldSharesOutstanding = "sharesOutstanding"
	FieldBtcCagr           = "btcCagr"
)

// 错误消息
const (
	MsgMustBePositive = "Must be > 0"
	MsgRequired       = "Required"
)

// fieldOrder 字段上报顺序，同时决定 First() 的结果
var fieldOrder = []string{FieldBtcReserves, FieldSharesOutstanding, FieldBtcCagr}

// fieldIDs 字段到界面焦点目标的映射
var fieldIDs = map[string]string{
	FieldBtcReserves:       "btc-reserves",
	FieldSharesOutstanding: "shares-outstanding",
	FieldBtcCagr:           "btc-cagr",
}

// ErrorMap 字段名 -> 可读错误消息；为空表示输入有效
type ErrorMap map[string]string

// Valid 是否无错误
func (m ErrorMap) Valid() bool {
	return len(m) == 0
}

// First 按固定字段顺序返回第一个出错字段；无错误返回空字符串
func (m ErrorMap) First() string {
	for _, f := range fieldOrder {
		if _, ok := m[f]; ok {
			return f
		}
	}
	return ""
}

// Fields 按固定顺序返回所有出错字段
func (m ErrorMap) Fields() []string {
	out := make([]string, 0, len(m))
	for _, f := range fieldOrder {
		if _, ok := m[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// FieldID 返回字段对应的界面焦点目标 ID；未知字段返回空字符串
func FieldID(field string) string {
	return fieldIDs[field]
}

// Validate 校验原始输入
// 规则:
//   - btcReserves 缺失、为 0 或为负 => "Must be > 0"
//   - sharesOutstanding 缺失、为 0 或为负 => "Must be > 0"
//   - btcCagr 缺失 => "Required"（不检查符号与范围）
func Validate(raw model.RawInput) ErrorMap {
	errs := ErrorMap{}

	if raw.BtcReserves == nil || !(*raw.BtcReserves > 0) {
		errs[FieldBtcReserves] = MsgMustBePositive
	}
	if raw.SharesOutstanding == nil || !(*raw.SharesOutstanding > 0) {
		errs[FieldSharesOutstanding] = MsgMustBePositive
	}
	if raw.BtcCagrAnnualPercent == nil {
		errs[FieldBtcCagr] = MsgRequired
	}

	return errs
}

// Build 校验并构造不可变的投影输入
// 返回: 输入有效时 ErrorMap 为空；策略为空时按复投模式处理
func Build(raw model.RawInput) (model.ProjectionInput, ErrorMap) {
	errs := Validate(raw)
	if !errs.Valid() {
		return model.ProjectionInput{}, errs
	}

	policy := raw.Policy
	if policy == "" {
		policy = model.PolicyReinvest
	}

	return model.ProjectionInput{
		BtcReserves:                 *raw.BtcReserves,
		SharesOutstanding:           *raw.SharesOutstanding,
		LightningAllocationPercent:  raw.LightningAllocationPercent,
		LightningYieldAnnualPercent: raw.LightningYieldAnnualPercent,
		BtcCagrAnnualPercent:        *raw.BtcCagrAnnualPercent,
		Policy:                      policy,
	}, errs
}

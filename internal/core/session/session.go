// Package session 维护一次计算会话的输入、期初价格与最近两次投影结果。
// 使用单写者模式：由调用方在单个 goroutine 中驱动。
package session

import (
	"fmt"

	"lightning-yield-projector/internal/core/model"
	"lightning-yield-projector/internal/core/projection"
	"lightning-yield-projector/internal/stats/delta"
)

// Change 一次重新计算的结果
type Change struct {
	// Previous 上一次结果（首次计算为 nil）
	Previous *model.ProjectionResult `json:"previous,omitempty"`
	// Current 本次结果
	Current *model.ProjectionResult `json:"current"`
	// Deltas 相对上一次的变化
	Deltas delta.Deltas `json:"deltas"`
}

// Session 计算会话（单写者）
// 注意：引擎本身不保存历史；上一次结果只在生成 Change 之前保留。
type Session struct {
	// input 不含策略的基础输入，策略单独保存
	input model.ProjectionInput
	// policy 当前复利策略
	policy model.CompoundingPolicy
	// price 期初 BTC 价格
	price float64
	// current 最近一次结果
	current *model.ProjectionResult
}

// New 创建会话
// 参数 input: 已校验的输入（其 Policy 作为初始策略，无效策略由 Calculate 报错）
// 参数 priceAtT0: 期初价格
func New(input model.ProjectionInput, priceAtT0 float64) *Session {
	return &Session{
		input:  input,
		policy: input.Policy,
		price:  priceAtT0,
	}
}

// Policy 当前策略
func (s *Session) Policy() model.CompoundingPolicy {
	return s.policy
}

// Price 期初价格
func (s *Session) Price() float64 {
	return s.price
}

// Current 最近一次结果，可能为 nil；返回的指针应视为只读。
func (s *Session) Current() *model.ProjectionResult {
	return s.current
}

// Calculate 以当前策略运行引擎
func (s *Session) Calculate() (*Change, error) {
	res, err := projection.Project(s.input.WithPolicy(s.policy), s.price)
	if err != nil {
		return nil, fmt.Errorf("运行投影失败: %w", err)
	}

	ch := &Change{
		Previous: s.current,
		Current:  res,
		Deltas:   delta.Compare(s.current, res),
	}
	s.current = res
	return ch, nil
}

// SetPolicy 切换策略并重新计算；策略未变化时仍会重新计算
func (s *Session) SetPolicy(p model.CompoundingPolicy) (*Change, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("无效的复利策略 '%s'", p)
	}
	prev := s.policy
	s.policy = p
	ch, err := s.Calculate()
	if err != nil {
		s.policy = prev
		return nil, err
	}
	return ch, nil
}

// TogglePolicy 翻转策略并重新计算
func (s *Session) TogglePolicy() (*Change, error) {
	return s.SetPolicy(s.policy.Toggle())
}

// SetPrice 更新期初价格；不会自动重新计算
func (s *Session) SetPrice(price float64) {
	s.price = price
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// Run 一次已完成的投影运行
// 同时用于 JSONL 导出与运行历史
type Run struct {
	// ID 运行 ID（UUID）
	ID string `json:"id"`
	// CreatedAt 运行时间（UTC）
	CreatedAt time.Time `json:"created_at"`
	// PriceSource 期初价格来源，如 coingecko / fallback
	PriceSource string `json:"price_source"`
	// Result 投影结果
	Result *ProjectionResult `json:"result"`
}

// NewRun 为投影结果分配运行 ID
func NewRun(result *ProjectionResult, priceSource string, at time.Time) *Run {
	return &Run{
		ID:          uuid.NewString(),
		CreatedAt:   at.UTC(),
		PriceSource: priceSource,
		Result:      result,
	}
}

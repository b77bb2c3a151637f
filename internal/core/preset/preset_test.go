// Package preset 预置情景测试
package preset

import (
	"testing"

	"lightning-yield-projector/internal/core/validate"
)

func TestApply_OnlyOverridesScenarioFields(t *testing.T) {
	raw := DefaultInput()
	out, err := Apply(raw, "Bull")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.LightningAllocationPercent != 25 || out.LightningYieldAnnualPercent != 6 || *out.BtcCagrAnnualPercent != 37 {
		t.Fatalf("Apply(bull) 结果不正确: %+v", out)
	}
	if *out.BtcReserves != 5021 || *out.SharesOutstanding != 14805000 || out.Policy != raw.Policy {
		t.Fatalf("Apply 不应修改其余字段: %+v", out)
	}
	if Match(out) != "bull" {
		t.Fatalf("Match=%q, want bull", Match(out))
	}
}

func TestApply_Unknown(t *testing.T) {
	if _, err := Apply(DefaultInput(), "moon"); err == nil {
		t.Fatalf("未知情景应返回错误")
	}
}

func TestDefaultInput_RequiresCagr(t *testing.T) {
	errs := validate.Validate(DefaultInput())
	if len(errs) != 1 || errs[validate.FieldBtcCagr] != validate.MsgRequired {
		t.Fatalf("errs=%v, want only btcCagr Required", errs)
	}
	if Match(DefaultInput()) != "" {
		t.Fatalf("CAGR 为空时不应匹配任何情景")
	}

	base, err := Apply(DefaultInput(), "base")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !validate.Validate(base).Valid() {
		t.Fatalf("应用基准情景后输入应有效")
	}
}

func TestAll_Order(t *testing.T) {
	all := All()
	if len(all) != 3 || all[0].Name != "bear" || all[1].Name != "base" || all[2].Name != "bull" {
		t.Fatalf("All()=%v, want bear/base/bull", all)
	}
}

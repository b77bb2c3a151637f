// Package validate 输入校验测试
package validate

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"lightning-yield-projector/internal/core/model"
)

func validRaw() model.RawInput {
	return model.RawInput{
		BtcReserves:                 model.Float(5021),
		SharesOutstanding:           model.Float(14805000),
		LightningAllocationPercent:  15,
		LightningYieldAnnualPercent: 4,
		BtcCagrAnnualPercent:        model.Float(29),
		Policy:                      model.PolicyReinvest,
	}
}

func TestValidate_Valid(t *testing.T) {
	errs := Validate(validRaw())
	if !errs.Valid() {
		t.Fatalf("errs=%v, want empty", errs)
	}
	if errs.First() != "" {
		t.Fatalf("First()=%q, want empty", errs.First())
	}
}

func TestValidate_AllReported(t *testing.T) {
	errs := Validate(model.RawInput{})
	if len(errs) != 3 {
		t.Fatalf("len(errs)=%d, want 3 (%v)", len(errs), errs)
	}
	if errs[FieldBtcReserves] != MsgMustBePositive {
		t.Fatalf("btcReserves=%q, want %q", errs[FieldBtcReserves], MsgMustBePositive)
	}
	if errs[FieldSharesOutstanding] != MsgMustBePositive {
		t.Fatalf("sharesOutstanding=%q, want %q", errs[FieldSharesOutstanding], MsgMustBePositive)
	}
	if errs[FieldBtcCagr] != MsgRequired {
		t.Fatalf("btcCagr=%q, want %q", errs[FieldBtcCagr], MsgRequired)
	}
	if errs.First() != FieldBtcReserves {
		t.Fatalf("First()=%q, want %q", errs.First(), FieldBtcReserves)
	}
	if FieldID(errs.First()) != "btc-reserves" {
		t.Fatalf("FieldID=%q, want btc-reserves", FieldID(errs.First()))
	}
}

func TestValidate_FirstFollowsFieldOrder(t *testing.T) {
	raw := validRaw()
	raw.SharesOutstanding = model.Float(0)
	raw.BtcCagrAnnualPercent = nil

	errs := Validate(raw)
	if got := errs.Fields(); len(got) != 2 || got[0] != FieldSharesOutstanding || got[1] != FieldBtcCagr {
		t.Fatalf("Fields()=%v, want [sharesOutstanding btcCagr]", got)
	}
	if FieldID(errs.First()) != "shares-outstanding" {
		t.Fatalf("FieldID=%q, want shares-outstanding", FieldID(errs.First()))
	}
}

func TestValidate_CagrSignNotChecked(t *testing.T) {
	for _, cagr := range []float64{0, -50, -150} {
		raw := validRaw()
		raw.BtcCagrAnnualPercent = model.Float(cagr)
		if errs := Validate(raw); !errs.Valid() {
			t.Fatalf("cagr=%g: errs=%v, want empty", cagr, errs)
		}
	}
}

func TestBuild(t *testing.T) {
	raw := validRaw()
	raw.Policy = ""

	in, errs := Build(raw)
	if !errs.Valid() {
		t.Fatalf("errs=%v", errs)
	}
	if in.Policy != model.PolicyReinvest {
		t.Fatalf("Policy=%s, want reinvest", in.Policy)
	}
	if in.BtcReserves != 5021 || in.SharesOutstanding != 14805000 || in.BtcCagrAnnualPercent != 29 {
		t.Fatalf("Build 结果不正确: %+v", in)
	}

	raw.BtcReserves = nil
	if _, errs := Build(raw); errs.Valid() {
		t.Fatalf("缺失 btcReserves 时 Build 应返回错误")
	}
}

func TestValidate_NonPositive_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("储备或股本非正数应报错", prop.ForAll(
		func(v float64, reservesField bool) bool {
			raw := validRaw()
			field := FieldSharesOutstanding
			if reservesField {
				raw.BtcReserves = model.Float(v)
				field = FieldBtcReserves
			} else {
				raw.SharesOutstanding = model.Float(v)
			}
			errs := Validate(raw)
			return len(errs) == 1 && errs[field] == MsgMustBePositive
		},
		gen.Float64Range(-1e9, 0),
		gen.Bool(),
	))

	properties.Property("储备与股本为正数且 CAGR 存在时应通过", prop.ForAll(
		func(reserves, shares, cagr float64) bool {
			raw := validRaw()
			raw.BtcReserves = model.Float(reserves)
			raw.SharesOutstanding = model.Float(shares)
			raw.BtcCagrAnnualPercent = model.Float(cagr)
			return Validate(raw).Valid()
		},
		gen.Float64Range(1e-6, 1e9),
		gen.Float64Range(1, 1e10),
		gen.Float64Range(-1000, 1000),
	))

	properties.TestingRun(t)
}

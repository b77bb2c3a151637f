package report

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"lightning-yield-projector/internal/core/model"
	"lightning-yield-projector/internal/core/projection"
	"lightning-yield-projector/internal/stats/delta"
)

func TestFormatters(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"Number", Number(14805000), "14,805,000"},
		{"Number 取整", Number(1234.6), "1,235"},
		{"Number NaN", Number(math.NaN()), NotAvailable},
		{"Currency", Currency(1234.567), "$1,234.57"},
		{"Currency 负数", Currency(-0.5), "-$0.50"},
		{"Currency 零", Currency(0), "$0.00"},
		{"WholeDollars", WholeDollars(65000), "$65,000"},
		{"WholeDollars 保留小数", WholeDollars(65000.5), "$65,000.50"},
		{"BTC", BTC(753.149), "753.15"},
		{"ExactBTC", ExactBTC(5021), "5021 BTC"},
		{"ExactBTC Inf", ExactBTC(math.Inf(1)), NotAvailable},
		{"Percent 整数", Percent(15), "15"},
		{"Percent 一位", Percent(12.345), "12.3"},
		{"SignedPercent 正", SignedPercent(12.34), "+12.3%"},
		{"SignedPercent 负", SignedPercent(-5), "-5.0%"},
		{"SignedPercent 零", SignedPercent(0), "0.0%"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Fatalf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestReinvestLabel(t *testing.T) {
	if got := ReinvestLabel(model.PolicyReinvest); got != "ON" {
		t.Fatalf("reinvest => %q, want ON", got)
	}
	if got := ReinvestLabel(model.PolicyRebalance); got != "OFF" {
		t.Fatalf("rebalance => %q, want OFF", got)
	}
}

func baseResult(t *testing.T, policy model.CompoundingPolicy) *model.ProjectionResult {
	t.Helper()
	res, err := projection.Project(model.ProjectionInput{
		BtcReserves:                 5021,
		SharesOutstanding:           14805000,
		LightningAllocationPercent:  15,
		LightningYieldAnnualPercent: 4,
		BtcCagrAnnualPercent:        29,
		Policy:                      policy,
	}, 65000)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	return res
}

func TestRender(t *testing.T) {
	res := baseResult(t, model.PolicyRebalance)
	d := delta.Compare(baseResult(t, model.PolicyReinvest), res)

	var buf bytes.Buffer
	if err := Render(&buf, res, Options{PriceSource: "coingecko", Deltas: &d, Quarters: true}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"5,021 BTC",
		"15% Lightning",
		"14,805,000 shares",
		"$65,000 (coingecko)",
		"Reinvest Yield: OFF (rebalance)",
		"vs. previous setting",
		"Y1Q1",
		"Y5Q4",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("报告缺少 %q:\n%s", want, out)
		}
	}
}

func TestRender_NoDeltasWithoutPrevious(t *testing.T) {
	res := baseResult(t, model.PolicyReinvest)
	d := delta.Compare(nil, res)

	var buf bytes.Buffer
	if err := Render(&buf, res, Options{Deltas: &d}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(buf.String(), "vs. previous setting") {
		t.Fatalf("首次运行不应显示变化:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "Y1Q1") {
		t.Fatalf("未请求季度明细:\n%s", buf.String())
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestRender_Errors(t *testing.T) {
	if err := Render(&bytes.Buffer{}, nil, Options{}); err == nil {
		t.Fatalf("nil 结果应返回错误")
	}
	if err := Render(failingWriter{}, baseResult(t, model.PolicyReinvest), Options{}); err == nil {
		t.Fatalf("写入失败应返回错误")
	}
}

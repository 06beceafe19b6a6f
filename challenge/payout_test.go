package challenge

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"

	"github.com/tradege/marketedgepros-sub001/models"
)

func TestSplitProfit(t *testing.T) {
	p := &models.TradingProgram{ProfitSplit: dec("80")}

	trader, platform := SplitProfit(p, dec("1000"))
	if !trader.Equal(dec("800")) || !platform.Equal(dec("200")) {
		t.Errorf("80/20 of 1000 = %s / %s", trader, platform)
	}

	trader, platform = SplitProfit(p, dec("0"))
	if !trader.IsZero() || !platform.IsZero() {
		t.Errorf("zero profit split = %s / %s", trader, platform)
	}

	trader, platform = SplitProfit(p, dec("-500"))
	if !trader.IsZero() || !platform.IsZero() {
		t.Errorf("negative profit split = %s / %s", trader, platform)
	}
}

func TestSplitProfitProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	genProfit := gen.Float64Range(0.01, 1e7).Map(func(f float64) decimal.Decimal {
		return decimal.NewFromFloat(f).Round(2)
	})
	genSplit := gen.IntRange(1, 100).Map(func(n int) decimal.Decimal {
		return decimal.NewFromInt(int64(n))
	})

	properties.Property("shares sum to the profit exactly", prop.ForAll(
		func(profit, split decimal.Decimal) bool {
			p := &models.TradingProgram{ProfitSplit: split}
			trader, platform := SplitProfit(p, profit)
			return trader.Add(platform).Equal(profit)
		},
		genProfit, genSplit,
	))

	properties.Property("trader share is rounded to cents and non-negative", prop.ForAll(
		func(profit, split decimal.Decimal) bool {
			p := &models.TradingProgram{ProfitSplit: split}
			trader, _ := SplitProfit(p, profit)
			return trader.Exponent() >= -2 && !trader.IsNegative()
		},
		genProfit, genSplit,
	))

	properties.TestingRun(t)
}

func TestPayableProfit(t *testing.T) {
	c := &models.Challenge{InitialBalance: dec("100000")}

	if got := PayableProfit(c, dec("104250.50")); !got.Equal(dec("4250.50")) {
		t.Errorf("PayableProfit = %s", got)
	}
	if got := PayableProfit(c, dec("99000")); !got.IsZero() {
		t.Errorf("negative profit should floor at zero, got %s", got)
	}
	if got := PayableProfit(c, dec("100000")); !got.IsZero() {
		t.Errorf("flat equity should yield zero, got %s", got)
	}
}

func TestMeetsPayoutMinimum(t *testing.T) {
	p := &models.TradingProgram{MinimumPayoutAmount: dec("100")}
	if !MeetsPayoutMinimum(p, dec("100")) {
		t.Error("amount at the minimum should qualify")
	}
	if MeetsPayoutMinimum(p, dec("99.99")) {
		t.Error("amount below the minimum should not qualify")
	}
}

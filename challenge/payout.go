package challenge

import (
	"github.com/shopspring/decimal"

	"github.com/tradege/marketedgepros-sub001/models"
	"github.com/tradege/marketedgepros-sub001/wallet"
)

var oneHundred = decimal.NewFromInt(100)

// SplitProfit divides a funded account's realized profit between trader and
// platform. The trader share is rounded to cents; the platform keeps the
// remainder so the two shares always sum to the profit exactly.
func SplitProfit(p *models.TradingProgram, profit decimal.Decimal) (trader, platform decimal.Decimal) {
	if !profit.IsPositive() {
		return decimal.Zero, decimal.Zero
	}
	trader = wallet.Round2(profit.Mul(p.ProfitSplit).Div(oneHundred))
	platform = profit.Sub(trader)
	return trader, platform
}

// PayableProfit is the profit eligible for a payout request: equity above the
// funded account's initial balance, floored at zero.
func PayableProfit(c *models.Challenge, equity decimal.Decimal) decimal.Decimal {
	profit := equity.Sub(c.InitialBalance)
	if profit.IsNegative() {
		return decimal.Zero
	}
	return wallet.Round2(profit)
}

// MeetsPayoutMinimum checks the program's minimum payout threshold.
func MeetsPayoutMinimum(p *models.TradingProgram, amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(p.MinimumPayoutAmount)
}

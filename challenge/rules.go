package challenge

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradege/marketedgepros-sub001/models"
)

// Verdict is the outcome of evaluating one equity observation against the
// program rules.
type Verdict int

const (
	VerdictNone Verdict = iota
	VerdictTotalLossBreach
	VerdictDailyLossBreach
	VerdictPhasePassed
	VerdictExpired
)

func (v Verdict) String() string {
	switch v {
	case VerdictTotalLossBreach:
		return "total_loss_breach"
	case VerdictDailyLossBreach:
		return "daily_loss_breach"
	case VerdictPhasePassed:
		return "phase_passed"
	case VerdictExpired:
		return "expired"
	}
	return "none"
}

// UTCDay truncates t to its UTC calendar day. All daily-loss accounting uses
// UTC day boundaries regardless of broker server time.
func UTCDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameUTCDay reports whether two instants fall on the same UTC calendar day.
func SameUTCDay(a, b time.Time) bool {
	return UTCDay(a).Equal(UTCDay(b))
}

// TotalLossBreached reports whether equity has fallen below the floor
// initial_balance - max_total_loss. The boundary itself is a breach.
func TotalLossBreached(p *models.TradingProgram, c *models.Challenge, equity decimal.Decimal) bool {
	floor := c.InitialBalance.Sub(p.MaxTotalLoss)
	return equity.LessThanOrEqual(floor)
}

// DailyLossBreached reports whether today's drawdown from the day-open
// balance has reached max_daily_loss.
func DailyLossBreached(p *models.TradingProgram, c *models.Challenge, equity decimal.Decimal) bool {
	drop := c.DayOpenBalance.Sub(equity)
	return drop.GreaterThanOrEqual(p.MaxDailyLoss)
}

// ProfitTargetReached reports whether equity meets initial + profit_target.
func ProfitTargetReached(p *models.TradingProgram, c *models.Challenge, equity decimal.Decimal) bool {
	return equity.GreaterThanOrEqual(c.InitialBalance.Add(p.ProfitTarget))
}

// PhaseComplete requires the profit target plus the minimum trading days.
// The target alone flags profit_target_reached; the phase only passes once
// enough distinct trading days have accrued.
func PhaseComplete(p *models.TradingProgram, c *models.Challenge, equity decimal.Decimal) bool {
	return ProfitTargetReached(p, c, equity) && c.TradingDaysCount >= p.MinTradingDays
}

// TimeExpired reports whether the phase ran past its trading-day allowance.
// A zero max means unlimited.
func TimeExpired(p *models.TradingProgram, c *models.Challenge, now time.Time) bool {
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return true
	}
	return p.MaxTradingDays > 0 && c.TradingDaysCount > p.MaxTradingDays
}

// Evaluate applies the rules in a fixed priority order. Loss breaches win over
// a simultaneous target hit, and total loss wins over daily loss. Funded
// accounts are never evaluated against a profit target.
func Evaluate(p *models.TradingProgram, c *models.Challenge, equity decimal.Decimal, now time.Time) Verdict {
	if TotalLossBreached(p, c, equity) {
		return VerdictTotalLossBreach
	}
	if DailyLossBreached(p, c, equity) {
		return VerdictDailyLossBreach
	}
	if c.Status == models.ChallengeStatusFunded {
		return VerdictNone
	}
	if PhaseComplete(p, c, equity) {
		return VerdictPhasePassed
	}
	if TimeExpired(p, c, now) {
		return VerdictExpired
	}
	return VerdictNone
}

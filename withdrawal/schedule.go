package withdrawal

import (
	"time"

	"github.com/tradege/marketedgepros-sub001/models"
)

const (
	biweeklyPeriod = 14 * 24 * time.Hour
	monthlyPeriod  = 30 * 24 * time.Hour
)

// NextPayoutAt returns the earliest wall-clock time a scheduled program may
// open its next payout. The clock anchors on the last completed payout, or on
// the challenge start when none has completed yet. On-demand programs are
// always due.
func NextPayoutAt(mode string, startedAt time.Time, lastCompleted *time.Time) time.Time {
	var period time.Duration
	switch mode {
	case models.PayoutModeBiweekly:
		period = biweeklyPeriod
	case models.PayoutModeMonthly:
		period = monthlyPeriod
	default:
		return time.Time{}
	}
	anchor := startedAt
	if lastCompleted != nil {
		anchor = *lastCompleted
	}
	return anchor.Add(period)
}

// PayoutDue reports whether a payout may be requested now under the program's
// payout mode.
func PayoutDue(mode string, startedAt time.Time, lastCompleted *time.Time, now time.Time) bool {
	next := NextPayoutAt(mode, startedAt, lastCompleted)
	return next.IsZero() || !now.Before(next)
}

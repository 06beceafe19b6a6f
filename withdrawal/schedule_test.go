package withdrawal

import (
	"testing"
	"time"

	"github.com/tradege/marketedgepros-sub001/models"
)

func TestPayoutDue(t *testing.T) {
	started := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	completed := started.AddDate(0, 0, 20)

	cases := []struct {
		name          string
		mode          string
		lastCompleted *time.Time
		now           time.Time
		want          bool
	}{
		{"on demand is always due", models.PayoutModeOnDemand, nil, started.Add(time.Hour), true},
		{"biweekly before window", models.PayoutModeBiweekly, nil, started.AddDate(0, 0, 13), false},
		{"biweekly at window", models.PayoutModeBiweekly, nil, started.AddDate(0, 0, 14), true},
		{"biweekly anchors on last payout", models.PayoutModeBiweekly, &completed, completed.AddDate(0, 0, 10), false},
		{"biweekly after last payout window", models.PayoutModeBiweekly, &completed, completed.AddDate(0, 0, 14), true},
		{"monthly before window", models.PayoutModeMonthly, nil, started.AddDate(0, 0, 29), false},
		{"monthly at window", models.PayoutModeMonthly, nil, started.AddDate(0, 0, 30), true},
	}
	for _, tc := range cases {
		if got := PayoutDue(tc.mode, started, tc.lastCompleted, tc.now); got != tc.want {
			t.Errorf("%s: PayoutDue = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestNextPayoutAtOnDemandIsZero(t *testing.T) {
	started := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if next := NextPayoutAt(models.PayoutModeOnDemand, started, nil); !next.IsZero() {
		t.Fatalf("on-demand next payout = %v, want zero", next)
	}
}

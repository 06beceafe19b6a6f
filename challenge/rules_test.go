package challenge

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"

	"github.com/tradege/marketedgepros-sub001/models"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testProgram() *models.TradingProgram {
	return &models.TradingProgram{
		ProfitTarget:   dec("8000"),
		MaxDailyLoss:   dec("5000"),
		MaxTotalLoss:   dec("10000"),
		MinTradingDays: 5,
		MaxTradingDays: 30,
	}
}

func testChallenge(status string) *models.Challenge {
	return &models.Challenge{
		Status:           status,
		InitialBalance:   dec("100000"),
		DayOpenBalance:   dec("100000"),
		TradingDaysCount: 10,
	}
}

func TestEvaluateTotalLoss(t *testing.T) {
	p, c := testProgram(), testChallenge(models.ChallengeStatusActive)
	now := time.Now()

	if got := Evaluate(p, c, dec("90000"), now); got != VerdictTotalLossBreach {
		t.Errorf("equity at the floor: got %s", got)
	}
	if got := Evaluate(p, c, dec("89999.99"), now); got != VerdictTotalLossBreach {
		t.Errorf("equity below the floor: got %s", got)
	}
	if got := Evaluate(p, c, dec("96000"), now); got != VerdictNone {
		t.Errorf("drawdown within limits: got %s", got)
	}
}

func TestEvaluateDailyLoss(t *testing.T) {
	p, c := testProgram(), testChallenge(models.ChallengeStatusActive)
	c.DayOpenBalance = dec("102000")
	now := time.Now()

	// 5000 down from day open but well above the total floor
	if got := Evaluate(p, c, dec("97000"), now); got != VerdictDailyLossBreach {
		t.Errorf("daily drawdown at the limit: got %s", got)
	}
	if got := Evaluate(p, c, dec("97000.01"), now); got != VerdictNone {
		t.Errorf("daily drawdown just inside: got %s", got)
	}
}

func TestEvaluateTotalLossWinsOverDaily(t *testing.T) {
	p, c := testProgram(), testChallenge(models.ChallengeStatusActive)
	c.DayOpenBalance = dec("100000")
	// 10000+ down on the day breaches both rules at once
	if got := Evaluate(p, c, dec("89000"), time.Now()); got != VerdictTotalLossBreach {
		t.Errorf("total loss should take priority, got %s", got)
	}
}

func TestEvaluatePhasePass(t *testing.T) {
	p, c := testProgram(), testChallenge(models.ChallengeStatusActive)
	now := time.Now()

	if got := Evaluate(p, c, dec("108000"), now); got != VerdictPhasePassed {
		t.Errorf("target hit with enough trading days: got %s", got)
	}

	c.TradingDaysCount = 3
	if got := Evaluate(p, c, dec("108000"), now); got != VerdictNone {
		t.Errorf("target hit but too few trading days: got %s", got)
	}
}

func TestEvaluateExpiry(t *testing.T) {
	p, c := testProgram(), testChallenge(models.ChallengeStatusActive)
	now := time.Now()

	past := now.Add(-time.Hour)
	c.ExpiresAt = &past
	if got := Evaluate(p, c, dec("100000"), now); got != VerdictExpired {
		t.Errorf("past expiry: got %s", got)
	}

	// passing the target on the expiry tick still counts as a pass
	if got := Evaluate(p, c, dec("108000"), now); got != VerdictPhasePassed {
		t.Errorf("pass should beat expiry: got %s", got)
	}

	c.ExpiresAt = nil
	c.TradingDaysCount = 31
	if got := Evaluate(p, c, dec("100000"), now); got != VerdictExpired {
		t.Errorf("trading day allowance exceeded: got %s", got)
	}

	p.MaxTradingDays = 0
	if got := Evaluate(p, c, dec("100000"), now); got != VerdictNone {
		t.Errorf("zero max means unlimited: got %s", got)
	}
}

func TestEvaluateFundedSkipsTargets(t *testing.T) {
	p, c := testProgram(), testChallenge(models.ChallengeStatusFunded)
	now := time.Now()

	if got := Evaluate(p, c, dec("150000"), now); got != VerdictNone {
		t.Errorf("funded accounts have no profit target: got %s", got)
	}

	past := now.Add(-time.Hour)
	c.ExpiresAt = &past
	if got := Evaluate(p, c, dec("100000"), now); got != VerdictNone {
		t.Errorf("funded accounts do not expire: got %s", got)
	}

	// loss rules still apply to funded accounts
	if got := Evaluate(p, c, dec("90000"), now); got != VerdictTotalLossBreach {
		t.Errorf("funded total loss: got %s", got)
	}
}

func TestUTCDayBoundary(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	// 23:30 UTC on Jan 1 is 18:30 local; both must land on the same UTC day
	a := time.Date(2026, 1, 1, 23, 30, 0, 0, time.UTC)
	b := a.In(ny)
	if !SameUTCDay(a, b) {
		t.Error("same instant in different zones must share the UTC day")
	}
	c := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	if SameUTCDay(a, c) {
		t.Error("midnight starts a new UTC day")
	}
	if !UTCDay(c).Equal(c) {
		t.Error("UTCDay of midnight is itself")
	}
}

func TestEvaluatePriorityProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("a verdict other than total loss implies equity above the floor", prop.ForAll(
		func(equityF float64, days int) bool {
			p := testProgram()
			c := testChallenge(models.ChallengeStatusActive)
			c.TradingDaysCount = days
			equity := decimal.NewFromFloat(equityF)
			v := Evaluate(p, c, equity, time.Now())
			if v == VerdictTotalLossBreach {
				return true
			}
			return equity.GreaterThan(c.InitialBalance.Sub(p.MaxTotalLoss))
		},
		gen.Float64Range(0, 200_000), gen.IntRange(0, 40),
	))

	properties.TestingRun(t)
}

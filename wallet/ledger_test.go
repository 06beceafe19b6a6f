package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

func genAmount() gopter.Gen {
	return gen.Float64Range(-1e9, 1e9).Map(func(f float64) decimal.Decimal {
		return decimal.NewFromFloat(f)
	})
}

func TestRound2Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("result has at most 2 decimal places", prop.ForAll(
		func(d decimal.Decimal) bool {
			return Round2(d).Exponent() >= -2
		},
		genAmount(),
	))

	properties.Property("idempotent", prop.ForAll(
		func(d decimal.Decimal) bool {
			once := Round2(d)
			return Round2(once).Equal(once)
		},
		genAmount(),
	))

	properties.Property("off by less than one cent", prop.ForAll(
		func(d decimal.Decimal) bool {
			diff := Round2(d).Sub(d).Abs()
			return diff.LessThan(decimal.NewFromFloat(0.01))
		},
		genAmount(),
	))

	properties.TestingRun(t)
}

// Ties round to the even cent so repeated splits do not drift upward.
func TestRound2BankersTies(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"10.005", "10"},
		{"10.015", "10.02"},
		{"10.025", "10.02"},
		{"-10.005", "-10"},
		{"-10.015", "-10.02"},
		{"0.125", "0.12"},
		{"10.004", "10"},
		{"10.006", "10.01"},
		{"99.999", "100"},
	}
	for _, tc := range cases {
		in := decimal.RequireFromString(tc.in)
		want := decimal.RequireFromString(tc.want)
		if got := Round2(in); !got.Equal(want) {
			t.Errorf("Round2(%s) = %s, want %s", tc.in, got, want)
		}
	}
}

// Argument checks run before any row is touched, so bad input can never leave
// a half-written ledger.
func TestMutationArgumentChecks(t *testing.T) {
	ctx := context.Background()

	if _, err := AddFundsTx(ctx, nil, 1, "main", decimal.Zero, "deposit", "", "", nil); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("AddFundsTx zero amount: %v, want ErrInvalidAmount", err)
	}
	if _, err := DeductFundsTx(ctx, nil, 1, "main", decimal.NewFromInt(-5), "withdrawal", "", "", nil); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("DeductFundsTx negative amount: %v, want ErrInvalidAmount", err)
	}

	ten := decimal.NewFromInt(10)
	if err := Transfer(ctx, 1, 1, "main", ten, "", "", nil); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("self transfer: %v, want ErrInvalidAmount", err)
	}
	if err := Transfer(ctx, 1, 2, "savings", ten, "", "", nil); !errors.Is(err, ErrInvalidBucket) {
		t.Errorf("bad bucket transfer: %v, want ErrInvalidBucket", err)
	}
	if err := Transfer(ctx, 1, 2, "main", decimal.Zero, "", "", nil); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero transfer: %v, want ErrInvalidAmount", err)
	}
}

func TestValidBucket(t *testing.T) {
	for _, b := range []string{"main", "commission", "bonus"} {
		if !validBucket(b) {
			t.Errorf("validBucket(%q) = false", b)
		}
	}
	for _, b := range []string{"", "Main", "savings", "main "} {
		if validBucket(b) {
			t.Errorf("validBucket(%q) = true", b)
		}
	}
}

package commission

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tradege/marketedgepros-sub001/models"
	"github.com/tradege/marketedgepros-sub001/wallet"
)

func TestAgentRate(t *testing.T) {
	Init(decimal.RequireFromString("10"), 14)

	agent := &models.User{Role: models.RoleAffiliate}
	if got := agentRate(agent); !got.Equal(decimal.RequireFromString("10")) {
		t.Errorf("default rate = %s", got)
	}

	override := "17.5"
	agent.CommissionRate = &override
	if got := agentRate(agent); !got.Equal(decimal.RequireFromString("17.5")) {
		t.Errorf("override rate = %s", got)
	}

	// an unparseable stored rate falls back to the platform default
	bad := "not-a-number"
	agent.CommissionRate = &bad
	if got := agentRate(agent); !got.Equal(decimal.RequireFromString("10")) {
		t.Errorf("bad override should fall back, got %s", got)
	}
}

// Amounts route through the ledger's banker's rounding, so half-cent results
// land on the even cent.
func TestCommissionAmountRounding(t *testing.T) {
	cases := []struct {
		sale, rate, want string
	}{
		{"500", "10", "50"},
		{"99.99", "10", "10"},       // 9.999 rounds up
		{"333.33", "7.5", "25"},     // 24.99975
		{"1000", "0", "0"},
		{"149.50", "12.5", "18.69"}, // 18.6875
		{"100.10", "10.5", "10.51"}, // 10.5105
		{"201", "2.5", "5.02"},      // 5.025 ties to even
		{"203", "2.5", "5.08"},      // 5.075 ties to even
	}
	for _, tc := range cases {
		sale := decimal.RequireFromString(tc.sale)
		rate := decimal.RequireFromString(tc.rate)
		got := wallet.Round2(sale.Mul(rate).Div(oneHundred))
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Errorf("%s at %s%% = %s, want %s", tc.sale, tc.rate, got, tc.want)
		}
	}
}

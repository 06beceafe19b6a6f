package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ProgramTypeOnePhase       = "one_phase"
	ProgramTypeTwoPhase       = "two_phase"
	ProgramTypeInstantFunding = "instant_funding"
)

const (
	PayoutModeOnDemand  = "on_demand"
	PayoutModeBiweekly  = "scheduled_biweekly"
	PayoutModeMonthly   = "monthly"
)

// TradingProgram is immutable once a challenge references it; edits create a
// new row and deactivate the old one.
type TradingProgram struct {
	ID                  int64           `json:"id" db:"id"`
	TenantID            int64           `json:"tenant_id" db:"tenant_id"`
	Name                string          `json:"name" db:"name"`
	Type                string          `json:"type" db:"type"`
	AccountSize         decimal.Decimal `json:"account_size" db:"account_size"`
	Price               decimal.Decimal `json:"price" db:"price"`
	ProfitTarget        decimal.Decimal `json:"profit_target" db:"profit_target"`
	MaxDailyLoss        decimal.Decimal `json:"max_daily_loss" db:"max_daily_loss"`
	MaxTotalLoss        decimal.Decimal `json:"max_total_loss" db:"max_total_loss"`
	ProfitSplit         decimal.Decimal `json:"profit_split" db:"profit_split"`
	PayoutMode          string          `json:"payout_mode" db:"payout_mode"`
	MinimumPayoutAmount decimal.Decimal `json:"minimum_payout_amount" db:"minimum_payout_amount"`
	MinTradingDays      int             `json:"min_trading_days" db:"min_trading_days"`
	MaxTradingDays      int             `json:"max_trading_days" db:"max_trading_days"`
	MT5GroupPhase1      string          `json:"mt5_group_phase1" db:"mt5_group_phase1"`
	MT5GroupPhase2      string          `json:"mt5_group_phase2" db:"mt5_group_phase2"`
	MT5GroupFunded      string          `json:"mt5_group_funded" db:"mt5_group_funded"`
	Leverage            int             `json:"leverage" db:"leverage"`
	IsActive            bool            `json:"is_active" db:"is_active"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at" db:"updated_at"`
}

// TotalPhases follows the program type: two_phase has 2, everything else 1.
func (p *TradingProgram) TotalPhases() int {
	if p.Type == ProgramTypeTwoPhase {
		return 2
	}
	return 1
}

// MT5Group returns the broker group for a phase; phase 0 means funded.
func (p *TradingProgram) MT5Group(phase int) string {
	switch phase {
	case 1:
		return p.MT5GroupPhase1
	case 2:
		return p.MT5GroupPhase2
	default:
		return p.MT5GroupFunded
	}
}

type ProgramAddon struct {
	ID        int64           `json:"id" db:"id"`
	ProgramID int64           `json:"program_id" db:"program_id"`
	Name      string          `json:"name" db:"name"`
	Price     decimal.Decimal `json:"price" db:"price"`
	IsActive  bool            `json:"is_active" db:"is_active"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ScalingStatusActive    = "active"
	ScalingStatusCompleted = "completed"
)

type AccountScaling struct {
	ID                   int64            `json:"id" db:"id"`
	UserID               int64            `json:"user_id" db:"user_id"`
	CurrentTier          int              `json:"current_tier" db:"current_tier"`
	CurrentAccountSize   decimal.Decimal  `json:"current_account_size" db:"current_account_size"`
	NextTier             *int             `json:"next_tier,omitempty" db:"next_tier"`
	NextAccountSize      *decimal.Decimal `json:"next_account_size,omitempty" db:"next_account_size"`
	TotalProfit          decimal.Decimal  `json:"total_profit" db:"total_profit"`
	TargetProfit         decimal.Decimal  `json:"target_profit" db:"target_profit"`
	ProgressPercentage   decimal.Decimal  `json:"progress_percentage" db:"progress_percentage"`
	TimesScaled          int              `json:"times_scaled" db:"times_scaled"`
	IsEligibleForScaling bool             `json:"is_eligible_for_scaling" db:"is_eligible_for_scaling"`
	EligibilityCheckedAt *time.Time       `json:"eligibility_checked_at,omitempty" db:"eligibility_checked_at"`
	Status               string           `json:"status" db:"status"`
	CreatedAt            time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at" db:"updated_at"`
}

type ScalingTier struct {
	ID                  int64            `json:"id" db:"id"`
	TenantID            int64            `json:"tenant_id" db:"tenant_id"`
	TierNumber          int              `json:"tier_number" db:"tier_number"`
	AccountSize         decimal.Decimal  `json:"account_size" db:"account_size"`
	ProfitTarget        decimal.Decimal  `json:"profit_target" db:"profit_target"`
	MinTradingDays      int              `json:"min_trading_days" db:"min_trading_days"`
	MinTrades           int              `json:"min_trades" db:"min_trades"`
	ProfitSplitOverride *decimal.Decimal `json:"profit_split_override,omitempty" db:"profit_split_override"`
}

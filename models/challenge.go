package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	ChallengeStatusPending = "pending"
	ChallengeStatusActive  = "active"
	ChallengeStatusPassed  = "passed"
	ChallengeStatusFailed  = "failed"
	ChallengeStatusFunded  = "funded"
	ChallengeStatusExpired = "expired"
)

type Challenge struct {
	ID                  int64           `json:"id" db:"id"`
	UserID              int64           `json:"user_id" db:"user_id"`
	ProgramID           int64           `json:"program_id" db:"program_id"`
	PaymentID           *int64          `json:"payment_id,omitempty" db:"payment_id"`
	Status              string          `json:"status" db:"status"`
	CurrentPhase        int             `json:"current_phase" db:"current_phase"`
	TotalPhases         int             `json:"total_phases" db:"total_phases"`
	InitialBalance      decimal.Decimal `json:"initial_balance" db:"initial_balance"`
	CurrentBalance      decimal.Decimal `json:"current_balance" db:"current_balance"`
	HighestBalance      decimal.Decimal `json:"highest_balance" db:"highest_balance"`
	LowestBalance       decimal.Decimal `json:"lowest_balance" db:"lowest_balance"`
	DayOpenBalance      decimal.Decimal `json:"day_open_balance" db:"day_open_balance"`
	DayOpenDate         *time.Time      `json:"day_open_date,omitempty" db:"day_open_date"`
	TotalProfit         decimal.Decimal `json:"total_profit" db:"total_profit"`
	TotalLoss           decimal.Decimal `json:"total_loss" db:"total_loss"`
	TradingDaysCount    int             `json:"trading_days_count" db:"trading_days_count"`
	ProfitTargetReached bool            `json:"profit_target_reached" db:"profit_target_reached"`
	DailyLossViolated   bool            `json:"daily_loss_violated" db:"daily_loss_violated"`
	TotalLossViolated   bool            `json:"total_loss_violated" db:"total_loss_violated"`
	AddonsSnapshot      json.RawMessage `json:"addons_snapshot" db:"addons_snapshot"`
	ProvisionAttempts   int             `json:"-" db:"provision_attempts"`
	StartedAt           *time.Time      `json:"started_at,omitempty" db:"started_at"`
	CompletedAt         *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	FailedAt            *time.Time      `json:"failed_at,omitempty" db:"failed_at"`
	ExpiresAt           *time.Time      `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at" db:"updated_at"`
}

// Terminal statuses never revert.
func (c *Challenge) IsTerminal() bool {
	switch c.Status {
	case ChallengeStatusFailed, ChallengeStatusExpired, ChallengeStatusFunded:
		return true
	}
	return false
}

const (
	MT5AccountStatusActive   = "active"
	MT5AccountStatusDisabled = "disabled"
	MT5AccountStatusClosed   = "closed"
)

type MT5Account struct {
	ID          int64           `json:"id" db:"id"`
	ChallengeID int64           `json:"challenge_id" db:"challenge_id"`
	MT5Login    int64           `json:"mt5_login" db:"mt5_login"`
	MT5Group    string          `json:"mt5_group" db:"mt5_group"`
	Server      string          `json:"server" db:"server"`
	PasswordEnc []byte          `json:"-" db:"password_enc"`
	Balance     decimal.Decimal `json:"balance" db:"balance"`
	Equity      decimal.Decimal `json:"equity" db:"equity"`
	Margin      decimal.Decimal `json:"margin" db:"margin"`
	LastEquity  decimal.Decimal `json:"last_equity" db:"last_equity"`
	Phase       int             `json:"phase" db:"phase"`
	Status      string          `json:"status" db:"status"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

type Trade struct {
	ID           int64           `json:"id" db:"id"`
	MT5AccountID int64           `json:"mt5_account_id" db:"mt5_account_id"`
	Ticket       int64           `json:"ticket" db:"ticket"`
	Symbol       string          `json:"symbol" db:"symbol"`
	Direction    string          `json:"direction" db:"direction"`
	Volume       decimal.Decimal `json:"volume" db:"volume"`
	OpenPrice    decimal.Decimal `json:"open_price" db:"open_price"`
	ClosePrice   *decimal.Decimal `json:"close_price,omitempty" db:"close_price"`
	Profit       decimal.Decimal `json:"profit" db:"profit"`
	OpenedAt     time.Time       `json:"opened_at" db:"opened_at"`
	ClosedAt     *time.Time      `json:"closed_at,omitempty" db:"closed_at"`
}

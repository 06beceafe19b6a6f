package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	CommissionStatusPending  = "pending"
	CommissionStatusApproved = "approved"
	CommissionStatusPaid     = "paid"
	CommissionStatusVoided   = "voided"
)

type Commission struct {
	ID                int64           `json:"id" db:"id"`
	AgentID           int64           `json:"agent_id" db:"agent_id"`
	ChallengeID       int64           `json:"challenge_id" db:"challenge_id"`
	ReferralID        *int64          `json:"referral_id,omitempty" db:"referral_id"`
	SaleAmount        decimal.Decimal `json:"sale_amount" db:"sale_amount"`
	Rate              decimal.Decimal `json:"rate" db:"rate"`
	CommissionAmount  decimal.Decimal `json:"commission_amount" db:"commission_amount"`
	Status            string          `json:"status" db:"status"`
	ClawbackOwed      bool            `json:"clawback_owed" db:"clawback_owed"`
	PaidTransactionID *int64          `json:"paid_transaction_id,omitempty" db:"paid_transaction_id"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	ApprovedAt        *time.Time      `json:"approved_at,omitempty" db:"approved_at"`
	PaidAt            *time.Time      `json:"paid_at,omitempty" db:"paid_at"`
}

package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	WithdrawalStatusPending    = "pending"
	WithdrawalStatusApproved   = "approved"
	WithdrawalStatusProcessing = "processing"
	WithdrawalStatusCompleted  = "completed"
	WithdrawalStatusRejected   = "rejected"
)

type Withdrawal struct {
	ID              int64           `json:"id" db:"id"`
	UserID          int64           `json:"user_id" db:"user_id"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	Method          string          `json:"method" db:"method"`
	MethodDetails   json.RawMessage `json:"method_details" db:"method_details"`
	Status          string          `json:"status" db:"status"`
	ApprovedBy      *int64          `json:"approved_by,omitempty" db:"approved_by"`
	RejectionReason *string         `json:"rejection_reason,omitempty" db:"rejection_reason"`
	ExternalTxnID   *string         `json:"external_txn_id,omitempty" db:"external_txn_id"`
	Notes           *string         `json:"notes,omitempty" db:"notes"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty" db:"approved_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

const (
	PayoutStatusPending   = "pending"
	PayoutStatusApproved  = "approved"
	PayoutStatusCompleted = "completed"
	PayoutStatusRejected  = "rejected"
)

// PayoutRequest is the profit-split equivalent of a Withdrawal, paid from the
// trader's main bucket according to the program's payout mode.
type PayoutRequest struct {
	ID              int64           `json:"id" db:"id"`
	UserID          int64           `json:"user_id" db:"user_id"`
	ChallengeID     int64           `json:"challenge_id" db:"challenge_id"`
	RequestedAmount decimal.Decimal `json:"requested_amount" db:"requested_amount"`
	TraderShare     decimal.Decimal `json:"trader_share" db:"trader_share"`
	PlatformShare   decimal.Decimal `json:"platform_share" db:"platform_share"`
	Status          string          `json:"status" db:"status"`
	ApprovedBy      *int64          `json:"approved_by,omitempty" db:"approved_by"`
	RejectionReason *string         `json:"rejection_reason,omitempty" db:"rejection_reason"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
}

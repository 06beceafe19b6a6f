package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentMethodCard = "card"
	PaymentMethodCash = "cash"
	PaymentMethodFree = "free"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

const (
	ApprovalStatusApproved = "approved"
	ApprovalStatusPending  = "pending"
	ApprovalStatusRejected = "rejected"
)

const (
	PaymentPurposeChallengePurchase = "challenge_purchase"
	PaymentPurposeDeposit           = "deposit"
)

type Payment struct {
	ID              int64           `json:"id" db:"id"`
	UserID          int64           `json:"user_id" db:"user_id"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	Currency        string          `json:"currency" db:"currency"`
	Method          string          `json:"method" db:"method"`
	ExternalTxnID   *string         `json:"external_txn_id,omitempty" db:"external_txn_id"`
	Status          string          `json:"status" db:"status"`
	ApprovalStatus  string          `json:"approval_status" db:"approval_status"`
	ApprovedBy      *int64          `json:"approved_by,omitempty" db:"approved_by"`
	RejectionReason *string         `json:"rejection_reason,omitempty" db:"rejection_reason"`
	Purpose         string          `json:"purpose" db:"purpose"`
	ReferenceID     *int64          `json:"reference_id,omitempty" db:"reference_id"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

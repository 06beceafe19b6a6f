package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	BalanceMain       = "main"
	BalanceCommission = "commission"
	BalanceBonus      = "bonus"
)

const (
	TxnTypeDeposit    = "deposit"
	TxnTypeWithdrawal = "withdrawal"
	TxnTypeCommission = "commission"
	TxnTypeBonus      = "bonus"
	TxnTypeAdjustment = "adjustment"
	TxnTypeTransfer   = "transfer"
)

type Wallet struct {
	ID                int64           `json:"id" db:"id"`
	UserID            int64           `json:"user_id" db:"user_id"`
	MainBalance       decimal.Decimal `json:"main_balance" db:"main_balance"`
	CommissionBalance decimal.Decimal `json:"commission_balance" db:"commission_balance"`
	BonusBalance      decimal.Decimal `json:"bonus_balance" db:"bonus_balance"`
	LastTransactionAt *time.Time      `json:"last_transaction_at,omitempty" db:"last_transaction_at"`
	IsActive          bool            `json:"is_active" db:"is_active"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// TotalBalance is main + commission; the bonus bucket is not withdrawable.
func (w *Wallet) TotalBalance() decimal.Decimal {
	return w.MainBalance.Add(w.CommissionBalance)
}

// Balance returns the named bucket.
func (w *Wallet) Balance(bucket string) decimal.Decimal {
	switch bucket {
	case BalanceMain:
		return w.MainBalance
	case BalanceCommission:
		return w.CommissionBalance
	case BalanceBonus:
		return w.BonusBalance
	}
	return decimal.Zero
}

// WalletTransaction rows are append-only; per wallet and bucket,
// balance_before always equals the previous row's balance_after.
type WalletTransaction struct {
	ID            int64           `json:"id" db:"id"`
	WalletID      int64           `json:"wallet_id" db:"wallet_id"`
	Type          string          `json:"type" db:"type"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	BalanceType   string          `json:"balance_type" db:"balance_type"`
	BalanceBefore decimal.Decimal `json:"balance_before" db:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after" db:"balance_after"`
	Reference     string          `json:"reference" db:"reference"`
	Description   string          `json:"description" db:"description"`
	CreatedBy     *int64          `json:"created_by,omitempty" db:"created_by"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

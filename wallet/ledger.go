package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradege/marketedgepros-sub001/database"
	"github.com/tradege/marketedgepros-sub001/logging"
	"github.com/tradege/marketedgepros-sub001/models"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidBucket     = errors.New("unknown balance bucket")
	ErrWalletInactive    = errors.New("wallet is inactive")
)

// Round2 applies banker's rounding to 2 decimal places. Every amount that
// enters the ledger goes through this first, and every other money
// computation routes through here so the policy lives in one place.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}

func validBucket(bucket string) bool {
	switch bucket {
	case models.BalanceMain, models.BalanceCommission, models.BalanceBonus:
		return true
	}
	return false
}

func bucketColumn(bucket string) string {
	switch bucket {
	case models.BalanceMain:
		return "main_balance"
	case models.BalanceCommission:
		return "commission_balance"
	case models.BalanceBonus:
		return "bonus_balance"
	}
	return ""
}

func scanWallet(row pgx.Row) (*models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.MainBalance, &w.CommissionBalance,
		&w.BonusBalance, &w.LastTransactionAt, &w.IsActive, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

const walletColumns = `id, user_id, main_balance, commission_balance, bonus_balance,
	last_transaction_at, is_active, created_at, updated_at`

func GetWallet(ctx context.Context, userID int64) (*models.Wallet, error) {
	row := database.Pool.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID)
	return scanWallet(row)
}

// lockWallet loads the wallet row FOR UPDATE inside tx. All mutations go
// through this so concurrent writers serialize on the row lock.
func lockWallet(ctx context.Context, tx pgx.Tx, userID int64) (*models.Wallet, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 FOR UPDATE`, userID)
	return scanWallet(row)
}

func applyDelta(ctx context.Context, tx pgx.Tx, w *models.Wallet, bucket string, delta decimal.Decimal, txnType, reference, description string, createdBy *int64) (*models.WalletTransaction, error) {
	before := w.Balance(bucket)
	after := before.Add(delta)
	if after.IsNegative() {
		return nil, ErrInsufficientFunds
	}

	col := bucketColumn(bucket)
	_, err := tx.Exec(ctx, fmt.Sprintf(`
		UPDATE wallets
		SET %s = $1,
		    last_transaction_at = NOW() AT TIME ZONE 'utc',
		    updated_at = NOW() AT TIME ZONE 'utc'
		WHERE id = $2
	`, col), after, w.ID)
	if err != nil {
		return nil, err
	}

	txn := &models.WalletTransaction{
		WalletID:      w.ID,
		Type:          txnType,
		Amount:        delta.Abs(),
		BalanceType:   bucket,
		BalanceBefore: before,
		BalanceAfter:  after,
		Reference:     reference,
		Description:   description,
		CreatedBy:     createdBy,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO wallet_transactions
			(wallet_id, type, amount, balance_type, balance_before, balance_after, reference, description, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`, txn.WalletID, txn.Type, txn.Amount, txn.BalanceType, txn.BalanceBefore,
		txn.BalanceAfter, txn.Reference, txn.Description, txn.CreatedBy).
		Scan(&txn.ID, &txn.CreatedAt)
	if err != nil {
		return nil, err
	}

	switch bucket {
	case models.BalanceMain:
		w.MainBalance = after
	case models.BalanceCommission:
		w.CommissionBalance = after
	case models.BalanceBonus:
		w.BonusBalance = after
	}
	return txn, nil
}

func mutate(ctx context.Context, userID int64, bucket string, amount decimal.Decimal, txnType, reference, description string, createdBy *int64) (*models.WalletTransaction, error) {
	if !validBucket(bucket) {
		return nil, ErrInvalidBucket
	}
	tx, err := database.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	w, err := lockWallet(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if !w.IsActive {
		return nil, ErrWalletInactive
	}

	txn, err := applyDelta(ctx, tx, w, bucket, amount, txnType, reference, description, createdBy)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	logging.Logger.Info("wallet transaction",
		zap.Int64("userID", userID),
		zap.String("type", txnType),
		zap.String("bucket", bucket),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("reference", reference))
	return txn, nil
}

// mutateTx is the variant for callers that already hold a transaction, so a
// ledger write can commit or roll back together with the business operation
// that caused it.
func mutateTx(ctx context.Context, tx pgx.Tx, userID int64, bucket string, amount decimal.Decimal, txnType, reference, description string, createdBy *int64) (*models.WalletTransaction, error) {
	if !validBucket(bucket) {
		return nil, ErrInvalidBucket
	}
	w, err := lockWallet(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if !w.IsActive {
		return nil, ErrWalletInactive
	}
	return applyDelta(ctx, tx, w, bucket, amount, txnType, reference, description, createdBy)
}

// AddFundsTx credits a bucket inside the caller's transaction.
func AddFundsTx(ctx context.Context, tx pgx.Tx, userID int64, bucket string, amount decimal.Decimal, txnType, reference, description string, createdBy *int64) (*models.WalletTransaction, error) {
	amount = Round2(amount)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	return mutateTx(ctx, tx, userID, bucket, amount, txnType, reference, description, createdBy)
}

// DeductFundsTx debits a bucket inside the caller's transaction.
func DeductFundsTx(ctx context.Context, tx pgx.Tx, userID int64, bucket string, amount decimal.Decimal, txnType, reference, description string, createdBy *int64) (*models.WalletTransaction, error) {
	amount = Round2(amount)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	return mutateTx(ctx, tx, userID, bucket, amount.Neg(), txnType, reference, description, createdBy)
}

// AddFunds credits a bucket. Amount must be positive.
func AddFunds(ctx context.Context, userID int64, bucket string, amount decimal.Decimal, txnType, reference, description string, createdBy *int64) (*models.WalletTransaction, error) {
	amount = Round2(amount)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	return mutate(ctx, userID, bucket, amount, txnType, reference, description, createdBy)
}

// DeductFunds debits a bucket, failing with ErrInsufficientFunds rather than
// letting any bucket go negative.
func DeductFunds(ctx context.Context, userID int64, bucket string, amount decimal.Decimal, txnType, reference, description string, createdBy *int64) (*models.WalletTransaction, error) {
	amount = Round2(amount)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	return mutate(ctx, userID, bucket, amount.Neg(), txnType, reference, description, createdBy)
}

// Transfer moves funds between two users' wallets within the same bucket,
// recording a debit on the source and a credit on the destination in one
// transaction. Wallet rows are locked in ascending user id order so two
// opposing transfers cannot deadlock.
func Transfer(ctx context.Context, srcUserID, dstUserID int64, bucket string, amount decimal.Decimal, reference, description string, createdBy *int64) error {
	amount = Round2(amount)
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !validBucket(bucket) {
		return ErrInvalidBucket
	}
	if srcUserID == dstUserID {
		return ErrInvalidAmount
	}

	tx, err := database.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	first, second := srcUserID, dstUserID
	if second < first {
		first, second = second, first
	}
	locked := map[int64]*models.Wallet{}
	for _, id := range []int64{first, second} {
		w, err := lockWallet(ctx, tx, id)
		if err != nil {
			return err
		}
		if !w.IsActive {
			return ErrWalletInactive
		}
		locked[id] = w
	}

	if _, err := applyDelta(ctx, tx, locked[srcUserID], bucket, amount.Neg(), models.TxnTypeTransfer, reference, description, createdBy); err != nil {
		return err
	}
	if _, err := applyDelta(ctx, tx, locked[dstUserID], bucket, amount, models.TxnTypeTransfer, reference, description, createdBy); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logging.Logger.Info("wallet transfer",
		zap.Int64("fromUserID", srcUserID),
		zap.Int64("toUserID", dstUserID),
		zap.String("bucket", bucket),
		zap.String("amount", amount.StringFixed(2)))
	return nil
}

// Adjust applies a signed admin correction to a bucket.
func Adjust(ctx context.Context, userID int64, bucket string, delta decimal.Decimal, reference, description string, adminID int64) (*models.WalletTransaction, error) {
	delta = Round2(delta)
	if delta.IsZero() {
		return nil, ErrInvalidAmount
	}
	return mutate(ctx, userID, bucket, delta, models.TxnTypeAdjustment, reference, description, &adminID)
}

// ListTransactions returns the wallet's ledger rows, newest first.
func ListTransactions(ctx context.Context, userID int64, limit, offset int) ([]models.WalletTransaction, error) {
	rows, err := database.Pool.Query(ctx, `
		SELECT t.id, t.wallet_id, t.type, t.amount, t.balance_type,
		       t.balance_before, t.balance_after, t.reference, t.description,
		       t.created_by, t.created_at
		FROM wallet_transactions t
		JOIN wallets w ON w.id = t.wallet_id
		WHERE w.user_id = $1
		ORDER BY t.id DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []models.WalletTransaction
	for rows.Next() {
		var t models.WalletTransaction
		err = rows.Scan(&t.ID, &t.WalletID, &t.Type, &t.Amount, &t.BalanceType,
			&t.BalanceBefore, &t.BalanceAfter, &t.Reference, &t.Description,
			&t.CreatedBy, &t.CreatedAt)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

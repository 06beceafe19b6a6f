package withdrawal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradege/marketedgepros-sub001/challenge"
	"github.com/tradege/marketedgepros-sub001/commission"
	"github.com/tradege/marketedgepros-sub001/database"
	"github.com/tradege/marketedgepros-sub001/logging"
	"github.com/tradege/marketedgepros-sub001/models"
	"github.com/tradege/marketedgepros-sub001/programs"
	"github.com/tradege/marketedgepros-sub001/scaling"
	"github.com/tradege/marketedgepros-sub001/wallet"
)

var (
	ErrWithdrawalNotFound = errors.New("withdrawal not found")
	ErrPayoutNotFound     = errors.New("payout request not found")
	ErrInvalidTransition  = errors.New("invalid withdrawal transition")
	ErrNotEligible        = errors.New("amount exceeds available balance")
	ErrRequestOpen        = errors.New("another withdrawal is already in flight")
	ErrNotFunded          = errors.New("challenge is not funded")
	ErrBelowMinimum       = errors.New("amount below program payout minimum")
	ErrNoProfit           = errors.New("no payable profit")
	ErrNotDue             = errors.New("payout schedule window not reached")
)

// transitions for commission withdrawals. The wallet is only debited on the
// completed edge, so a rejection never needs a compensating credit.
var transitions = map[string][]string{
	models.WithdrawalStatusPending:    {models.WithdrawalStatusApproved, models.WithdrawalStatusRejected},
	models.WithdrawalStatusApproved:   {models.WithdrawalStatusProcessing, models.WithdrawalStatusRejected},
	models.WithdrawalStatusProcessing: {models.WithdrawalStatusCompleted, models.WithdrawalStatusRejected},
	models.WithdrawalStatusCompleted:  {},
	models.WithdrawalStatusRejected:   {},
}

func canTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AvailableCommission is the commission bucket minus the total already
// reserved by open withdrawal requests and minus commissions still inside
// the anti-refund hold window. Only approved earnings can leave.
func AvailableCommission(ctx context.Context, userID int64) (decimal.Decimal, error) {
	w, err := wallet.GetWallet(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	var reserved, held decimal.Decimal
	err = database.Pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM withdrawals
		WHERE user_id = $1 AND status IN ($2, $3, $4)
	`, userID, models.WithdrawalStatusPending, models.WithdrawalStatusApproved,
		models.WithdrawalStatusProcessing).Scan(&reserved)
	if err != nil {
		return decimal.Zero, err
	}
	err = database.Pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(commission_amount), 0) FROM commissions
		WHERE agent_id = $1 AND status = $2
	`, userID, models.CommissionStatusPending).Scan(&held)
	if err != nil {
		return decimal.Zero, err
	}
	return w.CommissionBalance.Sub(reserved).Sub(held), nil
}

const withdrawalColumns = `id, user_id, amount, method, method_details, status,
	approved_by, rejection_reason, external_txn_id, notes,
	created_at, approved_at, completed_at, updated_at`

func scanWithdrawal(row pgx.Row) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := row.Scan(&w.ID, &w.UserID, &w.Amount, &w.Method, &w.MethodDetails,
		&w.Status, &w.ApprovedBy, &w.RejectionReason, &w.ExternalTxnID, &w.Notes,
		&w.CreatedAt, &w.ApprovedAt, &w.CompletedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrWithdrawalNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Request opens a commission withdrawal after the eligibility check.
func Request(ctx context.Context, userID int64, amount decimal.Decimal, method string, details json.RawMessage) (*models.Withdrawal, error) {
	amount = wallet.Round2(amount)
	if !amount.IsPositive() {
		return nil, wallet.ErrInvalidAmount
	}
	available, err := AvailableCommission(ctx, userID)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(available) {
		return nil, ErrNotEligible
	}

	// one in-flight request per user keeps the reservation math simple
	var open int
	err = database.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM withdrawals
		WHERE user_id = $1 AND status IN ($2, $3, $4)
	`, userID, models.WithdrawalStatusPending, models.WithdrawalStatusApproved,
		models.WithdrawalStatusProcessing).Scan(&open)
	if err != nil {
		return nil, err
	}
	if open > 0 {
		return nil, ErrRequestOpen
	}

	row := database.Pool.QueryRow(ctx, `
		INSERT INTO withdrawals (user_id, amount, method, method_details, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+withdrawalColumns+`
	`, userID, amount, method, details, models.WithdrawalStatusPending)
	w, err := scanWithdrawal(row)
	if err != nil {
		return nil, err
	}

	logging.Logger.Info("withdrawal requested",
		zap.Int64("withdrawalID", w.ID),
		zap.Int64("userID", userID),
		zap.String("amount", amount.StringFixed(2)))
	return w, nil
}

func GetWithdrawal(ctx context.Context, id int64) (*models.Withdrawal, error) {
	row := database.Pool.QueryRow(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1`, id)
	return scanWithdrawal(row)
}

// Advance moves a withdrawal along its state machine. Completing debits the
// commission bucket inside the same transaction as the status change.
func Advance(ctx context.Context, adminID, withdrawalID int64, to, reasonOrTxnID string) (*models.Withdrawal, error) {
	tx, err := database.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1 FOR UPDATE`, withdrawalID)
	w, err := scanWithdrawal(row)
	if err != nil {
		return nil, err
	}
	if !canTransition(w.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, w.Status, to)
	}

	switch to {
	case models.WithdrawalStatusApproved:
		_, err = tx.Exec(ctx, `
			UPDATE withdrawals
			SET status = $1, approved_by = $2,
			    approved_at = NOW() AT TIME ZONE 'utc',
			    updated_at = NOW() AT TIME ZONE 'utc'
			WHERE id = $3
		`, to, adminID, w.ID)
	case models.WithdrawalStatusProcessing:
		_, err = tx.Exec(ctx, `
			UPDATE withdrawals
			SET status = $1, updated_at = NOW() AT TIME ZONE 'utc'
			WHERE id = $2
		`, to, w.ID)
	case models.WithdrawalStatusRejected:
		_, err = tx.Exec(ctx, `
			UPDATE withdrawals
			SET status = $1, rejection_reason = $2, updated_at = NOW() AT TIME ZONE 'utc'
			WHERE id = $3
		`, to, reasonOrTxnID, w.ID)
	case models.WithdrawalStatusCompleted:
		_, err = tx.Exec(ctx, `
			UPDATE withdrawals
			SET status = $1, external_txn_id = $2,
			    completed_at = NOW() AT TIME ZONE 'utc',
			    updated_at = NOW() AT TIME ZONE 'utc'
			WHERE id = $3
		`, to, reasonOrTxnID, w.ID)
		if err != nil {
			return nil, err
		}
		// the debit, the status change, and the commission paid markers all
		// ride the same transaction
		var txn *models.WalletTransaction
		txn, err = wallet.DeductFundsTx(ctx, tx, w.UserID, models.BalanceCommission, w.Amount,
			models.TxnTypeWithdrawal, fmt.Sprintf("withdrawal:%d", w.ID),
			"Commission withdrawal", &adminID)
		if err != nil {
			return nil, err
		}
		err = commission.MarkPaidTx(ctx, tx, w.UserID, txn.ID)
	}
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	w.Status = to

	logging.Logger.Info("withdrawal transitioned",
		zap.Int64("withdrawalID", w.ID),
		zap.String("status", to),
		zap.Int64("adminID", adminID))
	return w, nil
}

// ListWithdrawals returns withdrawals visible through the caller's scope.
func ListWithdrawals(ctx context.Context, scopeCond string, scopeArgs []interface{}, limit, offset int) ([]models.Withdrawal, error) {
	args := append(scopeArgs, limit, offset)
	query := fmt.Sprintf(`
		SELECT `+withdrawalColumns+` FROM withdrawals
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, scopeCond, len(scopeArgs)+1, len(scopeArgs)+2)
	rows, err := database.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Withdrawal
	for rows.Next() {
		var w models.Withdrawal
		err = rows.Scan(&w.ID, &w.UserID, &w.Amount, &w.Method, &w.MethodDetails,
			&w.Status, &w.ApprovedBy, &w.RejectionReason, &w.ExternalTxnID, &w.Notes,
			&w.CreatedAt, &w.ApprovedAt, &w.CompletedAt, &w.UpdatedAt)
		if err != nil {
			return nil, err
		}
		list = append(list, w)
	}
	return list, rows.Err()
}

const payoutColumns = `id, user_id, challenge_id, requested_amount, trader_share,
	platform_share, status, approved_by, rejection_reason, created_at, completed_at`

func scanPayout(row pgx.Row) (*models.PayoutRequest, error) {
	var p models.PayoutRequest
	err := row.Scan(&p.ID, &p.UserID, &p.ChallengeID, &p.RequestedAmount,
		&p.TraderShare, &p.PlatformShare, &p.Status, &p.ApprovedBy,
		&p.RejectionReason, &p.CreatedAt, &p.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPayoutNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// RequestPayout opens a profit payout for a funded challenge. A zero amount
// requests the full payable profit; on-demand programs may request any
// partial amount down to the program minimum. Scheduled programs are gated by
// the payout calendar, and each challenge carries at most one open request.
// The split is computed at request time from the program's profit_split and
// frozen on the row.
func RequestPayout(ctx context.Context, userID, challengeID int64, amount decimal.Decimal) (*models.PayoutRequest, error) {
	c, err := challenge.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID || c.Status != models.ChallengeStatusFunded {
		return nil, ErrNotFunded
	}
	program, err := programs.GetProgram(ctx, c.ProgramID)
	if err != nil {
		return nil, err
	}

	var open int
	err = database.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM payout_requests
		WHERE challenge_id = $1 AND status IN ($2, $3)
	`, challengeID, models.PayoutStatusPending, models.PayoutStatusApproved).Scan(&open)
	if err != nil {
		return nil, err
	}
	if open > 0 {
		return nil, ErrRequestOpen
	}

	if program.PayoutMode != models.PayoutModeOnDemand {
		started := c.CreatedAt
		if c.StartedAt != nil {
			started = *c.StartedAt
		}
		var lastCompleted *time.Time
		err = database.Pool.QueryRow(ctx, `
			SELECT MAX(completed_at) FROM payout_requests
			WHERE challenge_id = $1 AND status = $2
		`, challengeID, models.PayoutStatusCompleted).Scan(&lastCompleted)
		if err != nil {
			return nil, err
		}
		if !PayoutDue(program.PayoutMode, started, lastCompleted, time.Now().UTC()) {
			return nil, ErrNotDue
		}
	}

	profit := challenge.PayableProfit(c, c.CurrentBalance)
	if !profit.IsPositive() {
		return nil, ErrNoProfit
	}
	if !amount.IsZero() {
		amount = wallet.Round2(amount)
		if amount.IsNegative() || amount.GreaterThan(profit) {
			return nil, ErrNotEligible
		}
		profit = amount
	}
	if !challenge.MeetsPayoutMinimum(program, profit) {
		return nil, ErrBelowMinimum
	}
	trader, platform := challenge.SplitProfit(program, profit)

	row := database.Pool.QueryRow(ctx, `
		INSERT INTO payout_requests
			(user_id, challenge_id, requested_amount, trader_share, platform_share, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+payoutColumns+`
	`, userID, challengeID, profit, trader, platform, models.PayoutStatusPending)
	p, err := scanPayout(row)
	if err != nil {
		return nil, err
	}

	logging.Logger.Info("payout requested",
		zap.Int64("payoutID", p.ID),
		zap.Int64("challengeID", challengeID),
		zap.String("profit", profit.StringFixed(2)),
		zap.String("traderShare", trader.StringFixed(2)))
	return p, nil
}

func GetPayout(ctx context.Context, id int64) (*models.PayoutRequest, error) {
	row := database.Pool.QueryRow(ctx,
		`SELECT `+payoutColumns+` FROM payout_requests WHERE id = $1`, id)
	return scanPayout(row)
}

// ApprovePayout marks the request approved; settlement happens in
// CompletePayout once the funds transfer is confirmed.
func ApprovePayout(ctx context.Context, adminID, payoutID int64) (*models.PayoutRequest, error) {
	p, err := GetPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.PayoutStatusPending {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, models.PayoutStatusApproved)
	}
	_, err = database.Pool.Exec(ctx, `
		UPDATE payout_requests SET status = $1, approved_by = $2 WHERE id = $3
	`, models.PayoutStatusApproved, adminID, payoutID)
	if err != nil {
		return nil, err
	}
	p.Status = models.PayoutStatusApproved
	p.ApprovedBy = &adminID
	return p, nil
}

// RejectPayout declines a pending or approved request.
func RejectPayout(ctx context.Context, adminID, payoutID int64, reason string) (*models.PayoutRequest, error) {
	p, err := GetPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.PayoutStatusPending && p.Status != models.PayoutStatusApproved {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, models.PayoutStatusRejected)
	}
	_, err = database.Pool.Exec(ctx, `
		UPDATE payout_requests
		SET status = $1, approved_by = $2, rejection_reason = $3
		WHERE id = $4
	`, models.PayoutStatusRejected, adminID, reason, payoutID)
	if err != nil {
		return nil, err
	}
	p.Status = models.PayoutStatusRejected
	return p, nil
}

// CompletePayout settles an approved payout: the trader share lands in the
// main bucket, the paid-out profit is withdrawn from the funded account, and
// the profit is recorded toward the scaling plan exactly once.
func CompletePayout(ctx context.Context, adminID, payoutID int64) (*models.PayoutRequest, error) {
	p, err := GetPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.PayoutStatusApproved {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, models.PayoutStatusCompleted)
	}

	c, err := challenge.GetChallenge(ctx, p.ChallengeID)
	if err != nil {
		return nil, err
	}
	account, err := challenge.GetActiveAccount(ctx, p.ChallengeID)
	if err != nil {
		return nil, err
	}

	// the paid-out profit leaves the trading account; a partial request keeps
	// the remainder in place. Adjust the account before touching money so a
	// gateway failure aborts the settlement cleanly.
	newBalance := c.CurrentBalance.Sub(p.RequestedAmount)
	if err := challenge.Gateway.SetBalance(ctx, account.MT5Login, newBalance); err != nil {
		return nil, err
	}

	_, err = wallet.AddFunds(ctx, p.UserID, models.BalanceMain, p.TraderShare,
		models.TxnTypeDeposit, fmt.Sprintf("payout:%d", p.ID),
		fmt.Sprintf("Profit payout for challenge %d", p.ChallengeID), &adminID)
	if err != nil {
		return nil, err
	}

	_, err = database.Pool.Exec(ctx, `
		UPDATE payout_requests
		SET status = $1, completed_at = NOW() AT TIME ZONE 'utc'
		WHERE id = $2
	`, models.PayoutStatusCompleted, p.ID)
	if err != nil {
		return nil, err
	}
	p.Status = models.PayoutStatusCompleted

	_, err = database.Pool.Exec(ctx, `
		UPDATE challenges
		SET current_balance = $1,
		    day_open_balance = $1,
		    updated_at = NOW() AT TIME ZONE 'utc'
		WHERE id = $2
	`, newBalance, p.ChallengeID)
	if err != nil {
		return nil, err
	}

	if err := scaling.RecordProfit(ctx, p.ChallengeID, p.RequestedAmount,
		fmt.Sprintf("payout:%d", p.ID)); err != nil {
		logging.Logger.Error("scaling profit record failed",
			zap.Int64("payoutID", p.ID),
			zap.Error(err))
	}

	logging.Logger.Info("payout completed",
		zap.Int64("payoutID", p.ID),
		zap.Int64("adminID", adminID),
		zap.String("traderShare", p.TraderShare.StringFixed(2)))
	return p, nil
}

package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradege/marketedgepros-sub001/database"
	"github.com/tradege/marketedgepros-sub001/logging"
	"github.com/tradege/marketedgepros-sub001/models"
	"github.com/tradege/marketedgepros-sub001/monitoring"
	"github.com/tradege/marketedgepros-sub001/programs"
)

var (
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrNotAwaitingCash  = errors.New("payment is not awaiting cash approval")
	ErrAlreadyProcessed = errors.New("payment already processed")
)

// CompletionHook runs after a payment reaches completed, inside the same
// transaction. Registered at startup to break the package dependency the
// challenge and commission sides would otherwise need on this package.
type CompletionHook func(ctx context.Context, tx pgx.Tx, p *models.Payment) error

// RefundHook runs after a completed payment is refunded, inside the same
// transaction.
type RefundHook func(ctx context.Context, tx pgx.Tx, p *models.Payment) error

var (
	completionHooks []CompletionHook
	refundHooks     []RefundHook
)

func OnCompleted(h CompletionHook) { completionHooks = append(completionHooks, h) }
func OnRefunded(h RefundHook)      { refundHooks = append(refundHooks, h) }

const paymentColumns = `id, user_id, amount, currency, method, external_txn_id, status,
	approval_status, approved_by, rejection_reason, purpose, reference_id,
	created_at, completed_at, updated_at`

func scanPayment(row pgx.Row) (*models.Payment, error) {
	var p models.Payment
	err := row.Scan(&p.ID, &p.UserID, &p.Amount, &p.Currency, &p.Method,
		&p.ExternalTxnID, &p.Status, &p.ApprovalStatus, &p.ApprovedBy,
		&p.RejectionReason, &p.Purpose, &p.ReferenceID,
		&p.CreatedAt, &p.CompletedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	row := database.Pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	return scanPayment(row)
}

func lockPayment(ctx context.Context, tx pgx.Tx, id int64) (*models.Payment, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id)
	return scanPayment(row)
}

// awaitingApproval reports whether the payment sits in the manual review
// queue. Only cash payments and free grants go through it.
func awaitingApproval(p *models.Payment) bool {
	if p.Method != models.PaymentMethodCash && p.Method != models.PaymentMethodFree {
		return false
	}
	return p.ApprovalStatus == models.ApprovalStatusPending
}

// createChallengeRow inserts the pending challenge a purchase pays for.
// The challenge stays pending until the payment completes.
func createChallengeRow(ctx context.Context, tx pgx.Tx, userID int64, program *models.TradingProgram, addons []models.ProgramAddon) (int64, error) {
	snapshot, err := json.Marshal(addons)
	if err != nil {
		return 0, err
	}
	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO challenges
			(user_id, program_id, status, current_phase, total_phases,
			 initial_balance, current_balance, highest_balance, lowest_balance,
			 day_open_balance, addons_snapshot)
		VALUES ($1, $2, $3, 1, $4, $5, $5, $5, $5, $5, $6)
		RETURNING id
	`, userID, program.ID, models.ChallengeStatusPending, program.TotalPhases(),
		program.AccountSize, snapshot).Scan(&id)
	return id, err
}

// Purchase creates the pending challenge and its payment row in one
// transaction. Card purchases wait for the gateway webhook; cash purchases
// and free grants wait in (pending, pending) for super admin approval.
func Purchase(ctx context.Context, userID int64, programID int64, addonIDs []int64, method, currency string, grantedBy *int64) (*models.Payment, error) {
	amount, program, addons, err := programs.Quote(ctx, programID, addonIDs)
	if err != nil {
		return nil, err
	}
	if method == models.PaymentMethodFree {
		amount = decimal.Zero
	}

	approval := models.ApprovalStatusApproved
	if method == models.PaymentMethodCash || method == models.PaymentMethodFree {
		approval = models.ApprovalStatusPending
	}

	tx, err := database.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	challengeID, err := createChallengeRow(ctx, tx, userID, program, addons)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO payments
			(user_id, amount, currency, method, status, approval_status, approved_by, purpose, reference_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+paymentColumns+`
	`, userID, amount, currency, method, models.PaymentStatusPending, approval,
		grantedBy, models.PaymentPurposeChallengePurchase, challengeID)
	payment, err := scanPayment(row)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `UPDATE challenges SET payment_id = $1 WHERE id = $2`,
		payment.ID, challengeID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	monitoring.PaymentsTotal.WithLabelValues(method, payment.Status).Inc()
	logging.Logger.Info("payment created",
		zap.Int64("paymentID", payment.ID),
		zap.Int64("userID", userID),
		zap.String("method", method),
		zap.String("amount", amount.StringFixed(2)))
	return payment, nil
}

// completeInTx moves a locked pending payment to completed and fires the
// completion hooks. Assumes the caller holds the row lock.
func completeInTx(ctx context.Context, tx pgx.Tx, p *models.Payment, externalTxnID *string) error {
	next, err := Transition(p.Status, models.PaymentStatusCompleted)
	if err != nil {
		return err
	}
	err = tx.QueryRow(ctx, `
		UPDATE payments
		SET status = $1,
		    external_txn_id = COALESCE($2, external_txn_id),
		    completed_at = NOW() AT TIME ZONE 'utc',
		    updated_at = NOW() AT TIME ZONE 'utc'
		WHERE id = $3
		RETURNING completed_at
	`, next, externalTxnID, p.ID).Scan(&p.CompletedAt)
	if err != nil {
		return err
	}
	p.Status = next
	if externalTxnID != nil {
		p.ExternalTxnID = externalTxnID
	}

	for _, hook := range completionHooks {
		if err := hook(ctx, tx, p); err != nil {
			return err
		}
	}
	return nil
}

// CompleteFromWebhook settles a card payment confirmed by the gateway.
// Replayed webhooks for an already-completed payment are acknowledged as
// no-ops; the UNIQUE constraint on external_txn_id rejects cross-payment
// reuse of a gateway transaction id.
func CompleteFromWebhook(ctx context.Context, paymentID int64, externalTxnID string) (*models.Payment, error) {
	tx, err := database.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	p, err := lockPayment(ctx, tx, paymentID)
	if err != nil {
		return nil, err
	}

	if p.Status == models.PaymentStatusCompleted {
		if p.ExternalTxnID != nil && *p.ExternalTxnID == externalTxnID {
			return p, nil
		}
		return nil, ErrAlreadyProcessed
	}

	if err := completeInTx(ctx, tx, p, &externalTxnID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	monitoring.PaymentsTotal.WithLabelValues(p.Method, p.Status).Inc()
	logging.Logger.Info("payment completed via webhook",
		zap.Int64("paymentID", p.ID),
		zap.String("externalTxnID", externalTxnID))
	return p, nil
}

// FailFromWebhook marks a pending card payment as failed.
func FailFromWebhook(ctx context.Context, paymentID int64, reason string) (*models.Payment, error) {
	tx, err := database.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	p, err := lockPayment(ctx, tx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status == models.PaymentStatusFailed {
		return p, nil
	}

	next, err := Transition(p.Status, models.PaymentStatusFailed)
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(ctx, `
		UPDATE payments
		SET status = $1, rejection_reason = $2, updated_at = NOW() AT TIME ZONE 'utc'
		WHERE id = $3
	`, next, reason, p.ID)
	if err != nil {
		return nil, err
	}
	p.Status = next
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	monitoring.PaymentsTotal.WithLabelValues(p.Method, p.Status).Inc()
	return p, nil
}

// ApproveCash approves a cash payment or free grant and completes it.
func ApproveCash(ctx context.Context, adminID, paymentID int64) (*models.Payment, error) {
	tx, err := database.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	p, err := lockPayment(ctx, tx, paymentID)
	if err != nil {
		return nil, err
	}
	if !awaitingApproval(p) {
		return nil, ErrNotAwaitingCash
	}

	_, err = tx.Exec(ctx, `
		UPDATE payments
		SET approval_status = $1, approved_by = $2, updated_at = NOW() AT TIME ZONE 'utc'
		WHERE id = $3
	`, models.ApprovalStatusApproved, adminID, p.ID)
	if err != nil {
		return nil, err
	}
	p.ApprovalStatus = models.ApprovalStatusApproved
	p.ApprovedBy = &adminID

	if err := completeInTx(ctx, tx, p, nil); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	monitoring.PaymentsTotal.WithLabelValues(p.Method, p.Status).Inc()
	logging.Logger.Info("cash payment approved",
		zap.Int64("paymentID", p.ID),
		zap.Int64("adminID", adminID))
	return p, nil
}

// RejectCash rejects a pending cash payment or free grant; the payment fails
// terminally.
func RejectCash(ctx context.Context, adminID, paymentID int64, reason string) (*models.Payment, error) {
	tx, err := database.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	p, err := lockPayment(ctx, tx, paymentID)
	if err != nil {
		return nil, err
	}
	if !awaitingApproval(p) {
		return nil, ErrNotAwaitingCash
	}

	next, err := Transition(p.Status, models.PaymentStatusFailed)
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(ctx, `
		UPDATE payments
		SET status = $1, approval_status = $2, approved_by = $3,
		    rejection_reason = $4, updated_at = NOW() AT TIME ZONE 'utc'
		WHERE id = $5
	`, next, models.ApprovalStatusRejected, adminID, reason, p.ID)
	if err != nil {
		return nil, err
	}
	p.Status = next
	p.ApprovalStatus = models.ApprovalStatusRejected

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	monitoring.PaymentsTotal.WithLabelValues(p.Method, p.Status).Inc()
	logging.Logger.Info("cash payment rejected",
		zap.Int64("paymentID", p.ID),
		zap.Int64("adminID", adminID),
		zap.String("reason", reason))
	return p, nil
}

// Refund reverses a completed payment and fires the refund hooks, which
// invalidate the purchased challenge and claw back any commission.
func Refund(ctx context.Context, adminID, paymentID int64, reason string) (*models.Payment, error) {
	tx, err := database.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	p, err := lockPayment(ctx, tx, paymentID)
	if err != nil {
		return nil, err
	}
	next, err := Transition(p.Status, models.PaymentStatusRefunded)
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(ctx, `
		UPDATE payments
		SET status = $1, rejection_reason = $2, updated_at = NOW() AT TIME ZONE 'utc'
		WHERE id = $3
	`, next, reason, p.ID)
	if err != nil {
		return nil, err
	}
	p.Status = next

	for _, hook := range refundHooks {
		if err := hook(ctx, tx, p); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	monitoring.PaymentsTotal.WithLabelValues(p.Method, p.Status).Inc()
	logging.Logger.Info("payment refunded",
		zap.Int64("paymentID", p.ID),
		zap.Int64("adminID", adminID))
	return p, nil
}

// ListPayments returns payments visible through the caller's hierarchy scope.
func ListPayments(ctx context.Context, scopeCond string, scopeArgs []interface{}, limit, offset int) ([]models.Payment, error) {
	args := append(scopeArgs, limit, offset)
	query := fmt.Sprintf(`
		SELECT `+paymentColumns+` FROM payments
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, scopeCond, len(scopeArgs)+1, len(scopeArgs)+2)
	rows, err := database.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Payment
	for rows.Next() {
		var p models.Payment
		err = rows.Scan(&p.ID, &p.UserID, &p.Amount, &p.Currency, &p.Method,
			&p.ExternalTxnID, &p.Status, &p.ApprovalStatus, &p.ApprovedBy,
			&p.RejectionReason, &p.Purpose, &p.ReferenceID,
			&p.CreatedAt, &p.CompletedAt, &p.UpdatedAt)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

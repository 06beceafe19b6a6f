package commission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradege/marketedgepros-sub001/database"
	"github.com/tradege/marketedgepros-sub001/hierarchy"
	"github.com/tradege/marketedgepros-sub001/logging"
	"github.com/tradege/marketedgepros-sub001/models"
	"github.com/tradege/marketedgepros-sub001/monitoring"
	"github.com/tradege/marketedgepros-sub001/wallet"
)

var ErrCommissionNotFound = errors.New("commission not found")

var (
	defaultRate decimal.Decimal
	holdPeriod  time.Duration
)

// Init sets the fallback rate and the hold window before release.
func Init(rate decimal.Decimal, holdDays int) {
	defaultRate = rate
	holdPeriod = time.Duration(holdDays) * 24 * time.Hour
}

var oneHundred = decimal.NewFromInt(100)

// earningAgent walks the buyer's ancestor chain from closest to root and
// returns the first active affiliate or admin. The root super_admin earns
// nothing; unattributed sales stay with the platform.
func earningAgent(ctx context.Context, buyer *models.User) (*models.User, error) {
	chain, err := hierarchy.ParentChain(ctx, buyer)
	if err != nil {
		return nil, err
	}
	for i := range chain {
		a := &chain[i]
		if !a.IsActive || a.IsRoot() {
			continue
		}
		if a.Role == models.RoleAffiliate || a.Role == models.RoleAdmin {
			return a, nil
		}
	}
	return nil, nil
}

func agentRate(agent *models.User) decimal.Decimal {
	if agent.CommissionRate != nil {
		if r, err := decimal.NewFromString(*agent.CommissionRate); err == nil {
			return r
		}
	}
	return defaultRate
}

// OnPaymentCompleted is the payment completion hook. It records a pending
// commission for the earning agent and credits the agent's commission bucket
// in the same transaction as the payment, so the ledger row and the
// commission row commit or roll back together. The UNIQUE constraint on
// (challenge_id, agent_id) makes replays harmless: a duplicate insert returns
// no id and the wallet is not credited again. Free grants earn nothing.
func OnPaymentCompleted(ctx context.Context, tx pgx.Tx, p *models.Payment) error {
	if p.Purpose != models.PaymentPurposeChallengePurchase || p.ReferenceID == nil {
		return nil
	}
	if !p.Amount.IsPositive() {
		return nil
	}

	buyer, err := hierarchy.GetUserByID(ctx, p.UserID)
	if err != nil {
		return err
	}
	agent, err := earningAgent(ctx, buyer)
	if err != nil {
		return err
	}
	if agent == nil {
		return nil
	}

	rate := agentRate(agent)
	amount := wallet.Round2(p.Amount.Mul(rate).Div(oneHundred))

	var referralID *int64
	err = tx.QueryRow(ctx, `
		SELECT id FROM referrals WHERE agent_id = $1 AND referred_user_id = $2
	`, agent.ID, buyer.ID).Scan(&referralID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	var commissionID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO commissions
			(agent_id, challenge_id, referral_id, sale_amount, rate, commission_amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (challenge_id, agent_id) DO NOTHING
		RETURNING id
	`, agent.ID, *p.ReferenceID, referralID, p.Amount, rate, amount,
		models.CommissionStatusPending).Scan(&commissionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = wallet.AddFundsTx(ctx, tx, agent.ID, models.BalanceCommission, amount,
		models.TxnTypeCommission, fmt.Sprintf("commission:%d", commissionID),
		fmt.Sprintf("Referral commission for challenge %d", *p.ReferenceID), nil)
	if err != nil {
		return err
	}

	monitoring.CommissionsCreatedTotal.Inc()
	logging.Logger.Info("commission recorded",
		zap.Int64("agentID", agent.ID),
		zap.Int64("challengeID", *p.ReferenceID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("rate", rate.String()))
	return nil
}

// OnPaymentRefunded is the payment refund hook. Pending and approved
// commissions are voided and the earlier credit is reversed with a
// compensating debit in the refund transaction. An agent who already spent
// the balance, or whose commission was paid out, is flagged clawback_owed
// and settled by later scheduler passes.
func OnPaymentRefunded(ctx context.Context, tx pgx.Tx, p *models.Payment) error {
	if p.Purpose != models.PaymentPurposeChallengePurchase || p.ReferenceID == nil {
		return nil
	}

	rows, err := tx.Query(ctx, `
		SELECT id, agent_id, commission_amount, status
		FROM commissions
		WHERE challenge_id = $1 AND status IN ($2, $3)
		FOR UPDATE
	`, *p.ReferenceID, models.CommissionStatusPending, models.CommissionStatusApproved)
	if err != nil {
		return err
	}
	type unwound struct {
		id, agentID int64
		amount      decimal.Decimal
		status      string
	}
	var batch []unwound
	for rows.Next() {
		var u unwound
		if err := rows.Scan(&u.id, &u.agentID, &u.amount, &u.status); err != nil {
			rows.Close()
			return err
		}
		batch = append(batch, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, u := range batch {
		owed := false
		_, err := wallet.DeductFundsTx(ctx, tx, u.agentID, models.BalanceCommission, u.amount,
			models.TxnTypeCommission, fmt.Sprintf("commission-reversal:%d", u.id),
			fmt.Sprintf("Commission reversal for refunded challenge %d", *p.ReferenceID), nil)
		if errors.Is(err, wallet.ErrInsufficientFunds) {
			owed = true
		} else if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE commissions SET status = $1, clawback_owed = $2 WHERE id = $3
		`, models.CommissionStatusVoided, owed, u.id)
		if err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE commissions
		SET clawback_owed = true
		WHERE challenge_id = $1 AND status = $2
	`, *p.ReferenceID, models.CommissionStatusPaid)
	return err
}

// ReleaseDue promotes pending commissions whose anti-refund hold window has
// elapsed to approved. The funds were credited at sale time; approval only
// marks them safe to include in a withdrawal. Called from the scheduler.
func ReleaseDue(ctx context.Context) (int, error) {
	tag, err := database.Pool.Exec(ctx, `
		UPDATE commissions
		SET status = $1, approved_at = NOW() AT TIME ZONE 'utc'
		WHERE status = $2 AND created_at <= $3
	`, models.CommissionStatusApproved, models.CommissionStatusPending,
		time.Now().UTC().Add(-holdPeriod))
	if err != nil {
		return 0, err
	}
	approved := int(tag.RowsAffected())
	if approved > 0 {
		logging.Logger.Info("commissions approved", zap.Int("count", approved))
	}
	return approved, nil
}

// MarkPaidTx stamps an agent's approved commissions as paid, recording the
// withdrawal ledger transaction that carried the funds out. Runs inside the
// withdrawal completion transaction.
func MarkPaidTx(ctx context.Context, tx pgx.Tx, agentID, paidTransactionID int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE commissions
		SET status = $1, paid_transaction_id = $2,
		    paid_at = NOW() AT TIME ZONE 'utc'
		WHERE agent_id = $3 AND status = $4
	`, models.CommissionStatusPaid, paidTransactionID, agentID,
		models.CommissionStatusApproved)
	return err
}

// SettleClawbacks debits agents who owe clawbacks from refunded sales. An
// agent with an insufficient commission balance keeps the flag set and is
// retried on later passes.
func SettleClawbacks(ctx context.Context) (int, error) {
	rows, err := database.Pool.Query(ctx, `
		SELECT id, agent_id, challenge_id, commission_amount
		FROM commissions
		WHERE clawback_owed = true
		ORDER BY id
	`)
	if err != nil {
		return 0, err
	}

	type owed struct {
		id, agentID, challengeID int64
		amount                   decimal.Decimal
	}
	var batch []owed
	for rows.Next() {
		var o owed
		if err := rows.Scan(&o.id, &o.agentID, &o.challengeID, &o.amount); err != nil {
			rows.Close()
			return 0, err
		}
		batch = append(batch, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	settled := 0
	for _, o := range batch {
		_, err := wallet.DeductFunds(ctx, o.agentID, models.BalanceCommission, o.amount,
			models.TxnTypeAdjustment, fmt.Sprintf("clawback:%d", o.id),
			fmt.Sprintf("Commission clawback for refunded challenge %d", o.challengeID), nil)
		if errors.Is(err, wallet.ErrInsufficientFunds) {
			continue
		}
		if err != nil {
			return settled, err
		}
		_, err = database.Pool.Exec(ctx, `
			UPDATE commissions SET status = $1, clawback_owed = false WHERE id = $2
		`, models.CommissionStatusVoided, o.id)
		if err != nil {
			return settled, err
		}
		settled++
	}
	return settled, nil
}

// ListForAgent returns an agent's commissions, newest first.
func ListForAgent(ctx context.Context, agentID int64, limit, offset int) ([]models.Commission, error) {
	rows, err := database.Pool.Query(ctx, `
		SELECT id, agent_id, challenge_id, referral_id, sale_amount, rate,
		       commission_amount, status, clawback_owed, paid_transaction_id,
		       created_at, approved_at, paid_at
		FROM commissions
		WHERE agent_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, agentID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Commission
	for rows.Next() {
		var c models.Commission
		err = rows.Scan(&c.ID, &c.AgentID, &c.ChallengeID, &c.ReferralID,
			&c.SaleAmount, &c.Rate, &c.CommissionAmount, &c.Status,
			&c.ClawbackOwed, &c.PaidTransactionID,
			&c.CreatedAt, &c.ApprovedAt, &c.PaidAt)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

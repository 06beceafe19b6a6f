package scaling

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradege/marketedgepros-sub001/challenge"
	"github.com/tradege/marketedgepros-sub001/database"
	"github.com/tradege/marketedgepros-sub001/logging"
	"github.com/tradege/marketedgepros-sub001/models"
)

var (
	ErrScalingNotFound = errors.New("scaling record not found")
	ErrTierNotFound    = errors.New("scaling tier not found")
	ErrNotEligible     = errors.New("account not eligible for scaling")
	ErrPlanComplete    = errors.New("scaling plan already completed")
)

var oneHundred = decimal.NewFromInt(100)

const scalingColumns = `id, user_id, current_tier, current_account_size, next_tier,
	next_account_size, total_profit, target_profit, progress_percentage, times_scaled,
	is_eligible_for_scaling, eligibility_checked_at, status, created_at, updated_at`

func scanScaling(row pgx.Row) (*models.AccountScaling, error) {
	var s models.AccountScaling
	err := row.Scan(&s.ID, &s.UserID, &s.CurrentTier, &s.CurrentAccountSize,
		&s.NextTier, &s.NextAccountSize, &s.TotalProfit, &s.TargetProfit,
		&s.ProgressPercentage, &s.TimesScaled, &s.IsEligibleForScaling,
		&s.EligibilityCheckedAt, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrScalingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func GetForUser(ctx context.Context, userID int64) (*models.AccountScaling, error) {
	row := database.Pool.QueryRow(ctx,
		`SELECT `+scalingColumns+` FROM account_scalings WHERE user_id = $1`, userID)
	return scanScaling(row)
}

func getTier(ctx context.Context, tx pgx.Tx, tierNumber int) (*models.ScalingTier, error) {
	var t models.ScalingTier
	err := tx.QueryRow(ctx, `
		SELECT id, tenant_id, tier_number, account_size, profit_target,
		       min_trading_days, min_trades, profit_split_override
		FROM scaling_tiers WHERE tenant_id = 1 AND tier_number = $1
	`, tierNumber).Scan(&t.ID, &t.TenantID, &t.TierNumber, &t.AccountSize,
		&t.ProfitTarget, &t.MinTradingDays, &t.MinTrades, &t.ProfitSplitOverride)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTierNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// tierForSize finds the tier matching a funded account's size, falling back
// to tier 1 when the catalog has no exact match.
func tierForSize(ctx context.Context, tx pgx.Tx, size decimal.Decimal) (*models.ScalingTier, error) {
	var t models.ScalingTier
	err := tx.QueryRow(ctx, `
		SELECT id, tenant_id, tier_number, account_size, profit_target,
		       min_trading_days, min_trades, profit_split_override
		FROM scaling_tiers WHERE tenant_id = 1 AND account_size = $1
	`, size).Scan(&t.ID, &t.TenantID, &t.TierNumber, &t.AccountSize,
		&t.ProfitTarget, &t.MinTradingDays, &t.MinTrades, &t.ProfitSplitOverride)
	if errors.Is(err, pgx.ErrNoRows) {
		return getTier(ctx, tx, 1)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ensureRecord loads or creates the user's scaling row FOR UPDATE.
func ensureRecord(ctx context.Context, tx pgx.Tx, userID int64, accountSize decimal.Decimal) (*models.AccountScaling, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+scalingColumns+` FROM account_scalings WHERE user_id = $1 FOR UPDATE`, userID)
	s, err := scanScaling(row)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrScalingNotFound) {
		return nil, err
	}

	tier, err := tierForSize(ctx, tx, accountSize)
	if err != nil {
		return nil, err
	}
	next, err := getTier(ctx, tx, tier.TierNumber+1)
	var nextTier *int
	var nextSize *decimal.Decimal
	if err == nil {
		nextTier = &next.TierNumber
		nextSize = &next.AccountSize
	} else if !errors.Is(err, ErrTierNotFound) {
		return nil, err
	}

	row = tx.QueryRow(ctx, `
		INSERT INTO account_scalings
			(user_id, current_tier, current_account_size, next_tier, next_account_size, target_profit)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+scalingColumns+`
	`, userID, tier.TierNumber, tier.AccountSize, nextTier, nextSize, tier.ProfitTarget)
	return scanScaling(row)
}

// RecordProfit accrues a settled payout's profit toward the user's scaling
// plan. The reference makes the operation idempotent: a replay with the same
// reference changes nothing.
func RecordProfit(ctx context.Context, challengeID int64, profit decimal.Decimal, reference string) error {
	if !profit.IsPositive() {
		return nil
	}
	c, err := challenge.GetChallenge(ctx, challengeID)
	if err != nil {
		return err
	}

	tx, err := database.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	s, err := ensureRecord(ctx, tx, c.UserID, c.InitialBalance)
	if err != nil {
		return err
	}
	if s.Status == models.ScalingStatusCompleted {
		return tx.Commit(ctx)
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO scaling_profit_refs (scaling_id, reference)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, s.ID, reference)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// already counted
		return tx.Commit(ctx)
	}

	total := s.TotalProfit.Add(profit)
	progress := decimal.Zero
	if s.TargetProfit.IsPositive() {
		progress = total.Mul(oneHundred).Div(s.TargetProfit).Round(4)
	}
	eligible := progress.GreaterThanOrEqual(oneHundred) && s.NextTier != nil

	_, err = tx.Exec(ctx, `
		UPDATE account_scalings
		SET total_profit = $1,
		    progress_percentage = LEAST($2, 100),
		    is_eligible_for_scaling = $3,
		    eligibility_checked_at = NOW() AT TIME ZONE 'utc',
		    last_profit_reference = $4,
		    updated_at = NOW() AT TIME ZONE 'utc'
		WHERE id = $5
	`, total, progress, eligible, reference, s.ID)
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logging.Logger.Info("scaling profit recorded",
		zap.Int64("userID", c.UserID),
		zap.String("profit", profit.StringFixed(2)),
		zap.String("progress", progress.StringFixed(2)),
		zap.Bool("eligible", eligible))
	return nil
}

// ScaleUp promotes an eligible account to its next tier: the funded MT5
// account is reset at the larger size and the progress counters start over.
func ScaleUp(ctx context.Context, adminID, userID int64) (*models.AccountScaling, error) {
	tx, err := database.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+scalingColumns+` FROM account_scalings WHERE user_id = $1 FOR UPDATE`, userID)
	s, err := scanScaling(row)
	if err != nil {
		return nil, err
	}
	if s.Status == models.ScalingStatusCompleted {
		return nil, ErrPlanComplete
	}
	if !s.IsEligibleForScaling || s.NextTier == nil {
		return nil, ErrNotEligible
	}

	newTier, err := getTier(ctx, tx, *s.NextTier)
	if err != nil {
		return nil, err
	}
	following, err := getTier(ctx, tx, newTier.TierNumber+1)
	var nextTier *int
	var nextSize *decimal.Decimal
	status := models.ScalingStatusActive
	if err == nil {
		nextTier = &following.TierNumber
		nextSize = &following.AccountSize
	} else if errors.Is(err, ErrTierNotFound) {
		// top tier reached
		status = models.ScalingStatusCompleted
	} else {
		return nil, err
	}

	row = tx.QueryRow(ctx, `
		UPDATE account_scalings
		SET current_tier = $1,
		    current_account_size = $2,
		    next_tier = $3,
		    next_account_size = $4,
		    total_profit = 0,
		    target_profit = $5,
		    progress_percentage = 0,
		    times_scaled = times_scaled + 1,
		    is_eligible_for_scaling = false,
		    status = $6,
		    updated_at = NOW() AT TIME ZONE 'utc'
		WHERE id = $7
		RETURNING `+scalingColumns+`
	`, newTier.TierNumber, newTier.AccountSize, nextTier, nextSize,
		newTier.ProfitTarget, status, s.ID)
	s, err = scanScaling(row)
	if err != nil {
		return nil, err
	}

	// grow the live funded account to the new size
	fundedChallengeID, login, err := fundedAccount(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if err := challenge.Gateway.SetBalance(ctx, login, newTier.AccountSize); err != nil {
		return nil, err
	}
	_, err = tx.Exec(ctx, `
		UPDATE challenges
		SET initial_balance = $1,
		    current_balance = $1,
		    highest_balance = $1,
		    lowest_balance = $1,
		    day_open_balance = $1,
		    updated_at = NOW() AT TIME ZONE 'utc'
		WHERE id = $2
	`, newTier.AccountSize, fundedChallengeID)
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(ctx, `
		UPDATE mt5_accounts
		SET balance = $1, equity = $1, last_equity = $1,
		    updated_at = NOW() AT TIME ZONE 'utc'
		WHERE mt5_login = $2
	`, newTier.AccountSize, login)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	logging.Logger.Info("account scaled up",
		zap.Int64("userID", userID),
		zap.Int64("adminID", adminID),
		zap.Int("tier", newTier.TierNumber),
		zap.String("accountSize", newTier.AccountSize.StringFixed(2)))
	return s, nil
}

func fundedAccount(ctx context.Context, tx pgx.Tx, userID int64) (challengeID, login int64, err error) {
	err = tx.QueryRow(ctx, `
		SELECT c.id, a.mt5_login
		FROM challenges c
		JOIN mt5_accounts a ON a.challenge_id = c.id AND a.status = $1
		WHERE c.user_id = $2 AND c.status = $3
		ORDER BY c.id DESC LIMIT 1
	`, models.MT5AccountStatusActive, userID, models.ChallengeStatusFunded).
		Scan(&challengeID, &login)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, fmt.Errorf("no funded account for user %d", userID)
	}
	return challengeID, login, err
}

// ListTiers returns the tier ladder in order.
func ListTiers(ctx context.Context) ([]models.ScalingTier, error) {
	rows, err := database.Pool.Query(ctx, `
		SELECT id, tenant_id, tier_number, account_size, profit_target,
		       min_trading_days, min_trades, profit_split_override
		FROM scaling_tiers WHERE tenant_id = 1 ORDER BY tier_number
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tiers []models.ScalingTier
	for rows.Next() {
		var t models.ScalingTier
		err = rows.Scan(&t.ID, &t.TenantID, &t.TierNumber, &t.AccountSize,
			&t.ProfitTarget, &t.MinTradingDays, &t.MinTrades, &t.ProfitSplitOverride)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}

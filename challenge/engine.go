package challenge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/tradege/marketedgepros-sub001/database"
	"github.com/tradege/marketedgepros-sub001/logging"
	"github.com/tradege/marketedgepros-sub001/models"
	"github.com/tradege/marketedgepros-sub001/monitoring"
	"github.com/tradege/marketedgepros-sub001/mt5"
	"github.com/tradege/marketedgepros-sub001/programs"
	"github.com/tradege/marketedgepros-sub001/utils"
)

var (
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrAccountNotFound   = errors.New("mt5 account not found")
	ErrNotActive         = errors.New("challenge is not active")
	ErrAlreadyProvisioned = errors.New("challenge already has an account")
)

const maxProvisionAttempts = 5

// Gateway and Vault are wired once at startup before any worker runs.
var (
	Gateway *mt5.Client
	Vault   *utils.Cipher
)

func Init(gateway *mt5.Client, vault *utils.Cipher) {
	Gateway = gateway
	Vault = vault
}

const challengeColumns = `id, user_id, program_id, payment_id, status, current_phase,
	total_phases, initial_balance, current_balance, highest_balance, lowest_balance,
	day_open_balance, day_open_date, total_profit, total_loss, trading_days_count,
	profit_target_reached, daily_loss_violated, total_loss_violated, addons_snapshot,
	provision_attempts, started_at, completed_at, failed_at, expires_at,
	created_at, updated_at`

func scanChallenge(row pgx.Row) (*models.Challenge, error) {
	var c models.Challenge
	err := row.Scan(&c.ID, &c.UserID, &c.ProgramID, &c.PaymentID, &c.Status,
		&c.CurrentPhase, &c.TotalPhases, &c.InitialBalance, &c.CurrentBalance,
		&c.HighestBalance, &c.LowestBalance, &c.DayOpenBalance, &c.DayOpenDate,
		&c.TotalProfit, &c.TotalLoss, &c.TradingDaysCount, &c.ProfitTargetReached,
		&c.DailyLossViolated, &c.TotalLossViolated, &c.AddonsSnapshot,
		&c.ProvisionAttempts, &c.StartedAt, &c.CompletedAt, &c.FailedAt,
		&c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrChallengeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func GetChallenge(ctx context.Context, id int64) (*models.Challenge, error) {
	row := database.Pool.QueryRow(ctx,
		`SELECT `+challengeColumns+` FROM challenges WHERE id = $1`, id)
	return scanChallenge(row)
}

// lockChallenge takes the challenge row lock. Every state transition runs
// under it, so concurrent syncs, webhooks and payout settlements for the same
// challenge serialize here.
func lockChallenge(ctx context.Context, tx pgx.Tx, id int64) (*models.Challenge, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+challengeColumns+` FROM challenges WHERE id = $1 FOR UPDATE`, id)
	return scanChallenge(row)
}

// ListChallenges returns challenges whose owner is visible to the scope.
func ListChallenges(ctx context.Context, scopeCond string, scopeArgs []interface{}, limit, offset int) ([]models.Challenge, error) {
	args := append(scopeArgs, limit, offset)
	query := fmt.Sprintf(`
		SELECT `+challengeColumns+` FROM challenges
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, scopeCond, len(scopeArgs)+1, len(scopeArgs)+2)
	rows, err := database.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Challenge
	for rows.Next() {
		var c models.Challenge
		err = rows.Scan(&c.ID, &c.UserID, &c.ProgramID, &c.PaymentID, &c.Status,
			&c.CurrentPhase, &c.TotalPhases, &c.InitialBalance, &c.CurrentBalance,
			&c.HighestBalance, &c.LowestBalance, &c.DayOpenBalance, &c.DayOpenDate,
			&c.TotalProfit, &c.TotalLoss, &c.TradingDaysCount, &c.ProfitTargetReached,
			&c.DailyLossViolated, &c.TotalLossViolated, &c.AddonsSnapshot,
			&c.ProvisionAttempts, &c.StartedAt, &c.CompletedAt, &c.FailedAt,
			&c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

const accountColumns = `id, challenge_id, mt5_login, mt5_group, server, password_enc,
	balance, equity, margin, last_equity, phase, status, created_at, updated_at`

func scanAccount(row pgx.Row) (*models.MT5Account, error) {
	var a models.MT5Account
	err := row.Scan(&a.ID, &a.ChallengeID, &a.MT5Login, &a.MT5Group, &a.Server,
		&a.PasswordEnc, &a.Balance, &a.Equity, &a.Margin, &a.LastEquity,
		&a.Phase, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetActiveAccount returns the challenge's account for its current phase.
func GetActiveAccount(ctx context.Context, challengeID int64) (*models.MT5Account, error) {
	return activeAccount(ctx, database.Pool, challengeID)
}

func activeAccount(ctx context.Context, db database.Queryer, challengeID int64) (*models.MT5Account, error) {
	row := db.QueryRow(ctx, `
		SELECT `+accountColumns+` FROM mt5_accounts
		WHERE challenge_id = $1 AND status = $2
		ORDER BY id DESC LIMIT 1
	`, challengeID, models.MT5AccountStatusActive)
	return scanAccount(row)
}

// ActivateForPayment is the payment completion hook. It flips the pending
// challenge active inside the payment transaction; account provisioning
// happens asynchronously because it calls out over HTTP.
func ActivateForPayment(ctx context.Context, tx pgx.Tx, p *models.Payment) error {
	if p.Purpose != models.PaymentPurposeChallengePurchase || p.ReferenceID == nil {
		return nil
	}
	program, err := getProgramForChallenge(ctx, tx, *p.ReferenceID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	var expiresAt *time.Time
	if program.MaxTradingDays > 0 {
		t := now.AddDate(0, 0, program.MaxTradingDays)
		expiresAt = &t
	}

	tag, err := tx.Exec(ctx, `
		UPDATE challenges
		SET status = $1,
		    started_at = $2,
		    expires_at = $3,
		    day_open_date = $4,
		    updated_at = NOW() AT TIME ZONE 'utc'
		WHERE id = $5 AND status = $6
	`, models.ChallengeStatusActive, now, expiresAt, UTCDay(now),
		*p.ReferenceID, models.ChallengeStatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// already activated, replayed webhook
		return nil
	}

	monitoring.ChallengeTransitionsTotal.WithLabelValues("activated").Inc()
	logging.Logger.Info("challenge activated",
		zap.Int64("challengeID", *p.ReferenceID),
		zap.Int64("paymentID", p.ID))
	return nil
}

// InvalidateForRefund is the payment refund hook. The challenge fails
// terminally; the sync worker disables the live account on its next pass.
func InvalidateForRefund(ctx context.Context, tx pgx.Tx, p *models.Payment) error {
	if p.Purpose != models.PaymentPurposeChallengePurchase || p.ReferenceID == nil {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE challenges
		SET status = $1,
		    failed_at = NOW() AT TIME ZONE 'utc',
		    updated_at = NOW() AT TIME ZONE 'utc'
		WHERE id = $2 AND status NOT IN ($3, $4)
	`, models.ChallengeStatusFailed, *p.ReferenceID,
		models.ChallengeStatusFailed, models.ChallengeStatusExpired)
	if err != nil {
		return err
	}
	monitoring.ChallengeTransitionsTotal.WithLabelValues("refund_invalidated").Inc()
	logging.Logger.Info("challenge invalidated by refund",
		zap.Int64("challengeID", *p.ReferenceID))
	return nil
}

func getProgramForChallenge(ctx context.Context, tx pgx.Tx, challengeID int64) (*models.TradingProgram, error) {
	var programID int64
	err := tx.QueryRow(ctx,
		`SELECT program_id FROM challenges WHERE id = $1`, challengeID).Scan(&programID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrChallengeNotFound
	}
	if err != nil {
		return nil, err
	}
	return programs.GetProgram(ctx, programID)
}

// Provision opens the MT5 account for an active challenge that has none yet.
// Called from the worker queue; each failed attempt bumps provision_attempts
// and the item is retried until the cap.
func Provision(ctx context.Context, challengeID int64) error {
	c, err := GetChallenge(ctx, challengeID)
	if err != nil {
		return err
	}
	if c.Status != models.ChallengeStatusActive {
		return ErrNotActive
	}
	if _, err := GetActiveAccount(ctx, challengeID); err == nil {
		return ErrAlreadyProvisioned
	} else if !errors.Is(err, ErrAccountNotFound) {
		return err
	}
	if c.ProvisionAttempts >= maxProvisionAttempts {
		logging.Logger.Error("provisioning attempts exhausted",
			zap.Int64("challengeID", challengeID))
		return fmt.Errorf("challenge %d: provisioning attempts exhausted", challengeID)
	}

	program, err := programs.GetProgram(ctx, c.ProgramID)
	if err != nil {
		return err
	}
	return provisionAccount(ctx, database.Pool, c, program, c.CurrentPhase)
}

// provisionAccount opens a fresh account at the program's initial balance for
// the given phase and stores the encrypted password.
func provisionAccount(ctx context.Context, db database.Queryer, c *models.Challenge, p *models.TradingProgram, phase int) error {
	_, err := db.Exec(ctx,
		`UPDATE challenges SET provision_attempts = provision_attempts + 1 WHERE id = $1`, c.ID)
	if err != nil {
		return err
	}

	created, err := Gateway.CreateAccount(ctx, p.MT5Group(phase),
		fmt.Sprintf("challenge-%d", c.ID), p.Leverage, c.InitialBalance)
	if err != nil {
		logging.Logger.Warn("mt5 account creation failed",
			zap.Int64("challengeID", c.ID),
			zap.Int("phase", phase),
			zap.Error(err))
		return err
	}

	enc, err := Vault.Encrypt([]byte(created.Password))
	if err != nil {
		return err
	}

	_, err = db.Exec(ctx, `
		INSERT INTO mt5_accounts
			(challenge_id, mt5_login, mt5_group, server, password_enc,
			 balance, equity, last_equity, phase, status)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $6, $7, $8)
	`, c.ID, created.Login, created.Group, created.Server, enc,
		c.InitialBalance, phase, models.MT5AccountStatusActive)
	if err != nil {
		return err
	}

	logging.Logger.Info("mt5 account provisioned",
		zap.Int64("challengeID", c.ID),
		zap.Int64("login", created.Login),
		zap.Int("phase", phase))
	return nil
}

// advancePhase closes the current phase account and either provisions the
// next phase or transitions to funded after the final one. Runs under the
// challenge row lock; the status guard makes a lost race a no-op.
func advancePhase(ctx context.Context, db database.Queryer, c *models.Challenge, p *models.TradingProgram) error {
	account, err := activeAccount(ctx, db, c.ID)
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		return err
	}
	if account != nil {
		if err := Gateway.DisableAccount(ctx, account.MT5Login); err != nil {
			return err
		}
		_, err = db.Exec(ctx, `
			UPDATE mt5_accounts
			SET status = $1, updated_at = NOW() AT TIME ZONE 'utc'
			WHERE id = $2
		`, models.MT5AccountStatusClosed, account.ID)
		if err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	if c.CurrentPhase < c.TotalPhases {
		// next evaluation phase, fresh balance and counters
		nextPhase := c.CurrentPhase + 1
		var expiresAt *time.Time
		if p.MaxTradingDays > 0 {
			t := now.AddDate(0, 0, p.MaxTradingDays)
			expiresAt = &t
		}
		tag, err := db.Exec(ctx, `
			UPDATE challenges
			SET current_phase = $1,
			    current_balance = initial_balance,
			    highest_balance = initial_balance,
			    lowest_balance = initial_balance,
			    day_open_balance = initial_balance,
			    day_open_date = $2,
			    trading_days_count = 0,
			    profit_target_reached = false,
			    provision_attempts = 0,
			    started_at = $3,
			    expires_at = $4,
			    updated_at = NOW() AT TIME ZONE 'utc'
			WHERE id = $5 AND status = $6 AND current_phase = $7
		`, nextPhase, UTCDay(now), now, expiresAt, c.ID,
			models.ChallengeStatusActive, c.CurrentPhase)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		c.CurrentPhase = nextPhase
		c.ProvisionAttempts = 0

		monitoring.ChallengeTransitionsTotal.WithLabelValues("phase_advanced").Inc()
		logging.Logger.Info("challenge phase advanced",
			zap.Int64("challengeID", c.ID),
			zap.Int("phase", nextPhase))
		return provisionAccount(ctx, db, c, p, nextPhase)
	}

	// final phase passed: funded account, no expiry, no profit target
	tag, err := db.Exec(ctx, `
		UPDATE challenges
		SET status = $1,
		    current_phase = 0,
		    current_balance = initial_balance,
		    highest_balance = initial_balance,
		    lowest_balance = initial_balance,
		    day_open_balance = initial_balance,
		    day_open_date = $2,
		    trading_days_count = 0,
		    provision_attempts = 0,
		    completed_at = $3,
		    expires_at = NULL,
		    updated_at = NOW() AT TIME ZONE 'utc'
		WHERE id = $4 AND status = $5
	`, models.ChallengeStatusFunded, UTCDay(now), now, c.ID,
		models.ChallengeStatusActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return nil
	}
	c.Status = models.ChallengeStatusFunded
	c.CurrentPhase = 0
	c.ProvisionAttempts = 0

	monitoring.ChallengeTransitionsTotal.WithLabelValues("funded").Inc()
	logging.Logger.Info("challenge funded",
		zap.Int64("challengeID", c.ID),
		zap.Int64("userID", c.UserID))
	return provisionAccount(ctx, db, c, p, 0)
}

// terminate fails or expires the challenge and disables its live account.
// Runs under the challenge row lock; the status guard makes a lost race a
// no-op.
func terminate(ctx context.Context, db database.Queryer, c *models.Challenge, status, reason string, dailyBreach, totalBreach bool) error {
	tag, err := db.Exec(ctx, `
		UPDATE challenges
		SET status = $1,
		    daily_loss_violated = daily_loss_violated OR $2,
		    total_loss_violated = total_loss_violated OR $3,
		    failed_at = NOW() AT TIME ZONE 'utc',
		    updated_at = NOW() AT TIME ZONE 'utc'
		WHERE id = $4 AND status IN ($5, $6)
	`, status, dailyBreach, totalBreach, c.ID,
		models.ChallengeStatusActive, models.ChallengeStatusFunded)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return nil
	}
	c.Status = status

	account, err := activeAccount(ctx, db, c.ID)
	if errors.Is(err, ErrAccountNotFound) {
		account = nil
	} else if err != nil {
		return err
	}
	if account != nil {
		if err := Gateway.DisableAccount(ctx, account.MT5Login); err != nil {
			logging.Logger.Error("failed to disable mt5 account",
				zap.Int64("login", account.MT5Login),
				zap.Error(err))
		}
		_, err = db.Exec(ctx, `
			UPDATE mt5_accounts
			SET status = $1, updated_at = NOW() AT TIME ZONE 'utc'
			WHERE id = $2
		`, models.MT5AccountStatusDisabled, account.ID)
		if err != nil {
			return err
		}
	}

	monitoring.ChallengeTransitionsTotal.WithLabelValues(reason).Inc()
	logging.Logger.Info("challenge terminated",
		zap.Int64("challengeID", c.ID),
		zap.String("status", status),
		zap.String("reason", reason))
	return nil
}

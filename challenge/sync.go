package challenge

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/tradege/marketedgepros-sub001/database"
	"github.com/tradege/marketedgepros-sub001/logging"
	"github.com/tradege/marketedgepros-sub001/models"
	"github.com/tradege/marketedgepros-sub001/mt5"
	"github.com/tradege/marketedgepros-sub001/programs"
)

// Sync pulls equity and closed trades from the gateway for one challenge,
// rolls the daily-loss window at UTC midnight, recounts trading days and
// applies the rule verdict. Challenges without a provisioned account are
// (re)provisioned instead.
//
// The whole pass runs in one transaction holding the challenge row lock, so
// two concurrent syncs of the same challenge, or a sync racing a payout
// settlement, evaluate one after the other against committed state.
func Sync(ctx context.Context, challengeID int64) error {
	tx, err := database.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	c, err := lockChallenge(ctx, tx, challengeID)
	if err != nil {
		return err
	}
	if c.Status != models.ChallengeStatusActive && c.Status != models.ChallengeStatusFunded {
		return nil
	}

	account, err := activeAccount(ctx, tx, challengeID)
	if errors.Is(err, ErrAccountNotFound) {
		// release the lock first: Provision writes through the pool and
		// would block on our own lock
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return rbErr
		}
		if perr := Provision(ctx, challengeID); perr != nil &&
			!errors.Is(perr, ErrAlreadyProvisioned) {
			return perr
		}
		return nil
	}
	if err != nil {
		return err
	}

	program, err := programs.GetProgram(ctx, c.ProgramID)
	if err != nil {
		return err
	}

	equity, err := Gateway.GetEquity(ctx, account.MT5Login)
	if err != nil {
		return err
	}

	since := account.UpdatedAt
	trades, err := Gateway.GetClosedTrades(ctx, account.MT5Login, since)
	if err != nil {
		return err
	}
	if err := recordTrades(ctx, tx, account.ID, trades); err != nil {
		return err
	}

	now := time.Now().UTC()

	// roll the daily window before evaluating so yesterday's drawdown does
	// not fail today's session
	if c.DayOpenDate == nil || !SameUTCDay(*c.DayOpenDate, now) {
		day := UTCDay(now)
		_, err = tx.Exec(ctx, `
			UPDATE challenges
			SET day_open_balance = $1, day_open_date = $2,
			    updated_at = NOW() AT TIME ZONE 'utc'
			WHERE id = $3
		`, equity, day, c.ID)
		if err != nil {
			return err
		}
		c.DayOpenBalance = equity
		c.DayOpenDate = &day
	}

	tradingDays, err := countTradingDays(ctx, tx, c.ID)
	if err != nil {
		return err
	}
	c.TradingDaysCount = tradingDays

	profit := equity.Sub(c.InitialBalance)
	_, err = tx.Exec(ctx, `
		UPDATE challenges
		SET current_balance = $1,
		    highest_balance = GREATEST(highest_balance, $1),
		    lowest_balance = LEAST(lowest_balance, $1),
		    total_profit = GREATEST($2, 0),
		    total_loss = GREATEST($3, 0),
		    trading_days_count = $4,
		    profit_target_reached = profit_target_reached OR $5,
		    updated_at = NOW() AT TIME ZONE 'utc'
		WHERE id = $6
	`, equity, profit, profit.Neg(), tradingDays,
		ProfitTargetReached(program, c, equity), c.ID)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE mt5_accounts
		SET equity = $1, last_equity = $1, updated_at = NOW() AT TIME ZONE 'utc'
		WHERE id = $2
	`, equity, account.ID)
	if err != nil {
		return err
	}
	c.CurrentBalance = equity

	switch verdict := Evaluate(program, c, equity, now); verdict {
	case VerdictTotalLossBreach:
		err = terminate(ctx, tx, c, models.ChallengeStatusFailed, verdict.String(), false, true)
	case VerdictDailyLossBreach:
		err = terminate(ctx, tx, c, models.ChallengeStatusFailed, verdict.String(), true, false)
	case VerdictExpired:
		err = terminate(ctx, tx, c, models.ChallengeStatusExpired, verdict.String(), false, false)
	case VerdictPhasePassed:
		err = advancePhase(ctx, tx, c, program)
	}
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// recordTrades inserts closed trades idempotently; the unique constraint on
// (mt5_account_id, ticket) swallows replays.
func recordTrades(ctx context.Context, db database.Queryer, accountID int64, trades []mt5.GatewayTrade) error {
	for _, t := range trades {
		_, err := db.Exec(ctx, `
			INSERT INTO trades
				(mt5_account_id, ticket, symbol, direction, volume,
				 open_price, close_price, profit, opened_at, closed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (mt5_account_id, ticket) DO NOTHING
		`, accountID, t.Ticket, t.Symbol, t.Direction, t.Volume,
			t.OpenPrice, t.ClosePrice, t.Profit, t.OpenedAt, t.ClosedAt)
		if err != nil {
			return err
		}
	}
	if len(trades) > 0 {
		logging.Logger.Debug("trades recorded",
			zap.Int64("accountID", accountID),
			zap.Int("count", len(trades)))
	}
	return nil
}

// countTradingDays counts distinct UTC days with at least one closed trade
// across all of the challenge's accounts for the current phase.
func countTradingDays(ctx context.Context, db database.Queryer, challengeID int64) (int, error) {
	var days int
	err := db.QueryRow(ctx, `
		SELECT COUNT(DISTINCT (t.closed_at AT TIME ZONE 'utc')::date)
		FROM trades t
		JOIN mt5_accounts a ON a.id = t.mt5_account_id
		WHERE a.challenge_id = $1
		  AND a.status = $2
		  AND t.closed_at IS NOT NULL
	`, challengeID, models.MT5AccountStatusActive).Scan(&days)
	return days, err
}

// ListSyncableIDs returns ids of challenges the scheduler should enqueue.
func ListSyncableIDs(ctx context.Context) ([]int64, error) {
	rows, err := database.Pool.Query(ctx, `
		SELECT id FROM challenges
		WHERE status IN ($1, $2)
		ORDER BY id
	`, models.ChallengeStatusActive, models.ChallengeStatusFunded)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

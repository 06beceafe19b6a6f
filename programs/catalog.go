package programs

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradege/marketedgepros-sub001/database"
	"github.com/tradege/marketedgepros-sub001/logging"
	"github.com/tradege/marketedgepros-sub001/models"
	"github.com/tradege/marketedgepros-sub001/wallet"
)

var (
	ErrProgramNotFound  = errors.New("program not found")
	ErrProgramInactive  = errors.New("program is not active")
	ErrAddonNotFound    = errors.New("addon not found")
	ErrAddonMismatch    = errors.New("addon does not belong to program")
	ErrProgramImmutable = errors.New("program is referenced by challenges and cannot be edited")
)

const programColumns = `id, tenant_id, name, type, account_size, price, profit_target,
	max_daily_loss, max_total_loss, profit_split, payout_mode, minimum_payout_amount,
	min_trading_days, max_trading_days, mt5_group_phase1, mt5_group_phase2,
	mt5_group_funded, leverage, is_active, created_at, updated_at`

func scanProgram(row pgx.Row) (*models.TradingProgram, error) {
	var p models.TradingProgram
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.Type, &p.AccountSize, &p.Price,
		&p.ProfitTarget, &p.MaxDailyLoss, &p.MaxTotalLoss, &p.ProfitSplit,
		&p.PayoutMode, &p.MinimumPayoutAmount, &p.MinTradingDays, &p.MaxTradingDays,
		&p.MT5GroupPhase1, &p.MT5GroupPhase2, &p.MT5GroupFunded, &p.Leverage,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProgramNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func GetProgram(ctx context.Context, id int64) (*models.TradingProgram, error) {
	row := database.Pool.QueryRow(ctx,
		`SELECT `+programColumns+` FROM trading_programs WHERE id = $1`, id)
	return scanProgram(row)
}

// GetActiveProgram is GetProgram restricted to purchasable programs.
func GetActiveProgram(ctx context.Context, id int64) (*models.TradingProgram, error) {
	p, err := GetProgram(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, ErrProgramInactive
	}
	return p, nil
}

func ListActivePrograms(ctx context.Context) ([]models.TradingProgram, error) {
	rows, err := database.Pool.Query(ctx,
		`SELECT `+programColumns+` FROM trading_programs WHERE is_active = true ORDER BY account_size, type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.TradingProgram
	for rows.Next() {
		var p models.TradingProgram
		err = rows.Scan(&p.ID, &p.TenantID, &p.Name, &p.Type, &p.AccountSize, &p.Price,
			&p.ProfitTarget, &p.MaxDailyLoss, &p.MaxTotalLoss, &p.ProfitSplit,
			&p.PayoutMode, &p.MinimumPayoutAmount, &p.MinTradingDays, &p.MaxTradingDays,
			&p.MT5GroupPhase1, &p.MT5GroupPhase2, &p.MT5GroupFunded, &p.Leverage,
			&p.IsActive, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func GetAddons(ctx context.Context, programID int64, addonIDs []int64) ([]models.ProgramAddon, error) {
	if len(addonIDs) == 0 {
		return nil, nil
	}
	rows, err := database.Pool.Query(ctx, `
		SELECT id, program_id, name, price, is_active, created_at
		FROM program_addons
		WHERE id = ANY($1) AND is_active = true
	`, addonIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var addons []models.ProgramAddon
	for rows.Next() {
		var a models.ProgramAddon
		if err := rows.Scan(&a.ID, &a.ProgramID, &a.Name, &a.Price, &a.IsActive, &a.CreatedAt); err != nil {
			return nil, err
		}
		if a.ProgramID != programID {
			return nil, ErrAddonMismatch
		}
		addons = append(addons, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(addons) != len(addonIDs) {
		return nil, ErrAddonNotFound
	}
	return addons, nil
}

// Quote prices a purchase: program price plus the sum of selected addons.
func Quote(ctx context.Context, programID int64, addonIDs []int64) (decimal.Decimal, *models.TradingProgram, []models.ProgramAddon, error) {
	p, err := GetActiveProgram(ctx, programID)
	if err != nil {
		return decimal.Zero, nil, nil, err
	}
	addons, err := GetAddons(ctx, programID, addonIDs)
	if err != nil {
		return decimal.Zero, nil, nil, err
	}
	total := p.Price
	for _, a := range addons {
		total = total.Add(a.Price)
	}
	return wallet.Round2(total), p, addons, nil
}

// CreateProgram inserts a catalog row. Validation of field combinations is the
// caller's concern; the handler binds and checks the request shape.
func CreateProgram(ctx context.Context, p *models.TradingProgram) error {
	err := database.Pool.QueryRow(ctx, `
		INSERT INTO trading_programs
			(tenant_id, name, type, account_size, price, profit_target, max_daily_loss,
			 max_total_loss, profit_split, payout_mode, minimum_payout_amount,
			 min_trading_days, max_trading_days, mt5_group_phase1, mt5_group_phase2,
			 mt5_group_funded, leverage)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, is_active, created_at, updated_at
	`, p.TenantID, p.Name, p.Type, p.AccountSize, p.Price, p.ProfitTarget,
		p.MaxDailyLoss, p.MaxTotalLoss, p.ProfitSplit, p.PayoutMode,
		p.MinimumPayoutAmount, p.MinTradingDays, p.MaxTradingDays,
		p.MT5GroupPhase1, p.MT5GroupPhase2, p.MT5GroupFunded, p.Leverage).
		Scan(&p.ID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return err
	}
	logging.Logger.Info("program created",
		zap.Int64("programID", p.ID),
		zap.String("name", p.Name),
		zap.String("type", p.Type))
	return nil
}

// ReferencedByChallenges reports whether any challenge points at the program.
// Referenced programs are immutable; edits go through Replace.
func ReferencedByChallenges(ctx context.Context, programID int64) (bool, error) {
	var exists bool
	err := database.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM challenges WHERE program_id = $1)`, programID).Scan(&exists)
	return exists, err
}

// Replace deactivates the old program and inserts the edit as a new row,
// keeping history intact for existing challenges.
func Replace(ctx context.Context, oldID int64, p *models.TradingProgram) error {
	tx, err := database.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE trading_programs
		SET is_active = false, updated_at = NOW() AT TIME ZONE 'utc'
		WHERE id = $1
	`, oldID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProgramNotFound
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO trading_programs
			(tenant_id, name, type, account_size, price, profit_target, max_daily_loss,
			 max_total_loss, profit_split, payout_mode, minimum_payout_amount,
			 min_trading_days, max_trading_days, mt5_group_phase1, mt5_group_phase2,
			 mt5_group_funded, leverage)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, is_active, created_at, updated_at
	`, p.TenantID, p.Name, p.Type, p.AccountSize, p.Price, p.ProfitTarget,
		p.MaxDailyLoss, p.MaxTotalLoss, p.ProfitSplit, p.PayoutMode,
		p.MinimumPayoutAmount, p.MinTradingDays, p.MaxTradingDays,
		p.MT5GroupPhase1, p.MT5GroupPhase2, p.MT5GroupFunded, p.Leverage).
		Scan(&p.ID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logging.Logger.Info("program replaced",
		zap.Int64("oldID", oldID),
		zap.Int64("newID", p.ID))
	return nil
}

// DeactivateProgram hides a program from the catalog without touching history.
func DeactivateProgram(ctx context.Context, id int64) error {
	tag, err := database.Pool.Exec(ctx, `
		UPDATE trading_programs
		SET is_active = false, updated_at = NOW() AT TIME ZONE 'utc'
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProgramNotFound
	}
	return nil
}

// CreateAddon attaches a purchasable addon to a program.
func CreateAddon(ctx context.Context, a *models.ProgramAddon) error {
	return database.Pool.QueryRow(ctx, `
		INSERT INTO program_addons (program_id, name, price)
		VALUES ($1, $2, $3)
		RETURNING id, is_active, created_at
	`, a.ProgramID, a.Name, a.Price).Scan(&a.ID, &a.IsActive, &a.CreatedAt)
}

// ListAddons returns active addons for a program.
func ListAddons(ctx context.Context, programID int64) ([]models.ProgramAddon, error) {
	rows, err := database.Pool.Query(ctx, `
		SELECT id, program_id, name, price, is_active, created_at
		FROM program_addons
		WHERE program_id = $1 AND is_active = true
		ORDER BY id
	`, programID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var addons []models.ProgramAddon
	for rows.Next() {
		var a models.ProgramAddon
		if err := rows.Scan(&a.ID, &a.ProgramID, &a.Name, &a.Price, &a.IsActive, &a.CreatedAt); err != nil {
			return nil, err
		}
		addons = append(addons, a)
	}
	return addons, rows.Err()
}

package database

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/tradege/marketedgepros-sub001/config"
)

var Pool *pgxpool.Pool

// Queryer is satisfied by both *pgxpool.Pool and pgx.Tx, so query helpers can
// run standalone or join a caller's transaction.
type Queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func InitDB(cfg *config.Config) error {
	var err error
	Pool, err = pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := Pool.Ping(context.Background()); err != nil {
		return fmt.Errorf("unable to ping database: %w", err)
	}

	log.Println("✅ PostgreSQL connection established")

	if err := createUsersTables(); err != nil {
		return fmt.Errorf("failed to create users tables: %w", err)
	}
	if err := createProgramTables(); err != nil {
		return fmt.Errorf("failed to create program tables: %w", err)
	}
	if err := createPaymentTables(); err != nil {
		return fmt.Errorf("failed to create payment tables: %w", err)
	}
	if err := createChallengeTables(); err != nil {
		return fmt.Errorf("failed to create challenge tables: %w", err)
	}
	if err := createWalletTables(); err != nil {
		return fmt.Errorf("failed to create wallet tables: %w", err)
	}
	if err := createCommissionTables(); err != nil {
		return fmt.Errorf("failed to create commission tables: %w", err)
	}
	if err := createWithdrawalTables(); err != nil {
		return fmt.Errorf("failed to create withdrawal tables: %w", err)
	}
	if err := createScalingTables(); err != nil {
		return fmt.Errorf("failed to create scaling tables: %w", err)
	}
	if err := createSecurityTables(); err != nil {
		return fmt.Errorf("failed to create security tables: %w", err)
	}
	if err := seedRootUser(); err != nil {
		return err
	}
	if err := seedScalingTiers(); err != nil {
		return err
	}
	return nil
}

func CloseDB() {
	if Pool != nil {
		Pool.Close()
		log.Println("🛑 PostgreSQL connection closed")
	}
}

func createUsersTables() error {
	_, err := Pool.Exec(context.Background(), `CREATE EXTENSION IF NOT EXISTS "pgcrypto";`)
	if err != nil {
		return err
	}

	_, err = Pool.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			email VARCHAR(255) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			name VARCHAR(100),
			role VARCHAR(20) NOT NULL DEFAULT 'trader',
			parent_id BIGINT REFERENCES users(id),
			tree_path VARCHAR(1024) NOT NULL DEFAULT '',
			level INTEGER NOT NULL DEFAULT 0,
			referral_code VARCHAR(8) UNIQUE,
			commission_rate DECIMAL(7,4),
			token_version INTEGER NOT NULL DEFAULT 1,
			email_verified BOOLEAN NOT NULL DEFAULT false,
			kyc_status VARCHAR(20) NOT NULL DEFAULT 'none',
			is_active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMP NOT NULL DEFAULT (NOW() AT TIME ZONE 'utc'),
			updated_at TIMESTAMP NOT NULL DEFAULT (NOW() AT TIME ZONE 'utc')
		);
	`)
	if err != nil {
		return err
	}

	// varchar_pattern_ops so that tree_path LIKE 'prefix/%' uses the b-tree
	_, err = Pool.Exec(context.Background(), `
		CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
		CREATE INDEX IF NOT EXISTS idx_users_parent_id ON users(parent_id);
		CREATE INDEX IF NOT EXISTS idx_users_tree_path ON users(tree_path varchar_pattern_ops);
		CREATE INDEX IF NOT EXISTS idx_users_referral_code ON users(referral_code);
	`)
	if err != nil {
		return err
	}

	_, err = Pool.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS token_revocations (
			jti VARCHAR(64) PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			token_type VARCHAR(10) NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			revoked_at TIMESTAMP NOT NULL DEFAULT (NOW() AT TIME ZONE 'utc')
		);
		CREATE INDEX IF NOT EXISTS idx_token_revocations_expires ON token_revocations(expires_at);
	`)
	if err != nil {
		return err
	}

	log.Println("✅ Users tables ready")
	return nil
}

func createProgramTables() error {
	_, err := Pool.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS trading_programs (
			id BIGSERIAL PRIMARY KEY,
			tenant_id BIGINT NOT NULL DEFAULT 1,
			name VARCHAR(100) NOT NULL,
			type VARCHAR(20) NOT NULL,
			account_size DECIMAL(15,2) NOT NULL,
			price DECIMAL(15,2) NOT NULL,
			profit_target DECIMAL(15,2) NOT NULL,
			max_daily_loss DECIMAL(15,2) NOT NULL,
			max_total_loss DECIMAL(15,2) NOT NULL,
			profit_split DECIMAL(7,4) NOT NULL,
			payout_mode VARCHAR(20) NOT NULL DEFAULT 'on_demand',
			minimum_payout_amount DECIMAL(15,2) NOT NULL DEFAULT 50.00,
			min_trading_days INTEGER NOT NULL DEFAULT 0,
			max_trading_days INTEGER NOT NULL DEFAULT 0,
			mt5_group_phase1 VARCHAR(100) NOT NULL DEFAULT '',
			mt5_group_phase2 VARCHAR(100) NOT NULL DEFAULT '',
			mt5_group_funded VARCHAR(100) NOT NULL DEFAULT '',
			leverage INTEGER NOT NULL DEFAULT 100,
			is_active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMP NOT NULL DEFAULT (NOW() AT TIME ZONE 'utc'),
			updated_at TIMESTAMP NOT NULL DEFAULT (NOW() AT TIME ZONE 'utc')
		);
		CREATE INDEX IF NOT EXISTS idx_programs_tenant_active ON trading_programs(tenant_id, is_active);
	`)
	if err != nil {
		return err
	}

	_, err = Pool.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS program_addons (
			id BIGSERIAL PRIMARY KEY,
			program_id BIGINT NOT NULL REFERENCES trading_programs(id) ON DELETE CASCADE,
			name VARCHAR(100) NOT NULL,
			price DECIMAL(15,2) NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMP NOT NULL DEFAULT (NOW() AT TIME ZONE 'utc')
		);
		CREATE INDEX IF NOT EXISTS idx_program_addons_program ON program_addons(program_id);
	`)
	if err != nil {
		return err
	}

	log.Println("✅ Program tables ready")
	return nil
}

func createPaymentTables() error {
	_, err := Pool.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS payments (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			amount DECIMAL(15,2) NOT NULL,
			currency VARCHAR(3) NOT NULL DEFAULT 'USD',
			method VARCHAR(10) NOT NULL,
			external_txn_id VARCHAR(100) UNIQUE,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			approval_status VARCHAR(20) NOT NULL DEFAULT 'pending',
			approved_by BIGINT REFERENCES users(id),
			rejection_reason TEXT,
			purpose VARCHAR(40) NOT NULL DEFAULT 'challenge_purchase',
			reference_id BIGINT,
			created_at TIMESTAMP NOT NULL DEFAULT (NOW() AT TIME ZONE 'utc'),
			completed_at TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT (NOW() AT TIME ZONE 'utc')
		);
		CREATE INDEX IF NOT EXISTS idx_payments_user_id ON payments(user_id);
		CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status, approval_status);
	`)
	if err != nil {
		return err
	}

	log.Println("✅ Payment tables ready")
	return nil
}

func createChallengeTables() error {
	_, err := Pool.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS challenges (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			program_id BIGINT NOT NULL REFERENCES trading_programs(id),
			payment_id BIGINT REFERENCES payments(id),
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			current_phase INTEGER NOT NULL DEFAULT 1,
			total_phases INTEGER NOT NULL DEFAULT 1,
			initial_balance DECIMAL(15,2) NOT NULL DEFAULT 0,
			current_balance DECIMAL(15,2) NOT NULL DEFAULT 0,
			highest_balance DECIMAL(15,2) NOT NULL DEFAULT 0,
			lowest_balance DECIMAL(15,2) NOT NULL DEFAULT 0,
			day_open_balance DECIMAL(15,2) NOT NULL DEFAULT 0,
			day_open_date DATE,
			total_profit DECIMAL(15,2) NOT NULL DEFAULT 0,
			total_loss DECIMAL(15,2) NOT NULL DEFAULT 0,
			trading_days_count INTEGER NOT NULL DEFAULT 0,
			profit_target_reached BOOLEAN NOT NULL DEFAULT false,
			daily_loss_violated BOOLEAN NOT NULL DEFAULT false,
			total_loss_violated BOOLEAN NOT NULL DEFAULT false,
			addons_snapshot JSONB NOT NULL DEFAULT '[]',
			provision_attempts INTEGER NOT NULL DEFAULT 0,
			started_at TIMESTAMP,
			completed_at TIMESTAMP,
			failed_at TIMESTAMP,
			expires_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT (NOW() AT TIME ZONE 'utc'),
			updated_at TIMESTAMP NOT NULL DEFAULT (NOW() AT TIME ZONE 'utc')
		);
		CREATE INDEX IF NOT EXISTS idx_challenges_user_id ON challenges(user_id);
		CREATE INDEX IF NOT EXISTS idx_challenges_status ON challenges(status);
	`)
	if err != nil {
		return err
	}

	_, err = Pool.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS mt5_accounts (
			id BIGSERIAL PRIMARY KEY,
			challenge_id BIGINT NOT NULL REFERENCES challenges(id) ON DELETE CASCADE,
			mt5_login BIGINT UNIQUE NOT NULL,
			mt5_group VARCHAR(100) NOT NULL,
			server VARCHAR(100) NOT NULL DEFAULT '',
			password_enc BYTEA NOT NULL,
			balance DECIMAL(15,2) NOT NULL DEFAULT 0,
			equity DECIMAL(15,2) NOT NULL DEFAULT 0,
			margin DECIMAL(15,2) NOT NULL DEFAULT 0,
			last_equity DECIMAL(15,2) NOT NULL DEFAULT 0,
			phase INTEGER NOT NULL DEFAULT 1,
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			created_at TIMESTAMP NOT NULL DEFAULT (NOW() AT TIME ZONE 'utc'),
			updated_at TIMESTAMP NOT NULL DEFAULT (NOW() AT TIME ZONE 'utc')
		);
		CREATE INDEX IF NOT EXISTS idx_mt5_accounts_challenge ON mt5_accounts(challenge_id);
	`)
	if err != nil {
		return err
	}

	_, err = Pool.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS trades (
			id BIGSERIAL PRIMARY KEY,
			mt5_account_id BIGINT NOT NULL REFERENCES mt5_accounts(id) ON DELETE CASCADE,
			ticket BIGINT NOT NULL,
			symbol VARCHAR(20) NOT NULL,
			direction VARCHAR(4) NOT NULL,
			volume DECIMAL(10,2) NOT NULL,
			open_price DECIMAL(15,5) NOT NULL,
			close_price DECIMAL(15,5),
			profit DECIMAL(15,2) NOT NULL DEFAULT 0,
			opened_at TIMESTAMP NOT NULL,
			closed_at TIMESTAMP,
			UNIQUE (mt5_account_id, ticket)
		);
		CREATE INDEX IF NOT EXISTS idx_trades_account_closed ON trades(mt5_account_id, closed_at);
	`)
	if err != nil {
		return err
	}

	log.Println("✅ Challenge tables ready")
	return nil
}

func createWalletTables() error {
	_, err := Pool.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS wallets (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT UNIQUE NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			main_balance DECIMAL(15,2) NOT NULL DEFAULT 0 CHECK (main_balance >= 0),
			commission_balance DECIMAL(15,2) NOT NULL DEFAULT 0 CHECK (commission_balance >= 0),
			bonus_balance DECIMAL(15,2) NOT NULL DEFAULT 0 CHECK (bonus_balance >= 0),
			last_transaction_at TIMESTAMP,
			is_active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMP NOT NULL DEFAULT (NOW() AT TIME ZONE 'utc'),
			updated_at TIMESTAMP NOT NULL DEFAULT (NOW() AT TIME ZONE 'utc')
		);
	`)
	if err != nil {
		return err
	}

	_, err = Pool.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS wallet_transactions (
			id BIGSERIAL PRIMARY KEY,
			wallet_id BIGINT NOT NULL REFERENCES wallets(id) ON DELETE CASCADE,
			type VARCHAR(20) NOT NULL,
			amount DECIMAL(15,2) NOT NULL CHECK (amount > 0),
			balance_type VARCHAR(20) NOT NULL,
			balance_before DECIMAL(15,2) NOT NULL,
			balance_after DECIMAL(15,2) NOT NULL,
			reference VARCHAR(100) NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			created_by BIGINT REFERENCES users(id),
			created_at TIMESTAMP NOT NULL DEFAULT (NOW() AT TIME ZONE 'utc')
		);
		CREATE INDEX IF NOT EXISTS idx_wallet_txns_wallet ON wallet_transactions(wallet_id, balance_type, id);
		CREATE INDEX IF NOT EXISTS idx_wallet_txns_reference ON wallet_transactions(reference);
	`)
	if err != nil {
		return err
	}

	log.Println("✅ Wallet tables ready")
	return nil
}

func createCommissionTables() error {
	_, err := Pool.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS referrals (
			id BIGSERIAL PRIMARY KEY,
			agent_id BIGINT NOT NULL REFERENCES users(id),
			referred_user_id BIGINT UNIQUE NOT NULL REFERENCES users(id),
			code VARCHAR(8) NOT NULL,
			activated_at TIMESTAMP NOT NULL DEFAULT (NOW() AT TIME ZONE 'utc')
		);
		CREATE INDEX IF NOT EXISTS idx_referrals_agent ON referrals(agent_id);
	`)
	if err != nil {
		return err
	}

	_, err = Pool.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS commissions (
			id BIGSERIAL PRIMARY KEY,
			agent_id BIGINT NOT NULL REFERENCES users(id),
			challenge_id BIGINT NOT NULL REFERENCES challenges(id),
			referral_id BIGINT REFERENCES referrals(id),
			sale_amount DECIMAL(15,2) NOT NULL,
			rate DECIMAL(7,4) NOT NULL,
			commission_amount DECIMAL(15,2) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			clawback_owed BOOLEAN NOT NULL DEFAULT false,
			paid_transaction_id BIGINT REFERENCES wallet_transactions(id),
			created_at TIMESTAMP NOT NULL DEFAULT (NOW() AT TIME ZONE 'utc'),
			approved_at TIMESTAMP,
			paid_at TIMESTAMP,
			UNIQUE (challenge_id, agent_id)
		);
		CREATE INDEX IF NOT EXISTS idx_commissions_agent ON commissions(agent_id, status);
	`)
	if err != nil {
		return err
	}

	log.Println("✅ Commission tables ready")
	return nil
}

func createWithdrawalTables() error {
	_, err := Pool.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS withdrawals (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			amount DECIMAL(15,2) NOT NULL CHECK (amount > 0),
			method VARCHAR(20) NOT NULL,
			method_details JSONB NOT NULL DEFAULT '{}',
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			approved_by BIGINT REFERENCES users(id),
			rejection_reason TEXT,
			external_txn_id VARCHAR(100),
			notes TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT (NOW() AT TIME ZONE 'utc'),
			approved_at TIMESTAMP,
			completed_at TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT (NOW() AT TIME ZONE 'utc')
		);
		CREATE INDEX IF NOT EXISTS idx_withdrawals_user_status ON withdrawals(user_id, status);
	`)
	if err != nil {
		return err
	}

	_, err = Pool.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS payout_requests (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			challenge_id BIGINT NOT NULL REFERENCES challenges(id),
			requested_amount DECIMAL(15,2) NOT NULL CHECK (requested_amount > 0),
			trader_share DECIMAL(15,2) NOT NULL,
			platform_share DECIMAL(15,2) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			approved_by BIGINT REFERENCES users(id),
			rejection_reason TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT (NOW() AT TIME ZONE 'utc'),
			completed_at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_payout_requests_user ON payout_requests(user_id, status);
	`)
	if err != nil {
		return err
	}

	log.Println("✅ Withdrawal tables ready")
	return nil
}

func createScalingTables() error {
	_, err := Pool.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS scaling_tiers (
			id BIGSERIAL PRIMARY KEY,
			tenant_id BIGINT NOT NULL DEFAULT 1,
			tier_number INTEGER NOT NULL,
			account_size DECIMAL(15,2) NOT NULL,
			profit_target DECIMAL(15,2) NOT NULL,
			min_trading_days INTEGER NOT NULL DEFAULT 0,
			min_trades INTEGER NOT NULL DEFAULT 0,
			profit_split_override DECIMAL(7,4),
			UNIQUE (tenant_id, tier_number)
		);
	`)
	if err != nil {
		return err
	}

	_, err = Pool.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS account_scalings (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT UNIQUE NOT NULL REFERENCES users(id),
			current_tier INTEGER NOT NULL DEFAULT 1,
			current_account_size DECIMAL(15,2) NOT NULL,
			next_tier INTEGER,
			next_account_size DECIMAL(15,2),
			total_profit DECIMAL(15,2) NOT NULL DEFAULT 0,
			target_profit DECIMAL(15,2) NOT NULL,
			progress_percentage DECIMAL(7,4) NOT NULL DEFAULT 0,
			times_scaled INTEGER NOT NULL DEFAULT 0,
			is_eligible_for_scaling BOOLEAN NOT NULL DEFAULT false,
			eligibility_checked_at TIMESTAMP,
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			last_profit_reference VARCHAR(100) NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT (NOW() AT TIME ZONE 'utc'),
			updated_at TIMESTAMP NOT NULL DEFAULT (NOW() AT TIME ZONE 'utc')
		);
	`)
	if err != nil {
		return err
	}

	_, err = Pool.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS scaling_profit_refs (
			scaling_id BIGINT NOT NULL REFERENCES account_scalings(id) ON DELETE CASCADE,
			reference VARCHAR(100) NOT NULL,
			PRIMARY KEY (scaling_id, reference)
		);
	`)
	if err != nil {
		return err
	}

	log.Println("✅ Scaling tables ready")
	return nil
}

func createSecurityTables() error {
	_, err := Pool.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS login_history (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			ip_address VARCHAR(45),
			user_agent TEXT,
			login_time TIMESTAMP NOT NULL DEFAULT (NOW() AT TIME ZONE 'utc')
		);
		CREATE INDEX IF NOT EXISTS idx_login_history_user ON login_history(user_id, login_time DESC);
	`)
	if err != nil {
		return err
	}

	_, err = Pool.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS twofa (
			user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			secret VARCHAR(64) NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMP NOT NULL DEFAULT (NOW() AT TIME ZONE 'utc')
		);
	`)
	if err != nil {
		return err
	}

	_, err = Pool.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS kyc_documents (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			doc_type VARCHAR(30) NOT NULL,
			object_key VARCHAR(255) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			reviewed_by BIGINT REFERENCES users(id),
			created_at TIMESTAMP NOT NULL DEFAULT (NOW() AT TIME ZONE 'utc')
		);
		CREATE INDEX IF NOT EXISTS idx_kyc_documents_user ON kyc_documents(user_id);
	`)
	if err != nil {
		return err
	}

	log.Println("✅ Security tables ready")
	return nil
}

// seedRootUser creates the root super_admin when the users table is empty.
// The root is the only user with parent_id NULL and sees all scoped data.
func seedRootUser() error {
	var count int
	err := Pool.QueryRow(context.Background(), `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("ChangeMe!123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	tx, err := Pool.Begin(context.Background())
	if err != nil {
		return err
	}
	defer tx.Rollback(context.Background())

	var rootID int64
	err = tx.QueryRow(context.Background(), `
		INSERT INTO users (email, password_hash, name, role, email_verified)
		VALUES ('root@marketedgepros.com', $1, 'Root', 'super_admin', true)
		RETURNING id
	`, string(hash)).Scan(&rootID)
	if err != nil {
		return err
	}

	// tree_path needs the generated id, so it is a second write
	_, err = tx.Exec(context.Background(), `
		UPDATE users SET tree_path = $1, level = 0 WHERE id = $2
	`, fmt.Sprintf("%d", rootID), rootID)
	if err != nil {
		return err
	}

	_, err = tx.Exec(context.Background(), `INSERT INTO wallets (user_id) VALUES ($1)`, rootID)
	if err != nil {
		return err
	}

	if err := tx.Commit(context.Background()); err != nil {
		return err
	}

	log.Println("✅ Root super_admin seeded: root@marketedgepros.com / ChangeMe!123")
	return nil
}

func seedScalingTiers() error {
	var count int
	err := Pool.QueryRow(context.Background(), `SELECT COUNT(*) FROM scaling_tiers`).Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	_, err = Pool.Exec(context.Background(), `
		INSERT INTO scaling_tiers (tenant_id, tier_number, account_size, profit_target, min_trading_days, min_trades) VALUES
		(1, 1, 50000, 5000, 10, 20),
		(1, 2, 100000, 10000, 10, 20),
		(1, 3, 200000, 20000, 10, 20),
		(1, 4, 400000, 40000, 10, 20);
	`)
	if err != nil {
		return err
	}

	log.Println("✅ Default scaling tiers seeded")
	return nil
}

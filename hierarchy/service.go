package hierarchy

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/tradege/marketedgepros-sub001/auth"
	"github.com/tradege/marketedgepros-sub001/database"
	"github.com/tradege/marketedgepros-sub001/logging"
	"github.com/tradege/marketedgepros-sub001/models"
)

var (
	ErrEmailTaken     = errors.New("email already registered")
	ErrRoleNotAllowed = errors.New("creator role may not create target role")
	ErrUserNotFound   = errors.New("user not found")
	ErrHasDescendants = errors.New("user has descendants and cannot be deleted")
	ErrBadReferral    = errors.New("referral code not found")
)

// roleMatrix maps creator role to the roles it may create. Same-role creation
// is reserved for the root super_admin, handled separately in CanCreate.
var roleMatrix = map[string][]string{
	models.RoleSuperAdmin: {models.RoleAdmin, models.RoleAffiliate, models.RoleTrader},
	models.RoleAdmin:      {models.RoleAffiliate, models.RoleTrader},
	models.RoleAffiliate:  {},
	models.RoleTrader:     {},
}

// CanCreate implements the role-creation matrix.
func CanCreate(creator *models.User, targetRole string) bool {
	if creator.IsRoot() {
		switch targetRole {
		case models.RoleSuperAdmin, models.RoleAdmin, models.RoleAffiliate, models.RoleTrader:
			return true
		}
		return false
	}
	for _, r := range roleMatrix[creator.Role] {
		if r == targetRole {
			return true
		}
	}
	return false
}

// referralAlphabet omits lookalike characters (0/O, 1/I).
const referralAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func generateReferralCode() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = referralAlphabet[int(b[i])%len(referralAlphabet)]
	}
	return string(b), nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.Name, &u.Role, &u.ParentID,
		&u.TreePath, &u.Level, &u.ReferralCode, &u.CommissionRate, &u.TokenVersion,
		&u.EmailVerified, &u.KYCStatus, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userColumns = `id, email, password_hash, name, role, parent_id, tree_path, level,
	referral_code, commission_rate, token_version, email_verified, kyc_status,
	is_active, created_at, updated_at`

func GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	row := database.Pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := database.Pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email))
	return scanUser(row)
}

func GetUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	row := database.Pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE referral_code = $1 AND is_active = true`,
		strings.ToUpper(code))
	return scanUser(row)
}

// GetRootUser returns the unique user with parent_id NULL.
func GetRootUser(ctx context.Context) (*models.User, error) {
	row := database.Pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE parent_id IS NULL AND role = $1`,
		models.RoleSuperAdmin)
	return scanUser(row)
}

// createUnder inserts a user below parent inside tx. The tree_path needs the
// generated id, so it is written in a second statement.
func createUnder(ctx context.Context, tx pgx.Tx, parent *models.User, email, passwordHash, name, role string, referralCode *string, commissionRate *string) (*models.User, error) {
	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists); err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailTaken
	}

	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, name, role, parent_id, referral_code, commission_rate)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, email, passwordHash, name, role, parent.ID, referralCode, commissionRate).Scan(&id)
	if err != nil {
		return nil, err
	}

	path := ChildPath(parent.TreePath, id)
	_, err = tx.Exec(ctx,
		`UPDATE users SET tree_path = $1, level = $2 WHERE id = $3`,
		path, PathLevel(path), id)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `INSERT INTO wallets (user_id) VALUES ($1)`, id)
	if err != nil {
		return nil, err
	}

	return scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// Register handles self-service trader signup. With a valid referral code the
// trader is placed under the referring affiliate and a Referral row is
// recorded; otherwise under the root super_admin.
func Register(ctx context.Context, email, password, name, referralCode string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := auth.ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	var parent *models.User
	var referrer *models.User
	if referralCode != "" {
		referrer, err = GetUserByReferralCode(ctx, referralCode)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				return nil, ErrBadReferral
			}
			return nil, err
		}
		parent = referrer
	} else {
		parent, err = GetRootUser(ctx)
		if err != nil {
			return nil, err
		}
	}

	tx, err := database.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	user, err := createUnder(ctx, tx, parent, email, hash, name, models.RoleTrader, nil, nil)
	if err != nil {
		return nil, err
	}

	if referrer != nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO referrals (agent_id, referred_user_id, code)
			VALUES ($1, $2, $3)
		`, referrer.ID, user.ID, strings.ToUpper(referralCode))
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	logging.Logger.Info("user registered",
		zap.Int64("userID", user.ID),
		zap.String("treePath", user.TreePath),
		zap.Bool("referred", referrer != nil))
	return user, nil
}

// CreateChild creates a user below creator, subject to the role matrix.
// Affiliates and above get a referral code.
func CreateChild(ctx context.Context, creator *models.User, email, password, name, role string, commissionRate *string) (*models.User, error) {
	if !CanCreate(creator, role) {
		return nil, ErrRoleNotAllowed
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if err := auth.ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	var referralCode *string
	if role != models.RoleTrader {
		code, err := generateReferralCode()
		if err != nil {
			return nil, err
		}
		referralCode = &code
	}

	tx, err := database.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	user, err := createUnder(ctx, tx, creator, email, hash, name, role, referralCode, commissionRate)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	logging.Logger.Info("child user created",
		zap.Int64("creatorID", creator.ID),
		zap.Int64("userID", user.ID),
		zap.String("role", role))
	return user, nil
}

// Deactivate soft-disables the user and invalidates all issued tokens.
// A user with descendants keeps their place in the tree: deactivating them
// would orphan every subtree scope below, so the children must be moved or
// deactivated first.
func Deactivate(ctx context.Context, userID int64) error {
	user, err := GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	children, err := HasDescendants(ctx, user)
	if err != nil {
		return err
	}
	if children {
		return ErrHasDescendants
	}

	tag, err := database.Pool.Exec(ctx, `
		UPDATE users
		SET is_active = false,
		    token_version = token_version + 1,
		    updated_at = NOW() AT TIME ZONE 'utc'
		WHERE id = $1
	`, user.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	logging.Logger.Info("user deactivated", zap.Int64("userID", userID))
	return nil
}

// HasDescendants checks for any user strictly below the given one.
func HasDescendants(ctx context.Context, user *models.User) (bool, error) {
	var exists bool
	err := database.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE tree_path LIKE $1 ESCAPE '\')`,
		EscapeLike(user.TreePath)+"/%").Scan(&exists)
	return exists, err
}

// ListUsers returns users visible to the scope, newest first.
func ListUsers(ctx context.Context, scope *Scope, limit, offset int) ([]models.User, error) {
	cond, args := scope.Filter("id", 1)
	query := fmt.Sprintf(`
		SELECT `+userColumns+` FROM users
		WHERE %s
		ORDER BY created_at DESC
		LIMIT %d OFFSET %d
	`, cond, limit, offset)

	rows, err := database.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		err = rows.Scan(&u.ID, &u.Email, &u.Password, &u.Name, &u.Role, &u.ParentID,
			&u.TreePath, &u.Level, &u.ReferralCode, &u.CommissionRate, &u.TokenVersion,
			&u.EmailVerified, &u.KYCStatus, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ParentChain returns the ancestors of user from closest to root, used by the
// commission engine to find the earning affiliate.
func ParentChain(ctx context.Context, user *models.User) ([]models.User, error) {
	parts := strings.Split(user.TreePath, "/")
	if len(parts) <= 1 {
		return nil, nil
	}
	// everything on the path except the user itself, closest ancestor first
	rows, err := database.Pool.Query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE id = ANY(string_to_array($1, '/')::bigint[])
		  AND id <> $2
		ORDER BY level DESC
	`, user.TreePath, user.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chain []models.User
	for rows.Next() {
		var u models.User
		err = rows.Scan(&u.ID, &u.Email, &u.Password, &u.Name, &u.Role, &u.ParentID,
			&u.TreePath, &u.Level, &u.ReferralCode, &u.CommissionRate, &u.TokenVersion,
			&u.EmailVerified, &u.KYCStatus, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
		if err != nil {
			return nil, err
		}
		chain = append(chain, u)
	}
	return chain, rows.Err()
}

package models

import "time"

// Roles ordered from most to least privileged. "admin" is canonical; some
// older material calls the same role "master".
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleAffiliate  = "affiliate"
	RoleTrader     = "trader"
)

type User struct {
	ID             int64      `json:"id" db:"id"`
	Email          string     `json:"email" db:"email"`
	Password       string     `json:"-" db:"password_hash"`
	Name           string     `json:"name" db:"name"`
	Role           string     `json:"role" db:"role"`
	ParentID       *int64     `json:"parent_id" db:"parent_id"`
	TreePath       string     `json:"tree_path" db:"tree_path"`
	Level          int        `json:"level" db:"level"`
	ReferralCode   *string    `json:"referral_code,omitempty" db:"referral_code"`
	CommissionRate *string    `json:"commission_rate,omitempty" db:"commission_rate"`
	TokenVersion   int        `json:"-" db:"token_version"`
	EmailVerified  bool       `json:"email_verified" db:"email_verified"`
	KYCStatus      string     `json:"kyc_status" db:"kyc_status"`
	IsActive       bool       `json:"is_active" db:"is_active"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// IsRoot reports whether the user is the root super_admin, the only user
// allowed to see all scoped data and to create other super_admins.
func (u *User) IsRoot() bool {
	return u.Role == RoleSuperAdmin && u.ParentID == nil
}

type Referral struct {
	ID             int64     `json:"id" db:"id"`
	AgentID        int64     `json:"agent_id" db:"agent_id"`
	ReferredUserID int64     `json:"referred_user_id" db:"referred_user_id"`
	Code           string    `json:"code" db:"code"`
	ActivatedAt    time.Time `json:"activated_at" db:"activated_at"`
}

package hierarchy

import (
	"context"
	"fmt"

	"github.com/tradege/marketedgepros-sub001/models"
)

// Scope is the request-bound snapshot that bounds every read of a scoped
// entity to the caller's subtree. It is captured once at authentication time
// so query building never re-hits the users table for the caller.
type Scope struct {
	UserID   int64
	Role     string
	TreePath string
	ParentID *int64
}

// ScopeFromUser snapshots the fields the filter needs.
func ScopeFromUser(u *models.User) *Scope {
	return &Scope{
		UserID:   u.ID,
		Role:     u.Role,
		TreePath: u.TreePath,
		ParentID: u.ParentID,
	}
}

// IsRoot mirrors models.User.IsRoot: the root super_admin bypasses scoping.
func (s *Scope) IsRoot() bool {
	return s != nil && s.Role == models.RoleSuperAdmin && s.ParentID == nil
}

// Bypass reports whether filtering should be skipped entirely: no scope
// (background jobs, migrations) or the root super_admin.
func (s *Scope) Bypass() bool {
	return s == nil || s.IsRoot()
}

// Filter returns a SQL predicate restricting ownerColumn to users in the
// caller's subtree, with placeholders starting at argIndex, and the matching
// args. Callers append the args to their query parameters.
//
//	cond, args := scope.Filter("c.user_id", 3)
//	// cond == "c.user_id IN (SELECT id FROM users WHERE tree_path = $3 OR tree_path LIKE $4 ESCAPE '\')"
//
// A nil or root scope yields "TRUE". A scope with no usable tree path is
// confined to rows the caller owns directly.
func (s *Scope) Filter(ownerColumn string, argIndex int) (string, []interface{}) {
	if s.Bypass() {
		return "TRUE", nil
	}

	if !ValidPath(s.TreePath) {
		// degraded caller row: fall back to self-only visibility
		return fmt.Sprintf("%s = $%d", ownerColumn, argIndex), []interface{}{s.UserID}
	}

	cond := fmt.Sprintf(
		`%s IN (SELECT id FROM users WHERE tree_path = $%d OR tree_path LIKE $%d ESCAPE '\')`,
		ownerColumn, argIndex, argIndex+1)
	return cond, []interface{}{s.TreePath, EscapeLike(s.TreePath) + "/%"}
}

// scopeKey is the context key for the request scope.
type scopeKey struct{}

// NewContext binds a scope to the request context.
func NewContext(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// FromContext returns the request scope, or nil when none is bound
// (background jobs run unscoped).
func FromContext(ctx context.Context) *Scope {
	s, _ := ctx.Value(scopeKey{}).(*Scope)
	return s
}

// WithoutScope returns a context with no scope bound; the explicit opt-out
// for privileged call sites such as admin reports.
func WithoutScope(ctx context.Context) context.Context {
	return context.WithValue(ctx, scopeKey{}, (*Scope)(nil))
}

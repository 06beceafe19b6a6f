package hierarchy

import (
	"context"
	"strings"
	"testing"

	"github.com/tradege/marketedgepros-sub001/models"
)

func TestScopeFilterRoot(t *testing.T) {
	root := &Scope{UserID: 1, Role: models.RoleSuperAdmin, TreePath: "1", ParentID: nil}
	cond, args := root.Filter("user_id", 1)
	if cond != "TRUE" || args != nil {
		t.Errorf("root scope should bypass filtering, got %q %v", cond, args)
	}

	var nilScope *Scope
	cond, args = nilScope.Filter("user_id", 1)
	if cond != "TRUE" || args != nil {
		t.Errorf("nil scope should bypass filtering, got %q %v", cond, args)
	}
}

func TestScopeFilterNonRootSuperAdmin(t *testing.T) {
	parent := int64(1)
	s := &Scope{UserID: 2, Role: models.RoleSuperAdmin, TreePath: "1/2", ParentID: &parent}
	cond, args := s.Filter("user_id", 1)
	if cond == "TRUE" {
		t.Fatal("non-root super_admin must not bypass scoping")
	}
	if len(args) != 2 {
		t.Fatalf("want 2 args, got %d", len(args))
	}
	if args[0] != "1/2" || args[1] != "1/2/%" {
		t.Errorf("unexpected subtree args: %v", args)
	}
}

func TestScopeFilterPlaceholderNumbering(t *testing.T) {
	parent := int64(1)
	s := &Scope{UserID: 5, Role: models.RoleAdmin, TreePath: "1/5", ParentID: &parent}
	cond, _ := s.Filter("c.user_id", 3)
	if !strings.Contains(cond, "$3") || !strings.Contains(cond, "$4") {
		t.Errorf("placeholders should start at argIndex: %q", cond)
	}
	if !strings.HasPrefix(cond, "c.user_id IN") {
		t.Errorf("filter should constrain the owner column: %q", cond)
	}
}

func TestScopeFilterDegradedPath(t *testing.T) {
	parent := int64(1)
	s := &Scope{UserID: 9, Role: models.RoleTrader, TreePath: "", ParentID: &parent}
	cond, args := s.Filter("user_id", 1)
	if cond != "user_id = $1" {
		t.Errorf("missing tree path should fall back to self-only, got %q", cond)
	}
	if len(args) != 1 || args[0] != int64(9) {
		t.Errorf("self-only filter args = %v", args)
	}
}

func TestScopeContextRoundTrip(t *testing.T) {
	parent := int64(1)
	s := &Scope{UserID: 7, Role: models.RoleAffiliate, TreePath: "1/7", ParentID: &parent}

	ctx := NewContext(context.Background(), s)
	if got := FromContext(ctx); got != s {
		t.Fatal("scope lost in context round trip")
	}
	if got := FromContext(context.Background()); got != nil {
		t.Fatal("bare context should carry no scope")
	}
	if got := FromContext(WithoutScope(ctx)); got != nil {
		t.Fatal("WithoutScope should clear the bound scope")
	}
}

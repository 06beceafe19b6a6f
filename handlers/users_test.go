package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tradege/marketedgepros-sub001/hierarchy"
	"github.com/tradege/marketedgepros-sub001/middleware"
	"github.com/tradege/marketedgepros-sub001/models"
)

func scopedContext(t *testing.T, scope *hierarchy.Scope, query string) *gin.Context {
	t.Helper()
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/users"+query, nil)
	c.Set(middleware.CtxScopeKey, scope)
	return c
}

// Subtree scoping is the default even for super admins; the platform-wide
// view needs the explicit all=true opt-in and is denied to lower roles.
func TestRequestScopeBypassFlag(t *testing.T) {
	parent := int64(1)
	superScope := &hierarchy.Scope{UserID: 2, Role: models.RoleSuperAdmin, TreePath: "1/2", ParentID: &parent}
	adminScope := &hierarchy.Scope{UserID: 3, Role: models.RoleAdmin, TreePath: "1/3", ParentID: &parent}

	cases := []struct {
		name       string
		scope      *hierarchy.Scope
		query      string
		wantBypass bool
	}{
		{"super admin without flag", superScope, "", false},
		{"super admin with flag", superScope, "?all=true", true},
		{"admin with flag", adminScope, "?all=true", false},
		{"admin without flag", adminScope, "", false},
	}
	for _, tc := range cases {
		c := scopedContext(t, tc.scope, tc.query)
		got := requestScope(c)
		if tc.wantBypass {
			if got != nil {
				t.Errorf("%s: expected unscoped read, got scope for user %d", tc.name, got.UserID)
			}
			continue
		}
		if got == nil || got.UserID != tc.scope.UserID {
			t.Errorf("%s: expected caller's own scope, got %+v", tc.name, got)
		}
	}
}

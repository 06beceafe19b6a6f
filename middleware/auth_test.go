package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tradege/marketedgepros-sub001/models"
)

func roleRouter(user *models.User, required ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if user != nil {
			c.Set(CtxUserKey, user)
		}
		c.Next()
	})
	r.POST("/gated", RoleRequired(required...), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

// Payment approval, rejection and free grants are super_admin routes. A plain
// admin passing AdminRequired elsewhere must still be turned away here.
func TestRoleRequiredSuperAdminOnly(t *testing.T) {
	cases := []struct {
		role string
		want int
	}{
		{models.RoleSuperAdmin, http.StatusOK},
		{models.RoleAdmin, http.StatusForbidden},
		{models.RoleAffiliate, http.StatusForbidden},
		{models.RoleTrader, http.StatusForbidden},
	}
	for _, tc := range cases {
		r := roleRouter(&models.User{ID: 1, Role: tc.role}, models.RoleSuperAdmin)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/gated", nil))
		if w.Code != tc.want {
			t.Errorf("role %s: status = %d, want %d", tc.role, w.Code, tc.want)
		}
	}
}

func TestRoleRequiredWithoutUser(t *testing.T) {
	r := roleRouter(nil, models.RoleSuperAdmin)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/gated", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

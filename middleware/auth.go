package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tradege/marketedgepros-sub001/auth"
	"github.com/tradege/marketedgepros-sub001/config"
	"github.com/tradege/marketedgepros-sub001/hierarchy"
	"github.com/tradege/marketedgepros-sub001/logging"
	"github.com/tradege/marketedgepros-sub001/models"
)

// Context keys set by AuthRequired.
const (
	CtxUserKey  = "currentUser"
	CtxScopeKey = "scope"
)

// AuthRequired validates the bearer token, checks revocation and the user's
// token_version, and binds the hierarchy scope into the request context.
func AuthRequired(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")

		claims, err := auth.ValidateAccessToken(cfg, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		revoked, err := auth.IsTokenRevoked(c.Request.Context(), claims.ID)
		if err != nil {
			logging.Logger.Error("revocation check failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		if revoked {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token revoked"})
			return
		}

		user, err := hierarchy.GetUserByID(c.Request.Context(), claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
			return
		}
		// bumped token_version invalidates every previously issued token
		if !user.IsActive || user.TokenVersion != claims.TokenVersion {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token no longer valid"})
			return
		}

		scope := hierarchy.ScopeFromUser(user)
		c.Set(CtxUserKey, user)
		c.Set(CtxScopeKey, scope)
		c.Request = c.Request.WithContext(hierarchy.NewContext(c.Request.Context(), scope))
		c.Next()
	}
}

// CurrentUser returns the authenticated user set by AuthRequired.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(CtxUserKey); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

// CurrentScope returns the request's hierarchy scope.
func CurrentScope(c *gin.Context) *hierarchy.Scope {
	if v, ok := c.Get(CtxScopeKey); ok {
		if s, ok := v.(*hierarchy.Scope); ok {
			return s
		}
	}
	return nil
}

// RoleRequired gates a route to the named roles.
func RoleRequired(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		if !allowed[user.Role] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}
		c.Next()
	}
}

// AdminRequired allows admins and super admins.
func AdminRequired() gin.HandlerFunc {
	return RoleRequired(models.RoleSuperAdmin, models.RoleAdmin)
}

package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tradege/marketedgepros-sub001/auth"
	"github.com/tradege/marketedgepros-sub001/database"
	"github.com/tradege/marketedgepros-sub001/hierarchy"
	"github.com/tradege/marketedgepros-sub001/logging"
	"github.com/tradege/marketedgepros-sub001/middleware"
	"github.com/tradege/marketedgepros-sub001/models"
)

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// requestScope resolves the effective scope for list endpoints. Reads are
// subtree-bound by default; a super admin may pass ?all=true to opt into a
// platform-wide view.
func requestScope(c *gin.Context) *hierarchy.Scope {
	scope := middleware.CurrentScope(c)
	if c.Query("all") == "true" && scope != nil && scope.Role == models.RoleSuperAdmin {
		return nil
	}
	return scope
}

// ListUsers returns the users in the caller's subtree.
func ListUsers() gin.HandlerFunc {
	return func(c *gin.Context) {
		scope := requestScope(c)
		limit, offset := pagination(c)

		users, err := hierarchy.ListUsers(c.Request.Context(), scope, limit, offset)
		if err != nil {
			logging.Logger.Error("user listing failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list users"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
	}
}

// GetUser returns one user if they fall inside the caller's subtree.
func GetUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
			return
		}

		target, err := hierarchy.GetUserByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}

		scope := middleware.CurrentScope(c)
		if !scope.Bypass() && !hierarchy.IsDescendantPath(scope.TreePath, target.TreePath) &&
			target.ID != scope.UserID {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": target})
	}
}

// CreateUser creates a child of the caller, subject to the role matrix.
func CreateUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email          string  `json:"email" binding:"required,email"`
			Password       string  `json:"password" binding:"required"`
			Name           string  `json:"name" binding:"required"`
			Role           string  `json:"role" binding:"required"`
			CommissionRate *string `json:"commission_rate"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		creator := middleware.CurrentUser(c)
		user, err := hierarchy.CreateChild(c.Request.Context(), creator,
			req.Email, req.Password, req.Name, req.Role, req.CommissionRate)
		if err != nil {
			switch {
			case errors.Is(err, hierarchy.ErrRoleNotAllowed):
				c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed to create this role"})
			case errors.Is(err, hierarchy.ErrEmailTaken):
				c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			case errors.Is(err, auth.ErrWeakPassword):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			default:
				logging.Logger.Error("user creation failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "User creation failed"})
			}
			return
		}
		c.JSON(http.StatusCreated, gin.H{"user": user})
	}
}

// DeactivateUser soft-disables a user in the caller's subtree.
func DeactivateUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
			return
		}

		target, err := hierarchy.GetUserByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		scope := middleware.CurrentScope(c)
		if target.ID == scope.UserID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot deactivate yourself"})
			return
		}
		if !scope.Bypass() && !hierarchy.IsDescendantPath(scope.TreePath, target.TreePath) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		if target.IsRoot() {
			c.JSON(http.StatusForbidden, gin.H{"error": "Root account cannot be deactivated"})
			return
		}

		if err := hierarchy.Deactivate(c.Request.Context(), target.ID); err != nil {
			if errors.Is(err, hierarchy.ErrHasDescendants) {
				c.JSON(http.StatusConflict, gin.H{"error": "User still has descendants; move or deactivate them first"})
				return
			}
			logging.Logger.Error("deactivation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Deactivation failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "User deactivated"})
	}
}

// UpdateCommissionRate sets an agent's per-user commission override.
func UpdateCommissionRate() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
			return
		}
		var req struct {
			CommissionRate *string `json:"commission_rate"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		target, err := hierarchy.GetUserByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		scope := middleware.CurrentScope(c)
		if !scope.Bypass() && !hierarchy.IsDescendantPath(scope.TreePath, target.TreePath) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}

		_, err = database.Pool.Exec(c.Request.Context(), `
			UPDATE users SET commission_rate = $1, updated_at = NOW() AT TIME ZONE 'utc'
			WHERE id = $2
		`, req.CommissionRate, target.ID)
		if err != nil {
			logging.Logger.Error("commission rate update failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Update failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Commission rate updated"})
	}
}

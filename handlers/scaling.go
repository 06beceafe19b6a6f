package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tradege/marketedgepros-sub001/logging"
	"github.com/tradege/marketedgepros-sub001/middleware"
	"github.com/tradege/marketedgepros-sub001/scaling"
)

// GetMyScaling returns the caller's scaling progress.
func GetMyScaling() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		s, err := scaling.GetForUser(c.Request.Context(), user.ID)
		if errors.Is(err, scaling.ErrScalingNotFound) {
			c.JSON(http.StatusOK, gin.H{"scaling": nil})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load scaling"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"scaling": s})
	}
}

// ListScalingTiers returns the tier ladder.
func ListScalingTiers() gin.HandlerFunc {
	return func(c *gin.Context) {
		tiers, err := scaling.ListTiers(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load tiers"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"tiers": tiers})
	}
}

// ScaleUpAccount promotes an eligible funded account. Admin only.
func ScaleUpAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
			return
		}
		if err := requireInScope(c, userID); err != nil {
			return
		}

		admin := middleware.CurrentUser(c)
		s, err := scaling.ScaleUp(c.Request.Context(), admin.ID, userID)
		if err != nil {
			switch {
			case errors.Is(err, scaling.ErrScalingNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "No scaling record for user"})
			case errors.Is(err, scaling.ErrNotEligible):
				c.JSON(http.StatusConflict, gin.H{"error": "Account is not eligible for scaling"})
			case errors.Is(err, scaling.ErrPlanComplete):
				c.JSON(http.StatusConflict, gin.H{"error": "Scaling plan is already complete"})
			default:
				logging.Logger.Error("scale up failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Scale up failed"})
			}
			return
		}
		c.JSON(http.StatusOK, gin.H{"scaling": s})
	}
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tradege/marketedgepros-sub001/commission"
	"github.com/tradege/marketedgepros-sub001/database"
	"github.com/tradege/marketedgepros-sub001/logging"
	"github.com/tradege/marketedgepros-sub001/middleware"
	"github.com/tradege/marketedgepros-sub001/models"
)

// ListMyCommissions returns the calling agent's commission history.
func ListMyCommissions() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		limit, offset := pagination(c)

		list, err := commission.ListForAgent(c.Request.Context(), user.ID, limit, offset)
		if err != nil {
			logging.Logger.Error("commission listing failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list commissions"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"commissions": list, "count": len(list)})
	}
}

// ListReferrals returns the agent's referred users.
func ListReferrals() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		rows, err := database.Pool.Query(c.Request.Context(), `
			SELECT r.id, r.agent_id, r.referred_user_id, r.code, r.activated_at
			FROM referrals r
			WHERE r.agent_id = $1
			ORDER BY r.activated_at DESC
		`, user.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list referrals"})
			return
		}
		defer rows.Close()

		var referrals []models.Referral
		for rows.Next() {
			var r models.Referral
			if err := rows.Scan(&r.ID, &r.AgentID, &r.ReferredUserID, &r.Code, &r.ActivatedAt); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list referrals"})
				return
			}
			referrals = append(referrals, r)
		}
		c.JSON(http.StatusOK, gin.H{
			"referral_code": user.ReferralCode,
			"referrals":     referrals,
			"count":         len(referrals),
		})
	}
}

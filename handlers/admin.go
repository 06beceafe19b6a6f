package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tradege/marketedgepros-sub001/database"
	"github.com/tradege/marketedgepros-sub001/logging"
	"github.com/tradege/marketedgepros-sub001/models"
)

// Health reports liveness of the service and its stores.
func Health() gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ok"
		dbOK, redisOK := true, true

		if err := database.Pool.Ping(c.Request.Context()); err != nil {
			dbOK = false
			status = "degraded"
		}
		if err := database.RedisClient.Ping(c.Request.Context()).Err(); err != nil {
			redisOK = false
			status = "degraded"
		}

		code := http.StatusOK
		if status != "ok" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":   status,
			"database": dbOK,
			"redis":    redisOK,
		})
	}
}

// DashboardStats returns subtree-scoped aggregates for the admin dashboard.
// A super admin may pass ?all=true for platform-wide numbers.
func DashboardStats() gin.HandlerFunc {
	return func(c *gin.Context) {
		scope := requestScope(c)

		userCond, userArgs := scope.Filter("id", 1)
		var totalUsers, activeUsers int64
		err := database.Pool.QueryRow(c.Request.Context(), `
			SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active)
			FROM users WHERE `+userCond, userArgs...).Scan(&totalUsers, &activeUsers)
		if err != nil {
			logging.Logger.Error("dashboard stats failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Stats unavailable"})
			return
		}

		chalCond, chalArgs := scope.Filter("user_id", 1)
		var activeChallenges, fundedChallenges int64
		err = database.Pool.QueryRow(c.Request.Context(), `
			SELECT COUNT(*) FILTER (WHERE status = '`+models.ChallengeStatusActive+`'),
			       COUNT(*) FILTER (WHERE status = '`+models.ChallengeStatusFunded+`')
			FROM challenges WHERE `+chalCond, chalArgs...).Scan(&activeChallenges, &fundedChallenges)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Stats unavailable"})
			return
		}

		payCond, payArgs := scope.Filter("user_id", 1)
		var completedVolume string
		err = database.Pool.QueryRow(c.Request.Context(), `
			SELECT COALESCE(SUM(amount), 0)::text
			FROM payments
			WHERE status = '`+models.PaymentStatusCompleted+`' AND `+payCond, payArgs...).
			Scan(&completedVolume)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Stats unavailable"})
			return
		}

		var pendingWithdrawals int64
		wCond, wArgs := scope.Filter("user_id", 1)
		err = database.Pool.QueryRow(c.Request.Context(), `
			SELECT COUNT(*) FROM withdrawals
			WHERE status = '`+models.WithdrawalStatusPending+`' AND `+wCond, wArgs...).
			Scan(&pendingWithdrawals)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Stats unavailable"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"total_users":         totalUsers,
			"active_users":        activeUsers,
			"active_challenges":   activeChallenges,
			"funded_challenges":   fundedChallenges,
			"completed_volume":    completedVolume,
			"pending_withdrawals": pendingWithdrawals,
		})
	}
}

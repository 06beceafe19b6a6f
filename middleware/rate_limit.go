package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tradege/marketedgepros-sub001/config"
	"github.com/tradege/marketedgepros-sub001/database"
	"github.com/tradege/marketedgepros-sub001/logging"
)

// RateLimit caps requests per client IP over a sliding window backed by a
// redis sorted set. Redis being down fails open; throttling is a shield, not
// a dependency.
func RateLimit(limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("ratelimit:%s:%s", c.FullPath(), c.ClientIP())
		now := time.Now().UnixMilli()
		windowStart := now - window.Milliseconds()

		pipe := database.RedisClient.Pipeline()
		pipe.ZRemRangeByScore(c.Request.Context(), key, "0", fmt.Sprintf("%d", windowStart))
		countCmd := pipe.ZCard(c.Request.Context(), key)
		pipe.ZAdd(c.Request.Context(), key, redis.Z{
			Score:  float64(now),
			Member: fmt.Sprintf("%d-%s", now, uuid.NewString()[:8]),
		})
		pipe.Expire(c.Request.Context(), key, window)

		if _, err := pipe.Exec(c.Request.Context()); err != nil {
			logging.Logger.Warn("rate limit check failed, allowing request", zap.Error(err))
			c.Next()
			return
		}
		if countCmd.Val() >= int64(limit) {
			c.Header("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}

func loginBlockKey(ip string) string    { return "login:block:" + ip }
func loginFailuresKey(ip string) string { return "login:failures:" + ip }

// LoginGuard rejects login attempts from IPs that accumulated too many
// failures inside the window. Handlers report outcomes via RecordLoginFailure
// and ClearLoginFailures.
func LoginGuard(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		blocked, err := database.RedisClient.Exists(c.Request.Context(), loginBlockKey(c.ClientIP())).Result()
		if err != nil {
			logging.Logger.Warn("login block check failed, allowing request", zap.Error(err))
			c.Next()
			return
		}
		if blocked > 0 {
			c.Header("Retry-After", fmt.Sprintf("%d", int(cfg.LoginBlockDuration.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many failed login attempts, try again later",
			})
			return
		}
		c.Next()
	}
}

// RecordLoginFailure counts a failed attempt and installs the block once the
// limit is hit.
func RecordLoginFailure(ctx context.Context, cfg *config.Config, ip string) {
	key := loginFailuresKey(ip)
	count, err := database.RedisClient.Incr(ctx, key).Result()
	if err != nil {
		logging.Logger.Warn("login failure tracking failed", zap.Error(err))
		return
	}
	if count == 1 {
		database.RedisClient.Expire(ctx, key, cfg.LoginFailureWindow)
	}
	if count >= int64(cfg.LoginFailureLimit) {
		database.RedisClient.Set(ctx, loginBlockKey(ip), "1", cfg.LoginBlockDuration)
		database.RedisClient.Del(ctx, key)
		logging.Logger.Warn("⚠️ Login blocked for IP",
			zap.String("ip", ip),
			zap.Duration("duration", cfg.LoginBlockDuration))
	}
}

// ClearLoginFailures resets the counter after a successful login.
func ClearLoginFailures(ctx context.Context, ip string) {
	database.RedisClient.Del(ctx, loginFailuresKey(ip))
}

package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"

	"github.com/tradege/marketedgepros-sub001/auth"
	"github.com/tradege/marketedgepros-sub001/config"
	"github.com/tradege/marketedgepros-sub001/database"
	"github.com/tradege/marketedgepros-sub001/hierarchy"
	"github.com/tradege/marketedgepros-sub001/logging"
	"github.com/tradege/marketedgepros-sub001/middleware"
	"github.com/tradege/marketedgepros-sub001/utils"
)

// Register handles self-service trader signup, optionally via referral code.
func Register(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email            string `json:"email" binding:"required,email"`
			Password         string `json:"password" binding:"required"`
			Name             string `json:"name" binding:"required"`
			ReferralCode     string `json:"referral_code"`
			VerificationCode string `json:"verification_code"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if cfg.RequireEmailVerification {
			if err := auth.ConsumeVerificationCode(c.Request.Context(), req.Email, req.VerificationCode); err != nil {
				if errors.Is(err, auth.ErrCodeInvalid) {
					c.JSON(http.StatusBadRequest, gin.H{"error": "Verification code invalid or expired"})
					return
				}
				logging.Logger.Error("verification check failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
				return
			}
		}

		user, err := hierarchy.Register(c.Request.Context(), req.Email, req.Password, req.Name, req.ReferralCode)
		if err != nil {
			switch {
			case errors.Is(err, hierarchy.ErrEmailTaken):
				c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			case errors.Is(err, hierarchy.ErrBadReferral):
				c.JSON(http.StatusBadRequest, gin.H{"error": "Referral code not found"})
			case errors.Is(err, auth.ErrWeakPassword):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			default:
				logging.Logger.Error("registration failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
			}
			return
		}

		utils.EnqueueEmail(c.Request.Context(), cfg.EmailEnqueueTimeout,
			utils.WelcomeEmail(user.Email, user.Name))

		c.JSON(http.StatusCreated, gin.H{"user": user})
	}
}

// RequestVerificationCode emails a registration code. The response does not
// reveal whether the address is already registered.
func RequestVerificationCode(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email string `json:"email" binding:"required,email"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		code, err := auth.IssueVerificationCode(c.Request.Context(), req.Email)
		if err != nil {
			if errors.Is(err, auth.ErrResendThrottle) {
				c.JSON(http.StatusTooManyRequests, gin.H{"error": "Code already sent, try again in a minute"})
				return
			}
			logging.Logger.Error("verification code issue failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not send code"})
			return
		}

		utils.EnqueueEmail(c.Request.Context(), cfg.EmailEnqueueTimeout,
			utils.VerificationCodeEmail(req.Email, code))
		c.JSON(http.StatusOK, gin.H{"status": "sent"})
	}
}

// Login verifies credentials (and TOTP when enabled) and issues a token pair.
func Login(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email    string `json:"email" binding:"required,email"`
			Password string `json:"password" binding:"required"`
			TOTPCode string `json:"totp_code"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		user, err := hierarchy.GetUserByEmail(c.Request.Context(), req.Email)
		if err != nil || !auth.CheckPasswordHash(req.Password, user.Password) {
			middleware.RecordLoginFailure(c.Request.Context(), cfg, c.ClientIP())
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		if !user.IsActive {
			c.JSON(http.StatusForbidden, gin.H{"error": "Account is deactivated"})
			return
		}

		var secret string
		var totpEnabled bool
		err = database.Pool.QueryRow(c.Request.Context(),
			`SELECT secret, enabled FROM twofa WHERE user_id = $1`, user.ID).
			Scan(&secret, &totpEnabled)
		if err == nil && totpEnabled {
			if req.TOTPCode == "" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "TOTP code required", "totp_required": true})
				return
			}
			if !totp.Validate(req.TOTPCode, secret) {
				middleware.RecordLoginFailure(c.Request.Context(), cfg, c.ClientIP())
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid TOTP code"})
				return
			}
		}

		accessToken, refreshToken, err := auth.GenerateTokenPair(cfg,
			user.ID, user.Email, user.Role, user.TokenVersion)
		if err != nil {
			logging.Logger.Error("token generation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
			return
		}

		middleware.ClearLoginFailures(c.Request.Context(), c.ClientIP())

		var seen int
		err = database.Pool.QueryRow(c.Request.Context(), `
			SELECT COUNT(*) FROM login_history
			WHERE user_id = $1 AND ip_address = $2 AND user_agent = $3
		`, user.ID, c.ClientIP(), c.Request.UserAgent()).Scan(&seen)
		if err == nil && seen == 0 {
			utils.EnqueueEmail(c.Request.Context(), cfg.EmailEnqueueTimeout,
				utils.NewDeviceEmail(user.Email, c.ClientIP(), c.Request.UserAgent()))
		}

		_, err = database.Pool.Exec(c.Request.Context(), `
			INSERT INTO login_history (user_id, ip_address, user_agent)
			VALUES ($1, $2, $3)
		`, user.ID, c.ClientIP(), c.Request.UserAgent())
		if err != nil {
			logging.Logger.Warn("login history insert failed", zap.Error(err))
		}

		c.JSON(http.StatusOK, gin.H{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
			"user":          user,
		})
	}
}

// Refresh exchanges a valid refresh token for a new pair. The used refresh
// token is revoked so each one works exactly once.
func Refresh(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			RefreshToken string `json:"refresh_token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		claims, err := auth.ValidateRefreshToken(cfg, req.RefreshToken)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
			return
		}

		revoked, err := auth.IsTokenRevoked(c.Request.Context(), claims.ID)
		if err != nil {
			logging.Logger.Error("revocation check failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		if revoked {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Refresh token revoked"})
			return
		}

		user, err := hierarchy.GetUserByID(c.Request.Context(), claims.UserID)
		if err != nil || !user.IsActive || user.TokenVersion != claims.TokenVersion {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Refresh token no longer valid"})
			return
		}

		if err := auth.RevokeToken(c.Request.Context(), claims.ID, user.ID,
			"refresh", claims.ExpiresAt.Time); err != nil {
			logging.Logger.Error("refresh token rotation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		accessToken, refreshToken, err := auth.GenerateTokenPair(cfg,
			user.ID, user.Email, user.Role, user.TokenVersion)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Token generation failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
		})
	}
}

// Logout revokes the presented access token.
func Logout(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString := ""
		if len(header) > 7 {
			tokenString = header[7:]
		}
		claims, err := auth.ValidateAccessToken(cfg, tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		expiry := time.Now().Add(cfg.AccessTokenTTL)
		if claims.ExpiresAt != nil {
			expiry = claims.ExpiresAt.Time
		}
		if err := auth.RevokeToken(c.Request.Context(), claims.ID, claims.UserID,
			"access", expiry); err != nil {
			logging.Logger.Error("logout revocation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Logout failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
	}
}

// Me returns the authenticated user's profile.
func Me() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": middleware.CurrentUser(c)})
	}
}

// ChangePassword updates the password and logs out every session by bumping
// token_version.
func ChangePassword() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			CurrentPassword string `json:"current_password" binding:"required"`
			NewPassword     string `json:"new_password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		user := middleware.CurrentUser(c)
		if !auth.CheckPasswordHash(req.CurrentPassword, user.Password) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Current password is incorrect"})
			return
		}
		if err := auth.ValidatePassword(req.NewPassword); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		hash, err := auth.HashPassword(req.NewPassword)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Password update failed"})
			return
		}

		_, err = database.Pool.Exec(c.Request.Context(), `
			UPDATE users SET password_hash = $1, updated_at = NOW() AT TIME ZONE 'utc'
			WHERE id = $2
		`, hash, user.ID)
		if err != nil {
			logging.Logger.Error("password update failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Password update failed"})
			return
		}
		if err := auth.RevokeAll(c.Request.Context(), user.ID); err != nil {
			logging.Logger.Error("session invalidation failed", zap.Error(err))
		}
		c.JSON(http.StatusOK, gin.H{"message": "Password updated, please log in again"})
	}
}

// LoginHistory returns the user's recent logins.
func LoginHistory() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		rows, err := database.Pool.Query(c.Request.Context(), `
			SELECT ip_address, user_agent, login_time
			FROM login_history
			WHERE user_id = $1
			ORDER BY login_time DESC
			LIMIT 50
		`, user.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load login history"})
			return
		}
		defer rows.Close()

		type entry struct {
			IPAddress string    `json:"ip_address"`
			UserAgent string    `json:"user_agent"`
			LoginTime time.Time `json:"login_time"`
		}
		var history []entry
		for rows.Next() {
			var e entry
			if err := rows.Scan(&e.IPAddress, &e.UserAgent, &e.LoginTime); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load login history"})
				return
			}
			history = append(history, e)
		}
		c.JSON(http.StatusOK, gin.H{"history": history})
	}
}

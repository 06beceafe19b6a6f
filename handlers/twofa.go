package handlers

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/tradege/marketedgepros-sub001/database"
	"github.com/tradege/marketedgepros-sub001/logging"
	"github.com/tradege/marketedgepros-sub001/middleware"
)

// TwoFASetup generates a TOTP secret and QR code. The secret stays disabled
// until the user confirms a valid code via TwoFAEnable.
func TwoFASetup() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)

		key, err := totp.Generate(totp.GenerateOpts{
			Issuer:      "MarketEdgePros",
			AccountName: user.Email,
		})
		if err != nil {
			logging.Logger.Error("totp generation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "2FA setup failed"})
			return
		}

		_, err = database.Pool.Exec(c.Request.Context(), `
			INSERT INTO twofa (user_id, secret, enabled)
			VALUES ($1, $2, false)
			ON CONFLICT (user_id) DO UPDATE SET secret = $2, enabled = false
		`, user.ID, key.Secret())
		if err != nil {
			logging.Logger.Error("twofa secret store failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "2FA setup failed"})
			return
		}

		png, err := qrcode.Encode(key.URL(), qrcode.Medium, 256)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "QR code generation failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"secret":  key.Secret(),
			"qr_code": "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		})
	}
}

// TwoFAEnable turns on 2FA after verifying one code against the stored secret.
func TwoFAEnable() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Code string `json:"code" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		user := middleware.CurrentUser(c)
		var secret string
		err := database.Pool.QueryRow(c.Request.Context(),
			`SELECT secret FROM twofa WHERE user_id = $1`, user.ID).Scan(&secret)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Run 2FA setup first"})
			return
		}
		if !totp.Validate(req.Code, secret) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid code"})
			return
		}

		_, err = database.Pool.Exec(c.Request.Context(),
			`UPDATE twofa SET enabled = true WHERE user_id = $1`, user.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to enable 2FA"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "2FA enabled"})
	}
}

// TwoFADisable removes 2FA after a final code check.
func TwoFADisable() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Code string `json:"code" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		user := middleware.CurrentUser(c)
		var secret string
		var enabled bool
		err := database.Pool.QueryRow(c.Request.Context(),
			`SELECT secret, enabled FROM twofa WHERE user_id = $1`, user.ID).Scan(&secret, &enabled)
		if err != nil || !enabled {
			c.JSON(http.StatusBadRequest, gin.H{"error": "2FA is not enabled"})
			return
		}
		if !totp.Validate(req.Code, secret) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid code"})
			return
		}

		_, err = database.Pool.Exec(c.Request.Context(),
			`DELETE FROM twofa WHERE user_id = $1`, user.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to disable 2FA"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "2FA disabled"})
	}
}

package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tradege/marketedgepros-sub001/config"
	"github.com/tradege/marketedgepros-sub001/database"
	"github.com/tradege/marketedgepros-sub001/logging"
	"github.com/tradege/marketedgepros-sub001/models"
	"github.com/tradege/marketedgepros-sub001/payments"
	"github.com/tradege/marketedgepros-sub001/utils"
	"github.com/tradege/marketedgepros-sub001/workers"
)

// Each sender signs with its own header name.
const (
	paymentSignatureHeader = "X-Webhook-Signature"
	mt5SignatureHeader     = "X-MT5-Signature"
)

func readSignedBody(c *gin.Context, secret, header string) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable body"})
		return nil, false
	}
	sig := c.GetHeader(header)
	if sig == "" || !utils.VerifySignature(secret, body, sig) {
		logging.Logger.Warn("⚠️ Webhook signature rejected",
			zap.String("path", c.Request.URL.Path),
			zap.String("ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return nil, false
	}
	return body, true
}

// PaymentWebhook receives gateway callbacks for card payments. Completion is
// idempotent: replays of a processed event return 200 without side effects.
func PaymentWebhook(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, ok := readSignedBody(c, cfg.PaymentWebhookSecret, paymentSignatureHeader)
		if !ok {
			return
		}

		var event struct {
			PaymentID     int64  `json:"payment_id"`
			ExternalTxnID string `json:"external_txn_id"`
			Status        string `json:"status"`
			Reason        string `json:"reason"`
		}
		if err := json.Unmarshal(body, &event); err != nil || event.PaymentID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed event"})
			return
		}

		switch event.Status {
		case "completed":
			if event.ExternalTxnID == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "external_txn_id required"})
				return
			}
			payment, err := payments.CompleteFromWebhook(c.Request.Context(),
				event.PaymentID, event.ExternalTxnID)
			if err != nil {
				switch {
				case errors.Is(err, payments.ErrPaymentNotFound):
					c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
				case errors.Is(err, payments.ErrAlreadyProcessed),
					errors.Is(err, payments.ErrInvalidTransition):
					c.JSON(http.StatusConflict, gin.H{"error": "Payment already processed"})
				default:
					logging.Logger.Error("webhook completion failed", zap.Error(err))
					c.JSON(http.StatusInternalServerError, gin.H{"error": "Processing failed"})
				}
				return
			}

			notifyPaymentCompleted(c, cfg, payment)
			if payment.ReferenceID != nil {
				if err := workers.EnqueueSync(c.Request.Context(), *payment.ReferenceID); err != nil {
					logging.Logger.Warn("post-payment sync enqueue failed", zap.Error(err))
				}
			}
			c.JSON(http.StatusOK, gin.H{"status": "ok"})

		case "failed":
			if _, err := payments.FailFromWebhook(c.Request.Context(),
				event.PaymentID, event.Reason); err != nil {
				if errors.Is(err, payments.ErrPaymentNotFound) {
					c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
					return
				}
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Processing failed"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "ok"})

		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status"})
		}
	}
}

// MT5Webhook receives pushed account events from the bridge, typically
// equity updates after trade close. The affected challenge gets queued for a
// sync pass instead of being mutated inline.
func MT5Webhook(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, ok := readSignedBody(c, cfg.MT5WebhookSecret, mt5SignatureHeader)
		if !ok {
			return
		}

		var event struct {
			Login int64  `json:"login"`
			Event string `json:"event"`
		}
		if err := json.Unmarshal(body, &event); err != nil || event.Login == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed event"})
			return
		}

		var challengeID int64
		err := database.Pool.QueryRow(c.Request.Context(), `
			SELECT challenge_id FROM mt5_accounts
			WHERE mt5_login = $1 AND status = $2
		`, event.Login, models.MT5AccountStatusActive).Scan(&challengeID)
		if err != nil {
			// unknown logins are acknowledged so the bridge stops retrying
			logging.Logger.Warn("mt5 webhook for unknown login",
				zap.Int64("login", event.Login))
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}

		if err := workers.EnqueueSync(c.Request.Context(), challengeID); err != nil {
			logging.Logger.Error("mt5 webhook sync enqueue failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Enqueue failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "queued"})
	}
}

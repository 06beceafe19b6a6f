package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradege/marketedgepros-sub001/logging"
	"github.com/tradege/marketedgepros-sub001/middleware"
	"github.com/tradege/marketedgepros-sub001/wallet"
)

// GetWallet returns the caller's wallet.
func GetWallet() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		w, err := wallet.GetWallet(c.Request.Context(), user.ID)
		if err != nil {
			logging.Logger.Error("wallet fetch failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load wallet"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"wallet":        w,
			"total_balance": w.TotalBalance(),
		})
	}
}

// ListWalletTransactions returns the caller's ledger, newest first.
func ListWalletTransactions() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		limit, offset := pagination(c)

		txns, err := wallet.ListTransactions(c.Request.Context(), user.ID, limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list transactions"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"transactions": txns, "count": len(txns)})
	}
}

// AdjustWallet applies an admin correction to a user's bucket.
func AdjustWallet() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID      int64           `json:"user_id" binding:"required"`
			Bucket      string          `json:"bucket" binding:"required,oneof=main commission bonus"`
			Delta       decimal.Decimal `json:"delta" binding:"required"`
			Description string          `json:"description" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := requireInScope(c, req.UserID); err != nil {
			return
		}

		admin := middleware.CurrentUser(c)
		txn, err := wallet.Adjust(c.Request.Context(), req.UserID, req.Bucket,
			req.Delta, "admin_adjustment", req.Description, admin.ID)
		if err != nil {
			switch {
			case errors.Is(err, wallet.ErrInsufficientFunds):
				c.JSON(http.StatusConflict, gin.H{"error": "Adjustment would make the balance negative"})
			case errors.Is(err, wallet.ErrInvalidAmount):
				c.JSON(http.StatusBadRequest, gin.H{"error": "Delta must be non-zero"})
			case errors.Is(err, wallet.ErrWalletNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "Wallet not found"})
			default:
				logging.Logger.Error("wallet adjustment failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Adjustment failed"})
			}
			return
		}
		c.JSON(http.StatusOK, gin.H{"transaction": txn})
	}
}

// TransferFunds moves money between two users' wallets within one bucket.
// Super admin only; the ledger records a debit and a credit pair.
func TransferFunds() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			FromUserID  int64           `json:"from_user_id" binding:"required"`
			ToUserID    int64           `json:"to_user_id" binding:"required"`
			Bucket      string          `json:"bucket" binding:"required,oneof=main commission bonus"`
			Amount      decimal.Decimal `json:"amount" binding:"required"`
			Description string          `json:"description" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		admin := middleware.CurrentUser(c)
		err := wallet.Transfer(c.Request.Context(), req.FromUserID, req.ToUserID,
			req.Bucket, req.Amount, "admin_transfer", req.Description, &admin.ID)
		if err != nil {
			switch {
			case errors.Is(err, wallet.ErrInsufficientFunds):
				c.JSON(http.StatusConflict, gin.H{"error": "Source balance is too low"})
			case errors.Is(err, wallet.ErrInvalidAmount):
				c.JSON(http.StatusBadRequest, gin.H{"error": "Amount must be positive and users distinct"})
			case errors.Is(err, wallet.ErrWalletNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "Wallet not found"})
			case errors.Is(err, wallet.ErrWalletInactive):
				c.JSON(http.StatusConflict, gin.H{"error": "One of the wallets is inactive"})
			default:
				logging.Logger.Error("wallet transfer failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Transfer failed"})
			}
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "transferred"})
	}
}

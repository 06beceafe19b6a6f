package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradege/marketedgepros-sub001/config"
	"github.com/tradege/marketedgepros-sub001/hierarchy"
	"github.com/tradege/marketedgepros-sub001/logging"
	"github.com/tradege/marketedgepros-sub001/middleware"
	"github.com/tradege/marketedgepros-sub001/models"
	"github.com/tradege/marketedgepros-sub001/utils"
	"github.com/tradege/marketedgepros-sub001/wallet"
	"github.com/tradege/marketedgepros-sub001/withdrawal"
)

// RequestWithdrawal opens a commission withdrawal for the caller.
func RequestWithdrawal() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Amount        decimal.Decimal `json:"amount" binding:"required"`
			Method        string          `json:"method" binding:"required"`
			MethodDetails json.RawMessage `json:"method_details" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		user := middleware.CurrentUser(c)
		w, err := withdrawal.Request(c.Request.Context(), user.ID, req.Amount,
			req.Method, req.MethodDetails)
		if err != nil {
			switch {
			case errors.Is(err, withdrawal.ErrNotEligible):
				c.JSON(http.StatusConflict, gin.H{"error": "Amount exceeds available commission balance"})
			case errors.Is(err, withdrawal.ErrRequestOpen):
				c.JSON(http.StatusConflict, gin.H{"error": "A withdrawal request is already in progress"})
			case errors.Is(err, wallet.ErrInvalidAmount):
				c.JSON(http.StatusBadRequest, gin.H{"error": "Amount must be positive"})
			default:
				logging.Logger.Error("withdrawal request failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Request failed"})
			}
			return
		}
		c.JSON(http.StatusCreated, gin.H{"withdrawal": w})
	}
}

// AvailableBalance reports how much commission the caller can still request.
func AvailableBalance() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		available, err := withdrawal.AvailableCommission(c.Request.Context(), user.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute balance"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"available": available})
	}
}

// ListWithdrawals returns withdrawals inside the caller's subtree.
func ListWithdrawals() gin.HandlerFunc {
	return func(c *gin.Context) {
		scope := middleware.CurrentScope(c)
		limit, offset := pagination(c)

		cond, args := scope.Filter("user_id", 1)
		list, err := withdrawal.ListWithdrawals(c.Request.Context(), cond, args, limit, offset)
		if err != nil {
			logging.Logger.Error("withdrawal listing failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list withdrawals"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"withdrawals": list, "count": len(list)})
	}
}

// AdvanceWithdrawal moves a withdrawal along its state machine. Admin only.
func AdvanceWithdrawal(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid withdrawal id"})
			return
		}
		var req struct {
			Status        string `json:"status" binding:"required,oneof=approved processing completed rejected"`
			Reason        string `json:"reason"`
			ExternalTxnID string `json:"external_txn_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		detail := req.Reason
		if req.Status == models.WithdrawalStatusCompleted {
			detail = req.ExternalTxnID
		}

		admin := middleware.CurrentUser(c)
		w, err := withdrawal.Advance(c.Request.Context(), admin.ID, id, req.Status, detail)
		if err != nil {
			switch {
			case errors.Is(err, withdrawal.ErrWithdrawalNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "Withdrawal not found"})
			case errors.Is(err, withdrawal.ErrInvalidTransition):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			default:
				logging.Logger.Error("withdrawal transition failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Transition failed"})
			}
			return
		}

		if owner, err := hierarchy.GetUserByID(c.Request.Context(), w.UserID); err == nil {
			utils.EnqueueEmail(c.Request.Context(), cfg.EmailEnqueueTimeout,
				utils.WithdrawalStatusEmail(owner.Email, w.Status, w.Amount.StringFixed(2)))
		}
		c.JSON(http.StatusOK, gin.H{"withdrawal": w})
	}
}

// RequestPayout opens a funded-account profit payout for the caller.
func RequestPayout() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			ChallengeID int64           `json:"challenge_id" binding:"required"`
			Amount      decimal.Decimal `json:"amount"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		user := middleware.CurrentUser(c)
		p, err := withdrawal.RequestPayout(c.Request.Context(), user.ID, req.ChallengeID, req.Amount)
		if err != nil {
			switch {
			case errors.Is(err, withdrawal.ErrNotFunded):
				c.JSON(http.StatusConflict, gin.H{"error": "Challenge is not funded or not yours"})
			case errors.Is(err, withdrawal.ErrNoProfit):
				c.JSON(http.StatusConflict, gin.H{"error": "No payable profit"})
			case errors.Is(err, withdrawal.ErrBelowMinimum):
				c.JSON(http.StatusConflict, gin.H{"error": "Profit is below the program payout minimum"})
			case errors.Is(err, withdrawal.ErrRequestOpen):
				c.JSON(http.StatusConflict, gin.H{"error": "A payout request is already open for this challenge"})
			case errors.Is(err, withdrawal.ErrNotDue):
				c.JSON(http.StatusConflict, gin.H{"error": "Payout schedule window not reached"})
			case errors.Is(err, withdrawal.ErrNotEligible):
				c.JSON(http.StatusConflict, gin.H{"error": "Amount exceeds payable profit"})
			default:
				logging.Logger.Error("payout request failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Request failed"})
			}
			return
		}
		c.JSON(http.StatusCreated, gin.H{"payout": p})
	}
}

// ReviewPayout approves, rejects or completes a payout request. Admin only.
func ReviewPayout() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payout id"})
			return
		}
		var req struct {
			Action string `json:"action" binding:"required,oneof=approve reject complete"`
			Reason string `json:"reason"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		admin := middleware.CurrentUser(c)
		var p interface{}
		switch req.Action {
		case "approve":
			p, err = withdrawal.ApprovePayout(c.Request.Context(), admin.ID, id)
		case "reject":
			p, err = withdrawal.RejectPayout(c.Request.Context(), admin.ID, id, req.Reason)
		case "complete":
			p, err = withdrawal.CompletePayout(c.Request.Context(), admin.ID, id)
		}
		if err != nil {
			switch {
			case errors.Is(err, withdrawal.ErrPayoutNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "Payout not found"})
			case errors.Is(err, withdrawal.ErrInvalidTransition):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			default:
				logging.Logger.Error("payout review failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Review failed"})
			}
			return
		}
		c.JSON(http.StatusOK, gin.H{"payout": p})
	}
}

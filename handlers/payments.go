package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tradege/marketedgepros-sub001/config"
	"github.com/tradege/marketedgepros-sub001/hierarchy"
	"github.com/tradege/marketedgepros-sub001/logging"
	"github.com/tradege/marketedgepros-sub001/middleware"
	"github.com/tradege/marketedgepros-sub001/models"
	"github.com/tradege/marketedgepros-sub001/payments"
	"github.com/tradege/marketedgepros-sub001/programs"
	"github.com/tradege/marketedgepros-sub001/utils"
)

// PurchaseChallenge starts a card purchase for the authenticated trader.
func PurchaseChallenge(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			ProgramID int64   `json:"program_id" binding:"required"`
			AddonIDs  []int64 `json:"addon_ids"`
			Currency  string  `json:"currency"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Currency == "" {
			req.Currency = "USD"
		}

		user := middleware.CurrentUser(c)
		payment, err := payments.Purchase(c.Request.Context(), user.ID,
			req.ProgramID, req.AddonIDs, models.PaymentMethodCard, req.Currency, nil)
		if err != nil {
			handlePurchaseError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"payment": payment})
	}
}

// RecordCashPayment lets an admin record an out-of-band cash sale, which then
// waits for approval.
func RecordCashPayment(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID    int64   `json:"user_id" binding:"required"`
			ProgramID int64   `json:"program_id" binding:"required"`
			AddonIDs  []int64 `json:"addon_ids"`
			Currency  string  `json:"currency"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Currency == "" {
			req.Currency = "USD"
		}

		admin := middleware.CurrentUser(c)
		if err := requireInScope(c, req.UserID); err != nil {
			return
		}

		payment, err := payments.Purchase(c.Request.Context(), req.UserID,
			req.ProgramID, req.AddonIDs, models.PaymentMethodCash, req.Currency, &admin.ID)
		if err != nil {
			handlePurchaseError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"payment": payment})
	}
}

// GrantFreeChallenge gives a challenge away without payment. Super admin
// only; the grant still waits in the approval queue before activating.
func GrantFreeChallenge(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID    int64 `json:"user_id" binding:"required"`
			ProgramID int64 `json:"program_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		admin := middleware.CurrentUser(c)
		if err := requireInScope(c, req.UserID); err != nil {
			return
		}

		payment, err := payments.Purchase(c.Request.Context(), req.UserID,
			req.ProgramID, nil, models.PaymentMethodFree, "USD", &admin.ID)
		if err != nil {
			handlePurchaseError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"payment": payment})
	}
}

func handlePurchaseError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, programs.ErrProgramNotFound), errors.Is(err, programs.ErrProgramInactive):
		c.JSON(http.StatusNotFound, gin.H{"error": "Program not available"})
	case errors.Is(err, programs.ErrAddonNotFound), errors.Is(err, programs.ErrAddonMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid addon selection"})
	default:
		logging.Logger.Error("purchase failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Purchase failed"})
	}
}

// requireInScope aborts with 404 when targetUserID is outside the caller's
// subtree. Used by admin actions that name another user.
func requireInScope(c *gin.Context, targetUserID int64) error {
	scope := middleware.CurrentScope(c)
	target, err := hierarchy.GetUserByID(c.Request.Context(), targetUserID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return err
	}
	if !scope.Bypass() && !hierarchy.IsDescendantPath(scope.TreePath, target.TreePath) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return hierarchy.ErrUserNotFound
	}
	return nil
}

// ListPayments returns payments inside the caller's subtree.
func ListPayments() gin.HandlerFunc {
	return func(c *gin.Context) {
		scope := middleware.CurrentScope(c)
		limit, offset := pagination(c)

		cond, args := scope.Filter("user_id", 1)
		list, err := payments.ListPayments(c.Request.Context(), cond, args, limit, offset)
		if err != nil {
			logging.Logger.Error("payment listing failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list payments"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"payments": list, "count": len(list)})
	}
}

// ApproveCashPayment completes a pending cash sale.
func ApproveCashPayment(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment id"})
			return
		}

		admin := middleware.CurrentUser(c)
		payment, err := payments.ApproveCash(c.Request.Context(), admin.ID, id)
		if err != nil {
			switch {
			case errors.Is(err, payments.ErrPaymentNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
			case errors.Is(err, payments.ErrNotAwaitingCash):
				c.JSON(http.StatusConflict, gin.H{"error": "Payment is not awaiting approval"})
			default:
				logging.Logger.Error("cash approval failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Approval failed"})
			}
			return
		}

		notifyPaymentCompleted(c, cfg, payment)
		c.JSON(http.StatusOK, gin.H{"payment": payment})
	}
}

// RejectCashPayment fails a pending cash sale.
func RejectCashPayment() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment id"})
			return
		}
		var req struct {
			Reason string `json:"reason" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		admin := middleware.CurrentUser(c)
		payment, err := payments.RejectCash(c.Request.Context(), admin.ID, id, req.Reason)
		if err != nil {
			switch {
			case errors.Is(err, payments.ErrPaymentNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
			case errors.Is(err, payments.ErrNotAwaitingCash):
				c.JSON(http.StatusConflict, gin.H{"error": "Payment is not awaiting approval"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Rejection failed"})
			}
			return
		}
		c.JSON(http.StatusOK, gin.H{"payment": payment})
	}
}

// RefundPayment reverses a completed payment.
func RefundPayment() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment id"})
			return
		}
		var req struct {
			Reason string `json:"reason" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		admin := middleware.CurrentUser(c)
		payment, err := payments.Refund(c.Request.Context(), admin.ID, id, req.Reason)
		if err != nil {
			switch {
			case errors.Is(err, payments.ErrPaymentNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
			case errors.Is(err, payments.ErrInvalidTransition):
				c.JSON(http.StatusConflict, gin.H{"error": "Payment cannot be refunded in its current state"})
			default:
				logging.Logger.Error("refund failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Refund failed"})
			}
			return
		}
		c.JSON(http.StatusOK, gin.H{"payment": payment})
	}
}

func notifyPaymentCompleted(c *gin.Context, cfg *config.Config, payment *models.Payment) {
	buyer, err := hierarchy.GetUserByID(c.Request.Context(), payment.UserID)
	if err != nil {
		return
	}
	utils.EnqueueEmail(c.Request.Context(), cfg.EmailEnqueueTimeout,
		utils.PaymentReceiptEmail(buyer.Email, payment.Amount.StringFixed(2),
			payment.Currency, payment.ID))
}

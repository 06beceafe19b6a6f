package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradege/marketedgepros-sub001/logging"
	"github.com/tradege/marketedgepros-sub001/models"
	"github.com/tradege/marketedgepros-sub001/programs"
)

// ListPrograms is public: the purchase page needs the catalog before login.
func ListPrograms() gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := programs.ListActivePrograms(c.Request.Context())
		if err != nil {
			logging.Logger.Error("program listing failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list programs"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"programs": list})
	}
}

// GetProgram returns one program with its addons.
func GetProgram() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid program id"})
			return
		}
		p, err := programs.GetProgram(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Program not found"})
			return
		}
		addons, err := programs.ListAddons(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load addons"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"program": p, "addons": addons})
	}
}

type programRequest struct {
	Name                string          `json:"name" binding:"required"`
	Type                string          `json:"type" binding:"required,oneof=one_phase two_phase instant_funding"`
	AccountSize         decimal.Decimal `json:"account_size" binding:"required"`
	Price               decimal.Decimal `json:"price" binding:"required"`
	ProfitTarget        decimal.Decimal `json:"profit_target"`
	MaxDailyLoss        decimal.Decimal `json:"max_daily_loss" binding:"required"`
	MaxTotalLoss        decimal.Decimal `json:"max_total_loss" binding:"required"`
	ProfitSplit         decimal.Decimal `json:"profit_split" binding:"required"`
	PayoutMode          string          `json:"payout_mode" binding:"required,oneof=on_demand scheduled_biweekly monthly"`
	MinimumPayoutAmount decimal.Decimal `json:"minimum_payout_amount"`
	MinTradingDays      int             `json:"min_trading_days"`
	MaxTradingDays      int             `json:"max_trading_days"`
	MT5GroupPhase1      string          `json:"mt5_group_phase1" binding:"required"`
	MT5GroupPhase2      string          `json:"mt5_group_phase2"`
	MT5GroupFunded      string          `json:"mt5_group_funded" binding:"required"`
	Leverage            int             `json:"leverage" binding:"required"`
}

func (r *programRequest) toModel() *models.TradingProgram {
	return &models.TradingProgram{
		TenantID:            1,
		Name:                r.Name,
		Type:                r.Type,
		AccountSize:         r.AccountSize,
		Price:               r.Price,
		ProfitTarget:        r.ProfitTarget,
		MaxDailyLoss:        r.MaxDailyLoss,
		MaxTotalLoss:        r.MaxTotalLoss,
		ProfitSplit:         r.ProfitSplit,
		PayoutMode:          r.PayoutMode,
		MinimumPayoutAmount: r.MinimumPayoutAmount,
		MinTradingDays:      r.MinTradingDays,
		MaxTradingDays:      r.MaxTradingDays,
		MT5GroupPhase1:      r.MT5GroupPhase1,
		MT5GroupPhase2:      r.MT5GroupPhase2,
		MT5GroupFunded:      r.MT5GroupFunded,
		Leverage:            r.Leverage,
	}
}

// CreateProgram adds a catalog entry. Admin only.
func CreateProgram() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req programRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Type == models.ProgramTypeTwoPhase && req.MT5GroupPhase2 == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "two_phase programs need mt5_group_phase2"})
			return
		}

		p := req.toModel()
		if err := programs.CreateProgram(c.Request.Context(), p); err != nil {
			logging.Logger.Error("program creation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Program creation failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"program": p})
	}
}

// UpdateProgram edits a program. If challenges reference it, the edit lands
// as a replacement row and the original is deactivated.
func UpdateProgram() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid program id"})
			return
		}
		var req programRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		p := req.toModel()
		if err := programs.Replace(c.Request.Context(), id, p); err != nil {
			if errors.Is(err, programs.ErrProgramNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Program not found"})
				return
			}
			logging.Logger.Error("program update failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Program update failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"program": p})
	}
}

// DeactivateProgram hides a program from the catalog.
func DeactivateProgram() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid program id"})
			return
		}
		if err := programs.DeactivateProgram(c.Request.Context(), id); err != nil {
			if errors.Is(err, programs.ErrProgramNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Program not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Deactivation failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Program deactivated"})
	}
}

// CreateAddon attaches an addon to a program. Admin only.
func CreateAddon() gin.HandlerFunc {
	return func(c *gin.Context) {
		programID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid program id"})
			return
		}
		var req struct {
			Name  string          `json:"name" binding:"required"`
			Price decimal.Decimal `json:"price" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if _, err := programs.GetProgram(c.Request.Context(), programID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Program not found"})
			return
		}

		addon := &models.ProgramAddon{ProgramID: programID, Name: req.Name, Price: req.Price}
		if err := programs.CreateAddon(c.Request.Context(), addon); err != nil {
			logging.Logger.Error("addon creation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Addon creation failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"addon": addon})
	}
}

// QuotePurchase prices a program with selected addons.
func QuotePurchase() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			ProgramID int64   `json:"program_id" binding:"required"`
			AddonIDs  []int64 `json:"addon_ids"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		total, p, addons, err := programs.Quote(c.Request.Context(), req.ProgramID, req.AddonIDs)
		if err != nil {
			switch {
			case errors.Is(err, programs.ErrProgramNotFound), errors.Is(err, programs.ErrProgramInactive):
				c.JSON(http.StatusNotFound, gin.H{"error": "Program not available"})
			case errors.Is(err, programs.ErrAddonNotFound), errors.Is(err, programs.ErrAddonMismatch):
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid addon selection"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Quote failed"})
			}
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"program": p,
			"addons":  addons,
			"total":   total,
		})
	}
}

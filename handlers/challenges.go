package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tradege/marketedgepros-sub001/challenge"
	"github.com/tradege/marketedgepros-sub001/database"
	"github.com/tradege/marketedgepros-sub001/hierarchy"
	"github.com/tradege/marketedgepros-sub001/logging"
	"github.com/tradege/marketedgepros-sub001/middleware"
	"github.com/tradege/marketedgepros-sub001/models"
)

// ListChallenges returns challenges inside the caller's subtree.
func ListChallenges() gin.HandlerFunc {
	return func(c *gin.Context) {
		scope := middleware.CurrentScope(c)
		limit, offset := pagination(c)

		cond, args := scope.Filter("user_id", 1)
		list, err := challenge.ListChallenges(c.Request.Context(), cond, args, limit, offset)
		if err != nil {
			logging.Logger.Error("challenge listing failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list challenges"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"challenges": list, "count": len(list)})
	}
}

// getScopedChallenge loads a challenge, 404ing when its owner falls outside
// the caller's subtree.
func getScopedChallenge(c *gin.Context) *models.Challenge {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid challenge id"})
		return nil
	}
	ch, err := challenge.GetChallenge(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Challenge not found"})
		return nil
	}

	scope := middleware.CurrentScope(c)
	if !scope.Bypass() && ch.UserID != scope.UserID {
		owner, err := hierarchy.GetUserByID(c.Request.Context(), ch.UserID)
		if err != nil || !hierarchy.IsDescendantPath(scope.TreePath, owner.TreePath) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Challenge not found"})
			return nil
		}
	}
	return ch
}

// GetChallenge returns one challenge with its account metadata.
func GetChallenge() gin.HandlerFunc {
	return func(c *gin.Context) {
		ch := getScopedChallenge(c)
		if ch == nil {
			return
		}
		account, err := challenge.GetActiveAccount(c.Request.Context(), ch.ID)
		if err != nil && !errors.Is(err, challenge.ErrAccountNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load account"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"challenge": ch, "account": account})
	}
}

// GetCredentials returns the MT5 login credentials, decrypting the stored
// password. Only the challenge owner may fetch them.
func GetCredentials() gin.HandlerFunc {
	return func(c *gin.Context) {
		ch := getScopedChallenge(c)
		if ch == nil {
			return
		}
		user := middleware.CurrentUser(c)
		if ch.UserID != user.ID {
			c.JSON(http.StatusForbidden, gin.H{"error": "Only the account owner can view credentials"})
			return
		}

		account, err := challenge.GetActiveAccount(c.Request.Context(), ch.ID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "No active account yet"})
			return
		}
		password, err := challenge.Vault.Decrypt(account.PasswordEnc)
		if err != nil {
			logging.Logger.Error("credential decryption failed",
				zap.Int64("accountID", account.ID),
				zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Credential retrieval failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"login":    account.MT5Login,
			"password": string(password),
			"server":   account.Server,
			"group":    account.MT5Group,
		})
	}
}

// ListTrades returns the challenge's recorded trade history.
func ListTrades() gin.HandlerFunc {
	return func(c *gin.Context) {
		ch := getScopedChallenge(c)
		if ch == nil {
			return
		}
		limit, offset := pagination(c)

		rows, err := database.Pool.Query(c.Request.Context(), `
			SELECT t.id, t.mt5_account_id, t.ticket, t.symbol, t.direction,
			       t.volume, t.open_price, t.close_price, t.profit,
			       t.opened_at, t.closed_at
			FROM trades t
			JOIN mt5_accounts a ON a.id = t.mt5_account_id
			WHERE a.challenge_id = $1
			ORDER BY t.opened_at DESC
			LIMIT $2 OFFSET $3
		`, ch.ID, limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list trades"})
			return
		}
		defer rows.Close()

		var trades []models.Trade
		for rows.Next() {
			var t models.Trade
			err = rows.Scan(&t.ID, &t.MT5AccountID, &t.Ticket, &t.Symbol, &t.Direction,
				&t.Volume, &t.OpenPrice, &t.ClosePrice, &t.Profit, &t.OpenedAt, &t.ClosedAt)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list trades"})
				return
			}
			trades = append(trades, t)
		}
		c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
	}
}

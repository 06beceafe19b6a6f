package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tradege/marketedgepros-sub001/database"
	"github.com/tradege/marketedgepros-sub001/logging"
	"github.com/tradege/marketedgepros-sub001/middleware"
	"github.com/tradege/marketedgepros-sub001/utils"
)

var allowedDocTypes = map[string]bool{
	"passport":        true,
	"id_card":         true,
	"drivers_license": true,
	"proof_of_address": true,
}

var allowedExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "pdf": true,
}

// RequestKYCUpload issues a presigned PUT URL and records the pending
// document row. Documents live in the object store, never in the database.
func RequestKYCUpload(store *utils.ObjectStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			DocType   string `json:"doc_type" binding:"required"`
			Extension string `json:"extension" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !allowedDocTypes[req.DocType] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported document type"})
			return
		}
		if !allowedExtensions[req.Extension] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported file type"})
			return
		}

		user := middleware.CurrentUser(c)
		key := utils.DocumentKey(user.ID, req.DocType, req.Extension)
		uploadURL, err := store.PresignedUpload(c.Request.Context(), key)
		if err != nil {
			logging.Logger.Error("presigned upload failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Upload URL generation failed"})
			return
		}

		var docID int64
		err = database.Pool.QueryRow(c.Request.Context(), `
			INSERT INTO kyc_documents (user_id, doc_type, object_key)
			VALUES ($1, $2, $3)
			RETURNING id
		`, user.ID, req.DocType, key).Scan(&docID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Document registration failed"})
			return
		}

		_, err = database.Pool.Exec(c.Request.Context(), `
			UPDATE users SET kyc_status = 'pending', updated_at = NOW() AT TIME ZONE 'utc'
			WHERE id = $1 AND kyc_status = 'none'
		`, user.ID)
		if err != nil {
			logging.Logger.Warn("kyc status update failed", zap.Error(err))
		}

		c.JSON(http.StatusCreated, gin.H{
			"document_id": docID,
			"upload_url":  uploadURL,
			"object_key":  key,
		})
	}
}

// ListKYCDocuments returns pending documents for compliance review with
// short-lived download URLs. Admin only.
func ListKYCDocuments(store *utils.ObjectStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		scope := middleware.CurrentScope(c)
		cond, args := scope.Filter("d.user_id", 1)

		rows, err := database.Pool.Query(c.Request.Context(), `
			SELECT d.id, d.user_id, u.email, d.doc_type, d.object_key, d.status, d.created_at
			FROM kyc_documents d
			JOIN users u ON u.id = d.user_id
			WHERE d.status = 'pending' AND `+cond+`
			ORDER BY d.created_at
		`, args...)
		if err != nil {
			logging.Logger.Error("kyc listing failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list documents"})
			return
		}
		defer rows.Close()

		type doc struct {
			ID          int64  `json:"id"`
			UserID      int64  `json:"user_id"`
			Email       string `json:"email"`
			DocType     string `json:"doc_type"`
			Status      string `json:"status"`
			CreatedAt   string `json:"created_at"`
			DownloadURL string `json:"download_url"`
		}
		var docs []doc
		for rows.Next() {
			var d doc
			var key string
			if err := rows.Scan(&d.ID, &d.UserID, &d.Email, &d.DocType, &key, &d.Status, &d.CreatedAt); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list documents"})
				return
			}
			if url, err := store.PresignedDownload(c.Request.Context(), key); err == nil {
				d.DownloadURL = url
			}
			docs = append(docs, d)
		}
		c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
	}
}

// ReviewKYCDocument approves or rejects a document and rolls the user's
// overall KYC status. Admin only.
func ReviewKYCDocument() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid document id"})
			return
		}
		var req struct {
			Action string `json:"action" binding:"required,oneof=approve reject"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		status := "approved"
		if req.Action == "reject" {
			status = "rejected"
		}

		admin := middleware.CurrentUser(c)
		var userID int64
		err = database.Pool.QueryRow(c.Request.Context(), `
			UPDATE kyc_documents
			SET status = $1, reviewed_by = $2
			WHERE id = $3 AND status = 'pending'
			RETURNING user_id
		`, status, admin.ID, id).Scan(&userID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Document not found or already reviewed"})
			return
		}

		_, err = database.Pool.Exec(c.Request.Context(), `
			UPDATE users SET kyc_status = $1, updated_at = NOW() AT TIME ZONE 'utc'
			WHERE id = $2
		`, status, userID)
		if err != nil {
			logging.Logger.Error("kyc status rollup failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Review failed"})
			return
		}

		logging.Logger.Info("kyc document reviewed",
			zap.Int64("documentID", id),
			zap.Int64("adminID", admin.ID),
			zap.String("status", status))
		c.JSON(http.StatusOK, gin.H{"message": "Document " + status})
	}
}

package handlers

import (
	"net/http"
	"strings"

	"github.com/tierhub-io/tierhub/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// WebhookEventHandler exposes the webhook delivery audit log to admins.
type WebhookEventHandler struct {
	db *gorm.DB // Database handle for webhook event records.
}

// NewWebhookEventHandler constructs a webhook event handler.
func NewWebhookEventHandler(conn *gorm.DB) *WebhookEventHandler {
	return &WebhookEventHandler{db: conn}
}

// List returns recorded webhook deliveries, newest first, filtered by kind
// or outcome.
func (h *WebhookEventHandler) List(c *gin.Context) {
	kindQ := strings.TrimSpace(c.Query("kind"))
	outcomeQ := strings.TrimSpace(c.Query("outcome"))

	q := h.db.WithContext(c.Request.Context()).Model(&models.WebhookEvent{})
	if kindQ != "" {
		q = q.Where("kind = ?", kindQ)
	}
	if outcomeQ != "" {
		q = q.Where("outcome = ?", outcomeQ)
	}

	var rows []models.WebhookEvent
	if errFind := q.Order("updated_at DESC").Limit(parseLimit(c, 100)).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list webhook events failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":                row.ID,
			"external_event_id": row.ExternalEventID,
			"kind":              row.Kind,
			"outcome":           row.Outcome,
			"error":             row.Error,
			"attempts":          row.Attempts,
			"created_at":        row.CreatedAt,
			"updated_at":        row.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"events": out})
}

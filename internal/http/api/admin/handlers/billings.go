package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/tierhub-io/tierhub/internal/db"
	"github.com/tierhub-io/tierhub/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// BillingHandler exposes billing rows to admins for support work.
type BillingHandler struct {
	db *gorm.DB // Database handle for billing records.
}

// NewBillingHandler constructs a billing handler.
func NewBillingHandler(conn *gorm.DB) *BillingHandler {
	return &BillingHandler{db: conn}
}

// List returns billing rows filtered by status, user email, or external
// subscription id.
func (h *BillingHandler) List(c *gin.Context) {
	statusQ := strings.TrimSpace(c.Query("status"))
	emailQ := strings.TrimSpace(c.Query("email"))
	subQ := strings.TrimSpace(c.Query("subscription_id"))

	q := h.db.WithContext(c.Request.Context()).Model(&models.Billing{})
	if statusQ != "" {
		q = q.Where("status = ?", statusQ)
	}
	if subQ != "" {
		q = q.Where("external_subscription_id = ?", subQ)
	}
	if emailQ != "" {
		pattern := db.NormalizeLikePattern(h.db, "%"+emailQ+"%")
		q = q.Where("user_id IN (?)",
			h.db.Model(&models.User{}).Select("id").
				Where(db.CaseInsensitiveLikeExpr(h.db, "email"), pattern))
	}

	var rows []models.Billing
	if errFind := q.Order("updated_at DESC").Limit(parseLimit(c, 100)).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list billings failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":                       row.ID,
			"user_id":                  row.UserID,
			"product_id":               row.ProductID,
			"external_subscription_id": row.ExternalSubscriptionID,
			"external_customer_id":     row.ExternalCustomerID,
			"status":                   row.Status,
			"expires_at":               row.ExpiresAt,
			"created_at":               row.CreatedAt,
			"updated_at":               row.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"billings": out})
}

// parseLimit reads the limit query parameter, clamped to [1, 500].
func parseLimit(c *gin.Context, fallback int) int {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return fallback
	}
	limit, errParse := strconv.Atoi(raw)
	if errParse != nil || limit < 1 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/tierhub-io/tierhub/internal/billing"
	"github.com/tierhub-io/tierhub/internal/models"
	"github.com/tierhub-io/tierhub/internal/payment"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// BillingFrontHandler serves subscription endpoints for users.
type BillingFrontHandler struct {
	db      *gorm.DB
	gateway *billing.SessionGateway
}

// NewBillingFrontHandler constructs a BillingFrontHandler.
func NewBillingFrontHandler(db *gorm.DB, gateway *billing.SessionGateway) *BillingFrontHandler {
	return &BillingFrontHandler{db: db, gateway: gateway}
}

// Get returns the caller's billing record.
func (h *BillingFrontHandler) Get(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var record models.Billing
	errFind := h.db.WithContext(c.Request.Context()).
		Preload("Product").Where("user_id = ?", userID).First(&record).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no billing record"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     record.Status,
		"expires_at": record.ExpiresAt,
		"product": gin.H{
			"id":   record.Product.ID,
			"name": record.Product.Name,
		},
	})
}

// checkoutRequest defines the request body for checkout session creation.
type checkoutRequest struct {
	ProductID  uint64 `json:"product_id"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

// CreateCheckoutSession starts a hosted checkout for the caller.
func (h *BillingFrontHandler) CreateCheckoutSession(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body checkoutRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.ProductID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product_id is required"})
		return
	}
	if strings.TrimSpace(body.SuccessURL) == "" || strings.TrimSpace(body.CancelURL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "success_url and cancel_url are required"})
		return
	}

	session, errCreate := h.gateway.CreateCheckoutSession(c.Request.Context(), userID, body.ProductID, body.SuccessURL, body.CancelURL)
	if errCreate != nil {
		h.writeGatewayError(c, errCreate)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": session.ID,
		"url":        session.URL,
	})
}

// portalRequest defines the request body for portal session creation.
type portalRequest struct {
	ReturnURL string `json:"return_url"`
}

// CreatePortalSession starts a self-service portal session for the caller.
func (h *BillingFrontHandler) CreatePortalSession(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body portalRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.ReturnURL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "return_url is required"})
		return
	}

	session, errCreate := h.gateway.CreatePortalSession(c.Request.Context(), userID, body.ReturnURL)
	if errCreate != nil {
		h.writeGatewayError(c, errCreate)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": session.URL})
}

// writeGatewayError maps gateway errors to HTTP responses. Domain errors
// carry stable codes; processor failures surface as a distinct 502 so
// clients can tell invalid requests from an unavailable processor.
func (h *BillingFrontHandler) writeGatewayError(c *gin.Context, err error) {
	var apiErr *payment.APIError
	switch {
	case errors.Is(err, billing.ErrEmailNotVerified):
		c.JSON(http.StatusForbidden, gin.H{"error": "email not verified", "code": "email_not_verified"})
	case errors.Is(err, billing.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found", "code": "product_not_found"})
	case errors.Is(err, billing.ErrBillingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "no billing record", "code": "billing_not_found"})
	case errors.Is(err, billing.ErrCustomerNotFound):
		c.JSON(http.StatusConflict, gin.H{"error": "no customer on record", "code": "customer_not_found"})
	case errors.Is(err, billing.ErrSessionCreationFailed):
		log.WithError(err).Error("processor returned unusable session")
		c.JSON(http.StatusBadGateway, gin.H{"error": "session creation failed", "code": "session_creation_failed"})
	case errors.As(err, &apiErr):
		log.WithError(err).Error("payment processor call failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment processor unavailable", "code": "processor_unavailable"})
	default:
		log.WithError(err).Error("billing gateway failure")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

package handlers

import (
	"net/http"

	"github.com/tierhub-io/tierhub/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ProductFrontHandler serves catalog endpoints for users.
type ProductFrontHandler struct {
	db *gorm.DB
}

// NewProductFrontHandler constructs a ProductFrontHandler.
func NewProductFrontHandler(db *gorm.DB) *ProductFrontHandler {
	return &ProductFrontHandler{db: db}
}

// List returns active products.
func (h *ProductFrontHandler) List(c *gin.Context) {
	var products []models.Product
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("is_active = ?", true).
		Order("sort_order ASC, created_at DESC").
		Find(&products).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list products failed"})
		return
	}

	out := make([]gin.H, 0, len(products))
	for _, product := range products {
		entry := gin.H{
			"id":          product.ID,
			"name":        product.Name,
			"description": product.Description,
			"price":       product.Price,
			"is_default":  product.IsDefault,
			"purchasable": product.ExternalPriceID != nil && *product.ExternalPriceID != "",
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{"products": out})
}

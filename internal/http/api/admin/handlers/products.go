package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tierhub-io/tierhub/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ProductHandler manages admin CRUD endpoints for products.
type ProductHandler struct {
	db *gorm.DB // Database handle for product records.
}

// NewProductHandler constructs a product handler.
func NewProductHandler(db *gorm.DB) *ProductHandler {
	return &ProductHandler{db: db}
}

// createProductRequest captures the payload for creating a product.
type createProductRequest struct {
	Name              string  `json:"name"`                // Product name.
	Description       string  `json:"description"`         // Product description.
	Price             int64   `json:"price"`               // Price in minor currency units.
	ExternalPriceID   *string `json:"external_price_id"`   // Processor price ID.
	ExternalProductID *string `json:"external_product_id"` // Processor product ID.
	SortOrder         int     `json:"sort_order"`          // Display order.
	IsActive          *bool   `json:"is_active"`           // Optional active flag.
}

// Create validates input and inserts a new product.
func (h *ProductHandler) Create(c *gin.Context) {
	var body createProductRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if strings.TrimSpace(body.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if body.Price < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price must not be negative"})
		return
	}

	isActive := true
	if body.IsActive != nil {
		isActive = *body.IsActive
	}

	now := time.Now().UTC()
	product := models.Product{
		Name:              strings.TrimSpace(body.Name),
		Description:       body.Description,
		Price:             body.Price,
		ExternalPriceID:   normalizeOptionalID(body.ExternalPriceID),
		ExternalProductID: normalizeOptionalID(body.ExternalProductID),
		SortOrder:         body.SortOrder,
		IsActive:          isActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if errCreate := h.db.WithContext(c.Request.Context()).Create(&product).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create product failed"})
		return
	}
	c.JSON(http.StatusCreated, formatProduct(&product))
}

// List returns all products, optionally filtered by active flag.
func (h *ProductHandler) List(c *gin.Context) {
	activeQ := strings.TrimSpace(c.Query("is_active"))

	q := h.db.WithContext(c.Request.Context()).Model(&models.Product{})
	if activeQ != "" {
		if activeQ == "true" || activeQ == "1" {
			q = q.Where("is_active = ?", true)
		} else if activeQ == "false" || activeQ == "0" {
			q = q.Where("is_active = ?", false)
		}
	}

	var rows []models.Product
	if errFind := q.Order("sort_order ASC, created_at DESC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list products failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, formatProduct(&row))
	}
	c.JSON(http.StatusOK, gin.H{"products": out})
}

// Get fetches a product by ID.
func (h *ProductHandler) Get(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var product models.Product
	if errFind := h.db.WithContext(c.Request.Context()).First(&product, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, formatProduct(&product))
}

// updateProductRequest captures optional fields for product updates.
type updateProductRequest struct {
	Name              *string `json:"name"`                // Optional name update.
	Description       *string `json:"description"`         // Optional description.
	Price             *int64  `json:"price"`               // Optional price.
	ExternalPriceID   *string `json:"external_price_id"`   // Optional processor price ID.
	ExternalProductID *string `json:"external_product_id"` // Optional processor product ID.
	SortOrder         *int    `json:"sort_order"`          // Optional display order.
	IsActive          *bool   `json:"is_active"`           // Optional active flag.
}

// Update applies partial updates to a product.
func (h *ProductHandler) Update(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var body updateProductRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var product models.Product
	if errFind := h.db.WithContext(c.Request.Context()).First(&product, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	updates := map[string]any{}
	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name must not be empty"})
			return
		}
		updates["name"] = name
	}
	if body.Description != nil {
		updates["description"] = *body.Description
	}
	if body.Price != nil {
		if *body.Price < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "price must not be negative"})
			return
		}
		updates["price"] = *body.Price
	}
	if body.ExternalPriceID != nil {
		updates["external_price_id"] = normalizeOptionalID(body.ExternalPriceID)
	}
	if body.ExternalProductID != nil {
		updates["external_product_id"] = normalizeOptionalID(body.ExternalProductID)
	}
	if body.SortOrder != nil {
		updates["sort_order"] = *body.SortOrder
	}
	if body.IsActive != nil {
		updates["is_active"] = *body.IsActive
	}
	if len(updates) == 0 {
		c.JSON(http.StatusOK, formatProduct(&product))
		return
	}
	updates["updated_at"] = time.Now().UTC()

	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&product).Updates(updates).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update product failed"})
		return
	}
	c.JSON(http.StatusOK, formatProduct(&product))
}

// SetDefault moves the default flag to this product. The swap runs in one
// transaction so the single-default unique index never sees two defaults.
func (h *ProductHandler) SetDefault(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if errFind := tx.First(&product, id).Error; errFind != nil {
			return errFind
		}
		if product.IsDefault {
			return nil
		}
		if errClear := tx.Model(&models.Product{}).Where("is_default = ?", true).
			Update("is_default", false).Error; errClear != nil {
			return errClear
		}
		return tx.Model(&models.Product{}).Where("id = ?", id).
			Update("is_default", true).Error
	})
	if errTx != nil {
		if errors.Is(errTx, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "set default failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"default": true})
}

// Enable marks a product purchasable.
func (h *ProductHandler) Enable(c *gin.Context) {
	h.setActive(c, true)
}

// Disable removes a product from sale.
func (h *ProductHandler) Disable(c *gin.Context) {
	h.setActive(c, false)
}

func (h *ProductHandler) setActive(c *gin.Context, active bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	result := h.db.WithContext(c.Request.Context()).Model(&models.Product{}).
		Where("id = ?", id).Update("is_active", active)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_active": active})
}

// normalizeOptionalID trims an optional external identifier, mapping empty
// strings to nil.
func normalizeOptionalID(raw *string) *string {
	if raw == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// formatProduct renders a product for admin responses.
func formatProduct(product *models.Product) gin.H {
	return gin.H{
		"id":                  product.ID,
		"name":                product.Name,
		"description":         product.Description,
		"price":               product.Price,
		"external_price_id":   product.ExternalPriceID,
		"external_product_id": product.ExternalProductID,
		"sort_order":          product.SortOrder,
		"is_active":           product.IsActive,
		"is_default":          product.IsDefault,
		"created_at":          product.CreatedAt,
		"updated_at":          product.UpdatedAt,
	}
}

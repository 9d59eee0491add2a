package admin

import (
	"net/http"
	"strings"

	"github.com/tierhub-io/tierhub/internal/config"
	"github.com/tierhub-io/tierhub/internal/http/api/admin/handlers"
	"github.com/tierhub-io/tierhub/internal/models"
	"github.com/tierhub-io/tierhub/internal/security"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterAdminRoutes registers admin routes, middleware, and handlers.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig) {
	if r == nil || db == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/healthz", healthHandler.Healthz)

	authed := r.Group("/v0/admin")
	authed.Use(adminAuthMiddleware(db, jwtCfg))

	productHandler := handlers.NewProductHandler(db)
	authed.POST("/products", productHandler.Create)
	authed.GET("/products", productHandler.List)
	authed.GET("/products/:id", productHandler.Get)
	authed.PUT("/products/:id", productHandler.Update)
	authed.POST("/products/:id/default", productHandler.SetDefault)
	authed.POST("/products/:id/enable", productHandler.Enable)
	authed.POST("/products/:id/disable", productHandler.Disable)

	billingHandler := handlers.NewBillingHandler(db)
	authed.GET("/billings", billingHandler.List)

	eventHandler := handlers.NewWebhookEventHandler(db)
	authed.GET("/webhook-events", eventHandler.List)
}

// adminAuthMiddleware validates admin JWTs and loads admin context.
func adminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseUserToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		if !user.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account disabled"})
			return
		}
		if !user.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin required"})
			return
		}

		c.Set("adminID", user.ID)
		c.Next()
	}
}

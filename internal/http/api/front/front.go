package front

import (
	"net/http"
	"strings"
	"time"

	"github.com/tierhub-io/tierhub/internal/billing"
	"github.com/tierhub-io/tierhub/internal/config"
	"github.com/tierhub-io/tierhub/internal/http/api/front/handlers"
	"github.com/tierhub-io/tierhub/internal/models"
	"github.com/tierhub-io/tierhub/internal/ratelimit"
	"github.com/tierhub-io/tierhub/internal/security"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Per-second request limits for abuse-prone endpoints.
const (
	loginRateLimit    = 5
	checkoutRateLimit = 2
)

// RegisterFrontRoutes registers user-facing routes, middleware, and handlers.
func RegisterFrontRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, gateway *billing.SessionGateway, limiter ratelimit.Limiter) {
	if r == nil || db == nil {
		return
	}

	group := r.Group("/v0")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	group.POST("/auth/register", authHandler.Register)
	group.POST("/auth/login", loginRateLimitMiddleware(limiter), authHandler.Login)
	group.POST("/auth/refresh", authHandler.Refresh)
	group.POST("/auth/verify-email", authHandler.VerifyEmail)

	productHandler := handlers.NewProductFrontHandler(db)
	group.GET("/products", productHandler.List)

	authed := group.Group("")
	authed.Use(userAuthMiddleware(db, jwtCfg))

	authed.GET("/me", authHandler.Me)

	billingHandler := handlers.NewBillingFrontHandler(db, gateway)
	authed.GET("/billing", billingHandler.Get)
	authed.POST("/billing/checkout", checkoutRateLimitMiddleware(limiter), billingHandler.CreateCheckoutSession)
	authed.POST("/billing/portal", billingHandler.CreatePortalSession)
}

// userAuthMiddleware validates user JWTs and loads user context.
func userAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
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

		c.Set(handlers.ContextUserID, user.ID)
		c.Next()
	}
}

// loginRateLimitMiddleware throttles login attempts per client address.
func loginRateLimitMiddleware(limiter ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		key := ratelimit.IPKey("login", c.ClientIP())
		result, errAllow := limiter.Allow(c.Request.Context(), key, loginRateLimit, time.Now().UTC())
		if errAllow != nil {
			// A broken limiter backend must not take down login.
			c.Next()
			return
		}
		if !result.Allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

// checkoutRateLimitMiddleware throttles checkout attempts per user.
func checkoutRateLimitMiddleware(limiter ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		value, exists := c.Get(handlers.ContextUserID)
		userID, _ := value.(uint64)
		if !exists || userID == 0 {
			c.Next()
			return
		}
		key := ratelimit.UserKey("checkout", userID)
		result, errAllow := limiter.Allow(c.Request.Context(), key, checkoutRateLimit, time.Now().UTC())
		if errAllow != nil {
			c.Next()
			return
		}
		if !result.Allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

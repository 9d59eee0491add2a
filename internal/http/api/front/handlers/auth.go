package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/tierhub-io/tierhub/internal/config"
	"github.com/tierhub-io/tierhub/internal/models"
	"github.com/tierhub-io/tierhub/internal/security"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AuthHandler manages account registration and session endpoints.
type AuthHandler struct {
	db     *gorm.DB
	jwtCfg config.JWTConfig
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{db: db, jwtCfg: jwtCfg}
}

// registerRequest defines the request body for account registration.
type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Age      int    `json:"age"`
	Phone    string `json:"phone"`
}

// Register creates a new user account and issues a verification token.
func (h *AuthHandler) Register(c *gin.Context) {
	var body registerRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	if email == "" || !strings.Contains(email, "@") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email"})
		return
	}
	password := strings.TrimSpace(body.Password)
	if len(password) < 8 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password too short"})
		return
	}

	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	verificationToken := uuid.NewString()
	now := time.Now().UTC()
	user := models.User{
		Email:             email,
		Name:              strings.TrimSpace(body.Name),
		Password:          hash,
		Age:               body.Age,
		Phone:             strings.TrimSpace(body.Phone),
		EmailVerified:     false,
		Active:            true,
		VerificationToken: &verificationToken,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&user).Error; errCreate != nil {
		if isUniqueViolation(errCreate) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create user failed"})
		return
	}

	// Token delivery is the mailer's job; log at debug for local setups.
	log.WithFields(log.Fields{"user_id": user.ID}).Debug("verification token issued")

	c.JSON(http.StatusCreated, gin.H{
		"id":    user.ID,
		"email": user.Email,
		"name":  user.Name,
	})
}

// loginRequest defines the request body for login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login verifies credentials and issues an access and refresh token pair.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))

	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).Where("email = ?", email).First(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if !user.Active || user.Password == "" || !security.VerifyPassword(user.Password, body.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, errSign := security.SignUserToken(h.jwtCfg.Secret, user.ID, user.IsAdmin, h.jwtCfg.Expiry, time.Now().UTC())
	if errSign != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign token failed"})
		return
	}

	// A single refresh token is active per user; login rotates it.
	refreshToken := uuid.NewString()
	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("id = ?", user.ID).Update("refresh_token", refreshToken).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store refresh token failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":         token,
		"refresh_token": refreshToken,
		"expires_in":    int(h.jwtCfg.Expiry.Seconds()),
	})
}

// refreshRequest defines the request body for token refresh.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh rotates the refresh token and issues a new access token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var body refreshRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	raw := strings.TrimSpace(body.RefreshToken)
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refresh_token is required"})
		return
	}

	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).Where("refresh_token = ?", raw).First(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if !user.Active {
		c.JSON(http.StatusForbidden, gin.H{"error": "account disabled"})
		return
	}

	token, errSign := security.SignUserToken(h.jwtCfg.Secret, user.ID, user.IsAdmin, h.jwtCfg.Expiry, time.Now().UTC())
	if errSign != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign token failed"})
		return
	}

	next := uuid.NewString()
	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("id = ?", user.ID).Update("refresh_token", next).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "rotate refresh token failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":         token,
		"refresh_token": next,
		"expires_in":    int(h.jwtCfg.Expiry.Seconds()),
	})
}

// verifyEmailRequest defines the request body for email verification.
type verifyEmailRequest struct {
	Token string `json:"token"`
}

// VerifyEmail consumes a verification token and marks the email verified.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var body verifyEmailRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	token := strings.TrimSpace(body.Token)
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	result := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("verification_token = ?", token).
		Updates(map[string]any{
			"email_verified":     true,
			"verification_token": nil,
		})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "verify failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"verified": true})
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("CurrentProduct").First(&user, userID).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	out := gin.H{
		"id":             user.ID,
		"email":          user.Email,
		"name":           user.Name,
		"age":            user.Age,
		"phone":          user.Phone,
		"email_verified": user.EmailVerified,
	}
	if user.CurrentProduct != nil {
		out["product"] = gin.H{
			"id":   user.CurrentProduct.ID,
			"name": user.CurrentProduct.Name,
		}
	}
	c.JSON(http.StatusOK, out)
}

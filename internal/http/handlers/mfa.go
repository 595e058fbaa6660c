package handlers

import (
	"net/http"
	"strings"

	"github.com/aiforge/aiforge/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"gorm.io/gorm"
)

// MFAHandler manages per-user TOTP setup.
type MFAHandler struct {
	db     *gorm.DB
	issuer string
}

// NewMFAHandler constructs an MFAHandler. issuer appears in authenticator apps.
func NewMFAHandler(db *gorm.DB, issuer string) *MFAHandler {
	if issuer == "" {
		issuer = "aiforge"
	}
	return &MFAHandler{db: db, issuer: issuer}
}

// Setup generates a new TOTP secret for the user and returns the
// provisioning URL. The secret stays pending until Enable verifies a code.
func (h *MFAHandler) Setup(c *gin.Context) {
	userID := getUserID(c)

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, userID).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if user.MFAEnabled {
		c.JSON(http.StatusConflict, gin.H{"error": "mfa already enabled"})
		return
	}

	key, errGen := totp.Generate(totp.GenerateOpts{
		Issuer:      h.issuer,
		AccountName: user.Username,
	})
	if errGen != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate totp secret failed"})
		return
	}

	if errSave := h.db.WithContext(c.Request.Context()).Model(&user).Update("totp_secret", key.Secret()).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save totp secret failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"secret": key.Secret(),
		"url":    key.URL(),
	})
}

// enableRequest defines the request body for Enable.
type enableRequest struct {
	Code string `json:"code"`
}

// Enable verifies a TOTP code against the pending secret and turns MFA on.
func (h *MFAHandler) Enable(c *gin.Context) {
	userID := getUserID(c)

	var body enableRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	code := strings.TrimSpace(body.Code)
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, userID).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if user.TOTPSecret == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "totp not set up"})
		return
	}
	if !totp.Validate(code, user.TOTPSecret) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid totp code"})
		return
	}

	if errSave := h.db.WithContext(c.Request.Context()).Model(&user).Update("mfa_enabled", true).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "enable mfa failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mfa_enabled": true})
}

// Disable turns MFA off after verifying a current TOTP code.
func (h *MFAHandler) Disable(c *gin.Context) {
	userID := getUserID(c)

	var body enableRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, userID).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if !user.MFAEnabled {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mfa not enabled"})
		return
	}
	if !totp.Validate(strings.TrimSpace(body.Code), user.TOTPSecret) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid totp code"})
		return
	}

	updates := map[string]interface{}{"mfa_enabled": false, "totp_secret": ""}
	if errSave := h.db.WithContext(c.Request.Context()).Model(&user).Updates(updates).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "disable mfa failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mfa_enabled": false})
}

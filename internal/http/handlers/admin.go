package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/aiforge/aiforge/internal/db"
	"github.com/aiforge/aiforge/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AdminHandler exposes user and usage administration endpoints.
type AdminHandler struct {
	db *gorm.DB
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(conn *gorm.DB) *AdminHandler {
	return &AdminHandler{db: conn}
}

// ListUsers returns users with pagination and optional username/email search.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := h.db.WithContext(c.Request.Context()).Model(&models.User{})
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		pattern := db.NormalizeLikePattern(h.db, "%"+search+"%")
		query = query.Where(
			h.db.Where(db.CaseInsensitiveLikeExpr(h.db, "username"), pattern).
				Or(db.CaseInsensitiveLikeExpr(h.db, "email"), pattern),
		)
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count users failed"})
		return
	}

	var users []models.User
	if errFind := query.
		Order("id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&users).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list users failed"})
		return
	}

	out := make([]gin.H, 0, len(users))
	for _, user := range users {
		out = append(out, gin.H{
			"id":           user.ID,
			"username":     user.Username,
			"email":        user.Email,
			"active":       user.Active,
			"is_admin":     user.IsAdmin,
			"mfa_enabled":  user.MFAEnabled,
			"total_tokens": user.TotalTokens,
			"created_at":   user.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"users":     out,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// setActiveRequest defines the request body for SetUserActive.
type setActiveRequest struct {
	Active *bool `json:"active"`
}

// SetUserActive enables or disables a user account.
func (h *AdminHandler) SetUserActive(c *gin.Context) {
	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var body setActiveRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || body.Active == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing active flag"})
		return
	}

	result := h.db.WithContext(c.Request.Context()).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("active", *body.Active)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update user failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "active": *body.Active})
}

// ListUsage returns recent usage rows across all users, optionally filtered
// by user or provider.
func (h *AdminHandler) ListUsage(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit < 1 || limit > 500 {
		limit = 100
	}

	query := h.db.WithContext(c.Request.Context()).Model(&models.Usage{})
	if userParam := c.Query("user_id"); userParam != "" {
		userID, errUser := strconv.ParseUint(userParam, 10, 64)
		if errUser != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
			return
		}
		query = query.Where("user_id = ?", userID)
	}
	if provider := strings.TrimSpace(c.Query("provider")); provider != "" {
		query = query.Where("provider = ?", provider)
	}

	var rows []models.Usage
	if errFind := query.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list usage failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"usage": rows})
}

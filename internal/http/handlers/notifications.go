package handlers

import (
	"net/http"
	"strconv"

	"github.com/aiforge/aiforge/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// NotificationsHandler exposes a user's in-app notifications.
type NotificationsHandler struct {
	db *gorm.DB
}

// NewNotificationsHandler constructs a NotificationsHandler.
func NewNotificationsHandler(db *gorm.DB) *NotificationsHandler {
	return &NotificationsHandler{db: db}
}

// List returns the caller's notifications, newest first. ?unread=true
// filters to unread ones.
func (h *NotificationsHandler) List(c *gin.Context) {
	userID := getUserID(c)

	query := h.db.WithContext(c.Request.Context()).Where("user_id = ?", userID)
	if c.Query("unread") == "true" {
		query = query.Where("is_read = ?", false)
	}

	var notifications []models.Notification
	if errFind := query.Order("created_at DESC, id DESC").Limit(100).Find(&notifications).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list notifications failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// MarkRead marks one notification as read.
func (h *NotificationsHandler) MarkRead(c *gin.Context) {
	userID := getUserID(c)

	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}

	result := h.db.WithContext(c.Request.Context()).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update notification failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"read": id})
}

// MarkAllRead marks every unread notification of the caller as read.
func (h *NotificationsHandler) MarkAllRead(c *gin.Context) {
	userID := getUserID(c)

	result := h.db.WithContext(c.Request.Context()).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update notifications failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": result.RowsAffected})
}

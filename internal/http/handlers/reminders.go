package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aiforge/aiforge/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RemindersHandler manages per-user reminders.
type RemindersHandler struct {
	db *gorm.DB
}

// NewRemindersHandler constructs a RemindersHandler.
func NewRemindersHandler(db *gorm.DB) *RemindersHandler {
	return &RemindersHandler{db: db}
}

// reminderRequest defines the request body for creating or updating a reminder.
type reminderRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	RemindAt    *time.Time `json:"remind_at"`
	IsActive    *bool      `json:"is_active"`
}

// Create adds a reminder for the caller.
func (h *RemindersHandler) Create(c *gin.Context) {
	userID := getUserID(c)

	var body reminderRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	title := strings.TrimSpace(body.Title)
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing title"})
		return
	}
	if body.RemindAt == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing remind_at"})
		return
	}

	reminder := models.Reminder{
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(body.Description),
		RemindAt:    *body.RemindAt,
		IsActive:    true,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&reminder).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create reminder failed"})
		return
	}
	c.JSON(http.StatusCreated, reminder)
}

// List returns the caller's reminders. ?active=true filters to pending ones.
func (h *RemindersHandler) List(c *gin.Context) {
	userID := getUserID(c)

	query := h.db.WithContext(c.Request.Context()).Where("user_id = ?", userID)
	if c.Query("active") == "true" {
		query = query.Where("is_active = ?", true)
	}

	var reminders []models.Reminder
	if errFind := query.Order("remind_at ASC").Find(&reminders).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list reminders failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reminders": reminders})
}

// Update modifies a reminder owned by the caller.
func (h *RemindersHandler) Update(c *gin.Context) {
	reminder, ok := h.loadOwned(c)
	if !ok {
		return
	}

	var body reminderRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	if title := strings.TrimSpace(body.Title); title != "" {
		updates["title"] = title
	}
	if body.Description != "" {
		updates["description"] = strings.TrimSpace(body.Description)
	}
	if body.RemindAt != nil {
		updates["remind_at"] = *body.RemindAt
	}
	if body.IsActive != nil {
		updates["is_active"] = *body.IsActive
	}

	if errSave := h.db.WithContext(c.Request.Context()).Model(&reminder).Updates(updates).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update reminder failed"})
		return
	}
	c.JSON(http.StatusOK, reminder)
}

// Delete removes a reminder owned by the caller.
func (h *RemindersHandler) Delete(c *gin.Context) {
	reminder, ok := h.loadOwned(c)
	if !ok {
		return
	}
	if errDel := h.db.WithContext(c.Request.Context()).Delete(&reminder).Error; errDel != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete reminder failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": reminder.ID})
}

func (h *RemindersHandler) loadOwned(c *gin.Context) (models.Reminder, bool) {
	userID := getUserID(c)

	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reminder id"})
		return models.Reminder{}, false
	}

	var reminder models.Reminder
	errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", id, userID).
		First(&reminder).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "reminder not found"})
			return models.Reminder{}, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query reminder failed"})
		return models.Reminder{}, false
	}
	return reminder, true
}

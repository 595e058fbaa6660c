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

// CalendarHandler manages per-user calendar events.
type CalendarHandler struct {
	db *gorm.DB
}

// NewCalendarHandler constructs a CalendarHandler.
func NewCalendarHandler(db *gorm.DB) *CalendarHandler {
	return &CalendarHandler{db: db}
}

// eventRequest defines the request body for creating or updating an event.
type eventRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
}

// Create adds a calendar event for the caller.
func (h *CalendarHandler) Create(c *gin.Context) {
	userID := getUserID(c)

	var body eventRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	title := strings.TrimSpace(body.Title)
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing title"})
		return
	}
	if body.StartsAt == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing starts_at"})
		return
	}
	if body.EndsAt != nil && body.EndsAt.Before(*body.StartsAt) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ends_at before starts_at"})
		return
	}

	event := models.CalendarEvent{
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(body.Description),
		StartsAt:    *body.StartsAt,
		EndsAt:      body.EndsAt,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&event).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create event failed"})
		return
	}
	c.JSON(http.StatusCreated, event)
}

// List returns the caller's events within an optional [from, to) window.
func (h *CalendarHandler) List(c *gin.Context) {
	userID := getUserID(c)

	query := h.db.WithContext(c.Request.Context()).Where("user_id = ?", userID)
	if from := c.Query("from"); from != "" {
		ts, errParse := time.Parse(time.RFC3339, from)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from timestamp"})
			return
		}
		query = query.Where("starts_at >= ?", ts)
	}
	if to := c.Query("to"); to != "" {
		ts, errParse := time.Parse(time.RFC3339, to)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to timestamp"})
			return
		}
		query = query.Where("starts_at < ?", ts)
	}

	var events []models.CalendarEvent
	if errFind := query.Order("starts_at ASC").Find(&events).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list events failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// Update modifies an event owned by the caller.
func (h *CalendarHandler) Update(c *gin.Context) {
	event, ok := h.loadOwned(c)
	if !ok {
		return
	}

	var body eventRequest
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
	if body.StartsAt != nil {
		updates["starts_at"] = *body.StartsAt
	}
	if body.EndsAt != nil {
		updates["ends_at"] = *body.EndsAt
	}

	if errSave := h.db.WithContext(c.Request.Context()).Model(&event).Updates(updates).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update event failed"})
		return
	}
	c.JSON(http.StatusOK, event)
}

// Delete removes an event owned by the caller.
func (h *CalendarHandler) Delete(c *gin.Context) {
	event, ok := h.loadOwned(c)
	if !ok {
		return
	}
	if errDel := h.db.WithContext(c.Request.Context()).Delete(&event).Error; errDel != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete event failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": event.ID})
}

func (h *CalendarHandler) loadOwned(c *gin.Context) (models.CalendarEvent, bool) {
	userID := getUserID(c)

	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return models.CalendarEvent{}, false
	}

	var event models.CalendarEvent
	errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", id, userID).
		First(&event).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return models.CalendarEvent{}, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query event failed"})
		return models.CalendarEvent{}, false
	}
	return event, true
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/aiforge/aiforge/internal/usage"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UsageHandler exposes per-user usage aggregates and history.
type UsageHandler struct {
	db *gorm.DB
}

// NewUsageHandler constructs a UsageHandler.
func NewUsageHandler(db *gorm.DB) *UsageHandler {
	return &UsageHandler{db: db}
}

// Overview returns windowed aggregates plus the caller's most recent usage
// rows, newest first. ?limit caps the history portion.
func (h *UsageHandler) Overview(c *gin.Context) {
	userID := getUserID(c)
	ctx := c.Request.Context()

	stats, errStats := usage.Stats(ctx, h.db, userID)
	if errStats != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query usage stats failed"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	rows, errRecent := usage.Recent(ctx, h.db, userID, limit)
	if errRecent != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query usage history failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":  stats,
		"recent": rows,
	})
}

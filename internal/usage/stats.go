package usage

import (
	"context"
	"time"

	"github.com/aiforge/aiforge/internal/models"
	"gorm.io/gorm"
)

// Summary aggregates usage over a time window.
type Summary struct {
	TotalRequests int64   `json:"total_requests"`
	TotalTokens   int64   `json:"total_tokens"`
	TotalCost     float64 `json:"total_cost"`
}

// Stats returns window aggregates for a user: today, last 7 and last 30 days.
func Stats(ctx context.Context, db *gorm.DB, userID uint64) (map[string]Summary, error) {
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	periods := map[string]time.Time{
		"today":   today,
		"7_days":  today.AddDate(0, 0, -6),
		"30_days": today.AddDate(0, 0, -29),
	}

	out := make(map[string]Summary, len(periods))
	for name, since := range periods {
		var summary Summary
		if errScan := db.WithContext(ctx).Model(&models.Usage{}).
			Where("user_id = ? AND created_at >= ?", userID, since).
			Select("COUNT(*) AS total_requests, COALESCE(SUM(total_tokens), 0) AS total_tokens, COALESCE(SUM(cost_estimate), 0) AS total_cost").
			Scan(&summary).Error; errScan != nil {
			return nil, errScan
		}
		out[name] = summary
	}
	return out, nil
}

// Recent returns the most recent usage rows for a user, newest first.
func Recent(ctx context.Context, db *gorm.DB, userID uint64, limit int) ([]models.Usage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []models.Usage
	errFind := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, errFind
}

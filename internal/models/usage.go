package models

import (
	"time"

	"gorm.io/datatypes"
)

// Usage records metering data for a single generation attempt.
type Usage struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID   *uint64 `gorm:"index"`                    // Related user ID, nil for anonymous callers.
	Provider string  `gorm:"type:text;not null;index"` // Provider name.
	Model    string  `gorm:"type:text"`                // Model name.
	Endpoint string  `gorm:"type:text"`                // Calling surface label.

	Failed          bool           `gorm:"not null;default:false"` // Failure flag.
	ErrorStatusCode *int           `gorm:"index"`                  // Upstream HTTP status code for failed requests.
	ErrorDetail     datatypes.JSON `gorm:"type:jsonb"`             // Structured error detail JSON.

	PromptTokens     int64 `gorm:"not null;default:0"` // Prompt token count.
	CompletionTokens int64 `gorm:"not null;default:0"` // Completion token count.
	TotalTokens      int64 `gorm:"not null;default:0"` // Total token count.

	CostEstimate float64 `gorm:"not null;default:0"` // Estimated cost in USD.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}

package usage

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/aiforge/aiforge/internal/credentials"
	"github.com/aiforge/aiforge/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Record captures accounting data for one generation attempt.
type Record struct {
	UserID   *uint64 // Nil for anonymous callers.
	Provider string  // Provider id used.
	Model    string  // Model used.
	Endpoint string  // Calling surface label, e.g. "/ai/generate".

	Failed          bool   // True when the attempt did not return a completion.
	ErrorStatusCode *int   // Upstream HTTP status for failed attempts.
	ErrorMessage    string // Short error description for failed attempts.

	PromptTokens     int64 // Prompt token count, zero when unknown.
	CompletionTokens int64 // Completion token count, zero when unknown.
	TotalTokens      int64 // Total token count, zero when unknown.

	FromUserCredential bool // True when a stored per-user key served the attempt.
}

// Recorder persists usage rows and keeps the per-user aggregate counter
// consistent with them.
type Recorder struct {
	db              *gorm.DB
	creds           *credentials.Store
	costPer1KTokens float64
}

// NewRecorder constructs a Recorder.
func NewRecorder(db *gorm.DB, creds *credentials.Store, costPer1KTokens float64) *Recorder {
	return &Recorder{db: db, creds: creds, costPer1KTokens: costPer1KTokens}
}

// Record appends a usage row and increments the user's total_tokens counter
// in one transaction. It also touches last_used on the credential that served
// the attempt. Recording failures are logged, never propagated: losing an
// accounting row must not turn a successful generation into an error.
//
// Uses a detached context so a cancelled request cannot drop accounting.
func (r *Recorder) Record(ctx context.Context, rec Record) {
	if r == nil || r.db == nil {
		return
	}

	dbCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	totalTokens := rec.TotalTokens
	if totalTokens == 0 {
		totalTokens = rec.PromptTokens + rec.CompletionTokens
	}

	cost := 0.0
	if !rec.Failed {
		cost = float64(totalTokens) / 1000.0 * r.costPer1KTokens
	}

	var errorDetail datatypes.JSON
	if rec.Failed && rec.ErrorMessage != "" {
		if raw, errMarshal := json.Marshal(map[string]string{"message": rec.ErrorMessage}); errMarshal == nil {
			errorDetail = raw
		}
	}

	row := models.Usage{
		UserID:           rec.UserID,
		Provider:         strings.TrimSpace(rec.Provider),
		Model:            strings.TrimSpace(rec.Model),
		Endpoint:         rec.Endpoint,
		Failed:           rec.Failed,
		ErrorStatusCode:  rec.ErrorStatusCode,
		ErrorDetail:      errorDetail,
		PromptTokens:     rec.PromptTokens,
		CompletionTokens: rec.CompletionTokens,
		TotalTokens:      totalTokens,
		CostEstimate:     cost,
		CreatedAt:        time.Now().UTC(),
	}

	if errTx := r.db.WithContext(dbCtx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&row).Error; errCreate != nil {
			return errCreate
		}
		if rec.UserID != nil && totalTokens > 0 {
			if errUpdate := tx.Model(&models.User{}).
				Where("id = ?", *rec.UserID).
				Update("total_tokens", gorm.Expr("total_tokens + ?", totalTokens)).Error; errUpdate != nil {
				return errUpdate
			}
		}
		return nil
	}); errTx != nil {
		log.WithError(errTx).WithFields(log.Fields{
			"provider": row.Provider,
			"endpoint": row.Endpoint,
		}).Warn("usage recorder: failed to persist usage")
		return
	}

	if rec.FromUserCredential && rec.UserID != nil && r.creds != nil {
		if errTouch := r.creds.Touch(dbCtx, *rec.UserID, row.Provider); errTouch != nil {
			log.WithError(errTouch).Warn("usage recorder: failed to touch credential")
		}
	}
}

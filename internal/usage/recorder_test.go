package usage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aiforge/aiforge/internal/credentials"
	"github.com/aiforge/aiforge/internal/db"
	"github.com/aiforge/aiforge/internal/models"
	"github.com/aiforge/aiforge/internal/security"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:usage_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := db.Open(dsn)
	if errOpen != nil {
		t.Fatalf("open test db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate test db: %v", errMigrate)
	}
	return conn
}

func seedUser(t *testing.T, conn *gorm.DB) uint64 {
	t.Helper()
	user := models.User{Username: "alice", Password: "x", Active: true}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("seed user: %v", errCreate)
	}
	return user.ID
}

func TestRecordSuccessPersistsRowAndCounter(t *testing.T) {
	conn := testDB(t)
	userID := seedUser(t, conn)
	recorder := NewRecorder(conn, nil, 0.002)

	recorder.Record(context.Background(), Record{
		UserID:           &userID,
		Provider:         "openai",
		Model:            "gpt-4o-mini",
		Endpoint:         "/ai/generate",
		PromptTokens:     100,
		CompletionTokens: 400,
		TotalTokens:      500,
	})

	var row models.Usage
	if errFind := conn.First(&row).Error; errFind != nil {
		t.Fatalf("expected a usage row, got %v", errFind)
	}
	if row.TotalTokens != 500 {
		t.Fatalf("expected 500 total tokens, got %d", row.TotalTokens)
	}
	if row.Failed {
		t.Fatalf("expected success row")
	}
	if row.CostEstimate != 0.001 {
		t.Fatalf("expected cost 0.001, got %v", row.CostEstimate)
	}

	var user models.User
	if errFind := conn.First(&user, userID).Error; errFind != nil {
		t.Fatalf("load user: %v", errFind)
	}
	if user.TotalTokens != 500 {
		t.Fatalf("expected user counter 500, got %d", user.TotalTokens)
	}
}

func TestRecordDerivesTotalFromParts(t *testing.T) {
	conn := testDB(t)
	userID := seedUser(t, conn)
	recorder := NewRecorder(conn, nil, 0.002)

	recorder.Record(context.Background(), Record{
		UserID:           &userID,
		Provider:         "openai",
		Model:            "gpt-4o-mini",
		Endpoint:         "/ai/generate",
		PromptTokens:     10,
		CompletionTokens: 20,
	})

	var row models.Usage
	if errFind := conn.First(&row).Error; errFind != nil {
		t.Fatalf("expected a usage row, got %v", errFind)
	}
	if row.TotalTokens != 30 {
		t.Fatalf("expected derived total 30, got %d", row.TotalTokens)
	}
}

func TestRecordFailureCarriesNoCost(t *testing.T) {
	conn := testDB(t)
	userID := seedUser(t, conn)
	recorder := NewRecorder(conn, nil, 0.002)

	status := 429
	recorder.Record(context.Background(), Record{
		UserID:          &userID,
		Provider:        "groq",
		Model:           "llama-3.1-8b-instant",
		Endpoint:        "/ai/generate",
		Failed:          true,
		ErrorStatusCode: &status,
		ErrorMessage:    "rate limited",
	})

	var row models.Usage
	if errFind := conn.First(&row).Error; errFind != nil {
		t.Fatalf("expected a usage row for the failure, got %v", errFind)
	}
	if !row.Failed {
		t.Fatalf("expected failed row")
	}
	if row.ErrorStatusCode == nil || *row.ErrorStatusCode != 429 {
		t.Fatalf("expected status 429, got %v", row.ErrorStatusCode)
	}
	if row.CostEstimate != 0 {
		t.Fatalf("expected zero cost on failure, got %v", row.CostEstimate)
	}
	if len(row.ErrorDetail) == 0 {
		t.Fatalf("expected error detail to be recorded")
	}

	var user models.User
	conn.First(&user, userID)
	if user.TotalTokens != 0 {
		t.Fatalf("expected user counter unchanged, got %d", user.TotalTokens)
	}
}

func TestRecordTouchesUserCredential(t *testing.T) {
	conn := testDB(t)
	userID := seedUser(t, conn)
	cipher, _ := security.NewCipher("test-passphrase")
	store := credentials.NewStore(conn, cipher)
	if errSave := store.Save(context.Background(), userID, "openai", "sk-key"); errSave != nil {
		t.Fatalf("save credential: %v", errSave)
	}

	recorder := NewRecorder(conn, store, 0.002)
	recorder.Record(context.Background(), Record{
		UserID:             &userID,
		Provider:           "openai",
		Model:              "gpt-4o-mini",
		Endpoint:           "/ai/generate",
		TotalTokens:        10,
		FromUserCredential: true,
	})

	infos, errList := store.List(context.Background(), userID)
	if errList != nil || len(infos) != 1 {
		t.Fatalf("expected one credential, got %v (err %v)", infos, errList)
	}
	if infos[0].LastUsed == nil {
		t.Fatalf("expected last_used to be touched")
	}
}

func TestRecordAnonymousCaller(t *testing.T) {
	conn := testDB(t)
	recorder := NewRecorder(conn, nil, 0.002)

	recorder.Record(context.Background(), Record{
		Provider:    "openai",
		Model:       "gpt-4o-mini",
		Endpoint:    "/ai/generate",
		TotalTokens: 10,
	})

	var count int64
	conn.Model(&models.Usage{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected one usage row, got %d", count)
	}
}

func TestStatsAggregatesWindows(t *testing.T) {
	conn := testDB(t)
	userID := seedUser(t, conn)
	recorder := NewRecorder(conn, nil, 0.002)

	for i := 0; i < 3; i++ {
		recorder.Record(context.Background(), Record{
			UserID:      &userID,
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Endpoint:    "/ai/generate",
			TotalTokens: 100,
		})
	}

	stats, errStats := Stats(context.Background(), conn, userID)
	if errStats != nil {
		t.Fatalf("expected stats, got %v", errStats)
	}
	today := stats["today"]
	if today.TotalRequests != 3 {
		t.Fatalf("expected 3 requests today, got %d", today.TotalRequests)
	}
	if today.TotalTokens != 300 {
		t.Fatalf("expected 300 tokens today, got %d", today.TotalTokens)
	}
	if stats["30_days"].TotalRequests != 3 {
		t.Fatalf("expected 30-day window to include today's rows")
	}
}

func TestRecentNewestFirst(t *testing.T) {
	conn := testDB(t)
	userID := seedUser(t, conn)
	recorder := NewRecorder(conn, nil, 0.002)

	recorder.Record(context.Background(), Record{UserID: &userID, Provider: "openai", Endpoint: "/ai/generate", TotalTokens: 1})
	recorder.Record(context.Background(), Record{UserID: &userID, Provider: "groq", Endpoint: "/ai/generate", TotalTokens: 2})

	rows, errRecent := Recent(context.Background(), conn, userID, 10)
	if errRecent != nil {
		t.Fatalf("expected recent rows, got %v", errRecent)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Provider != "groq" {
		t.Fatalf("expected newest row first, got %q", rows[0].Provider)
	}
}

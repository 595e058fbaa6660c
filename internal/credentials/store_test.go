package credentials

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aiforge/aiforge/internal/db"
	"github.com/aiforge/aiforge/internal/security"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:credentials_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := db.Open(dsn)
	if errOpen != nil {
		t.Fatalf("open test db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate test db: %v", errMigrate)
	}
	return conn
}

func testStore(t *testing.T) *Store {
	t.Helper()
	cipher, errCipher := security.NewCipher("test-passphrase")
	if errCipher != nil {
		t.Fatalf("new cipher: %v", errCipher)
	}
	return NewStore(testDB(t), cipher)
}

func TestStoreSaveAndGet(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if errSave := store.Save(ctx, 1, "openai", "sk-original-key-123456"); errSave != nil {
		t.Fatalf("expected save to succeed, got %v", errSave)
	}

	key, errGet := store.Get(ctx, 1, "openai")
	if errGet != nil {
		t.Fatalf("expected get to succeed, got %v", errGet)
	}
	if key != "sk-original-key-123456" {
		t.Fatalf("expected stored key back, got %q", key)
	}
}

func TestStoreSaveReplacesExistingKey(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if errSave := store.Save(ctx, 1, "openai", "sk-first"); errSave != nil {
		t.Fatalf("first save: %v", errSave)
	}
	if errSave := store.Save(ctx, 1, "openai", "sk-second"); errSave != nil {
		t.Fatalf("expected second save to upsert, got %v", errSave)
	}

	key, _ := store.Get(ctx, 1, "openai")
	if key != "sk-second" {
		t.Fatalf("expected replacement key, got %q", key)
	}

	infos, errList := store.List(ctx, 1)
	if errList != nil {
		t.Fatalf("list: %v", errList)
	}
	if len(infos) != 1 {
		t.Fatalf("expected a single row after upsert, got %d", len(infos))
	}
}

func TestStoreIsolatesUsers(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if errSave := store.Save(ctx, 1, "openai", "sk-user-one"); errSave != nil {
		t.Fatalf("save: %v", errSave)
	}
	if _, errGet := store.Get(ctx, 2, "openai"); errGet != ErrNotFound {
		t.Fatalf("expected ErrNotFound for other user, got %v", errGet)
	}
}

func TestStoreListMasksKeys(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if errSave := store.Save(ctx, 1, "groq", "gsk-1234567890abcdef"); errSave != nil {
		t.Fatalf("save: %v", errSave)
	}

	infos, errList := store.List(ctx, 1)
	if errList != nil {
		t.Fatalf("list: %v", errList)
	}
	if len(infos) != 1 {
		t.Fatalf("expected one key, got %d", len(infos))
	}
	if infos[0].MaskedKey != "gsk-...cdef" {
		t.Fatalf("expected masked key gsk-...cdef, got %q", infos[0].MaskedKey)
	}
	if infos[0].MaskedKey == "gsk-1234567890abcdef" {
		t.Fatalf("expected list to never expose the plaintext key")
	}
}

func TestStoreDelete(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if errSave := store.Save(ctx, 1, "openai", "sk-key"); errSave != nil {
		t.Fatalf("save: %v", errSave)
	}
	if errDel := store.Delete(ctx, 1, "openai"); errDel != nil {
		t.Fatalf("expected delete to succeed, got %v", errDel)
	}
	if errDel := store.Delete(ctx, 1, "openai"); errDel != ErrNotFound {
		t.Fatalf("expected ErrNotFound for second delete, got %v", errDel)
	}
}

func TestStoreTouchSetsLastUsed(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if errSave := store.Save(ctx, 1, "openai", "sk-key"); errSave != nil {
		t.Fatalf("save: %v", errSave)
	}
	if errTouch := store.Touch(ctx, 1, "openai"); errTouch != nil {
		t.Fatalf("expected touch to succeed, got %v", errTouch)
	}

	infos, _ := store.List(ctx, 1)
	if len(infos) != 1 || infos[0].LastUsed == nil {
		t.Fatalf("expected last_used to be set after touch")
	}

	// Touching a missing row is a no-op, not an error.
	if errTouch := store.Touch(ctx, 1, "groq"); errTouch != nil {
		t.Fatalf("expected missing-row touch to be a no-op, got %v", errTouch)
	}
}

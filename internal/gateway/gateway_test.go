package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aiforge/aiforge/internal/credentials"
	"github.com/aiforge/aiforge/internal/db"
	"github.com/aiforge/aiforge/internal/models"
	"github.com/aiforge/aiforge/internal/registry"
	"github.com/aiforge/aiforge/internal/security"
	"github.com/aiforge/aiforge/internal/usage"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:gateway_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := db.Open(dsn)
	if errOpen != nil {
		t.Fatalf("open test db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate test db: %v", errMigrate)
	}
	return conn
}

// testGateway wires a gateway against the given upstream base URL with one
// env-credentialed provider, plus the backing db for assertions.
func testGateway(t *testing.T, baseURL string, streaming bool) (*Gateway, *gorm.DB, uint64) {
	t.Helper()
	conn := testDB(t)

	user := models.User{Username: "alice", Password: "x", Active: true}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("seed user: %v", errCreate)
	}

	reg := registry.FromDescriptors([]registry.Descriptor{
		{
			ID:                "mock",
			BaseURL:           baseURL,
			DefaultModel:      "mock-model",
			EnvKey:            "TEST_MOCK_KEY",
			SupportsStreaming: streaming,
		},
	})
	t.Setenv("TEST_MOCK_KEY", "test-key")

	cipher, _ := security.NewCipher("test-passphrase")
	store := credentials.NewStore(conn, cipher)
	resolver := credentials.NewResolver(store, reg)
	recorder := usage.NewRecorder(conn, store, 0.002)
	return New(reg, resolver, recorder), conn, user.ID
}

func usageRows(t *testing.T, conn *gorm.DB) []models.Usage {
	t.Helper()
	var rows []models.Usage
	if errFind := conn.Find(&rows).Error; errFind != nil {
		t.Fatalf("load usage rows: %v", errFind)
	}
	return rows
}

func TestGenerateSuccess(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("expected bearer test-key, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "cmpl-1",
			"object": "chat.completion",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "hello world"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 7, "completion_tokens": 2, "total_tokens": 9}
		}`)
	}))
	defer server.Close()

	gw, conn, userID := testGateway(t, server.URL, true)

	res, errGen := gw.Generate(context.Background(), Request{Prompt: "say hello", UserID: &userID})
	if errGen != nil {
		t.Fatalf("expected success, got %v", errGen)
	}
	if res.Text != "hello world" {
		t.Fatalf("expected completion text, got %q", res.Text)
	}
	if res.Provider != "mock" {
		t.Fatalf("expected provider mock, got %q", res.Provider)
	}
	if res.Model != "mock-model" {
		t.Fatalf("expected default model, got %q", res.Model)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected exactly one upstream call, got %d", calls)
	}

	rows := usageRows(t, conn)
	if len(rows) != 1 {
		t.Fatalf("expected exactly one usage row, got %d", len(rows))
	}
	if rows[0].Failed {
		t.Fatalf("expected success row")
	}
	if rows[0].TotalTokens != 9 {
		t.Fatalf("expected upstream token count 9, got %d", rows[0].TotalTokens)
	}
	if rows[0].Endpoint != "/ai/generate" {
		t.Fatalf("expected default endpoint label, got %q", rows[0].Endpoint)
	}
}

func TestGenerateUpstreamErrorIsNormalized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error": {"message": "rate limit exceeded", "type": "rate_limit_error"}}`)
	}))
	defer server.Close()

	gw, conn, userID := testGateway(t, server.URL, true)

	_, errGen := gw.Generate(context.Background(), Request{Prompt: "hi", UserID: &userID})
	var upstreamErr *UpstreamError
	if !errors.As(errGen, &upstreamErr) {
		t.Fatalf("expected UpstreamError, got %v", errGen)
	}
	if upstreamErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", upstreamErr.StatusCode)
	}
	if upstreamErr.Provider != "mock" {
		t.Fatalf("expected provider mock, got %q", upstreamErr.Provider)
	}

	rows := usageRows(t, conn)
	if len(rows) != 1 {
		t.Fatalf("expected exactly one usage row for the failure, got %d", len(rows))
	}
	if !rows[0].Failed {
		t.Fatalf("expected failed row")
	}
	if rows[0].TotalTokens != 0 {
		t.Fatalf("expected zero tokens on failure, got %d", rows[0].TotalTokens)
	}
	if rows[0].ErrorStatusCode == nil || *rows[0].ErrorStatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected error status 429, got %v", rows[0].ErrorStatusCode)
	}
}

func TestGenerateEmptyPrompt(t *testing.T) {
	gw, conn, userID := testGateway(t, "http://unused.test/v1", true)

	_, errGen := gw.Generate(context.Background(), Request{Prompt: "   ", UserID: &userID})
	if !errors.Is(errGen, ErrEmptyPrompt) {
		t.Fatalf("expected ErrEmptyPrompt, got %v", errGen)
	}
	if rows := usageRows(t, conn); len(rows) != 0 {
		t.Fatalf("expected no usage rows, got %d", len(rows))
	}
}

func TestGenerateUnknownProviderPassesThrough(t *testing.T) {
	gw, conn, userID := testGateway(t, "http://unused.test/v1", true)

	_, errGen := gw.Generate(context.Background(), Request{Prompt: "hi", Provider: "nonsense", UserID: &userID})
	if !errors.Is(errGen, credentials.ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", errGen)
	}
	if rows := usageRows(t, conn); len(rows) != 0 {
		t.Fatalf("expected no usage rows, got %d", len(rows))
	}
}

func TestGenerateNoProviderAvailable(t *testing.T) {
	conn := testDB(t)
	reg := registry.FromDescriptors([]registry.Descriptor{
		{ID: "mock", BaseURL: "http://unused.test/v1", DefaultModel: "m", EnvKey: "TEST_UNSET_KEY"},
	})
	cipher, _ := security.NewCipher("test-passphrase")
	store := credentials.NewStore(conn, cipher)
	gw := New(reg, credentials.NewResolver(store, reg), usage.NewRecorder(conn, store, 0.002))

	userID := uint64(1)
	_, errGen := gw.Generate(context.Background(), Request{Prompt: "hi", UserID: &userID})
	if !errors.Is(errGen, ErrNoProviderAvailable) {
		t.Fatalf("expected ErrNoProviderAvailable, got %v", errGen)
	}
	if rows := usageRows(t, conn); len(rows) != 0 {
		t.Fatalf("expected no usage rows, got %d", len(rows))
	}
}

func TestAutoSelectPicksFirstResolvableProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices": [{"index": 0, "message": {"role": "assistant", "content": "ok"}}], "usage": {"total_tokens": 2}}`)
	}))
	defer server.Close()

	conn := testDB(t)
	reg := registry.FromDescriptors([]registry.Descriptor{
		{ID: "first", BaseURL: server.URL, DefaultModel: "m1", EnvKey: "TEST_UNSET_FIRST"},
		{ID: "second", BaseURL: server.URL, DefaultModel: "m2", EnvKey: "TEST_SET_SECOND"},
		{ID: "third", BaseURL: server.URL, DefaultModel: "m3", EnvKey: "TEST_SET_THIRD"},
	})
	t.Setenv("TEST_SET_SECOND", "key-two")
	t.Setenv("TEST_SET_THIRD", "key-three")

	cipher, _ := security.NewCipher("test-passphrase")
	store := credentials.NewStore(conn, cipher)
	gw := New(reg, credentials.NewResolver(store, reg), usage.NewRecorder(conn, store, 0.002))

	userID := uint64(1)
	res, errGen := gw.Generate(context.Background(), Request{Prompt: "hi", Provider: ProviderAuto, UserID: &userID})
	if errGen != nil {
		t.Fatalf("expected success, got %v", errGen)
	}
	if res.Provider != "second" {
		t.Fatalf("expected first resolvable provider (second), got %q", res.Provider)
	}
}

func TestStreamGenerateRelaysChunks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"id\":\"1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"Hello\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"id\":\"1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\" there\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	gw, conn, userID := testGateway(t, server.URL, true)

	chunks, errStart := gw.StreamGenerate(context.Background(), Request{Prompt: "greet me", UserID: &userID, Endpoint: "/ai/stream"})
	if errStart != nil {
		t.Fatalf("expected stream to open, got %v", errStart)
	}

	var text string
	var terminals int
	for chunk := range chunks {
		if chunk.Err != nil {
			t.Fatalf("unexpected stream error: %v", chunk.Err)
		}
		if chunk.Done {
			terminals++
			continue
		}
		text += chunk.Content
	}
	if text != "Hello there" {
		t.Fatalf("expected accumulated text, got %q", text)
	}
	if terminals != 1 {
		t.Fatalf("expected exactly one terminal chunk, got %d", terminals)
	}

	rows := usageRows(t, conn)
	if len(rows) != 1 {
		t.Fatalf("expected exactly one usage row, got %d", len(rows))
	}
	if rows[0].Failed {
		t.Fatalf("expected success row")
	}
	if rows[0].TotalTokens == 0 {
		t.Fatalf("expected estimated tokens when upstream reports none")
	}
	if rows[0].Endpoint != "/ai/stream" {
		t.Fatalf("expected stream endpoint label, got %q", rows[0].Endpoint)
	}
}

func TestStreamGenerateFallsBackForNonStreamingProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices": [{"index": 0, "message": {"role": "assistant", "content": "single shot"}}], "usage": {"total_tokens": 4}}`)
	}))
	defer server.Close()

	gw, conn, userID := testGateway(t, server.URL, false)

	chunks, errStart := gw.StreamGenerate(context.Background(), Request{Prompt: "hi", UserID: &userID})
	if errStart != nil {
		t.Fatalf("expected fallback stream to open, got %v", errStart)
	}

	var collected []Chunk
	for chunk := range chunks {
		collected = append(collected, chunk)
	}
	if len(collected) != 2 {
		t.Fatalf("expected content chunk plus terminal, got %d chunks", len(collected))
	}
	if collected[0].Content != "single shot" {
		t.Fatalf("expected full text in one chunk, got %q", collected[0].Content)
	}
	if !collected[1].Done {
		t.Fatalf("expected terminal Done chunk")
	}

	if rows := usageRows(t, conn); len(rows) != 1 {
		t.Fatalf("expected exactly one usage row, got %d", len(rows))
	}
}

func TestStreamGenerateClosesAfterConsumerCancels(t *testing.T) {
	// Emit exactly as many content chunks as the channel buffers, so the
	// terminal marker cannot be delivered until someone reads or cancels.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for i := 0; i < 8; i++ {
			fmt.Fprintf(w, "data: {\"id\":\"1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"chunk%d \"}}]}\n\n", i)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	gw, conn, userID := testGateway(t, server.URL, true)

	ctx, cancel := context.WithCancel(context.Background())
	chunks, errStart := gw.StreamGenerate(ctx, Request{Prompt: "fill the buffer", UserID: &userID})
	if errStart != nil {
		t.Fatalf("expected stream to open, got %v", errStart)
	}

	// Let the relay buffer everything and reach the terminal send, then
	// walk away without reading.
	time.Sleep(200 * time.Millisecond)
	cancel()
	time.Sleep(100 * time.Millisecond)

	done := make(chan bool, 1)
	go func() {
		sawTerminal := false
		for chunk := range chunks {
			if chunk.Done || chunk.Err != nil {
				sawTerminal = true
			}
		}
		done <- sawTerminal
	}()

	select {
	case sawTerminal := <-done:
		if sawTerminal {
			t.Fatalf("expected no terminal chunk after cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected stream channel to close after cancellation")
	}

	if rows := usageRows(t, conn); len(rows) != 1 {
		t.Fatalf("expected the completed attempt to still be recorded, got %d rows", len(rows))
	}
}

func TestStreamGenerateEmptyPrompt(t *testing.T) {
	gw, _, userID := testGateway(t, "http://unused.test/v1", true)
	if _, errStart := gw.StreamGenerate(context.Background(), Request{Prompt: "", UserID: &userID}); !errors.Is(errStart, ErrEmptyPrompt) {
		t.Fatalf("expected ErrEmptyPrompt, got %v", errStart)
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := estimateTokens("one two three"); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	if got := estimateTokens(""); got != 0 {
		t.Fatalf("expected 0 for empty text, got %d", got)
	}
}

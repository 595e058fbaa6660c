package registry

import "testing"

func TestNewDeclaresProvidersInStableOrder(t *testing.T) {
	reg := New(Options{})

	ids := reg.IDs()
	expected := []string{"openai", "groq", "together", "mistral", "openrouter", "deepseek", "perplexity", "fireworks", "xai"}
	if len(ids) != len(expected) {
		t.Fatalf("expected %d providers, got %d: %v", len(expected), len(ids), ids)
	}
	for i, id := range expected {
		if ids[i] != id {
			t.Fatalf("expected provider %q at position %d, got %q", id, i, ids[i])
		}
	}
}

func TestOpenRouterCarriesAttributionHeaders(t *testing.T) {
	reg := New(Options{OpenRouterReferer: "https://example.com", OpenRouterTitle: "Example"})

	desc, ok := reg.Lookup("openrouter")
	if !ok {
		t.Fatalf("expected openrouter to be registered")
	}
	if desc.ExtraHeaders["HTTP-Referer"] != "https://example.com" {
		t.Fatalf("expected referer header, got %q", desc.ExtraHeaders["HTTP-Referer"])
	}
	if desc.ExtraHeaders["X-Title"] != "Example" {
		t.Fatalf("expected title header, got %q", desc.ExtraHeaders["X-Title"])
	}
}

func TestCustomProviderOnlyWithBaseURL(t *testing.T) {
	reg := New(Options{})
	if _, ok := reg.Lookup("custom"); ok {
		t.Fatalf("expected custom provider to be absent without a base url")
	}

	reg = New(Options{CustomBaseURL: "http://localhost:8000/v1/", CustomModel: "local-model"})
	desc, ok := reg.Lookup("custom")
	if !ok {
		t.Fatalf("expected custom provider to be registered")
	}
	if desc.BaseURL != "http://localhost:8000/v1" {
		t.Fatalf("expected trailing slash to be trimmed, got %q", desc.BaseURL)
	}
	if desc.DefaultModel != "local-model" {
		t.Fatalf("expected default model local-model, got %q", desc.DefaultModel)
	}
	if desc.SupportsStreaming {
		t.Fatalf("expected custom provider to not support streaming")
	}
}

func TestBuiltinProvidersSupportStreaming(t *testing.T) {
	reg := New(Options{})
	for _, id := range reg.IDs() {
		desc, _ := reg.Lookup(id)
		if !desc.SupportsStreaming {
			t.Fatalf("expected %s to support streaming", id)
		}
	}
}

func TestFromDescriptorsDropsDuplicates(t *testing.T) {
	reg := FromDescriptors([]Descriptor{
		{ID: "a", DefaultModel: "first"},
		{ID: "a", DefaultModel: "second"},
		{ID: "b"},
	})
	if got := len(reg.IDs()); got != 2 {
		t.Fatalf("expected 2 providers, got %d", got)
	}
	desc, _ := reg.Lookup("a")
	if desc.DefaultModel != "first" {
		t.Fatalf("expected first declaration to win, got %q", desc.DefaultModel)
	}
}

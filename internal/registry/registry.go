package registry

import "strings"

// Descriptor describes one upstream OpenAI-compatible provider.
type Descriptor struct {
	ID           string            // Unique provider identifier.
	BaseURL      string            // Chat-completion base endpoint.
	DefaultModel string            // Model used when the caller does not specify one.
	Models       []string          // Selectable models surfaced to callers; informational only.
	EnvKey       string            // Name of the process-wide fallback credential, if any.
	ExtraHeaders map[string]string // Static identification headers beyond the bearer token.

	// SupportsStreaming marks providers known to deliver SSE chat streams.
	// Non-streaming providers fall back to a single-shot call.
	SupportsStreaming bool
}

// Registry is an immutable, ordered set of provider descriptors.
// Order matters: auto-selection iterates providers in declaration order.
type Registry struct {
	order []string
	byID  map[string]Descriptor
}

// Options tunes provider entries that depend on deployment configuration.
type Options struct {
	OpenRouterReferer string // HTTP-Referer for OpenRouter attribution.
	OpenRouterTitle   string // X-Title for OpenRouter attribution.
	CustomBaseURL     string // Base URL of the "custom" provider; empty disables it.
	CustomModel       string // Default model of the "custom" provider.
}

// New builds the provider registry. The returned value is never mutated.
func New(opts Options) *Registry {
	referer := opts.OpenRouterReferer
	if referer == "" {
		referer = "https://localhost"
	}
	title := opts.OpenRouterTitle
	if title == "" {
		title = "AIForge"
	}

	descriptors := []Descriptor{
		{
			ID:           "openai",
			BaseURL:      "https://api.openai.com/v1",
			DefaultModel: "gpt-4o-mini",
			Models:       []string{"gpt-4o", "gpt-4o-mini", "o1-mini", "o1"},
			EnvKey:       "OPENAI_API_KEY",
		},
		{
			ID:           "groq",
			BaseURL:      "https://api.groq.com/openai/v1",
			DefaultModel: "llama-3.1-70b-versatile",
			Models:       []string{"llama-3.1-70b-versatile", "llama-3.1-8b-instant", "mixtral-8x7b-32768"},
			EnvKey:       "GROQ_API_KEY",
		},
		{
			ID:           "together",
			BaseURL:      "https://api.together.xyz/v1",
			DefaultModel: "meta-llama/Meta-Llama-3.1-70B-Instruct-Turbo",
			Models:       []string{"meta-llama/Meta-Llama-3.1-70B-Instruct-Turbo", "Qwen/Qwen2.5-72B-Instruct-Turbo"},
			EnvKey:       "TOGETHER_API_KEY",
		},
		{
			ID:           "mistral",
			BaseURL:      "https://api.mistral.ai/v1",
			DefaultModel: "mistral-large-latest",
			Models:       []string{"mistral-large-latest", "mistral-small-latest", "codestral-latest"},
			EnvKey:       "MISTRAL_API_KEY",
		},
		{
			ID:           "openrouter",
			BaseURL:      "https://openrouter.ai/api/v1",
			DefaultModel: "openai/gpt-4o-mini",
			Models:       []string{"openai/gpt-4o-mini", "anthropic/claude-3.5-sonnet", "google/gemini-1.5-pro"},
			EnvKey:       "OPENROUTER_API_KEY",
			ExtraHeaders: map[string]string{
				"HTTP-Referer": referer,
				"X-Title":      title,
			},
		},
		{
			ID:           "deepseek",
			BaseURL:      "https://api.deepseek.com/v1",
			DefaultModel: "deepseek-chat",
			Models:       []string{"deepseek-chat", "deepseek-reasoner"},
			EnvKey:       "DEEPSEEK_API_KEY",
		},
		{
			ID:           "perplexity",
			BaseURL:      "https://api.perplexity.ai",
			DefaultModel: "sonar",
			Models:       []string{"sonar", "sonar-pro"},
			EnvKey:       "PERPLEXITY_API_KEY",
		},
		{
			ID:           "fireworks",
			BaseURL:      "https://api.fireworks.ai/inference/v1",
			DefaultModel: "accounts/fireworks/models/llama-v3p1-70b-instruct",
			Models:       []string{"accounts/fireworks/models/llama-v3p1-70b-instruct"},
			EnvKey:       "FIREWORKS_API_KEY",
		},
		{
			ID:           "xai",
			BaseURL:      "https://api.x.ai/v1",
			DefaultModel: "grok-beta",
			Models:       []string{"grok-beta"},
			EnvKey:       "XAI_API_KEY",
		},
	}

	for i := range descriptors {
		descriptors[i].SupportsStreaming = true
	}

	// The custom endpoint's streaming capability is unknown; use single-shot.
	if base := strings.TrimSpace(opts.CustomBaseURL); base != "" {
		model := strings.TrimSpace(opts.CustomModel)
		if model == "" {
			model = "gpt-4o-mini"
		}
		descriptors = append(descriptors, Descriptor{
			ID:           "custom",
			BaseURL:      strings.TrimRight(base, "/"),
			DefaultModel: model,
			Models:       []string{model},
			EnvKey:       "CUSTOM_OAI_KEY",
		})
	}

	return FromDescriptors(descriptors)
}

// FromDescriptors builds a registry from an explicit descriptor list.
// Intended for tests and alternative configurations.
func FromDescriptors(descriptors []Descriptor) *Registry {
	r := &Registry{byID: make(map[string]Descriptor, len(descriptors))}
	for _, d := range descriptors {
		if _, exists := r.byID[d.ID]; exists {
			continue
		}
		r.order = append(r.order, d.ID)
		r.byID[d.ID] = d
	}
	return r
}

// Lookup returns the descriptor for a provider id.
func (r *Registry) Lookup(id string) (Descriptor, bool) {
	d, ok := r.byID[strings.TrimSpace(id)]
	return d, ok
}

// IDs returns provider ids in declaration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

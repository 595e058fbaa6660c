package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aiforge/aiforge/internal/credentials"
	"github.com/aiforge/aiforge/internal/registry"
	"github.com/aiforge/aiforge/internal/usage"
	openai "github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"
)

// Request parameter defaults.
const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 4000
	defaultTimeout     = 90 * time.Second
)

// ProviderAuto selects the first provider with a resolvable credential.
const ProviderAuto = "auto"

// Request describes one generation call.
type Request struct {
	Prompt      string   // Required prompt text.
	Provider    string   // Provider id; empty or "auto" triggers auto-selection.
	Model       string   // Model id; empty uses the provider default.
	Temperature *float32 // Sampling temperature; nil uses 0.7.
	MaxTokens   *int     // Generation length bound; nil uses 4000.
	JSONMode    bool     // Constrain output to a single JSON object, best effort.
	UserID      *uint64  // Whose credentials resolve and whose usage is recorded.
	Endpoint    string   // Accounting label; defaults to "/ai/generate".
}

// Result is the outcome of a single-shot generation, including which
// provider and model actually served it after auto-selection.
type Result struct {
	Text     string
	Provider string
	Model    string
}

// Chunk is one unit of a streaming response. Exactly one terminal chunk is
// delivered per stream: either Done or Err.
type Chunk struct {
	Content string // Incremental text, empty on terminal chunks.
	Done    bool   // True on the success terminal marker.
	Err     error  // Non-nil on the failure terminal marker.
}

// Gateway orchestrates provider selection, credential resolution, the
// outbound call, response normalization, and usage accounting.
type Gateway struct {
	reg      *registry.Registry
	resolver *credentials.Resolver
	recorder *usage.Recorder
	timeout  time.Duration
}

// New constructs a Gateway.
func New(reg *registry.Registry, resolver *credentials.Resolver, recorder *usage.Recorder) *Gateway {
	return &Gateway{
		reg:      reg,
		resolver: resolver,
		recorder: recorder,
		timeout:  defaultTimeout,
	}
}

// buildClient configures a per-call client for one provider and key.
func (g *Gateway) buildClient(key string, desc registry.Descriptor) *openai.Client {
	cfg := openai.DefaultConfig(key)
	cfg.BaseURL = desc.BaseURL
	cfg.HTTPClient = &http.Client{
		Timeout:   g.timeout,
		Transport: &headerTransport{base: http.DefaultTransport, headers: desc.ExtraHeaders},
	}
	return openai.NewClientWithConfig(cfg)
}

// headerTransport injects provider static headers into outbound requests.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for name, value := range t.headers {
		req.Header.Set(name, value)
	}
	return t.base.RoundTrip(req)
}

// selection is the resolved target of one call.
type selection struct {
	desc       registry.Descriptor
	resolution credentials.Resolution
	model      string
}

// selectProvider picks the provider and resolves its credential.
// Auto-selection iterates the registry in declared order and picks the first
// provider with a resolvable credential, so repeated calls with the same
// configured credentials are deterministic.
func (g *Gateway) selectProvider(ctx context.Context, req Request) (selection, error) {
	provider := strings.TrimSpace(req.Provider)
	if provider == "" || provider == ProviderAuto {
		for _, id := range g.reg.IDs() {
			res, errResolve := g.resolver.Resolve(ctx, req.UserID, id)
			if errResolve != nil {
				continue
			}
			desc, _ := g.reg.Lookup(id)
			return selection{desc: desc, resolution: res, model: g.pickModel(desc, req.Model)}, nil
		}
		return selection{}, ErrNoProviderAvailable
	}

	res, errResolve := g.resolver.Resolve(ctx, req.UserID, provider)
	if errResolve != nil {
		return selection{}, errResolve
	}
	desc, _ := g.reg.Lookup(provider)
	return selection{desc: desc, resolution: res, model: g.pickModel(desc, req.Model)}, nil
}

// pickModel defaults the model without validating it against the preset
// list; the upstream provider is the source of truth for model names.
func (g *Gateway) pickModel(desc registry.Descriptor, model string) string {
	if trimmed := strings.TrimSpace(model); trimmed != "" {
		return trimmed
	}
	return desc.DefaultModel
}

// buildChatRequest shapes the single-turn chat payload.
func buildChatRequest(req Request, model string) openai.ChatCompletionRequest {
	temperature := float32(defaultTemperature)
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := defaultMaxTokens
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		maxTokens = *req.MaxTokens
	}

	chatReq := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	if req.JSONMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return chatReq
}

// Generate performs a single-shot generation and returns the completion text
// verbatim. The usage recorder runs exactly once per attempt, success or
// failure; selection failures record nothing because no outbound call happened.
func (g *Gateway) Generate(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return Result{}, ErrEmptyPrompt
	}

	sel, errSelect := g.selectProvider(ctx, req)
	if errSelect != nil {
		return Result{}, errSelect
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	client := g.buildClient(sel.resolution.Key, sel.desc)
	resp, errCall := client.CreateChatCompletion(callCtx, buildChatRequest(req, sel.model))
	if errCall != nil {
		normalized := g.normalizeError(sel.desc.ID, errCall)
		g.recordFailure(ctx, req, sel, normalized)
		return Result{}, normalized
	}

	if len(resp.Choices) == 0 {
		normalized := &UpstreamError{Provider: sel.desc.ID, Body: "no completion choices returned"}
		g.recordFailure(ctx, req, sel, normalized)
		return Result{}, normalized
	}

	text := resp.Choices[0].Message.Content
	g.recordSuccess(ctx, req, sel, resp.Usage, text)
	return Result{Text: text, Provider: sel.desc.ID, Model: sel.model}, nil
}

// StreamGenerate delivers the completion incrementally. The returned channel
// always terminates with exactly one Done or Err chunk and is then closed;
// failures after streaming has begun arrive in-band rather than as an error
// return, so a transport mid-stream can still inform its client. Providers
// without streaming support get a single-shot call delivered as one chunk.
func (g *Gateway) StreamGenerate(ctx context.Context, req Request) (<-chan Chunk, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	sel, errSelect := g.selectProvider(ctx, req)
	if errSelect != nil {
		return nil, errSelect
	}

	out := make(chan Chunk, 8)

	if !sel.desc.SupportsStreaming {
		go g.streamFallback(ctx, req, out)
		return out, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	client := g.buildClient(sel.resolution.Key, sel.desc)
	chatReq := buildChatRequest(req, sel.model)
	chatReq.Stream = true

	stream, errOpen := client.CreateChatCompletionStream(callCtx, chatReq)
	if errOpen != nil {
		cancel()
		normalized := g.normalizeError(sel.desc.ID, errOpen)
		g.recordFailure(ctx, req, sel, normalized)
		return nil, normalized
	}

	go g.relayStream(ctx, req, sel, stream, out, cancel)
	return out, nil
}

// streamFallback performs a single-shot call and delivers the full result as
// one chunk followed by the terminal marker. Accounting happens inside Generate.
func (g *Gateway) streamFallback(ctx context.Context, req Request, out chan<- Chunk) {
	defer close(out)

	res, errGen := g.Generate(ctx, req)
	if errGen != nil {
		out <- Chunk{Err: errGen}
		return
	}
	out <- Chunk{Content: res.Text}
	out <- Chunk{Done: true}
}

// relayStream forwards upstream fragments in order and records usage once the
// stream terminates either way. Cancelling ctx aborts the upstream connection.
func (g *Gateway) relayStream(ctx context.Context, req Request, sel selection, stream *openai.ChatCompletionStream, out chan<- Chunk, cancel context.CancelFunc) {
	defer close(out)
	defer cancel()
	defer stream.Close()

	var builder strings.Builder
	for {
		chunk, errRecv := stream.Recv()
		if errors.Is(errRecv, io.EOF) {
			g.recordSuccess(ctx, req, sel, openai.Usage{}, builder.String())
			select {
			case out <- Chunk{Done: true}:
			case <-ctx.Done():
			}
			return
		}
		if errRecv != nil {
			normalized := g.normalizeError(sel.desc.ID, errRecv)
			g.recordFailure(ctx, req, sel, normalized)
			select {
			case out <- Chunk{Err: normalized}:
			case <-ctx.Done():
			}
			return
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if content := chunk.Choices[0].Delta.Content; content != "" {
			builder.WriteString(content)
			select {
			case out <- Chunk{Content: content}:
			case <-ctx.Done():
				normalized := g.normalizeError(sel.desc.ID, ctx.Err())
				g.recordFailure(ctx, req, sel, normalized)
				return
			}
		}
	}
}

// normalizeError maps heterogeneous upstream failures onto the gateway's
// error taxonomy.
func (g *Gateway) normalizeError(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamError{
			Provider:   provider,
			StatusCode: apiErr.HTTPStatusCode,
			Body:       truncateBody(apiErr.Message),
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if errors.Is(reqErr.Err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return &UpstreamError{
			Provider:   provider,
			StatusCode: reqErr.HTTPStatusCode,
			Body:       truncateBody(reqErr.Error()),
		}
	}

	// net/http timeouts surface as url.Error with Timeout() true.
	type timeouter interface{ Timeout() bool }
	var te timeouter
	if errors.As(err, &te) && te.Timeout() {
		return ErrTimeout
	}

	return &UpstreamError{Provider: provider, Body: truncateBody(err.Error())}
}

// estimateTokens approximates a token count by whitespace splitting. Used
// only when the upstream response carries no usage metrics.
func estimateTokens(text string) int64 {
	return int64(len(strings.Fields(text)))
}

func (g *Gateway) recordSuccess(ctx context.Context, req Request, sel selection, u openai.Usage, completion string) {
	promptTokens := int64(u.PromptTokens)
	completionTokens := int64(u.CompletionTokens)
	totalTokens := int64(u.TotalTokens)
	if totalTokens == 0 {
		promptTokens = estimateTokens(req.Prompt)
		completionTokens = estimateTokens(completion)
		totalTokens = promptTokens + completionTokens
	}

	g.recorder.Record(ctx, usage.Record{
		UserID:             req.UserID,
		Provider:           sel.desc.ID,
		Model:              sel.model,
		Endpoint:           endpointLabel(req),
		PromptTokens:       promptTokens,
		CompletionTokens:   completionTokens,
		TotalTokens:        totalTokens,
		FromUserCredential: sel.resolution.FromUser,
	})
}

func (g *Gateway) recordFailure(ctx context.Context, req Request, sel selection, cause error) {
	rec := usage.Record{
		UserID:             req.UserID,
		Provider:           sel.desc.ID,
		Model:              sel.model,
		Endpoint:           endpointLabel(req),
		Failed:             true,
		ErrorMessage:       cause.Error(),
		FromUserCredential: sel.resolution.FromUser,
	}
	var upstreamErr *UpstreamError
	if errors.As(cause, &upstreamErr) && upstreamErr.StatusCode > 0 {
		status := upstreamErr.StatusCode
		rec.ErrorStatusCode = &status
	}
	g.recorder.Record(ctx, rec)
}

func endpointLabel(req Request) string {
	if req.Endpoint != "" {
		return req.Endpoint
	}
	return "/ai/generate"
}

// Providers returns provider ids with a resolvable credential for the user,
// in registry order, alongside each provider's model presets.
func (g *Gateway) Providers(ctx context.Context, userID *uint64) ([]string, map[string][]string) {
	ids := g.resolver.Available(ctx, userID)
	presets := make(map[string][]string, len(ids))
	for _, id := range ids {
		if desc, ok := g.reg.Lookup(id); ok {
			presets[id] = desc.Models
		}
	}
	return ids, presets
}

// LogAttempt emits a structured log line for one generation attempt.
func LogAttempt(req Request, provider string, err error) {
	entry := log.WithFields(log.Fields{
		"provider": provider,
		"endpoint": endpointLabel(req),
	})
	if req.UserID != nil {
		entry = entry.WithField("user_id", *req.UserID)
	}
	if err != nil {
		entry.WithError(err).Warn("generation failed")
		return
	}
	entry.Debug("generation completed")
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/aiforge/aiforge/internal/credentials"
	"github.com/aiforge/aiforge/internal/gateway"
	"github.com/gin-gonic/gin"
)

// GenerateHandler exposes the synchronous generation endpoint and the
// provider discovery endpoint.
type GenerateHandler struct {
	gw *gateway.Gateway
}

// NewGenerateHandler constructs a GenerateHandler.
func NewGenerateHandler(gw *gateway.Gateway) *GenerateHandler {
	return &GenerateHandler{gw: gw}
}

// generateRequest defines the request body for a generation call.
type generateRequest struct {
	Prompt      string   `json:"prompt"`
	Provider    string   `json:"provider"`
	Model       string   `json:"model"`
	Temperature *float32 `json:"temperature"`
	MaxTokens   *int     `json:"max_tokens"`
	JSONMode    bool     `json:"json_mode"`
}

// Generate runs a single-shot generation for the caller.
func (h *GenerateHandler) Generate(c *gin.Context) {
	userID := getUserID(c)

	var body generateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	req := gateway.Request{
		Prompt:      body.Prompt,
		Provider:    body.Provider,
		Model:       body.Model,
		Temperature: body.Temperature,
		MaxTokens:   body.MaxTokens,
		JSONMode:    body.JSONMode,
		UserID:      &userID,
		Endpoint:    "/ai/generate",
	}

	res, errGen := h.gw.Generate(c.Request.Context(), req)
	gateway.LogAttempt(req, res.Provider, errGen)
	if errGen != nil {
		writeGatewayError(c, errGen)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"text":     res.Text,
		"provider": res.Provider,
		"model":    res.Model,
	})
}

// Providers lists the providers the caller can currently use, with their
// model presets.
func (h *GenerateHandler) Providers(c *gin.Context) {
	userID := getUserID(c)

	ids, presets := h.gw.Providers(c.Request.Context(), &userID)
	c.JSON(http.StatusOK, gin.H{
		"providers": ids,
		"models":    presets,
	})
}

// writeGatewayError maps gateway failures to HTTP statuses. Caller mistakes
// map to 400, upstream failures to 502, and timeouts to 504.
func writeGatewayError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gateway.ErrEmptyPrompt):
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing prompt"})
	case errors.Is(err, credentials.ErrUnknownProvider):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, credentials.ErrNoCredential):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, gateway.ErrNoProviderAvailable):
		c.JSON(http.StatusBadRequest, gin.H{"error": "no provider available; configure an api key"})
	case errors.Is(err, gateway.ErrTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "generation timed out"})
	default:
		var upstreamErr *gateway.UpstreamError
		if errors.As(err, &upstreamErr) {
			c.JSON(http.StatusBadGateway, gin.H{
				"error":    "upstream provider error",
				"provider": upstreamErr.Provider,
				"status":   upstreamErr.StatusCode,
				"detail":   upstreamErr.Body,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generation failed"})
	}
}

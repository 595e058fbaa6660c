package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aiforge/aiforge/internal/credentials"
	"github.com/aiforge/aiforge/internal/registry"
	"github.com/aiforge/aiforge/internal/security"
	"github.com/gin-gonic/gin"
)

// KeysHandler manages per-user provider API keys.
type KeysHandler struct {
	store *credentials.Store
	reg   *registry.Registry
}

// NewKeysHandler constructs a KeysHandler.
func NewKeysHandler(store *credentials.Store, reg *registry.Registry) *KeysHandler {
	return &KeysHandler{store: store, reg: reg}
}

// saveKeyRequest defines the request body for saving a provider key.
type saveKeyRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
}

// Save stores or replaces the caller's API key for a provider.
func (h *KeysHandler) Save(c *gin.Context) {
	userID := getUserID(c)

	var body saveKeyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	provider := strings.ToLower(strings.TrimSpace(body.Provider))
	apiKey := strings.TrimSpace(body.APIKey)
	if provider == "" || apiKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing provider or api_key"})
		return
	}
	if _, ok := h.reg.Lookup(provider); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown provider: " + provider})
		return
	}

	if errSave := h.store.Save(c.Request.Context(), userID, provider, apiKey); errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save key failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"provider":   provider,
		"masked_key": security.MaskKey(apiKey),
	})
}

// List returns the caller's stored keys, masked.
func (h *KeysHandler) List(c *gin.Context) {
	userID := getUserID(c)

	infos, errList := h.store.List(c.Request.Context(), userID)
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list keys failed"})
		return
	}
	out := make([]gin.H, 0, len(infos))
	for _, info := range infos {
		out = append(out, gin.H{
			"provider":   info.Provider,
			"masked_key": info.MaskedKey,
			"last_used":  info.LastUsed,
			"created_at": info.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"keys": out})
}

// Delete removes the caller's key for a provider.
func (h *KeysHandler) Delete(c *gin.Context) {
	userID := getUserID(c)
	provider := strings.ToLower(strings.TrimSpace(c.Param("provider")))
	if provider == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing provider"})
		return
	}

	if errDel := h.store.Delete(c.Request.Context(), userID, provider); errDel != nil {
		if errors.Is(errDel, credentials.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "key not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete key failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": provider})
}

package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/token-tracker/tokentracker/internal/credentials"
	"github.com/token-tracker/tokentracker/internal/providers"
	"github.com/token-tracker/tokentracker/internal/security"

	log "github.com/sirupsen/logrus"
)

// KeysHandler manages stored provider credentials. Raw keys exist only
// inside a request: they are encrypted before the store and never read
// back out through this handler.
type KeysHandler struct {
	store *credentials.Store
	codec *security.Codec
}

// NewKeysHandler constructs a KeysHandler.
func NewKeysHandler(store *credentials.Store, codec *security.Codec) *KeysHandler {
	return &KeysHandler{store: store, codec: codec}
}

// saveKeyRequest defines the request body for storing a credential.
type saveKeyRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
}

// Save validates, encrypts, and upserts a provider API key.
func (h *KeysHandler) Save(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	var body saveKeyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	provider := strings.TrimSpace(body.Provider)
	apiKey := strings.TrimSpace(body.APIKey)
	if provider == "" || apiKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing provider or api_key"})
		return
	}

	if errValidate := providers.ValidateKeyFormat(provider, apiKey); errValidate != nil {
		var unknownErr *providers.ErrUnknownProvider
		if errors.As(errValidate, &unknownErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid provider"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": errValidate.Error()})
		return
	}

	ciphertext, errEncrypt := h.codec.Encrypt(apiKey)
	if errEncrypt != nil {
		log.WithError(errEncrypt).Error("encrypt credential failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store key failed"})
		return
	}
	if errUpsert := h.store.Upsert(c.Request.Context(), userID, provider, ciphertext); errUpsert != nil {
		log.WithError(errUpsert).Error("upsert credential failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store key failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "provider": provider})
}

// Delete removes the credential named by the provider query parameter.
func (h *KeysHandler) Delete(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	provider := strings.TrimSpace(c.Query("provider"))
	if provider == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing provider"})
		return
	}
	if errDelete := h.store.Delete(c.Request.Context(), userID, provider); errDelete != nil {
		log.WithError(errDelete).Error("delete credential failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete key failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "provider": provider})
}

// List returns stored credential metadata, never key material.
func (h *KeysHandler) List(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	rows, errList := h.store.List(c.Request.Context(), userID)
	if errList != nil {
		log.WithError(errList).Error("list credentials failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list keys failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"provider":   row.Provider,
			"created_at": row.CreatedAt,
			"updated_at": row.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"keys": out})
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/token-tracker/tokentracker/internal/credentials"
	"github.com/token-tracker/tokentracker/internal/models"
	"github.com/token-tracker/tokentracker/internal/providers"
	"github.com/token-tracker/tokentracker/internal/security"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	log "github.com/sirupsen/logrus"
)

// UsageWindowDays is the report range for token-metered providers.
const UsageWindowDays = 7

// UsageHandler fetches normalized usage records from provider upstreams.
// Successful fetches are cached as snapshots so the dashboard has
// something to show when an upstream is down.
type UsageHandler struct {
	db       *gorm.DB
	store    *credentials.Store
	codec    *security.Codec
	registry *providers.Registry
}

// NewUsageHandler constructs a UsageHandler.
func NewUsageHandler(db *gorm.DB, store *credentials.Store, codec *security.Codec, registry *providers.Registry) *UsageHandler {
	return &UsageHandler{db: db, store: store, codec: codec, registry: registry}
}

// usageError pairs an HTTP status with a safe client-facing message.
type usageError struct {
	status  int
	message string
}

// Error implements the error interface.
func (e *usageError) Error() string { return e.message }

// Get serves usage for a single provider.
func (h *UsageHandler) Get(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	provider := c.Param("provider")

	record, errFetch := h.fetchProvider(c.Request.Context(), userID, provider)
	if errFetch != nil {
		var ue *usageError
		if errors.As(errFetch, &ue) {
			c.JSON(ue.status, gin.H{"error": ue.message})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch usage failed"})
		return
	}
	c.JSON(http.StatusOK, record)
}

// Aggregate serves usage for every provider the user has a credential
// for, fetched concurrently. A failing provider yields an error entry
// without sinking the rest.
func (h *UsageHandler) Aggregate(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	names, errList := h.store.ListProviders(c.Request.Context(), userID)
	if errList != nil {
		log.WithError(errList).Error("list providers failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch usage failed"})
		return
	}

	type entry struct {
		provider string
		record   *providers.Record
		err      error
	}
	results := make([]entry, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			record, errFetch := h.fetchProvider(c.Request.Context(), userID, name)
			results[i] = entry{provider: name, record: record, err: errFetch}
		}(i, name)
	}
	wg.Wait()

	out := gin.H{}
	for _, result := range results {
		if result.err != nil {
			message := "fetch usage failed"
			var ue *usageError
			if errors.As(result.err, &ue) {
				message = ue.message
			}
			out[result.provider] = gin.H{"error": message}
			continue
		}
		out[result.provider] = result.record
	}
	c.JSON(http.StatusOK, gin.H{
		"providers":  out,
		"fetched_at": time.Now().UTC(),
	})
}

// fetchProvider runs the full flow for one provider: credential load,
// decrypt, upstream fetch, snapshot upsert.
func (h *UsageHandler) fetchProvider(ctx context.Context, userID uint64, provider string) (*providers.Record, error) {
	adapter, known := h.registry.Get(provider)
	if !known {
		return nil, &usageError{status: http.StatusBadRequest, message: "invalid provider"}
	}

	row, errGet := h.store.Get(ctx, userID, provider)
	if errGet != nil {
		if errors.Is(errGet, credentials.ErrNotFound) {
			if reporter, okReporter := adapter.(providers.MissingCredentialReporter); okReporter {
				return reporter.MissingCredentialRecord(), nil
			}
			return nil, &usageError{status: http.StatusNotFound, message: "no key stored for provider"}
		}
		log.WithError(errGet).WithField("provider", provider).Error("load credential failed")
		return nil, &usageError{status: http.StatusInternalServerError, message: "fetch usage failed"}
	}

	apiKey, errDecrypt := h.codec.Decrypt(row.EncryptedKey)
	if errDecrypt != nil {
		// Wrong ENCRYPTION_KEY or corrupted ciphertext. Details stay in
		// the log; the client sees a generic failure.
		log.WithError(errDecrypt).WithFields(log.Fields{
			"provider": provider,
			"user_id":  userID,
		}).Error("decrypt credential failed")
		return nil, &usageError{status: http.StatusInternalServerError, message: "fetch usage failed"}
	}

	record, errFetch := adapter.Fetch(ctx, apiKey, providers.TrailingDays(UsageWindowDays))
	if errFetch != nil {
		var upstreamErr *providers.UpstreamError
		if errors.As(errFetch, &upstreamErr) {
			log.WithError(upstreamErr).WithField("provider", provider).Warn("upstream fetch failed")
			if cached := h.loadSnapshot(ctx, userID, provider); cached != nil {
				return cached, nil
			}
			return nil, &usageError{status: http.StatusInternalServerError, message: "provider request failed"}
		}
		log.WithError(errFetch).WithField("provider", provider).Error("fetch usage failed")
		return nil, &usageError{status: http.StatusInternalServerError, message: "fetch usage failed"}
	}

	h.saveSnapshot(ctx, userID, provider, record)
	now := time.Now().UTC()
	record.FetchedAt = &now
	return record, nil
}

// loadSnapshot serves the last cached record marked stale when a live
// refresh fails. Returns nil when no snapshot exists.
func (h *UsageHandler) loadSnapshot(ctx context.Context, userID uint64, provider string) *providers.Record {
	if h.db == nil {
		return nil
	}
	var snapshot models.UsageSnapshot
	if errFind := h.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		First(&snapshot).Error; errFind != nil {
		return nil
	}
	var record providers.Record
	if errUnmarshal := json.Unmarshal(snapshot.Data, &record); errUnmarshal != nil {
		log.WithError(errUnmarshal).WithField("provider", provider).Warn("decode usage snapshot failed")
		return nil
	}
	fetchedAt := snapshot.FetchedAt
	record.FetchedAt = &fetchedAt
	record.Stale = true
	return &record
}

// saveSnapshot caches the latest successful record. Failures are logged
// and swallowed: the cache is advisory.
func (h *UsageHandler) saveSnapshot(ctx context.Context, userID uint64, provider string, record *providers.Record) {
	if h.db == nil {
		return
	}
	payload, errMarshal := json.Marshal(record)
	if errMarshal != nil {
		log.WithError(errMarshal).WithField("provider", provider).Warn("marshal usage snapshot failed")
		return
	}
	snapshot := models.UsageSnapshot{
		UserID:    userID,
		Provider:  provider,
		Data:      datatypes.JSON(payload),
		FetchedAt: time.Now().UTC(),
	}
	if errUpsert := h.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "fetched_at"}),
	}).Create(&snapshot).Error; errUpsert != nil {
		log.WithError(errUpsert).WithField("provider", provider).Warn("save usage snapshot failed")
	}
}

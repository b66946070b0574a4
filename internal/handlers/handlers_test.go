package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/shopforge/shopforge/internal/cache"
	"github.com/shopforge/shopforge/internal/database/testutil"
	"github.com/shopforge/shopforge/internal/schema"
	"github.com/shopforge/shopforge/internal/sync"
	"github.com/shopforge/shopforge/pkg/response"
)

func performJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()

	var payload response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	return payload
}

func TestHealthEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/health", Health(testutil.MustOpenTestDB(t)))

	w := performJSON(t, r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	payload := decodeResponse(t, w)
	require.True(t, payload.Success)
}

func TestCacheStatsAndClear(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mem := cache.New(cache.Config{Enabled: true, DefaultTTL: time.Minute, TrackStats: true})
	mem.Set(cache.TenantPrefix(cache.NamespaceSearch, "acme")+"abc", "doc", time.Minute)
	mem.Set(cache.TenantPrefix(cache.NamespaceSearch, "globex")+"def", "doc", time.Minute)

	h := NewCacheHandler(mem)
	r := gin.New()
	r.GET("/api/cache/stats", h.Stats)
	r.POST("/api/cache/clear", h.Clear)

	w := performJSON(t, r, http.MethodGet, "/api/cache/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	payload := decodeResponse(t, w)
	data := payload.Data.(map[string]interface{})
	require.EqualValues(t, 2, data["size"])

	w = performJSON(t, r, http.MethodPost, "/api/cache/clear?tenant=acme", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, mem.Keys(), 1)

	w = performJSON(t, r, http.MethodPost, "/api/cache/clear", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, mem.Keys())
}

func TestSchemaTypesEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	resolver := schema.NewResolver()
	resolver.Configure("Product", schema.TypeAddressConfig{AddressTemplate: "products", IDField: "sku"})

	h := NewSchemaHandler(resolver)
	r := gin.New()
	r.GET("/api/schema/types", h.Types)
	r.GET("/api/schema/types/:name", h.Type)

	w := performJSON(t, r, http.MethodGet, "/api/schema/types", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = performJSON(t, r, http.MethodGet, "/api/schema/types/Product", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = performJSON(t, r, http.MethodGet, "/api/schema/types/Ghost", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "TYPE_NOT_FOUND", decodeResponse(t, w).Error.Code)
}

func TestSyncLockEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t)
	h := NewSyncHandler(sync.NewLockService(db, time.Minute), sync.NewCheckpointService(db))

	r := gin.New()
	r.POST("/api/sync/locks", h.AcquireLock)
	r.DELETE("/api/sync/locks", h.ReleaseLock)
	r.GET("/api/sync/locks/:tenant", h.LockStatus)

	w := performJSON(t, r, http.MethodPost, "/api/sync/locks", gin.H{"tenant": "acme", "holderId": "worker-1"})
	require.Equal(t, http.StatusOK, w.Code)

	w = performJSON(t, r, http.MethodPost, "/api/sync/locks", gin.H{"tenant": "acme", "holderId": "worker-2"})
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Equal(t, "SERVICE_UNAVAILABLE", decodeResponse(t, w).Error.Code)

	w = performJSON(t, r, http.MethodGet, "/api/sync/locks/acme", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeResponse(t, w).Data.(map[string]interface{})
	require.Equal(t, true, data["locked"])

	w = performJSON(t, r, http.MethodDelete, "/api/sync/locks", gin.H{"tenant": "acme", "holderId": "worker-1"})
	require.Equal(t, http.StatusOK, w.Code)

	w = performJSON(t, r, http.MethodGet, "/api/sync/locks/acme", nil)
	data = decodeResponse(t, w).Data.(map[string]interface{})
	require.Equal(t, false, data["locked"])
}

func TestSyncCheckpointEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t)
	h := NewSyncHandler(sync.NewLockService(db, time.Minute), sync.NewCheckpointService(db))

	r := gin.New()
	r.POST("/api/sync/checkpoints", h.SaveCheckpoint)
	r.GET("/api/sync/checkpoints/:tenant", h.LatestCheckpoint)
	r.GET("/api/sync/checkpoints/:tenant/history", h.CheckpointHistory)

	w := performJSON(t, r, http.MethodPost, "/api/sync/checkpoints", gin.H{
		"tenant":       "acme",
		"status":       "completed",
		"totalIndexed": 42,
		"failedItems":  []string{"sku-1"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = performJSON(t, r, http.MethodGet, "/api/sync/checkpoints/acme", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeResponse(t, w).Data.(map[string]interface{})
	require.EqualValues(t, 42, data["total_indexed"])

	w = performJSON(t, r, http.MethodGet, "/api/sync/checkpoints/acme/history", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = performJSON(t, r, http.MethodGet, "/api/sync/checkpoints/ghost", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSaveCheckpointValidation(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t)
	h := NewSyncHandler(sync.NewLockService(db, time.Minute), sync.NewCheckpointService(db))

	r := gin.New()
	r.POST("/api/sync/checkpoints", h.SaveCheckpoint)

	w := performJSON(t, r, http.MethodPost, "/api/sync/checkpoints", gin.H{"tenant": "acme"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "VALIDATION_ERROR", decodeResponse(t, w).Error.Code)
}

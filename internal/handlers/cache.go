package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shopforge/shopforge/internal/cache"
	appErrors "github.com/shopforge/shopforge/pkg/errors"
	"github.com/shopforge/shopforge/pkg/logger"
	"github.com/shopforge/shopforge/pkg/response"
)

// CacheHandler exposes cache administration endpoints.
type CacheHandler struct {
	cache *cache.Memory
	log   *zap.Logger
}

// NewCacheHandler constructs a cache admin handler.
func NewCacheHandler(mem *cache.Memory) *CacheHandler {
	return &CacheHandler{cache: mem, log: logger.WithModule("handlers")}
}

// Stats reports hit/miss counters and the current entry count.
func (h *CacheHandler) Stats(c *gin.Context) {
	response.Success(c, http.StatusOK, h.cache.Stats())
}

// Clear flushes the cache. An optional tenant query parameter scopes the
// flush to one tenant's entries across all namespaces.
func (h *CacheHandler) Clear(c *gin.Context) {
	tenant := c.Query("tenant")
	if tenant == "" {
		h.cache.Clear()
		h.log.Info("cache cleared")
		response.Success(c, http.StatusOK, gin.H{"cleared": "all"})
		return
	}

	removed := 0
	for _, ns := range []string{cache.NamespaceSearch, cache.NamespaceListing, cache.NamespaceAggregation} {
		removed += h.cache.DeletePattern(cache.TenantPrefix(ns, tenant) + "*")
	}
	h.log.Info("cache cleared for tenant", zap.String("tenant", tenant), zap.Int("removed", removed))
	response.Success(c, http.StatusOK, gin.H{"cleared": tenant, "removed": removed})
}

// Entry reports metadata about a single cache entry.
func (h *CacheHandler) Entry(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		response.Error(c, appErrors.ErrBadRequest.WithMessage("Query parameter key is required"))
		return
	}

	info, ok := h.cache.EntryInfo(key)
	if !ok {
		response.Error(c, appErrors.ErrNotFound.WithMessage("No cache entry for key"))
		return
	}
	response.Success(c, http.StatusOK, info)
}

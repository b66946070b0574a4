package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shopforge/shopforge/internal/sync"
	appErrors "github.com/shopforge/shopforge/pkg/errors"
	"github.com/shopforge/shopforge/pkg/response"
)

// SyncHandler exposes the lock and checkpoint surface consumed by the bulk
// synchronization pipeline.
type SyncHandler struct {
	locks       *sync.LockService
	checkpoints *sync.CheckpointService
}

// NewSyncHandler constructs a sync handler.
func NewSyncHandler(locks *sync.LockService, checkpoints *sync.CheckpointService) *SyncHandler {
	return &SyncHandler{locks: locks, checkpoints: checkpoints}
}

type lockRequest struct {
	Tenant   string `json:"tenant" binding:"required"`
	HolderID string `json:"holderId" binding:"required"`
}

// AcquireLock takes the per-tenant indexing lock.
func (h *SyncHandler) AcquireLock(c *gin.Context) {
	var req lockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.ErrValidation.WithMessage("Tenant and holderId are required").WithInternal(err))
		return
	}

	lock, err := h.locks.Acquire(c.Request.Context(), req.Tenant, req.HolderID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, lock)
}

// ReleaseLock releases the per-tenant indexing lock.
func (h *SyncHandler) ReleaseLock(c *gin.Context) {
	var req lockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.ErrValidation.WithMessage("Tenant and holderId are required").WithInternal(err))
		return
	}

	if err := h.locks.Release(c.Request.Context(), req.Tenant, req.HolderID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"released": req.Tenant})
}

// LockStatus reports the current holder of a tenant's lock, if any.
func (h *SyncHandler) LockStatus(c *gin.Context) {
	tenant := c.Param("tenant")

	lock, err := h.locks.Status(c.Request.Context(), tenant)
	if err != nil {
		response.Error(c, err)
		return
	}
	if lock == nil {
		response.Success(c, http.StatusOK, gin.H{"tenant": tenant, "locked": false})
		return
	}
	response.Success(c, http.StatusOK, gin.H{"tenant": tenant, "locked": true, "lock": lock})
}

// SaveCheckpoint records a reindex progress report.
func (h *SyncHandler) SaveCheckpoint(c *gin.Context) {
	var cp sync.Checkpoint
	if err := c.ShouldBindJSON(&cp); err != nil {
		response.Error(c, appErrors.ErrValidation.WithMessage("Tenant and status are required").WithInternal(err))
		return
	}

	row, err := h.checkpoints.Save(c.Request.Context(), cp)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, row)
}

// LatestCheckpoint returns a tenant's most recent checkpoint.
func (h *SyncHandler) LatestCheckpoint(c *gin.Context) {
	tenant := c.Param("tenant")

	row, err := h.checkpoints.Latest(c.Request.Context(), tenant)
	if err != nil {
		response.Error(c, err)
		return
	}
	if row == nil {
		response.Error(c, appErrors.ErrNotFound.WithMessage("Tenant has no checkpoints"))
		return
	}
	response.Success(c, http.StatusOK, row)
}

// CheckpointHistory lists a tenant's recent checkpoints.
func (h *SyncHandler) CheckpointHistory(c *gin.Context) {
	tenant := c.Param("tenant")
	limit := parseIntQuery(c, "limit", 20)

	rows, err := h.checkpoints.History(c.Request.Context(), tenant, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rows)
}

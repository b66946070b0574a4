package sync

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/shopforge/shopforge/internal/models"
	appErrors "github.com/shopforge/shopforge/pkg/errors"
	"github.com/shopforge/shopforge/pkg/logger"
	"github.com/shopforge/shopforge/pkg/validator"
)

// Checkpoint is the progress report posted by the bulk synchronization
// pipeline.
type Checkpoint struct {
	Tenant       string    `json:"tenant" binding:"required" validate:"required"`
	Status       string    `json:"status" binding:"required" validate:"required,oneof=running completed failed"`
	StartedAt    time.Time `json:"startedAt"`
	TotalIndexed int64     `json:"totalIndexed" validate:"min=0"`
	TotalFailed  int64     `json:"totalFailed" validate:"min=0"`
	FailedItems  []string  `json:"failedItems"`
}

// CheckpointService persists reindex progress reports.
type CheckpointService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewCheckpointService constructs a checkpoint service.
func NewCheckpointService(db *gorm.DB) *CheckpointService {
	return &CheckpointService{db: db, log: logger.WithModule("sync")}
}

// Save records one checkpoint row and returns its identifier.
func (s *CheckpointService) Save(ctx context.Context, cp Checkpoint) (*models.SyncCheckpoint, error) {
	if err := validator.ValidateStruct(cp); err != nil {
		return nil, appErrors.ErrBadRequest.WithMessage(err.Error())
	}
	if cp.StartedAt.IsZero() {
		cp.StartedAt = time.Now().UTC()
	}

	failed, err := json.Marshal(cp.FailedItems)
	if err != nil {
		return nil, appErrors.Wrap(err, "Failed to encode failed items")
	}

	row := models.SyncCheckpoint{
		Tenant:       cp.Tenant,
		Status:       cp.Status,
		StartedAt:    cp.StartedAt,
		TotalIndexed: cp.TotalIndexed,
		TotalFailed:  cp.TotalFailed,
		FailedItems:  datatypes.JSON(failed),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, appErrors.Wrap(err, "Failed to save checkpoint")
	}

	s.log.Info("checkpoint saved",
		zap.String("tenant", cp.Tenant),
		zap.String("status", cp.Status),
		zap.Int64("indexed", cp.TotalIndexed),
		zap.Int64("failed", cp.TotalFailed))
	return &row, nil
}

// Latest returns the most recent checkpoint for a tenant, or nil when the
// tenant has never synced.
func (s *CheckpointService) Latest(ctx context.Context, tenant string) (*models.SyncCheckpoint, error) {
	var row models.SyncCheckpoint
	err := s.db.WithContext(ctx).
		Where("tenant = ?", tenant).
		Order("created_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, appErrors.Wrap(err, "Failed to read checkpoint")
	}
	return &row, nil
}

// History lists a tenant's checkpoints newest first, capped at limit.
func (s *CheckpointService) History(ctx context.Context, tenant string, limit int) ([]models.SyncCheckpoint, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var rows []models.SyncCheckpoint
	err := s.db.WithContext(ctx).
		Where("tenant = ?", tenant).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, appErrors.Wrap(err, "Failed to list checkpoints")
	}
	return rows, nil
}

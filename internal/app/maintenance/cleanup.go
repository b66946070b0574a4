package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/shopforge/shopforge/internal/models"
	"github.com/shopforge/shopforge/pkg/logger"
)

const (
	defaultCheckpointRetentionDays = 30
	defaultLockSpec                = "@hourly"
	defaultCheckpointSpec          = "@daily"
)

// Cleaner coordinates background maintenance tasks: releasing index locks
// whose holders died mid-reindex and pruning old sync checkpoints.
type Cleaner struct {
	db        *gorm.DB
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	retention int

	lockSchedule       string
	checkpointSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for scheduling and cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithCheckpointRetentionDays adjusts how long sync checkpoints are retained.
func WithCheckpointRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithLockSchedule overrides the cron specification for stale lock cleanup.
func WithLockSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.lockSchedule = spec
		}
	}
}

// WithCheckpointSchedule overrides the cron specification for checkpoint pruning.
func WithCheckpointSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.checkpointSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults.
func NewCleaner(db *gorm.DB, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:                 db,
		now:                time.Now,
		retention:          defaultCheckpointRetentionDays,
		lockSchedule:       defaultLockSpec,
		checkpointSchedule: defaultCheckpointSpec,
		log:                logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.db == nil {
		return nil
	}

	if _, err := c.cron.AddFunc(c.lockSchedule, func() {
		if _, err := CleanupStaleLocks(context.Background(), c.db, c.now()); err != nil {
			c.log.Warn("stale lock cleanup failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	if c.retention > 0 {
		if _, err := c.cron.AddFunc(c.checkpointSchedule, func() {
			if _, err := CleanupCheckpoints(context.Background(), c.db, c.now(), c.retention); err != nil {
				c.log.Warn("checkpoint cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all cleanup routines sequentially. Primarily used in tests
// and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.db == nil {
		return nil
	}

	var errs error

	if _, err := CleanupStaleLocks(ctx, c.db, c.now()); err != nil {
		errs = multierr.Append(errs, err)
	}
	if c.retention > 0 {
		if _, err := CleanupCheckpoints(ctx, c.db, c.now(), c.retention); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

// CleanupStaleLocks removes index locks whose expiry has passed.
func CleanupStaleLocks(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("cleanup locks: db is required")
	}

	result := db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&models.IndexLock{})
	if result.Error != nil {
		return 0, fmt.Errorf("cleanup locks: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// CleanupCheckpoints removes sync checkpoints older than the retention window.
func CleanupCheckpoints(ctx context.Context, db *gorm.DB, now time.Time, retentionDays int) (int64, error) {
	if db == nil {
		return 0, errors.New("cleanup checkpoints: db is required")
	}

	cutoff := now.AddDate(0, 0, -retentionDays)
	result := db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.SyncCheckpoint{})
	if result.Error != nil {
		return 0, fmt.Errorf("cleanup checkpoints: %w", result.Error)
	}
	return result.RowsAffected, nil
}

package sync

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shopforge/shopforge/internal/models"
	appErrors "github.com/shopforge/shopforge/pkg/errors"
	"github.com/shopforge/shopforge/pkg/logger"
)

// DefaultLockTTL bounds how long a reindex run may hold a tenant lock before
// another holder is allowed to take it over.
const DefaultLockTTL = 30 * time.Minute

// LockService serialises bulk reindex runs with one advisory lock per tenant.
type LockService struct {
	db  *gorm.DB
	ttl time.Duration
	log *zap.Logger
	now func() time.Time
}

// NewLockService constructs a lock service. A non-positive ttl falls back to
// DefaultLockTTL.
func NewLockService(db *gorm.DB, ttl time.Duration) *LockService {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &LockService{
		db:  db,
		ttl: ttl,
		log: logger.WithModule("sync"),
		now: time.Now,
	}
}

// Acquire takes the tenant lock for holderID. It succeeds when the lock is
// free, already held by the same holder, or stale; otherwise it reports
// SERVICE_UNAVAILABLE with the current holder in the details.
func (s *LockService) Acquire(ctx context.Context, tenant, holderID string) (*models.IndexLock, error) {
	if tenant == "" || holderID == "" {
		return nil, appErrors.ErrBadRequest.WithMessage("Tenant and holder are required")
	}

	now := s.now()
	lock := models.IndexLock{
		Tenant:     tenant,
		HolderID:   holderID,
		AcquiredAt: now,
		ExpiresAt:  now.Add(s.ttl),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("tenant = ?", tenant)
		// sqlite serialises writers on its own and rejects FOR UPDATE.
		if tx.Dialector.Name() != "sqlite" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var current models.IndexLock
		err := q.First(&current).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&lock).Error
		case err != nil:
			return err
		}

		if current.HolderID != holderID && current.ExpiresAt.After(now) {
			return appErrors.ErrServiceUnavailable.
				WithMessage("Tenant index is locked by another holder").
				WithDetail("tenant", tenant).
				WithDetail("holder", current.HolderID).
				WithDetail("expiresAt", current.ExpiresAt.UTC().Format(time.RFC3339))
		}

		if current.HolderID != holderID {
			s.log.Warn("taking over stale index lock",
				zap.String("tenant", tenant),
				zap.String("stale_holder", current.HolderID),
				zap.String("holder", holderID))
		}

		return tx.Model(&models.IndexLock{}).
			Where("tenant = ?", tenant).
			Updates(map[string]interface{}{
				"holder_id":   holderID,
				"acquired_at": now,
				"expires_at":  now.Add(s.ttl),
			}).Error
	})
	if err != nil {
		var appErr *appErrors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, "Failed to acquire index lock")
	}

	s.log.Info("index lock acquired",
		zap.String("tenant", tenant),
		zap.String("holder", holderID),
		zap.Time("expires_at", lock.ExpiresAt))
	return &lock, nil
}

// Release drops the tenant lock when holderID still owns it. Releasing a
// missing lock is a no-op; releasing someone else's lock is rejected.
func (s *LockService) Release(ctx context.Context, tenant, holderID string) error {
	if tenant == "" || holderID == "" {
		return appErrors.ErrBadRequest.WithMessage("Tenant and holder are required")
	}

	res := s.db.WithContext(ctx).
		Where("tenant = ? AND holder_id = ?", tenant, holderID).
		Delete(&models.IndexLock{})
	if res.Error != nil {
		return appErrors.Wrap(res.Error, "Failed to release index lock")
	}

	if res.RowsAffected == 0 {
		var current models.IndexLock
		err := s.db.WithContext(ctx).Where("tenant = ?", tenant).First(&current).Error
		if err == nil && current.HolderID != holderID {
			return appErrors.ErrServiceUnavailable.
				WithMessage("Lock is held by another holder").
				WithDetail("tenant", tenant).
				WithDetail("holder", current.HolderID)
		}
	}

	s.log.Info("index lock released", zap.String("tenant", tenant), zap.String("holder", holderID))
	return nil
}

// Status returns the current lock row for a tenant, or nil when unlocked.
func (s *LockService) Status(ctx context.Context, tenant string) (*models.IndexLock, error) {
	var lock models.IndexLock
	err := s.db.WithContext(ctx).Where("tenant = ?", tenant).First(&lock).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, appErrors.Wrap(err, "Failed to read index lock")
	}
	return &lock, nil
}

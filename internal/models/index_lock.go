package models

import "time"

// IndexLock serialises long-running reindex jobs per tenant. A lock is stale
// once ExpiresAt has passed; stale locks may be taken over by a new holder.
type IndexLock struct {
	Tenant     string    `gorm:"primaryKey;size:255" json:"tenant"`
	HolderID   string    `gorm:"size:255;not null" json:"holder_id"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `gorm:"index" json:"expires_at"`
}

// TableName keeps the table name stable regardless of gorm pluralization rules.
func (IndexLock) TableName() string {
	return "index_locks"
}

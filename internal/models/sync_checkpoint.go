package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SyncCheckpoint records the progress of a bulk synchronization run. The
// pipeline posts one row per run and updates it as indexing advances.
type SyncCheckpoint struct {
	ID           string         `gorm:"primaryKey;type:uuid" json:"id"`
	Tenant       string         `gorm:"size:255;not null;index" json:"tenant"`
	Status       string         `gorm:"size:64;not null" json:"status"`
	StartedAt    time.Time      `json:"started_at"`
	TotalIndexed int64          `json:"total_indexed"`
	TotalFailed  int64          `json:"total_failed"`
	FailedItems  datatypes.JSON `json:"failed_items"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TableName keeps the table name stable regardless of gorm pluralization rules.
func (SyncCheckpoint) TableName() string {
	return "sync_checkpoints"
}

// BeforeCreate ensures UUID identifiers are generated automatically.
func (c *SyncCheckpoint) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

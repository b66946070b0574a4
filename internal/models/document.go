package models

import (
	"time"

	"gorm.io/datatypes"
)

// Document is a stored entity body addressed by (Address, DocID). Address is
// the concrete storage location resolved from a type's address template, so
// documents of the same type may live in different rows per tenant.
type Document struct {
	ID        uint           `gorm:"primaryKey" json:"-"`
	Address   string         `gorm:"size:255;not null;uniqueIndex:idx_documents_address_doc;index:idx_documents_address" json:"address"`
	DocID     string         `gorm:"size:255;not null;uniqueIndex:idx_documents_address_doc" json:"doc_id"`
	Body      datatypes.JSON `gorm:"not null" json:"body"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// TableName keeps the table name stable regardless of gorm pluralization rules.
func (Document) TableName() string {
	return "documents"
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/shopforge/shopforge/internal/models"
	"github.com/shopforge/shopforge/internal/schema"
	"github.com/shopforge/shopforge/pkg/logger"
	"github.com/shopforge/shopforge/pkg/metrics"
)

// Document is an entity body as seen by API consumers.
type Document = map[string]interface{}

// Service is a generic CRUD façade over addressed document collections. It
// owns the only read path out of storage, which is where sensitive fields are
// stripped; callers cannot bypass that.
type Service struct {
	db     *gorm.DB
	schema *schema.Resolver
	log    *zap.Logger
}

// NewService constructs a document store service.
func NewService(db *gorm.DB, resolver *schema.Resolver) (*Service, error) {
	if db == nil {
		return nil, errors.New("store: db is required")
	}
	if resolver == nil {
		return nil, errors.New("store: schema resolver is required")
	}
	return &Service{db: db, schema: resolver, log: logger.WithModule("store")}, nil
}

// Collection binds the service to one entity type at one resolved address.
type Collection struct {
	svc      *Service
	typeName string
	address  string
}

// Collection returns a handle scoped to a resolved storage address.
func (s *Service) Collection(typeName, address string) *Collection {
	return &Collection{svc: s, typeName: typeName, address: address}
}

// ListOptions bounds and orders list results. Sort takes "field" or
// "field:desc".
type ListOptions struct {
	Limit  int
	Offset int
	Sort   string
}

// GetByID fetches one document by its storage identifier. Missing documents
// return (nil, nil).
func (c *Collection) GetByID(ctx context.Context, id string) (Document, error) {
	defer c.observe("get", time.Now())

	var record models.Document
	err := c.scoped(ctx).Where("doc_id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s/%s: %w", c.address, id, err)
	}

	return c.decode(record)
}

// GetByField fetches the first document whose body field equals value.
// Missing documents return (nil, nil).
func (c *Collection) GetByField(ctx context.Context, field string, value interface{}) (Document, error) {
	defer c.observe("get_by_field", time.Now())

	var record models.Document
	err := c.scoped(ctx).Where(datatypes.JSONQuery("body").Equals(value, field)).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s by %s: %w", c.address, field, err)
	}

	return c.decode(record)
}

// Exists reports whether a document with the given identifier exists.
func (c *Collection) Exists(ctx context.Context, id string) (bool, error) {
	defer c.observe("exists", time.Now())

	var count int64
	if err := c.scoped(ctx).Model(&models.Document{}).Where("doc_id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("store: exists %s/%s: %w", c.address, id, err)
	}
	return count > 0, nil
}

// ExistsByField reports whether any document has the given body field value.
func (c *Collection) ExistsByField(ctx context.Context, field string, value interface{}) (bool, error) {
	defer c.observe("exists_by_field", time.Now())

	var count int64
	err := c.scoped(ctx).Model(&models.Document{}).
		Where(datatypes.JSONQuery("body").Equals(value, field)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("store: exists %s by %s: %w", c.address, field, err)
	}
	return count > 0, nil
}

// List returns documents matching every equality filter, bounded and ordered
// by opts.
func (c *Collection) List(ctx context.Context, filters map[string]interface{}, opts ListOptions) ([]Document, error) {
	defer c.observe("list", time.Now())

	tx := c.scoped(ctx)
	for field, value := range filters {
		tx = tx.Where(datatypes.JSONQuery("body").Equals(value, field))
	}

	if order, ok := c.orderClause(opts.Sort); ok {
		tx = tx.Order(order)
	} else {
		tx = tx.Order("doc_id")
	}
	if opts.Limit > 0 {
		tx = tx.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		tx = tx.Offset(opts.Offset)
	}

	var records []models.Document
	if err := tx.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("store: list %s: %w", c.address, err)
	}

	docs := make([]Document, 0, len(records))
	for _, record := range records {
		doc, err := c.decode(record)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Count returns the number of documents matching every equality filter.
func (c *Collection) Count(ctx context.Context, filters map[string]interface{}) (int64, error) {
	defer c.observe("count", time.Now())

	tx := c.scoped(ctx).Model(&models.Document{})
	for field, value := range filters {
		tx = tx.Where(datatypes.JSONQuery("body").Equals(value, field))
	}

	var count int64
	if err := tx.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("store: count %s: %w", c.address, err)
	}
	return count, nil
}

// Create stores a new document. The identifier precedence is: explicit id,
// then the body's configured id field, then a generated UUID. The chosen id is
// mirrored into the body so field lookups on the id field stay consistent.
// Sensitive fields are persisted as given; they are only hidden on read.
func (c *Collection) Create(ctx context.Context, doc Document, id string) (Document, error) {
	defer c.observe("create", time.Now())

	if doc == nil {
		doc = Document{}
	}

	idField := c.svc.schema.IDField(c.typeName)
	if id == "" {
		if v, ok := doc[idField]; ok && v != nil {
			id = fmt.Sprintf("%v", v)
		}
	}
	if id == "" {
		id = uuid.NewString()
	}

	body := make(Document, len(doc)+1)
	for k, v := range doc {
		body[k] = v
	}
	if _, ok := body[idField]; !ok {
		body[idField] = id
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("store: create %s: encode body: %w", c.address, err)
	}

	record := models.Document{Address: c.address, DocID: id, Body: datatypes.JSON(raw)}
	if err := c.svc.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("store: create %s/%s: %w", c.address, id, err)
	}

	return c.strip(body), nil
}

// Update merges patch into an existing document. Missing documents return
// (nil, nil). Concurrent updates are last-write-wins; there is no per-document
// versioning at this layer.
func (c *Collection) Update(ctx context.Context, id string, patch Document) (Document, error) {
	defer c.observe("update", time.Now())

	var record models.Document
	err := c.scoped(ctx).Where("doc_id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: update %s/%s: %w", c.address, id, err)
	}

	var body Document
	if err := json.Unmarshal(record.Body, &body); err != nil {
		return nil, fmt.Errorf("store: update %s/%s: decode body: %w", c.address, id, err)
	}
	for k, v := range patch {
		body[k] = v
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("store: update %s/%s: encode body: %w", c.address, id, err)
	}

	record.Body = datatypes.JSON(raw)
	if err := c.svc.db.WithContext(ctx).Save(&record).Error; err != nil {
		return nil, fmt.Errorf("store: update %s/%s: %w", c.address, id, err)
	}

	return c.strip(body), nil
}

// Delete removes a document, reporting whether one existed.
func (c *Collection) Delete(ctx context.Context, id string) (bool, error) {
	defer c.observe("delete", time.Now())

	result := c.scoped(ctx).Where("doc_id = ?", id).Delete(&models.Document{})
	if result.Error != nil {
		return false, fmt.Errorf("store: delete %s/%s: %w", c.address, id, result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (c *Collection) scoped(ctx context.Context) *gorm.DB {
	return c.svc.db.WithContext(ctx).Where("address = ?", c.address)
}

func (c *Collection) decode(record models.Document) (Document, error) {
	var body Document
	if err := json.Unmarshal(record.Body, &body); err != nil {
		return nil, fmt.Errorf("store: decode %s/%s: %w", c.address, record.DocID, err)
	}
	return c.strip(body), nil
}

// strip removes the type's sensitive fields from a document copy. Every read
// path funnels through here.
func (c *Collection) strip(doc Document) Document {
	sensitive := c.svc.schema.SensitiveFields(c.typeName)
	if len(sensitive) == 0 || doc == nil {
		return doc
	}

	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	for _, field := range sensitive {
		delete(out, field)
	}
	return out
}

// orderClause renders a sort option into a dialect-appropriate expression on
// the JSON body. Field names are restricted to identifier characters.
func (c *Collection) orderClause(sort string) (string, bool) {
	if sort == "" {
		return "", false
	}

	field, dir, _ := strings.Cut(sort, ":")
	if !isIdentifier(field) {
		c.svc.log.Warn("ignoring sort on non-identifier field", zap.String("field", field))
		return "", false
	}

	direction := "ASC"
	if strings.EqualFold(dir, "desc") {
		direction = "DESC"
	}

	switch c.svc.db.Dialector.Name() {
	case "postgres":
		return fmt.Sprintf("body ->> '%s' %s", field, direction), true
	default:
		return fmt.Sprintf("json_extract(body, '$.%s') %s", field, direction), true
	}
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}

func (c *Collection) observe(op string, start time.Time) {
	metrics.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shopforge/shopforge/internal/database/testutil"
	"github.com/shopforge/shopforge/internal/schema"
)

func newTestCollection(t *testing.T) *Collection {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	resolver := schema.NewResolver()
	resolver.Configure("Widget", schema.TypeAddressConfig{
		AddressTemplate: "widgets",
		IDField:         "sku",
		SensitiveFields: []string{"cost", "supplierRef"},
	})

	svc, err := NewService(db, resolver)
	require.NoError(t, err)

	return svc.Collection("Widget", "widgets")
}

func TestCreateAndGetByID(t *testing.T) {
	col := newTestCollection(t)
	ctx := context.Background()

	created, err := col.Create(ctx, Document{"sku": "abc", "name": "Gear", "price": 9.5}, "")
	require.NoError(t, err)
	require.Equal(t, "Gear", created["name"])

	doc, err := col.GetByID(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.Equal(t, "Gear", doc["name"])
}

func TestCreateGeneratesIDWhenAbsent(t *testing.T) {
	col := newTestCollection(t)
	ctx := context.Background()

	created, err := col.Create(ctx, Document{"name": "Anonymous"}, "")
	require.NoError(t, err)
	require.NotEmpty(t, created["sku"], "generated id must be mirrored into the id field")

	doc, err := col.GetByID(ctx, created["sku"].(string))
	require.NoError(t, err)
	require.NotNil(t, doc)
}

func TestGetByIDMissingReturnsNil(t *testing.T) {
	col := newTestCollection(t)

	doc, err := col.GetByID(context.Background(), "nope")
	require.NoError(t, err)
	require.Nil(t, doc)
}

func TestSensitiveFieldsStrippedOnEveryReadPath(t *testing.T) {
	col := newTestCollection(t)
	ctx := context.Background()

	created, err := col.Create(ctx, Document{"sku": "abc", "name": "Gear", "cost": 4.2, "supplierRef": "sup-1"}, "")
	require.NoError(t, err)
	require.NotContains(t, created, "cost")

	byID, err := col.GetByID(ctx, "abc")
	require.NoError(t, err)
	require.NotContains(t, byID, "cost")
	require.NotContains(t, byID, "supplierRef")
	require.Equal(t, "Gear", byID["name"])

	byField, err := col.GetByField(ctx, "name", "Gear")
	require.NoError(t, err)
	require.NotContains(t, byField, "cost")

	listed, err := col.List(ctx, nil, ListOptions{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.NotContains(t, listed[0], "cost")

	updated, err := col.Update(ctx, "abc", Document{"price": 10.0})
	require.NoError(t, err)
	require.NotContains(t, updated, "cost")
}

func TestSensitiveFieldsPersistedOnWrite(t *testing.T) {
	col := newTestCollection(t)
	ctx := context.Background()

	_, err := col.Create(ctx, Document{"sku": "abc", "cost": 4.2}, "")
	require.NoError(t, err)

	// The field is stored even though reads hide it: filtering on it still works.
	exists, err := col.ExistsByField(ctx, "cost", 4.2)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestGetByField(t *testing.T) {
	col := newTestCollection(t)
	ctx := context.Background()

	_, err := col.Create(ctx, Document{"sku": "a", "name": "Gear", "color": "red"}, "")
	require.NoError(t, err)
	_, err = col.Create(ctx, Document{"sku": "b", "name": "Cog", "color": "blue"}, "")
	require.NoError(t, err)

	doc, err := col.GetByField(ctx, "color", "blue")
	require.NoError(t, err)
	require.Equal(t, "Cog", doc["name"])

	missing, err := col.GetByField(ctx, "color", "green")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestExists(t *testing.T) {
	col := newTestCollection(t)
	ctx := context.Background()

	_, err := col.Create(ctx, Document{"sku": "abc"}, "")
	require.NoError(t, err)

	ok, err := col.Exists(ctx, "abc")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = col.Exists(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestListFiltersPaginationAndSort(t *testing.T) {
	col := newTestCollection(t)
	ctx := context.Background()

	for _, doc := range []Document{
		{"sku": "a", "kind": "gear", "price": 3.0},
		{"sku": "b", "kind": "gear", "price": 1.0},
		{"sku": "c", "kind": "cog", "price": 2.0},
	} {
		_, err := col.Create(ctx, doc, "")
		require.NoError(t, err)
	}

	gears, err := col.List(ctx, map[string]interface{}{"kind": "gear"}, ListOptions{})
	require.NoError(t, err)
	require.Len(t, gears, 2)

	sorted, err := col.List(ctx, nil, ListOptions{Sort: "price:desc"})
	require.NoError(t, err)
	require.Len(t, sorted, 3)
	require.Equal(t, "a", sorted[0]["sku"])
	require.Equal(t, "b", sorted[2]["sku"])

	page, err := col.List(ctx, nil, ListOptions{Limit: 1, Offset: 1, Sort: "sku"})
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, "b", page[0]["sku"])
}

func TestCount(t *testing.T) {
	col := newTestCollection(t)
	ctx := context.Background()

	for _, sku := range []string{"a", "b", "c"} {
		_, err := col.Create(ctx, Document{"sku": sku, "kind": "gear"}, "")
		require.NoError(t, err)
	}

	total, err := col.Count(ctx, nil)
	require.NoError(t, err)
	require.EqualValues(t, 3, total)

	filtered, err := col.Count(ctx, map[string]interface{}{"kind": "gear"})
	require.NoError(t, err)
	require.EqualValues(t, 3, filtered)
}

func TestUpdateMergesPatch(t *testing.T) {
	col := newTestCollection(t)
	ctx := context.Background()

	_, err := col.Create(ctx, Document{"sku": "abc", "name": "Gear", "price": 9.5}, "")
	require.NoError(t, err)

	updated, err := col.Update(ctx, "abc", Document{"price": 12.0})
	require.NoError(t, err)
	require.Equal(t, "Gear", updated["name"])
	require.EqualValues(t, 12.0, updated["price"])
}

func TestUpdateMissingReturnsNil(t *testing.T) {
	col := newTestCollection(t)

	doc, err := col.Update(context.Background(), "missing", Document{"x": 1})
	require.NoError(t, err)
	require.Nil(t, doc)
}

func TestDelete(t *testing.T) {
	col := newTestCollection(t)
	ctx := context.Background()

	_, err := col.Create(ctx, Document{"sku": "abc"}, "")
	require.NoError(t, err)

	deleted, err := col.Delete(ctx, "abc")
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = col.Delete(ctx, "abc")
	require.NoError(t, err)
	require.False(t, deleted, "deleting a missing document reports false, not an error")
}

func TestAddressIsolation(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	resolver := schema.NewResolver()
	resolver.Configure("Item", schema.TypeAddressConfig{AddressTemplate: "items-{tenant}", IDField: "sku"})

	svc, err := NewService(db, resolver)
	require.NoError(t, err)

	ctx := context.Background()
	acme := svc.Collection("Item", "items-acme")
	globex := svc.Collection("Item", "items-globex")

	_, err = acme.Create(ctx, Document{"sku": "abc", "name": "Acme Gear"}, "")
	require.NoError(t, err)

	doc, err := globex.GetByID(ctx, "abc")
	require.NoError(t, err)
	require.Nil(t, doc, "documents must not leak across addresses")
}

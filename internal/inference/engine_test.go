package inference

import (
	"context"
	"testing"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/require"

	"github.com/shopforge/shopforge/internal/cache"
	"github.com/shopforge/shopforge/internal/database/testutil"
	"github.com/shopforge/shopforge/internal/schema"
	"github.com/shopforge/shopforge/internal/store"
	appErrors "github.com/shopforge/shopforge/pkg/errors"
)

type engineFixture struct {
	engine   *Engine
	resolver *schema.Resolver
	store    *store.Service
	cache    *cache.Memory
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t)

	resolver := schema.NewResolver()
	resolver.Configure("Widget", schema.TypeAddressConfig{
		AddressTemplate: "widgets",
		IDField:         "sku",
		IDAliases:       []string{"handle"},
		SensitiveFields: []string{"cost"},
	})
	resolver.Configure("Item", schema.TypeAddressConfig{
		AddressTemplate: "items-{tenant}",
		IDField:         "sku",
	})

	svc, err := store.NewService(db, resolver)
	require.NoError(t, err)

	mem := cache.New(cache.Config{Enabled: true, DefaultTTL: time.Minute, TrackStats: true})

	engine, err := NewEngine(resolver, svc, mem, Options{})
	require.NoError(t, err)

	return &engineFixture{engine: engine, resolver: resolver, store: svc, cache: mem}
}

func (f *engineFixture) register(t *testing.T, spec FieldSpec) graphql.FieldResolveFn {
	t.Helper()

	_, fn, err := f.engine.Register(spec)
	require.NoError(t, err)
	return fn
}

func (f *engineFixture) call(t *testing.T, fn graphql.FieldResolveFn, args map[string]interface{}) (interface{}, error) {
	t.Helper()

	return fn(graphql.ResolveParams{Args: args, Context: context.Background()})
}

func (f *engineFixture) seedWidget(t *testing.T, doc store.Document) {
	t.Helper()

	_, err := f.store.Collection("Widget", "widgets").Create(context.Background(), doc, "")
	require.NoError(t, err)
}

func TestGetByIDReturnsDocumentWithoutSensitiveFields(t *testing.T) {
	f := newEngineFixture(t)
	f.seedWidget(t, store.Document{"sku": "abc", "name": "Gear", "cost": 4.5})

	fn := f.register(t, FieldSpec{Name: "widget", EntityType: "Widget", Args: []ArgSpec{{Name: "sku"}}})

	result, err := f.call(t, fn, map[string]interface{}{"sku": "abc"})
	require.NoError(t, err)

	doc, ok := result.(store.Document)
	require.True(t, ok)
	require.Equal(t, "Gear", doc["name"])
	require.NotContains(t, doc, "cost")
}

func TestGetByIDMissingReturnsNil(t *testing.T) {
	f := newEngineFixture(t)

	fn := f.register(t, FieldSpec{Name: "widget", EntityType: "Widget", Args: []ArgSpec{{Name: "sku"}}})

	result, err := f.call(t, fn, map[string]interface{}{"sku": "nope"})
	require.NoError(t, err)
	require.Nil(t, result)
}

func TestGetByAliasFallsBackToIDField(t *testing.T) {
	f := newEngineFixture(t)

	// The stored identifier differs from the body's sku, so the direct
	// id lookup misses and the alias path must retry on the id field.
	_, err := f.store.Collection("Widget", "widgets").
		Create(context.Background(), store.Document{"sku": "abc", "name": "Gear"}, "internal-9")
	require.NoError(t, err)

	fn := f.register(t, FieldSpec{Name: "widget", EntityType: "Widget", Args: []ArgSpec{{Name: "handle"}}})

	result, err := f.call(t, fn, map[string]interface{}{"handle": "abc"})
	require.NoError(t, err)

	doc, ok := result.(store.Document)
	require.True(t, ok)
	require.Equal(t, "Gear", doc["name"])
}

func TestListFiltersAndPagination(t *testing.T) {
	f := newEngineFixture(t)
	f.seedWidget(t, store.Document{"sku": "a", "kind": "gear"})
	f.seedWidget(t, store.Document{"sku": "b", "kind": "gear"})
	f.seedWidget(t, store.Document{"sku": "c", "kind": "cog"})

	fn := f.register(t, FieldSpec{Name: "widgets", EntityType: "Widget", Args: []ArgSpec{{Name: "kind"}, {Name: "limit"}}})

	result, err := f.call(t, fn, map[string]interface{}{"kind": "gear"})
	require.NoError(t, err)
	require.Len(t, result.([]interface{}), 2)

	result, err = f.call(t, fn, map[string]interface{}{"kind": "gear", "limit": 1})
	require.NoError(t, err)
	require.Len(t, result.([]interface{}), 1)
}

func TestListServedFromCacheOnSecondCall(t *testing.T) {
	f := newEngineFixture(t)
	f.seedWidget(t, store.Document{"sku": "a", "kind": "gear"})

	fn := f.register(t, FieldSpec{Name: "widgets", EntityType: "Widget", Args: []ArgSpec{{Name: "kind"}}})

	_, err := f.call(t, fn, map[string]interface{}{"kind": "gear"})
	require.NoError(t, err)

	before := f.cache.Stats()
	_, err = f.call(t, fn, map[string]interface{}{"kind": "gear"})
	require.NoError(t, err)

	after := f.cache.Stats()
	require.Equal(t, before.Hits+1, after.Hits, "second identical list must hit the cache")
}

func TestExistsByIDAndByField(t *testing.T) {
	f := newEngineFixture(t)
	f.seedWidget(t, store.Document{"sku": "abc", "name": "Gear"})

	byID := f.register(t, FieldSpec{Name: "widgetExists", EntityType: "Widget", Args: []ArgSpec{{Name: "sku"}}})
	result, err := f.call(t, byID, map[string]interface{}{"sku": "abc"})
	require.NoError(t, err)
	require.Equal(t, true, result)

	result, err = f.call(t, byID, map[string]interface{}{"sku": "zzz"})
	require.NoError(t, err)
	require.Equal(t, false, result)
}

func TestCreateUpdateDeleteRoundTrip(t *testing.T) {
	f := newEngineFixture(t)

	create := f.register(t, FieldSpec{Name: "createWidget", IsMutation: true, EntityType: "Widget", Args: []ArgSpec{{Name: "input", IsObject: true}}})
	update := f.register(t, FieldSpec{Name: "updateWidget", IsMutation: true, EntityType: "Widget", Args: []ArgSpec{{Name: "sku"}, {Name: "input", IsObject: true}}})
	del := f.register(t, FieldSpec{Name: "deleteWidget", IsMutation: true, EntityType: "Boolean", Args: []ArgSpec{{Name: "sku"}}})

	created, err := f.call(t, create, map[string]interface{}{"input": map[string]interface{}{"sku": "abc", "name": "Gear"}})
	require.NoError(t, err)
	require.Equal(t, "Gear", created.(store.Document)["name"])

	updated, err := f.call(t, update, map[string]interface{}{"sku": "abc", "input": map[string]interface{}{"name": "Gear v2"}})
	require.NoError(t, err)
	require.Equal(t, "Gear v2", updated.(store.Document)["name"])

	deleted, err := f.call(t, del, map[string]interface{}{"sku": "abc"})
	require.NoError(t, err)
	require.Equal(t, true, deleted)
}

func TestDeleteMissingReturnsFalseNotError(t *testing.T) {
	f := newEngineFixture(t)

	del := f.register(t, FieldSpec{Name: "deleteWidget", IsMutation: true, EntityType: "Boolean", Args: []ArgSpec{{Name: "sku"}}})

	deleted, err := f.call(t, del, map[string]interface{}{"sku": "never-existed"})
	require.NoError(t, err)
	require.Equal(t, false, deleted)
}

func TestUpdateMissingReturnsNilNotError(t *testing.T) {
	f := newEngineFixture(t)

	update := f.register(t, FieldSpec{Name: "updateWidget", IsMutation: true, EntityType: "Widget", Args: []ArgSpec{{Name: "sku"}, {Name: "input", IsObject: true}}})

	result, err := f.call(t, update, map[string]interface{}{"sku": "ghost", "input": map[string]interface{}{"name": "x"}})
	require.NoError(t, err)
	require.Nil(t, result)
}

func TestWriteInvalidatesTenantScopedReads(t *testing.T) {
	f := newEngineFixture(t)
	f.seedWidget(t, store.Document{"sku": "a", "kind": "gear"})

	list := f.register(t, FieldSpec{Name: "widgets", EntityType: "Widget", Args: []ArgSpec{{Name: "kind"}}})
	create := f.register(t, FieldSpec{Name: "createWidget", IsMutation: true, EntityType: "Widget", Args: []ArgSpec{{Name: "input", IsObject: true}}})

	first, err := f.call(t, list, map[string]interface{}{"kind": "gear"})
	require.NoError(t, err)
	require.Len(t, first.([]interface{}), 1)

	_, err = f.call(t, create, map[string]interface{}{"input": map[string]interface{}{"sku": "b", "kind": "gear"}})
	require.NoError(t, err)

	second, err := f.call(t, list, map[string]interface{}{"kind": "gear"})
	require.NoError(t, err)
	require.Len(t, second.([]interface{}), 2, "post-write read must not serve the pre-write cached list")
}

func TestDynamicAddressRoutesPerTenant(t *testing.T) {
	f := newEngineFixture(t)

	create := f.register(t, FieldSpec{Name: "createItem", IsMutation: true, EntityType: "Item", Args: []ArgSpec{{Name: "tenant"}, {Name: "input", IsObject: true}}})
	get := f.register(t, FieldSpec{Name: "item", EntityType: "Item", Args: []ArgSpec{{Name: "sku"}}})

	_, err := f.call(t, create, map[string]interface{}{
		"tenant": "acme",
		"input":  map[string]interface{}{"sku": "abc", "name": "Acme Gear"},
	})
	require.NoError(t, err)

	// Reading with the tenant argument resolves items-acme.
	result, err := f.call(t, get, map[string]interface{}{"sku": "abc", "tenant": "acme"})
	require.NoError(t, err)
	require.NotNil(t, result)

	// Omitting the tenant argument degrades to the literal placeholder
	// address items-tenant, which holds nothing.
	result, err = f.call(t, get, map[string]interface{}{"sku": "abc"})
	require.NoError(t, err)
	require.Nil(t, result)
}

func TestRegisterFailsClosedOnUninferableField(t *testing.T) {
	f := newEngineFixture(t)

	_, _, err := f.engine.Register(FieldSpec{Name: "widget", EntityType: "Widget"})
	require.Error(t, err)
}

func TestValidationErrorOnMissingIdentifier(t *testing.T) {
	f := newEngineFixture(t)

	fn := f.register(t, FieldSpec{Name: "widget", EntityType: "Widget", Args: []ArgSpec{{Name: "sku"}}})

	_, err := f.call(t, fn, map[string]interface{}{})
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestOperationsTablePopulated(t *testing.T) {
	f := newEngineFixture(t)

	f.register(t, FieldSpec{Name: "widget", EntityType: "Widget", Args: []ArgSpec{{Name: "sku"}}})
	f.register(t, FieldSpec{Name: "widgets", EntityType: "Widget"})

	ops := f.engine.Operations()
	require.Len(t, ops, 2)
	require.Equal(t, OpGetByID, ops["widget"].Kind)
	require.Equal(t, OpList, ops["widgets"].Kind)
}

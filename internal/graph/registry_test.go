package graph

import (
	"testing"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/require"

	"github.com/shopforge/shopforge/internal/cache"
	"github.com/shopforge/shopforge/internal/database/testutil"
	"github.com/shopforge/shopforge/internal/inference"
	"github.com/shopforge/shopforge/internal/schema"
	"github.com/shopforge/shopforge/internal/store"
)

func buildDefaultSchema(t *testing.T) graphql.Schema {
	t.Helper()

	db := testutil.MustOpenTestDB(t)

	resolver := schema.NewResolver()
	svc, err := store.NewService(db, resolver)
	require.NoError(t, err)

	engine, err := inference.NewEngine(resolver, svc,
		cache.New(cache.Config{Enabled: true, DefaultTTL: time.Minute, TrackStats: true}),
		inference.Options{})
	require.NoError(t, err)

	built, err := NewBuilder(resolver, engine).Build(DefaultEntities(), DefaultFields())
	require.NoError(t, err)
	return built
}

func TestDefaultSchemaBuilds(t *testing.T) {
	buildDefaultSchema(t)
}

func TestDefaultSchemaTenantScopedOrders(t *testing.T) {
	s := buildDefaultSchema(t)

	created := execute(t, s, `mutation($input: JSON) { createOrder(tenant: "acme", input: $input) { id status total } }`, map[string]interface{}{
		"input": map[string]interface{}{"status": "open", "total": 12.5, "currency": "EUR"},
	})
	require.Empty(t, created.Errors)

	other := execute(t, s, `{ orders(tenant: "globex") { id } }`, nil)
	require.Empty(t, other.Errors)
	require.Empty(t, other.Data.(map[string]interface{})["orders"])

	mine := execute(t, s, `{ orders(tenant: "acme", status: "open") { id status } }`, nil)
	require.Empty(t, mine.Errors)
	require.Len(t, mine.Data.(map[string]interface{})["orders"], 1)
}

func TestDefaultSchemaAliasLookup(t *testing.T) {
	s := buildDefaultSchema(t)

	created := execute(t, s, `mutation($input: JSON) { createProduct(input: $input) { sku } }`, map[string]interface{}{
		"input": map[string]interface{}{"sku": "p-9", "handle": "gear-pro", "name": "Gear Pro"},
	})
	require.Empty(t, created.Errors)

	byHandle := execute(t, s, `{ productByHandle(handle: "gear-pro") { sku name } }`, nil)
	require.Empty(t, byHandle.Errors)
	require.Equal(t, "p-9", byHandle.Data.(map[string]interface{})["productByHandle"].(map[string]interface{})["sku"])
}

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/shopforge/shopforge/internal/cache"
	"github.com/shopforge/shopforge/internal/database/testutil"
	"github.com/shopforge/shopforge/internal/gateway"
	"github.com/shopforge/shopforge/internal/graph"
	"github.com/shopforge/shopforge/internal/inference"
	"github.com/shopforge/shopforge/internal/schema"
	"github.com/shopforge/shopforge/internal/store"
	"github.com/shopforge/shopforge/internal/sync"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t)
	resolver := schema.NewResolver()

	svc, err := store.NewService(db, resolver)
	require.NoError(t, err)

	mem := cache.New(cache.Config{Enabled: true, DefaultTTL: time.Minute, TrackStats: true})

	engine, err := inference.NewEngine(resolver, svc, mem, inference.Options{})
	require.NoError(t, err)

	product := graph.Entity{
		Name:       "Product",
		Annotation: "@index products idField=sku",
		Fields: []graph.EntityField{
			{Name: "sku", Type: "String"},
			{Name: "name", Type: "String"},
		},
	}
	built, err := graph.NewBuilder(resolver, engine).Build(
		[]graph.Entity{product},
		graph.CRUDFields(product, "sku"),
	)
	require.NoError(t, err)

	gw := gateway.New(built, gateway.Config{})

	router, err := NewRouter(Options{
		DB:          db,
		Gateway:     gw,
		Cache:       mem,
		Resolver:    resolver,
		Locks:       sync.NewLockService(db, time.Minute),
		Checkpoints: sync.NewCheckpointService(db),
	})
	require.NoError(t, err)
	return router
}

func postGraphQL(t *testing.T, r *gin.Engine, body interface{}) map[string]interface{} {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/graphql", &buf)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func TestGraphQLEndToEnd(t *testing.T) {
	r := newTestRouter(t)

	created := postGraphQL(t, r, gin.H{
		"query":     `mutation($input: JSON) { createProduct(input: $input) { sku name } }`,
		"variables": gin.H{"input": gin.H{"sku": "p-1", "name": "Gear"}},
	})
	require.Nil(t, created["errors"])

	fetched := postGraphQL(t, r, gin.H{"query": `{ product(sku: "p-1") { name } }`})
	require.Nil(t, fetched["errors"])

	data := fetched["data"].(map[string]interface{})
	require.Equal(t, "Gear", data["product"].(map[string]interface{})["name"])

	ext := fetched["extensions"].(map[string]interface{})
	require.NotEmpty(t, ext["requestId"])
}

func TestGraphQLErrorEnvelope(t *testing.T) {
	r := newTestRouter(t)

	resp := postGraphQL(t, r, gin.H{"query": `{ product(sku: "p-1") }`})
	errs := resp["errors"].([]interface{})
	require.NotEmpty(t, errs)

	first := errs[0].(map[string]interface{})
	require.NotEmpty(t, first["extensions"].(map[string]interface{})["code"])
}

func TestGraphQLMalformedBody(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewBufferString("not-json"))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthRoute(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestMetricsRoute(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "NOT_FOUND")
}

func TestRouterRequiresCoreDependencies(t *testing.T) {
	_, err := NewRouter(Options{})
	require.Error(t, err)
}

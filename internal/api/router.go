package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/shopforge/shopforge/internal/cache"
	"github.com/shopforge/shopforge/internal/gateway"
	"github.com/shopforge/shopforge/internal/handlers"
	"github.com/shopforge/shopforge/internal/middleware"
	"github.com/shopforge/shopforge/internal/schema"
	"github.com/shopforge/shopforge/internal/sync"
)

// Options carries the services the router exposes.
type Options struct {
	DB          *gorm.DB
	Gateway     *gateway.Gateway
	Cache       *cache.Memory
	Resolver    *schema.Resolver
	Locks       *sync.LockService
	Checkpoints *sync.CheckpointService

	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(opts Options) (*gin.Engine, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if opts.Gateway == nil {
		return nil, fmt.Errorf("gateway must be provided")
	}
	if opts.Cache == nil {
		return nil, fmt.Errorf("cache must be provided")
	}
	if opts.Resolver == nil {
		return nil, fmt.Errorf("schema resolver must be provided")
	}

	if opts.RateLimitRequests <= 0 {
		opts.RateLimitRequests = 100
	}
	if opts.RateLimitWindow <= 0 {
		opts.RateLimitWindow = time.Minute
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	r.Use(middleware.RateLimit(opts.RateLimitRequests, opts.RateLimitWindow))

	// Health endpoint (public)
	r.GET("/health", handlers.Health(opts.DB))

	// GraphQL endpoint
	graphqlHandler := handlers.NewGraphQLHandler(opts.Gateway)
	r.POST("/graphql", graphqlHandler.Execute)

	api := r.Group("/api")

	// Cache administration
	cacheHandler := handlers.NewCacheHandler(opts.Cache)
	apiCache := api.Group("/cache")
	{
		apiCache.GET("/stats", cacheHandler.Stats)
		apiCache.GET("/entry", cacheHandler.Entry)
		apiCache.POST("/clear", cacheHandler.Clear)
	}

	// Schema registry
	schemaHandler := handlers.NewSchemaHandler(opts.Resolver)
	apiSchema := api.Group("/schema")
	{
		apiSchema.GET("/types", schemaHandler.Types)
		apiSchema.GET("/types/:name", schemaHandler.Type)
	}

	// Bulk synchronization collaborator surface
	if opts.Locks != nil && opts.Checkpoints != nil {
		syncHandler := handlers.NewSyncHandler(opts.Locks, opts.Checkpoints)
		apiSync := api.Group("/sync")
		{
			apiSync.POST("/locks", syncHandler.AcquireLock)
			apiSync.DELETE("/locks", syncHandler.ReleaseLock)
			apiSync.GET("/locks/:tenant", syncHandler.LockStatus)
			apiSync.POST("/checkpoints", syncHandler.SaveCheckpoint)
			apiSync.GET("/checkpoints/:tenant", syncHandler.LatestCheckpoint)
			apiSync.GET("/checkpoints/:tenant/history", syncHandler.CheckpointHistory)
		}
	}

	// Metrics endpoint
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

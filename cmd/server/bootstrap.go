package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/shopforge/shopforge/internal/api"
	"github.com/shopforge/shopforge/internal/app"
	"github.com/shopforge/shopforge/internal/app/maintenance"
	"github.com/shopforge/shopforge/internal/cache"
	"github.com/shopforge/shopforge/internal/database"
	"github.com/shopforge/shopforge/internal/gateway"
	"github.com/shopforge/shopforge/internal/graph"
	"github.com/shopforge/shopforge/internal/inference"
	"github.com/shopforge/shopforge/internal/schema"
	"github.com/shopforge/shopforge/internal/store"
	"github.com/shopforge/shopforge/internal/sync"
	"github.com/shopforge/shopforge/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB       *gorm.DB
	Cache    *cache.Memory
	Resolver *schema.Resolver
	Engine   *inference.Engine
	Gateway  *gateway.Gateway
	Cleaner  *maintenance.Cleaner
	Router   *gin.Engine
}

// bootstrapRuntime initialises the database, cache, inferred schema and the
// HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	stack.Cache = cache.New(cfg.CacheConfig())
	if err := stack.Cache.Start(); err != nil {
		return nil, fmt.Errorf("start cache sweeper: %w", err)
	}

	stack.Resolver = schema.NewResolver()

	storeSvc, err := store.NewService(stack.DB, stack.Resolver)
	if err != nil {
		return nil, fmt.Errorf("initialise document store: %w", err)
	}

	stack.Engine, err = inference.NewEngine(stack.Resolver, storeSvc, stack.Cache, inference.Options{
		StorageTimeout:  cfg.Gateway.StorageTimeout,
		DevelopmentMode: cfg.Server.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise inference engine: %w", err)
	}

	built, err := graph.NewBuilder(stack.Resolver, stack.Engine).Build(graph.DefaultEntities(), graph.DefaultFields())
	if err != nil {
		return nil, fmt.Errorf("build schema: %w", err)
	}
	log.Info("schema built",
		zap.Int("types", len(stack.Resolver.Types())),
		zap.Int("operations", len(stack.Engine.Operations())))

	stack.Gateway = gateway.New(built, gateway.Config{
		MaxDepth:             cfg.Gateway.MaxDepth,
		MaxComplexity:        cfg.Gateway.MaxComplexity,
		IntrospectionEnabled: cfg.Gateway.IntrospectionEnabled,
	})

	locks := sync.NewLockService(stack.DB, cfg.Sync.LockTTL)
	checkpoints := sync.NewCheckpointService(stack.DB)

	stack.Cleaner = maintenance.NewCleaner(stack.DB,
		maintenance.WithCheckpointRetentionDays(cfg.Sync.CheckpointRetention))
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	stack.Router, err = api.NewRouter(api.Options{
		DB:                stack.DB,
		Gateway:           stack.Gateway,
		Cache:             stack.Cache,
		Resolver:          stack.Resolver,
		Locks:             locks,
		Checkpoints:       checkpoints,
		RateLimitRequests: cfg.API.RateLimitRequests,
		RateLimitWindow:   cfg.API.RateLimitWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if stopCtx != nil {
			ctx = stopCtx
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.Cache != nil {
		s.Cache.Stop()
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.DatabaseConfig()
	dbCfg.Driver = strings.ToLower(strings.TrimSpace(dbCfg.Driver))

	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected", zap.String("driver", dbCfg.Driver))
	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}

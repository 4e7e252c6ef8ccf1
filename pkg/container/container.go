package container

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"onboarding-backend/internal/config"
	"onboarding-backend/internal/domains/onboarding"
	onboardingHandler "onboarding-backend/internal/domains/onboarding/handler"
	onboardingRepo "onboarding-backend/internal/domains/onboarding/repository"
	onboardingService "onboarding-backend/internal/domains/onboarding/service"
	"onboarding-backend/internal/infrastructure/analytics"
	infraCache "onboarding-backend/internal/infrastructure/cache"
	"onboarding-backend/internal/infrastructure/database"
	"onboarding-backend/internal/infrastructure/indexnow"
	"onboarding-backend/internal/infrastructure/queue"
	"onboarding-backend/internal/infrastructure/registration"
	"onboarding-backend/internal/infrastructure/storage"
	"onboarding-backend/pkg/cache"
	"onboarding-backend/pkg/jwt"
	"onboarding-backend/pkg/logger"
	"onboarding-backend/pkg/money"
)

// ========================================
// CONTAINER STRUCT
// ========================================

// Container holds every long lived dependency of the API process.
// Fields are populated in dependency order by NewContainer.
type Container struct {
	// ========================================
	// INFRASTRUCTURE LAYER
	// ========================================
	Config     *config.Config
	Redis      *infraCache.RedisClient
	Cache      cache.Cache
	DB         *database.PostgresDB // only for ONBOARDING_DRAFT_STORE=postgres
	SQLite     *sql.DB              // only for ONBOARDING_DRAFT_STORE=sqlite
	Storage    *storage.MinIOStorage
	Queue      *asynq.Client
	JWTManager *jwt.Manager

	// ========================================
	// REPOSITORY LAYER
	// ========================================
	DraftStore onboarding.DraftStore

	// ========================================
	// SERVICE LAYER
	// ========================================
	OnboardingService onboarding.Service

	// ========================================
	// HANDLER LAYER
	// ========================================
	OnboardingHandler *onboardingHandler.OnboardingHandler
}

// ========================================
// CONSTRUCTOR: BUILD CONTAINER
// ========================================

// NewContainer builds the dependency graph in order:
// config, infrastructure, repositories, services, handlers.
func NewContainer() (*Container, error) {
	c := &Container{}

	// ========================================
	// STEP 1: LOAD CONFIGURATION
	// ========================================
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c.Config = cfg
	logger.Init(cfg.App.Environment, cfg.App.LogLevel)
	logger.Info("[CONTAINER] Config loaded", map[string]interface{}{
		"environment": cfg.App.Environment,
		"draft_store": cfg.Onboarding.DraftStore,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// ========================================
	// STEP 2: INFRASTRUCTURE
	// ========================================
	if err := c.initInfrastructure(ctx); err != nil {
		c.Cleanup()
		return nil, err
	}

	// ========================================
	// STEP 3: REPOSITORIES
	// ========================================
	if err := c.initDraftStore(ctx); err != nil {
		c.Cleanup()
		return nil, err
	}

	// ========================================
	// STEP 4: SERVICES
	// ========================================
	c.initServices()

	// ========================================
	// STEP 5: HANDLERS
	// ========================================
	fees, err := money.NewFeeCalculator(cfg.Onboarding.PlatformFee)
	if err != nil {
		c.Cleanup()
		return nil, fmt.Errorf("invalid ONBOARDING_PLATFORM_FEE: %w", err)
	}
	c.OnboardingHandler = onboardingHandler.NewOnboardingHandler(c.OnboardingService, fees, cfg.Onboarding.Currency)

	logger.Info("[CONTAINER] Initialized", nil)
	return c, nil
}

func (c *Container) initInfrastructure(ctx context.Context) error {
	cfg := c.Config

	// Redis backs the cache, the credential store and the job queue
	c.Redis = infraCache.NewRedisClient(cfg.Redis.Host, cfg.Redis.Password, cfg.Redis.DB)
	if err := c.Redis.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	c.Cache = infraCache.NewRedisCache(c.Redis.Client)

	c.Queue = queue.NewClient(cfg.Redis.Host, cfg.Redis.Password, cfg.Redis.DB)

	objects, err := storage.NewMinIOStorage(cfg.MinIO)
	if err != nil {
		return fmt.Errorf("failed to init minio: %w", err)
	}
	c.Storage = objects

	c.JWTManager = jwt.NewManager(cfg.JWT.Secret, time.Duration(cfg.JWT.SessionTokenExpiry)*time.Hour)
	return nil
}

func (c *Container) initDraftStore(ctx context.Context) error {
	cfg := c.Config

	switch cfg.Onboarding.DraftStore {
	case "postgres":
		poolCfg, err := cfg.Database.PoolConfig()
		if err != nil {
			return fmt.Errorf("failed to load database config: %w", err)
		}
		db := database.NewPostgresDB(poolCfg)
		if err := db.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		c.DB = db
		if err := onboardingRepo.MigratePostgres(ctx, db.Pool); err != nil {
			return fmt.Errorf("failed to migrate drafts table: %w", err)
		}
		c.DraftStore = onboardingRepo.NewPostgresDraftStore(db.Pool)

	case "sqlite":
		db, err := database.OpenSQLite(ctx, cfg.Onboarding.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to open sqlite: %w", err)
		}
		c.SQLite = db
		store, err := onboardingRepo.NewSQLiteDraftStore(ctx, db)
		if err != nil {
			return fmt.Errorf("failed to init sqlite drafts: %w", err)
		}
		c.DraftStore = store

	case "memory":
		logger.Warn("[CONTAINER] Drafts are kept in memory and lost on restart", nil)
		c.DraftStore = onboardingRepo.NewMemoryDraftStore()

	default:
		c.DraftStore = onboardingRepo.NewCacheDraftStore(c.Cache)
	}
	return nil
}

func (c *Container) initServices() {
	cfg := c.Config

	registrar := registration.NewClient(cfg.Registration)
	pictures := storage.NewProfilePictureStore(c.Storage, storage.NewImageProcessor())
	credentials := onboardingService.NewCredentialStore(c.Cache, time.Duration(cfg.JWT.SessionTokenExpiry)*time.Hour)

	c.OnboardingService = onboardingService.NewOnboardingService(onboardingService.Dependencies{
		Drafts:       c.DraftStore,
		Availability: registrar,
		Registrar:    registrar,
		Analytics:    analytics.NewQueueEmitter(c.Queue),
		Indexer:      indexnow.NewQueueNotifier(c.Queue, cfg.Onboarding.SiteURL),
		Pictures:     pictures,
		Credentials:  credentials,
		Tokens:       c.JWTManager,
	}, onboardingService.Options{
		Debounce:     cfg.Onboarding.Debounce,
		CheckTimeout: cfg.Registration.Timeout,
		LoginURL:     cfg.Onboarding.LoginURL,
	})
}

// HealthChecks lists the dependencies reported by GET /health
func (c *Container) HealthChecks() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{
		"redis": c.Redis.HealthCheck,
		"minio": c.Storage.HealthCheck,
	}
	if c.DB != nil {
		checks["postgres"] = c.DB.HealthCheck
	}
	if c.SQLite != nil {
		checks["sqlite"] = c.SQLite.PingContext
	}
	return checks
}

// Cleanup releases connections; safe on a partially built container
func (c *Container) Cleanup() {
	logger.Info("[CONTAINER] Cleaning up resources", nil)

	if c.Queue != nil {
		if err := c.Queue.Close(); err != nil {
			logger.Error("[CONTAINER] Failed to close queue client", err)
		}
	}
	if c.DB != nil {
		c.DB.Close()
	}
	if c.SQLite != nil {
		if err := c.SQLite.Close(); err != nil {
			logger.Error("[CONTAINER] Failed to close sqlite", err)
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logger.Error("[CONTAINER] Failed to close redis", err)
		}
	}
}

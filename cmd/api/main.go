package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/reef-research/backend/internal/api/handlers"
	rediscache "github.com/reef-research/backend/internal/cache/redis"
	"github.com/reef-research/backend/internal/credits"
	"github.com/reef-research/backend/internal/ingestion"
	"github.com/reef-research/backend/internal/llm"
	"github.com/reef-research/backend/internal/metrics"
	"github.com/reef-research/backend/internal/middleware/ratelimit"
	"github.com/reef-research/backend/internal/middleware/security"
	"github.com/reef-research/backend/internal/middleware/validation"
	"github.com/reef-research/backend/internal/papers"
	"github.com/reef-research/backend/internal/pipeline"
	"github.com/reef-research/backend/internal/search"
	"github.com/reef-research/backend/internal/storage/sqlite"
	"github.com/reef-research/backend/internal/vector/milvus"
	"github.com/reef-research/backend/pkg/config"
	appLogger "github.com/reef-research/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Reef research assistant API server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var cacheClient *rediscache.Client
	if cfg.Redis.Enabled {
		cacheClient, err = rediscache.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, continuing without cache", zap.Error(err))
			cacheClient = nil
		} else {
			defer cacheClient.Close()
		}
	}

	milvusClient, err := milvus.NewClient(
		cfg.Milvus.Endpoint,
		cfg.Milvus.APIKey,
		cfg.Milvus.CollectionName,
		cfg.Milvus.VectorDim,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
	}
	defer milvusClient.Close()

	if err := milvusClient.EnsureCollection(context.Background()); err != nil {
		appLogger.Fatal("Failed to ensure collection", zap.Error(err))
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		cfg.LLM.TimeoutSec,
	)

	arxivClient := papers.NewClient(
		cfg.Ingestion.ArxivAPIBase,
		cfg.Ingestion.UserAgent,
		cfg.Ingestion.RequestsPerSec,
	)

	orchestrator := pipeline.NewOrchestrator(arxivClient, llmClient)
	searchEngine := search.NewEngine(llmClient, milvusClient, cacheClient)
	ledger := credits.NewLedger(sqliteClient, cfg.Billing.Costs)
	ingestor := ingestion.NewIngestor(arxivClient, llmClient, milvusClient, sqliteClient, cfg.Ingestion.PageSize)

	var limitStore ratelimit.Store
	if cfg.RateLimit.UseRedis && cacheClient != nil {
		limitStore = ratelimit.NewRedisStore(cacheClient.Raw())
		appLogger.Info("Rate limiter using shared Redis windows")
	} else {
		memStore := ratelimit.NewMemoryStore()
		defer memStore.Stop()
		limitStore = memStore
	}

	limitFor := func(route string) ratelimit.Limit {
		if rl, ok := cfg.RateLimit.Routes[route]; ok {
			return ratelimit.Limit{Window: rl.Window(), MaxRequests: rl.MaxRequests}
		}
		return ratelimit.Limit{Window: time.Minute, MaxRequests: 30}
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-User-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(metrics.Middleware())
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))
	app.Use(validation.Middleware(validation.Config{
		MaxBodyBytes: cfg.Server.BodyLimit,
	}))

	searchHandler := handlers.NewSearchHandler(searchEngine)
	claimsHandler := handlers.NewClaimsHandler(orchestrator)
	generateHandler := handlers.NewGenerateHandler(ledger, llmClient, sqliteClient)
	profileHandler := handlers.NewProfileHandler(sqliteClient)
	wsHandler := handlers.NewWebSocketHandler(orchestrator)

	// A nil *rediscache.Client must not become a non-nil interface.
	var cacheInvalidator handlers.SearchCacheInvalidator
	if cacheClient != nil {
		cacheInvalidator = cacheClient
	}
	adminHandler := handlers.NewAdminHandler(ingestor, cacheInvalidator, cfg.Server.AdminToken)

	api := app.Group("/api/v1")

	api.Post("/search",
		ratelimit.Middleware("search", limitFor("search"), limitStore),
		searchHandler.HandleSearch)
	api.Post("/extract-claims",
		ratelimit.Middleware("extract-claims", limitFor("extract-claims"), limitStore),
		claimsHandler.HandleExtractClaims)
	api.Post("/gen-angles",
		ratelimit.Middleware("gen-angles", limitFor("gen-angles"), limitStore),
		generateHandler.HandleGenAngles)
	api.Post("/gen-abstract",
		ratelimit.Middleware("gen-abstract", limitFor("gen-abstract"), limitStore),
		generateHandler.HandleGenAbstract)
	api.Post("/build-plan",
		ratelimit.Middleware("build-plan", limitFor("build-plan"), limitStore),
		generateHandler.HandleBuildPlan)
	api.Post("/critique-plan",
		ratelimit.Middleware("critique-plan", limitFor("critique-plan"), limitStore),
		generateHandler.HandleCritiquePlan)

	api.Get("/profile/:id", profileHandler.HandleGetProfile)
	api.Get("/history", profileHandler.HandleGetHistory)

	api.Post("/admin/ingest", adminHandler.HandleIngest)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/pipeline", websocket.New(wsHandler.HandleConnection))

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}

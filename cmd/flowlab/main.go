package main

import (
	"context"
	"database/sql"

	config "github.com/davicafu/flowlab/internal/config"
	execApp "github.com/davicafu/flowlab/internal/execution/application"
	execDomain "github.com/davicafu/flowlab/internal/execution/domain"
	execEvents "github.com/davicafu/flowlab/internal/execution/infra/inbound/events"
	execHttp "github.com/davicafu/flowlab/internal/execution/infra/inbound/http"
	chRepo "github.com/davicafu/flowlab/internal/execution/infra/outbound/analytics/clickhouse"
	mongoRepo "github.com/davicafu/flowlab/internal/execution/infra/outbound/db/mongodb"
	pgRepo "github.com/davicafu/flowlab/internal/execution/infra/outbound/db/postgres"
	sqliteRepo "github.com/davicafu/flowlab/internal/execution/infra/outbound/db/sqlite"
	infraEvents "github.com/davicafu/flowlab/internal/infra/events"
	infraRelayer "github.com/davicafu/flowlab/internal/infra/relayer"
	"github.com/davicafu/flowlab/internal/registry"
	"github.com/davicafu/flowlab/pkg/logger"
	sharedBus "github.com/davicafu/flowlab/shared/platform/bus"
	sharedCache "github.com/davicafu/flowlab/shared/platform/cache"
	sharedQuery "github.com/davicafu/flowlab/shared/query"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"
	// _ "github.com/mattn/go-sqlite3" // requires gcc
	_ "modernc.org/sqlite"
)

// ---------------- Main ----------------
func main() {
	logger.Init()          // inicializa zap
	log := logger.Logger() // obtiene logger estructurado
	defer logger.Sync()    // flush buffers al salir

	ctx := context.Background()
	cfg := config.LoadConfig()

	// ------------- Workflows ---------------
	workflows := buildWorkflowRegistry(cfg, log)

	// ---------------- DB -------------------
	var (
		execRepo execDomain.ExecutionRepository
		lister   sharedQuery.Paginator[*execDomain.Execution]
	)

	limits := sharedQuery.Limits{
		DefaultPageSize: cfg.DefaultPageSize,
		MaxPageSize:     cfg.MaxPageSize,
	}

	switch cfg.StorageBackend {
	case "postgres":
		db, err := sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			log.Fatal("failed to open Postgres", zap.Error(err))
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Fatal("failed to ping Postgres", zap.Error(err))
		}
		if err := pgRepo.InitPostgres(db); err != nil {
			log.Fatal("failed to initialize Postgres", zap.Error(err))
		}
		repo := pgRepo.NewExecutionRepoPostgres(db)
		execRepo = repo
		lister = sharedQuery.OffsetPaginator[*execDomain.Execution]{Backend: repo, Limits: limits}

	case "mongo":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			log.Fatal("failed to connect to MongoDB", zap.Error(err))
		}
		defer client.Disconnect(ctx)
		repo, err := mongoRepo.NewExecutionRepoMongoDB(ctx, client, cfg.MongoDatabase)
		if err != nil {
			log.Fatal("failed to initialize MongoDB", zap.Error(err))
		}
		execRepo = repo
		lister = sharedQuery.CursorPaginator[*execDomain.Execution]{Backend: repo, Limits: limits}

	default: // sqlite
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			log.Fatal("failed to open SQLite", zap.Error(err))
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Fatal("failed to ping SQLite", zap.Error(err))
		}
		if err := sqliteRepo.InitSQLite(db); err != nil {
			log.Fatal("failed to initialize SQLite", zap.Error(err))
		}
		repo := sqliteRepo.NewExecutionRepoSQLite(db)
		execRepo = repo
		lister = sharedQuery.OffsetPaginator[*execDomain.Execution]{Backend: repo, Limits: limits}
	}

	// ---------------- Cache ----------------
	var cacheInstance sharedCache.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("⚠️ Redis no disponible, cache en memoria:", zap.Error(err))
			cacheInstance = sharedCache.NewInMemoryCache(cfg.CacheTTL, 3*cfg.CacheTTL)
		} else {
			cacheInstance = sharedCache.NewRedisCache(rdb, cfg.CacheTTL)
			log.Info("✅ Redis conectado, cache habilitado")
		}
	} else {
		cacheInstance = sharedCache.NewInMemoryCache(cfg.CacheTTL, 3*cfg.CacheTTL)
	}

	// -------------- Analytics --------------
	var analytics execDomain.ExecutionAnalytics
	if cfg.ClickHouseAddr != "" {
		chInstance, err := chRepo.NewExecutionAnalyticsRepo(cfg.ClickHouseAddr, cfg.ClickHouseDatabase)
		if err != nil {
			log.Warn("⚠️ ClickHouse no disponible, sin histórico analítico", zap.Error(err))
		} else if err := chInstance.InitClickHouse(); err != nil {
			log.Warn("⚠️ No se pudo inicializar ClickHouse", zap.Error(err))
		} else {
			analytics = chInstance
			log.Info("✅ ClickHouse conectado, histórico habilitado")
		}
	}

	// --------------- Servicio --------------
	execService := execApp.NewExecutionService(execRepo, lister, workflows, cacheInstance, analytics, log)

	// ---------------- Events ---------------
	var eventPublisher sharedBus.EventPublisher
	execConsumer := execEvents.NewExecutionConsumer(analytics, logger.Named("consumer"))

	if cfg.UseKafka {
		log.Info("🚀 Usando Kafka como bus de eventos")

		writer := kafka.NewWriter(kafka.WriterConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		})
		defer writer.Close()
		eventPublisher = infraEvents.NewKafkaPublisher(writer, log)

		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.KafkaBrokers,
			Topic:    cfg.KafkaTopic,
			GroupID:  "flowlab-execution-service",
			MinBytes: 10e3, // 10KB
			MaxBytes: 10e6, // 10MB
		})
		defer reader.Close()

		consumerAdapter := infraEvents.NewConsumerAdapter(reader, execConsumer, log)
		consumerAdapter.Start(ctx)
	} else {
		log.Info("⚡️Usando bus de eventos en memoria (canales de Go)")

		inMemoryBus := infraEvents.NewInMemoryEventBus(execDomain.ExecutionTopic)
		eventPublisher = inMemoryBus

		eventsChannel := inMemoryBus.Subscribe(10)
		log.Info("🎧 Iniciando listener en memoria para eventos de ejecución")
		execEvents.BackgroundConsumerChan(ctx, eventsChannel, execConsumer)
	}

	// ------------ Outbox Worker ------------
	// Se podría ejecutar externamente
	eventRegistry := execDomain.NewEventRegistry()

	outboxWorker := infraRelayer.NewOutboxWorker(execRepo, eventPublisher, eventRegistry, cfg.OutboxPeriod, cfg.OutboxLimit, logger.Named("relayer"))
	outboxWorker.Start(ctx)

	// ---------------- HTTP ----------------
	execHandler := execHttp.NewExecutionHandler(execService)
	router := gin.Default()
	execHttp.RegisterExecutionRoutes(router, execHandler)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	log.Info("🚀 Server running",
		zap.String("url", "http://localhost:"+cfg.HTTPPort),
	)
	if err := router.Run(":" + cfg.HTTPPort); err != nil {
		log.Fatal("failed to start server: %v", zap.Error(err))
	}
}

// buildWorkflowRegistry registra el catálogo base de workflows y, si hay
// fichero de configuración, lo valida contra lo registrado.
func buildWorkflowRegistry(cfg *config.Config, log *zap.Logger) *registry.Registry {
	reg := registry.New()

	// Catálogo base. En despliegues reales los equipos registran aquí
	// sus workflows y actividades.
	for _, act := range []string{"validate-input", "reserve-stock", "charge-payment", "send-receipt", "collect-metrics", "render-report"} {
		if err := reg.RegisterActivity(act); err != nil {
			log.Fatal("failed to register activity", zap.String("activity", act), zap.Error(err))
		}
	}
	base := map[string][]string{
		"order-processing":  {"validate-input", "reserve-stock", "charge-payment", "send-receipt"},
		"report-generation": {"collect-metrics", "render-report"},
	}
	for name, acts := range base {
		if err := reg.RegisterWorkflow(name, acts); err != nil {
			log.Fatal("failed to register workflow", zap.String("workflow", name), zap.Error(err))
		}
	}

	if cfg.WorkflowConfigPath != "" {
		wfCfg, err := registry.LoadConfig(cfg.WorkflowConfigPath)
		if err != nil {
			log.Fatal("failed to load workflow config", zap.Error(err))
		}
		if err := registry.Validate(reg, wfCfg); err != nil {
			log.Fatal("invalid workflow config", zap.Error(err))
		}
		log.Info("✅ Configuración de workflows validada",
			zap.Int("workflows", len(wfCfg.Workflows)),
			zap.String("path", cfg.WorkflowConfigPath),
		)
	}

	return reg
}

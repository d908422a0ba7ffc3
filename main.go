package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"royale-indexer/config"
	"royale-indexer/events"
	"royale-indexer/handlers"
	"royale-indexer/logger"
	"royale-indexer/middleware"
	"royale-indexer/services"
	"royale-indexer/store"
	"royale-indexer/utils"
	"royale-indexer/workers"

	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("❌ %v", err)
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Component("main")

	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ failed to open store: %v", err)
	}

	projector := services.NewProjector(st, services.ProjectorOptions{
		StreamID:      cfg.ContractAddress,
		StartBlock:    cfg.StartBlock,
		InitialHealth: cfg.InitialHealth,
		CurseInterval: cfg.CurseInterval,
	})

	rpc, err := utils.DialRPC(ctx, cfg.RPCURL)
	if err != nil {
		log.Fatalf("❌ failed to dial RPC: %v", err)
	}
	defer rpc.Close()

	syncWorker := workers.NewLogSyncWorker(rpc, events.NewDecoder(), projector, workers.LogSyncOptions{
		Contract:        common.HexToAddress(cfg.ContractAddress),
		Confirmations:   cfg.Confirmations,
		BatchSize:       cfg.BatchSize,
		PollInterval:    cfg.PollInterval,
		SkipUndecodable: cfg.SkipUndecodable,
	})

	var putter utils.ObjectPutter
	if cfg.R2.Enabled() {
		uploader, err := utils.NewR2Uploader(ctx, utils.R2Options{
			AccountID:       cfg.R2.AccountID,
			AccessKeyID:     cfg.R2.AccessKeyID,
			AccessKeySecret: cfg.R2.AccessKeySecret,
			Bucket:          cfg.R2.Bucket,
			Endpoint:        cfg.R2.Endpoint,
		})
		if err != nil {
			log.Fatalf("❌ failed to initialize R2 client: %v", err)
		}
		putter = uploader
	} else if cfg.SnapshotDir != "" {
		log.Infof("R2 bucket not configured, snapshots go to %s", cfg.SnapshotDir)
		putter = utils.DirPutter{Root: cfg.SnapshotDir}
	} else {
		log.Warn("⚠️  R2 bucket not configured, snapshot export disabled")
	}
	snapshots := services.NewSnapshotService(projector, putter, cfg.Network)

	sched, err := services.StartScheduler(ctx, projector, snapshots, cfg.SnapshotInterval)
	if err != nil {
		log.Fatalf("❌ failed to start scheduler: %v", err)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(middleware.RequestContextMiddleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:  "GET,POST,OPTIONS,HEAD",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, Cache-Control",
		ExposeHeaders: "Content-Length, Content-Type, X-Request-ID",
		MaxAge:        86400, // 24 hours
	}))

	handlers.SetupQueryRoutes(app, services.NewQueryService(st, projector))
	handlers.SetupAdminRoutes(app, &services.AdminService{
		Reindexer: syncWorker,
		Snapshots: snapshots,
	}, cfg.AdminToken)

	go func() {
		if err := syncWorker.Run(ctx); err != nil {
			log.WithError(err).Error("❌ log sync halted, shutting down")
			stop()
		}
	}()

	go func() {
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			log.WithError(err).Error("Server error")
			stop()
		}
	}()

	log.Infof("✅ Server running on %s", cfg.HTTPAddr)
	log.Infof("✅ Indexing %s on %s from block %d", cfg.ContractAddress, cfg.Network, cfg.StartBlock)
	log.Infof("✅ CORS configured for origins: %s", strings.Join(cfg.AllowedOrigins, ","))

	<-ctx.Done()
	log.Info("Shutting down server...")

	if err := sched.Shutdown(); err != nil {
		log.WithError(err).Warn("scheduler shutdown")
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
}

// openStore picks the backend from DATABASE_URL: postgres DSN, "sqlite:<path>", or memory when empty.
func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	log := logger.Component("main")
	if cfg.DatabaseURL == "" {
		log.Warn("⚠️  DATABASE_URL not set, keeping the projection in memory")
		return store.NewMemoryStore(), nil
	}

	var dialector gorm.Dialector
	if path, ok := cfg.SQLitePath(); ok {
		dialector = sqlite.Open(path)
	} else {
		dialector = postgres.Open(cfg.DatabaseURL)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	gs := store.NewGormStore(db)
	if err := gs.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return gs, nil
}

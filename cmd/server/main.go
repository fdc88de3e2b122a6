package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/huddle/server/internal/config"
	"github.com/huddle/server/internal/database"
	"github.com/huddle/server/internal/handlers"
	"github.com/huddle/server/internal/middleware"
	"github.com/huddle/server/internal/services"
	"github.com/huddle/server/internal/storage"
	"github.com/huddle/server/pkg/logger"
	"github.com/huddle/server/pkg/utils"
)

func main() {
	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)

	db, err := database.Connect(cfg.DB, cfg.Admin)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var archives services.ArchiveWriter
	if cfg.MinIO.Enabled {
		storageClient, err := storage.NewMinIOClient(cfg.MinIO)
		if err != nil {
			log.Fatalf("minio initialization failed: %v", err)
		}
		if err := storageClient.EnsureBucket(ctx); err != nil {
			log.Fatalf("failed ensuring minio bucket: %v", err)
		}
		archives = storageClient
	}

	auditService := services.NewAuditService(db, archives)
	gate := services.NewMembershipGate(db)
	settler := services.NewSettler(db, cfg.Scoring, auditService)

	auditService.StartExporter(ctx, cfg.Audit.ExportInterval)
	settler.Start(ctx, cfg.Settlement.Interval)

	app := fiber.New(fiber.Config{BodyLimit: cfg.Server.BodyLimit})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(cfg.Server.CORSOrigins))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	handlers.RegisterRoutes(app, db, handlers.Services{
		Users:    services.NewUserService(db, auditService),
		Groups:   services.NewGroupService(db, gate, auditService),
		Events:   services.NewEventService(db, gate, auditService),
		Scores:   services.NewScoreService(db, gate),
		Settler:  settler,
		TestData: services.NewTestDataGenerator(db),
	})

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":                cfg.Server.Port,
		"address":             listenAddr,
		"db_driver":           cfg.DB.Driver,
		"audit_export":        archives != nil,
		"settlement_interval": cfg.Settlement.Interval.String(),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}

	cancel()
	auditService.Close()
}

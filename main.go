package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/civic-fix/api-go/config"
	"github.com/civic-fix/api-go/logger"
	"github.com/civic-fix/api-go/repositories"
	"github.com/civic-fix/api-go/routes"
	"github.com/civic-fix/api-go/services"
	"github.com/civic-fix/api-go/sms"
	"github.com/civic-fix/api-go/storage"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.L()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	var stores services.Stores
	switch cfg.Database.Driver {
	case "memory":
		log.Warn("using in-memory store, data is lost on restart")
		stores = repositories.NewMemoryStore().Stores()
	default:
		db, err := config.InitDB(cfg.Database)
		if err != nil {
			return err
		}
		stores = repositories.NewGormStores(db)
	}

	redisClient, err := config.ConnectRedis(cfg.Redis)
	if err != nil {
		return err
	}
	var sequence services.Sequence
	if redisClient != nil {
		defer redisClient.Close()
		sequence = services.NewRedisSequence(redisClient)
	}

	var objects services.ObjectStore
	var uploadsDir string
	switch cfg.Storage.Driver {
	case "local":
		local, err := storage.NewLocalStore(cfg.Storage.LocalDir, cfg.Storage.PublicURL)
		if err != nil {
			return err
		}
		objects, uploadsDir = local, local.Dir
	default:
		r2, err := storage.NewR2Store(cfg.Storage)
		if err != nil {
			return err
		}
		objects = r2
	}

	var sender services.SMSSender = sms.LogSender{Log: log}
	if cfg.SMS.GatewayURL != "" {
		sender = sms.NewHTTPSender(cfg.SMS)
	}
	dispatcher := services.NewDispatcher(sender, cfg.Notify.Timeout(), log.Named("notify"))

	uploads := services.IngestOptions{
		MaxFiles:        cfg.Upload.MaxFiles,
		MaxBytesPerFile: cfg.Upload.MaxBytesPerFile,
	}
	completion := uploads
	uploads.KeyPrefix = "reports"
	completion.KeyPrefix = "repairs/completion"

	workflow := services.NewWorkflow(
		stores,
		services.NewTicketAllocator(sequence),
		services.NewImagePipeline(objects, cfg.Upload.Parallelism, cfg.Upload.FileTimeout(), log.Named("images")),
		dispatcher,
		services.WorkflowOptions{
			ReportUploads:     uploads,
			CompletionUploads: completion,
			Logger:            log.Named("workflow"),
		},
	)

	if cfg.Auth.JWTSecret == "" {
		log.Warn("JWT_SECRET is empty, staff routes accept tokens signed with an empty key")
	}
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	// Multipart bodies above this spill to disk; per-file limits are enforced
	// by the image pipeline.
	r.MaxMultipartMemory = 32 << 20
	routes.SetupRoutes(r, workflow, routes.Options{
		JWTSecret:       cfg.Auth.JWTSecret,
		Redis:           redisClient,
		RateLimit:       cfg.RateLimit.Limit,
		RateLimitWindow: cfg.RateLimit.Window(),
		UploadsDir:      uploadsDir,
		Logger:          log.Named("http"),
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-sigChan:
	}

	log.Info("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown error", zap.Error(err))
	}

	// Pending SMS sends finish on their own timeout.
	dispatcher.Wait()
	log.Info("shutdown complete")
	return nil
}

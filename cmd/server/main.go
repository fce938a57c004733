package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"projectlink/backend/internal/api"
	"projectlink/backend/internal/auth"
	"projectlink/backend/internal/chat"
	"projectlink/backend/internal/models"
	"projectlink/backend/internal/scheduler"
	"projectlink/backend/internal/store"
	"projectlink/backend/internal/ws"
	"projectlink/backend/pkg/config"
	"projectlink/backend/pkg/kv"
	"projectlink/backend/pkg/logger"
	"projectlink/backend/pkg/router"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		stdlog.Println("No .env file found")
	}

	cfg := config.New()

	// Initialize structured logger
	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"

	log := logger.New(logConfig)
	logger.SetGlobal(log)

	log.Info("Starting chat backend", "env", cfg.Server.Env)

	// Initialize database
	db, err := config.NewDB()
	if err != nil {
		log.LogError(err, "Failed to initialize database")
		os.Exit(1)
	}

	// Auto-migrate the schema
	if err := db.AutoMigrate(&models.User{}, &models.Chat{}, &models.Participant{}, &models.Message{}); err != nil {
		log.LogError(err, "Failed to migrate database")
		os.Exit(1)
	}

	gateway := store.NewGormGateway(db)

	// Connect the shared cache store; fall back to the in-process store
	// when Redis is unavailable (single-instance deployments).
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var cacheStore kv.Store
	redisStore, err := kv.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Warn("Redis unavailable, using in-memory cache store", "error", err.Error())
		cacheStore = kv.NewMemoryStore(cfg.Cache.PurgeWindow)
	} else {
		cacheStore = redisStore
		defer redisStore.Close()
	}

	messageCache := chat.NewMessageCache(cacheStore, gateway, cfg.Cache.TTL, log)

	sched := scheduler.New(messageCache, cfg.Scheduler.Delay, cfg.Scheduler.SweepPeriod, cfg.Scheduler.Workers, log)
	sched.Start(ctx)
	defer sched.Stop()

	authenticator := auth.NewAuthenticator(gateway, log)

	hub := ws.NewHub(messageCache, gateway, sched, log)
	go hub.Run(ctx)

	handler := api.NewHandler(messageCache, gateway, sched, log)

	engine := router.New(handler, hub, authenticator, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	go func() {
		log.Info("HTTP server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogError(err, "HTTP server failed")
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.LogError(err, "Forced shutdown")
	}

	// Flush whatever is still staged before exit.
	if count, err := sched.Run(shutdownCtx, nil); err != nil {
		log.LogError(err, "Final drain failed")
	} else if count > 0 {
		log.Info("Final drain persisted staged messages", "count", count)
	}
}

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"playsync/config"
	"playsync/internal/channel"
	"playsync/internal/hub"
	"playsync/internal/infrastructure/cache"
	"playsync/internal/infrastructure/repository"
	"playsync/internal/logging"
	"playsync/internal/middleware"
	handlers "playsync/internal/transport/http"
	"playsync/internal/transport/ws"
	"playsync/internal/voice"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		logger.Fatal("Failed to connect to DB", zap.Error(err))
	}
	if err := db.AutoMigrate(&repository.ChannelSessionGorm{}); err != nil {
		logger.Fatal("Failed to migrate DB", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	sessionRepo := cache.NewSessionCache(rdb, repository.NewChannelSessionRepository(db))

	events := voice.NewEmitter()
	playbackHub := hub.New(logger)
	manager := channel.NewManager(sessionRepo, voice.Nop{}, events, cfg.ChannelIdleTimeout, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go manager.Run(ctx)

	gateway := ws.NewGateway(playbackHub, logger)
	limiter := middleware.NewRateLimiter(rdb)

	router := handlers.NewRouter(
		gateway,
		handlers.NewChannelHandler(manager),
		handlers.NewDeviceHandler(playbackHub),
		handlers.NewHealthHandler(db, rdb),
		limiter,
		cfg.AccessSecret,
	)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	logger.Info("playback sync service is running", zap.String("addr", cfg.HTTPAddr))

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := gateway.Close(); err != nil {
		logger.Warn("gateway close failed", zap.Error(err))
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown failed", zap.Error(err))
	}
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"realtime-gateway/internal/api/handlers"
	apimiddleware "realtime-gateway/internal/api/middleware"
	"realtime-gateway/internal/auth"
	"realtime-gateway/internal/config"
	"realtime-gateway/internal/domain"
	"realtime-gateway/internal/infrastructure/leader"
	"realtime-gateway/internal/infrastructure/mysql"
	"realtime-gateway/internal/infrastructure/redis"
	ws "realtime-gateway/internal/infrastructure/websocket"
	"realtime-gateway/internal/services"
	"realtime-gateway/pkg/logger"
	"realtime-gateway/pkg/realtime"
)

func main() {
	log := logger.New()
	log.Info("Starting Realtime Gateway")

	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize Redis
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		log.Error("Failed to connect to MySQL", "error", err)
		os.Exit(1)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			log.Error("Failed to close MySQL connection", "error", err)
		}
	}(db)

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		log.Error("Failed to ping MySQL", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to MySQL")

	// Core components
	tokenService := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)
	registry := ws.NewRegistry(log)
	bridge := redis.NewEventBridge(rdb, log)
	notificationRepo := mysql.NewMySQLNotificationRepository(db)
	leaderElection := leader.NewRedisLeaderElection(rdb, cfg.Leader.TTL)

	// Admin triggers publish through the bridge; the subscriber below hands
	// arriving events (from this instance and its peers) to the local registry.
	invalidator := services.NewSessionInvalidationService(bridge, notificationRepo, log)
	scheduler := services.NewNotificationScheduler(notificationRepo, invalidator,
		leaderElection, cfg.Instance.ID, cfg.Scheduler.PollInterval, log)

	wsHandler := ws.NewHandler(registry, tokenService, ws.DefaultConnectionOptions(), log)

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			echo.GET, echo.HEAD, echo.PUT, echo.PATCH,
			echo.POST, echo.DELETE, echo.OPTIONS,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
		},
	}))

	// Handlers and routes
	adminHandler := handlers.NewAdminHandler(invalidator, scheduler, log)
	wsHandlers := handlers.NewWebSocketHandlers(wsHandler)

	e.GET("/ws", wsHandlers.HandleConnection)

	admin := e.Group("/api/v1/admin", apimiddleware.RequireAdmin(tokenService))
	admin.POST("/logout/global", adminHandler.GlobalLogout)
	admin.POST("/logout/users/:id", adminHandler.UserLogout)
	admin.POST("/notifications", adminHandler.SendNotification)
	admin.GET("/notifications", adminHandler.ListNotifications)
	admin.POST("/notifications/schedule", adminHandler.ScheduleNotification)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":      "ok",
			"service":     "realtime-gateway",
			"timestamp":   time.Now().Format(time.RFC3339),
			"connections": registry.ConnectionCount(),
		})
	})

	// Background services
	subscriberCtx, stopSubscriber := context.WithCancel(context.Background())
	defer stopSubscriber()

	go func() {
		err := bridge.Subscribe(subscriberCtx, func(target domain.Target, event realtime.Event) error {
			registry.Dispatch(target, event)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Event bridge subscriber failed", "error", err)
		}
	}()

	go func() {
		if err := scheduler.Start(subscriberCtx); err != nil {
			log.Error("Failed to start scheduler", "error", err)
		}
	}()

	go func() {
		for {
			became, err := leaderElection.BecomeLeader(context.Background(), cfg.Instance.ID)
			if err != nil {
				log.Error("Failed to attempt leadership", "error", err)
				time.Sleep(5 * time.Second)
				continue
			}
			if became {
				log.Info("Became scheduler leader", "instance_id", cfg.Instance.ID)
			}
			time.Sleep(10 * time.Second)
		}
	}()

	// Start server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Starting gateway server", "address", serverAddr)

	go func() {
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down realtime gateway...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	stopSubscriber()
	if err := scheduler.Stop(); err != nil {
		log.Error("Failed to stop scheduler", "error", err)
	}
	if err := leaderElection.ReleaseLeadership(shutdownCtx, cfg.Instance.ID); err != nil {
		log.Error("Failed to release leadership", "error", err)
	}

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Realtime gateway stopped")
}

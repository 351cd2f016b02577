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

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/slotwise/courtkeeper/internal/clock"
	"github.com/slotwise/courtkeeper/internal/config"
	"github.com/slotwise/courtkeeper/internal/events"
	"github.com/slotwise/courtkeeper/internal/handlers"
	"github.com/slotwise/courtkeeper/internal/logger"
	"github.com/slotwise/courtkeeper/internal/middleware"
	"github.com/slotwise/courtkeeper/internal/realtime"
	"github.com/slotwise/courtkeeper/internal/reconciler"
	"github.com/slotwise/courtkeeper/internal/repository"
	"github.com/slotwise/courtkeeper/internal/service"
	"github.com/slotwise/courtkeeper/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	appLogger := logger.New(cfg.LogLevel)

	db, err := store.Connect(cfg.Database)
	if err != nil {
		appLogger.Fatal("failed to connect to database", "error", err)
	}

	if err := store.Migrate(db); err != nil {
		appLogger.Fatal("failed to run database migrations", "error", err)
	}

	var redisClient *redis.Client
	redisClient, err = store.ConnectRedis(cfg.Redis)
	if err != nil {
		if cfg.Environment == "development" {
			appLogger.Warn("failed to connect to redis, continuing without cache", "error", err)
			redisClient = nil
		} else {
			appLogger.Fatal("failed to connect to redis", "error", err)
		}
	}

	var natsConn *nats.Conn
	var eventPublisher *events.Publisher

	natsConn, err = events.Connect(cfg.NATS)
	if err != nil {
		if cfg.Environment == "development" {
			appLogger.Warn("failed to connect to NATS, continuing without broadcast", "error", err)
			natsConn = nil
			eventPublisher = events.NewNullPublisher(appLogger)
		} else {
			appLogger.Fatal("failed to connect to NATS", "error", err)
		}
	} else {
		defer natsConn.Close()
		eventPublisher = events.NewPublisher(natsConn, appLogger)
	}

	clk := clock.New()

	facilityRepo := repository.NewFacilityRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)

	broadcaster := events.NewNATSBroadcaster(eventPublisher, appLogger)

	bookingService := service.NewBookingService(db, facilityRepo, bookingRepo, cacheRepo, broadcaster, clk, cfg.Booking, appLogger)
	availabilityService := service.NewAvailabilityService(db, cacheRepo, clk, appLogger)
	scheduleService := service.NewScheduleService(facilityRepo, bookingRepo, cfg.Booking, appLogger)

	cleanup := reconciler.New(db, bookingRepo, cacheRepo, broadcaster, clk, cfg.Booking, appLogger)
	if err := cleanup.Start(cfg.Reconciler.TickInterval); err != nil {
		appLogger.Fatal("failed to start reconciler", "error", err)
	}
	defer cleanup.Stop()

	var eventSubscriber *events.Subscriber
	var subscriptionManager *realtime.SubscriptionManager

	if natsConn != nil {
		eventSubscriber = events.NewSubscriber(natsConn, appLogger)
		subscriptionManager = realtime.NewSubscriptionManager(appLogger, eventSubscriber)
		go subscriptionManager.Run()
		subscriptionManager.StartEventSubscriptions()
	} else {
		appLogger.Warn("skipping websocket subscription manager (no NATS connection)")
	}

	facilityHandler := handlers.NewFacilityHandler(availabilityService, scheduleService, facilityRepo, appLogger)
	bookingHandler := handlers.NewBookingHandler(bookingService, appLogger)
	systemHandler := handlers.NewSystemHandler(db, redisClient, natsConn, cleanup, clk, appLogger)
	webSocketHandler := handlers.NewWebSocketHandler(subscriptionManager, appLogger)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.DefaultCORS())
	router.Use(middleware.DefaultRequestLogging(appLogger))
	router.Use(middleware.ErrorLogging(appLogger))

	router.GET("/system/health", systemHandler.Health)
	router.POST("/system/seed", systemHandler.Seed)

	router.GET("/assets", facilityHandler.GetAssets)
	router.GET("/facilities/:id/units", facilityHandler.GetUnits)
	router.GET("/facilities/:id/schedule", facilityHandler.GetSchedule)

	router.POST("/reserve", bookingHandler.Reserve)
	router.POST("/check-in", bookingHandler.CheckIn)
	router.POST("/check-out", bookingHandler.CheckOut)
	router.POST("/cancel", bookingHandler.Cancel)
	router.GET("/bookings/user/:userName", bookingHandler.ListForUser)

	router.GET("/ws", webSocketHandler.HandleConnections)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLogger.Info("starting courtkeeper", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down courtkeeper...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLogger.Fatal("server forced to shutdown", "error", err)
	}

	appLogger.Info("courtkeeper stopped")
}

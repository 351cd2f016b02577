package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/slotwise/courtkeeper/internal/clock"
	"github.com/slotwise/courtkeeper/internal/logger"
	"github.com/slotwise/courtkeeper/internal/reconciler"
	"github.com/slotwise/courtkeeper/pkg/seed"
	"gorm.io/gorm"
)

// SystemHandler serves health and fixture-seeding endpoints.
type SystemHandler struct {
	db          *gorm.DB
	redis       *redis.Client
	nats        *nats.Conn
	reconciler  *reconciler.Reconciler
	clock       clock.Clock
	logger      *logger.Logger
}

func NewSystemHandler(db *gorm.DB, redis *redis.Client, nats *nats.Conn, reconciler *reconciler.Reconciler, clk clock.Clock, logger *logger.Logger) *SystemHandler {
	return &SystemHandler{db: db, redis: redis, nats: nats, reconciler: reconciler, clock: clk, logger: logger}
}

// Health handles GET /system/health.
func (h *SystemHandler) Health(c *gin.Context) {
	status := "ok"
	databaseStatus := "ok"

	sqlDB, err := h.db.DB()
	if err != nil || sqlDB.Ping() != nil {
		status = "degraded"
		databaseStatus = "unreachable"
	}

	body := gin.H{
		"status":             status,
		"database":           databaseStatus,
		"lastCleanupRunAt":   h.reconciler.LastCleanupRunAt(),
		"serverTime":         h.clock.Now(),
	}

	if status != "ok" {
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

// Seed handles POST /system/seed, loading the fixed facility/unit roster.
func (h *SystemHandler) Seed(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if err := seed.Run(ctx, h.db); err != nil {
		h.logger.Error("failed to seed fixtures", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to seed fixtures: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "fixtures seeded"})
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db          *gorm.DB
	mongoClient *mongo.Client
}

func NewHealthHandler(db *gorm.DB, mongoClient *mongo.Client) *HealthHandler {
	return &HealthHandler{db: db, mongoClient: mongoClient}
}

// HealthCheck pings both stores; a dead pool turns the whole check red.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	out := gin.H{"status": "ok", "postgres": "ok", "mongo": "ok"}

	if sqlDB, err := h.db.DB(); err != nil {
		status, out["status"], out["postgres"] = http.StatusServiceUnavailable, "degraded", err.Error()
	} else if err := sqlDB.PingContext(ctx); err != nil {
		status, out["status"], out["postgres"] = http.StatusServiceUnavailable, "degraded", err.Error()
	}

	if err := h.mongoClient.Ping(ctx, nil); err != nil {
		status, out["status"], out["mongo"] = http.StatusServiceUnavailable, "degraded", err.Error()
	}

	c.JSON(status, out)
}

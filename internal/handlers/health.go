package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const healthProbeTimeout = 2 * time.Second

type healthResponse struct {
	Status      string `json:"status"`
	Database    string `json:"database"`
	Cache       string `json:"cache"`
	Environment string `json:"environment"`
}

// Health probes postgres and redis. A failing dependency degrades the
// report but the endpoint itself stays 200 so load balancers keep routing.
func (h HandlerSet) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthProbeTimeout)
	defer cancel()

	resp := healthResponse{
		Status:      "ok",
		Database:    "ok",
		Cache:       "ok",
		Environment: h.cfg.Environment,
	}

	if err := h.db.Ping(ctx); err != nil {
		h.log.Error().Err(err).Msg("database ping failed")
		resp.Database = "error"
		resp.Status = "degraded"
	}
	if err := h.cache.Ping(ctx).Err(); err != nil {
		h.log.Error().Err(err).Msg("redis ping failed")
		resp.Cache = "error"
		resp.Status = "degraded"
	}

	c.JSON(http.StatusOK, resp)
}

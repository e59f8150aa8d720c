package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"storefront/internal/response"

	"github.com/labstack/echo/v4"
)

// DB疎通確認（db.Pingを渡す）
type PingFunc func(ctx context.Context) error

type HealthHandler struct {
	ping    PingFunc
	version string
	log     *slog.Logger
}

func NewHealthHandler(ping PingFunc, version string, log *slog.Logger) *HealthHandler {
	return &HealthHandler{ping: ping, version: version, log: log}
}

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.root)
	e.GET("/health", h.health)
}

type healthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

func (h *HealthHandler) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := h.ping(ctx); err != nil {
		h.log.Warn("health check: database unreachable", slog.Any("error", err))
		env := response.Error("Service unavailable", "database: unreachable")
		return c.JSON(http.StatusServiceUnavailable, response.Envelope[healthStatus]{
			Data:      healthStatus{Status: "degraded", Database: "unreachable"},
			Timestamp: env.Timestamp,
			Status:    env.Status,
			Message:   env.Message,
			Errors:    env.Errors,
		})
	}
	return c.JSON(http.StatusOK, response.Success(healthStatus{Status: "ok", Database: "ok"}, "Service healthy"))
}

func (h *HealthHandler) root(c echo.Context) error {
	return c.JSON(http.StatusOK, response.Success(map[string]string{
		"name":    "storefront API",
		"version": h.version,
	}, "Welcome to the storefront API"))
}

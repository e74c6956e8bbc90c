package router

import (
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/handler"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/server"
	"github.com/labstack/echo/v4"
)

// registerSystemRoutes registers the endpoints that are not part of the record API.
func registerSystemRoutes(r *echo.Echo, s *server.Server, h *handler.Handlers) {
	r.GET("/status", h.Health.CheckHealth)

	if s.Metrics != nil {
		r.GET("/metrics", echo.WrapHandler(s.Metrics.Handler()))
	}
}

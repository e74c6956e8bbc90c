package router

import (
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/handler"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/middleware"
	"github.com/labstack/echo/v4"
)

// registerRecordRoutes mounts one collection per entity family, e.g. /products.
// Reads are public; writes go through RequireAuth, which is a no-op without an auth
// secret.
func registerRecordRoutes(r *echo.Echo, h *handler.Handlers, m *middleware.Middlewares) {
	for _, rh := range h.Records {
		g := r.Group("/" + rh.Descriptor().Collection)

		g.GET("", rh.List())
		g.GET("/:id", rh.Get())
		g.POST("", rh.Create(), m.Auth.RequireAuth)
		g.PUT("/:id", rh.Update(), m.Auth.RequireAuth)
		g.DELETE("/:id", rh.Delete(), m.Auth.RequireAuth)
	}
}

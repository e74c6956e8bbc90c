// Package router builds the echo router: it installs the middleware chain and
// registers the system and record routes.
package router

import (
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/handler"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/middleware"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/server"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
)

// NewRouter returns the application's echo instance.
//
// Middleware order matters: the request id must exist before tracing and the
// context logger read it, and the request logger must wrap Recover so panics are
// logged with their final status.
func NewRouter(s *server.Server, h *handler.Handlers) *echo.Echo {
	middlewares := middleware.NewMiddlewares(s)

	router := echo.New()
	router.HideBanner = true
	router.HidePort = true
	router.HTTPErrorHandler = middlewares.Global.GlobalErrorHandler

	router.Pre(echoMiddleware.RemoveTrailingSlash())

	router.Use(
		middleware.RequestID(),
		middlewares.Tracing.NewRelicMiddleware(),
		middlewares.Tracing.EnhanceTracing(),
		middlewares.ContextEnhancer.EnhanceContext(),
		middlewares.Global.CORS(),
		middlewares.Global.Secure(),
		middlewares.Global.RequestLogger(),
		middlewares.Metrics.Collect(),
		middlewares.Global.Recover(),
		middlewares.RateLimit.Limit(),
		middlewares.Global.BodyLimit(),
	)

	registerSystemRoutes(router, s, h)
	registerRecordRoutes(router, h, middlewares)

	return router
}

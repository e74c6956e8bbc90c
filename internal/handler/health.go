package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/config"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/middleware"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/repository"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/server"
	"github.com/labstack/echo/v4"
)

// HealthHandler reports whether the service and its dependencies are reachable.
type HealthHandler struct {
	Handler
	store repository.Store
}

func NewHealthHandler(s *server.Server, store repository.Store) *HealthHandler {
	return &HealthHandler{
		Handler: NewHandler(s),
		store:   store,
	}
}

type checkFunc func(ctx context.Context) error

// CheckHealth answers 200 when every check passes and 503 otherwise.
//
// Checks run as configured under observability.health_checks; Redis is only probed
// when it is configured. A Redis failure is
// reported but only marks the service unhealthy when Redis is the store.
func (h *HealthHandler) CheckHealth(c echo.Context) error {
	start := time.Now()

	logger := middleware.GetLogger(c).With().
		Str("operation", "health_check").
		Logger()

	cfg := h.server.Config
	checks := make(map[string]interface{})
	response := map[string]interface{}{
		"status":      "healthy",
		"timestamp":   time.Now().UTC(),
		"environment": cfg.Primary.Env,
		"store":       cfg.Store.Driver,
		"checks":      checks,
	}

	timeout := 5 * time.Second
	enabled := map[string]bool{"store": true, "redis": true}
	if hc := cfg.Observability; hc != nil {
		if hc.HealthChecks.Timeout > 0 {
			timeout = hc.HealthChecks.Timeout
		}
		if !hc.HealthChecks.Enabled {
			enabled = map[string]bool{}
		} else if len(hc.HealthChecks.Checks) > 0 {
			enabled = make(map[string]bool, len(hc.HealthChecks.Checks))
			for _, name := range hc.HealthChecks.Checks {
				enabled[name] = true
			}
		}
	}

	run := func(name string, check checkFunc) bool {
		if !enabled[name] {
			return true
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
		defer cancel()

		checkStart := time.Now()
		err := check(ctx)
		elapsed := time.Since(checkStart)

		if err != nil {
			checks[name] = map[string]interface{}{
				"status":        "unhealthy",
				"response_time": elapsed.String(),
				"error":         err.Error(),
			}
			logger.Error().Err(err).Dur("response_time", elapsed).Msg(name + " health check failed")
			h.recordFailure(name, name+"_unhealthy", elapsed, err)
			return false
		}

		checks[name] = map[string]interface{}{
			"status":        "healthy",
			"response_time": elapsed.String(),
		}
		logger.Debug().Dur("response_time", elapsed).Msg(name + " health check passed")
		return true
	}

	isHealthy := run("store", h.store.Ping)

	if h.server.Redis != nil {
		redisOK := run("redis", func(ctx context.Context) error {
			return h.server.Redis.Ping(ctx).Err()
		})
		if cfg.Store.Driver == config.StoreRedis {
			isHealthy = isHealthy && redisOK
		}
	}

	if !isHealthy {
		response["status"] = "unhealthy"
		logger.Warn().Dur("total_duration", time.Since(start)).Msg("health check failed")
		h.recordFailure("overall", "overall_unhealthy", time.Since(start), nil)
		return c.JSON(http.StatusServiceUnavailable, response)
	}

	logger.Info().Dur("total_duration", time.Since(start)).Msg("health check passed")

	if err := c.JSON(http.StatusOK, response); err != nil {
		logger.Error().Err(err).Msg("failed to write JSON response")
		return fmt.Errorf("failed to write JSON response: %w", err)
	}
	return nil
}

// recordFailure sends a HealthCheckError custom event when New Relic is enabled.
func (h *HealthHandler) recordFailure(check, errorType string, elapsed time.Duration, err error) {
	if h.server.LoggerService == nil || h.server.LoggerService.GetApplication() == nil {
		return
	}
	event := map[string]interface{}{
		"check_type":       check,
		"operation":        "health_check",
		"error_type":       errorType,
		"response_time_ms": elapsed.Milliseconds(),
	}
	if err != nil {
		event["error_message"] = err.Error()
	}
	h.server.LoggerService.GetApplication().RecordCustomEvent("HealthCheckError", event)
}

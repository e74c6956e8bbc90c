package middleware

import (
	"strconv"
	"time"

	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/metrics"
	"github.com/labstack/echo/v4"
)

// MetricsMiddleware records request counts and latencies in Prometheus.
type MetricsMiddleware struct {
	metrics *metrics.Metrics
}

func NewMetricsMiddleware(m *metrics.Metrics) *MetricsMiddleware {
	return &MetricsMiddleware{metrics: m}
}

// Collect labels requests by route template, so /products/1 and /products/2 share
// a series. Requests matching no route are labelled "unmatched".
func (mm *MetricsMiddleware) Collect() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if mm.metrics == nil {
				return next(c)
			}

			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			status := strconv.Itoa(responseStatus(c, err))

			mm.metrics.HTTPRequests.WithLabelValues(method, route, status).Inc()
			mm.metrics.HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// Package middleware holds the global and route-specific echo middleware: request ids,
// request-scoped logging, New Relic tracing, Prometheus metrics, rate limiting, Clerk
// authentication and the global error handler.
package middleware

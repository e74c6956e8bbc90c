// Package server defines the Server struct that composes the app's main dependencies.
//
// It owns the lifecycle of:
//   - configuration
//   - logger + optional New Relic service wrapper
//   - the store connection for the configured driver (PostgreSQL pool or SQLite handle)
//   - redis client and the background job service (only when redis is configured)
//   - schema validator and Prometheus metrics
//   - http.Server
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/config"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/database"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/lib/job"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/metrics"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/schema"
	"github.com/newrelic/go-agent/v3/integrations/nrredis-v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	loggerPkg "github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/logger"
)

// Server is the application container that holds shared resources.
//
// It is not the HTTP server itself; that is the unexported httpServer.
type Server struct {
	Config        *config.Config
	Logger        *zerolog.Logger
	LoggerService *loggerPkg.LoggerService

	// DB is set for the postgres driver.
	DB *database.Database

	// SQLite is set for the sqlite driver.
	SQLite *sql.DB

	// Redis is set when redis.address is configured.
	Redis *redis.Client

	// Job is set when redis.address is configured.
	Job *job.JobService

	Schemas *schema.Validator
	Metrics *metrics.Metrics

	httpServer *http.Server
}

// New constructs a Server and initializes core dependencies.
//
// It does NOT start the HTTP server. That is done in SetupHTTPServer + Start.
//
// A Redis outage at startup is only fatal for the redis store driver; otherwise the
// server continues without the job service, so change events are not published.
func New(cfg *config.Config, logger *zerolog.Logger, loggerService *loggerPkg.LoggerService) (*Server, error) {
	ctx := context.Background()

	s := &Server{
		Config:        cfg,
		Logger:        logger,
		LoggerService: loggerService,
		Metrics:       metrics.New(),
	}

	source, err := schema.NewSource(ctx, cfg.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize schema source: %w", err)
	}
	s.Schemas = schema.NewValidator(source, cfg.Schema.XSDPath, cfg.Schema.JSONPath)

	switch cfg.Store.Driver {
	case config.StorePostgres:
		db, err := database.New(cfg, logger, loggerService)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		s.DB = db
	case config.StoreSQLite:
		db, err := database.OpenSQLite(ctx, cfg.Store.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize sqlite: %w", err)
		}
		s.SQLite = db
	}

	if cfg.Redis.Enabled() {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Address,
		})

		if loggerService != nil && loggerService.GetApplication() != nil {
			redisClient.AddHook(nrredis.NewHook(redisClient.Options()))
		}

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			if cfg.Store.Driver == config.StoreRedis {
				return nil, errors.Join(fmt.Errorf("failed to connect to redis: %w", err), s.closeStores(), redisClient.Close())
			}
			// The client stays for health reporting; change events are not published.
			logger.Error().Err(err).Msg("Failed to connect to Redis, continuing without background jobs")
			s.Redis = redisClient
			return s, nil
		}
		s.Redis = redisClient

		jobService := job.NewJobService(logger, cfg)
		jobService.InitHandlers(cfg, logger)

		// asynq.Server.Start returns once the workers are running.
		if err := jobService.Start(); err != nil {
			return nil, errors.Join(fmt.Errorf("failed to start job service: %w", err), s.closeStores(), redisClient.Close())
		}
		s.Job = jobService
	}

	return s, nil
}

// SetupHTTPServer configures the internal net/http server around handler.
func (s *Server) SetupHTTPServer(handler http.Handler) {
	s.httpServer = &http.Server{
		Addr:         ":" + s.Config.Server.Port,
		Handler:      handler,
		ReadTimeout:  time.Duration(s.Config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.Config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.Config.Server.IdleTimeout) * time.Second,
	}
}

// Start runs the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	if s.httpServer == nil {
		return errors.New("HTTP server not initialized")
	}

	s.Logger.Info().
		Str("port", s.Config.Server.Port).
		Str("env", s.Config.Primary.Env).
		Str("store", s.Config.Store.Driver).
		Msg("starting server")

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server, then the job workers and connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown HTTP server: %w", err)
		}
	}

	if s.Job != nil {
		s.Job.Stop()
	}

	if err := s.closeStores(); err != nil {
		return err
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			return fmt.Errorf("failed to close redis connection: %w", err)
		}
	}

	return nil
}

func (s *Server) closeStores() error {
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}
	if s.SQLite != nil {
		if err := s.SQLite.Close(); err != nil {
			return fmt.Errorf("failed to close sqlite database: %w", err)
		}
	}
	return nil
}

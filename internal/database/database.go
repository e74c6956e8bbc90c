// Package database opens the SQL databases behind the record stores.
//
// PostgreSQL is reached through a pgx connection pool with optional New Relic
// instrumentation and, in the local environment, SQL statement logging. SQLite is
// opened through database/sql with the pure Go modernc.org/sqlite driver.
package database

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/config"
	loggerConfig "github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/newrelic/go-agent/v3/integrations/nrpgx5"
	"github.com/rs/zerolog"
)

// Database wraps the pgx connection pool.
type Database struct {
	Pool *pgxpool.Pool
	log  *zerolog.Logger
}

// multiTracer fans pgx query tracing out to several tracers,
// since pgx only has a single Tracer slot.
type multiTracer struct {
	tracers []any
}

func (mt *multiTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	for _, tracer := range mt.tracers {
		if t, ok := tracer.(interface {
			TraceQueryStart(context.Context, *pgx.Conn, pgx.TraceQueryStartData) context.Context
		}); ok {
			ctx = t.TraceQueryStart(ctx, conn, data)
		}
	}
	return ctx
}

func (mt *multiTracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	for _, tracer := range mt.tracers {
		if t, ok := tracer.(interface {
			TraceQueryEnd(context.Context, *pgx.Conn, pgx.TraceQueryEndData)
		}); ok {
			t.TraceQueryEnd(ctx, conn, data)
		}
	}
}

// DatabasePingTimeout is the number of seconds to wait for the first ping.
const DatabasePingTimeout = 10

// DSN builds the postgres:// connection string from cfg.
func DSN(cfg config.DatabaseConfig) string {
	return dsn(cfg, nil)
}

// PoolDSN is DSN plus pgxpool's pool_* sizing parameters.
// pgx.Connect would forward those to the server, so only pools may use it.
func PoolDSN(cfg config.DatabaseConfig) string {
	pool := url.Values{}
	if cfg.MaxOpenConns > 0 {
		pool.Set("pool_max_conns", strconv.Itoa(cfg.MaxOpenConns))
	}
	if cfg.MaxIdleConns > 0 {
		pool.Set("pool_min_conns", strconv.Itoa(cfg.MaxIdleConns))
	}
	if cfg.ConnMaxLifetime > 0 {
		pool.Set("pool_max_conn_lifetime", (time.Duration(cfg.ConnMaxLifetime) * time.Second).String())
	}
	if cfg.ConnMaxIdleTime > 0 {
		pool.Set("pool_max_conn_idle_time", (time.Duration(cfg.ConnMaxIdleTime) * time.Second).String())
	}
	return dsn(cfg, pool)
}

func dsn(cfg config.DatabaseConfig, extra url.Values) string {
	query := url.Values{}
	query.Set("sslmode", cfg.SSLMode)
	for k, v := range extra {
		query[k] = v
	}

	// url.UserPassword escapes passwords containing URL delimiters.
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: query.Encode(),
	}
	return u.String()
}

// New creates a PostgreSQL pool from the application config.
func New(cfg *config.Config, logger *zerolog.Logger, loggerService *loggerConfig.LoggerService) (*Database, error) {
	return Open(context.Background(), PoolDSN(cfg.Database), logger, loggerService, cfg.Primary.Env == "local")
}

// Open creates a pool for dsn and pings it.
//
// The New Relic tracer is attached when loggerService carries an application;
// traceSQL additionally logs every statement through zerolog.
func Open(ctx context.Context, dsn string, logger *zerolog.Logger, loggerService *loggerConfig.LoggerService, traceSQL bool) (*Database, error) {
	pgxPoolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pgx pool config: %w", err)
	}

	if loggerService.GetApplication() != nil {
		pgxPoolConfig.ConnConfig.Tracer = nrpgx5.NewTracer()
	}

	if traceSQL {
		localTracer := loggerConfig.NewPgxTraceLog(loggerConfig.NewPgxLogger(logger.GetLevel()))

		if pgxPoolConfig.ConnConfig.Tracer != nil {
			pgxPoolConfig.ConnConfig.Tracer = &multiTracer{
				tracers: []any{pgxPoolConfig.ConnConfig.Tracer, localTracer},
			}
		} else {
			pgxPoolConfig.ConnConfig.Tracer = localTracer
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxPoolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	database := &Database{
		Pool: pool,
		log:  logger,
	}

	pingCtx, cancel := context.WithTimeout(ctx, DatabasePingTimeout*time.Second)
	defer cancel()
	if err = pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().Msg("connected to the database")

	return database, nil
}

// Close closes the connection pool.
func (db *Database) Close() error {
	db.log.Info().Msg("closing database connection pool")
	db.Pool.Close()
	return nil
}

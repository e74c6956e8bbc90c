package server

import (
	"context"
	"net"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/config"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/logger"
	"github.com/rs/zerolog"
)

// closedAddress returns a loopback address nothing listens on.
func closedAddress(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Schema.Root = filepath.Join("..", "..", "schemas")
	cfg.Store.SeedFile = ""
	cfg.Redis.Address = closedAddress(t)
	return cfg
}

func TestNewFailsWhenRedisStoreIsUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Driver = config.StoreRedis

	log := zerolog.Nop()
	_, err := New(cfg, &log, logger.NewLoggerService(cfg.Observability))
	if err == nil || !strings.Contains(err.Error(), "failed to connect to redis") {
		t.Fatalf("expected redis connection error, got %v", err)
	}
}

func TestNewContinuesWithoutJobsWhenRedisIsUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Driver = config.StoreSQLite
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "restapi.db")

	log := zerolog.Nop()
	s, err := New(cfg, &log, logger.NewLoggerService(cfg.Observability))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.Redis == nil || s.Job != nil {
		t.Fatalf("expected a redis client and no job service, got redis=%v job=%v", s.Redis, s.Job)
	}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

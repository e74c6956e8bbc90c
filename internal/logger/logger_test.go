package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/config"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
)

func TestNewLoggerWithServiceWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "restapi.log")

	cfg := config.DefaultObservabilityConfig()
	cfg.Logging.Level = "warn"
	cfg.Logging.File.Path = path

	log := NewLoggerWithService(cfg, NewLoggerService(cfg))
	log.Info().Msg("dropped")
	log.Warn().Str("family", "product").Msg("kept")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "dropped") {
		t.Fatalf("info line written at warn level: %s", out)
	}
	if !strings.Contains(out, `"message":"kept"`) || !strings.Contains(out, `"service":"`+config.ServiceName+`"`) {
		t.Fatalf("unexpected log output: %s", out)
	}
}

func TestLoggerServiceDisabledWithoutLicense(t *testing.T) {
	ls := NewLoggerService(config.DefaultObservabilityConfig())
	if ls.GetApplication() != nil {
		t.Fatalf("expected no New Relic application")
	}
	ls.Shutdown()

	var nilService *LoggerService
	if nilService.GetApplication() != nil {
		t.Fatalf("nil service must report no application")
	}
}

func TestWithTraceContextNilTransaction(t *testing.T) {
	base := zerolog.Nop()
	if got := WithTraceContext(base, nil); got.GetLevel() != base.GetLevel() {
		t.Fatalf("expected logger unchanged")
	}
}

func TestGetPgxTraceLogLevel(t *testing.T) {
	cases := map[zerolog.Level]tracelog.LogLevel{
		zerolog.DebugLevel: tracelog.LogLevelDebug,
		zerolog.InfoLevel:  tracelog.LogLevelInfo,
		zerolog.WarnLevel:  tracelog.LogLevelWarn,
		zerolog.ErrorLevel: tracelog.LogLevelError,
		zerolog.Disabled:   tracelog.LogLevelNone,
	}
	for in, want := range cases {
		if got := GetPgxTraceLogLevel(in); got != want {
			t.Errorf("GetPgxTraceLogLevel(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestLoggerServiceRejectedLicense(t *testing.T) {
	cfg := config.DefaultObservabilityConfig()
	cfg.NewRelic.LicenseKey = "too-short"

	ls := NewLoggerService(cfg)
	if ls == nil || ls.GetApplication() != nil {
		t.Fatalf("expected a disabled service when the agent refuses the license")
	}
}

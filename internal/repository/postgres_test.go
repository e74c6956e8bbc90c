package repository

import (
	"context"
	"os"
	"testing"

	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/database"
	"github.com/rs/zerolog"
)

// Set RESTAPI_TEST_POSTGRES_DSN to a disposable database to run these tests.
func newPostgresStore(t *testing.T) Store {
	t.Helper()
	dsn := os.Getenv("RESTAPI_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("RESTAPI_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	log := zerolog.Nop()
	if err := database.MigrateDSN(ctx, &log, dsn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	db, err := database.Open(ctx, dsn, &log, nil, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Pool.Exec(ctx, `TRUNCATE records, record_sequences`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return NewPostgresStore(db.Pool)
}

func TestPostgresStore(t *testing.T) {
	runStoreContract(t, newPostgresStore)
}

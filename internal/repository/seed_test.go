package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/entity"
	"github.com/rs/zerolog"
)

func TestLoadSeedFileFromRepo(t *testing.T) {
	sets, err := LoadSeedFile(filepath.Join("..", "..", "data", "seed.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(sets) != len(entity.All()) {
		t.Fatalf("expected a set per family, got %d", len(sets))
	}
	if sets[0].Descriptor.Name != entity.Product.Name || len(sets[0].Records) != 3 {
		t.Fatalf("unexpected product seeds: %+v", sets[0])
	}
}

func TestLoadSeedFileMissing(t *testing.T) {
	sets, err := LoadSeedFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil || sets != nil {
		t.Fatalf("expected no seeds, got %v, %v", sets, err)
	}
}

func TestParseSeedsRejectsUnknownCollection(t *testing.T) {
	if _, err := ParseSeeds([]byte("widgets:\n  - id: 1\n")); err == nil {
		t.Fatalf("expected error for unknown collection")
	}
}

func TestParseSeedsRejectsBadValue(t *testing.T) {
	if _, err := ParseSeeds([]byte("sales:\n  - salesID: one\n")); err == nil {
		t.Fatalf("expected error for non-integer id")
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	sets, err := ParseSeeds([]byte("products:\n  - productID: 1\n    name: a\n    price: 1.5\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	store := NewMemoryStore()
	log := zerolog.Nop()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := Seed(ctx, store, sets, &log); err != nil {
			t.Fatalf("seed #%d: %v", i, err)
		}
	}
	recs, _ := store.List(ctx, entity.Product)
	if len(recs) != 1 {
		t.Fatalf("expected one product after seeding twice, got %d", len(recs))
	}
}

package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/entity"
	"github.com/shopspring/decimal"
)

// runStoreContract exercises the behaviour every Store backend must share.
// newStore must return an empty store.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("seed then list keeps order", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		seedProducts(t, s)
		recs, err := s.List(ctx, entity.Product)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		assertIDs(t, entity.Product, recs, 1, 2, 3)
		if !recs[0]["price"].(decimal.Decimal).Equal(decimal.RequireFromString("3.5")) {
			t.Fatalf("price not preserved: %#v", recs[0])
		}
	})

	t.Run("seed skips populated family", func(t *testing.T) {
		s := newStore(t)
		seedProducts(t, s)
		seeded, err := s.Seed(context.Background(), entity.Product, []entity.Record{{"productID": int64(9), "name": "x"}})
		if err != nil || seeded {
			t.Fatalf("expected no-op seed, got %v, %v", seeded, err)
		}
	})

	t.Run("seed rejects duplicate ids", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Seed(context.Background(), entity.Product, []entity.Record{
			{"productID": int64(1), "name": "a"},
			{"productID": int64(1), "name": "b"},
		})
		var dup *DuplicateIDError
		if !errors.As(err, &dup) {
			t.Fatalf("expected DuplicateIDError, got %v", err)
		}
	})

	t.Run("create assigns fresh id", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		seedProducts(t, s)

		created, err := s.Create(ctx, entity.Product, entity.Record{
			"productID": int64(2), // ignored
			"name":      "bird seed",
			"price":     decimal.RequireFromString("3.5"),
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		id, _ := created.ID(entity.Product)
		if id != 4 {
			t.Fatalf("expected id 4, got %d", id)
		}

		got, err := s.Get(ctx, entity.Product, id)
		if err != nil || got["name"] != "bird seed" {
			t.Fatalf("get created: %#v, %v", got, err)
		}
	})

	t.Run("ids are not reused after delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		seedProducts(t, s)

		if err := s.Delete(ctx, entity.Product, 3); err != nil {
			t.Fatalf("delete: %v", err)
		}
		created, err := s.Create(ctx, entity.Product, entity.Record{"name": "n", "price": decimal.NewFromInt(1)})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if id, _ := created.ID(entity.Product); id != 4 {
			t.Fatalf("expected id 4, got %d", id)
		}
	})

	t.Run("first create in empty family gets id 1", func(t *testing.T) {
		s := newStore(t)
		created, err := s.Create(context.Background(), entity.Sale, entity.Record{"quantity": int64(1)})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if id, _ := created.ID(entity.Sale); id != 1 {
			t.Fatalf("expected id 1, got %d", id)
		}
	})

	t.Run("delete removes exactly one record", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		seedProducts(t, s)

		if err := s.Delete(ctx, entity.Product, 2); err != nil {
			t.Fatalf("delete: %v", err)
		}
		recs, _ := s.List(ctx, entity.Product)
		assertIDs(t, entity.Product, recs, 1, 3)

		if err := s.Delete(ctx, entity.Product, 2); !errors.Is(err, ErrRecordNotFound) {
			t.Fatalf("expected ErrRecordNotFound on second delete, got %v", err)
		}
	})

	t.Run("lookup scans the whole family", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		seedProducts(t, s)

		if _, err := s.Get(ctx, entity.Product, 3); err != nil {
			t.Fatalf("last record must be found: %v", err)
		}
		if _, err := s.Get(ctx, entity.Product, 42); !errors.Is(err, ErrRecordNotFound) {
			t.Fatalf("expected ErrRecordNotFound, got %v", err)
		}
		if _, err := s.Get(ctx, entity.Customer, 1); !errors.Is(err, ErrRecordNotFound) {
			t.Fatalf("families must be separate, got %v", err)
		}
	})

	t.Run("replace keeps position and id", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		seedProducts(t, s)

		replaced, err := s.Replace(ctx, entity.Product, 2, entity.Record{
			"productID": int64(99),
			"name":      "renamed",
			"price":     decimal.NewFromInt(5),
		})
		if err != nil {
			t.Fatalf("replace: %v", err)
		}
		if id, _ := replaced.ID(entity.Product); id != 2 {
			t.Fatalf("id must follow the path, got %d", id)
		}

		recs, _ := s.List(ctx, entity.Product)
		assertIDs(t, entity.Product, recs, 1, 2, 3)
		if recs[1]["name"] != "renamed" {
			t.Fatalf("replace not visible: %#v", recs[1])
		}

		if _, err := s.Replace(ctx, entity.Product, 42, entity.Record{"name": "x"}); !errors.Is(err, ErrRecordNotFound) {
			t.Fatalf("expected ErrRecordNotFound, got %v", err)
		}
	})

	t.Run("concurrent creates get distinct ids", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		const n = 20
		ids := make(chan int64, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				rec, err := s.Create(ctx, entity.Customer, entity.Record{"firstName": "A", "lastName": "B"})
				if err != nil {
					t.Errorf("create: %v", err)
					return
				}
				id, _ := rec.ID(entity.Customer)
				ids <- id
			}()
		}
		wg.Wait()
		close(ids)

		seen := map[int64]bool{}
		for id := range ids {
			if seen[id] {
				t.Fatalf("duplicate id %d", id)
			}
			seen[id] = true
		}
		recs, _ := s.List(ctx, entity.Customer)
		if len(recs) != n {
			t.Fatalf("expected %d customers, got %d", n, len(recs))
		}
	})

	t.Run("ping", func(t *testing.T) {
		if err := newStore(t).Ping(context.Background()); err != nil {
			t.Fatalf("ping: %v", err)
		}
	})
}

func seedProducts(t *testing.T, s Store) {
	t.Helper()
	seeded, err := s.Seed(context.Background(), entity.Product, []entity.Record{
		{"productID": int64(1), "name": "Bird seed", "price": decimal.RequireFromString("3.5")},
		{"productID": int64(2), "name": "Cat litter", "price": decimal.RequireFromString("7.25")},
		{"productID": int64(3), "name": "Dog leash", "price": decimal.RequireFromString("12.99")},
	})
	if err != nil || !seeded {
		t.Fatalf("seed: %v, %v", seeded, err)
	}
}

func assertIDs(t *testing.T, d entity.Descriptor, recs []entity.Record, want ...int64) {
	t.Helper()
	if len(recs) != len(want) {
		t.Fatalf("expected %d records, got %d: %#v", len(want), len(recs), recs)
	}
	for i, rec := range recs {
		if id, _ := rec.ID(d); id != want[i] {
			t.Fatalf("record %d: expected id %d, got %d", i, want[i], id)
		}
	}
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(*testing.T) Store { return NewMemoryStore() })
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	created, _ := s.Create(ctx, entity.Product, entity.Record{"name": "a"})
	created["name"] = "mutated"

	got, _ := s.Get(ctx, entity.Product, 1)
	if got["name"] != "a" {
		t.Fatalf("store leaked its record: %#v", got)
	}
}

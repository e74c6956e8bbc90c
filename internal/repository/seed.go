package repository

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/entity"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// SeedSet is the initial content of one family.
type SeedSet struct {
	Descriptor entity.Descriptor
	Records    []entity.Record
}

// LoadSeedFile reads a YAML document mapping collection names to record lists:
//
//	products:
//	  - productID: 1
//	    name: Bird seed
//	    price: 3.50
//
// A missing file yields no seeds.
func LoadSeedFile(path string) ([]SeedSet, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return ParseSeeds(data)
}

// ParseSeeds parses the YAML seed document, in entity.All order.
func ParseSeeds(data []byte) ([]SeedSet, error) {
	var doc map[string][]map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}

	for name := range doc {
		if _, ok := entity.ByName(name); !ok {
			return nil, fmt.Errorf("seed file: unknown collection %q", name)
		}
	}

	var sets []SeedSet
	for _, d := range entity.All() {
		raw, ok := doc[d.Collection]
		if !ok {
			raw, ok = doc[d.Name]
		}
		if !ok {
			continue
		}
		set := SeedSet{Descriptor: d}
		for i, fields := range raw {
			rec, err := entity.Normalize(d, fields)
			if err != nil {
				return nil, fmt.Errorf("seed %s[%d]: %w", d.Collection, i, err)
			}
			set.Records = append(set.Records, rec)
		}
		sets = append(sets, set)
	}
	return sets, nil
}

// Seed loads every set into store. Families that already hold records are left alone.
func Seed(ctx context.Context, store Store, sets []SeedSet, logger *zerolog.Logger) error {
	for _, set := range sets {
		seeded, err := store.Seed(ctx, set.Descriptor, set.Records)
		if err != nil {
			return err
		}
		if seeded {
			logger.Info().
				Str("family", set.Descriptor.Name).
				Int("records", len(set.Records)).
				Msg("seeded collection")
		}
	}
	return nil
}

// Package repository persists entity records.
//
// Every backend implements Store. Records of all families share one store and are
// kept per family in insertion order. Stores serialise their own writes, so two
// concurrent creates never receive the same identifier.
package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/entity"
)

// ErrRecordNotFound is returned when no record of the family has the identifier.
var ErrRecordNotFound = errors.New("record not found")

// Store is the persistence contract shared by every backend.
type Store interface {
	// List returns every record of the family in insertion order.
	List(ctx context.Context, d entity.Descriptor) ([]entity.Record, error)

	// Get returns the record with the identifier, or ErrRecordNotFound.
	Get(ctx context.Context, d entity.Descriptor, id int64) (entity.Record, error)

	// Create stores rec under a fresh identifier and returns the stored record.
	// Identifiers come from a per-family sequence and are never reused, not even
	// after a delete. Any identifier already present in rec is ignored.
	Create(ctx context.Context, d entity.Descriptor, rec entity.Record) (entity.Record, error)

	// Replace overwrites the record with the identifier, keeping its position.
	Replace(ctx context.Context, d entity.Descriptor, id int64, rec entity.Record) (entity.Record, error)

	// Delete removes the record with the identifier, or returns ErrRecordNotFound.
	Delete(ctx context.Context, d entity.Descriptor, id int64) error

	// Seed inserts recs with their own identifiers, but only when the family is empty.
	// It reports whether anything was inserted.
	Seed(ctx context.Context, d entity.Descriptor, recs []entity.Record) (bool, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}

// DuplicateIDError is returned by Seed when two seed records share an identifier.
type DuplicateIDError struct {
	Family string
	ID     int64
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate %s identifier %d", e.Family, e.ID)
}

// encodeRecord serialises rec without its identifier; backends keep the identifier
// in a column or key of its own.
func encodeRecord(d entity.Descriptor, rec entity.Record) ([]byte, error) {
	stored := rec.Clone()
	delete(stored, d.IDField)
	b, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", d.Name, err)
	}
	return b, nil
}

func decodeRecord(d entity.Descriptor, id int64, data []byte) (entity.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decoding stored %s %d: %w", d.Name, id, err)
	}
	rec, err := entity.Normalize(d, fields)
	if err != nil {
		return nil, fmt.Errorf("decoding stored %s %d: %w", d.Name, id, err)
	}
	return rec.WithID(d, id), nil
}

// seedIDs returns the identifiers of recs, assigning max+1 to records without one.
func seedIDs(d entity.Descriptor, recs []entity.Record) ([]int64, error) {
	ids := make([]int64, len(recs))
	seen := make(map[int64]bool, len(recs))
	var highest int64
	for _, rec := range recs {
		if id, ok := rec.ID(d); ok && id > highest {
			highest = id
		}
	}
	for i, rec := range recs {
		id, ok := rec.ID(d)
		if !ok {
			highest++
			id = highest
		}
		if seen[id] {
			return nil, &DuplicateIDError{Family: d.Name, ID: id}
		}
		seen[id] = true
		ids[i] = id
	}
	return ids, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/entity"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps records in PostgreSQL (see database/migrations).
//
// Writes that hand out identifiers take a transaction-scoped advisory lock keyed on
// the family, so concurrent creates are serialised per family only.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps pool. The caller keeps ownership of pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) List(ctx context.Context, d entity.Descriptor) ([]entity.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, payload FROM records WHERE family = $1 ORDER BY seq`, d.Name)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", d.Collection, err)
	}
	defer rows.Close()

	out := []entity.Record{}
	for rows.Next() {
		var (
			id      int64
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", d.Name, err)
		}
		rec, err := decodeRecord(d, id, payload)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, d entity.Descriptor, id int64) (entity.Record, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM records WHERE family = $1 AND id = $2`, d.Name, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting %s %d: %w", d.Name, id, err)
	}
	return decodeRecord(d, id, payload)
}

func lockFamily(ctx context.Context, tx pgx.Tx, family string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, family)
	return err
}

func bumpSequencePostgres(ctx context.Context, tx pgx.Tx, family string, id int64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO record_sequences (family, last_id) VALUES ($1, $2)
		ON CONFLICT (family) DO UPDATE SET last_id = GREATEST(record_sequences.last_id, EXCLUDED.last_id)`,
		family, id)
	return err
}

func (s *PostgresStore) Create(ctx context.Context, d entity.Descriptor, rec entity.Record) (entity.Record, error) {
	payload, err := encodeRecord(d, rec)
	if err != nil {
		return nil, err
	}

	var id int64
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := lockFamily(ctx, tx, d.Name); err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, `
			SELECT GREATEST(
				COALESCE((SELECT last_id FROM record_sequences WHERE family = $1), 0),
				COALESCE((SELECT MAX(id) FROM records WHERE family = $1), 0)
			) + 1`, d.Name).Scan(&id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO records (family, id, payload) VALUES ($1, $2, $3)`, d.Name, id, payload); err != nil {
			return err
		}
		return bumpSequencePostgres(ctx, tx, d.Name, id)
	})
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", d.Name, err)
	}
	return rec.WithID(d, id), nil
}

func (s *PostgresStore) Replace(ctx context.Context, d entity.Descriptor, id int64, rec entity.Record) (entity.Record, error) {
	payload, err := encodeRecord(d, rec)
	if err != nil {
		return nil, err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE records SET payload = $3, updated_at = now()
		WHERE family = $1 AND id = $2`, d.Name, id, payload)
	if err != nil {
		return nil, fmt.Errorf("replacing %s %d: %w", d.Name, id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrRecordNotFound
	}
	return rec.WithID(d, id), nil
}

func (s *PostgresStore) Delete(ctx context.Context, d entity.Descriptor, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM records WHERE family = $1 AND id = $2`, d.Name, id)
	if err != nil {
		return fmt.Errorf("deleting %s %d: %w", d.Name, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *PostgresStore) Seed(ctx context.Context, d entity.Descriptor, recs []entity.Record) (bool, error) {
	ids, err := seedIDs(d, recs)
	if err != nil {
		return false, err
	}

	seeded := false
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := lockFamily(ctx, tx, d.Name); err != nil {
			return err
		}
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM records WHERE family = $1)`, d.Name).Scan(&exists); err != nil {
			return err
		}
		if exists || len(recs) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for i, rec := range recs {
			payload, err := encodeRecord(d, rec)
			if err != nil {
				return err
			}
			batch.Queue(`INSERT INTO records (family, id, payload) VALUES ($1, $2, $3)`, d.Name, ids[i], payload)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
		if err := bumpSequencePostgres(ctx, tx, d.Name, maxID(ids)); err != nil {
			return err
		}
		seeded = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("seeding %s: %w", d.Collection, err)
	}
	return seeded, nil
}

func maxID(ids []int64) int64 {
	var m int64
	for _, id := range ids {
		m = max(m, id)
	}
	return m
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

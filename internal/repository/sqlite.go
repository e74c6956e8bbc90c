package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/entity"
)

// SQLiteStore keeps records in a SQLite database opened by database.OpenSQLite.
//
// The database handle is limited to one connection, so each transaction below runs
// alone and identifier assignment needs no further locking.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps db. The caller keeps ownership of db.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) List(ctx context.Context, d entity.Descriptor) ([]entity.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, payload FROM records WHERE family = ? ORDER BY rowid`, d.Name)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", d.Collection, err)
	}
	defer rows.Close()

	out := []entity.Record{}
	for rows.Next() {
		var (
			id      int64
			payload string
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", d.Name, err)
		}
		rec, err := decodeRecord(d, id, []byte(payload))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Get(ctx context.Context, d entity.Descriptor, id int64) (entity.Record, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM records WHERE family = ? AND id = ?`, d.Name, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting %s %d: %w", d.Name, id, err)
	}
	return decodeRecord(d, id, []byte(payload))
}

func (s *SQLiteStore) Create(ctx context.Context, d entity.Descriptor, rec entity.Record) (entity.Record, error) {
	payload, err := encodeRecord(d, rec)
	if err != nil {
		return nil, err
	}

	var id int64
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		var lastID, maxID int64
		if err := tx.QueryRowContext(ctx, `
			SELECT
				COALESCE((SELECT last_id FROM record_sequences WHERE family = ?), 0),
				COALESCE((SELECT MAX(id) FROM records WHERE family = ?), 0)`,
			d.Name, d.Name).Scan(&lastID, &maxID); err != nil {
			return err
		}
		id = max(lastID, maxID) + 1

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO records (family, id, payload) VALUES (?, ?, ?)`, d.Name, id, string(payload)); err != nil {
			return err
		}
		return bumpSequenceSQLite(ctx, tx, d.Name, id)
	})
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", d.Name, err)
	}
	return rec.WithID(d, id), nil
}

func bumpSequenceSQLite(ctx context.Context, tx *sql.Tx, family string, id int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO record_sequences (family, last_id) VALUES (?, ?)
		ON CONFLICT (family) DO UPDATE SET last_id = MAX(last_id, excluded.last_id)`, family, id)
	return err
}

func (s *SQLiteStore) Replace(ctx context.Context, d entity.Descriptor, id int64, rec entity.Record) (entity.Record, error) {
	payload, err := encodeRecord(d, rec)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE records
		SET payload = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE family = ? AND id = ?`, string(payload), d.Name, id)
	if err != nil {
		return nil, fmt.Errorf("replacing %s %d: %w", d.Name, id, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, ErrRecordNotFound
	}
	return rec.WithID(d, id), nil
}

func (s *SQLiteStore) Delete(ctx context.Context, d entity.Descriptor, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE family = ? AND id = ?`, d.Name, id)
	if err != nil {
		return fmt.Errorf("deleting %s %d: %w", d.Name, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *SQLiteStore) Seed(ctx context.Context, d entity.Descriptor, recs []entity.Record) (bool, error) {
	ids, err := seedIDs(d, recs)
	if err != nil {
		return false, err
	}

	seeded := false
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM records WHERE family = ?`, d.Name).Scan(&count); err != nil {
			return err
		}
		if count > 0 || len(recs) == 0 {
			return nil
		}

		for i, rec := range recs {
			payload, err := encodeRecord(d, rec)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO records (family, id, payload) VALUES (?, ?, ?)`, d.Name, ids[i], string(payload)); err != nil {
				return err
			}
			if err := bumpSequenceSQLite(ctx, tx, d.Name, ids[i]); err != nil {
				return err
			}
		}
		seeded = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("seeding %s: %w", d.Collection, err)
	}
	return seeded, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

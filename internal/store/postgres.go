package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres keeps records in the records table (JSONB) and the ordering index
// in record_order, whose bigserial seq gives insertion order.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres-backed store. Tables come from the
// embedded migrations in pkg/database.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Get returns the record or ErrNotFound.
func (s *Postgres) Get(ctx context.Context, kind Kind, id string) ([]byte, error) {
	const q = `SELECT data::text FROM records WHERE kind = $1 AND id = $2`
	var data string
	err := s.pool.QueryRow(ctx, q, string(kind), id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select record: %w", err)
	}
	return []byte(data), nil
}

// GetMany loads all ids in one query and reorders them to match ids.
func (s *Postgres) GetMany(ctx context.Context, kind Kind, ids []string) ([][]byte, error) {
	out := make([][]byte, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	const q = `SELECT id, data::text FROM records WHERE kind = $1 AND id = ANY($2)`
	rows, err := s.pool.Query(ctx, q, string(kind), ids)
	if err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}
	defer rows.Close()
	byID := make(map[string][]byte, len(ids))
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		byID[id] = []byte(data)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, id := range ids {
		out[i] = byID[id]
	}
	return out, nil
}

// Put upserts the record.
func (s *Postgres) Put(ctx context.Context, kind Kind, id string, data []byte) error {
	const q = `INSERT INTO records (kind, id, data) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (kind, id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`
	if _, err := s.pool.Exec(ctx, q, string(kind), id, string(data)); err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

// Insert writes the record unless the id exists.
func (s *Postgres) Insert(ctx context.Context, kind Kind, id string, data []byte) error {
	const q = `INSERT INTO records (kind, id, data) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (kind, id) DO NOTHING`
	tag, err := s.pool.Exec(ctx, q, string(kind), id, string(data))
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrExists
	}
	return nil
}

// Update locks the row with SELECT ... FOR UPDATE for the duration of fn.
func (s *Postgres) Update(ctx context.Context, kind Kind, id string, fn UpdateFunc) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var cur string
	err = tx.QueryRow(ctx, `SELECT data::text FROM records WHERE kind = $1 AND id = $2 FOR UPDATE`, string(kind), id).Scan(&cur)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock record: %w", err)
	}
	next, err := fn([]byte(cur))
	if err != nil {
		return err
	}
	if next == nil {
		return tx.Commit(ctx)
	}
	if _, err := tx.Exec(ctx, `UPDATE records SET data = $3::jsonb, updated_at = NOW() WHERE kind = $1 AND id = $2`,
		string(kind), id, string(next)); err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	return tx.Commit(ctx)
}

// Delete removes the record.
func (s *Postgres) Delete(ctx context.Context, kind Kind, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM records WHERE kind = $1 AND id = $2`, string(kind), id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListIDs returns ids by insertion sequence.
func (s *Postgres) ListIDs(ctx context.Context, kind Kind) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM record_order WHERE kind = $1 ORDER BY seq`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("select order: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AppendID inserts into the index; re-appending is a no-op.
func (s *Postgres) AppendID(ctx context.Context, kind Kind, id string) error {
	const q = `INSERT INTO record_order (kind, id) VALUES ($1, $2) ON CONFLICT (kind, id) DO NOTHING`
	if _, err := s.pool.Exec(ctx, q, string(kind), id); err != nil {
		return fmt.Errorf("append order: %w", err)
	}
	return nil
}

// RemoveID deletes id from the index.
func (s *Postgres) RemoveID(ctx context.Context, kind Kind, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM record_order WHERE kind = $1 AND id = $2`, string(kind), id); err != nil {
		return fmt.Errorf("remove order: %w", err)
	}
	return nil
}

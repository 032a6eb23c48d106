package storage

import (
	"context"
	"fmt"

	"github.com/earthquake-city/quake-alerts/internal/dedup"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	createAlertedIDsSQL = `CREATE TABLE IF NOT EXISTS alerted_ids (
        event_id   TEXT PRIMARY KEY,
        alerted_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );`

	listAlertedIDsSQL = `SELECT event_id FROM alerted_ids;`

	insertAlertedIDsSQL = `INSERT INTO alerted_ids (event_id)
    SELECT unnest($1::text[])
    ON CONFLICT (event_id) DO NOTHING;`

	deleteAlertedIDsSQL = `DELETE FROM alerted_ids WHERE event_id = ANY($1::text[]);`
)

// PostgresStore keeps the seen-id set in the alerted_ids table
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ SeenStore = (*PostgresStore)(nil)

// NewPostgresStore opens a pool for dsn and creates the table if needed
func NewPostgresStore(ctx context.Context, dsn string, maxConns int32) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	if _, err := pool.Exec(ctx, createAlertedIDsSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create alerted_ids table: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) GetIDs(ctx context.Context) (dedup.IDSet, error) {
	rows, err := p.pool.Query(ctx, listAlertedIDsSQL)
	if err != nil {
		return nil, fmt.Errorf("list alerted ids: %w", err)
	}
	defer rows.Close()

	ids := dedup.NewIDSet()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan alerted id: %w", err)
		}
		ids.Add(id)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return ids, nil
}

func (p *PostgresStore) AddIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := p.pool.Exec(ctx, insertAlertedIDsSQL, ids); err != nil {
		return fmt.Errorf("insert alerted ids: %w", err)
	}
	return nil
}

func (p *PostgresStore) RemoveIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := p.pool.Exec(ctx, deleteAlertedIDsSQL, ids); err != nil {
		return fmt.Errorf("delete alerted ids: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources
func (p *PostgresStore) Close() {
	if p == nil || p.pool == nil {
		return
	}
	p.pool.Close()
}

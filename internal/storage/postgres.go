package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/faith-connect/faith_connect/internal/infra"
)

const clientStorageDDL = `CREATE TABLE IF NOT EXISTS client_storage (
    namespace  TEXT NOT NULL,
    key        TEXT NOT NULL,
    value      TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (namespace, key)
)`

// Postgres is an Area kept in the client_storage table, one row per key.
type Postgres struct {
	db        *pgxpool.Pool
	namespace string
}

// NewPostgres ensures the client_storage table exists and returns an area
// scoped to namespace.
func NewPostgres(ctx context.Context, db *pgxpool.Pool, namespace string) (*Postgres, error) {
	if err := infra.EnsureSchema(ctx, db, clientStorageDDL); err != nil {
		return nil, err
	}
	return &Postgres{db: db, namespace: namespace}, nil
}

func (p *Postgres) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := p.db.QueryRow(ctx, `SELECT value FROM client_storage WHERE namespace = $1 AND key = $2`, p.namespace, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select %s: %w", key, err)
	}
	return value, true, nil
}

func (p *Postgres) Set(ctx context.Context, key, value string) error {
	_, err := p.db.Exec(ctx, `INSERT INTO client_storage (namespace, key, value, updated_at)
        VALUES ($1, $2, $3, now())
        ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, p.namespace, key, value)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) Remove(ctx context.Context, key string) error {
	if _, err := p.db.Exec(ctx, `DELETE FROM client_storage WHERE namespace = $1 AND key = $2`, p.namespace, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

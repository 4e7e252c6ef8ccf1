package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"

	"onboarding-backend/internal/domains/onboarding"
	"onboarding-backend/pkg/database"
)

// DraftsSchema creates the table backing the postgres draft store
const DraftsSchema = `
	CREATE TABLE IF NOT EXISTS onboarding_drafts (
		namespace  TEXT        NOT NULL,
		draft_key  TEXT        NOT NULL,
		value      JSONB       NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (namespace, draft_key)
	);
	CREATE INDEX IF NOT EXISTS idx_onboarding_drafts_updated_at ON onboarding_drafts (updated_at)
`

// migrationLockID serializes schema setup across API replicas
const migrationLockID = 7_310_442

type postgresDraftStore struct {
	pool *pgxpool.Pool
}

func NewPostgresDraftStore(pool *pgxpool.Pool) onboarding.DraftStore {
	return &postgresDraftStore{pool: pool}
}

// MigratePostgres makes sure the drafts table exists
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	return database.WithTransaction(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
			return fmt.Errorf("lock migration: %w", err)
		}
		if _, err := tx.Exec(ctx, DraftsSchema); err != nil {
			return fmt.Errorf("create onboarding_drafts: %w", err)
		}
		return nil
	})
}

func (s *postgresDraftStore) Get(ctx context.Context, ns, key string) ([]byte, error) {
	query := `SELECT value::text FROM onboarding_drafts WHERE namespace = $1 AND draft_key = $2`

	var value string
	err := s.pool.QueryRow(ctx, query, ns, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, onboarding.ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get draft %s: %w", key, err)
	}
	return []byte(value), nil
}

func (s *postgresDraftStore) Put(ctx context.Context, ns, key string, value []byte) error {
	query := `
		INSERT INTO onboarding_drafts (namespace, draft_key, value, updated_at)
		VALUES ($1, $2, $3::jsonb, NOW())
		ON CONFLICT (namespace, draft_key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	if _, err := s.pool.Exec(ctx, query, ns, key, string(value)); err != nil {
		return fmt.Errorf("put draft %s: %w", key, err)
	}
	return nil
}

func (s *postgresDraftStore) Delete(ctx context.Context, ns string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	query := `DELETE FROM onboarding_drafts WHERE namespace = $1 AND draft_key = ANY($2)`
	if _, err := s.pool.Exec(ctx, query, ns, pq.StringArray(keys)); err != nil {
		return fmt.Errorf("delete drafts: %w", err)
	}
	return nil
}

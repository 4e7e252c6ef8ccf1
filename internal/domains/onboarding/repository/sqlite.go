package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"onboarding-backend/internal/domains/onboarding"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS onboarding_drafts (
		namespace  TEXT NOT NULL,
		draft_key  TEXT NOT NULL,
		value      BLOB NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (namespace, draft_key)
	)
`

// sqliteDraftStore keeps drafts in a local file for single node deployments.
// Values are stored as raw bytes so a corrupt key reads back unchanged.
type sqliteDraftStore struct {
	db *sql.DB
}

// NewSQLiteDraftStore creates the table if needed
func NewSQLiteDraftStore(ctx context.Context, db *sql.DB) (onboarding.DraftStore, error) {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("create onboarding_drafts: %w", err)
	}
	return &sqliteDraftStore{db: db}, nil
}

func (s *sqliteDraftStore) Get(ctx context.Context, ns, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM onboarding_drafts WHERE namespace = ? AND draft_key = ?`,
		ns, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, onboarding.ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get draft %s: %w", key, err)
	}
	return value, nil
}

func (s *sqliteDraftStore) Put(ctx context.Context, ns, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO onboarding_drafts (namespace, draft_key, value, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (namespace, draft_key)
		DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, ns, key, value)
	if err != nil {
		return fmt.Errorf("put draft %s: %w", key, err)
	}
	return nil
}

func (s *sqliteDraftStore) Delete(ctx context.Context, ns string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]interface{}, 0, len(keys)+1)
	args = append(args, ns)
	for _, k := range keys {
		args = append(args, k)
	}

	query := fmt.Sprintf(`DELETE FROM onboarding_drafts WHERE namespace = ? AND draft_key IN (%s)`, placeholders)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete drafts: %w", err)
	}
	return nil
}

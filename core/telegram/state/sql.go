package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const (
	selectStateQuery = `SELECT state FROM chat_states WHERE user_id = $1`
	upsertStateQuery = `INSERT INTO chat_states (user_id, state, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (user_id) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`
)

// SQLStore keeps states in the chat_states table created by migrations.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Get selects the state row for a user.
func (s *SQLStore) Get(ctx context.Context, userID int64) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, selectStateQuery, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select state: %w", err)
	}
	return value, true, nil
}

// Set upserts the state row for a user.
func (s *SQLStore) Set(ctx context.Context, userID int64, value string) error {
	if _, err := s.db.ExecContext(ctx, upsertStateQuery, userID, value); err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package postgres implements the durable session backstop and the completed
// meal log on PostgreSQL.
//
// Sessions are stored as one JSONB document per user, not as normalized
// columns: the document is only read back wholesale after a process restart,
// so there is nothing to query inside it. Completed meals are append-only.
// Schema migrations are embedded in the binary and applied on startup.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/platewise/platewise/internal/core/model"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store implements session.Persistence on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database and applies pending migrations.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	if err := applyMigrations(databaseURL); err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func applyMigrations(databaseURL string) error {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return err
	}
	// The migrate pgx driver registers under the pgx5 scheme.
	migrateURL := strings.Replace(databaseURL, "postgres://", "pgx5://", 1)
	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// LoadActiveSession returns the user's persisted session, or nil when none
// exists or it has already expired.
func (s *Store) LoadActiveSession(ctx context.Context, userID int64) (*model.Session, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM sessions WHERE user_id = $1 AND expires_at > now()`,
		userID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var out model.Session
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode session document: %w", err)
	}
	return &out, nil
}

// SaveSession upserts the session document keyed by user. A user starting a
// new session overwrites whatever stale document was left behind.
func (s *Store) SaveSession(ctx context.Context, sess *model.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session document: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, data, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id) DO UPDATE
		SET id = EXCLUDED.id, data = EXCLUDED.data,
		    expires_at = EXCLUDED.expires_at, updated_at = now()`,
		sess.ID, sess.UserID, payload, sess.ExpiresAt)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// SaveCompletedMeal appends the confirmed analysis to the meal log.
func (s *Store) SaveCompletedMeal(ctx context.Context, sess *model.Session) error {
	result := sess.Current()
	if result == nil {
		return fmt.Errorf("session %s has no analysis to record", sess.ID)
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode meal document: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO meals (session_id, user_id, data, correction_count, confirmed_at)
		VALUES ($1, $2, $3, $4, $5)`,
		sess.ID, sess.UserID, payload, sess.CorrectionCount, time.Now())
	if err != nil {
		return fmt.Errorf("save completed meal: %w", err)
	}
	return nil
}

// DeleteSession removes a session document by its ID.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

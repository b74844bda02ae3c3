// Package postgres stores integrations in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"jarvis/internal/oauth"
	"jarvis/pkg/logging"
)

// DBTX is the subset of pgxpool.Pool the store needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schema = `
CREATE TABLE IF NOT EXISTS integrations (
	user_id          TEXT        NOT NULL,
	integration_type TEXT        NOT NULL,
	app_id           TEXT        NOT NULL,
	refresh_token    TEXT        NOT NULL,
	status           TEXT        NOT NULL DEFAULT 'active',
	status_reason    TEXT        NOT NULL DEFAULT '',
	updated_at       TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (user_id, integration_type)
)`

const (
	upsertIntegration = `
INSERT INTO integrations (user_id, integration_type, app_id, refresh_token, status, status_reason, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (user_id, integration_type) DO UPDATE SET
	app_id = EXCLUDED.app_id,
	refresh_token = EXCLUDED.refresh_token,
	status = EXCLUDED.status,
	status_reason = EXCLUDED.status_reason,
	updated_at = EXCLUDED.updated_at`

	selectColumns = `SELECT user_id, integration_type, app_id, refresh_token, status, status_reason, updated_at FROM integrations`

	getIntegration = selectColumns + ` WHERE user_id = $1 AND integration_type = $2`

	listIntegrations = selectColumns + ` WHERE user_id = $1 ORDER BY integration_type`

	markRequiresReauth = `
UPDATE integrations SET status = $4, status_reason = $5, updated_at = $6
WHERE user_id = $1 AND integration_type = $2 AND refresh_token = $3`

	rotateRefreshToken = `
UPDATE integrations SET refresh_token = $4, status = $5, status_reason = '', updated_at = $6
WHERE user_id = $1 AND integration_type = $2 AND refresh_token = $3`

	integrationExists = `SELECT 1 FROM integrations WHERE user_id = $1 AND integration_type = $2`
)

// Store is an oauth.IntegrationStore on PostgreSQL.
type Store struct {
	db  DBTX
	now func() time.Time
}

var _ oauth.IntegrationStore = (*Store)(nil)

// NewStore creates a store on db.
func NewStore(db DBTX) *Store {
	return &Store{db: db, now: time.Now}
}

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the integrations table if it is missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	logging.Debug("Postgres", "Integrations schema ready")
	return nil
}

// Save implements oauth.IntegrationStore.
func (s *Store) Save(ctx context.Context, i *oauth.Integration) error {
	status := i.Status
	if status == "" {
		status = oauth.StatusActive
	}
	updatedAt := i.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = s.now()
	}

	_, err := s.db.Exec(ctx, upsertIntegration,
		i.UserID, string(i.IntegrationType), i.AppID, i.RefreshToken.Value(),
		string(status), i.StatusReason, updatedAt)
	if err != nil {
		return fmt.Errorf("save integration: %w", err)
	}
	return nil
}

// Get implements oauth.IntegrationStore.
func (s *Store) Get(ctx context.Context, userID string, t oauth.IntegrationType) (*oauth.Integration, error) {
	i, err := scanIntegration(s.db.QueryRow(ctx, getIntegration, userID, string(t)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, oauth.ErrIntegrationNotFound
		}
		return nil, fmt.Errorf("get integration: %w", err)
	}
	return i, nil
}

// GetAll implements oauth.IntegrationStore.
func (s *Store) GetAll(ctx context.Context, userID string) ([]*oauth.Integration, error) {
	rows, err := s.db.Query(ctx, listIntegrations, userID)
	if err != nil {
		return nil, fmt.Errorf("list integrations: %w", err)
	}
	defer rows.Close()

	var out []*oauth.Integration
	for rows.Next() {
		i, err := scanIntegration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan integration: %w", err)
		}
		out = append(out, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list integrations: %w", err)
	}
	return out, nil
}

// MarkRequiresReauth implements oauth.IntegrationStore. The refresh token in
// the WHERE clause makes it a compare-and-set.
func (s *Store) MarkRequiresReauth(ctx context.Context, userID string, t oauth.IntegrationType, failedRefreshToken, reason string) (bool, error) {
	tag, err := s.db.Exec(ctx, markRequiresReauth,
		userID, string(t), failedRefreshToken,
		string(oauth.StatusRequiresReauth), reason, s.now())
	if err != nil {
		return false, fmt.Errorf("mark integration: %w", err)
	}
	return s.compareAndSetResult(ctx, tag, userID, t)
}

// RotateRefreshToken implements oauth.IntegrationStore. Like
// MarkRequiresReauth it only matches the row still holding oldRefreshToken.
func (s *Store) RotateRefreshToken(ctx context.Context, userID string, t oauth.IntegrationType, oldRefreshToken, newRefreshToken string) (bool, error) {
	tag, err := s.db.Exec(ctx, rotateRefreshToken,
		userID, string(t), oldRefreshToken, newRefreshToken,
		string(oauth.StatusActive), s.now())
	if err != nil {
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}
	return s.compareAndSetResult(ctx, tag, userID, t)
}

// compareAndSetResult tells a lost compare-and-set apart from a missing row.
func (s *Store) compareAndSetResult(ctx context.Context, tag pgconn.CommandTag, userID string, t oauth.IntegrationType) (bool, error) {
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var one int
	if err := s.db.QueryRow(ctx, integrationExists, userID, string(t)).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, oauth.ErrIntegrationNotFound
		}
		return false, fmt.Errorf("check integration: %w", err)
	}
	return false, nil
}

func scanIntegration(row pgx.Row) (*oauth.Integration, error) {
	var (
		i            oauth.Integration
		integType    string
		refreshToken string
		status       string
	)
	if err := row.Scan(&i.UserID, &integType, &i.AppID, &refreshToken, &status, &i.StatusReason, &i.UpdatedAt); err != nil {
		return nil, err
	}
	i.IntegrationType = oauth.IntegrationType(integType)
	i.RefreshToken = oauth.NewRedactedToken(refreshToken)
	i.Status = oauth.IntegrationStatus(status)
	return &i, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/linkspark/internal/apperror"
	"github.com/sakif/linkspark/internal/model"
	"github.com/sakif/linkspark/internal/repository"
)

var _ repository.PlayerTokenRepository = (*DB)(nil)

// SaveToken stores (or replaces) the user's provider token.
func (db *DB) SaveToken(ctx context.Context, token *model.PlayerToken) error {
	token.UpdatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO player_tokens (user_id, access_token, refresh_token, token_type, scope, expires_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			access_token  = excluded.access_token,
			refresh_token = CASE WHEN excluded.refresh_token = '' THEN player_tokens.refresh_token ELSE excluded.refresh_token END,
			token_type    = excluded.token_type,
			scope         = excluded.scope,
			expires_at    = excluded.expires_at,
			updated_at    = excluded.updated_at`,
		token.UserID,
		token.AccessToken,
		token.RefreshToken,
		token.TokenType,
		token.Scope,
		token.ExpiresAt.UTC(),
		token.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving player token for %s: %w", token.UserID, err)
	}
	return nil
}

// GetToken reads the user's provider token.
func (db *DB) GetToken(ctx context.Context, userID string) (*model.PlayerToken, error) {
	var t model.PlayerToken
	err := db.conn.QueryRowContext(ctx,
		`SELECT user_id, access_token, refresh_token, token_type, scope, expires_at, updated_at
		 FROM player_tokens WHERE user_id = ?`, userID,
	).Scan(
		&t.UserID,
		&t.AccessToken,
		&t.RefreshToken,
		&t.TokenType,
		&t.Scope,
		&t.ExpiresAt,
		&t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("player token", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting player token for %s: %w", userID, err)
	}
	return &t, nil
}

// DeleteToken forgets the user's provider token. Deleting a missing token is
// not an error.
func (db *DB) DeleteToken(ctx context.Context, userID string) error {
	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM player_tokens WHERE user_id = ?`, userID,
	); err != nil {
		return fmt.Errorf("sqlite: deleting player token for %s: %w", userID, err)
	}
	return nil
}

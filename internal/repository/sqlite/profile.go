package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sakif/linkspark/internal/apperror"
	"github.com/sakif/linkspark/internal/model"
	"github.com/sakif/linkspark/internal/repository"
)

var _ repository.ProfileRepository = (*DB)(nil)

const profileColumns = `user_id, username, display_name, bio, profile_image_url,
	template_id, socials, embed, created_at, updated_at`

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// CreateProfile writes a new profile. An existing profile for the same user,
// or a taken username, is a conflict.
func (db *DB) CreateProfile(ctx context.Context, profile *model.Profile) error {
	return insertProfile(ctx, db.conn, profile)
}

func insertProfile(ctx context.Context, ex execer, profile *model.Profile) error {
	now := time.Now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	socials, err := json.Marshal(profile.Socials)
	if err != nil {
		return fmt.Errorf("sqlite: encoding socials: %w", err)
	}

	_, err = ex.ExecContext(ctx,
		`INSERT INTO profiles (`+profileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		profile.UserID,
		nullString(profile.Username),
		profile.DisplayName,
		profile.Bio,
		profile.ProfileImageURL,
		profile.TemplateID,
		string(socials),
		profile.Embed,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		if column, ok := uniqueViolation(err); ok {
			if column == "profiles.user_id" {
				return apperror.Conflict("profile", profile.UserID)
			}
			return conflictFor(column)
		}
		return fmt.Errorf("sqlite: inserting profile for %s: %w", profile.UserID, err)
	}
	return nil
}

// EnsureProfile is the one idempotent upsert behind the "create the profile
// if it is missing" path. Concurrent callers all end up reading the same row.
func (db *DB) EnsureProfile(ctx context.Context, profile *model.Profile) (*model.Profile, error) {
	now := time.Now().UTC()
	socials, err := json.Marshal(profile.Socials)
	if err != nil {
		return nil, fmt.Errorf("sqlite: encoding socials: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO profiles (`+profileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO NOTHING`,
		profile.UserID,
		nullString(profile.Username),
		profile.DisplayName,
		profile.Bio,
		profile.ProfileImageURL,
		profile.TemplateID,
		string(socials),
		profile.Embed,
		now,
		now,
	)
	if err != nil {
		if column, ok := uniqueViolation(err); ok {
			return nil, conflictFor(column)
		}
		return nil, fmt.Errorf("sqlite: ensuring profile for %s: %w", profile.UserID, err)
	}

	return db.GetProfile(ctx, profile.UserID)
}

// GetProfile is a point read by owner.
func (db *DB) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := scanProfile(db.conn.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = ?`, userID))
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("profile", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting profile %s: %w", userID, err)
	}
	return p, nil
}

// GetProfileByUsername resolves a public username.
func (db *DB) GetProfileByUsername(ctx context.Context, username string) (*model.Profile, error) {
	p, err := scanProfile(db.conn.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE username = ? LIMIT 1`, username))
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("profile", username)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting profile @%s: %w", username, err)
	}
	return p, nil
}

// UpdateProfile merge-writes the non-nil fields of update and returns the
// stored result.
func (db *DB) UpdateProfile(ctx context.Context, userID string, update model.ProfileUpdate) (*model.Profile, error) {
	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if update.Username != nil {
		set("username", nullString(*update.Username))
	}
	if update.DisplayName != nil {
		set("display_name", *update.DisplayName)
	}
	if update.Bio != nil {
		set("bio", *update.Bio)
	}
	if update.ProfileImageURL != nil {
		set("profile_image_url", *update.ProfileImageURL)
	}
	if update.TemplateID != nil {
		set("template_id", *update.TemplateID)
	}
	if update.Socials != nil {
		socials, err := json.Marshal(update.Socials)
		if err != nil {
			return nil, fmt.Errorf("sqlite: encoding socials: %w", err)
		}
		set("socials", string(socials))
	}
	if update.Embed != nil {
		set("embed", *update.Embed)
	}
	set("updated_at", time.Now().UTC())
	args = append(args, userID)

	result, err := db.conn.ExecContext(ctx,
		`UPDATE profiles SET `+strings.Join(sets, ", ")+` WHERE user_id = ?`,
		args...,
	)
	if err != nil {
		if column, ok := uniqueViolation(err); ok {
			return nil, conflictFor(column)
		}
		return nil, fmt.Errorf("sqlite: updating profile %s: %w", userID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, apperror.NotFound("profile", userID)
	}

	return db.GetProfile(ctx, userID)
}

// UsernameTaken is the single limit-1 point query behind availability checks.
func (db *DB) UsernameTaken(ctx context.Context, username, excludingUserID string) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM profiles WHERE username = ? AND user_id <> ? LIMIT 1`,
		username, excludingUserID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: checking username %q: %w", username, err)
	}
	return true, nil
}

func scanProfile(row *sql.Row) (*model.Profile, error) {
	var (
		p        model.Profile
		username sql.NullString
		socials  string
	)
	if err := row.Scan(
		&p.UserID,
		&username,
		&p.DisplayName,
		&p.Bio,
		&p.ProfileImageURL,
		&p.TemplateID,
		&socials,
		&p.Embed,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Username = username.String
	if socials != "" {
		if err := json.Unmarshal([]byte(socials), &p.Socials); err != nil {
			return nil, fmt.Errorf("decoding socials: %w", err)
		}
	}
	return &p, nil
}

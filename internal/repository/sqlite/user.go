package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/linkspark/internal/apperror"
	"github.com/sakif/linkspark/internal/model"
	"github.com/sakif/linkspark/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, email, password_hash, github_id, github_login, created_at, updated_at`

// CreateWithProfile registers a new account and its profile in one
// transaction.
//
// The UNIQUE indexes on users.email and profiles.username decide conflicts;
// on either, nothing is written, so a rejected username never leaves an
// account without a profile behind.
func (db *DB) CreateWithProfile(ctx context.Context, user *model.User, profile *model.Profile) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning registration: %w", err)
	}
	defer rollback(tx)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		nullString(user.Email),
		user.PasswordHash,
		nullInt64(user.GitHubID),
		user.GitHubLogin,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if column, ok := uniqueViolation(err); ok {
			return conflictFor(column)
		}
		return fmt.Errorf("sqlite: inserting user: %w", err)
	}

	profile.UserID = user.ID
	if err := insertProfile(ctx, tx, profile); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing registration: %w", err)
	}
	return nil
}

// UpsertGitHub inserts or refreshes the account linked to a GitHub identity.
// The caller's struct is filled with the stored ID and timestamps.
func (db *DB) UpsertGitHub(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()

	var existingID string
	err := db.conn.QueryRowContext(ctx,
		`SELECT id FROM users WHERE github_id = ?`, user.GitHubID,
	).Scan(&existingID)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("sqlite: looking up user by github_id %d: %w", user.GitHubID, err)
	}

	if existingID != "" {
		user.ID = existingID
		user.UpdatedAt = now
		_, err = db.conn.ExecContext(ctx,
			`UPDATE users SET github_login = ?, updated_at = ? WHERE id = ?`,
			user.GitHubLogin, user.UpdatedAt, user.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
		}
		stored, err := db.GetUserByID(ctx, user.ID)
		if err != nil {
			return err
		}
		*user = *stored
		return nil
	}

	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		nullString(user.Email),
		user.PasswordHash,
		nullInt64(user.GitHubID),
		user.GitHubLogin,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if column, ok := uniqueViolation(err); ok {
			return conflictFor(column)
		}
		return fmt.Errorf("sqlite: inserting user (githubID=%d): %w", user.GitHubID, err)
	}
	return nil
}

// GetUserByID retrieves a user by internal ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("user", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByEmail retrieves a user by (already normalised) email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("user", email)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var (
		u        model.User
		email    sql.NullString
		githubID sql.NullInt64
	)
	if err := row.Scan(
		&u.ID,
		&email,
		&u.PasswordHash,
		&githubID,
		&u.GitHubLogin,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.Email = email.String
	u.GitHubID = githubID.Int64
	return &u, nil
}

// conflictFor turns a "table.column" UNIQUE failure into the AppError the
// registration form shows next to that field.
func conflictFor(column string) error {
	switch column {
	case "users.email":
		return apperror.Taken("email", "This email is already registered.").WithCode("auth/email-already-in-use")
	case "profiles.username":
		return apperror.Taken("username", "This username is already taken. Choose something unique.").WithCode("username-taken")
	case "users.github_id":
		return apperror.Taken("github", "This GitHub account is already linked.")
	default:
		return apperror.Conflict(column, "")
	}
}

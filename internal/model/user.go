// Package model defines the data structures used throughout the application.
package model

import "time"

// User is an account that can sign in. It owns exactly one Profile.
//
// An account is created either with email/password or through GitHub
// sign-in, so both Email and GitHubID are optional. The database keeps a
// UNIQUE constraint on each; NULLs never collide.
type User struct {
	ID           string    `json:"id"           db:"id"`
	Email        string    `json:"email"        db:"email"`         // empty for GitHub-only accounts
	PasswordHash string    `json:"-"            db:"password_hash"` // bcrypt hash, never serialised
	GitHubID     int64     `json:"githubId"     db:"github_id"`     // 0 when not linked
	GitHubLogin  string    `json:"githubLogin"  db:"github_login"`
	CreatedAt    time.Time `json:"createdAt"    db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt"    db:"updated_at"`
}

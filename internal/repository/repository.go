// Package repository declares the storage boundary. The service layer only
// sees these interfaces; internal/repository/sqlite is the shipped adapter.
package repository

import (
	"context"

	"github.com/sakif/linkspark/internal/model"
)

// UserRepository stores accounts.
type UserRepository interface {
	// CreateWithProfile inserts the user and its profile atomically. A taken
	// email or username rolls back both writes.
	CreateWithProfile(ctx context.Context, user *model.User, profile *model.Profile) error
	// UpsertGitHub creates or refreshes the account linked to user.GitHubID.
	UpsertGitHub(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// ProfileRepository stores one profile per user.
type ProfileRepository interface {
	CreateProfile(ctx context.Context, profile *model.Profile) error
	// EnsureProfile inserts profile unless one exists for profile.UserID and
	// returns the stored row either way.
	EnsureProfile(ctx context.Context, profile *model.Profile) (*model.Profile, error)
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	GetProfileByUsername(ctx context.Context, username string) (*model.Profile, error)
	UpdateProfile(ctx context.Context, userID string, update model.ProfileUpdate) (*model.Profile, error)
	// UsernameTaken reports whether a profile other than excludingUserID
	// holds username.
	UsernameTaken(ctx context.Context, username, excludingUserID string) (bool, error)
}

// LinkRepository stores the ordered link collection of each profile.
type LinkRepository interface {
	// AddLink appends link after the owner's current last link and fills in
	// ID, Order and timestamps.
	AddLink(ctx context.Context, link *model.Link) error
	GetLink(ctx context.Context, userID, id string) (*model.Link, error)
	ListLinks(ctx context.Context, userID string, activeOnly bool) ([]model.Link, error)
	UpdateLink(ctx context.Context, link *model.Link) error
	SetLinkActive(ctx context.Context, userID, id string, active bool) error
	DeleteLink(ctx context.Context, userID, id string) error
	// ReorderLinks assigns orders 0..n-1 following ids, which must be exactly
	// the owner's link ids.
	ReorderLinks(ctx context.Context, userID string, ids []string) error
	// IncrementClicks bumps the counter and returns the link (for its owner
	// and target URL).
	IncrementClicks(ctx context.Context, id string) (*model.Link, error)
	CountLinks(ctx context.Context, userID string) (int, error)
}

// PlayerTokenRepository persists streaming-provider tokens per user.
type PlayerTokenRepository interface {
	SaveToken(ctx context.Context, token *model.PlayerToken) error
	GetToken(ctx context.Context, userID string) (*model.PlayerToken, error)
	DeleteToken(ctx context.Context, userID string) error
}

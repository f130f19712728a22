package model

import "time"

// PlayerToken is a streaming-provider access token stored for one user.
type PlayerToken struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	ExpiresAt    time.Time
	UpdatedAt    time.Time
}

// Valid reports whether the token can still be used at the given time.
func (t *PlayerToken) Valid(now time.Time) bool {
	return t != nil && t.AccessToken != "" && now.Before(t.ExpiresAt)
}

// PlayerState is the server-visible part of the player lifecycle.
// Device readiness and play/pause live in the browser SDK.
type PlayerState string

const (
	PlayerUnauthenticated PlayerState = "unauthenticated"
	PlayerAuthenticated   PlayerState = "authenticated"
)

// Track is the subset of a provider track the player UI renders.
type Track struct {
	ID         string `json:"id"`
	URI        string `json:"uri"`
	Name       string `json:"name"`
	Artists    string `json:"artists"`
	Album      string `json:"album"`
	ImageURL   string `json:"image,omitempty"`
	PreviewURL string `json:"previewUrl,omitempty"`
	DurationMS int    `json:"durationMs"`
}

// PlayMode says how a play request was satisfied.
type PlayMode string

const (
	PlayModeDevice  PlayMode = "device"
	PlayModePreview PlayMode = "preview"
)

// PlayResult is returned by a play request.
type PlayResult struct {
	Mode       PlayMode `json:"mode"`
	PreviewURL string   `json:"previewUrl,omitempty"`
}

// Package service contains the business rules of LinkSpark.
//
//	Handler (HTTP)  → parses requests, writes responses
//	Service         → validates, enforces rules, orchestrates
//	Repository      → reads/writes storage
//
// Services accept repository interfaces, never *sqlite.DB, so tests run
// against the in-memory fakes in fakes_test.go and the CLI can reuse the
// same rules the HTTP server applies. Services return apperror values; only
// the handler package knows about status codes.
package service

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sakif/linkspark/internal/apperror"
	"github.com/sakif/linkspark/internal/model"
	"github.com/sakif/linkspark/internal/theme"
)

// Profile defaults applied at registration and by the self-heal path.
const (
	DefaultBio       = "👋 Hello! Check out my links."
	DefaultAvatarURL = "https://via.placeholder.com/150/000000/FFFFFF?text=SPARK"
)

// Field limits.
const (
	MinUsernameLength   = 3
	MaxUsernameLength   = 15
	MaxDisplayNameRunes = 50
	MaxBioRunes         = 160
	MaxSocialHandleLen  = 100
	MaxURLLength        = 2048
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,15}$`)

// NormalizeUsername trims and lowercases a username as typed.
func NormalizeUsername(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ValidateUsername checks an already normalised username.
func ValidateUsername(username string) error {
	if username == "" {
		return apperror.ValidationFailed("username", "Username is required.")
	}
	if !usernamePattern.MatchString(username) {
		return apperror.ValidationFailed("username",
			fmt.Sprintf("Username must be %d-%d characters: lowercase letters, numbers and underscores.",
				MinUsernameLength, MaxUsernameLength))
	}
	return nil
}

// DisplayNameFor capitalises the first letter of username.
func DisplayNameFor(username string) string {
	r, size := utf8.DecodeRuneInString(username)
	if r == utf8.RuneError {
		return username
	}
	return string(unicode.ToUpper(r)) + username[size:]
}

// DefaultProfile is the profile a new account starts with. username may be
// empty for accounts that have not picked one yet.
func DefaultProfile(userID, username string) *model.Profile {
	return &model.Profile{
		UserID:          userID,
		Username:        username,
		DisplayName:     DisplayNameFor(username),
		Bio:             DefaultBio,
		ProfileImageURL: DefaultAvatarURL,
		TemplateID:      theme.DefaultID,
	}
}

// validateHTTPURL accepts absolute http(s) URLs only.
func validateHTTPURL(field, raw string) error {
	if len(raw) > MaxURLLength {
		return apperror.ValidationFailed(field, fmt.Sprintf("URL must be %d characters or less.", MaxURLLength))
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperror.ValidationFailed(field, "Enter a full URL starting with http:// or https://.")
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/linkspark/internal/apperror"
	"github.com/sakif/linkspark/internal/model"
	"github.com/sakif/linkspark/internal/repository"
	"github.com/sakif/linkspark/internal/theme"
)

// PublicState is the outcome of resolving a public profile.
type PublicState string

const (
	PublicNotFound PublicState = "not_found"
	PublicNoLinks  PublicState = "no_links"
	PublicOK       PublicState = "ok"
)

// PublicPage is everything a public profile page renders.
type PublicPage struct {
	State    PublicState    `json:"state"`
	Username string         `json:"username"`
	Profile  *model.Profile `json:"profile,omitempty"`
	Links    []model.Link   `json:"links"`
	Theme    theme.Theme    `json:"theme"`
}

// PublicService resolves usernames for visitors. Nothing is cached; every
// call re-reads storage.
type PublicService struct {
	profiles repository.ProfileRepository
	links    repository.LinkRepository
	logger   *slog.Logger
}

func NewPublicService(profiles repository.ProfileRepository, links repository.LinkRepository, logger *slog.Logger) *PublicService {
	return &PublicService{profiles: profiles, links: links, logger: logger}
}

// Resolve looks up username and its active links. An unknown username is
// not an error: it resolves to PublicNotFound so the page can say so.
func (s *PublicService) Resolve(ctx context.Context, username string) (*PublicPage, error) {
	username = NormalizeUsername(username)
	if username == "" {
		return nil, apperror.ValidationFailed("username", "No username found. Use the format: ?username=YOUR_USERNAME")
	}

	page := &PublicPage{
		State:    PublicNotFound,
		Username: username,
		Links:    []model.Link{},
		Theme:    theme.Lookup(theme.DefaultID),
	}
	if ValidateUsername(username) != nil {
		return page, nil
	}

	profile, err := s.profiles.GetProfileByUsername(ctx, username)
	if errors.Is(err, apperror.ErrNotFound) {
		return page, nil
	}
	if err != nil {
		return nil, fmt.Errorf("service/public: resolving @%s: %w", username, err)
	}

	links, err := s.links.ListLinks(ctx, profile.UserID, true)
	if err != nil {
		return nil, fmt.Errorf("service/public: listing links of @%s: %w", username, err)
	}

	page.Profile = profile
	page.Links = links
	page.Theme = theme.Lookup(profile.TemplateID)
	page.State = PublicOK
	if len(links) == 0 {
		page.State = PublicNoLinks
	}
	return page, nil
}

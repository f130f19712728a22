package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/linkspark/internal/apperror"
	"github.com/sakif/linkspark/internal/live"
	"github.com/sakif/linkspark/internal/model"
	"github.com/sakif/linkspark/internal/repository"
)

const (
	MaxLinks       = 100
	MaxTitleLength = 100
)

// Publisher receives the owner's full link list after every change.
// *live.Hub implements it.
type Publisher interface {
	Publish(owner string, links []model.Link) live.Snapshot
}

// LinkService manages the ordered link collection of a profile.
type LinkService struct {
	links     repository.LinkRepository
	publisher Publisher
	logger    *slog.Logger
}

// NewLinkService wires a LinkService. publisher may be nil when nobody
// listens (the CLI).
func NewLinkService(links repository.LinkRepository, publisher Publisher, logger *slog.Logger) *LinkService {
	return &LinkService{links: links, publisher: publisher, logger: logger}
}

// LinkUpdate is an inline edit; nil fields are kept.
type LinkUpdate struct {
	Title *string `json:"title,omitempty"`
	URL   *string `json:"url,omitempty"`
}

// Add appends an active link after all existing ones.
func (s *LinkService) Add(ctx context.Context, owner, title, rawURL string) (*model.Link, error) {
	title, rawURL, err := validateLink(title, rawURL)
	if err != nil {
		return nil, err
	}

	n, err := s.links.CountLinks(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("service/link: counting links: %w", err)
	}
	if n >= MaxLinks {
		return nil, apperror.ValidationFailed("links", fmt.Sprintf("A profile can have at most %d links.", MaxLinks))
	}

	link := &model.Link{UserID: owner, Title: title, URL: rawURL, Active: true}
	if err := s.links.AddLink(ctx, link); err != nil {
		return nil, fmt.Errorf("service/link: adding link: %w", err)
	}

	s.logger.Info("link added",
		slog.String("userID", owner),
		slog.String("linkID", link.ID),
		slog.Int("order", link.Order),
	)
	s.publish(ctx, owner)
	return link, nil
}

// List returns every link of owner, active or not, in display order.
func (s *LinkService) List(ctx context.Context, owner string) ([]model.Link, error) {
	links, err := s.links.ListLinks(ctx, owner, false)
	if err != nil {
		return nil, fmt.Errorf("service/link: listing links: %w", err)
	}
	return links, nil
}

// Toggle shows or hides a link on the public page.
func (s *LinkService) Toggle(ctx context.Context, owner, id string, active bool) (*model.Link, error) {
	if err := s.links.SetLinkActive(ctx, owner, id, active); err != nil {
		return nil, fmt.Errorf("service/link: toggling link %s: %w", id, err)
	}
	link, err := s.links.GetLink(ctx, owner, id)
	if err != nil {
		return nil, fmt.Errorf("service/link: reloading link %s: %w", id, err)
	}
	s.publish(ctx, owner)
	return link, nil
}

// Update edits a link's title and/or URL in place.
func (s *LinkService) Update(ctx context.Context, owner, id string, upd LinkUpdate) (*model.Link, error) {
	link, err := s.links.GetLink(ctx, owner, id)
	if err != nil {
		return nil, fmt.Errorf("service/link: fetching link %s: %w", id, err)
	}
	if upd.Title == nil && upd.URL == nil {
		return link, nil
	}

	title, rawURL := link.Title, link.URL
	if upd.Title != nil {
		title = *upd.Title
	}
	if upd.URL != nil {
		rawURL = *upd.URL
	}
	link.Title, link.URL, err = validateLink(title, rawURL)
	if err != nil {
		return nil, err
	}

	if err := s.links.UpdateLink(ctx, link); err != nil {
		return nil, fmt.Errorf("service/link: updating link %s: %w", id, err)
	}
	s.publish(ctx, owner)
	return link, nil
}

// Delete removes a link for good.
func (s *LinkService) Delete(ctx context.Context, owner, id string) error {
	if err := s.links.DeleteLink(ctx, owner, id); err != nil {
		return fmt.Errorf("service/link: deleting link %s: %w", id, err)
	}
	s.logger.Info("link deleted", slog.String("userID", owner), slog.String("linkID", id))
	s.publish(ctx, owner)
	return nil
}

// Reorder puts the owner's links in the order of ids and returns the new
// list.
func (s *LinkService) Reorder(ctx context.Context, owner string, ids []string) ([]model.Link, error) {
	if len(ids) == 0 {
		return nil, apperror.ValidationFailed("ids", "ids must not be empty")
	}
	if err := s.links.ReorderLinks(ctx, owner, ids); err != nil {
		return nil, fmt.Errorf("service/link: reordering: %w", err)
	}
	links := s.publish(ctx, owner)
	if links == nil {
		return s.List(ctx, owner)
	}
	return links, nil
}

// RecordClick counts a public click-through and returns the link so the
// caller can redirect to its URL.
func (s *LinkService) RecordClick(ctx context.Context, id string) (*model.Link, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "link id is required")
	}
	link, err := s.links.IncrementClicks(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/link: recording click on %s: %w", id, err)
	}
	return link, nil
}

// Stats computes the dashboard KPIs.
func (s *LinkService) Stats(ctx context.Context, owner string) (model.LinkStats, error) {
	links, err := s.List(ctx, owner)
	if err != nil {
		return model.LinkStats{}, err
	}
	return model.StatsOf(links), nil
}

// publish pushes the owner's current list to live subscribers. A failed
// read only costs subscribers one update, so it is logged and swallowed.
func (s *LinkService) publish(ctx context.Context, owner string) []model.Link {
	if s.publisher == nil {
		return nil
	}
	links, err := s.links.ListLinks(ctx, owner, false)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Error("failed to publish link snapshot",
				slog.String("userID", owner),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}
	snap := s.publisher.Publish(owner, links)
	s.logger.Debug("link snapshot published",
		slog.String("userID", owner),
		slog.Uint64("version", snap.Version),
	)
	return links
}

func validateLink(title, rawURL string) (string, string, error) {
	title = strings.TrimSpace(title)
	rawURL = strings.TrimSpace(rawURL)
	if title == "" || rawURL == "" {
		return "", "", apperror.ValidationFailed("link", "Please enter a title and URL.")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", "", apperror.ValidationFailed("title",
			fmt.Sprintf("Title must be %d characters or less.", MaxTitleLength))
	}
	if err := validateHTTPURL("url", rawURL); err != nil {
		return "", "", err
	}
	return title, rawURL, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/linkspark/internal/apperror"
	"github.com/sakif/linkspark/internal/model"
	"github.com/sakif/linkspark/internal/repository"
	"github.com/sakif/linkspark/internal/theme"
)

// ProfileService reads and edits the signed-in user's profile.
type ProfileService struct {
	profiles repository.ProfileRepository
	logger   *slog.Logger
}

func NewProfileService(profiles repository.ProfileRepository, logger *slog.Logger) *ProfileService {
	return &ProfileService{profiles: profiles, logger: logger}
}

// Create writes a brand new profile for owner with the registration
// defaults. A second profile for the same owner is a conflict.
func (s *ProfileService) Create(ctx context.Context, owner, username string) (*model.Profile, error) {
	username = NormalizeUsername(username)
	if username != "" {
		if err := ValidateUsername(username); err != nil {
			return nil, err
		}
	}
	profile := DefaultProfile(owner, username)
	if err := s.profiles.CreateProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("service/profile: creating profile for %s: %w", owner, err)
	}
	return profile, nil
}

// Get returns the owner's profile. An account whose profile went missing
// gets a fresh default one instead of a not-found error.
func (s *ProfileService) Get(ctx context.Context, owner string) (*model.Profile, error) {
	profile, err := s.profiles.GetProfile(ctx, owner)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/profile: fetching profile %s: %w", owner, err)
	}

	profile, err = s.profiles.EnsureProfile(ctx, DefaultProfile(owner, ""))
	if err != nil {
		return nil, fmt.Errorf("service/profile: healing profile %s: %w", owner, err)
	}
	s.logger.Warn("profile was missing, created default", slog.String("userID", owner))
	return profile, nil
}

// Update validates and merge-writes the non-nil fields of upd.
func (s *ProfileService) Update(ctx context.Context, owner string, upd model.ProfileUpdate) (*model.Profile, error) {
	if upd.Empty() {
		return s.Get(ctx, owner)
	}
	if err := s.normalize(&upd); err != nil {
		return nil, err
	}

	if upd.Username != nil && *upd.Username != "" {
		taken, err := s.profiles.UsernameTaken(ctx, *upd.Username, owner)
		if err != nil {
			return nil, fmt.Errorf("service/profile: checking username: %w", err)
		}
		if taken {
			return nil, usernameTaken()
		}
	}

	// Heal first so an update never fails just because the row is missing.
	if _, err := s.Get(ctx, owner); err != nil {
		return nil, err
	}

	profile, err := s.profiles.UpdateProfile(ctx, owner, upd)
	if err != nil {
		return nil, fmt.Errorf("service/profile: updating profile %s: %w", owner, err)
	}

	s.logger.Info("profile updated",
		slog.String("userID", owner),
		slog.String("username", profile.Username),
	)
	return profile, nil
}

// UsernameAvailable answers the editor's "is this name free?" question.
// The answer is advisory: the unique index decides at write time.
func (s *ProfileService) UsernameAvailable(ctx context.Context, candidate, excludingOwner string) (bool, error) {
	username := NormalizeUsername(candidate)
	if err := ValidateUsername(username); err != nil {
		return false, err
	}
	taken, err := s.profiles.UsernameTaken(ctx, username, excludingOwner)
	if err != nil {
		return false, fmt.Errorf("service/profile: checking username: %w", err)
	}
	return !taken, nil
}

// normalize trims every present field in place and validates it.
func (s *ProfileService) normalize(upd *model.ProfileUpdate) error {
	if upd.Username != nil {
		username := NormalizeUsername(*upd.Username)
		if err := ValidateUsername(username); err != nil {
			return err
		}
		upd.Username = &username
	}
	if upd.DisplayName != nil {
		name := strings.TrimSpace(*upd.DisplayName)
		if utf8.RuneCountInString(name) > MaxDisplayNameRunes {
			return apperror.ValidationFailed("displayName",
				fmt.Sprintf("Display name must be %d characters or less.", MaxDisplayNameRunes))
		}
		upd.DisplayName = &name
	}
	if upd.Bio != nil {
		bio := strings.TrimSpace(*upd.Bio)
		if utf8.RuneCountInString(bio) > MaxBioRunes {
			return apperror.ValidationFailed("bio", fmt.Sprintf("Bio must be %d characters or less.", MaxBioRunes))
		}
		upd.Bio = &bio
	}
	if upd.ProfileImageURL != nil {
		img := strings.TrimSpace(*upd.ProfileImageURL)
		if img != "" {
			if err := validateHTTPURL("profileImageUrl", img); err != nil {
				return err
			}
		}
		upd.ProfileImageURL = &img
	}
	if upd.TemplateID != nil {
		id := strings.TrimSpace(*upd.TemplateID)
		if !theme.Valid(id) {
			return apperror.ValidationFailed("templateId", fmt.Sprintf("Unknown template %q.", id))
		}
		upd.TemplateID = &id
	}
	if upd.Socials != nil {
		socials, err := normalizeSocials(*upd.Socials)
		if err != nil {
			return err
		}
		upd.Socials = &socials
	}
	if upd.Embed != nil {
		embed := strings.TrimSpace(*upd.Embed)
		if embed != "" {
			if err := validateHTTPURL("embed", embed); err != nil {
				return err
			}
		}
		upd.Embed = &embed
	}
	return nil
}

func normalizeSocials(in model.Socials) (model.Socials, error) {
	out := model.Socials{}
	fields := []struct {
		name string
		in   string
		out  *string
	}{
		{"instagram", in.Instagram, &out.Instagram},
		{"twitter", in.Twitter, &out.Twitter},
		{"youtube", in.YouTube, &out.YouTube},
		{"tiktok", in.TikTok, &out.TikTok},
		{"linkedin", in.LinkedIn, &out.LinkedIn},
	}
	for _, f := range fields {
		v := strings.TrimSpace(f.in)
		if len(v) > MaxSocialHandleLen {
			return out, apperror.ValidationFailed("socials."+f.name,
				fmt.Sprintf("Handle must be %d characters or less.", MaxSocialHandleLen))
		}
		if !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
			v = strings.TrimPrefix(v, "@")
			if strings.ContainsAny(v, " /?#") {
				return out, apperror.ValidationFailed("socials."+f.name, "Enter a handle or a full profile URL.")
			}
		}
		*f.out = v
	}
	return out, nil
}

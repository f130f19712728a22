package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rs/xid"
	"golang.org/x/oauth2"

	"github.com/sakif/linkspark/internal/apperror"
	"github.com/sakif/linkspark/internal/model"
	"github.com/sakif/linkspark/internal/repository"
	"github.com/sakif/linkspark/internal/spotify"
)

// expiryLeeway treats a token that expires within this window as expired,
// so the SDK never receives one that dies mid-request.
const expiryLeeway = 30 * time.Second

const msgNoPreview = "No preview available for this track."

// MusicProvider is the streaming service behind the player.
// *spotify.Client implements it.
type MusicProvider interface {
	Configured() bool
	AuthURL(state, verifier string) string
	Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	Search(ctx context.Context, accessToken, query string) ([]model.Track, error)
	Play(ctx context.Context, accessToken, deviceID, uri string) error
}

// PlayerService runs the server side of the music player: the PKCE login,
// token storage and refresh, and the search/play proxies.
type PlayerService struct {
	tokens   repository.PlayerTokenRepository
	provider MusicProvider
	now      func() time.Time
	logger   *slog.Logger
}

func NewPlayerService(tokens repository.PlayerTokenRepository, provider MusicProvider, logger *slog.Logger) *PlayerService {
	return &PlayerService{
		tokens:   tokens,
		provider: provider,
		now:      time.Now,
		logger:   logger,
	}
}

// LoginRequest is a started PKCE login. State and Verifier must be kept by
// the caller until the callback.
type LoginRequest struct {
	State    string
	Verifier string
	URL      string
}

// PlayRequest asks to play one track.
type PlayRequest struct {
	DeviceID   string `json:"deviceId"`
	URI        string `json:"uri"`
	PreviewURL string `json:"previewUrl"`
}

// Enabled reports whether a provider app is configured.
func (s *PlayerService) Enabled() bool {
	return s.provider != nil && s.provider.Configured()
}

// BeginLogin creates a state value and a PKCE verifier and returns the
// provider's consent URL carrying the S256 challenge.
func (s *PlayerService) BeginLogin() (*LoginRequest, error) {
	if !s.Enabled() {
		return nil, errPlayerDisabled()
	}
	req := &LoginRequest{
		State:    xid.New().String(),
		Verifier: oauth2.GenerateVerifier(),
	}
	req.URL = s.provider.AuthURL(req.State, req.Verifier)
	return req, nil
}

// CompleteLogin checks the returned state, exchanges the code and stores
// the token for owner.
func (s *PlayerService) CompleteLogin(ctx context.Context, owner, wantState, gotState, code, verifier string) error {
	if !s.Enabled() {
		return errPlayerDisabled()
	}
	if wantState == "" || gotState != wantState {
		return apperror.ValidationFailed("state", "Login expired or was tampered with. Please try again.")
	}
	if code == "" || verifier == "" {
		return apperror.ValidationFailed("code", "Missing authorization code.")
	}

	tok, err := s.provider.Exchange(ctx, code, verifier)
	if err != nil {
		return fmt.Errorf("service/player: exchanging code: %w", err)
	}
	if err := s.save(ctx, owner, tok); err != nil {
		return err
	}

	s.logger.Info("music player connected", slog.String("userID", owner))
	return nil
}

// Status reports whether owner has a usable token, refreshing it if needed.
func (s *PlayerService) Status(ctx context.Context, owner string) (model.PlayerState, error) {
	_, err := s.AccessToken(ctx, owner)
	if errors.Is(err, apperror.ErrUnauthorized) {
		return model.PlayerUnauthenticated, nil
	}
	if err != nil {
		return "", err
	}
	return model.PlayerAuthenticated, nil
}

// AccessToken returns a live token for owner. A token close to expiry is
// refreshed and re-stored; without one the caller must log in again.
func (s *PlayerService) AccessToken(ctx context.Context, owner string) (*model.PlayerToken, error) {
	stored, err := s.tokens.GetToken(ctx, owner)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, errNotConnected()
	}
	if err != nil {
		return nil, fmt.Errorf("service/player: loading token: %w", err)
	}
	if stored.Valid(s.now().Add(expiryLeeway)) {
		return stored, nil
	}
	if stored.RefreshToken == "" || !s.Enabled() {
		return nil, errNotConnected()
	}

	tok, err := s.provider.Refresh(ctx, stored.RefreshToken)
	if err != nil {
		s.logger.Warn("music token refresh failed",
			slog.String("userID", owner),
			slog.String("error", err.Error()),
		)
		if delErr := s.tokens.DeleteToken(ctx, owner); delErr != nil {
			s.logger.Error("failed to forget music token", slog.String("error", delErr.Error()))
		}
		return nil, errNotConnected()
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = stored.RefreshToken
	}
	if err := s.save(ctx, owner, tok); err != nil {
		return nil, err
	}
	return s.tokens.GetToken(ctx, owner)
}

// Search proxies a track search.
func (s *PlayerService) Search(ctx context.Context, owner, query string) ([]model.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperror.ValidationFailed("q", "Enter something to search for.")
	}
	tok, err := s.AccessToken(ctx, owner)
	if err != nil {
		return nil, err
	}
	tracks, err := s.provider.Search(ctx, tok.AccessToken, query)
	if errors.Is(err, spotify.ErrTokenRejected) {
		return nil, errNotConnected()
	}
	if err != nil {
		return nil, fmt.Errorf("service/player: searching: %w", err)
	}
	return tracks, nil
}

// Play starts a track on the browser's playback device. Without a device,
// or when the account cannot stream (403), it falls back to the track's
// 30-second preview.
func (s *PlayerService) Play(ctx context.Context, owner string, req PlayRequest) (*model.PlayResult, error) {
	if req.DeviceID == "" {
		return preview(req.PreviewURL)
	}
	if req.URI == "" {
		return nil, apperror.ValidationFailed("uri", "uri is required")
	}

	tok, err := s.AccessToken(ctx, owner)
	if err != nil {
		return nil, err
	}

	err = s.provider.Play(ctx, tok.AccessToken, req.DeviceID, req.URI)
	switch {
	case err == nil:
		return &model.PlayResult{Mode: model.PlayModeDevice}, nil
	case errors.Is(err, spotify.ErrPremiumRequired):
		s.logger.Info("device playback refused, falling back to preview", slog.String("userID", owner))
		return preview(req.PreviewURL)
	case errors.Is(err, spotify.ErrTokenRejected):
		return nil, errNotConnected()
	default:
		return nil, fmt.Errorf("service/player: starting playback: %w", err)
	}
}

// Logout forgets the owner's stored token.
func (s *PlayerService) Logout(ctx context.Context, owner string) error {
	if err := s.tokens.DeleteToken(ctx, owner); err != nil {
		return fmt.Errorf("service/player: logging out: %w", err)
	}
	return nil
}

func (s *PlayerService) save(ctx context.Context, owner string, tok *oauth2.Token) error {
	scope, _ := tok.Extra("scope").(string)
	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = s.now().Add(time.Hour)
	}
	err := s.tokens.SaveToken(ctx, &model.PlayerToken{
		UserID:       owner,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.Type(),
		Scope:        scope,
		ExpiresAt:    expiry,
	})
	if err != nil {
		return fmt.Errorf("service/player: saving token: %w", err)
	}
	return nil
}

func preview(url string) (*model.PlayResult, error) {
	if url == "" {
		return nil, apperror.ValidationFailed("previewUrl", msgNoPreview)
	}
	return &model.PlayResult{Mode: model.PlayModePreview, PreviewURL: url}, nil
}

func errNotConnected() error {
	return apperror.Unauthorized("Connect your Spotify account first.").WithCode("player/not-connected")
}

func errPlayerDisabled() error {
	return apperror.Forbidden("The music player is not configured on this server.")
}

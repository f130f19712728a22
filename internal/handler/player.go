package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/linkspark/internal/auth"
	"github.com/sakif/linkspark/internal/model"
	"github.com/sakif/linkspark/internal/service"
)

const (
	playerStateCookie    = "player_state"
	playerVerifierCookie = "player_verifier"
	playerCookiePath     = "/player"
)

var playerErrors = map[string]string{
	"denied":       "Spotify access was not granted.",
	"login-failed": "Could not connect to Spotify. Please try again.",
}

// PlayerHandler serves the music player page, the PKCE login round trip
// and the JSON proxies the player script calls.
type PlayerHandler struct {
	player        *service.PlayerService
	pages         *Renderer
	secureCookies bool
	logger        *slog.Logger
}

func NewPlayerHandler(player *service.PlayerService, pages *Renderer, secureCookies bool, logger *slog.Logger) *PlayerHandler {
	return &PlayerHandler{
		player:        player,
		pages:         pages,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

type playerPage struct {
	layout
	Enabled bool
	State   model.PlayerState
	Error   string
}

// HandlePage renders the player. Whether it shows the connect button or
// the search box depends on the stored token.
//
// HTTP: GET /player
func (h *PlayerHandler) HandlePage(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	data := playerPage{
		layout:  layout{Title: "Zinc Music"},
		Enabled: h.player.Enabled(),
		State:   model.PlayerUnauthenticated,
		Error:   playerErrors[r.URL.Query().Get("error")],
	}
	if data.Enabled {
		state, err := h.player.Status(r.Context(), userID)
		if err != nil {
			h.logger.Error("player: status failed", slog.String("userID", userID), slog.String("error", err.Error()))
			data.Error = playerErrors["login-failed"]
		} else {
			data.State = state
		}
	}
	h.pages.Render(w, http.StatusOK, pagePlayer, data)
}

// HandleLogin starts the PKCE flow. State and verifier travel in
// short-lived HttpOnly cookies scoped to /player, so only the callback
// ever sees them.
//
// HTTP: GET /player/login
func (h *PlayerHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	req, err := h.player.BeginLogin()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.setCookie(w, playerStateCookie, req.State, 600)
	h.setCookie(w, playerVerifierCookie, req.Verifier, 600)
	http.Redirect(w, r, req.URL, http.StatusSeeOther)
}

// HandleCallback finishes the PKCE flow: the code and the kept verifier are
// exchanged server-side and the token is stored for the signed-in user.
//
// HTTP: GET /player/callback?code=xxx&state=yyy
func (h *PlayerHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var wantState, verifier string
	if c, err := r.Cookie(playerStateCookie); err == nil {
		wantState = c.Value
	}
	if c, err := r.Cookie(playerVerifierCookie); err == nil {
		verifier = c.Value
	}
	h.setCookie(w, playerStateCookie, "", -1)
	h.setCookie(w, playerVerifierCookie, "", -1)

	q := r.URL.Query()
	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("player callback: authorization denied", slog.String("error", errParam))
		http.Redirect(w, r, "/player?error=denied", http.StatusSeeOther)
		return
	}

	if err := h.player.CompleteLogin(r.Context(), userID, wantState, q.Get("state"), q.Get("code"), verifier); err != nil {
		h.logger.Warn("player callback: login failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		http.Redirect(w, r, "/player?error=login-failed", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/player", http.StatusSeeOther)
}

// HandleLogoutPage forgets the token and goes back to the player page.
//
// HTTP: POST /player/logout
func (h *PlayerHandler) HandleLogoutPage(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	if err := h.player.Logout(r.Context(), userID); err != nil {
		h.logger.Error("player: logout failed", slog.String("error", err.Error()))
	}
	http.Redirect(w, r, "/player", http.StatusSeeOther)
}

// =========================================================================
// JSON API
// =========================================================================

// HandleStatus reports whether the user has a usable token.
//
// HTTP: GET /api/player/status
func (h *PlayerHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	state, err := h.player.Status(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled": h.player.Enabled(),
		"state":   state,
	})
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresAt   int64  `json:"expiresAt"`
}

// HandleToken hands a live access token to the Web Playback SDK.
//
// HTTP: GET /api/player/token
func (h *PlayerHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	tok, err := h.player.AccessToken(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: tok.AccessToken, ExpiresAt: tok.ExpiresAt.Unix()})
}

// HandleSearch proxies a track search.
//
// HTTP: GET /api/player/search?q=daft+punk
func (h *PlayerHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	tracks, err := h.player.Search(r.Context(), userID, r.URL.Query().Get("q"))
	if err != nil {
		h.writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}

// HandlePlay starts a track on the browser device or falls back to its
// preview.
//
// HTTP: POST /api/player/play
// REQUEST BODY: {"deviceId": "...", "uri": "spotify:track:...", "previewUrl": "..."}
func (h *PlayerHandler) HandlePlay(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req service.PlayRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.player.Play(r.Context(), userID, req)
	if err != nil {
		h.writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleLogout forgets the stored token.
//
// HTTP: POST /api/player/logout
func (h *PlayerHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.player.Logout(r.Context(), userID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "disconnected"})
}

// writeUpstreamError reports provider failures as 502 rather than 500: the
// server is fine, Spotify is not.
func (h *PlayerHandler) writeUpstreamError(w http.ResponseWriter, err error) {
	if status, _ := statusFor(err); status != http.StatusInternalServerError {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Error("player: upstream call failed", slog.String("error", err.Error()))
	writeJSON(w, http.StatusBadGateway, ErrorResponse{
		Error:   "upstream_error",
		Message: "The music service did not respond. Please try again.",
	})
}

func (h *PlayerHandler) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     playerCookiePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

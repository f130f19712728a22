package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/linkspark/internal/auth"
	"github.com/sakif/linkspark/internal/model"
	"github.com/sakif/linkspark/internal/service"
	"github.com/sakif/linkspark/internal/theme"
)

// DashboardHandler serves the signed-in editor page and the profile API it
// talks to.
type DashboardHandler struct {
	profiles *service.ProfileService
	links    *service.LinkService
	pages    *Renderer
	baseURL  string
	logger   *slog.Logger
}

func NewDashboardHandler(
	profiles *service.ProfileService,
	links *service.LinkService,
	pages *Renderer,
	baseURL string,
	logger *slog.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		profiles: profiles,
		links:    links,
		pages:    pages,
		baseURL:  baseURL,
		logger:   logger,
	}
}

type dashboardPage struct {
	layout
	Profile   *model.Profile
	Links     []model.Link
	Stats     model.LinkStats
	Themes    []theme.Theme
	PublicURL string
}

// HandleDashboard renders the editor with the current profile, links and
// KPIs.
//
// HTTP: GET /dashboard
func (h *DashboardHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	profile, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		h.logger.Error("dashboard: loading profile", slog.String("userID", userID), slog.String("error", err.Error()))
		http.Error(w, "Could not load your dashboard.", http.StatusInternalServerError)
		return
	}
	links, err := h.links.List(r.Context(), userID)
	if err != nil {
		h.logger.Error("dashboard: loading links", slog.String("userID", userID), slog.String("error", err.Error()))
		http.Error(w, "Could not load your dashboard.", http.StatusInternalServerError)
		return
	}

	data := dashboardPage{
		layout:  layout{Title: "Dashboard | LinkSpark"},
		Profile: profile,
		Links:   links,
		Stats:   model.StatsOf(links),
		Themes:  theme.All(),
	}
	if profile.Username != "" {
		data.PublicURL = h.baseURL + "/u/" + profile.Username
	}
	h.pages.Render(w, http.StatusOK, pageDashboard, data)
}

// HandleGetProfile returns the signed-in user's profile.
//
// HTTP: GET /api/profile
// Auth: Required
func (h *DashboardHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	profile, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// HandleUpdateProfile merge-writes the fields present in the body.
//
// HTTP: PATCH /api/profile
// REQUEST BODY: any subset of {"username", "displayName", "bio",
// "profileImageUrl", "templateId", "socials", "embed"}
func (h *DashboardHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var upd model.ProfileUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, h.logger, err)
		return
	}

	profile, err := h.profiles.Update(r.Context(), userID, upd)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// HandleUsernameAvailable answers the editor's live availability check.
//
// HTTP: GET /api/profile/username-available?username=alice
func (h *DashboardHandler) HandleUsernameAvailable(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	username := r.URL.Query().Get("username")

	available, err := h.profiles.UsernameAvailable(r.Context(), username, userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"username":  service.NormalizeUsername(username),
		"available": available,
	})
}

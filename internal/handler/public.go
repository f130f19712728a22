package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/linkspark/internal/apperror"
	"github.com/sakif/linkspark/internal/live"
	"github.com/sakif/linkspark/internal/model"
	"github.com/sakif/linkspark/internal/service"
)

// keepAliveInterval is how often an idle event stream sends a comment line
// so proxies do not close it.
const keepAliveInterval = 25 * time.Second

// LiveFeed is the subscription side of the live link hub.
type LiveFeed interface {
	Subscribe(owner string) *live.Subscription
	Version(owner string) uint64
}

// PublicHandler serves what visitors see: profile pages, the public JSON
// API, the live link stream and click-through redirects.
type PublicHandler struct {
	public *service.PublicService
	links  *service.LinkService
	feed   LiveFeed
	pages  *Renderer
	logger *slog.Logger
}

func NewPublicHandler(
	public *service.PublicService,
	links *service.LinkService,
	feed LiveFeed,
	pages *Renderer,
	logger *slog.Logger,
) *PublicHandler {
	return &PublicHandler{
		public: public,
		links:  links,
		feed:   feed,
		pages:  pages,
		logger: logger,
	}
}

type profilePage struct {
	layout
	Page *service.PublicPage
}

// HandleProfileQuery serves the query-parameter form of a profile URL.
//
// HTTP: GET /profile?username=alice
func (h *PublicHandler) HandleProfileQuery(w http.ResponseWriter, r *http.Request) {
	h.renderProfile(w, r, r.URL.Query().Get("username"))
}

// HandleProfilePath serves the path-segment form of a profile URL.
//
// HTTP: GET /u/{username}
func (h *PublicHandler) HandleProfilePath(w http.ResponseWriter, r *http.Request) {
	h.renderProfile(w, r, chi.URLParam(r, "username"))
}

func (h *PublicHandler) renderProfile(w http.ResponseWriter, r *http.Request, username string) {
	page, err := h.public.Resolve(r.Context(), username)
	if err != nil {
		status, _ := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("public profile: resolve failed",
				slog.String("username", username),
				slog.String("error", err.Error()),
			)
			http.Error(w, "Critical Error: Could not load data.", status)
			return
		}
		message := http.StatusText(status)
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Message != "" {
			message = appErr.Message
		}
		http.Error(w, "URL Error: "+message, status)
		return
	}

	data := profilePage{layout: layout{Title: "Profile not found | LinkShare"}, Page: page}
	status := http.StatusOK
	if page.State == service.PublicNotFound {
		status = http.StatusNotFound
	} else {
		data.Title = page.Profile.DisplayName + " | LinkShare"
		data.Description = page.Profile.Bio
	}
	h.pages.Render(w, status, pageProfile, data)
}

// HandlePublicJSON returns the resolved page as JSON. An unknown username
// is a 404 with the not_found state in the body.
//
// HTTP: GET /api/public/{username}
func (h *PublicHandler) HandlePublicJSON(w http.ResponseWriter, r *http.Request) {
	page, err := h.public.Resolve(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	status := http.StatusOK
	if page.State == service.PublicNotFound {
		status = http.StatusNotFound
	}
	writeJSON(w, status, page)
}

// HandleStream pushes the active links of a profile as Server-Sent Events.
//
// HTTP: GET /api/public/{username}/stream
//
// The first "links" event is the current list; every change afterwards
// sends the full list again with a higher version. A client that sees a
// version lower than the last one applied ignores it.
func (h *PublicHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	page, err := h.public.Resolve(r.Context(), username)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if page.Profile == nil {
		writeError(w, h.logger, apperror.NotFound("profile", page.Username))
		return
	}
	owner := page.Profile.UserID

	// Subscribe, then take the version, then read the links. Any change that
	// lands after the version read arrives as a later, higher snapshot.
	sub := h.feed.Subscribe(owner)
	defer sub.Close()
	version := h.feed.Version(owner)
	links, err := h.links.List(r.Context(), owner)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	initial := live.Snapshot{Version: version, Links: model.ActiveLinks(links)}

	rc := http.NewResponseController(w)
	// The server's WriteTimeout would otherwise cut the stream.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, rc, initial); err != nil {
		return
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, ok := <-sub.C:
			if !ok {
				return
			}
			snap.Links = model.ActiveLinks(snap.Links)
			if err := writeEvent(w, rc, snap); err != nil {
				h.logger.Debug("live stream closed", slog.String("username", username), slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, snap live.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "id: %d\nevent: links\ndata: %s\n\n", snap.Version, data); err != nil {
		return err
	}
	return rc.Flush()
}

// HandleClick counts a click-through and redirects to the link's target.
// Hidden or deleted links are not found.
//
// HTTP: GET /l/{id}
func (h *PublicHandler) HandleClick(w http.ResponseWriter, r *http.Request) {
	link, err := h.links.RecordClick(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		status, _ := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("click: recording failed", slog.String("error", err.Error()))
		}
		http.Error(w, http.StatusText(status), status)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, link.URL, http.StatusFound)
}

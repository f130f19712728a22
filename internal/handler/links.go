package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/linkspark/internal/auth"
	"github.com/sakif/linkspark/internal/service"
)

// LinkHandler is the JSON API behind the dashboard's link editor. Every
// route is scoped to the signed-in owner; another owner's link id is simply
// not found.
type LinkHandler struct {
	links  *service.LinkService
	logger *slog.Logger
}

func NewLinkHandler(links *service.LinkService, logger *slog.Logger) *LinkHandler {
	return &LinkHandler{links: links, logger: logger}
}

// HandleList returns every link of the owner in display order.
//
// HTTP: GET /api/links
func (h *LinkHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	links, err := h.links.List(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, links)
}

type addLinkRequest struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// HandleAdd appends a new active link.
//
// HTTP: POST /api/links
// REQUEST BODY: {"title": "Blog", "url": "https://example.com"}
func (h *LinkHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req addLinkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	link, err := h.links.Add(r.Context(), userID, req.Title, req.URL)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, link)
}

type patchLinkRequest struct {
	Title  *string `json:"title"`
	URL    *string `json:"url"`
	Active *bool   `json:"active"`
}

// HandlePatch edits title/url inline and/or toggles visibility.
//
// HTTP: PATCH /api/links/{id}
// REQUEST BODY: any subset of {"title", "url", "active"}
func (h *LinkHandler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req patchLinkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	link, err := h.links.Update(r.Context(), userID, id, service.LinkUpdate{Title: req.Title, URL: req.URL})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.Active != nil && *req.Active != link.Active {
		link, err = h.links.Toggle(r.Context(), userID, id, *req.Active)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, link)
}

// HandleDelete removes a link.
//
// HTTP: DELETE /api/links/{id}
func (h *LinkHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.links.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reorderRequest struct {
	IDs []string `json:"ids"`
}

// HandleReorder applies a drag-and-drop order.
//
// HTTP: PUT /api/links/order
// REQUEST BODY: {"ids": ["c", "a", "b"]} (every link id exactly once)
func (h *LinkHandler) HandleReorder(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req reorderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	links, err := h.links.Reorder(r.Context(), userID, req.IDs)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, links)
}

// HandleStats returns the dashboard KPIs.
//
// HTTP: GET /api/links/stats
func (h *LinkHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	stats, err := h.links.Stats(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/linkspark/internal/landing"
)

// LandingHandler serves click-to-continue redirect pages. No state is kept
// on the server: every request replays the machine from idle with the
// events its URL implies.
type LandingHandler struct {
	landings *landing.Registry
	pages    *Renderer
	logger   *slog.Logger
}

func NewLandingHandler(landings *landing.Registry, pages *Renderer, logger *slog.Logger) *LandingHandler {
	return &LandingHandler{landings: landings, pages: pages, logger: logger}
}

type landingPage struct {
	layout
	Landing   landing.Landing
	State     landing.State
	Remaining time.Duration
	Error     string
}

// HandleShow renders the idle page with the card to click.
//
// HTTP: GET /go/{name}
func (h *LandingHandler) HandleShow(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}
	h.render(w, http.StatusOK, m, "")
}

// HandleClick fires the click. A zero-delay landing navigates at once;
// otherwise the countdown page refreshes to the target when it elapses.
//
// HTTP: POST /go/{name}
func (h *LandingHandler) HandleClick(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}

	state, err := m.Fire(landing.EventClick)
	if err != nil {
		h.render(w, http.StatusConflict, m, err.Error())
		return
	}

	l := m.Landing()
	h.logger.Info("landing clicked",
		slog.String("landing", l.Name),
		slog.String("state", string(state)),
		slog.Duration("delay", l.Delay),
	)
	if state == landing.StateNavigate {
		http.Redirect(w, r, l.Target, http.StatusSeeOther)
		return
	}
	h.render(w, http.StatusOK, m, "")
}

// HandleCancel stops a countdown and goes back to the idle page.
//
// HTTP: POST /go/{name}/cancel
func (h *LandingHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}

	if _, err := m.Fire(landing.EventClick); err != nil {
		h.render(w, http.StatusConflict, m, err.Error())
		return
	}
	if _, err := m.Fire(landing.EventCancel); err != nil {
		h.render(w, http.StatusConflict, landing.NewMachine(m.Landing()), "This redirect cannot be cancelled.")
		return
	}
	http.Redirect(w, r, "/go/"+m.Landing().Name, http.StatusSeeOther)
}

func (h *LandingHandler) machine(w http.ResponseWriter, r *http.Request) (*landing.Machine, bool) {
	l, ok := h.landings.Get(chi.URLParam(r, "name"))
	if !ok {
		http.NotFound(w, r)
		return nil, false
	}
	return landing.NewMachine(l), true
}

func (h *LandingHandler) render(w http.ResponseWriter, status int, m *landing.Machine, errMsg string) {
	l := m.Landing()
	data := landingPage{
		layout:    layout{Title: l.Title},
		Landing:   l,
		State:     m.State(),
		Remaining: m.Remaining(),
		Error:     errMsg,
	}
	if data.State == landing.StateCountdown {
		secs := int((data.Remaining + time.Second - 1) / time.Second)
		data.Refresh = fmt.Sprintf("%d;url=%s", secs, l.Target)
	}
	h.pages.Render(w, status, pageLanding, data)
}

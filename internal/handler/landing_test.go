package handler_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/linkspark/internal/handler"
	"github.com/sakif/linkspark/internal/landing"
)

const testLandings = `
[[landing]]
name   = "instant"
target = "https://example.com/now"
delay  = "0s"

[[landing]]
name        = "wait"
title       = "Please wait"
target      = "/somewhere"
delay       = "3s"
cancellable = true

[[landing]]
name   = "strict"
target = "/elsewhere"
delay  = "2s"
`

func landingRoutes(t *testing.T, e *env) http.Handler {
	t.Helper()
	registry, err := landing.Parse([]byte(testLandings))
	require.NoError(t, err)

	h := handler.NewLandingHandler(registry, e.pages, e.logger)
	r := newRouter("")
	r.Get("/go/{name}", h.HandleShow)
	r.Post("/go/{name}", h.HandleClick)
	r.Post("/go/{name}/cancel", h.HandleCancel)
	return r
}

func TestLandingHandler_Show(t *testing.T) {
	routes := landingRoutes(t, newEnv(t))

	rr := do(t, routes, http.MethodGet, "/go/wait", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Please wait")
	assert.Contains(t, rr.Body.String(), `id="actionCard"`)
	assert.NotContains(t, rr.Body.String(), `http-equiv="refresh"`)

	rr = do(t, routes, http.MethodGet, "/go/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestLandingHandler_ClickWithoutDelayNavigates(t *testing.T) {
	routes := landingRoutes(t, newEnv(t))

	rr := do(t, routes, http.MethodPost, "/go/instant", nil)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "https://example.com/now", rr.Header().Get("Location"))
}

func TestLandingHandler_ClickStartsCountdown(t *testing.T) {
	routes := landingRoutes(t, newEnv(t))

	rr := do(t, routes, http.MethodPost, "/go/wait", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `http-equiv="refresh"`)
	assert.Contains(t, body, "url=/somewhere")
	assert.Contains(t, body, `aria-disabled="true"`)
	assert.Contains(t, body, "/go/wait/cancel")
}

func TestLandingHandler_Cancel(t *testing.T) {
	routes := landingRoutes(t, newEnv(t))

	t.Run("cancellable", func(t *testing.T) {
		rr := do(t, routes, http.MethodPost, "/go/wait/cancel", nil)
		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/go/wait", rr.Header().Get("Location"))
	})

	t.Run("not cancellable", func(t *testing.T) {
		rr := do(t, routes, http.MethodPost, "/go/strict/cancel", nil)
		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Contains(t, rr.Body.String(), "cannot be cancelled")
	})

	t.Run("nothing to cancel without delay", func(t *testing.T) {
		rr := do(t, routes, http.MethodPost, "/go/instant/cancel", nil)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})
}

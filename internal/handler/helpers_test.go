package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/linkspark/internal/auth"
	"github.com/sakif/linkspark/internal/handler"
	"github.com/sakif/linkspark/internal/live"
	"github.com/sakif/linkspark/internal/repository/sqlite"
	"github.com/sakif/linkspark/internal/service"
	"github.com/sakif/linkspark/web"
)

// env is a fully wired stack over an in-memory database.
type env struct {
	db       *sqlite.DB
	hub      *live.Hub
	tokens   *auth.TokenService
	accounts *service.AccountService
	profiles *service.ProfileService
	links    *service.LinkService
	public   *service.PublicService
	pages    *handler.Renderer
	logger   *slog.Logger
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	hub := live.NewHub()
	t.Cleanup(hub.Close)

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789")
	require.NoError(t, err)

	pages, err := handler.NewRenderer(web.Templates, logger)
	require.NoError(t, err)

	return &env{
		db:       db,
		hub:      hub,
		tokens:   tokens,
		accounts: service.NewAccountService(db, db, tokens, auth.NewPasswordServiceForTest(bcrypt.MinCost), logger),
		profiles: service.NewProfileService(db, logger),
		links:    service.NewLinkService(db, hub, logger),
		public:   service.NewPublicService(db, db, logger),
		pages:    pages,
		logger:   logger,
	}
}

// register signs up a user and returns the user ID.
func (e *env) register(t *testing.T, email, username string) string {
	t.Helper()
	res, err := e.accounts.Register(context.Background(), service.RegisterInput{
		Email:    email,
		Password: "password123",
		Username: username,
	})
	require.NoError(t, err)
	return res.User.ID
}

// asUser authenticates every request as userID, like RequireAuth would
// after validating a cookie.
func asUser(userID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), userID)))
		})
	}
}

func newRouter(userID string) *chi.Mux {
	r := chi.NewRouter()
	if userID != "" {
		r.Use(asUser(userID))
	}
	return r
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v))
	return v
}

package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/linkspark/internal/apperror"
	"github.com/sakif/linkspark/internal/auth"
	"github.com/sakif/linkspark/internal/service"
)

const oauthStateCookie = "oauth_state"

// AccountHandler serves sign-up, sign-in and sign-out, both as HTML forms
// and as a JSON API.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRoot, HandleLoginPage, HandleRegisterPage → entry pages
//   - HandleLogin, HandleRegister, HandleLogout       → form posts
//   - HandleAPI*                                      → the same flows as JSON
//   - HandleGitHubLogin, HandleGitHubCallback         → federated sign-in
//
// github is nil when no GitHub app is configured; its routes then 404.
type AccountHandler struct {
	accounts      *service.AccountService
	github        *auth.GitHubProvider
	pages         *Renderer
	secureCookies bool
	logger        *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(
	accounts *service.AccountService,
	github *auth.GitHubProvider,
	pages *Renderer,
	secureCookies bool,
	logger *slog.Logger,
) *AccountHandler {
	return &AccountHandler{
		accounts:      accounts,
		github:        github,
		pages:         pages,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

type authPage struct {
	layout
	Error    string
	Email    string
	Username string
	GitHub   bool
}

// HandleRoot sends signed-out visitors to registration. Signed-in users
// never get here: the page gate moves them to the dashboard first.
//
// HTTP: GET /
func (h *AccountHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/register", http.StatusSeeOther)
}

// HandleLoginPage renders the sign-in form.
//
// HTTP: GET /login
func (h *AccountHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	data := authPage{layout: layout{Title: "Log in | LinkSpark"}, GitHub: h.github != nil}
	if r.URL.Query().Get("auth") == "denied" {
		data.Error = "GitHub sign-in was cancelled."
	}
	h.pages.Render(w, http.StatusOK, pageLogin, data)
}

// HandleRegisterPage renders the sign-up form.
//
// HTTP: GET /register
func (h *AccountHandler) HandleRegisterPage(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, http.StatusOK, pageRegister, authPage{
		layout: layout{Title: "Create your LinkSpark"},
		GitHub: h.github != nil,
	})
}

// HandleLogin processes the sign-in form. On failure the form is shown
// again with the mapped message and the email kept.
//
// HTTP: POST /login
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	email, password := r.PostFormValue("email"), r.PostFormValue("password")

	res, err := h.accounts.Login(r.Context(), email, password)
	if err != nil {
		h.logFailure("login", err)
		status, _ := statusFor(err)
		h.pages.Render(w, status, pageLogin, authPage{
			layout: layout{Title: "Log in | LinkSpark"},
			Error:  service.AuthMessage(err),
			Email:  email,
			GitHub: h.github != nil,
		})
		return
	}

	auth.SetSessionCookie(w, res.Token, h.secureCookies)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// HandleRegister processes the sign-up form.
//
// HTTP: POST /register
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	in := service.RegisterInput{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
		Username: r.PostFormValue("username"),
	}

	res, err := h.accounts.Register(r.Context(), in)
	if err != nil {
		h.logFailure("register", err)
		status, _ := statusFor(err)
		h.pages.Render(w, status, pageRegister, authPage{
			layout:   layout{Title: "Create your LinkSpark"},
			Error:    service.AuthMessage(err),
			Email:    in.Email,
			Username: in.Username,
			GitHub:   h.github != nil,
		})
		return
	}

	auth.SetSessionCookie(w, res.Token, h.secureCookies)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// HandleLogout clears the session cookie. Logout is a POST so a prefetch or
// a cross-site image tag cannot sign anyone out.
//
// HTTP: POST /logout
func (h *AccountHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// =========================================================================
// JSON API
// =========================================================================

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username,omitempty"`
}

type authResponse struct {
	User    any `json:"user"`
	Profile any `json:"profile"`
}

// HandleAPIRegister is the JSON twin of HandleRegister.
//
// HTTP: POST /api/auth/register
// REQUEST BODY: {"email": "...", "password": "...", "username": "..."}
func (h *AccountHandler) HandleAPIRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.accounts.Register(r.Context(), service.RegisterInput{
		Email: req.Email, Password: req.Password, Username: req.Username,
	})
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	auth.SetSessionCookie(w, res.Token, h.secureCookies)
	writeJSON(w, http.StatusCreated, authResponse{User: res.User, Profile: res.Profile})
}

// HandleAPILogin is the JSON twin of HandleLogin.
//
// HTTP: POST /api/auth/login
func (h *AccountHandler) HandleAPILogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	auth.SetSessionCookie(w, res.Token, h.secureCookies)
	writeJSON(w, http.StatusOK, authResponse{User: res.User, Profile: res.Profile})
}

// HandleAPILogout clears the session cookie.
//
// HTTP: POST /api/auth/logout
func (h *AccountHandler) HandleAPILogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the signed-in account.
//
// HTTP: GET /api/auth/me
// Auth: Required
func (h *AccountHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	user, err := h.accounts.Me(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// writeAuthError is writeError with the form message substituted, so API
// clients see the same sentence the HTML form would show.
func (h *AccountHandler) writeAuthError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		writeError(w, h.logger, err)
		return
	}
	status, errorType := statusFor(err)
	writeJSON(w, status, ErrorResponse{
		Error:   errorType,
		Message: service.AuthMessage(err),
		Field:   appErr.Field,
		Code:    appErr.Code,
	})
}

func (h *AccountHandler) logFailure(action string, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		h.logger.Info(action+" rejected",
			slog.String("field", appErr.Field),
			slog.String("code", appErr.Code),
		)
		return
	}
	h.logger.Error(action+" failed", slog.String("error", err.Error()))
}

// =========================================================================
// GITHUB OAUTH
// =========================================================================

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// A random state is stored in a short-lived HttpOnly cookie and must come
// back unchanged on the callback.
func (h *AccountHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		http.NotFound(w, r)
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth/github",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub user profile
//  3. Sign in or create the matching account
//  4. Issue the session cookie and go to the dashboard
func (h *AccountHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		http.NotFound(w, r)
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Path: "/auth/github", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/login?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusBadGateway)
		return
	}

	res, err := h.accounts.LoginGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("auth callback: sign-in failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	auth.SetSessionCookie(w, res.Token, h.secureCookies)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

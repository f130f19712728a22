// Package server is the composition root: it opens storage, builds the
// services and handlers, mounts the routes and runs the HTTP server with
// graceful shutdown.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → sqlite.DB ─┬→ AccountService ─→ AccountHandler
//	                           ├→ ProfileService ─┬→ DashboardHandler
//	                live.Hub ──┼→ LinkService ────┼→ LinkHandler, PublicHandler
//	                           ├→ PublicService ──┘
//	spotify.Client ────────────└→ PlayerService ──→ PlayerHandler
//
// Each layer only receives what it needs: services get repository
// interfaces (not the concrete sqlite.DB), handlers get services.
package server

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/linkspark/internal/auth"
	"github.com/sakif/linkspark/internal/config"
	"github.com/sakif/linkspark/internal/handler"
	"github.com/sakif/linkspark/internal/landing"
	"github.com/sakif/linkspark/internal/live"
	"github.com/sakif/linkspark/internal/middleware"
	sqliteRepo "github.com/sakif/linkspark/internal/repository/sqlite"
	"github.com/sakif/linkspark/internal/service"
	"github.com/sakif/linkspark/internal/spotify"
	"github.com/sakif/linkspark/web"
)

// Server represents the HTTP server and all its dependencies. It owns the
// database connection and the live hub; both are closed on shutdown.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	hub    *live.Hub
}

// Options swaps out collaborators, mostly for tests.
type Options struct {
	// Spotify replaces the client built from config.
	Spotify *spotify.Client
}

// New opens the database (applying migrations) and wires every route.
func New(cfg *config.Config, logger *slog.Logger, opts Options) (*Server, error) {
	if cfg.LocalDB() {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		hub:    live.NewHub(),
	}

	if err := s.setupRoutes(opts); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the hub and the database. Start calls it on shutdown.
func (s *Server) Close() error {
	s.hub.Close()
	return s.db.Close()
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET  /                          → redirect to /register (signed out)
//	GET  /login, /register          → auth pages; POST submits the form
//	POST /logout                    → end the session
//	GET  /dashboard                 → editor (protected)
//	GET  /profile?username=, /u/{u} → public profile page
//	GET  /l/{id}                    → count click, redirect
//	GET  /go/{name}                 → landing page; POST click, POST cancel
//	GET  /player...                 → music player pages (protected)
//	     /auth/github/*             → GitHub OAuth
//	     /api/auth/*                → JSON auth
//	     /api/profile, /api/links   → dashboard API (RequireAuth)
//	     /api/public/{u}[/stream]   → public JSON and live stream
//	     /api/player/*              → player proxies (RequireAuth)
//
// MIDDLEWARE ORDER MATTERS: RequestID and RealIP must run before the
// logger and the rate limiter read them.
func (s *Server) setupRoutes(opts Options) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	// === Static files ===
	static, err := fs.Sub(web.Static, "static")
	if err != nil {
		return fmt.Errorf("opening static assets: %w", err)
	}
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	s.router.Get("/healthz", s.handleHealth)

	// === Auth primitives ===
	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	var github *auth.GitHubProvider
	if s.config.GitHubEnabled() {
		github = auth.NewGitHubProvider(s.config.GitHubClientID, s.config.GitHubClientSecret, s.config.GitHubCallbackURL)
	}
	spot := opts.Spotify
	if spot == nil {
		spot = spotify.New(s.config.SpotifyClientID, s.config.SpotifyRedirectURL)
	}

	landings := landing.Default()
	if s.config.LandingsFile != "" {
		landings, err = landing.Load(s.config.LandingsFile)
		if err != nil {
			return err
		}
	}

	pages, err := handler.NewRenderer(web.Templates, s.logger)
	if err != nil {
		return err
	}

	// === Services ===
	accounts := service.NewAccountService(s.db, s.db, tokens, auth.NewPasswordService(), s.logger)
	profiles := service.NewProfileService(s.db, s.logger)
	links := service.NewLinkService(s.db, s.hub, s.logger)
	public := service.NewPublicService(s.db, s.db, s.logger)
	player := service.NewPlayerService(s.db, spot, s.logger)

	// === Handlers ===
	secure := s.config.SecureCookies()
	accountHandler := handler.NewAccountHandler(accounts, github, pages, secure, s.logger)
	dashboardHandler := handler.NewDashboardHandler(profiles, links, pages, s.config.BaseURL, s.logger)
	linkHandler := handler.NewLinkHandler(links, s.logger)
	publicHandler := handler.NewPublicHandler(public, links, s.hub, pages, s.logger)
	landingHandler := handler.NewLandingHandler(landings, pages, s.logger)
	playerHandler := handler.NewPlayerHandler(player, pages, secure, s.logger)

	limiter := middleware.NewRateLimiter(s.config.AuthRateLimit, s.logger)

	// === Pages ===
	// The gate re-checks the session on every page request and bounces
	// visitors to where their session state says they belong.
	s.router.Group(func(r chi.Router) {
		r.Use(auth.Gate(tokens, auth.DefaultGateRules))

		r.Get("/", accountHandler.HandleRoot)
		r.Get("/login", accountHandler.HandleLoginPage)
		r.Get("/register", accountHandler.HandleRegisterPage)
		r.With(limiter.Middleware).Post("/login", accountHandler.HandleLogin)
		r.With(limiter.Middleware).Post("/register", accountHandler.HandleRegister)

		r.Get("/dashboard", dashboardHandler.HandleDashboard)

		r.Get("/player", playerHandler.HandlePage)
		r.Get("/player/login", playerHandler.HandleLogin)
		r.Get("/player/callback", playerHandler.HandleCallback)
		r.Post("/player/logout", playerHandler.HandleLogoutPage)
	})
	s.router.Post("/logout", accountHandler.HandleLogout)

	s.router.Get("/profile", publicHandler.HandleProfileQuery)
	s.router.Get("/u/{username}", publicHandler.HandleProfilePath)
	s.router.Get("/l/{id}", publicHandler.HandleClick)

	s.router.Get("/go/{name}", landingHandler.HandleShow)
	s.router.Post("/go/{name}", landingHandler.HandleClick)
	s.router.Post("/go/{name}/cancel", landingHandler.HandleCancel)

	s.router.Route("/auth/github", func(r chi.Router) {
		r.Get("/login", accountHandler.HandleGitHubLogin)
		r.Get("/callback", accountHandler.HandleGitHubCallback)
	})

	// === API ===
	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(limiter.Middleware).Post("/register", accountHandler.HandleAPIRegister)
			r.With(limiter.Middleware).Post("/login", accountHandler.HandleAPILogin)
			r.Post("/logout", accountHandler.HandleAPILogout)
			r.With(auth.RequireAuth(tokens)).Get("/me", accountHandler.HandleMe)
		})

		r.Get("/public/{username}", publicHandler.HandlePublicJSON)
		r.Get("/public/{username}/stream", publicHandler.HandleStream)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/profile", dashboardHandler.HandleGetProfile)
			r.Patch("/profile", dashboardHandler.HandleUpdateProfile)
			r.Get("/profile/username-available", dashboardHandler.HandleUsernameAvailable)

			r.Get("/links", linkHandler.HandleList)
			r.Post("/links", linkHandler.HandleAdd)
			r.Get("/links/stats", linkHandler.HandleStats)
			r.Put("/links/order", linkHandler.HandleReorder)
			r.Patch("/links/{id}", linkHandler.HandlePatch)
			r.Delete("/links/{id}", linkHandler.HandleDelete)

			r.Get("/player/status", playerHandler.HandleStatus)
			r.Get("/player/token", playerHandler.HandleToken)
			r.Get("/player/search", playerHandler.HandleSearch)
			r.Post("/player/play", playerHandler.HandlePlay)
			r.Post("/player/logout", playerHandler.HandleLogout)
		})
	})

	s.logger.Debug("routes mounted",
		slog.Bool("github", github != nil),
		slog.Bool("player", spot.Configured()),
		slog.Any("landings", landings.Names()),
	)
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.db.Ping(ctx); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Write([]byte("ok"))
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully:
//  1. stop accepting connections and close live streams
//  2. wait up to 30s for in-flight requests
//  3. close the database (flushes WAL, releases the file lock)
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	// Live streams block until their subscription closes, so closing the
	// hub is what lets Shutdown finish.
	srv.RegisterOnShutdown(s.hub.Close)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", s.config.BaseURL),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}

// Package main is the entry point for the linkspark server.
//
// The main package stays minimal: read configuration, build the logger,
// hand both to internal/server. All actual logic lives in imported
// packages so it can be tested without a process.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"os"

	"github.com/sakif/linkspark/internal/config"
	"github.com/sakif/linkspark/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// .env is loaded first when present; real environment variables win.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// === 3. SESSION SECRET ===
	// Without JWT_SECRET every restart signs everyone out. Fine for local
	// development, so generate one instead of refusing to start.
	if cfg.JWTSecret == "" {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			logger.Error("generating session secret", slog.String("error", err.Error()))
			os.Exit(1)
		}
		cfg.JWTSecret = hex.EncodeToString(secret)
		logger.Warn("JWT_SECRET not set; using a random secret, sessions end on restart")
	}
	if !cfg.GitHubEnabled() {
		logger.Info("GitHub sign-in disabled (GITHUB_CLIENT_ID/SECRET not set)")
	}
	if cfg.SpotifyClientID == "" {
		logger.Info("music player disabled (SPOTIFY_CLIENT_ID not set)")
	}

	// === 4. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, logger, server.Options{})
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// Package config reads server settings from the environment.
//
// A .env file in the working directory is loaded first if present, so local
// development needs no exported variables. Real environment variables win
// over .env entries.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds every setting the server reads at startup.
type Config struct {
	Port     int
	BaseURL  string
	DBPath   string // file path, ":memory:", or libsql:// URL
	LogLevel slog.Level

	JWTSecret string

	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string

	SpotifyClientID    string
	SpotifyRedirectURL string

	LandingsFile string

	// AuthRateLimit is the number of sign-in/registration attempts allowed
	// per client IP per minute. Zero disables throttling.
	AuthRateLimit int
}

// Load reads .env (if any) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load() // a missing .env is normal outside development
	return FromEnv()
}

// FromEnv reads the environment without touching .env.
func FromEnv() (*Config, error) {
	port, err := getEnvInt("PORT", 8080)
	if err != nil {
		return nil, err
	}
	rateLimit, err := getEnvInt("AUTH_RATE_LIMIT", 10)
	if err != nil {
		return nil, err
	}
	if rateLimit < 0 {
		return nil, fmt.Errorf("config: AUTH_RATE_LIMIT must not be negative")
	}
	level, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(getEnv("BASE_URL", fmt.Sprintf("http://localhost:%d", port)), "/")

	return &Config{
		Port:               port,
		BaseURL:            baseURL,
		DBPath:             getEnv("DB_PATH", "data/linkspark.db"),
		LogLevel:           level,
		JWTSecret:          getEnv("JWT_SECRET", ""),
		GitHubClientID:     getEnv("GITHUB_CLIENT_ID", ""),
		GitHubClientSecret: getEnv("GITHUB_CLIENT_SECRET", ""),
		GitHubCallbackURL:  getEnv("GITHUB_CALLBACK_URL", baseURL+"/auth/github/callback"),
		SpotifyClientID:    getEnv("SPOTIFY_CLIENT_ID", ""),
		SpotifyRedirectURL: getEnv("SPOTIFY_REDIRECT_URL", baseURL+"/player/callback"),
		LandingsFile:       getEnv("LANDINGS_FILE", ""),
		AuthRateLimit:      rateLimit,
	}, nil
}

// SecureCookies reports whether cookies should carry the Secure flag.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.BaseURL, "https://")
}

// GitHubEnabled reports whether GitHub sign-in is configured.
func (c *Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// LocalDB reports whether DBPath is a file on this machine, which then
// needs its directory created.
func (c *Config) LocalDB() bool {
	return c.DBPath != ":memory:" && !strings.Contains(c.DBPath, "://")
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: invalid LOG_LEVEL %q", s)
	}
	return level, nil
}

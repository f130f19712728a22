// Package spotify is the server-side client for the Spotify Web API used by
// the music player.
//
// Authorization is the PKCE flow for a public client: no client secret is
// configured. The browser never talks to accounts.spotify.com/api/token
// directly; the server exchanges the code with the verifier it kept in a
// cookie, and proxies search and playback calls with the stored token.
//
// API reference: https://developer.spotify.com/documentation/web-api/reference/
package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/sakif/linkspark/internal/model"
)

const (
	authURL  = "https://accounts.spotify.com/authorize"
	tokenURL = "https://accounts.spotify.com/api/token"
	apiURL   = "https://api.spotify.com/v1"

	// SearchLimit is how many tracks one search returns.
	SearchLimit = 12
)

// Scopes are what the Web Playback SDK and the search/play proxies need.
var Scopes = []string{
	"streaming",
	"user-read-email",
	"user-read-private",
	"user-modify-playback-state",
	"user-read-playback-state",
	"user-read-currently-playing",
}

var (
	// ErrPremiumRequired is returned by Play when Spotify answers 403:
	// device playback needs a Premium account.
	ErrPremiumRequired = errors.New("spotify: premium account required")
	// ErrTokenRejected means Spotify answered 401 for the access token.
	ErrTokenRejected = errors.New("spotify: access token rejected")
)

// APIError is any other non-2xx answer from the Web API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("spotify: API returned status %d", e.Status)
	}
	return fmt.Sprintf("spotify: API returned status %d: %s", e.Status, e.Message)
}

// Client talks to Spotify's accounts service and Web API.
type Client struct {
	config     *oauth2.Config
	apiURL     string
	httpClient *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithEndpoints points the client at other accounts/API hosts (tests use an
// httptest server).
func WithEndpoints(authorize, token, api string) Option {
	return func(c *Client) {
		c.config.Endpoint.AuthURL = authorize
		c.config.Endpoint.TokenURL = token
		c.apiURL = strings.TrimRight(api, "/")
	}
}

// WithHTTPClient replaces the HTTP client used for every call.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the Spotify app clientID. redirectURL must be
// registered in the app's dashboard.
func New(clientID, redirectURL string, opts ...Option) *Client {
	c := &Client{
		config: &oauth2.Config{
			ClientID:    clientID,
			RedirectURL: redirectURL,
			Scopes:      Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether a client ID was provided.
func (c *Client) Configured() bool {
	return c.config.ClientID != ""
}

// AuthURL is the consent page for state, carrying the S256 challenge
// derived from verifier.
func (c *Client) AuthURL(state, verifier string) string {
	return c.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// Exchange trades an authorization code plus its PKCE verifier for a token.
func (c *Client) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	tok, err := c.config.Exchange(c.oauthContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("spotify: exchanging code: %w", err)
	}
	return tok, nil
}

// Refresh obtains a new access token from a refresh token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	expired := &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Unix(1, 0)}
	tok, err := c.config.TokenSource(c.oauthContext(ctx), expired).Token()
	if err != nil {
		return nil, fmt.Errorf("spotify: refreshing token: %w", err)
	}
	return tok, nil
}

func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// =========================================================================
// WEB API
// =========================================================================

type image struct {
	URL string `json:"url"`
}

type artist struct {
	Name string `json:"name"`
}

type track struct {
	ID         string   `json:"id"`
	URI        string   `json:"uri"`
	Name       string   `json:"name"`
	Artists    []artist `json:"artists"`
	DurationMS int      `json:"duration_ms"`
	PreviewURL string   `json:"preview_url"`
	Album      struct {
		Name   string  `json:"name"`
		Images []image `json:"images"`
	} `json:"album"`
}

func (t track) toModel() model.Track {
	names := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		names[i] = a.Name
	}
	out := model.Track{
		ID:         t.ID,
		URI:        t.URI,
		Name:       t.Name,
		Artists:    strings.Join(names, ", "),
		Album:      t.Album.Name,
		PreviewURL: t.PreviewURL,
		DurationMS: t.DurationMS,
	}
	if len(t.Album.Images) > 0 {
		out.ImageURL = t.Album.Images[0].URL
	}
	return out
}

// Search returns up to SearchLimit tracks matching query.
func (c *Client) Search(ctx context.Context, accessToken, query string) ([]model.Track, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("type", "track")
	q.Set("limit", fmt.Sprint(SearchLimit))

	var resp struct {
		Tracks struct {
			Items []track `json:"items"`
		} `json:"tracks"`
	}
	if err := c.do(ctx, accessToken, http.MethodGet, "/search?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	tracks := make([]model.Track, 0, len(resp.Tracks.Items))
	for _, t := range resp.Tracks.Items {
		tracks = append(tracks, t.toModel())
	}
	return tracks, nil
}

// Play starts uri on the Web Playback SDK device deviceID.
func (c *Client) Play(ctx context.Context, accessToken, deviceID, uri string) error {
	body := map[string][]string{"uris": {uri}}
	endpoint := "/me/player/play?device_id=" + url.QueryEscape(deviceID)
	return c.do(ctx, accessToken, http.MethodPut, endpoint, body, nil)
}

// do performs an authenticated Web API call and decodes a JSON result.
func (c *Client) do(ctx context.Context, accessToken, method, endpoint string, body, result any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("spotify: encoding request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("spotify: building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("spotify: request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrTokenRejected
	case resp.StatusCode == http.StatusForbidden:
		return ErrPremiumRequired
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		var payload struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		return &APIError{Status: resp.StatusCode, Message: payload.Error.Message}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("spotify: decoding response: %w", err)
		}
	}
	return nil
}

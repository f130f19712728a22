package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"github.com/sakif/linkspark/internal/apperror"
	"github.com/sakif/linkspark/internal/auth"
	"github.com/sakif/linkspark/internal/model"
)

// =========================================================================
// FAKE STORE
// =========================================================================

// fakeStore is an in-memory implementation of every repository interface.
// It enforces the same uniqueness rules as the SQLite schema so the
// service rules built on top of them can be tested without a database.
type fakeStore struct {
	mu       sync.Mutex
	users    map[string]*model.User
	profiles map[string]*model.Profile
	links    map[string]*model.Link
	tokens   map[string]*model.PlayerToken
	nextID   int

	// set to a non-nil error to simulate a database failure
	listErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[string]*model.User),
		profiles: make(map[string]*model.Profile),
		links:    make(map[string]*model.Link),
		tokens:   make(map[string]*model.PlayerToken),
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

// usernameHolder requires f.mu.
func (f *fakeStore) usernameHolder(username string) string {
	if username == "" {
		return ""
	}
	for owner, p := range f.profiles {
		if p.Username == username {
			return owner
		}
	}
	return ""
}

func (f *fakeStore) CreateWithProfile(ctx context.Context, user *model.User, profile *model.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if user.Email != "" && u.Email == user.Email {
			return apperror.Taken("email", "This email is already registered.").WithCode(CodeEmailInUse)
		}
	}
	if f.usernameHolder(profile.Username) != "" {
		return usernameTaken()
	}
	user.ID = f.id("user")
	profile.UserID = user.ID
	u, p := *user, *profile
	f.users[user.ID] = &u
	f.profiles[user.ID] = &p
	return nil
}

func (f *fakeStore) UpsertGitHub(ctx context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.GitHubID == user.GitHubID {
			u.GitHubLogin = user.GitHubLogin
			*user = *u
			return nil
		}
	}
	user.ID = f.id("user")
	u := *user
	f.users[user.ID] = &u
	return nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	c := *u
	return &c, nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeStore) CreateProfile(ctx context.Context, profile *model.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.profiles[profile.UserID]; ok {
		return apperror.Conflict("profile", profile.UserID)
	}
	if f.usernameHolder(profile.Username) != "" {
		return usernameTaken()
	}
	p := *profile
	f.profiles[profile.UserID] = &p
	return nil
}

func (f *fakeStore) EnsureProfile(ctx context.Context, profile *model.Profile) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.profiles[profile.UserID]; ok {
		c := *p
		return &c, nil
	}
	if f.usernameHolder(profile.Username) != "" {
		return nil, usernameTaken()
	}
	p := *profile
	f.profiles[profile.UserID] = &p
	c := p
	return &c, nil
}

func (f *fakeStore) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return nil, apperror.NotFound("profile", userID)
	}
	c := *p
	return &c, nil
}

func (f *fakeStore) GetProfileByUsername(ctx context.Context, username string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	owner := f.usernameHolder(username)
	if owner == "" {
		return nil, apperror.NotFound("profile", username)
	}
	c := *f.profiles[owner]
	return &c, nil
}

func (f *fakeStore) UpdateProfile(ctx context.Context, userID string, upd model.ProfileUpdate) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return nil, apperror.NotFound("profile", userID)
	}
	if upd.Username != nil {
		if holder := f.usernameHolder(*upd.Username); holder != "" && holder != userID {
			return nil, usernameTaken()
		}
		p.Username = *upd.Username
	}
	if upd.DisplayName != nil {
		p.DisplayName = *upd.DisplayName
	}
	if upd.Bio != nil {
		p.Bio = *upd.Bio
	}
	if upd.ProfileImageURL != nil {
		p.ProfileImageURL = *upd.ProfileImageURL
	}
	if upd.TemplateID != nil {
		p.TemplateID = *upd.TemplateID
	}
	if upd.Socials != nil {
		p.Socials = *upd.Socials
	}
	if upd.Embed != nil {
		p.Embed = *upd.Embed
	}
	c := *p
	return &c, nil
}

func (f *fakeStore) UsernameTaken(ctx context.Context, username, excludingUserID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	holder := f.usernameHolder(username)
	return holder != "" && holder != excludingUserID, nil
}

func (f *fakeStore) AddLink(ctx context.Context, link *model.Link) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := 0
	for _, l := range f.links {
		if l.UserID == link.UserID && l.Order >= next {
			next = l.Order + 1
		}
	}
	link.ID = f.id("link")
	link.Order = next
	l := *link
	f.links[link.ID] = &l
	return nil
}

func (f *fakeStore) GetLink(ctx context.Context, userID, id string) (*model.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.links[id]
	if !ok || l.UserID != userID {
		return nil, apperror.NotFound("link", id)
	}
	c := *l
	return &c, nil
}

func (f *fakeStore) ListLinks(ctx context.Context, userID string, activeOnly bool) ([]model.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]model.Link, 0)
	for _, l := range f.links {
		if l.UserID == userID && (!activeOnly || l.Active) {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (f *fakeStore) UpdateLink(ctx context.Context, link *model.Link) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.links[link.ID]
	if !ok || l.UserID != link.UserID {
		return apperror.NotFound("link", link.ID)
	}
	l.Title, l.URL = link.Title, link.URL
	return nil
}

func (f *fakeStore) SetLinkActive(ctx context.Context, userID, id string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.links[id]
	if !ok || l.UserID != userID {
		return apperror.NotFound("link", id)
	}
	l.Active = active
	return nil
}

func (f *fakeStore) DeleteLink(ctx context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.links[id]
	if !ok || l.UserID != userID {
		return apperror.NotFound("link", id)
	}
	delete(f.links, id)
	return nil
}

func (f *fakeStore) ReorderLinks(ctx context.Context, userID string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	owned := 0
	for _, l := range f.links {
		if l.UserID == userID {
			owned++
		}
	}
	seen := make(map[string]bool)
	for _, id := range ids {
		l, ok := f.links[id]
		if !ok || l.UserID != userID || seen[id] {
			return apperror.ValidationFailed("ids", "reorder must list every link exactly once")
		}
		seen[id] = true
	}
	if len(ids) != owned {
		return apperror.ValidationFailed("ids", "reorder must list every link exactly once")
	}
	for i, id := range ids {
		f.links[id].Order = i
	}
	return nil
}

func (f *fakeStore) IncrementClicks(ctx context.Context, id string) (*model.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.links[id]
	if !ok || !l.Active {
		return nil, apperror.NotFound("link", id)
	}
	l.Clicks++
	c := *l
	return &c, nil
}

func (f *fakeStore) CountLinks(ctx context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, l := range f.links {
		if l.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) SaveToken(ctx context.Context, token *model.PlayerToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := *token
	if old, ok := f.tokens[token.UserID]; ok && t.RefreshToken == "" {
		t.RefreshToken = old.RefreshToken
	}
	f.tokens[token.UserID] = &t
	return nil
}

func (f *fakeStore) GetToken(ctx context.Context, userID string) (*model.PlayerToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[userID]
	if !ok {
		return nil, apperror.NotFound("player token", userID)
	}
	c := *t
	return &c, nil
}

func (f *fakeStore) DeleteToken(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, userID)
	return nil
}

// =========================================================================
// FAKE MUSIC PROVIDER
// =========================================================================

type fakeProvider struct {
	clientID string

	exchanged  *oauth2.Token
	refreshed  *oauth2.Token
	refreshErr error
	tracks     []model.Track
	searchErr  error
	playErr    error

	refreshCalls int
	played       []string
}

func (p *fakeProvider) Configured() bool { return p.clientID != "" }

func (p *fakeProvider) AuthURL(state, verifier string) string {
	return "https://accounts.example/authorize?state=" + state
}

func (p *fakeProvider) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	if code != "good-code" {
		return nil, fmt.Errorf("oauth2: invalid_grant")
	}
	return p.exchanged, nil
}

func (p *fakeProvider) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	p.refreshCalls++
	if p.refreshErr != nil {
		return nil, p.refreshErr
	}
	return p.refreshed, nil
}

func (p *fakeProvider) Search(ctx context.Context, accessToken, query string) ([]model.Track, error) {
	return p.tracks, p.searchErr
}

func (p *fakeProvider) Play(ctx context.Context, accessToken, deviceID, uri string) error {
	if p.playErr != nil {
		return p.playErr
	}
	p.played = append(p.played, deviceID+":"+uri)
	return nil
}

// =========================================================================
// HELPERS
// =========================================================================

// testLogger discards everything below error level.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestAccountService(t *testing.T, store *fakeStore) *AccountService {
	t.Helper()
	tokens, err := auth.NewTokenService("test-secret-at-least-16")
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	return NewAccountService(store, store, tokens, auth.NewPasswordServiceForTest(bcrypt.MinCost), testLogger())
}

func strPtr(s string) *string { return &s }

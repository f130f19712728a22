package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/sakif/linkspark/internal/apperror"
	"github.com/sakif/linkspark/internal/auth"
	"github.com/sakif/linkspark/internal/model"
	"github.com/sakif/linkspark/internal/repository"
)

// Auth failure codes. The sign-in and registration forms show
// AuthMessage(err) for them.
const (
	CodeWeakPassword      = "auth/weak-password"
	CodeEmailInUse        = "auth/email-already-in-use"
	CodeInvalidEmail      = "auth/invalid-email"
	CodeInvalidCredential = "auth/invalid-credential"
)

const (
	msgUnknown            = "An unknown error occurred. Please try again."
	msgInvalidCredentials = "Invalid credentials. Please check your email and password."
)

var authMessages = map[string]string{
	CodeWeakPassword:      fmt.Sprintf("Password must be at least %d characters.", auth.MinPasswordLength),
	CodeEmailInUse:        "This email is already registered.",
	CodeInvalidEmail:      "The email address is not valid.",
	CodeInvalidCredential: msgInvalidCredentials,
}

// AuthMessage turns an error from Register or Login into the sentence the
// form shows. Known auth codes map to fixed strings, field errors (such as a
// taken username) keep their own message, and everything else reads as an
// unknown error.
func AuthMessage(err error) string {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		return msgUnknown
	}
	if msg, ok := authMessages[appErr.Code]; ok {
		return msg
	}
	if appErr.Field != "" && appErr.Message != "" {
		return appErr.Message
	}
	return msgUnknown
}

// AccountService signs users up and in.
type AccountService struct {
	users     repository.UserRepository
	profiles  repository.ProfileRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAccountService wires an AccountService.
func NewAccountService(
	users repository.UserRepository,
	profiles repository.ProfileRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		users:     users,
		profiles:  profiles,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles what a successful sign-in produces so the handler can
// set the cookie and redirect in one step.
type AuthResult struct {
	User    *model.User
	Profile *model.Profile
	Token   string
}

// RegisterInput is the registration form.
type RegisterInput struct {
	Email    string
	Password string
	Username string
}

// Register creates an email/password account with its profile.
//
// The username availability query runs first so the common case gets a
// friendly message before any hashing, but the UNIQUE index decides: when
// two registrations race for one username, the loser's whole transaction
// rolls back and no account is left without a profile.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := normalizeEmail(in.Email)
	username := NormalizeUsername(in.Username)

	if email == "" || in.Password == "" || username == "" {
		return nil, apperror.ValidationFailed("form", "Please fill in all fields.")
	}
	if !validEmail(email) {
		return nil, apperror.ValidationFailed("email", authMessages[CodeInvalidEmail]).WithCode(CodeInvalidEmail)
	}
	if len(in.Password) < auth.MinPasswordLength {
		return nil, apperror.ValidationFailed("password", authMessages[CodeWeakPassword]).WithCode(CodeWeakPassword)
	}
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}

	taken, err := s.profiles.UsernameTaken(ctx, username, "")
	if err != nil {
		return nil, fmt.Errorf("service/account: checking username: %w", err)
	}
	if taken {
		return nil, usernameTaken()
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{Email: email, PasswordHash: hash}
	profile := DefaultProfile("", username)
	if err := s.users.CreateWithProfile(ctx, user, profile); err != nil {
		return nil, fmt.Errorf("service/account: registering %s: %w", username, err)
	}

	s.logger.Info("account registered",
		slog.String("userID", user.ID),
		slog.String("username", username),
	)
	return s.issue(user, profile)
}

// Login checks email and password. Every failure, including an unknown
// email, reads the same so the form does not reveal which accounts exist.
func (s *AccountService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("form", "Please enter your email and password.")
	}

	invalid := apperror.Unauthorized(msgInvalidCredentials).WithCode(CodeInvalidCredential)

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, invalid
	}
	if err != nil {
		return nil, fmt.Errorf("service/account: loading user: %w", err)
	}
	if user.PasswordHash == "" {
		return nil, invalid
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Warn("stored password hash unusable",
				slog.String("userID", user.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, invalid
	}

	profile, err := s.ensureProfile(ctx, user.ID, "")
	if err != nil {
		return nil, err
	}
	return s.issue(user, profile)
}

// LoginGitHub signs in (or signs up) the owner of a GitHub identity. A new
// account's username is taken from the GitHub login when it is valid and
// free; otherwise it stays unset until the owner picks one.
func (s *AccountService) LoginGitHub(ctx context.Context, gh *auth.GitHubUser) (*AuthResult, error) {
	if gh == nil || gh.ID == 0 {
		return nil, fmt.Errorf("service/account: GitHub user must not be empty")
	}

	user := &model.User{GitHubID: gh.ID, GitHubLogin: gh.Login}
	if err := s.users.UpsertGitHub(ctx, user); err != nil {
		return nil, fmt.Errorf("service/account: upserting GitHub user %d: %w", gh.ID, err)
	}

	username := NormalizeUsername(strings.ReplaceAll(gh.Login, "-", "_"))
	if ValidateUsername(username) != nil {
		username = ""
	}

	profile, err := s.ensureProfile(ctx, user.ID, username, func(p *model.Profile) {
		if gh.Name != "" {
			p.DisplayName = gh.Name
		}
		if gh.AvatarURL != "" {
			p.ProfileImageURL = gh.AvatarURL
		}
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("login", gh.Login),
	)
	return s.issue(user, profile)
}

// Me returns the signed-in account.
func (s *AccountService) Me(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("valid authentication required")
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/account: fetching user %s: %w", userID, err)
	}
	return user, nil
}

// ensureProfile heals a missing profile. A username that lost a race for
// the unique index falls back to none.
func (s *AccountService) ensureProfile(ctx context.Context, userID, username string, adjust ...func(*model.Profile)) (*model.Profile, error) {
	build := func(name string) *model.Profile {
		p := DefaultProfile(userID, name)
		for _, fn := range adjust {
			fn(p)
		}
		return p
	}

	if username != "" {
		taken, err := s.profiles.UsernameTaken(ctx, username, userID)
		if err != nil {
			return nil, fmt.Errorf("service/account: checking username: %w", err)
		}
		if taken {
			username = ""
		}
	}

	profile, err := s.profiles.EnsureProfile(ctx, build(username))
	if errors.Is(err, apperror.ErrConflict) && username != "" {
		profile, err = s.profiles.EnsureProfile(ctx, build(""))
	}
	if err != nil {
		return nil, fmt.Errorf("service/account: ensuring profile for %s: %w", userID, err)
	}
	return profile, nil
}

func (s *AccountService) issue(user *model.User, profile *model.Profile) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/account: generating token for %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Profile: profile, Token: token}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email && strings.Contains(email[strings.LastIndex(email, "@"):], ".")
}

func usernameTaken() error {
	return apperror.Taken("username", "This username is already taken. Choose something unique.").WithCode("username-taken")
}

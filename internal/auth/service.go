package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ayush/auth-gateway/internal/metrics"
	"github.com/ayush/auth-gateway/internal/models"
	"github.com/ayush/auth-gateway/internal/store"
	"github.com/ayush/auth-gateway/internal/validator"
)

// UserStore defines the interface for user persistence. Lookups return
// store.ErrNotFound on a miss; writes return store.ErrDuplicateKey when a
// unique field collides.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByGoogleID(ctx context.Context, googleID string) (*models.User, error)
	LinkGoogleID(ctx context.Context, id, googleID string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

// IdentityVerifier validates an external identity token.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*GoogleIdentity, error)
}

// Service implements the register / login / google-login flows.
type Service struct {
	users   UserStore
	tokens  *TokenIssuer
	google  IdentityVerifier
	metrics metrics.Recorder
}

func NewService(users UserStore, tokens *TokenIssuer, google IdentityVerifier, rec metrics.Recorder) *Service {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Service{users: users, tokens: tokens, google: google, metrics: rec}
}

// Register creates a password account. No token is issued; the caller
// logs in afterwards.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	errs, err := validator.Struct(req)
	if err != nil {
		return err
	}
	if errs.HasErrors() {
		s.metrics.RecordAuth(metrics.FlowRegister, "invalid")
		return invalid(registerMessage(errs), errs)
	}

	email := normalizeEmail(req.Email)
	username := req.Username

	_, err = s.users.GetUserByUsernameOrEmail(ctx, username, email)
	switch {
	case err == nil:
		s.metrics.RecordAuth(metrics.FlowRegister, "conflict")
		return ErrConflict
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("register lookup: %w", err)
	}

	hashed, err := HashPassword(req.Password)
	if err != nil {
		return err
	}

	user := &models.User{
		Name:         req.Name,
		Username:     username,
		Email:        email,
		PasswordHash: hashed,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			s.metrics.RecordAuth(metrics.FlowRegister, "conflict")
			return ErrConflict
		}
		return fmt.Errorf("register create: %w", err)
	}

	slog.InfoContext(ctx, "user registered", slog.String("user_id", user.ID))
	s.metrics.RecordAuth(metrics.FlowRegister, "success")
	return nil
}

// Login checks an email/password pair and issues a token.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	req.Email = strings.TrimSpace(req.Email)
	errs, err := validator.Struct(req)
	if err != nil {
		return nil, err
	}
	if errs.HasErrors() {
		s.metrics.RecordAuth(metrics.FlowLogin, "invalid")
		return nil, invalid("Email and Password are required!", errs)
	}

	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.metrics.RecordAuth(metrics.FlowLogin, "not_found")
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("login lookup: %w", err)
	}

	if !CheckPassword(req.Password, user.PasswordHash) {
		s.metrics.RecordAuth(metrics.FlowLogin, "invalid_credentials")
		return nil, ErrInvalidCredentials
	}

	resp, err := s.issue(user, "Login successful!")
	if err != nil {
		return nil, err
	}
	s.metrics.RecordAuth(metrics.FlowLogin, "success")
	return resp, nil
}

// GoogleLogin verifies a Google ID token and signs the matching user in,
// creating the account on first sight. An existing password account with
// the same email is not taken over; it has to be linked explicitly.
func (s *Service) GoogleLogin(ctx context.Context, req models.GoogleLoginRequest) (*models.AuthResponse, error) {
	req.Token = strings.TrimSpace(req.Token)
	errs, err := validator.Struct(req)
	if err != nil {
		return nil, err
	}
	if errs.HasErrors() {
		s.metrics.RecordAuth(metrics.FlowGoogle, "invalid")
		return nil, invalid("Google token is required!", errs)
	}

	identity, err := s.google.Verify(ctx, req.Token)
	if err != nil {
		s.metrics.RecordAuth(metrics.FlowGoogle, "invalid_identity")
		return nil, err
	}

	user, err := s.findOrCreateGoogleUser(ctx, identity)
	if err != nil {
		s.metrics.RecordAuth(metrics.FlowGoogle, outcome(err))
		return nil, err
	}

	resp, err := s.issue(user, "Google login successful!")
	if err != nil {
		return nil, err
	}
	s.metrics.RecordAuth(metrics.FlowGoogle, "success")
	return resp, nil
}

func (s *Service) findOrCreateGoogleUser(ctx context.Context, identity *GoogleIdentity) (*models.User, error) {
	user, err := s.users.GetUserByGoogleID(ctx, identity.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("google lookup: %w", err)
	}

	email := normalizeEmail(identity.Email)
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrAccountLink
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("google lookup: %w", err)
	}

	if !identity.EmailVerified {
		return nil, fmt.Errorf("%w: email not verified", ErrInvalidIdentityToken)
	}

	user = &models.User{
		Name:     displayName(identity),
		Email:    email,
		GoogleID: identity.Subject,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if !errors.Is(err, store.ErrDuplicateKey) {
			return nil, fmt.Errorf("google create: %w", err)
		}
		// A concurrent first sign-in with the same Google account won.
		if existing, lookupErr := s.users.GetUserByGoogleID(ctx, identity.Subject); lookupErr == nil {
			return existing, nil
		}
		return nil, ErrConflict
	}

	slog.InfoContext(ctx, "user created from google sign-in", slog.String("user_id", user.ID))
	return user, nil
}

// LinkGoogle attaches the Google identity in idToken to the already
// authenticated user. Both credentials are proven in the same request.
func (s *Service) LinkGoogle(ctx context.Context, userID string, req models.GoogleLoginRequest) (*models.User, error) {
	req.Token = strings.TrimSpace(req.Token)
	errs, err := validator.Struct(req)
	if err != nil {
		return nil, err
	}
	if errs.HasErrors() {
		return nil, invalid("Google token is required!", errs)
	}

	identity, err := s.google.Verify(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.LinkGoogleID(ctx, userID, identity.Subject)
	switch {
	case err == nil:
		slog.InfoContext(ctx, "google identity linked", slog.String("user_id", userID))
		user.PasswordHash = ""
		return user, nil
	case errors.Is(err, store.ErrNotFound):
		return nil, ErrNotFound
	case errors.Is(err, store.ErrDuplicateKey):
		return nil, ErrAccountLink
	default:
		return nil, fmt.Errorf("link google: %w", err)
	}
}

// Me returns the stored record of the authenticated user.
func (s *Service) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("me lookup: %w", err)
	}
	user.PasswordHash = ""
	return user, nil
}

// ListUsers returns every user without password hashes.
func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if users == nil {
		users = []models.User{}
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	return users, nil
}

func (s *Service) issue(user *models.User, message string) (*models.AuthResponse, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &models.AuthResponse{Message: message, Token: token, User: user.Public()}, nil
}

func registerMessage(errs validator.ValidationErrors) string {
	if errs.HasRequired() {
		return "All fields are required"
	}
	if msg, ok := errs["confirmPass"]; ok {
		return msg
	}
	return errs.First()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func displayName(identity *GoogleIdentity) string {
	if name := strings.TrimSpace(identity.Name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(identity.Email, "@")
	return local
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrAccountLink):
		return "account_link"
	case errors.Is(err, ErrInvalidIdentityToken):
		return "invalid_identity"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

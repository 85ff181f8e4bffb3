package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
	"github.com/SFZPL/lead-automation-system-sub000/internal/querycache"
)

// SessionAPI is the backend surface for login
type SessionAPI interface {
	Login(ctx context.Context, email, password string) (string, error)
	RefreshToken(ctx context.Context) (string, error)
}

// SessionService manages user session operations
type SessionService struct {
	api    SessionAPI
	store  domain.SessionStore
	cache  *querycache.Cache
	logger *slog.Logger
	now    func() time.Time
}

// NewSessionService creates a new SessionService
func NewSessionService(api SessionAPI, store domain.SessionStore, cache *querycache.Cache, logger *slog.Logger) *SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{api: api, store: store, cache: cache, logger: logger, now: time.Now}
}

// Login exchanges credentials for a token and stores it
func (s *SessionService) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.Invalid("email", "Email is required")
	}
	if password == "" {
		return domain.Invalid("password", "Password is required")
	}

	token, err := s.api.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if err := s.store.SaveToken(token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	s.logger.Info("logged in", "email", email)
	return nil
}

// LoggedIn reports whether a token is stored
func (s *SessionService) LoggedIn() bool {
	token, ok := s.store.Token()
	return ok && token != ""
}

// Refresh swaps the stored token for a fresh one
func (s *SessionService) Refresh(ctx context.Context) error {
	if !s.LoggedIn() {
		return domain.ErrNotAuthenticated
	}
	token, err := s.api.RefreshToken(ctx)
	if err != nil {
		return fmt.Errorf("token refresh failed: %w", err)
	}
	return s.store.SaveToken(token)
}

// ExpiresSoon reports whether the stored token expires within window. The
// signature is not verified; the backend does that on every call.
func (s *SessionService) ExpiresSoon(window time.Duration) bool {
	token, ok := s.store.Token()
	if !ok {
		return false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		s.logger.Debug("token is not a JWT", "error", err)
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Time.Before(s.now().Add(window))
}

// EnsureFresh refreshes the token when it is about to expire
func (s *SessionService) EnsureFresh(ctx context.Context, window time.Duration) error {
	if !s.ExpiresSoon(window) {
		return nil
	}
	s.logger.Info("token expiring, refreshing")
	return s.Refresh(ctx)
}

// Logout clears the token, any pending OAuth state and cached data
func (s *SessionService) Logout() error {
	if err := s.store.ClearToken(); err != nil {
		return err
	}
	if err := s.store.ClearOAuthState(); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Clear(); err != nil {
			return err
		}
	}
	s.logger.Info("logged out")
	return nil
}

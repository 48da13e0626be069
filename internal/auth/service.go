package auth

import (
	"context"

	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/cache"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/domain"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/logger"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/token"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/pkg/errors"

	"github.com/asaskevich/EventBus"
	"github.com/rs/zerolog"
)

// Backend is the slice of the REST client the session flows use.
type Backend interface {
	Login(ctx context.Context, username string, password string) (*domain.TokenPair, error)
	Me(ctx context.Context) (*domain.UserProfile, error)
	ChangePassword(ctx context.Context, oldPassword string, newPassword string) error
	RequestPasswordReset(ctx context.Context, email string) error
	VerifyResetCode(ctx context.Context, email string, code string) (string, error)
	ResetPassword(ctx context.Context, email string, resetToken string, newPassword string) error
}

// Service owns the session lifecycle. Logging in stores the token pair in
// the vault and caches the agent's profile; logging out clears credentials
// and every cached collection but leaves the queue alone, since queued
// writes are user data that must survive a re-login.
type Service interface {
	// Login exchanges credentials for a token pair. The returned profile is
	// nil when the profile fetch failed after an otherwise successful login.
	Login(ctx context.Context, username string, password string) (*domain.UserProfile, error)
	Logout(ctx context.Context) error
	// Restore loads vault credentials at startup and reports whether a
	// previous session is usable. A restored session fires auth:login so
	// the warm-up runs.
	Restore(ctx context.Context) bool
	Authenticated() bool

	ChangePassword(ctx context.Context, oldPassword string, newPassword string) error
	RequestPasswordReset(ctx context.Context, email string) error
	VerifyResetCode(ctx context.Context, email string, code string) (string, error)
	ResetPassword(ctx context.Context, email string, resetToken string, newPassword string) error
}

type service struct {
	log     zerolog.Logger
	bus     EventBus.Bus
	tokens  token.Service
	client  Backend
	store   *cache.Store
	profile cache.Collection[domain.UserProfile]
}

func NewService(log logger.Logger, bus EventBus.Bus, tokens token.Service, client Backend, store *cache.Store) Service {
	return &service{
		log:     log.With().Str("module", "auth").Logger(),
		bus:     bus,
		tokens:  tokens,
		client:  client,
		store:   store,
		profile: cache.NewCollection[domain.UserProfile](store, "user-profile"),
	}
}

func (s *service) Login(ctx context.Context, username string, password string) (*domain.UserProfile, error) {
	pair, err := s.client.Login(ctx, username, password)
	if err != nil {
		s.log.Warn().Err(err).Str("username", username).Msg("Login failed")
		return nil, err
	}

	if err := s.tokens.Save(ctx, pair.Access, pair.Refresh); err != nil {
		return nil, errors.Wrap(err, "failed to store credentials")
	}

	profile, err := s.client.Me(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Profile fetch after login failed, will retry on next read")
	} else if err := s.profile.Set(ctx, []domain.UserProfile{*profile}); err != nil {
		s.log.Error().Err(err).Msg("Failed to cache user profile")
	}

	s.log.Info().Str("username", username).Msg("Logged in")
	s.bus.Publish(domain.EventAuthLogin)
	return profile, nil
}

func (s *service) Logout(ctx context.Context) error {
	if err := s.tokens.Clear(ctx); err != nil {
		return err
	}
	if err := s.store.ClearAll(ctx); err != nil {
		s.log.Error().Err(err).Msg("Failed to clear caches on logout")
	}

	s.log.Info().Msg("Logged out")
	s.bus.Publish(domain.EventAuthLogout)
	return nil
}

func (s *service) Restore(ctx context.Context) bool {
	if err := s.tokens.Load(ctx); err != nil {
		s.log.Error().Err(err).Msg("Failed to load credentials from vault")
		return false
	}
	if !s.tokens.Authenticated() {
		return false
	}

	s.log.Info().Msg("Session restored from vault")
	s.bus.Publish(domain.EventAuthLogin)
	return true
}

func (s *service) Authenticated() bool {
	return s.tokens.Authenticated()
}

func (s *service) ChangePassword(ctx context.Context, oldPassword string, newPassword string) error {
	return s.client.ChangePassword(ctx, oldPassword, newPassword)
}

func (s *service) RequestPasswordReset(ctx context.Context, email string) error {
	return s.client.RequestPasswordReset(ctx, email)
}

func (s *service) VerifyResetCode(ctx context.Context, email string, code string) (string, error) {
	return s.client.VerifyResetCode(ctx, email, code)
}

func (s *service) ResetPassword(ctx context.Context, email string, resetToken string, newPassword string) error {
	return s.client.ResetPassword(ctx, email, resetToken, newPassword)
}

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/frahmantamala/survey-management/internal"
	"github.com/frahmantamala/survey-management/internal/account"
	"github.com/frahmantamala/survey-management/internal/core/action"
	"github.com/frahmantamala/survey-management/internal/core/events"
	"github.com/frahmantamala/survey-management/internal/core/identity"
)

type AccountLookup interface {
	FindByUsername(ctx context.Context, username string) (*account.Account, error)
	FindByID(ctx context.Context, id int64) (*account.Account, error)
	TouchLastLogin(ctx context.Context, id int64) error
}

type AuditRecorder interface {
	Record(ctx context.Context, actor *identity.Actor, kind action.Kind, target action.Target, details map[string]any)
}

const (
	reasonUnknownUser   = "unknown_user"
	reasonWrongPassword = "wrong_password"
	reasonInactive      = "account_inactive"
)

var errAccountInactive = internal.NewUnauthorizedError("Account is inactive", internal.ErrCodeUserInactive)

type Service struct {
	accounts  AccountLookup
	tokens    TokenGenerator
	recorder  AuditRecorder
	publisher events.Publisher
	logger    *slog.Logger
}

func NewService(accounts AccountLookup, tokens TokenGenerator, recorder AuditRecorder, publisher events.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		accounts:  accounts,
		tokens:    tokens,
		recorder:  recorder,
		publisher: publisher,
		logger:    logger,
	}
}

// Login verifies credentials and issues a session token. Every failure is
// recorded as FAILED_LOGIN and published for the security fanout; the password
// is checked before the active flag so inactivity is not revealed to guessers.
func (s *Service) Login(ctx context.Context, dto LoginDTO) (*Session, error) {
	dto.Username = strings.TrimSpace(dto.Username)
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	acc, err := s.accounts.FindByUsername(ctx, dto.Username)
	if err != nil {
		return nil, fmt.Errorf("auth.Login: lookup: %w", err)
	}
	if acc == nil {
		s.loginFailed(ctx, dto.Username, reasonUnknownUser)
		return nil, internal.ErrInvalidCredentials
	}
	if !acc.CheckPassword(dto.Password) {
		s.loginFailed(ctx, dto.Username, reasonWrongPassword)
		return nil, internal.ErrInvalidCredentials
	}
	if !acc.IsActive {
		s.loginFailed(ctx, dto.Username, reasonInactive)
		return nil, internal.ErrUserInactive
	}

	actor := acc.Actor()
	token, expiresAt, err := s.tokens.GenerateAccessToken(actor)
	if err != nil {
		return nil, fmt.Errorf("auth.Login: %w", err)
	}

	if err := s.accounts.TouchLastLogin(ctx, acc.ID); err != nil {
		s.logger.Warn("failed to update last login", "account_id", acc.ID, "error", err)
	}

	s.recorder.Record(ctx, &actor, action.Login, action.AuthTarget(acc.Username), nil)

	return &Session{Token: token, ExpiresAt: expiresAt, Account: acc}, nil
}

func (s *Service) loginFailed(ctx context.Context, username, reason string) {
	s.recorder.Record(ctx, nil, action.FailedLogin, action.AuthTarget(username), map[string]any{
		"username": username,
		"reason":   reason,
	})

	if s.publisher == nil {
		return
	}
	src := internal.RequestSourceFromContext(ctx)
	if err := s.publisher.PublishSync(ctx, events.NewLoginFailedEvent(username, src.Address, reason)); err != nil {
		s.logger.Warn("failed to publish login failure", "username", username, "error", err)
	}
}

func (s *Service) Logout(ctx context.Context, actor identity.Actor) {
	s.recorder.Record(ctx, &actor, action.Logout, action.AuthTarget(actor.Username), nil)
}

// Authenticate resolves a token to the current state of its account. Deleted
// and deactivated accounts are rejected even while the token is unexpired.
func (s *Service) Authenticate(ctx context.Context, token string) (*account.Account, error) {
	if token == "" {
		return nil, internal.ErrUnauthenticated
	}

	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	acc, err := s.accounts.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("auth.Authenticate: %w", err)
	}
	if acc == nil {
		return nil, internal.ErrUnauthenticated
	}
	if !acc.IsActive {
		return nil, errAccountInactive
	}
	return acc, nil
}

// Status reloads the caller's account for the session probe.
func (s *Service) Status(ctx context.Context, actor identity.Actor) (*account.Account, error) {
	acc, err := s.accounts.FindByID(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("auth.Status: %w", err)
	}
	if acc == nil {
		return nil, internal.ErrUnauthenticated
	}
	return acc, nil
}

// Package identity implements login, registration, token refresh and request authentication.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bissquit/identity-ledger/internal/domain"
	"github.com/bissquit/identity-ledger/internal/pkg/ctxlog"
	"github.com/bissquit/identity-ledger/internal/pkg/metrics"
	"github.com/bissquit/identity-ledger/internal/pkg/txn"
	"github.com/bissquit/identity-ledger/internal/users"
	"golang.org/x/crypto/bcrypt"
)

// UserStore is the subset of the users module identity depends on.
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	CreateUser(ctx context.Context, input users.CreateUserInput) (*domain.User, error)
}

// Authenticator issues and verifies tokens.
type Authenticator interface {
	GenerateTokens(ctx context.Context, user *domain.User) (*TokenPair, error)
	ParseAccessToken(ctx context.Context, token string) (*TokenClaims, error)
	ParseRefreshToken(ctx context.Context, token string) (*TokenClaims, error)
	ValidateToken(ctx context.Context, token, username string) error
	Type() string
}

// RevocationStore remembers revoked refresh token IDs until they expire.
type RevocationStore interface {
	// Revoke marks tokenID as revoked for ttl. It reports false when the ID
	// was already revoked, so concurrent callers cannot both claim a token.
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) (bool, error)
}

// dummyHash is compared against on unknown usernames so a failed login costs
// the same bcrypt work whether or not the user exists.
var dummyHash = sync.OnceValue(func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte("identity-ledger-dummy-password"), bcrypt.DefaultCost)
	if err != nil {
		panic(fmt.Sprintf("generate dummy hash: %v", err))
	}
	return hash
})

// Service implements identity business logic.
type Service struct {
	users       UserStore
	auth        Authenticator
	revocations RevocationStore
	now         func() time.Time
}

// NewService creates a new identity service.
// A nil revocations store disables refresh token revocation.
func NewService(users UserStore, auth Authenticator, revocations RevocationStore) *Service {
	if revocations == nil {
		revocations = noopRevocations{}
	}
	return &Service{
		users:       users,
		auth:        auth,
		revocations: revocations,
		now:         time.Now,
	}
}

// LoginInput holds login credentials.
type LoginInput struct {
	Username string
	Password string
}

// RegisterInput holds data for self-registration.
type RegisterInput struct {
	Username string
	Password string
}

// AuthResult is returned by every operation that issues tokens.
type AuthResult struct {
	Tokens   *TokenPair
	Username string
	Roles    []string
}

// Login verifies credentials and issues a token pair.
func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	log := ctxlog.FromContext(ctx)

	user, err := s.users.GetUserByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(input.Password))
			metrics.AuthFailures.WithLabelValues("unknown_user").Inc()
			log.Warn("login failed: unknown user", "username", input.Username)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		metrics.AuthFailures.WithLabelValues("bad_password").Inc()
		log.Warn("login failed: bad password", "username", input.Username)
		return nil, ErrInvalidCredentials
	}

	if !user.Active {
		metrics.AuthFailures.WithLabelValues("inactive").Inc()
		log.Warn("login failed: inactive user", "username", input.Username)
		return nil, ErrUserInactive
	}

	result, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	log.Info("user logged in", "username", user.Username)
	return result, nil
}

// Register creates an active user without explicit roles and issues a token pair.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	active := true
	user, err := s.users.CreateUser(ctx, users.CreateUserInput{
		Username: input.Username,
		Password: input.Password,
		Active:   &active,
	})
	if err != nil {
		return nil, err
	}

	result, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Info("user registered", "username", user.Username, "user_id", user.ID)
	return result, nil
}

// Refresh exchanges a refresh token for a new token pair.
// The presented refresh token is revoked before anything is issued, so only
// one caller can ever redeem it.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := s.auth.ParseRefreshToken(ctx, refreshToken)
	if err != nil {
		metrics.AuthFailures.WithLabelValues("invalid_refresh").Inc()
		return nil, err
	}

	claimed, err := s.revoke(ctx, claims)
	if err != nil {
		return nil, err
	}
	if !claimed {
		metrics.AuthFailures.WithLabelValues("revoked_refresh").Inc()
		return nil, ErrTokenRevoked
	}

	user, err := s.users.GetUserByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: subject no longer exists", ErrInvalidToken)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !user.Active {
		metrics.AuthFailures.WithLabelValues("inactive").Inc()
		return nil, ErrUserInactive
	}

	result, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Info("tokens refreshed",
		"username", user.Username,
		"issued_under", claims.TransactionID,
	)
	return result, nil
}

// Logout revokes a refresh token.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.auth.ParseRefreshToken(ctx, refreshToken)
	if err != nil {
		return err
	}
	_, err = s.revoke(ctx, claims)
	return err
}

// Authenticate resolves an access token to the calling principal.
// The user is reloaded so deactivation and role changes apply immediately.
func (s *Service) Authenticate(ctx context.Context, token string) (*domain.Principal, error) {
	claims, err := s.auth.ParseAccessToken(ctx, token)
	if err != nil {
		metrics.AuthFailures.WithLabelValues("invalid_access").Inc()
		return nil, err
	}

	user, err := s.users.GetUserByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: subject no longer exists", ErrInvalidToken)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !user.Active {
		return nil, ErrUserInactive
	}

	if err := s.auth.ValidateToken(ctx, token, user.Username); err != nil {
		return nil, err
	}

	return &domain.Principal{
		UserID:             user.ID,
		Username:           user.Username,
		Roles:              user.EffectiveRoles(),
		TokenTransactionID: claims.TransactionID,
	}, nil
}

func (s *Service) issue(ctx context.Context, user *domain.User) (*AuthResult, error) {
	tokens, err := s.auth.GenerateTokens(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("generate tokens: %w", err)
	}
	if tokens.TransactionID == "" {
		tokens.TransactionID = txn.FromContext(ctx)
	}
	return &AuthResult{
		Tokens:   tokens,
		Username: user.Username,
		Roles:    user.EffectiveRoles(),
	}, nil
}

// revoke reports whether this call was the first to revoke the token.
// Tokens without a jti cannot be tracked and are treated as freshly revoked.
func (s *Service) revoke(ctx context.Context, claims *TokenClaims) (bool, error) {
	if claims.ID == "" {
		return true, nil
	}
	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return false, ErrTokenExpired
	}
	claimed, err := s.revocations.Revoke(ctx, claims.ID, ttl)
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	return claimed, nil
}

type noopRevocations struct{}

func (noopRevocations) Revoke(context.Context, string, time.Duration) (bool, error) { return true, nil }

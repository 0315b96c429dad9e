// Package jwt issues and verifies HS512-signed access and refresh tokens.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/identity-ledger/internal/domain"
	"github.com/bissquit/identity-ledger/internal/identity"
	"github.com/bissquit/identity-ledger/internal/pkg/metrics"
	"github.com/bissquit/identity-ledger/internal/pkg/txn"
	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// Default token lifetimes.
const (
	DefaultAccessTokenDuration  = 24 * time.Hour
	DefaultRefreshTokenDuration = 7 * 24 * time.Hour
)

// Config contains token signing settings.
type Config struct {
	SecretKey            string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

type claims struct {
	TransactionID string   `json:"transactionId,omitempty"`
	Authorities   []string `json:"authorities,omitempty"`
	Type          string   `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator implements identity.Authenticator with golang-jwt.
type Authenticator struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	newID      func() string
	parser     *jwt.Parser
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithClock overrides the time source used for issuing and verifying tokens.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		a.now = now
	}
}

// NewAuthenticator creates an authenticator. Zero durations fall back to the defaults.
func NewAuthenticator(cfg Config, opts ...Option) *Authenticator {
	a := &Authenticator{
		secret:     []byte(cfg.SecretKey),
		accessTTL:  cfg.AccessTokenDuration,
		refreshTTL: cfg.RefreshTokenDuration,
		now:        time.Now,
		newID:      func() string { return ulid.Make().String() },
	}
	if a.accessTTL <= 0 {
		a.accessTTL = DefaultAccessTokenDuration
	}
	if a.refreshTTL <= 0 {
		a.refreshTTL = DefaultRefreshTokenDuration
	}
	for _, opt := range opts {
		opt(a)
	}

	a.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return a.now() }),
	)

	return a
}

// Type returns the authenticator kind.
func (a *Authenticator) Type() string {
	return "jwt"
}

// GenerateTokens issues an access and a refresh token for user.
// Both carry the transaction ID of ctx.
func (a *Authenticator) GenerateTokens(ctx context.Context, user *domain.User) (*identity.TokenPair, error) {
	now := a.now()
	txnID := txn.FromContext(ctx)

	access := claims{
		TransactionID: txnID,
		Authorities:   user.Authorities(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.accessTTL)),
		},
	}
	accessToken, err := a.sign(access)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refresh := claims{
		TransactionID: txnID,
		Type:          identity.TokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        a.newID(),
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.refreshTTL)),
		},
	}
	refreshToken, err := a.sign(refresh)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	metrics.TokensIssued.WithLabelValues("access").Inc()
	metrics.TokensIssued.WithLabelValues("refresh").Inc()

	return &identity.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		ExpiresIn:        int64(a.accessTTL.Seconds()),
		RefreshExpiresIn: int64(a.refreshTTL.Seconds()),
		TransactionID:    txnID,
	}, nil
}

// ParseAccessToken verifies token and rejects refresh tokens.
func (a *Authenticator) ParseAccessToken(_ context.Context, token string) (*identity.TokenClaims, error) {
	c, err := a.parse(token)
	if err != nil {
		return nil, err
	}
	if c.IsRefresh() {
		return nil, identity.ErrNotAccessToken
	}
	return c, nil
}

// ParseRefreshToken verifies token and rejects anything that is not a refresh token.
func (a *Authenticator) ParseRefreshToken(_ context.Context, token string) (*identity.TokenClaims, error) {
	c, err := a.parse(token)
	if err != nil {
		return nil, err
	}
	if !c.IsRefresh() {
		return nil, identity.ErrNotRefreshToken
	}
	return c, nil
}

// ValidateToken checks that token is a valid access token issued to username
// and unexpired at the authenticator's clock.
func (a *Authenticator) ValidateToken(ctx context.Context, token, username string) error {
	c, err := a.ParseAccessToken(ctx, token)
	if err != nil {
		return err
	}
	if !c.ValidFor(username, a.now()) {
		return identity.ErrInvalidToken
	}
	return nil
}

func (a *Authenticator) sign(c claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS512, c).SignedString(a.secret)
}

func (a *Authenticator) parse(token string) (*identity.TokenClaims, error) {
	var c claims
	_, err := a.parser.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", identity.ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", identity.ErrInvalidToken, err)
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", identity.ErrInvalidToken)
	}

	out := &identity.TokenClaims{
		ID:            c.ID,
		Subject:       c.Subject,
		TransactionID: c.TransactionID,
		Authorities:   c.Authorities,
		Type:          c.Type,
	}
	if c.Type == "" {
		out.Type = identity.TokenTypeAccess
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out, nil
}

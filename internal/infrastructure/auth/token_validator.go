// Package auth validates the bearer tokens minted by the external identity
// provider and extracts the caller's identity from them.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"chathistory-server/internal/domain/user"
)

// Claims is the token payload the identity provider signs for us.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// TokenValidator verifies HS256 signed tokens against the shared secret.
type TokenValidator struct {
	secret   []byte
	issuer   string
	audience string
	skew     time.Duration
	logger   zerolog.Logger
}

// NewTokenValidator creates a validator. The audience check is skipped when
// audience is empty.
func NewTokenValidator(secret []byte, issuer, audience string, skew time.Duration, logger zerolog.Logger) (*TokenValidator, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	if issuer == "" {
		return nil, errors.New("token issuer is required")
	}
	return &TokenValidator{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
		skew:     skew,
		logger:   logger,
	}, nil
}

// Validate parses and verifies the token, returning the caller's identity.
func (v *TokenValidator) Validate(tokenString string) (*user.Identity, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithLeeway(v.skew),
		jwt.WithExpirationRequired(),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		v.logger.Debug().Err(err).Msg("token validation failed")
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.Email == "" {
		return nil, fmt.Errorf("%w: subject and email claims are required", ErrInvalidToken)
	}

	identity := &user.Identity{
		Subject: claims.Subject,
		Email:   claims.Email,
	}
	if claims.Name != "" {
		name := claims.Name
		identity.Name = &name
	}
	return identity, nil
}

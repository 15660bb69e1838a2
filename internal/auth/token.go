// ABOUTME: JWT token issuance and validation for stateless request authentication
// ABOUTME: Uses HS256 signing with a configured secret and a fixed one-hour lifetime

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrMalformedToken = errors.New("malformed token")
	ErrExpiredToken   = errors.New("token expired")
)

// MinSecretLength is the minimum signing secret size in bytes.
const MinSecretLength = 32

// TokenTTL is the lifetime of every issued token. It is not configurable.
const TokenTTL = time.Hour

// Token is a signed bearer credential. Only Value goes over the wire.
type Token struct {
	Value     string    `json:"token"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Claims are the verified contents of a token.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenIssuer mints tokens for an authenticated subject.
type TokenIssuer interface {
	Issue(subject string) (Token, error)
}

// TokenValidator checks a token's signature and expiry.
type TokenValidator interface {
	Validate(token string) (*Claims, error)
}

// JWTIssuer implements TokenIssuer and TokenValidator using HS256 signed JWTs
type JWTIssuer struct {
	secret []byte
	now    func() time.Time
}

var (
	_ TokenIssuer    = (*JWTIssuer)(nil)
	_ TokenValidator = (*JWTIssuer)(nil)
)

// IssuerOption configures a JWTIssuer.
type IssuerOption func(*JWTIssuer)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) IssuerOption {
	return func(j *JWTIssuer) {
		j.now = now
	}
}

// NewJWTIssuer creates an issuer. The secret must be at least MinSecretLength bytes.
func NewJWTIssuer(secret []byte, opts ...IssuerOption) (*JWTIssuer, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes, got %d", MinSecretLength, len(secret))
	}

	j := &JWTIssuer{
		secret: secret,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Issue signs a token for subject, valid from now (truncated to the second)
// for TokenTTL.
func (j *JWTIssuer) Issue(subject string) (Token, error) {
	if subject == "" {
		return Token{}, errors.New("token subject is required")
	}

	now := j.now().Truncate(time.Second)
	expires := now.Add(TokenTTL)

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return Token{}, fmt.Errorf("signing token: %w", err)
	}

	return Token{Value: signed, IssuedAt: now, ExpiresAt: expires}, nil
}

// Validate checks the signature first, then expiry. A token is still valid at
// exactly its expiry instant. Any structural, signature or claim problem is
// reported as ErrMalformedToken.
func (j *JWTIssuer) Validate(tokenString string) (*Claims, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			return j.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if !token.Valid {
		return nil, ErrMalformedToken
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrMalformedToken)
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing exp claim", ErrMalformedToken)
	}

	if j.now().After(claims.ExpiresAt.Time) {
		return nil, ErrExpiredToken
	}

	result := &Claims{
		Subject:   claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}
	if claims.IssuedAt != nil {
		result.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	return result, nil
}

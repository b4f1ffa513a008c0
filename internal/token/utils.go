package token

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/AntonTsoy/authgate/internal/user"
	"github.com/golang-jwt/jwt/v5"
)

var signingMethod = jwt.SigningMethodHS512

// Claims is the payload carried by both token types. Role is only set on
// access tokens.
type Claims struct {
	jwt.RegisteredClaims
	TokenType Type      `json:"token_type"`
	Role      user.Role `json:"role,omitempty"`
}

// NewTokenID returns 256 random bits, base64url encoded.
func NewTokenID() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func signClaims(claims *Claims, secret []byte) (string, error) {
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", claims.TokenType, err)
	}
	return signed, nil
}

// parseClaims checks signature, algorithm, expiry and the token_type claim.
// Every rejection wraps ErrInvalidToken; an expired token also wraps
// ErrTokenExpired.
func parseClaims(raw string, secret []byte, want Type, now func() time.Time) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrTokenExpired)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return nil, ErrInvalidToken
	}

	if want != "" && claims.TokenType != want {
		return nil, fmt.Errorf("%w: wrong token type %q", ErrInvalidToken, claims.TokenType)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing token id", ErrInvalidToken)
	}
	if claims.TokenType == TypeAccess && !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: missing role", ErrInvalidToken)
	}
	return claims, nil
}

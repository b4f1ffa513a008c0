package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AntonTsoy/authgate/internal/user"
	"github.com/golang-jwt/jwt/v5"
)

type Config struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Now        func() time.Time
}

// Pair is what a successful login hands back to the client.
type Pair struct {
	Access  string
	Refresh string
}

type Issuer struct {
	ledger Ledger
	cfg    Config
}

func NewIssuer(ledger Ledger, cfg Config) *Issuer {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Issuer{ledger: ledger, cfg: cfg}
}

// IssuePair mints an access and a refresh token for u and records the
// refresh token as outstanding.
func (i *Issuer) IssuePair(ctx context.Context, u *user.User) (*Pair, error) {
	access, err := i.IssueAccess(u)
	if err != nil {
		return nil, err
	}
	refresh, err := i.IssueRefresh(ctx, u)
	if err != nil {
		return nil, err
	}
	return &Pair{Access: access, Refresh: refresh}, nil
}

func (i *Issuer) IssueAccess(u *user.User) (string, error) {
	claims, err := i.newClaims(u, TypeAccess, i.cfg.AccessTTL)
	if err != nil {
		return "", err
	}
	claims.Role = u.Role
	return signClaims(claims, i.cfg.Secret)
}

func (i *Issuer) IssueRefresh(ctx context.Context, u *user.User) (string, error) {
	claims, err := i.newClaims(u, TypeRefresh, i.cfg.RefreshTTL)
	if err != nil {
		return "", err
	}
	signed, err := signClaims(claims, i.cfg.Secret)
	if err != nil {
		return "", err
	}

	rec := &OutstandingToken{
		JTI:       claims.ID,
		UserID:    u.ID,
		Username:  u.Username,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if err := i.ledger.RecordOutstanding(ctx, rec); err != nil {
		return "", fmt.Errorf("record outstanding token: %w", err)
	}
	return signed, nil
}

// Parse validates raw as a token of type want. An empty want accepts
// either type.
func (i *Issuer) Parse(raw string, want Type) (*Claims, error) {
	return parseClaims(raw, i.cfg.Secret, want, i.cfg.Now)
}

// ParseRefresh validates raw as a refresh token and requires the ledger to
// hold it in the Active state.
func (i *Issuer) ParseRefresh(ctx context.Context, raw string) (*Claims, error) {
	claims, err := i.Parse(raw, TypeRefresh)
	if err != nil {
		return nil, err
	}

	rec, err := i.ledger.Lookup(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown token id", ErrInvalidToken)
		}
		return nil, err
	}

	switch rec.State(i.cfg.Now()) {
	case StateBlacklisted:
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrTokenBlacklisted)
	case StateExpired:
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrTokenExpired)
	}
	if rec.Username != claims.Subject {
		return nil, fmt.Errorf("%w: subject mismatch", ErrInvalidToken)
	}
	return claims, nil
}

// Revoke blacklists the refresh token identified by claims. Only one
// caller wins for a given token; the others get ErrTokenBlacklisted.
func (i *Issuer) Revoke(ctx context.Context, claims *Claims) error {
	revoked, err := i.ledger.Blacklist(ctx, claims.ID)
	if err != nil {
		return fmt.Errorf("blacklist %s: %w", claims.ID, err)
	}
	if !revoked {
		return fmt.Errorf("%w: %w", ErrInvalidToken, ErrTokenBlacklisted)
	}
	return nil
}

func (i *Issuer) newClaims(u *user.User, typ Type, ttl time.Duration) (*Claims, error) {
	jti, err := NewTokenID()
	if err != nil {
		return nil, fmt.Errorf("generate token id: %w", err)
	}
	now := i.cfg.Now().UTC().Truncate(time.Second)
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
		TokenType: typ,
	}, nil
}

package token

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidToken     = errors.New("token is invalid or expired")
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenBlacklisted = errors.New("token is blacklisted")
	ErrDuplicateToken   = errors.New("token id already recorded")
	ErrNotFound         = errors.New("token not found")
)

// Type distinguishes access from refresh tokens in the token_type claim.
type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

// State is the lifecycle position of a refresh token. Expired is derived
// from the clock; Blacklisted is terminal.
type State int

const (
	StateActive State = iota
	StateBlacklisted
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateBlacklisted:
		return "blacklisted"
	case StateExpired:
		return "expired"
	}
	return "unknown"
}

// OutstandingToken is the ledger record written for every minted refresh token.
type OutstandingToken struct {
	JTI           string
	UserID        uuid.UUID
	Username      string
	IssuedAt      time.Time
	ExpiresAt     time.Time
	CreatedAt     time.Time
	BlacklistedAt *time.Time
}

func (t *OutstandingToken) State(now time.Time) State {
	if t.BlacklistedAt != nil {
		return StateBlacklisted
	}
	if !now.Before(t.ExpiresAt) {
		return StateExpired
	}
	return StateActive
}

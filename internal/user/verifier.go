package user

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

var (
	dummyOnce sync.Once
	dummyHash []byte
)

// dummy returns a hash compared against when the username is unknown, so a
// miss costs the same bcrypt round as a wrong password.
func dummy() []byte {
	dummyOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	})
	return dummyHash
}

type Verifier struct {
	users Repository
}

func NewVerifier(users Repository) *Verifier {
	return &Verifier{users: users}
}

// Verify returns the user owning username when secret matches its hash.
// Every rejection is ErrInvalidCredentials so callers cannot tell an unknown
// username from a wrong password.
func (v *Verifier) Verify(ctx context.Context, username, secret string) (*User, error) {
	if username == "" || secret == "" {
		return nil, ErrInvalidCredentials
	}

	u, err := v.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummy(), []byte(secret))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(secret)) != nil {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

package user

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrUsernameExists     = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRole        = errors.New("invalid role")
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleStandard Role = "standard"
)

// Capability is a named right granted by a role.
type Capability string

const (
	CapLogout Capability = "session:logout"
	CapAdmin  Capability = "admin:access"
)

var roleCapabilities = map[Role][]Capability{
	RoleStandard: {CapLogout},
	RoleAdmin:    {CapLogout, CapAdmin},
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := roleCapabilities[r]; !ok {
		return "", ErrInvalidRole
	}
	return r, nil
}

func (r Role) Valid() bool {
	_, ok := roleCapabilities[r]
	return ok
}

// Can reports whether the role grants c. Unknown roles grant nothing.
func (r Role) Can(c Capability) bool {
	for _, granted := range roleCapabilities[r] {
		if granted == c {
			return true
		}
	}
	return false
}

type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	Role         Role
	IsActive     bool
	CreatedAt    time.Time
}

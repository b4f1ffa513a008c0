package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/AntonTsoy/authgate/internal/user"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const principalKey = "auth.principal"

// Permission decides whether a resolved principal may proceed.
type Permission func(u *user.User) error

func IsAuthenticated(u *user.User) error {
	if u == nil {
		return ErrUnauthorized
	}
	return nil
}

func IsAdmin(u *user.User) error {
	if u == nil {
		return ErrUnauthorized
	}
	if !u.Role.Can(user.CapAdmin) {
		return ErrForbidden
	}
	return nil
}

// Authenticate resolves the bearer access token into a principal and
// stores it on the context. Requests without a valid token are let
// through with no principal; Require decides what that means.
func Authenticate(svc *Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Next()
			return
		}

		u, err := svc.Authenticate(c.Request.Context(), raw)
		if err != nil {
			if !errors.Is(err, ErrUnauthorized) {
				log.Error("authenticate request", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
				return
			}
			c.Header("WWW-Authenticate", `Bearer realm="api"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrUnauthorized.Error()})
			return
		}

		c.Set(principalKey, u)
		c.Next()
	}
}

// Require runs every permission in order and stops at the first failure.
func Require(perms ...Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := Principal(c)
		for _, p := range perms {
			err := p(u)
			switch {
			case err == nil:
				continue
			case errors.Is(err, ErrUnauthorized):
				c.Header("WWW-Authenticate", `Bearer realm="api"`)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrUnauthorized.Error()})
			default:
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": ErrForbidden.Error()})
			}
			return
		}
		c.Next()
	}
}

// Principal returns the user set by Authenticate, or nil.
func Principal(c *gin.Context) *user.User {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	u, _ := v.(*user.User)
	return u
}

func bearerToken(header string) (string, bool) {
	scheme, raw, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/AntonTsoy/authgate/internal/obs"
	"github.com/AntonTsoy/authgate/internal/token"
	"github.com/AntonTsoy/authgate/internal/user"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	accessCookie  = "access_token"
	refreshCookie = "refresh_token"

	msgInternal    = "internal server error"
	msgBlacklisted = "token is blacklisted"
)

type AuthHandler struct {
	svc        *Service
	accessTTL  time.Duration
	refreshTTL time.Duration
	log        *zap.Logger
}

func NewAuthHandler(svc *Service, accessTTL, refreshTTL time.Duration, log *zap.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, accessTTL: accessTTL, refreshTTL: refreshTTL, log: log}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type verifyRequest struct {
	Token string `json:"token" binding:"required"`
}

// Register mounts the auth routes on r.
func (h *AuthHandler) Register(r gin.IRoutes) {
	authn := Authenticate(h.svc, h.log)

	r.POST("/login", h.Login)
	r.POST("/logout", authn, Require(IsAuthenticated), h.Logout)
	r.POST("/token/refresh", h.Refresh)
	r.POST("/token/verify", h.Verify)
	r.GET("/admin/hello", authn, Require(IsAuthenticated, IsAdmin), h.AdminHello)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		obs.Logins.WithLabelValues(obs.ResultRejected).Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	pair, u, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			obs.Logins.WithLabelValues(obs.ResultRejected).Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		obs.Logins.WithLabelValues(obs.ResultError).Inc()
		h.internalError(c, "login", err)
		return
	}
	obs.Logins.WithLabelValues(obs.ResultOK).Inc()

	h.setCookies(c, pair)
	c.JSON(http.StatusOK, gin.H{
		"access":   pair.Access,
		"refresh":  pair.Refresh,
		"username": u.Username,
		"role":     u.Role,
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	raw, ok := refreshFromRequest(c)
	if !ok {
		obs.Logouts.WithLabelValues(obs.ResultRejected).Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "refresh token is required"})
		return
	}

	err := h.svc.Logout(c.Request.Context(), Principal(c), raw, c.ClientIP())
	switch {
	case err == nil:
	case errors.Is(err, token.ErrTokenBlacklisted):
		obs.Logouts.WithLabelValues(obs.ResultRejected).Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": msgBlacklisted})
		return
	case errors.Is(err, token.ErrInvalidToken):
		obs.Logouts.WithLabelValues(obs.ResultRejected).Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": token.ErrInvalidToken.Error()})
		return
	default:
		obs.Logouts.WithLabelValues(obs.ResultError).Inc()
		h.internalError(c, "logout", err)
		return
	}
	obs.Logouts.WithLabelValues(obs.ResultOK).Inc()

	c.SetCookie(accessCookie, "", -1, "/", "", false, true)
	c.SetCookie(refreshCookie, "", -1, "/", "", false, true)
	c.Status(http.StatusResetContent)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	raw, ok := refreshFromRequest(c)
	if !ok {
		obs.Refreshes.WithLabelValues(obs.ResultRejected).Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "refresh token is required"})
		return
	}

	pair, err := h.svc.Refresh(c.Request.Context(), raw, c.ClientIP())
	if err != nil {
		if errors.Is(err, token.ErrInvalidToken) {
			obs.Refreshes.WithLabelValues(obs.ResultRejected).Inc()
			msg := token.ErrInvalidToken.Error()
			if errors.Is(err, token.ErrTokenBlacklisted) {
				msg = msgBlacklisted
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}
		obs.Refreshes.WithLabelValues(obs.ResultError).Inc()
		h.internalError(c, "refresh", err)
		return
	}
	obs.Refreshes.WithLabelValues(obs.ResultOK).Inc()

	h.setCookies(c, pair)
	resp := gin.H{"access": pair.Access}
	if pair.Refresh != "" {
		resp["refresh"] = pair.Refresh
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}
	if err := h.svc.Verify(c.Request.Context(), req.Token); err != nil {
		switch {
		case errors.Is(err, token.ErrTokenBlacklisted):
			c.JSON(http.StatusUnauthorized, gin.H{"error": msgBlacklisted})
		case errors.Is(err, token.ErrInvalidToken):
			c.JSON(http.StatusUnauthorized, gin.H{"error": token.ErrInvalidToken.Error()})
		default:
			h.internalError(c, "verify", err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (h *AuthHandler) AdminHello(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Hello, Admin!"})
}

func (h *AuthHandler) setCookies(c *gin.Context, pair *token.Pair) {
	c.SetCookie(accessCookie, pair.Access, int(h.accessTTL.Seconds()), "/", "", false, true)
	if pair.Refresh != "" {
		c.SetCookie(refreshCookie, pair.Refresh, int(h.refreshTTL.Seconds()), "/", "", false, true)
	}
}

func (h *AuthHandler) internalError(c *gin.Context, op string, err error) {
	h.log.Error(op+" failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
}

// refreshFromRequest reads the refresh token from the JSON body and falls
// back to the refresh_token cookie set at login.
func refreshFromRequest(c *gin.Context) (string, bool) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.Refresh != "" {
		return req.Refresh, true
	}
	if raw, err := c.Cookie(refreshCookie); err == nil && raw != "" {
		return raw, true
	}
	return "", false
}

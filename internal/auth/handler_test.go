package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AntonTsoy/authgate/internal/user"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type server struct {
	*fixture
	router *gin.Engine
}

func newServer(t *testing.T, opts Options) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := newFixture(t, opts)
	r := gin.New()
	NewAuthHandler(f.svc, accessTTL, refreshTTL, zap.NewNop()).Register(r)
	return &server{fixture: f, router: r}
}

func (s *server) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	out := map[string]string{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (s *server) login(t *testing.T, username, password string) map[string]string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/login", "", gin.H{"username": username, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode(t, w)
}

func TestHandler_AliceScenario(t *testing.T) {
	s := newServer(t, Options{})
	s.addUser(t, "alice", "s3cret", user.RoleAdmin)

	tokens := s.login(t, "alice", "s3cret")
	assert.Equal(t, "alice", tokens["username"])
	assert.Equal(t, "admin", tokens["role"])
	require.NotEmpty(t, tokens["access"])
	require.NotEmpty(t, tokens["refresh"])

	w := s.do(t, http.MethodGet, "/admin/hello", tokens["access"], nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"message": "Hello, Admin!"}, decode(t, w))

	w = s.do(t, http.MethodPost, "/logout", tokens["access"], gin.H{"refresh": tokens["refresh"]})
	assert.Equal(t, http.StatusResetContent, w.Code)
	assert.Empty(t, w.Body.String())

	w = s.do(t, http.MethodPost, "/logout", tokens["access"], gin.H{"refresh": tokens["refresh"]})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "token is blacklisted", decode(t, w)["error"])

	w = s.do(t, http.MethodPost, "/token/refresh", "", gin.H{"refresh": tokens["refresh"]})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandler_VerifyRejectsRevokedRefreshToken(t *testing.T) {
	s := newServer(t, Options{})
	s.addUser(t, "alice", "s3cret", user.RoleAdmin)
	tokens := s.login(t, "alice", "s3cret")

	w := s.do(t, http.MethodPost, "/token/verify", "", gin.H{"token": tokens["refresh"]})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/logout", tokens["access"], gin.H{"refresh": tokens["refresh"]})
	require.Equal(t, http.StatusResetContent, w.Code)

	w = s.do(t, http.MethodPost, "/token/verify", "", gin.H{"token": tokens["refresh"]})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "token is blacklisted", decode(t, w)["error"])
}

func TestHandler_Login(t *testing.T) {
	s := newServer(t, Options{})
	s.addUser(t, "alice", "s3cret", user.RoleAdmin)

	w := s.do(t, http.MethodPost, "/login", "", gin.H{"username": "alice", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid credentials", decode(t, w)["error"])
	assert.Zero(t, s.ledger.Count())

	w = s.do(t, http.MethodPost, "/login", "", gin.H{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/login", "", gin.H{"username": "alice", "password": "s3cret"})
	require.Equal(t, http.StatusOK, w.Code)
	names := map[string]bool{}
	for _, c := range w.Result().Cookies() {
		names[c.Name] = c.HttpOnly
	}
	assert.True(t, names["access_token"])
	assert.True(t, names["refresh_token"])
}

func TestHandler_AdminHelloForbiddenForStandardUser(t *testing.T) {
	s := newServer(t, Options{})
	s.addUser(t, "bob", "pw", user.RoleStandard)
	tokens := s.login(t, "bob", "pw")

	w := s.do(t, http.MethodGet, "/admin/hello", tokens["access"], nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHandler_MissingOrInvalidBearer(t *testing.T) {
	s := newServer(t, Options{})
	s.addUser(t, "alice", "s3cret", user.RoleAdmin)
	tokens := s.login(t, "alice", "s3cret")

	w := s.do(t, http.MethodGet, "/admin/hello", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/logout", "", gin.H{"refresh": tokens["refresh"]})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/admin/hello", tokens["refresh"], nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
}

func TestHandler_LogoutBadRequests(t *testing.T) {
	s := newServer(t, Options{})
	s.addUser(t, "alice", "s3cret", user.RoleAdmin)
	tokens := s.login(t, "alice", "s3cret")

	w := s.do(t, http.MethodPost, "/logout", tokens["access"], gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "refresh token is required", decode(t, w)["error"])

	w = s.do(t, http.MethodPost, "/logout", tokens["access"], gin.H{"refresh": "broken"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "token is invalid or expired", decode(t, w)["error"])
}

func TestHandler_RefreshAndVerify(t *testing.T) {
	s := newServer(t, Options{RotateRefreshTokens: true, BlacklistAfterRotation: true})
	s.addUser(t, "alice", "s3cret", user.RoleAdmin)
	tokens := s.login(t, "alice", "s3cret")

	w := s.do(t, http.MethodPost, "/token/refresh", "", gin.H{"refresh": tokens["refresh"]})
	require.Equal(t, http.StatusOK, w.Code)
	next := decode(t, w)
	assert.NotEmpty(t, next["access"])
	assert.NotEmpty(t, next["refresh"])

	w = s.do(t, http.MethodPost, "/token/refresh", "", gin.H{"refresh": tokens["refresh"]})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/token/refresh", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/token/verify", "", gin.H{"token": next["access"]})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{}`, w.Body.String())

	w = s.do(t, http.MethodPost, "/token/verify", "", gin.H{"token": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/token/verify", "", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

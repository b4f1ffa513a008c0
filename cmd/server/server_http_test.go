package main

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AntonTsoy/authgate/internal/auth"
	"github.com/AntonTsoy/authgate/internal/email"
	"github.com/AntonTsoy/authgate/internal/token"
	"github.com/AntonTsoy/authgate/internal/user"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := zap.NewNop()
	issuer := token.NewIssuer(token.NewMemoryLedger(), token.Config{
		Secret:     []byte("secret"),
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	})
	svc := auth.NewService(user.NewMemoryRepository(), issuer, email.NewLogSender(log), auth.Options{}, log)
	return newRouter(auth.NewAuthHandler(svc, time.Minute, time.Hour, log), db, log), mock
}

func TestHealthz(t *testing.T) {
	r, mock := testRouter(t)

	mock.ExpectPing()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := testRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestAuthRoutesMounted(t *testing.T) {
	r, _ := testRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/hello", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

package main

import (
	"context"
	"net/http"
	"time"

	"github.com/AntonTsoy/authgate/internal/auth"
	"github.com/AntonTsoy/authgate/internal/obs"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

func newRouter(handler *auth.AuthHandler, db pinger, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), obs.RequestLogger(logger))

	handler.Register(r)
	r.GET("/metrics", gin.WrapH(obs.MetricsHandler()))
	r.GET("/healthz", func(c *gin.Context) {
		hctx, cancel := context.WithTimeout(c.Request.Context(), 500*time.Millisecond)
		defer cancel()
		if err := db.PingContext(hctx); err != nil {
			c.String(http.StatusServiceUnavailable, "unhealthy: db")
			return
		}
		c.String(http.StatusOK, "ok")
	})
	return r
}

func buildHTTPServer(addr string, handler *auth.AuthHandler, db pinger, logger *zap.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           newRouter(handler, db, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

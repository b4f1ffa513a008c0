package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/AntonTsoy/authgate/internal/auth"
	"github.com/AntonTsoy/authgate/internal/db"
	"github.com/AntonTsoy/authgate/internal/email"
	"github.com/AntonTsoy/authgate/internal/obs"
	"github.com/AntonTsoy/authgate/internal/token"
	"github.com/AntonTsoy/authgate/internal/user"
	"github.com/AntonTsoy/authgate/pkg/config"
	"go.uber.org/zap"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("ENV_FILE"))
	if err != nil {
		panic(err)
	}

	logger, err := obs.NewLogger(obs.LogConfig{Level: cfg.LogLevel, Pretty: cfg.LogPretty, App: "authgate"})
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	pg, err := db.NewPostgresDB(rootCtx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pg.Close()

	if err := db.Migrate(rootCtx, pg); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	issuer := token.NewIssuer(token.NewPostgresLedger(pg), token.Config{
		Secret:     []byte(cfg.JWTSecret),
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	svc := auth.NewService(
		user.NewPostgresRepository(pg),
		issuer,
		email.NewLogSender(logger.Named("email")),
		auth.Options{
			RotateRefreshTokens:    cfg.RotateRefreshTokens,
			BlacklistAfterRotation: cfg.BlacklistAfterRotation,
		},
		logger.Named("auth"),
	)
	handler := auth.NewAuthHandler(svc, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, logger)

	srv := buildHTTPServer(cfg.ListenAddr, handler, pg, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.ListenAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", zap.Error(err))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	logger.Info("bye")
}

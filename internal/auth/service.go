package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/AntonTsoy/authgate/internal/email"
	"github.com/AntonTsoy/authgate/internal/token"
	"github.com/AntonTsoy/authgate/internal/user"
	"go.uber.org/zap"
)

var (
	ErrUnauthorized = errors.New("authentication credentials were not provided or are invalid")
	ErrForbidden    = errors.New("you do not have permission to perform this action")
)

type Options struct {
	// RotateRefreshTokens makes Refresh hand out a new refresh token too.
	RotateRefreshTokens bool
	// BlacklistAfterRotation revokes the presented refresh token when a
	// rotated one is issued.
	BlacklistAfterRotation bool
}

type Service struct {
	verifier *user.Verifier
	users    user.Repository
	issuer   *token.Issuer
	notifier email.Sender
	opts     Options
	log      *zap.Logger
}

func NewService(users user.Repository, issuer *token.Issuer, notifier email.Sender, opts Options, log *zap.Logger) *Service {
	return &Service{
		verifier: user.NewVerifier(users),
		users:    users,
		issuer:   issuer,
		notifier: notifier,
		opts:     opts,
		log:      log,
	}
}

// Login verifies credentials and issues a token pair. No token is minted
// and nothing is recorded when verification fails.
func (s *Service) Login(ctx context.Context, username, password string) (*token.Pair, *user.User, error) {
	u, err := s.verifier.Verify(ctx, username, password)
	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			s.log.Info("login rejected", zap.String("username", username))
		}
		return nil, nil, err
	}

	pair, err := s.issuer.IssuePair(ctx, u)
	if err != nil {
		return nil, nil, fmt.Errorf("issue token pair: %w", err)
	}
	s.log.Info("login", zap.String("username", u.Username), zap.String("role", string(u.Role)))
	return pair, u, nil
}

// Authenticate resolves a bearer access token to an active user.
func (s *Service) Authenticate(ctx context.Context, raw string) (*user.User, error) {
	claims, err := s.issuer.Parse(raw, token.TypeAccess)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	u, err := s.users.GetByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown subject", ErrUnauthorized)
		}
		return nil, fmt.Errorf("resolve principal: %w", err)
	}
	if !u.IsActive {
		return nil, fmt.Errorf("%w: user is inactive", ErrUnauthorized)
	}
	return u, nil
}

// Logout blacklists the principal's refresh token. Token problems are
// reported as token.ErrInvalidToken; anything else is an internal failure.
func (s *Service) Logout(ctx context.Context, principal *user.User, raw, clientIP string) error {
	claims, err := s.issuer.ParseRefresh(ctx, raw)
	if err != nil {
		s.warnOnReuse(raw, clientIP, err)
		return err
	}
	if claims.Subject != principal.Username {
		s.log.Warn("logout with foreign refresh token",
			zap.String("principal", principal.Username),
			zap.String("subject", claims.Subject),
		)
		return fmt.Errorf("%w: token belongs to another user", token.ErrInvalidToken)
	}

	if err := s.issuer.Revoke(ctx, claims); err != nil {
		if errors.Is(err, token.ErrNotFound) {
			s.log.Warn("blacklist of unknown token id", zap.String("jti", claims.ID))
			return fmt.Errorf("%w: %w", token.ErrInvalidToken, err)
		}
		return err
	}
	s.log.Info("logout", zap.String("username", principal.Username))
	return nil
}

// Refresh exchanges a live refresh token for a new access token, and for a
// new refresh token when rotation is enabled.
func (s *Service) Refresh(ctx context.Context, raw, clientIP string) (*token.Pair, error) {
	claims, err := s.issuer.ParseRefresh(ctx, raw)
	if err != nil {
		s.warnOnReuse(raw, clientIP, err)
		return nil, err
	}

	u, err := s.users.GetByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown subject", token.ErrInvalidToken)
		}
		return nil, fmt.Errorf("resolve subject: %w", err)
	}
	if !u.IsActive {
		return nil, fmt.Errorf("%w: user is inactive", token.ErrInvalidToken)
	}

	// The presented token is revoked before anything new is minted, so
	// concurrent refreshes with one token yield a single rotation.
	rotate := s.opts.RotateRefreshTokens
	if rotate && s.opts.BlacklistAfterRotation {
		if err := s.issuer.Revoke(ctx, claims); err != nil {
			if errors.Is(err, token.ErrTokenBlacklisted) {
				s.log.Warn("refresh token already rotated",
					zap.String("username", claims.Subject),
					zap.String("jti", claims.ID),
					zap.String("client_ip", clientIP),
				)
			}
			return nil, err
		}
	}

	access, err := s.issuer.IssueAccess(u)
	if err != nil {
		return nil, err
	}
	pair := &token.Pair{Access: access}
	if rotate {
		if pair.Refresh, err = s.issuer.IssueRefresh(ctx, u); err != nil {
			return nil, err
		}
	}
	return pair, nil
}

// Verify checks signature and expiry of either token type. Refresh tokens
// must also be live in the ledger.
func (s *Service) Verify(ctx context.Context, raw string) error {
	claims, err := s.issuer.Parse(raw, "")
	if err != nil {
		return err
	}
	if claims.TokenType == token.TypeRefresh {
		_, err = s.issuer.ParseRefresh(ctx, raw)
	}
	return err
}

func (s *Service) warnOnReuse(raw, clientIP string, err error) {
	if !errors.Is(err, token.ErrTokenBlacklisted) {
		return
	}
	claims, perr := s.issuer.Parse(raw, token.TypeRefresh)
	if perr != nil {
		return
	}
	s.log.Warn("revoked refresh token presented",
		zap.String("username", claims.Subject),
		zap.String("jti", claims.ID),
		zap.String("client_ip", clientIP),
	)
	go s.notifier.SendRevokedTokenWarning(claims.Subject, clientIP)
}

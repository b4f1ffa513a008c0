package email

import (
	"go.uber.org/zap"
)

// Sender delivers security notices to the account owner.
type Sender interface {
	SendRevokedTokenWarning(username, clientIP string)
}

// LogSender writes notices to the service log in place of a mail relay.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) SendRevokedTokenWarning(username, clientIP string) {
	s.log.Warn("email notification: revoked refresh token presented",
		zap.String("username", username),
		zap.String("client_ip", clientIP),
	)
}

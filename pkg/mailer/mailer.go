package mailer

import (
	"context"

	"go.uber.org/zap"
)

// Message is a plain outbound notification.
type Message struct {
	ToName    string
	ToAddress string
	Subject   string
	TextBody  string
	HTMLBody  string
}

// Sender delivers a single message. Implementations are best-effort: callers
// never await delivery and treat failures as log-only events.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log instead of delivering them. Used when
// outbound mail is disabled (development, tests).
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender constructs a log-only sender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Send logs the message and succeeds.
func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("mail suppressed",
		zap.String("to", msg.ToAddress),
		zap.String("subject", msg.Subject),
	)
	return nil
}

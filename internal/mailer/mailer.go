// Package mailer is the delivery boundary for templated notifications. The
// engine renders the notification; a Sender gets it out of the process.
package mailer

import (
	"context"

	"github.com/rs/zerolog"
)

// Message is one rendered notification. HTML is empty when the template has no
// HTML counterpart.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a rendered notification. Delivery is synchronous: the caller
// treats the trigger as processed only after Send returns.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes notifications to the structured log instead of delivering
// them. The default sender when no delivery URLs are configured.
type LogSender struct {
	log zerolog.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.log.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Bool("html", msg.HTML != "").
		Msg("notification (log-only delivery)")
	return nil
}

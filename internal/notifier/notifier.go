// Package notifier delivers result notifications to candidates.
package notifier

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// ErrNotConfigured is returned by DisabledSender.
var ErrNotConfigured = errors.New("notifier: no mail transport configured")

// Message is one outbound email. HTML is optional.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a Message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// DisabledSender stands in when SMTP is not configured. Every send fails so
// callers count it as undelivered.
type DisabledSender struct {
	log zerolog.Logger
}

// NewDisabledSender creates a new DisabledSender.
func NewDisabledSender(log zerolog.Logger) *DisabledSender {
	return &DisabledSender{log: log.With().Str("component", "notifier").Logger()}
}

func (s *DisabledSender) Send(_ context.Context, msg Message) error {
	s.log.Debug().Str("to", msg.To).Str("subject", msg.Subject).Msg("Email skipped, SMTP disabled")
	return ErrNotConfigured
}

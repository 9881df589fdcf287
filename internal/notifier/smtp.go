package notifier

import (
	"context"

	"github.com/go-gomail/gomail"
	"github.com/stemsi/exstem-assess/internal/config"
)

// SMTPSender sends mail through gomail.
type SMTPSender struct {
	from   string
	dialer *gomail.Dialer
	// transport overrides dialing, used in tests.
	transport gomail.Sender
}

// NewSMTPSender dials cfg.Host for every message.
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// NewSMTPSenderWithTransport sends through an already open transport.
func NewSMTPSenderWithTransport(from string, transport gomail.Sender) *SMTPSender {
	return &SMTPSender{from: from, transport: transport}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}

	if s.transport != nil {
		return gomail.Send(s.transport, m)
	}
	return s.dialer.DialAndSend(m)
}

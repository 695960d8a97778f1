package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// Dialer opens an SMTP connection.
type Dialer func() (gomail.SendCloser, error)

// SMTPSender delivers over SMTP. Each Send dials a new connection.
type SMTPSender struct {
	config Config
	dial   Dialer
}

// NewSMTPSender creates an SMTP sender. Port 465 or SMTPImplicitTLS selects
// implicit TLS; any other port uses STARTTLS when the server offers it.
func NewSMTPSender(cfg Config) (*SMTPSender, error) {
	if cfg.SMTPHost == "" {
		return nil, fmt.Errorf("%w: SMTPHost is required", ErrInvalidConfig)
	}
	if err := validateSender(cfg.SenderEmail); err != nil {
		return nil, err
	}

	d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	d.SSL = cfg.SMTPImplicitTLS || cfg.SMTPPort == 465
	d.TLSConfig = &tls.Config{ServerName: cfg.SMTPHost, MinVersion: tls.VersionTLS12}

	return &SMTPSender{config: cfg, dial: d.Dial}, nil
}

// WithDialer replaces the connection factory.
func (s *SMTPSender) WithDialer(dial Dialer) *SMTPSender {
	if dial != nil {
		s.dial = dial
	}
	return s
}

// Send implements Sender. The generated Message-ID is returned as the
// provider message id.
func (s *SMTPSender) Send(ctx context.Context, msg Message) (Result, error) {
	msg = msg.normalize(s.config)
	if err := msg.Validate(); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, errors.Join(ErrFailedToSendEmail, err)
	}

	id := fmt.Sprintf("<%s@%s>", uuid.NewString(), domainOf(msg.From))

	m := gomail.NewMessage()
	m.SetHeader("From", msg.fromHeader())
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", id)
	if msg.ReplyTo != "" {
		m.SetHeader("Reply-To", msg.ReplyTo)
	}
	if msg.Tag != "" {
		m.SetHeader("X-Tag", msg.Tag)
	}
	switch {
	case msg.TextBody != "" && msg.HTMLBody != "":
		m.SetBody("text/plain", msg.TextBody)
		m.AddAlternative("text/html", msg.HTMLBody)
	case msg.HTMLBody != "":
		m.SetBody("text/html", msg.HTMLBody)
	default:
		m.SetBody("text/plain", msg.TextBody)
	}

	conn, err := s.dial()
	if err != nil {
		return Result{}, errors.Join(ErrFailedToSendEmail, fmt.Errorf("dial smtp: %w", err))
	}
	defer conn.Close()

	if err := gomail.Send(conn, m); err != nil {
		return Result{}, errors.Join(ErrFailedToSendEmail, err)
	}
	return Result{MessageID: id}, nil
}

func domainOf(address string) string {
	if i := strings.LastIndex(address, "@"); i >= 0 && i < len(address)-1 {
		return address[i+1:]
	}
	return "localhost"
}

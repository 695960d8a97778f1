package email

import (
	"context"
	"fmt"
	"maps"
	"net/mail"
	"strconv"
	"strings"
)

// Sender sends a single email and returns the provider message id.
type Sender interface {
	Send(ctx context.Context, msg Message) (Result, error)
}

// StatusChecker is implemented by senders that can report delivery state
// for a previously returned message id.
type StatusChecker interface {
	Status(ctx context.Context, messageID string) (Status, error)
}

// Status is a provider-neutral delivery state.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusBounced   Status = "bounced"
)

// Message is one outbound email. From and ReplyTo default to the sender's
// configuration.
type Message struct {
	From     string
	FromName string
	To       string
	ReplyTo  string
	Subject  string
	HTMLBody string
	TextBody string
	Tag      string
	Metadata map[string]string
}

// Result identifies the accepted message.
type Result struct {
	MessageID string
}

// maxSubjectLength is the RFC 5322 line length limit.
const maxSubjectLength = 998

// Validate checks required fields and the recipient address.
func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("%w: recipient is required", ErrInvalidParams)
	}
	if _, err := mail.ParseAddress(m.To); err != nil {
		return fmt.Errorf("%w: invalid recipient %q", ErrInvalidParams, m.To)
	}
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidParams)
	}
	if m.HTMLBody == "" && m.TextBody == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidParams)
	}
	return nil
}

// normalize fills defaults from cfg and truncates the subject.
func (m Message) normalize(cfg Config) Message {
	if m.From == "" {
		m.From = cfg.SenderEmail
	}
	if m.FromName == "" {
		m.FromName = cfg.SenderName
	}
	if m.ReplyTo == "" {
		m.ReplyTo = cfg.SupportEmail
	}
	m.Subject = truncateRunes(strings.ReplaceAll(m.Subject, "\n", " "), maxSubjectLength)
	m.Metadata = maps.Clone(m.Metadata)
	return m
}

func (m Message) fromHeader() string {
	if m.FromName == "" {
		return m.From
	}
	return (&mail.Address{Name: m.FromName, Address: m.From}).String()
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func validateSender(address string) error {
	if address == "" {
		return fmt.Errorf("%w: sender email is required", ErrInvalidConfig)
	}
	if _, err := mail.ParseAddress(address); err != nil {
		return fmt.Errorf("%w: sender email must be a valid email address", ErrInvalidConfig)
	}
	return nil
}

// New builds the sender selected by cfg.Provider.
func New(cfg Config) (Sender, error) {
	switch cfg.Provider {
	case ProviderPostmark, "":
		return NewPostmarkSender(cfg)
	case ProviderSMTP:
		return NewSMTPSender(cfg)
	case ProviderDev:
		return NewDevSender(cfg.DevOutputDir), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// FromCredentials builds a sender from a tenant's channel credentials.
// Values missing from creds are taken from base.
func FromCredentials(creds map[string]string, base Config) (Sender, error) {
	cfg := base
	set := func(dst *string, key string) {
		if v := creds[key]; v != "" {
			*dst = v
		}
	}
	var provider string
	set(&provider, CredProvider)
	if provider != "" {
		cfg.Provider = Provider(provider)
	}
	set(&cfg.PostmarkServerToken, CredPostmarkServerToken)
	set(&cfg.PostmarkAccountToken, CredPostmarkAccountToken)
	set(&cfg.SMTPHost, CredSMTPHost)
	set(&cfg.SMTPUsername, CredSMTPUsername)
	set(&cfg.SMTPPassword, CredSMTPPassword)
	set(&cfg.SenderEmail, CredSenderEmail)
	set(&cfg.SenderName, CredSenderName)
	set(&cfg.SupportEmail, CredReplyTo)
	if p := creds[CredSMTPPort]; p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid smtp port %q", ErrInvalidConfig, p)
		}
		cfg.SMTPPort = port
	}
	if provider == "" && creds[CredSMTPHost] != "" && creds[CredPostmarkServerToken] == "" {
		cfg.Provider = ProviderSMTP
	}
	return New(cfg)
}

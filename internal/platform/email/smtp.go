// Package email delivers the email channel over SMTP.
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"

	"github.com/tinywideclouds/go-notification-gateway/pkg/dispatch"
	"github.com/tinywideclouds/go-notification-gateway/pkg/notification"
)

const providerName = "smtp"

// Mailer is the subset of *mail.Client used by the adapter.
type Mailer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Config holds the SMTP relay settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// Encryption is one of "ssl_tls", "starttls" or "none".
	Encryption string
}

// Option customises an Adapter.
type Option func(*Adapter)

// WithMailer replaces the SMTP client, mostly for tests.
func WithMailer(m Mailer) Option {
	return func(a *Adapter) {
		if m != nil {
			a.newMailer = func() (Mailer, error) { return m, nil }
		}
	}
}

// Adapter sends EmailPayloads through an SMTP relay.
type Adapter struct {
	cfg       Config
	newMailer func() (Mailer, error)
	logger    *slog.Logger
}

// NewAdapter creates an SMTP adapter. A client is created per send, as the
// relay connection is not kept open between notifications.
func NewAdapter(cfg Config, logger *slog.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		cfg:    cfg,
		logger: logger.With("component", "SMTPAdapter"),
	}
	a.newMailer = a.dialer
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

func (a *Adapter) dialer() (Mailer, error) {
	opts := []mail.Option{
		mail.WithPort(a.cfg.Port),
		mail.WithTLSPolicy(tlsPolicyFromEncryption(a.cfg.Encryption)),
	}
	if a.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(a.cfg.Username),
			mail.WithPassword(a.cfg.Password),
		)
	}
	return mail.NewClient(a.cfg.Host, opts...)
}

// Send delivers the payload as a single message addressed to all recipients.
func (a *Adapter) Send(ctx context.Context, payload notification.ChannelPayload) (*notification.ProviderResult, error) {
	p, ok := payload.(*notification.EmailPayload)
	if !ok || p == nil {
		return nil, &dispatch.ValidationError{Field: "email", Reason: fmt.Sprintf("unexpected payload %T", payload)}
	}
	if len(p.Recipients) == 0 {
		return nil, &dispatch.ValidationError{Field: "email.recipients", Reason: "at least one recipient is required"}
	}

	m, err := a.buildMessage(p)
	if err != nil {
		return nil, err
	}

	mailer, err := a.newMailer()
	if err != nil {
		return nil, &dispatch.ProviderError{Provider: providerName, Err: fmt.Errorf("failed to create mail client: %w", err)}
	}

	if err := mailer.DialAndSendWithContext(ctx, m); err != nil {
		return nil, &dispatch.ProviderError{Provider: providerName, Code: sendErrorCode(err), Err: err}
	}

	messageID := m.GetMessageID()
	a.logger.Debug("Email handed to relay", "message_id", messageID, "recipients", len(p.Recipients))
	return &notification.ProviderResult{
		Provider:  providerName,
		MessageID: messageID,
		Status:    "sent",
	}, nil
}

func (a *Adapter) buildMessage(p *notification.EmailPayload) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(a.cfg.From); err != nil {
		return nil, &dispatch.ValidationError{Field: "smtp.from", Reason: err.Error()}
	}
	if err := m.To(p.Recipients...); err != nil {
		return nil, &dispatch.ValidationError{Field: "email.recipients", Reason: err.Error()}
	}
	m.Subject(p.Subject)
	if p.HTML {
		m.SetBodyString(mail.TypeTextHTML, p.Body)
	} else {
		m.SetBodyString(mail.TypeTextPlain, p.Body)
	}
	m.SetMessageID()
	return m, nil
}

func sendErrorCode(err error) string {
	var se *mail.SendError
	if errors.As(err, &se) {
		if se.IsTemp() {
			return "SMTP_TEMPORARY_FAILURE"
		}
		return "SMTP_PERMANENT_FAILURE"
	}
	return ""
}

func tlsPolicyFromEncryption(enc string) mail.TLSPolicy {
	switch enc {
	case "ssl_tls":
		return mail.TLSMandatory
	case "starttls":
		return mail.TLSOpportunistic
	default:
		return mail.NoTLS
	}
}

// Package smtp отправляет письма RedCajeros через SMTP-сервер с STARTTLS.
package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/mail"
	"net/smtp"
	"time"

	"github.com/magabrotheeeer/redcajeros/internal/config"
)

const (
	defaultDialTimeout = 10 * time.Second
	sessionTimeout     = 30 * time.Second
)

var (
	// ErrNoRecipients письмо без получателей.
	ErrNoRecipients = errors.New("message has no recipients")
	// ErrNoStartTLS сервер не поддерживает STARTTLS.
	ErrNoStartTLS = errors.New("smtp server does not support STARTTLS")
)

// Client команды SMTP-сессии, которых достаточно для отправки одного письма.
// *smtp.Client удовлетворяет интерфейсу.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// Dialer открывает готовую к отправке SMTP-сессию.
type Dialer func(ctx context.Context) (Client, error)

// Transport отправляет письма по одному соединению на письмо.
type Transport struct {
	cfg         config.SMTP
	log         *slog.Logger
	dial        Dialer
	dialTimeout time.Duration
	now         func() time.Time
}

// NewTransport создаёт транспорт для сервера из cfg.
func NewTransport(cfg config.SMTP, log *slog.Logger) *Transport {
	t := &Transport{
		cfg:         cfg,
		log:         log,
		dialTimeout: defaultDialTimeout,
		now:         time.Now,
	}
	t.dial = t.connect
	return t
}

// WithDialer подменяет установку соединения.
func (t *Transport) WithDialer(dial Dialer) *Transport {
	t.dial = dial
	return t
}

// From возвращает адрес отправителя: smtp.from или пользователя SMTP.
func (t *Transport) From() string {
	if t.cfg.From != "" {
		return t.cfg.From
	}
	return t.cfg.SMTPUser
}

// Send отправляет письмо. Срок ctx ограничивает всю SMTP-сессию.
func (t *Transport) Send(ctx context.Context, msg Message) error {
	const op = "smtp.Send"

	if len(msg.To) == 0 {
		return fmt.Errorf("%s: %w", op, ErrNoRecipients)
	}
	if msg.From == "" {
		msg.From = t.From()
	}

	client, err := t.dial(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = client.Close() }()

	sender := envelopeAddress(msg.From)
	if err := client.Mail(sender); err != nil {
		return fmt.Errorf("%s: mail from %s: %w", op, sender, err)
	}
	for _, rcpt := range msg.To {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("%s: rcpt %s: %w", op, rcpt, err)
		}
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("%s: data: %w", op, err)
	}
	if _, err := wc.Write(msg.Bytes(t.now())); err != nil {
		_ = wc.Close()
		return fmt.Errorf("%s: write body: %w", op, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("%s: close body: %w", op, err)
	}
	if err := client.Quit(); err != nil {
		return fmt.Errorf("%s: quit: %w", op, err)
	}

	t.log.Debug("email handed to smtp server", slog.Any("to", msg.To), slog.String("subject", msg.Subject))
	return nil
}

// envelopeAddress возвращает адрес без отображаемого имени для MAIL FROM.
func envelopeAddress(from string) string {
	if a, err := mail.ParseAddress(from); err == nil {
		return a.Address
	}
	return from
}

func (t *Transport) connect(ctx context.Context) (Client, error) {
	addr := net.JoinHostPort(t.cfg.SMTPHost, t.cfg.SMTPPort)

	d := net.Dialer{Timeout: t.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(sessionTimeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	client, err := smtp.NewClient(conn, t.cfg.SMTPHost)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("smtp handshake: %w", err)
	}

	if ok, _ := client.Extension("STARTTLS"); !ok {
		_ = client.Close()
		return nil, ErrNoStartTLS
	}
	tlsConfig := &tls.Config{
		ServerName: t.cfg.SMTPHost,
		MinVersion: tls.VersionTLS12,
	}
	if err := client.StartTLS(tlsConfig); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("start tls: %w", err)
	}

	if t.cfg.SMTPUser != "" {
		auth := smtp.PlainAuth("", t.cfg.SMTPUser, t.cfg.SMTPPass, t.cfg.SMTPHost)
		if err := client.Auth(auth); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("smtp auth: %w", err)
		}
	}
	return client, nil
}

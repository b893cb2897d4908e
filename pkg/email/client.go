// Package email sends transactional mail over SMTP and renders the
// receipt and notice templates.
package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/Alijeyrad/karsaz_backend/config"
)

const (
	defaultSMTPTimeout = 30 * time.Second
	implicitTLSPort    = 465
)

type Message struct {
	To       []string
	CC       []string
	BCC      []string
	Subject  string
	TextBody string
	HTMLBody string
	Headers  map[string]string
}

type Client struct {
	cfg    config.EmailConfig
	dialer *gomail.Dialer
}

func NewFromCentral(cfg config.EmailConfig) (*Client, error) {
	if cfg.Enabled {
		if strings.TrimSpace(cfg.From) == "" {
			return nil, fmt.Errorf("email: from address is required")
		}
		if cfg.SMTP.Host == "" {
			return nil, fmt.Errorf("email: smtp host is required")
		}
	}

	d := gomail.NewDialer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password)
	// Port 465 speaks TLS from the first byte; other ports upgrade with
	// STARTTLS when the server offers it.
	d.SSL = cfg.SMTP.UseTLS && cfg.SMTP.Port == implicitTLSPort
	d.TLSConfig = &tls.Config{ServerName: cfg.SMTP.Host, MinVersion: tls.VersionTLS12}

	return &Client{cfg: cfg, dialer: d}, nil
}

func (c *Client) timeout() time.Duration {
	if c.cfg.SMTP.TimeoutSeconds <= 0 {
		return defaultSMTPTimeout
	}
	return time.Duration(c.cfg.SMTP.TimeoutSeconds) * time.Second
}

// Send delivers m, giving up at the SMTP timeout or when ctx ends,
// whichever comes first.
func (c *Client) Send(ctx context.Context, m Message) error {
	if !c.cfg.Enabled {
		return ErrDisabled
	}
	msg, err := buildMessage(c.cfg.From, m)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.dialer.DialAndSend(msg) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send: %w", ctx.Err())
	}
}

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidMessage, reason)
}

func buildMessage(from string, m Message) (*gomail.Message, error) {
	from = strings.TrimSpace(from)
	if from == "" {
		return nil, invalid("from is required")
	}
	to := cleanAddrs(m.To)
	if len(to) == 0 {
		return nil, invalid("at least one recipient is required")
	}
	subject := strings.TrimSpace(m.Subject)
	if subject == "" {
		return nil, invalid("subject is required")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", to...)
	if cc := cleanAddrs(m.CC); len(cc) > 0 {
		msg.SetHeader("Cc", cc...)
	}
	if bcc := cleanAddrs(m.BCC); len(bcc) > 0 {
		msg.SetHeader("Bcc", bcc...)
	}
	msg.SetHeader("Subject", subject)
	for k, v := range m.Headers {
		if k, v = strings.TrimSpace(k), strings.TrimSpace(v); k != "" && v != "" {
			msg.SetHeader(k, v)
		}
	}

	text, htm := strings.TrimSpace(m.TextBody) != "", strings.TrimSpace(m.HTMLBody) != ""
	switch {
	case text && htm:
		msg.SetBody("text/plain", m.TextBody)
		msg.AddAlternative("text/html", m.HTMLBody)
	case htm:
		msg.SetBody("text/html", m.HTMLBody)
	case text:
		msg.SetBody("text/plain", m.TextBody)
	default:
		return nil, invalid("a text or html body is required")
	}
	return msg, nil
}

func cleanAddrs(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

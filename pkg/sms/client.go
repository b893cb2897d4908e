// Package sms sends short escrow notices to professionals through sms.ir
// ultra-fast templates.
package sms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/arsmn/go-smsir/smsir"

	"github.com/Alijeyrad/karsaz_backend/config"
)

// messageParam is the template variable the notice text is bound to.
const messageParam = "message"

// maxNoticeRunes keeps a notice inside one multi-part SMS.
const maxNoticeRunes = 300

var (
	ErrMissingAPIKey = errors.New("sms: api key required when enabled")
	ErrInvalidNotice = errors.New("sms: invalid notice")
)

type sendFunc func(ctx context.Context, req *smsir.UltraFastSendRequest) error

// Client is a no-op when SMS is disabled.
type Client struct {
	send     sendFunc
	template string
}

func NewFromConfig(cfg config.SMSConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{}, nil
	}
	if cfg.SMSIR.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	api := smsir.NewClient().WithAuthentication(cfg.SMSIR.APIKey, cfg.SMSIR.SecretKey)

	tpl := cfg.SMSIR.NoticeTemplateID
	if tpl == "" {
		tpl = cfg.SMSIR.TemplateID
	}

	return &Client{
		template: tpl,
		send: func(ctx context.Context, req *smsir.UltraFastSendRequest) error {
			_, err := api.Verification.UltraFastSend(ctx, req)
			return err
		},
	}, nil
}

func (c *Client) IsEnabled() bool { return c.send != nil }

// SendNotice delivers message to phoneNumber through the notice template.
// Long messages are cut at maxNoticeRunes.
func (c *Client) SendNotice(ctx context.Context, phoneNumber, message string) error {
	if !c.IsEnabled() {
		return nil
	}

	req, err := c.noticeRequest(phoneNumber, message)
	if err != nil {
		return err
	}
	if err := c.send(ctx, req); err != nil {
		return fmt.Errorf("sms.ir send: %w", err)
	}
	return nil
}

func (c *Client) noticeRequest(phoneNumber, message string) (*smsir.UltraFastSendRequest, error) {
	phoneNumber = strings.TrimSpace(phoneNumber)
	message = strings.TrimSpace(message)

	var problems []string
	if phoneNumber == "" {
		problems = append(problems, "phone number is empty")
	}
	if c.template == "" {
		problems = append(problems, "no notice template configured")
	}
	if message == "" {
		problems = append(problems, "message is empty")
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidNotice, strings.Join(problems, ", "))
	}

	return &smsir.UltraFastSendRequest{
		Mobile:     phoneNumber,
		TemplateID: c.template,
		Parameters: []smsir.UltraFastParameter{
			{Key: messageParam, Value: truncate(message, maxNoticeRunes)},
		},
	}, nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

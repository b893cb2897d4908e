// Package stripepay wraps the Stripe API calls used by the escrow flow:
// payment intents, connected-account transfers, refunds and webhook
// verification.
package stripepay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/Alijeyrad/karsaz_backend/config"
)

// Client is a thin typed facade over stripe-go's client.API.
type Client struct {
	cfg Config
	api *client.API
}

// NewFromCentral creates a client from central config.
func NewFromCentral(cfg config.StripeConfig) *Client {
	return New(FromCentralConfig(cfg))
}

// New returns a client. Without a secret key every API call fails with
// ErrNotConfigured; webhook parsing still requires WebhookSecret.
func New(cfg Config) *Client {
	c := &Client{cfg: cfg}
	if cfg.SecretKey == "" {
		return c
	}

	backends := stripe.NewBackendsWithConfig(&stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout()},
		MaxNetworkRetries: stripe.Int64(cfg.MaxNetworkRetries),
	})
	c.api = &client.API{}
	c.api.Init(cfg.SecretKey, backends)
	return c
}

// Currency is the lower-case ISO code used for every charge.
func (c *Client) Currency() string { return c.cfg.Currency }

// ---------------------------------------------------------------------------
// Payment intents
// ---------------------------------------------------------------------------

type IntentParams struct {
	AmountCents    int64
	Description    string
	Metadata       map[string]string
	IdempotencyKey string
}

type Intent struct {
	ID           string
	ClientSecret string
	Status       string
}

func (c *Client) CreatePaymentIntent(ctx context.Context, in IntentParams) (*Intent, error) {
	if c.api == nil {
		return nil, ErrNotConfigured
	}

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(in.AmountCents),
		Currency:           stripe.String(c.cfg.Currency),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Description:        stripe.String(in.Description),
	}
	params.Context = ctx
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}

	pi, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return nil, classify("create payment intent", err)
	}
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret, Status: string(pi.Status)}, nil
}

func (c *Client) CancelPaymentIntent(ctx context.Context, intentID string) error {
	if c.api == nil {
		return ErrNotConfigured
	}

	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	if _, err := c.api.PaymentIntents.Cancel(intentID, params); err != nil {
		return classify("cancel payment intent", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Transfers and refunds
// ---------------------------------------------------------------------------

type TransferParams struct {
	AmountCents    int64
	Destination    string
	Metadata       map[string]string
	IdempotencyKey string
}

// CreateTransfer moves funds from the platform balance to a connected account
// and returns the transfer id.
func (c *Client) CreateTransfer(ctx context.Context, in TransferParams) (string, error) {
	if c.api == nil {
		return "", ErrNotConfigured
	}

	params := &stripe.TransferParams{
		Amount:      stripe.Int64(in.AmountCents),
		Currency:    stripe.String(c.cfg.Currency),
		Destination: stripe.String(in.Destination),
	}
	params.Context = ctx
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}

	tr, err := c.api.Transfers.New(params)
	if err != nil {
		return "", classify("create transfer", err)
	}
	return tr.ID, nil
}

type RefundParams struct {
	PaymentIntentID string
	Metadata        map[string]string
	IdempotencyKey  string
}

// CreateRefund refunds the full captured amount of a payment intent and
// returns the refund id.
func (c *Client) CreateRefund(ctx context.Context, in RefundParams) (string, error) {
	if c.api == nil {
		return "", ErrNotConfigured
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(in.PaymentIntentID),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}

	rf, err := c.api.Refunds.New(params)
	if err != nil {
		return "", classify("create refund", err)
	}
	return rf.ID, nil
}

// ---------------------------------------------------------------------------
// Webhooks
// ---------------------------------------------------------------------------

// Event is the subset of a Stripe webhook event the escrow flow reacts to.
type Event struct {
	ID   string
	Type string

	// payment_intent.*
	IntentID      string
	PaymentMethod string
	ChargeID      string

	// account.updated
	AccountID      string
	ChargesEnabled bool
	DisabledReason string

	Raw []byte
}

// ParseEvent verifies the Stripe-Signature header against the raw body and
// decodes the object the event carries.
func (c *Client) ParseEvent(payload []byte, signature string) (*Event, error) {
	if c.cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("%w: webhook secret not configured", ErrSignature)
	}

	ev, err := webhook.ConstructEventWithOptions(payload, signature, c.cfg.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignature, err)
	}

	return decodeEvent(ev)
}

func decodeEvent(ev stripe.Event) (*Event, error) {
	out := &Event{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data == nil {
		return out, nil
	}
	out.Raw = ev.Data.Raw

	switch ev.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed", "payment_intent.canceled":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent: %w", err)
		}
		out.IntentID = pi.ID
		if len(pi.PaymentMethodTypes) > 0 {
			out.PaymentMethod = pi.PaymentMethodTypes[0]
		}
		if pi.LatestCharge != nil {
			out.ChargeID = pi.LatestCharge.ID
		}
	case "account.updated":
		var acct stripe.Account
		if err := json.Unmarshal(ev.Data.Raw, &acct); err != nil {
			return nil, fmt.Errorf("decode account: %w", err)
		}
		out.AccountID = acct.ID
		out.ChargesEnabled = acct.ChargesEnabled
		if acct.Requirements != nil {
			out.DisabledReason = string(acct.Requirements.DisabledReason)
		}
	}

	return out, nil
}

// ToCents converts a decimal amount to the smallest currency unit.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

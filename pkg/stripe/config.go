package stripepay

import (
	"strings"
	"time"

	"github.com/Alijeyrad/karsaz_backend/config"
)

// Config holds Stripe credentials and transport limits.
type Config struct {
	SecretKey         string
	WebhookSecret     string
	Currency          string
	TimeoutSeconds    int
	MaxNetworkRetries int64
}

func DefaultConfig() Config {
	return Config{
		Currency:          "usd",
		TimeoutSeconds:    20,
		MaxNetworkRetries: 2,
	}
}

// Timeout bounds every HTTP call made to Stripe.
func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 20 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func FromCentralConfig(c config.StripeConfig) Config {
	cfg := DefaultConfig()
	cfg.SecretKey = strings.TrimSpace(c.SecretKey)
	cfg.WebhookSecret = strings.TrimSpace(c.WebhookSecret)
	if c.Currency != "" {
		cfg.Currency = strings.ToLower(c.Currency)
	}
	if c.TimeoutSeconds > 0 {
		cfg.TimeoutSeconds = c.TimeoutSeconds
	}
	if c.MaxNetworkRetries > 0 {
		cfg.MaxNetworkRetries = c.MaxNetworkRetries
	}
	return cfg
}

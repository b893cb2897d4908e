package config

import (
	"strings"
	"testing"

	"github.com/Alijeyrad/karsaz_backend/pkg/constants"
)

func percent(v float64) *float64 { return &v }

func validConfig() Config {
	return Config{
		Server: ServerConfig{Port: 8080, Environment: constants.EnvDevelopment},
		Pricing: PricingConfig{
			DefaultTaxPercentage:         percent(18),
			DefaultPlatformFeePercentage: percent(10),
		},
		Sweep: SweepConfig{Enabled: true, IntervalMinutes: 30},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid development config", mutate: func(c *Config) {}},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server.port",
		},
		{
			name:    "production without stripe key",
			mutate:  func(c *Config) { c.Server.Environment = "production" },
			wantErr: "stripe.secret_key",
		},
		{
			name: "production without webhook secret",
			mutate: func(c *Config) {
				c.Server.Environment = "production"
				c.Stripe.SecretKey = "sk_live_x"
			},
			wantErr: "stripe.webhook_secret",
		},
		{
			name: "production fully configured",
			mutate: func(c *Config) {
				c.Server.Environment = "production"
				c.Stripe.SecretKey = "sk_live_x"
				c.Stripe.WebhookSecret = "whsec_x"
			},
		},
		{
			name:    "tax over 100",
			mutate:  func(c *Config) { c.Pricing.DefaultTaxPercentage = percent(101) },
			wantErr: "default_tax_percentage",
		},
		{
			name:    "negative platform fee",
			mutate:  func(c *Config) { c.Pricing.DefaultPlatformFeePercentage = percent(-1) },
			wantErr: "default_platform_fee_percentage",
		},
		{
			name:   "zero tax and fee",
			mutate: func(c *Config) { c.Pricing.DefaultTaxPercentage, c.Pricing.DefaultPlatformFeePercentage = percent(0), percent(0) },
		},
		{
			name:   "pricing defaults unset",
			mutate: func(c *Config) { c.Pricing = PricingConfig{} },
		},
		{
			name:    "unsupported password algorithm",
			mutate:  func(c *Config) { c.Password.Algorithm = "bcrypt" },
			wantErr: "password.algorithm",
		},
		{
			name:   "argon2id spelled explicitly",
			mutate: func(c *Config) { c.Password.Algorithm = "Argon2id" },
		},
		{
			name:    "negative sweep interval",
			mutate:  func(c *Config) { c.Sweep.IntervalMinutes = -5 },
			wantErr: "sweep.interval_minutes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

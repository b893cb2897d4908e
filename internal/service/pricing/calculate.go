package pricing

import (
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)

	// MaxDuration is the largest booking length numeric(8,2) can hold.
	MaxDuration = decimal.RequireFromString("9999.99")
)

// ValidateDuration accepts 0 < d <= MaxDuration with at most two decimals,
// the precision the appointment row stores.
func ValidateDuration(d decimal.Decimal) error {
	if !d.IsPositive() || d.GreaterThan(MaxDuration) || !d.Equal(d.Round(2)) {
		return ErrInvalidDuration
	}
	return nil
}

// FeeConfig is the tax and platform fee snapshot a quote is priced with.
type FeeConfig struct {
	TaxPercentage         decimal.Decimal
	PlatformFeePercentage decimal.Decimal
}

// DefaultFeeConfig applies when no tax config row exists yet.
func DefaultFeeConfig() FeeConfig {
	return FeeConfig{
		TaxPercentage:         decimal.NewFromInt(8),
		PlatformFeePercentage: decimal.NewFromInt(10),
	}
}

func (c FeeConfig) Validate() error {
	if !validPercentage(c.TaxPercentage) || !validPercentage(c.PlatformFeePercentage) {
		return ErrInvalidPercentage
	}
	return nil
}

func validPercentage(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(hundred)
}

// Quote is a finalized price breakdown. Amounts carry exactly two decimals.
type Quote struct {
	HourlyRate            decimal.Decimal
	Duration              decimal.Decimal
	BasePrice             decimal.Decimal
	TaxPercentage         decimal.Decimal
	TaxAmount             decimal.Decimal
	PlatformFeePercentage decimal.Decimal
	PlatformFee           decimal.Decimal
	TotalPrice            decimal.Decimal
	ProfessionalEarnings  decimal.Decimal
}

// Calculate prices hourlyRate*duration under cfg.
//
// Intermediate products are exact. Each component is rounded half-up to
// cents once, and total and earnings are derived from the rounded parts, so
// total == base+fee+tax and earnings+fee == base hold to the cent.
func Calculate(hourlyRate, duration decimal.Decimal, cfg FeeConfig) (Quote, error) {
	if err := ValidateDuration(duration); err != nil {
		return Quote{}, err
	}
	if !hourlyRate.IsPositive() {
		return Quote{}, ErrRateNotSet
	}
	if err := cfg.Validate(); err != nil {
		return Quote{}, err
	}

	base := hourlyRate.Mul(duration)
	fee := base.Mul(cfg.PlatformFeePercentage).Div(hundred)
	tax := base.Mul(cfg.TaxPercentage).Div(hundred)

	base = base.Round(2)
	fee = fee.Round(2)
	tax = tax.Round(2)

	return Quote{
		HourlyRate:            hourlyRate,
		Duration:              duration,
		BasePrice:             base,
		TaxPercentage:         cfg.TaxPercentage,
		TaxAmount:             tax,
		PlatformFeePercentage: cfg.PlatformFeePercentage,
		PlatformFee:           fee,
		TotalPrice:            base.Add(fee).Add(tax),
		ProfessionalEarnings:  base.Sub(fee),
	}, nil
}

package stripepay

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/stripe/stripe-go/v79"
)

var (
	ErrNotConfigured  = errors.New("stripe: secret key not configured")
	ErrCardDeclined   = errors.New("stripe: card declined")
	ErrInvalidRequest = errors.New("stripe: invalid request")
	ErrUnavailable    = errors.New("stripe: service unavailable")
	ErrSignature      = errors.New("stripe: invalid webhook signature")
)

// classify maps a stripe-go error onto the package sentinels while keeping
// the original message in the chain.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var se *stripe.Error
	if errors.As(err, &se) {
		switch se.Type {
		case stripe.ErrorTypeCard:
			return fmt.Errorf("%s: %w: %s", op, ErrCardDeclined, se.Msg)
		case stripe.ErrorTypeInvalidRequest, stripe.ErrorTypeIdempotency:
			return fmt.Errorf("%s: %w: %s", op, ErrInvalidRequest, se.Msg)
		default:
			return fmt.Errorf("%s: %w: %s", op, ErrUnavailable, se.Msg)
		}
	}

	var ne net.Error
	if errors.As(err, &ne) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}

	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}

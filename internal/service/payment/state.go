package payment

import (
	"fmt"

	"github.com/Alijeyrad/karsaz_backend/internal/repo"
)

// Event drives a payment from one status to the next.
type Event string

const (
	EventIntentSucceeded Event = "intent_succeeded"
	EventIntentFailed    Event = "intent_failed"
	EventIntentCanceled  Event = "intent_canceled"
	EventCancel          Event = "cancel"
	EventApprove         Event = "approve"
	EventRelease         Event = "release"
	EventRefund          Event = "refund"
	EventDispute         Event = "dispute"
	EventResolveRefund   Event = "resolve_refund"
	EventResolveRelease  Event = "resolve_release"
)

// transitions is the complete escrow state machine. Anything not listed is
// rejected.
var transitions = map[repo.PaymentStatus]map[Event]repo.PaymentStatus{
	repo.PaymentPending: {
		EventIntentSucceeded: repo.PaymentPaid,
		EventIntentFailed:    repo.PaymentFailed,
		EventIntentCanceled:  repo.PaymentCancelled,
		EventCancel:          repo.PaymentCancelled,
	},
	repo.PaymentPaid: {
		EventApprove: repo.PaymentPaid,
		EventRelease: repo.PaymentReleased,
		EventRefund:  repo.PaymentRefunded,
		EventDispute: repo.PaymentDisputed,
	},
	repo.PaymentDisputed: {
		EventResolveRefund:  repo.PaymentRefunded,
		EventResolveRelease: repo.PaymentReleased,
	},
}

// Next returns the status ev leads to from from, or ErrStatusConflict.
func Next(from repo.PaymentStatus, ev Event) (repo.PaymentStatus, error) {
	if to, ok := transitions[from][ev]; ok {
		return to, nil
	}
	return "", fmt.Errorf("%w: %s from %s", ErrStatusConflict, ev, from)
}

// IsTerminal reports whether no event can leave status.
func IsTerminal(status repo.PaymentStatus) bool {
	return len(transitions[status]) == 0
}

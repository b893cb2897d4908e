package payment

import (
	"errors"
	"testing"

	"github.com/Alijeyrad/karsaz_backend/internal/repo"
)

var allStatuses = []repo.PaymentStatus{
	repo.PaymentPending,
	repo.PaymentPaid,
	repo.PaymentReleased,
	repo.PaymentRefunded,
	repo.PaymentDisputed,
	repo.PaymentCancelled,
	repo.PaymentFailed,
}

var allEvents = []Event{
	EventIntentSucceeded,
	EventIntentFailed,
	EventIntentCanceled,
	EventCancel,
	EventApprove,
	EventRelease,
	EventRefund,
	EventDispute,
	EventResolveRefund,
	EventResolveRelease,
}

func TestNextAllowed(t *testing.T) {
	tests := []struct {
		from repo.PaymentStatus
		ev   Event
		want repo.PaymentStatus
	}{
		{repo.PaymentPending, EventIntentSucceeded, repo.PaymentPaid},
		{repo.PaymentPending, EventIntentFailed, repo.PaymentFailed},
		{repo.PaymentPending, EventIntentCanceled, repo.PaymentCancelled},
		{repo.PaymentPending, EventCancel, repo.PaymentCancelled},
		{repo.PaymentPaid, EventApprove, repo.PaymentPaid},
		{repo.PaymentPaid, EventRelease, repo.PaymentReleased},
		{repo.PaymentPaid, EventRefund, repo.PaymentRefunded},
		{repo.PaymentPaid, EventDispute, repo.PaymentDisputed},
		{repo.PaymentDisputed, EventResolveRefund, repo.PaymentRefunded},
		{repo.PaymentDisputed, EventResolveRelease, repo.PaymentReleased},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.ev), func(t *testing.T) {
			got, err := Next(tt.from, tt.ev)
			if err != nil {
				t.Fatalf("Next() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Next() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTerminalStatesRejectEverything(t *testing.T) {
	terminal := []repo.PaymentStatus{
		repo.PaymentReleased,
		repo.PaymentRefunded,
		repo.PaymentCancelled,
		repo.PaymentFailed,
	}
	for _, status := range terminal {
		if !IsTerminal(status) {
			t.Errorf("IsTerminal(%s) = false", status)
		}
		for _, ev := range allEvents {
			if _, err := Next(status, ev); !errors.Is(err, ErrStatusConflict) {
				t.Errorf("Next(%s, %s) error = %v, want ErrStatusConflict", status, ev, err)
			}
		}
	}
}

func TestOnlyTableTransitionsSucceed(t *testing.T) {
	allowed := 0
	for _, from := range allStatuses {
		for _, ev := range allEvents {
			if _, err := Next(from, ev); err == nil {
				allowed++
			}
		}
	}
	if allowed != 10 {
		t.Errorf("%d transitions allowed, want 10", allowed)
	}

	if _, err := Next(repo.PaymentPending, EventRelease); !errors.Is(err, ErrStatusConflict) {
		t.Errorf("release from pending should conflict, got %v", err)
	}
	if _, err := Next(repo.PaymentDisputed, EventRelease); !errors.Is(err, ErrStatusConflict) {
		t.Errorf("plain release of a disputed payment should conflict, got %v", err)
	}
	if _, err := Next(repo.PaymentDisputed, EventDispute); !errors.Is(err, ErrStatusConflict) {
		t.Errorf("second dispute should conflict, got %v", err)
	}
}

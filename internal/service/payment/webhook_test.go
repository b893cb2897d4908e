package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijeyrad/karsaz_backend/internal/repo"
)

func TestWebhookSucceededIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.open(t)

	ev := ProcessorEvent{
		ID:            "evt_1",
		Type:          TypeIntentSucceeded,
		IntentID:      p.PaymentIntentID,
		PaymentMethod: "card",
		ChargeID:      "ch_123",
		Raw:           []byte(`{"id":"pi"}`),
	}
	require.NoError(t, f.svc.HandleProcessorEvent(ctx, ev))
	require.NoError(t, f.svc.HandleProcessorEvent(ctx, ev))

	// A different delivery of the same outcome is also a no-op.
	ev.ID = "evt_2"
	require.NoError(t, f.svc.HandleProcessorEvent(ctx, ev))

	got, err := f.store.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, repo.PaymentPaid, got.Status)
	require.NotNil(t, got.PaymentMethod)
	assert.Equal(t, "card", *got.PaymentMethod)
	require.NotNil(t, got.TransactionID)
	assert.Equal(t, "ch_123", *got.TransactionID)

	assert.Equal(t, []string{"initiated", "paid"}, f.pub.actions(), "exactly one paid event")

	seen, err := f.store.ProcessorEventSeen(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestWebhookFailedAndCanceled(t *testing.T) {
	tests := []struct {
		name string
		typ  string
		want repo.PaymentStatus
	}{
		{"payment failed", TypeIntentFailed, repo.PaymentFailed},
		{"intent canceled", TypeIntentCanceled, repo.PaymentCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			p := f.open(t)

			require.NoError(t, f.svc.HandleProcessorEvent(ctx, ProcessorEvent{
				ID:       "evt_" + tt.typ,
				Type:     tt.typ,
				IntentID: p.PaymentIntentID,
			}))

			got, err := f.store.GetPayment(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)

			// A late success must not revive a terminal payment, and the
			// captured funds go back to the client exactly once.
			late := ProcessorEvent{
				ID:       "evt_late",
				Type:     TypeIntentSucceeded,
				IntentID: p.PaymentIntentID,
			}
			require.NoError(t, f.svc.HandleProcessorEvent(ctx, late))
			late.ID = "evt_late_again"
			require.NoError(t, f.svc.HandleProcessorEvent(ctx, late))

			got, err = f.store.GetPayment(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)
			require.NotNil(t, got.RefundID)
			require.Len(t, f.proc.refunds, 1)
			assert.Equal(t, "refund-"+p.ID.String(), f.proc.refunds[0].IdempotencyKey)
			assert.Empty(t, f.proc.transfers)
		})
	}
}

func TestWebhookCapturedAfterCancelRefunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.open(t)

	_, err := f.svc.Cancel(ctx, f.clientActor(), p.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.HandleProcessorEvent(ctx, ProcessorEvent{
		ID:       "evt_captured",
		Type:     TypeIntentSucceeded,
		IntentID: p.PaymentIntentID,
		ChargeID: "ch_late",
	}))

	got, err := f.store.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, repo.PaymentCancelled, got.Status)
	require.NotNil(t, got.RefundID)
	assert.NotNil(t, got.RefundedAt)
	assert.Len(t, f.proc.refunds, 1)
	assert.Equal(t, []string{"initiated", "cancelled", "refunded"}, f.pub.actions())
}

func TestWebhookCapturedForCancelledAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.open(t)

	// The booking is cancelled while the intent is still in flight.
	_, err := f.store.TransitionAppointment(ctx, p.AppointmentID,
		[]repo.AppointmentStatus{repo.AppointmentPending}, repo.AppointmentCancelled, time.Now().UTC())
	require.NoError(t, err)

	require.NoError(t, f.svc.HandleProcessorEvent(ctx, ProcessorEvent{
		ID:       "evt_paid",
		Type:     TypeIntentSucceeded,
		IntentID: p.PaymentIntentID,
	}))

	got, err := f.store.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, repo.PaymentRefunded, got.Status)
	assert.Len(t, f.proc.refunds, 1)
	assert.Empty(t, f.proc.transfers)
}

func TestWebhookCapturedRefundFailureRedelivers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.open(t)

	_, err := f.svc.Cancel(ctx, f.clientActor(), p.ID)
	require.NoError(t, err)

	f.proc.failRefund = errors.New("processor down")
	ev := ProcessorEvent{ID: "evt_captured", Type: TypeIntentSucceeded, IntentID: p.PaymentIntentID}
	require.Error(t, f.svc.HandleProcessorEvent(ctx, ev))

	seen, err := f.store.ProcessorEventSeen(ctx, ev.ID)
	require.NoError(t, err)
	assert.False(t, seen, "failed reconciliation must not be recorded")

	f.proc.failRefund = nil
	require.NoError(t, f.svc.HandleProcessorEvent(ctx, ev))
	got, err := f.store.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.RefundID)
	assert.Len(t, f.proc.refunds, 1)
}

func TestWebhookUnknownIntentAndType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.NoError(t, f.svc.HandleProcessorEvent(ctx, ProcessorEvent{
		ID:       "evt_unknown_intent",
		Type:     TypeIntentSucceeded,
		IntentID: "pi_missing",
	}))
	assert.NoError(t, f.svc.HandleProcessorEvent(ctx, ProcessorEvent{
		ID:   "evt_other",
		Type: "charge.refunded",
	}))
	assert.Empty(t, f.pub.actions())
}

func TestWebhookAccountUpdated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.HandleProcessorEvent(ctx, ProcessorEvent{
		ID:             "evt_acct_1",
		Type:           TypeAccountUpdated,
		AccountID:      "acct_pro_1",
		ChargesEnabled: true,
	}))

	pro, err := f.store.GetUser(ctx, f.pro.ID)
	require.NoError(t, err)
	assert.Equal(t, repo.PayoutEnabled, pro.PayoutStatus)
	assert.True(t, pro.IdentityVerified)

	require.NoError(t, f.svc.HandleProcessorEvent(ctx, ProcessorEvent{
		ID:             "evt_acct_2",
		Type:           TypeAccountUpdated,
		AccountID:      "acct_pro_1",
		ChargesEnabled: false,
		DisabledReason: "requirements.past_due",
	}))
	pro, err = f.store.GetUser(ctx, f.pro.ID)
	require.NoError(t, err)
	assert.Equal(t, repo.PayoutPending, pro.PayoutStatus)
	assert.False(t, pro.IdentityVerified)

	assert.NoError(t, f.svc.HandleProcessorEvent(ctx, ProcessorEvent{
		ID:        "evt_acct_3",
		Type:      TypeAccountUpdated,
		AccountID: "acct_unknown",
	}))
}

package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"

	"github.com/Alijeyrad/karsaz_backend/internal/repo"
	"github.com/Alijeyrad/karsaz_backend/internal/service/actor"
	"github.com/Alijeyrad/karsaz_backend/pkg/crypto"
)

// Processor event types the reconciler reacts to.
const (
	TypeIntentSucceeded = "payment_intent.succeeded"
	TypeIntentFailed    = "payment_intent.payment_failed"
	TypeIntentCanceled  = "payment_intent.canceled"
	TypeAccountUpdated  = "account.updated"
)

// ProcessorEvent is an already authenticated processor notification.
type ProcessorEvent struct {
	ID   string
	Type string

	IntentID      string
	PaymentMethod string
	ChargeID      string

	AccountID      string
	ChargesEnabled bool
	DisabledReason string

	Raw []byte
}

// HandleProcessorEvent reconciles local state with the processor. Business
// mismatches (unknown intent, payment already moved on) are logged and
// succeed; only infrastructure failures return an error so the processor
// redelivers.
func (s *paymentService) HandleProcessorEvent(ctx context.Context, ev ProcessorEvent) error {
	if ev.ID != "" {
		seen, err := s.store.ProcessorEventSeen(ctx, ev.ID)
		if err != nil {
			return fmt.Errorf("check processor event: %w", err)
		}
		if seen {
			slog.DebugContext(ctx, "processor event already handled", "event_id", ev.ID)
			return nil
		}
	}

	var err error
	switch ev.Type {
	case TypeIntentSucceeded:
		upd := repo.PaymentUpdate{}
		if ev.PaymentMethod != "" {
			upd.PaymentMethod = &ev.PaymentMethod
		}
		txID := ev.ChargeID
		if txID == "" {
			txID = ev.IntentID
		}
		upd.TransactionID = &txID
		err = s.applyIntentEvent(ctx, ev, EventIntentSucceeded, "paid", upd)
	case TypeIntentFailed:
		err = s.applyIntentEvent(ctx, ev, EventIntentFailed, "failed", repo.PaymentUpdate{})
	case TypeIntentCanceled:
		err = s.applyIntentEvent(ctx, ev, EventIntentCanceled, "cancelled", repo.PaymentUpdate{})
	case TypeAccountUpdated:
		err = s.applyAccountEvent(ctx, ev)
	default:
		slog.InfoContext(ctx, "ignoring processor event", "event_id", ev.ID, "type", ev.Type)
	}
	if err != nil {
		return err
	}

	if ev.ID == "" {
		return nil
	}
	payload := datatypes.JSON(ev.Raw)
	if len(payload) == 0 {
		payload = datatypes.JSON("{}")
	}
	if _, err := s.store.RecordProcessorEvent(ctx, &repo.ProcessorEvent{
		EventID:     ev.ID,
		Type:        ev.Type,
		Payload:     payload,
		ProcessedAt: time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("record processor event: %w", err)
	}
	return nil
}

func (s *paymentService) applyIntentEvent(ctx context.Context, ev ProcessorEvent, pe Event, action string, upd repo.PaymentUpdate) error {
	p, err := s.store.GetPaymentByIntent(ctx, ev.IntentID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			slog.WarnContext(ctx, "processor event for unknown intent", "event_id", ev.ID, "intent_id", ev.IntentID)
			return nil
		}
		return fmt.Errorf("get payment by intent: %w", err)
	}

	unlock, err := s.locker.Lock(ctx, lockKey(p.ID), lockTTL)
	if err != nil {
		return fmt.Errorf("lock payment: %w", err)
	}
	defer unlock()

	if p, err = s.store.GetPayment(ctx, p.ID); err != nil {
		return fmt.Errorf("get payment: %w", err)
	}

	to, err := Next(p.Status, pe)
	if err != nil {
		slog.InfoContext(ctx, "processor event does not apply",
			"event_id", ev.ID, "payment_id", p.ID, "status", p.Status, "type", ev.Type)
		if pe == EventIntentSucceeded {
			return s.settleCaptured(ctx, ev, p)
		}
		return nil
	}

	out, err := s.store.TransitionPayment(ctx, p.ID, p.Status, to, upd)
	if err != nil {
		if errors.Is(err, repo.ErrStaleState) {
			slog.InfoContext(ctx, "payment moved before processor event applied", "event_id", ev.ID, "payment_id", p.ID)
			return nil
		}
		return fmt.Errorf("transition payment: %w", err)
	}

	s.transitioned(ctx, actor.SystemActor(), p.Status, out)
	s.publish(ctx, action, out, out.ClientID, "")
	if pe == EventIntentSucceeded {
		return s.settleCaptured(ctx, ev, out)
	}
	return nil
}

// settleCaptured returns funds the processor captured for a booking that no
// longer wants them: a payment already cancelled or failed locally, or a
// paid one whose appointment was cancelled. Callers hold the payment lock.
// Errors make the processor redeliver.
func (s *paymentService) settleCaptured(ctx context.Context, ev ProcessorEvent, p *repo.Payment) error {
	if p.RefundID != nil {
		return nil
	}

	switch p.Status {
	case repo.PaymentCancelled, repo.PaymentFailed:
		slog.ErrorContext(ctx, "funds captured on voided payment, refunding",
			"event_id", ev.ID, "payment_id", p.ID, "status", p.Status)
		refundID, err := s.refund(ctx, p)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		out, err := s.store.TransitionPayment(ctx, p.ID, p.Status, p.Status, repo.PaymentUpdate{
			RefundID:   &refundID,
			RefundedAt: &now,
		})
		if err != nil {
			return fmt.Errorf("record refund: %w", err)
		}
		s.publish(ctx, "refunded", out, out.ClientID, "captured after void")
		return nil

	case repo.PaymentPaid:
		appt, err := s.store.GetAppointment(ctx, p.AppointmentID)
		if err != nil {
			return fmt.Errorf("get appointment: %w", err)
		}
		if appt.Status != repo.AppointmentCancelled {
			return nil
		}
		slog.WarnContext(ctx, "payment captured for cancelled appointment, refunding",
			"event_id", ev.ID, "payment_id", p.ID, "appointment_id", appt.ID)
		if _, err := s.refundLocked(ctx, actor.SystemActor(), p.ID); err != nil && !errors.Is(err, ErrStatusConflict) {
			return err
		}
		return nil
	}
	return nil
}

func (s *paymentService) applyAccountEvent(ctx context.Context, ev ProcessorEvent) error {
	if ev.AccountID == "" {
		return nil
	}
	status := repo.PayoutPending
	if ev.ChargesEnabled {
		status = repo.PayoutEnabled
	}
	found, err := s.store.UpdatePayoutStatusByAccount(ctx, crypto.Hash(ev.AccountID), status, ev.DisabledReason == "")
	if err != nil {
		return fmt.Errorf("update payout status: %w", err)
	}
	if !found {
		slog.WarnContext(ctx, "account event for unknown payout account", "event_id", ev.ID)
		return nil
	}
	slog.InfoContext(ctx, "payout account updated", "event_id", ev.ID, "payout_status", status)
	return nil
}

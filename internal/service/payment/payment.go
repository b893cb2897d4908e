package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/karsaz_backend/internal/repo"
	"github.com/Alijeyrad/karsaz_backend/internal/service/actor"
	"github.com/Alijeyrad/karsaz_backend/pkg/constants"
	"github.com/Alijeyrad/karsaz_backend/pkg/crypto"
	"github.com/Alijeyrad/karsaz_backend/pkg/events"
	"github.com/Alijeyrad/karsaz_backend/pkg/observability"
	stripepay "github.com/Alijeyrad/karsaz_backend/pkg/stripe"
)

const lockTTL = 30 * time.Second

func lockKey(paymentID uuid.UUID) string { return constants.RedisPaymentLockPrefix + paymentID.String() }

func appointmentLockKey(appointmentID uuid.UUID) string {
	return "lock:appointment-payment:" + appointmentID.String()
}

// ---------------------------------------------------------------------------
// Dependencies
// ---------------------------------------------------------------------------

type Store interface {
	GetUser(ctx context.Context, id uuid.UUID) (*repo.User, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*repo.Appointment, error)

	CreatePayment(ctx context.Context, p *repo.Payment) error
	GetPayment(ctx context.Context, id uuid.UUID) (*repo.Payment, error)
	GetPaymentByAppointment(ctx context.Context, appointmentID uuid.UUID) (*repo.Payment, error)
	GetPaymentByIntent(ctx context.Context, intentID string) (*repo.Payment, error)
	ListPayments(ctx context.Context, f repo.PaymentFilter) ([]repo.Payment, int64, error)
	TransitionPayment(ctx context.Context, id uuid.UUID, from, to repo.PaymentStatus, upd repo.PaymentUpdate) (*repo.Payment, error)
	SetClientApproval(ctx context.Context, id uuid.UUID, at time.Time) (*repo.Payment, error)

	OpenDispute(ctx context.Context, d *repo.Dispute) (*repo.Payment, error)
	LatestDispute(ctx context.Context, paymentID uuid.UUID) (*repo.Dispute, error)
	ReviewDispute(ctx context.Context, id uuid.UUID, at time.Time) (*repo.Dispute, error)
	ResolveDispute(ctx context.Context, r repo.DisputeResolution) (*repo.Dispute, *repo.Payment, error)

	ProcessorEventSeen(ctx context.Context, eventID string) (bool, error)
	RecordProcessorEvent(ctx context.Context, ev *repo.ProcessorEvent) (bool, error)
	UpdatePayoutStatusByAccount(ctx context.Context, accountHash string, status repo.PayoutStatus, verified bool) (bool, error)
}

// Processor is the card processor. *stripepay.Client implements it.
type Processor interface {
	CreatePaymentIntent(ctx context.Context, in stripepay.IntentParams) (*stripepay.Intent, error)
	CancelPaymentIntent(ctx context.Context, intentID string) error
	CreateTransfer(ctx context.Context, in stripepay.TransferParams) (string, error)
	CreateRefund(ctx context.Context, in stripepay.RefundParams) (string, error)
	Currency() string
}

// Locker serializes processor-calling transitions on one payment.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

type Publisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

// Details is a payment with its most recent dispute, if any.
type Details struct {
	Payment *repo.Payment
	Dispute *repo.Dispute
}

type ListFilter struct {
	Status  *repo.PaymentStatus
	Page    int
	PerPage int
}

type DisputeRequest struct {
	Message  string
	Evidence []string
}

type ResolveRequest struct {
	Resolution   string
	RefundClient bool
}

// PersistFunc stores a freshly opened payment. Appointment creation passes
// one that writes the appointment and the payment in one transaction.
type PersistFunc func(ctx context.Context, p *repo.Payment) error

// GuardFunc runs under the payment lock. p is nil when the appointment has
// no payment.
type GuardFunc func(ctx context.Context, p *repo.Payment) error

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	// Open creates the processor intent first and persists second. If
	// persist fails the intent is cancelled and no row is left behind.
	Open(ctx context.Context, appt *repo.Appointment, persist PersistFunc) (*repo.Payment, error)
	CreateIntent(ctx context.Context, act actor.Actor, appointmentID uuid.UUID) (*repo.Payment, error)

	Get(ctx context.Context, act actor.Actor, id uuid.UUID) (*Details, error)
	List(ctx context.Context, act actor.Actor, f ListFilter) ([]repo.Payment, int64, error)

	Approve(ctx context.Context, act actor.Actor, id uuid.UUID) (*repo.Payment, error)
	Release(ctx context.Context, act actor.Actor, id uuid.UUID) (*repo.Payment, error)
	Refund(ctx context.Context, act actor.Actor, id uuid.UUID) (*repo.Payment, error)
	Cancel(ctx context.Context, act actor.Actor, id uuid.UUID) (*repo.Payment, error)
	// VoidForAppointment settles the payment of a cancelled or rejected
	// appointment: pending payments are cancelled, paid ones refunded.
	VoidForAppointment(ctx context.Context, act actor.Actor, appointmentID uuid.UUID) (*repo.Payment, error)
	// GuardAppointment runs fn while holding the lock every fund-moving
	// transition of the appointment's payment takes.
	GuardAppointment(ctx context.Context, appointmentID uuid.UUID, fn GuardFunc) error

	CreateDispute(ctx context.Context, act actor.Actor, id uuid.UUID, req DisputeRequest) (*repo.Dispute, error)
	ReviewDispute(ctx context.Context, act actor.Actor, id uuid.UUID) (*repo.Dispute, error)
	ResolveDispute(ctx context.Context, act actor.Actor, id uuid.UUID, req ResolveRequest) (*Details, error)

	HandleProcessorEvent(ctx context.Context, ev ProcessorEvent) error
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type paymentService struct {
	store   Store
	proc    Processor
	locker  Locker
	pub     Publisher
	metrics *observability.EscrowMetrics
	encKey  []byte
}

func New(store Store, proc Processor, locker Locker, pub Publisher, metrics *observability.EscrowMetrics, encKey []byte) Service {
	return &paymentService{
		store:   store,
		proc:    proc,
		locker:  locker,
		pub:     pub,
		metrics: metrics,
		encKey:  encKey,
	}
}

// ---------------------------------------------------------------------------
// Open / CreateIntent
// ---------------------------------------------------------------------------

func (s *paymentService) Open(ctx context.Context, appt *repo.Appointment, persist PersistFunc) (*repo.Payment, error) {
	ctx, span := s.metrics.Start(ctx, "payment.open")
	defer span.End()

	if _, err := s.payoutAccount(ctx, appt.ProfessionalID); err != nil {
		return nil, err
	}

	intent, err := s.proc.CreatePaymentIntent(ctx, stripepay.IntentParams{
		AmountCents:    stripepay.ToCents(appt.TotalPrice),
		Description:    "Appointment " + appt.ID.String(),
		Metadata:       metadata(appt.ID, uuid.Nil, appt.ClientID, appt.ProfessionalID),
		IdempotencyKey: "intent-" + appt.ID.String(),
	})
	s.metrics.ProcessorCall(ctx, "create_intent", err)
	if err != nil {
		return nil, fmt.Errorf("%w: create intent: %v", ErrUpstream, err)
	}

	p := &repo.Payment{
		ID:                   uuid.Must(uuid.NewV7()),
		ClientID:             appt.ClientID,
		ProfessionalID:       appt.ProfessionalID,
		AppointmentID:        appt.ID,
		Amount:               appt.TotalPrice,
		PlatformFee:          appt.PlatformFee,
		TaxAmount:            appt.TaxAmount,
		ProfessionalEarnings: appt.ProfessionalEarnings,
		Currency:             s.proc.Currency(),
		PaymentIntentID:      intent.ID,
		ClientSecret:         intent.ClientSecret,
		Status:               repo.PaymentPending,
	}

	if err := persist(ctx, p); err != nil {
		// The same intent backs an existing row when a concurrent call won
		// the race; cancelling it would break that payment.
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %v", ErrAlreadyExists, err)
		}
		s.cancelIntent(intent.ID)
		return nil, fmt.Errorf("persist payment: %w", err)
	}

	s.metrics.Transition(ctx, "", string(repo.PaymentPending))
	s.publish(ctx, "initiated", p, uuid.Nil, "")
	slog.InfoContext(ctx, "payment opened",
		"payment_id", p.ID,
		"appointment_id", appt.ID,
		"amount", p.Amount.StringFixed(2),
	)
	return p, nil
}

func (s *paymentService) CreateIntent(ctx context.Context, act actor.Actor, appointmentID uuid.UUID) (*repo.Payment, error) {
	appt, err := s.store.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, notFoundOr(err, "get appointment")
	}
	if appt.ClientID != act.UserID {
		return nil, ErrForbidden
	}
	if appt.Status == repo.AppointmentCancelled || appt.Status == repo.AppointmentCompleted {
		return nil, fmt.Errorf("%w: appointment is %s", ErrStatusConflict, appt.Status)
	}

	unlock, err := s.locker.Lock(ctx, appointmentLockKey(appt.ID), lockTTL)
	if err != nil {
		return nil, fmt.Errorf("lock appointment: %w", err)
	}
	defer unlock()

	if appt, err = s.store.GetAppointment(ctx, appointmentID); err != nil {
		return nil, notFoundOr(err, "get appointment")
	}
	if appt.Status == repo.AppointmentCancelled || appt.Status == repo.AppointmentCompleted {
		return nil, fmt.Errorf("%w: appointment is %s", ErrStatusConflict, appt.Status)
	}

	existing, err := s.store.GetPaymentByAppointment(ctx, appt.ID)
	switch {
	case err == nil:
		if existing.Status == repo.PaymentPending {
			return existing, nil
		}
		return nil, ErrAlreadyExists
	case !errors.Is(err, repo.ErrNotFound):
		return nil, fmt.Errorf("get payment by appointment: %w", err)
	}

	return s.Open(ctx, appt, s.store.CreatePayment)
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

func (s *paymentService) Get(ctx context.Context, act actor.Actor, id uuid.UUID) (*Details, error) {
	p, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "get payment")
	}
	if !act.IsAdmin() && !p.IsParty(act.UserID) {
		return nil, ErrForbidden
	}

	out := &Details{Payment: p}
	d, err := s.store.LatestDispute(ctx, id)
	switch {
	case err == nil:
		out.Dispute = d
	case !errors.Is(err, repo.ErrNotFound):
		return nil, fmt.Errorf("latest dispute: %w", err)
	}
	return out, nil
}

func (s *paymentService) List(ctx context.Context, act actor.Actor, f ListFilter) ([]repo.Payment, int64, error) {
	rf := repo.PaymentFilter{Status: f.Status, Page: f.Page, PerPage: f.PerPage}
	if !act.IsAdmin() {
		rf.UserID = act.UserID
	}
	out, total, err := s.store.ListPayments(ctx, rf)
	if err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	return out, total, nil
}

// ---------------------------------------------------------------------------
// Transitions
// ---------------------------------------------------------------------------

func (s *paymentService) Approve(ctx context.Context, act actor.Actor, id uuid.UUID) (*repo.Payment, error) {
	p, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "get payment")
	}
	if p.ClientID != act.UserID {
		return nil, ErrForbidden
	}
	if _, err := Next(p.Status, EventApprove); err != nil {
		return nil, err
	}

	out, err := s.store.SetClientApproval(ctx, id, time.Now().UTC())
	if err != nil {
		return nil, conflictOr(err, "set client approval")
	}
	s.publish(ctx, "approved", out, act.UserID, "")
	return out, nil
}

func (s *paymentService) Release(ctx context.Context, act actor.Actor, id uuid.UUID) (*repo.Payment, error) {
	if !act.IsAdmin() {
		return nil, ErrForbidden
	}
	ctx, span := s.metrics.Start(ctx, "payment.release")
	defer span.End()

	unlock, err := s.locker.Lock(ctx, lockKey(id), lockTTL)
	if err != nil {
		return nil, fmt.Errorf("lock payment: %w", err)
	}
	defer unlock()

	p, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "get payment")
	}
	to, err := Next(p.Status, EventRelease)
	if err != nil {
		return nil, err
	}
	if err := s.requireLiveAppointment(ctx, p); err != nil {
		return nil, err
	}

	transferID, err := s.transfer(ctx, p)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out, err := s.store.TransitionPayment(ctx, id, p.Status, to, repo.PaymentUpdate{
		TransferID: &transferID,
		ReleasedAt: &now,
	})
	if err != nil {
		slog.ErrorContext(ctx, "transfer sent but payment not updated",
			"payment_id", id, "transfer_id", transferID, "error", err)
		return nil, conflictOr(err, "release payment")
	}

	s.transitioned(ctx, act, p.Status, out)
	s.publish(ctx, "released", out, act.UserID, "")
	return out, nil
}

func (s *paymentService) Refund(ctx context.Context, act actor.Actor, id uuid.UUID) (*repo.Payment, error) {
	if !act.IsAdmin() {
		return nil, ErrForbidden
	}
	ctx, span := s.metrics.Start(ctx, "payment.refund")
	defer span.End()

	unlock, err := s.locker.Lock(ctx, lockKey(id), lockTTL)
	if err != nil {
		return nil, fmt.Errorf("lock payment: %w", err)
	}
	defer unlock()

	return s.refundLocked(ctx, act, id)
}

func (s *paymentService) refundLocked(ctx context.Context, act actor.Actor, id uuid.UUID) (*repo.Payment, error) {
	p, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "get payment")
	}
	to, err := Next(p.Status, EventRefund)
	if err != nil {
		return nil, err
	}

	refundID, err := s.refund(ctx, p)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out, err := s.store.TransitionPayment(ctx, id, p.Status, to, repo.PaymentUpdate{
		RefundID:   &refundID,
		RefundedAt: &now,
	})
	if err != nil {
		slog.ErrorContext(ctx, "refund sent but payment not updated",
			"payment_id", id, "refund_id", refundID, "error", err)
		return nil, conflictOr(err, "refund payment")
	}

	s.transitioned(ctx, act, p.Status, out)
	s.publish(ctx, "refunded", out, act.UserID, "")
	return out, nil
}

func (s *paymentService) Cancel(ctx context.Context, act actor.Actor, id uuid.UUID) (*repo.Payment, error) {
	p, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "get payment")
	}
	if !act.IsAdmin() && p.ClientID != act.UserID {
		return nil, ErrForbidden
	}

	unlock, err := s.locker.Lock(ctx, lockKey(id), lockTTL)
	if err != nil {
		return nil, fmt.Errorf("lock payment: %w", err)
	}
	defer unlock()

	if p, err = s.store.GetPayment(ctx, id); err != nil {
		return nil, notFoundOr(err, "get payment")
	}
	return s.cancelPending(ctx, act, p)
}

func (s *paymentService) cancelPending(ctx context.Context, act actor.Actor, p *repo.Payment) (*repo.Payment, error) {
	to, err := Next(p.Status, EventCancel)
	if err != nil {
		return nil, err
	}

	out, err := s.store.TransitionPayment(ctx, p.ID, p.Status, to, repo.PaymentUpdate{})
	if err != nil {
		return nil, conflictOr(err, "cancel payment")
	}
	s.cancelIntent(out.PaymentIntentID)

	s.transitioned(ctx, act, p.Status, out)
	s.publish(ctx, "cancelled", out, act.UserID, "")
	return out, nil
}

func (s *paymentService) VoidForAppointment(ctx context.Context, act actor.Actor, appointmentID uuid.UUID) (*repo.Payment, error) {
	p, err := s.store.GetPaymentByAppointment(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment by appointment: %w", err)
	}

	unlock, err := s.locker.Lock(ctx, lockKey(p.ID), lockTTL)
	if err != nil {
		return nil, fmt.Errorf("lock payment: %w", err)
	}
	defer unlock()

	if p, err = s.store.GetPayment(ctx, p.ID); err != nil {
		return nil, notFoundOr(err, "get payment")
	}

	switch p.Status {
	case repo.PaymentPending:
		return s.cancelPending(ctx, act, p)
	case repo.PaymentPaid:
		return s.refundLocked(ctx, act, p.ID)
	case repo.PaymentCancelled, repo.PaymentRefunded, repo.PaymentFailed:
		return p, nil
	default:
		return nil, fmt.Errorf("%w: payment is %s", ErrStatusConflict, p.Status)
	}
}

func (s *paymentService) GuardAppointment(ctx context.Context, appointmentID uuid.UUID, fn GuardFunc) error {
	key := appointmentLockKey(appointmentID)
	p, err := s.store.GetPaymentByAppointment(ctx, appointmentID)
	switch {
	case err == nil:
		key = lockKey(p.ID)
	case errors.Is(err, repo.ErrNotFound):
		p = nil
	default:
		return fmt.Errorf("get payment by appointment: %w", err)
	}

	unlock, err := s.locker.Lock(ctx, key, lockTTL)
	if err != nil {
		return fmt.Errorf("lock payment: %w", err)
	}
	defer unlock()

	if p != nil {
		if p, err = s.store.GetPayment(ctx, p.ID); err != nil {
			return notFoundOr(err, "get payment")
		}
	}
	return fn(ctx, p)
}

// requireLiveAppointment refuses disputes and payouts once the booking is
// cancelled. Callers hold the payment lock.
func (s *paymentService) requireLiveAppointment(ctx context.Context, p *repo.Payment) error {
	appt, err := s.store.GetAppointment(ctx, p.AppointmentID)
	if err != nil {
		return fmt.Errorf("get appointment: %w", err)
	}
	if appt.Status == repo.AppointmentCancelled {
		return fmt.Errorf("%w: appointment is cancelled", ErrStatusConflict)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Processor helpers
// ---------------------------------------------------------------------------

// payoutAccount returns the decrypted connected account of a professional.
func (s *paymentService) payoutAccount(ctx context.Context, professionalID uuid.UUID) (string, error) {
	pro, err := s.store.GetUser(ctx, professionalID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrPayoutAccountMissing
		}
		return "", fmt.Errorf("get professional: %w", err)
	}
	if pro.PayoutAccountEnc == nil || *pro.PayoutAccountEnc == "" {
		return "", ErrPayoutAccountMissing
	}
	account, err := crypto.Decrypt(s.encKey, *pro.PayoutAccountEnc, pro.ID)
	if err != nil {
		return "", fmt.Errorf("decrypt payout account: %w", err)
	}
	return account, nil
}

func (s *paymentService) transfer(ctx context.Context, p *repo.Payment) (string, error) {
	destination, err := s.payoutAccount(ctx, p.ProfessionalID)
	if err != nil {
		return "", err
	}
	id, err := s.proc.CreateTransfer(ctx, stripepay.TransferParams{
		AmountCents:    stripepay.ToCents(p.ProfessionalEarnings),
		Destination:    destination,
		Metadata:       metadata(p.AppointmentID, p.ID, p.ClientID, p.ProfessionalID),
		IdempotencyKey: "transfer-" + p.ID.String(),
	})
	s.metrics.ProcessorCall(ctx, "transfer", err)
	if err != nil {
		return "", fmt.Errorf("%w: transfer: %v", ErrUpstream, err)
	}
	return id, nil
}

func (s *paymentService) refund(ctx context.Context, p *repo.Payment) (string, error) {
	id, err := s.proc.CreateRefund(ctx, stripepay.RefundParams{
		PaymentIntentID: p.PaymentIntentID,
		Metadata:        metadata(p.AppointmentID, p.ID, p.ClientID, p.ProfessionalID),
		IdempotencyKey:  "refund-" + p.ID.String(),
	})
	s.metrics.ProcessorCall(ctx, "refund", err)
	if err != nil {
		return "", fmt.Errorf("%w: refund: %v", ErrUpstream, err)
	}
	return id, nil
}

// cancelIntent is best-effort and detached from the request context.
func (s *paymentService) cancelIntent(intentID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := s.proc.CancelPaymentIntent(ctx, intentID)
	s.metrics.ProcessorCall(ctx, "cancel_intent", err)
	if err != nil {
		slog.Warn("cancel payment intent failed", "intent_id", intentID, "error", err)
	}
}

func metadata(appointmentID, paymentID, clientID, professionalID uuid.UUID) map[string]string {
	m := map[string]string{
		"appointment_id":  appointmentID.String(),
		"client_id":       clientID.String(),
		"professional_id": professionalID.String(),
	}
	if paymentID != uuid.Nil {
		m["payment_id"] = paymentID.String()
	}
	return m
}

// ---------------------------------------------------------------------------
// Bookkeeping
// ---------------------------------------------------------------------------

func (s *paymentService) transitioned(ctx context.Context, act actor.Actor, from repo.PaymentStatus, p *repo.Payment) {
	s.metrics.Transition(ctx, string(from), string(p.Status))
	slog.InfoContext(ctx, "payment transition",
		"payment_id", p.ID,
		"from", from,
		"to", p.Status,
		"request_id", act.RequestID,
	)
}

func (s *paymentService) publish(ctx context.Context, action string, p *repo.Payment, actorID uuid.UUID, note string) {
	if s.pub == nil {
		return
	}
	ev := events.Event{
		Entity:         events.EntityPayment,
		Action:         action,
		ID:             p.ID,
		AppointmentID:  p.AppointmentID,
		PaymentID:      p.ID,
		ClientID:       p.ClientID,
		ProfessionalID: p.ProfessionalID,
		ActorID:        actorID,
		Amount:         p.Amount.StringFixed(2),
		Note:           note,
		OccurredAt:     time.Now().UTC(),
	}
	if err := s.pub.Publish(ctx, ev); err != nil {
		slog.WarnContext(ctx, "publish payment event failed", "subject", ev.Subject(), "error", err)
	}
}

func notFoundOr(err error, op string) error {
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

// conflictOr maps a lost compare-and-set onto ErrStatusConflict.
func conflictOr(err error, op string) error {
	switch {
	case errors.Is(err, repo.ErrStaleState):
		return fmt.Errorf("%w: %v", ErrStatusConflict, err)
	case errors.Is(err, repo.ErrNotFound):
		return ErrNotFound
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

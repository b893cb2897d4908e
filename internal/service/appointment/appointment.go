package appointment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/karsaz_backend/internal/repo"
	"github.com/Alijeyrad/karsaz_backend/internal/service/actor"
	"github.com/Alijeyrad/karsaz_backend/internal/service/payment"
	"github.com/Alijeyrad/karsaz_backend/internal/service/pricing"
	"github.com/Alijeyrad/karsaz_backend/pkg/events"
)

// ---------------------------------------------------------------------------
// Dependencies
// ---------------------------------------------------------------------------

type Store interface {
	CountServicesOwnedBy(ctx context.Context, professionalID uuid.UUID, ids []uuid.UUID) (int64, error)
	CreateAppointmentWithPayment(ctx context.Context, a *repo.Appointment, p *repo.Payment) error
	GetAppointment(ctx context.Context, id uuid.UUID) (*repo.Appointment, error)
	ListAppointments(ctx context.Context, f repo.AppointmentFilter) ([]repo.Appointment, int64, error)
	TransitionAppointment(ctx context.Context, id uuid.UUID, from []repo.AppointmentStatus, to repo.AppointmentStatus, at time.Time) (*repo.Appointment, error)
	CompleteEndedAppointments(ctx context.Context, now time.Time) ([]repo.Appointment, error)
	GetPaymentByAppointment(ctx context.Context, appointmentID uuid.UUID) (*repo.Payment, error)
}

type Quoter interface {
	Quote(ctx context.Context, professionalID uuid.UUID, duration decimal.Decimal) (*pricing.Quote, error)
}

// Payments is the part of the payment service the lifecycle drives.
type Payments interface {
	Open(ctx context.Context, appt *repo.Appointment, persist payment.PersistFunc) (*repo.Payment, error)
	VoidForAppointment(ctx context.Context, act actor.Actor, appointmentID uuid.UUID) (*repo.Payment, error)
	GuardAppointment(ctx context.Context, appointmentID uuid.UUID, fn payment.GuardFunc) error
}

type Publisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type CreateRequest struct {
	ProfessionalID uuid.UUID
	ServiceIDs     []uuid.UUID
	ScheduledAt    time.Time
	Duration       decimal.Decimal
	Issue          string
	Location       string
	VehicleType    *string
}

type CreateResult struct {
	Appointment  *repo.Appointment
	Payment      *repo.Payment
	ClientSecret string
}

type ListRequest struct {
	Statuses []repo.AppointmentStatus
	Page     int
	PerPage  int
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	Create(ctx context.Context, act actor.Actor, req CreateRequest) (*CreateResult, error)
	Confirm(ctx context.Context, act actor.Actor, id uuid.UUID) (*repo.Appointment, error)
	Reject(ctx context.Context, act actor.Actor, id uuid.UUID) (*repo.Appointment, error)
	Cancel(ctx context.Context, act actor.Actor, id uuid.UUID) (*repo.Appointment, error)

	Get(ctx context.Context, act actor.Actor, id uuid.UUID) (*repo.Appointment, error)
	List(ctx context.Context, act actor.Actor, req ListRequest) ([]repo.Appointment, int64, error)
	History(ctx context.Context, act actor.Actor, page, perPage int) ([]repo.Appointment, int64, error)

	// AutoComplete completes every Confirmed appointment that ended before
	// now and returns how many it changed. Safe to run concurrently.
	AutoComplete(ctx context.Context, now time.Time) (int, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type appointmentService struct {
	store    Store
	quoter   Quoter
	payments Payments
	pub      Publisher
	now      func() time.Time
}

func New(store Store, quoter Quoter, payments Payments, pub Publisher) Service {
	return &appointmentService{
		store:    store,
		quoter:   quoter,
		payments: payments,
		pub:      pub,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func (s *appointmentService) Create(ctx context.Context, act actor.Actor, req CreateRequest) (*CreateResult, error) {
	if act.Role != repo.RoleClient {
		return nil, ErrForbidden
	}
	if err := s.validateCreate(ctx, act, &req); err != nil {
		return nil, err
	}

	q, err := s.quoter.Quote(ctx, req.ProfessionalID, req.Duration)
	if err != nil {
		return nil, err
	}

	ids := make(pq.StringArray, 0, len(req.ServiceIDs))
	for _, id := range req.ServiceIDs {
		ids = append(ids, id.String())
	}

	appt := &repo.Appointment{
		ID:                    uuid.Must(uuid.NewV7()),
		ClientID:              act.UserID,
		ProfessionalID:        req.ProfessionalID,
		ServiceIDs:            ids,
		ScheduledAt:           req.ScheduledAt.UTC(),
		DurationHours:         req.Duration,
		EndsAt:                req.ScheduledAt.UTC().Add(hours(req.Duration)),
		Issue:                 req.Issue,
		Location:              req.Location,
		VehicleType:           req.VehicleType,
		BasePrice:             q.BasePrice,
		TaxAmount:             q.TaxAmount,
		PlatformFee:           q.PlatformFee,
		TotalPrice:            q.TotalPrice,
		ProfessionalEarnings:  q.ProfessionalEarnings,
		TaxPercentage:         q.TaxPercentage,
		PlatformFeePercentage: q.PlatformFeePercentage,
		Status:                repo.AppointmentPending,
	}

	p, err := s.payments.Open(ctx, appt, func(ctx context.Context, p *repo.Payment) error {
		return s.store.CreateAppointmentWithPayment(ctx, appt, p)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "created", appt, act.UserID)
	slog.InfoContext(ctx, "appointment created",
		"appointment_id", appt.ID,
		"payment_id", p.ID,
		"total", appt.TotalPrice.StringFixed(2),
		"request_id", act.RequestID,
	)
	return &CreateResult{Appointment: appt, Payment: p, ClientSecret: p.ClientSecret}, nil
}

func (s *appointmentService) validateCreate(ctx context.Context, act actor.Actor, req *CreateRequest) error {
	req.Issue = strings.TrimSpace(req.Issue)
	req.Location = strings.TrimSpace(req.Location)

	switch {
	case req.ProfessionalID == uuid.Nil:
		return fmt.Errorf("%w: professionalId is required", ErrInvalidInput)
	case req.ProfessionalID == act.UserID:
		return fmt.Errorf("%w: cannot book yourself", ErrInvalidInput)
	case len(req.ServiceIDs) == 0:
		return fmt.Errorf("%w: at least one service is required", ErrInvalidInput)
	case pricing.ValidateDuration(req.Duration) != nil:
		return pricing.ErrInvalidDuration
	case req.ScheduledAt.IsZero() || !req.ScheduledAt.After(s.now()):
		return fmt.Errorf("%w: scheduledAt must be in the future", ErrInvalidInput)
	case req.Issue == "":
		return fmt.Errorf("%w: issue is required", ErrInvalidInput)
	case req.Location == "":
		return fmt.Errorf("%w: location is required", ErrInvalidInput)
	}

	unique := slices.Clone(req.ServiceIDs)
	slices.SortFunc(unique, func(a, b uuid.UUID) int { return strings.Compare(a.String(), b.String()) })
	unique = slices.Compact(unique)
	req.ServiceIDs = unique

	owned, err := s.store.CountServicesOwnedBy(ctx, req.ProfessionalID, unique)
	if err != nil {
		return fmt.Errorf("count services: %w", err)
	}
	if owned != int64(len(unique)) {
		return fmt.Errorf("%w: services must belong to the professional", ErrInvalidInput)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Transitions
// ---------------------------------------------------------------------------

func (s *appointmentService) Confirm(ctx context.Context, act actor.Actor, id uuid.UUID) (*repo.Appointment, error) {
	a, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.ProfessionalID != act.UserID {
		return nil, ErrForbidden
	}
	if a.Status == repo.AppointmentConfirmed {
		return a, nil
	}

	out, err := s.transition(ctx, id, []repo.AppointmentStatus{repo.AppointmentPending}, repo.AppointmentConfirmed)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, "confirmed", out, act.UserID)
	return out, nil
}

func (s *appointmentService) Reject(ctx context.Context, act actor.Actor, id uuid.UUID) (*repo.Appointment, error) {
	a, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.ProfessionalID != act.UserID {
		return nil, ErrForbidden
	}
	if a.Status == repo.AppointmentCancelled {
		return a, s.void(ctx, act, a)
	}

	out, err := s.cancel(ctx, id, repo.AppointmentPending)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, "cancelled", out, act.UserID)
	return out, s.void(ctx, act, out)
}

func (s *appointmentService) Cancel(ctx context.Context, act actor.Actor, id uuid.UUID) (*repo.Appointment, error) {
	a, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.ClientID != act.UserID && !act.IsAdmin() {
		return nil, ErrForbidden
	}
	if a.Status == repo.AppointmentCancelled {
		return a, s.void(ctx, act, a)
	}

	out, err := s.cancel(ctx, id, repo.AppointmentPending, repo.AppointmentConfirmed)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, "cancelled", out, act.UserID)
	return out, s.void(ctx, act, out)
}

func (s *appointmentService) AutoComplete(ctx context.Context, now time.Time) (int, error) {
	done, err := s.store.CompleteEndedAppointments(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("complete ended appointments: %w", err)
	}
	for i := range done {
		s.publish(ctx, "completed", &done[i], uuid.Nil)
	}
	if len(done) > 0 {
		slog.InfoContext(ctx, "appointments auto-completed", "count", len(done))
	}
	return len(done), nil
}

// cancel moves the appointment to Cancelled under the payment lock, so a
// release or dispute cannot slip in between the payment check and the
// write. Released or disputed funds block cancellation.
func (s *appointmentService) cancel(ctx context.Context, id uuid.UUID, from ...repo.AppointmentStatus) (*repo.Appointment, error) {
	var out *repo.Appointment
	err := s.payments.GuardAppointment(ctx, id, func(ctx context.Context, p *repo.Payment) error {
		if p != nil && (p.Status == repo.PaymentReleased || p.Status == repo.PaymentDisputed) {
			return fmt.Errorf("%w: payment is %s", ErrInvalidState, p.Status)
		}
		var err error
		out, err = s.transition(ctx, id, from, repo.AppointmentCancelled)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// void settles the payment of a cancelled appointment. The appointment
// stays cancelled when the processor is down; cancelling again retries.
func (s *appointmentService) void(ctx context.Context, act actor.Actor, a *repo.Appointment) error {
	if _, err := s.payments.VoidForAppointment(ctx, act, a.ID); err != nil {
		slog.WarnContext(ctx, "void payment for cancelled appointment failed",
			"appointment_id", a.ID, "error", err, "request_id", act.RequestID)
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

func (s *appointmentService) Get(ctx context.Context, act actor.Actor, id uuid.UUID) (*repo.Appointment, error) {
	a, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !act.IsAdmin() && !a.IsParty(act.UserID) {
		return nil, ErrForbidden
	}
	return a, nil
}

func (s *appointmentService) List(ctx context.Context, act actor.Actor, req ListRequest) ([]repo.Appointment, int64, error) {
	out, total, err := s.store.ListAppointments(ctx, repo.AppointmentFilter{
		UserID:   act.UserID,
		Statuses: req.Statuses,
		Page:     req.Page,
		PerPage:  req.PerPage,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	return out, total, nil
}

func (s *appointmentService) History(ctx context.Context, act actor.Actor, page, perPage int) ([]repo.Appointment, int64, error) {
	return s.List(ctx, act, ListRequest{
		Statuses: []repo.AppointmentStatus{repo.AppointmentCompleted, repo.AppointmentCancelled},
		Page:     page,
		PerPage:  perPage,
	})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *appointmentService) get(ctx context.Context, id uuid.UUID) (*repo.Appointment, error) {
	a, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

func (s *appointmentService) transition(ctx context.Context, id uuid.UUID, from []repo.AppointmentStatus, to repo.AppointmentStatus) (*repo.Appointment, error) {
	out, err := s.store.TransitionAppointment(ctx, id, from, to, s.now())
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrStaleState):
			return nil, fmt.Errorf("%w: cannot move to %s", ErrInvalidState, to)
		case errors.Is(err, repo.ErrNotFound):
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("transition appointment: %w", err)
	}
	slog.InfoContext(ctx, "appointment transition", "appointment_id", id, "to", to)
	return out, nil
}

func (s *appointmentService) publish(ctx context.Context, action string, a *repo.Appointment, actorID uuid.UUID) {
	if s.pub == nil {
		return
	}
	ev := events.Event{
		Entity:         events.EntityAppointment,
		Action:         action,
		ID:             a.ID,
		AppointmentID:  a.ID,
		ClientID:       a.ClientID,
		ProfessionalID: a.ProfessionalID,
		ActorID:        actorID,
		Amount:         a.TotalPrice.StringFixed(2),
		OccurredAt:     s.now(),
	}
	if err := s.pub.Publish(ctx, ev); err != nil {
		slog.WarnContext(ctx, "publish appointment event failed", "subject", ev.Subject(), "error", err)
	}
}

func hours(d decimal.Decimal) time.Duration {
	return time.Duration(d.Mul(decimal.NewFromInt(int64(time.Hour))).IntPart())
}

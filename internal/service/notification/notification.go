package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Alijeyrad/karsaz_backend/internal/repo"
	"github.com/Alijeyrad/karsaz_backend/internal/service/actor"
	"github.com/Alijeyrad/karsaz_backend/pkg/events"
)

// Notification types shown to users.
const (
	TypePaymentInitiated     = "payment_initiated"
	TypePaymentPaid          = "payment_paid"
	TypePaymentFailed        = "payment_failed"
	TypePaymentCancelled     = "payment_cancelled"
	TypeWorkApproved         = "work_approved"
	TypePaymentReleased      = "payment_released"
	TypePaymentReceived      = "payment_received"
	TypePaymentRefunded      = "payment_refunded"
	TypeDisputeRaised        = "dispute_raised"
	TypeDisputeResolved      = "dispute_resolved"
	TypeAppointmentRequested = "appointment_requested"
	TypeAppointmentConfirmed = "appointment_confirmed"
	TypeAppointmentCancelled = "appointment_cancelled"
	TypeAppointmentCompleted = "appointment_completed"
)

// ---------------------------------------------------------------------------
// Dependencies
// ---------------------------------------------------------------------------

type Store interface {
	CreateNotification(ctx context.Context, n *repo.Notification) error
	ListNotifications(ctx context.Context, f repo.NotificationFilter) ([]repo.Notification, int64, error)
	MarkNotificationRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) (int64, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
}

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type CreateRequest struct {
	UserID uuid.UUID
	Type   string
	Title  string
	Body   string
	Data   map[string]any
}

type ListRequest struct {
	UnreadOnly bool
	Page       int
	PerPage    int
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*repo.Notification, error)
	List(ctx context.Context, act actor.Actor, req ListRequest) ([]repo.Notification, int64, error)
	UnreadCount(ctx context.Context, act actor.Actor) (int64, error)
	MarkRead(ctx context.Context, act actor.Actor, id uuid.UUID) error
	MarkAllRead(ctx context.Context, act actor.Actor) (int64, error)

	// HandleEvent stores the in-app notifications for a lifecycle event.
	HandleEvent(ctx context.Context, ev events.Event) error
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type notificationService struct {
	store Store
}

func New(store Store) Service {
	return &notificationService{store: store}
}

func (s *notificationService) Create(ctx context.Context, req CreateRequest) (*repo.Notification, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.UserID == uuid.Nil || req.Type == "" || req.Title == "" {
		return nil, ErrInvalidInput
	}

	n := &repo.Notification{
		UserID: req.UserID,
		Type:   req.Type,
		Title:  req.Title,
		Body:   req.Body,
	}
	if req.Data != nil {
		n.Data = datatypes.JSONMap(req.Data)
	}

	if err := s.store.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	return n, nil
}

func (s *notificationService) List(ctx context.Context, act actor.Actor, req ListRequest) ([]repo.Notification, int64, error) {
	out, total, err := s.store.ListNotifications(ctx, repo.NotificationFilter{
		UserID:     act.UserID,
		UnreadOnly: req.UnreadOnly,
		Page:       req.Page,
		PerPage:    req.PerPage,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	return out, total, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, act actor.Actor) (int64, error) {
	n, err := s.store.CountUnread(ctx, act.UserID)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

func (s *notificationService) MarkRead(ctx context.Context, act actor.Actor, id uuid.UUID) error {
	if err := s.store.MarkNotificationRead(ctx, act.UserID, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, act actor.Actor) (int64, error) {
	n, err := s.store.MarkAllNotificationsRead(ctx, act.UserID)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return n, nil
}

func (s *notificationService) HandleEvent(ctx context.Context, ev events.Event) error {
	var errs []error
	for _, req := range Build(ev) {
		if _, err := s.Create(ctx, req); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		slog.WarnContext(ctx, "notification fan-out incomplete", "subject", ev.Subject(), "error", err)
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Event mapping
// ---------------------------------------------------------------------------

// Build returns the notifications an event produces. Unknown events
// produce none.
func Build(ev events.Event) []CreateRequest {
	data := map[string]any{}
	if ev.AppointmentID != uuid.Nil {
		data["appointment_id"] = ev.AppointmentID.String()
	}
	if ev.PaymentID != uuid.Nil {
		data["payment_id"] = ev.PaymentID.String()
	}
	if ev.Amount != "" {
		data["amount"] = ev.Amount
	}

	to := func(userID uuid.UUID, typ, title, body string) CreateRequest {
		return CreateRequest{UserID: userID, Type: typ, Title: title, Body: body, Data: data}
	}
	appt := ev.AppointmentID.String()

	switch ev.Entity + "." + ev.Action {
	case "payment.initiated":
		return []CreateRequest{
			to(ev.ProfessionalID, TypePaymentInitiated, "New booking", fmt.Sprintf("New payment initiated for appointment %s", appt)),
		}
	case "payment.paid":
		return []CreateRequest{
			to(ev.ClientID, TypePaymentPaid, "Payment received", fmt.Sprintf("Your payment of $%s is held until the work is done", ev.Amount)),
			to(ev.ProfessionalID, TypePaymentPaid, "Booking paid", fmt.Sprintf("The client paid for appointment %s", appt)),
		}
	case "payment.failed":
		return []CreateRequest{
			to(ev.ClientID, TypePaymentFailed, "Payment failed", fmt.Sprintf("Your payment for appointment %s did not go through", appt)),
		}
	case "payment.cancelled":
		return []CreateRequest{
			to(ev.ClientID, TypePaymentCancelled, "Payment cancelled", fmt.Sprintf("Payment for appointment %s was cancelled", appt)),
			to(ev.ProfessionalID, TypePaymentCancelled, "Payment cancelled", fmt.Sprintf("Payment for appointment %s was cancelled", appt)),
		}
	case "payment.approved":
		return []CreateRequest{
			to(ev.ProfessionalID, TypeWorkApproved, "Work approved", fmt.Sprintf("Client approved work completion for payment %s", ev.PaymentID)),
		}
	case "payment.released":
		return []CreateRequest{
			to(ev.ClientID, TypePaymentReleased, "Payment released", fmt.Sprintf("Payment released to the professional for appointment %s", appt)),
			to(ev.ProfessionalID, TypePaymentReceived, "Payment received", fmt.Sprintf("Payment for appointment %s was transferred to your account", appt)),
		}
	case "payment.refunded":
		return []CreateRequest{
			to(ev.ClientID, TypePaymentRefunded, "Payment refunded", fmt.Sprintf("$%s was refunded for appointment %s", ev.Amount, appt)),
			to(ev.ProfessionalID, TypePaymentRefunded, "Payment refunded", fmt.Sprintf("Payment for appointment %s was refunded to the client", appt)),
		}
	case "payment.disputed":
		return []CreateRequest{
			to(ev.ClientID, TypeDisputeRaised, "Dispute raised", fmt.Sprintf("New dispute raised for payment %s", ev.PaymentID)),
			to(ev.ProfessionalID, TypeDisputeRaised, "Dispute raised", fmt.Sprintf("New dispute raised for payment %s", ev.PaymentID)),
		}
	case "payment.resolved":
		body := fmt.Sprintf("The dispute on payment %s was resolved", ev.PaymentID)
		if ev.Note != "" {
			body += ": " + ev.Note
		}
		return []CreateRequest{
			to(ev.ClientID, TypeDisputeResolved, "Dispute resolved", body),
			to(ev.ProfessionalID, TypeDisputeResolved, "Dispute resolved", body),
		}
	case "appointment.created":
		return []CreateRequest{
			to(ev.ProfessionalID, TypeAppointmentRequested, "New appointment request", fmt.Sprintf("You have a new appointment request %s", appt)),
		}
	case "appointment.confirmed":
		return []CreateRequest{
			to(ev.ClientID, TypeAppointmentConfirmed, "Appointment confirmed", fmt.Sprintf("Your appointment %s was confirmed", appt)),
		}
	case "appointment.cancelled":
		var out []CreateRequest
		body := fmt.Sprintf("Appointment %s was cancelled", appt)
		if ev.ActorID != ev.ClientID {
			out = append(out, to(ev.ClientID, TypeAppointmentCancelled, "Appointment cancelled", body))
		}
		if ev.ActorID != ev.ProfessionalID {
			out = append(out, to(ev.ProfessionalID, TypeAppointmentCancelled, "Appointment cancelled", body))
		}
		return out
	case "appointment.completed":
		body := fmt.Sprintf("Appointment %s is complete", appt)
		return []CreateRequest{
			to(ev.ClientID, TypeAppointmentCompleted, "Appointment completed", body),
			to(ev.ProfessionalID, TypeAppointmentCompleted, "Appointment completed", body),
		}
	}
	return nil
}

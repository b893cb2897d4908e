package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/fx"

	"github.com/Alijeyrad/karsaz_backend/config"
	"github.com/Alijeyrad/karsaz_backend/internal/repo"
	"github.com/Alijeyrad/karsaz_backend/internal/service/notification"
	"github.com/Alijeyrad/karsaz_backend/internal/service/user"
	"github.com/Alijeyrad/karsaz_backend/pkg/email"
	"github.com/Alijeyrad/karsaz_backend/pkg/events"
	"github.com/Alijeyrad/karsaz_backend/pkg/sms"
)

// WorkerModule registers all NATS event workers.
var WorkerModule = fx.Module("workers",
	fx.Invoke(RegisterWorkers),
)

type WorkerParams struct {
	fx.In

	Lc       fx.Lifecycle
	Cfg      *config.Config
	NC       *nats.Conn
	NotifSvc notification.Service
	UserSvc  user.Service
	Email    *email.Client
	SMS      *sms.Client
}

type mailer interface {
	Send(ctx context.Context, m email.Message) error
}

type texter interface {
	SendNotice(ctx context.Context, phoneNumber, message string) error
	IsEnabled() bool
}

type users interface {
	GetByID(ctx context.Context, id uuid.UUID) (*repo.User, error)
	RecomputeMetrics(ctx context.Context, userID uuid.UUID) error
}

type notifier interface {
	HandleEvent(ctx context.Context, ev events.Event) error
}

// eventWorkers reacts to escrow lifecycle events. Every handler logs its
// own failures; a failing side effect never blocks the others.
type eventWorkers struct {
	notif notifier
	users users
	mail  mailer
	text  texter

	currency string
}

func RegisterWorkers(p WorkerParams) {
	if p.NC == nil {
		slog.Info("workers: NATS disabled, event workers not started")
		return
	}

	w := &eventWorkers{
		notif: p.NotifSvc,
		users: p.UserSvc,
		mail:  p.Email,
		text:  p.SMS,

		currency: strings.ToUpper(p.Cfg.Stripe.Currency),
	}

	var subs []*nats.Subscription
	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var err error
			subs, err = w.subscribe(p.NC)
			return err
		},
		OnStop: func(ctx context.Context) error {
			for _, s := range subs {
				_ = s.Unsubscribe()
			}
			return nil
		},
	})
}

func (w *eventWorkers) subscribe(nc *nats.Conn) ([]*nats.Subscription, error) {
	var subs []*nats.Subscription
	for _, entity := range []string{events.EntityAppointment, events.EntityPayment} {
		sub, err := events.Subscribe(nc, events.Pattern(entity), w.handle)
		if err != nil {
			return subs, fmt.Errorf("subscribe %s events: %w", entity, err)
		}
		subs = append(subs, sub)
	}
	slog.Info("workers: started", "subscriptions", len(subs))
	return subs, nil
}

func (w *eventWorkers) handle(ctx context.Context, ev events.Event) {
	w.notify(ctx, ev)
	w.sendEmail(ctx, ev)
	w.sendSMS(ctx, ev)
	w.refreshMetrics(ctx, ev)
}

// ---------------------------------------------------------------------------
// notification_worker
// ---------------------------------------------------------------------------

func (w *eventWorkers) notify(ctx context.Context, ev events.Event) {
	if err := w.notif.HandleEvent(ctx, ev); err != nil {
		slog.Warn("notification_worker: store notifications failed",
			"entity", ev.Entity, "action", ev.Action, "id", ev.ID, "err", err)
	}
}

// ---------------------------------------------------------------------------
// email_worker
// ---------------------------------------------------------------------------

// receiptHeadlines maps payment actions to the party that gets a receipt.
var receiptHeadlines = map[string]struct {
	toProfessional bool
	headline       string
}{
	"paid":     {false, "Your payment is held in escrow"},
	"released": {true, "Funds have been released to you"},
	"refunded": {false, "Your payment has been refunded"},
}

// appointmentNotices are mailed to every party except the one who acted.
var appointmentNotices = map[string]struct{ title, body string }{
	"confirmed": {"Appointment confirmed", "Your appointment %s has been confirmed. The payment stays in escrow until the session is done."},
	"cancelled": {"Appointment cancelled", "Appointment %s was cancelled. Any held payment has been voided."},
}

func (w *eventWorkers) sendEmail(ctx context.Context, ev events.Event) {
	switch ev.Entity {
	case events.EntityPayment:
		w.sendReceipt(ctx, ev)
	case events.EntityAppointment:
		w.sendNotice(ctx, ev)
	}
}

func (w *eventWorkers) deliver(ctx context.Context, u *repo.User, action string, msg email.Message) {
	if err := w.mail.Send(ctx, msg); err != nil && !errors.Is(err, email.ErrDisabled) {
		slog.WarnContext(ctx, "email_worker: send failed", "user_id", u.ID, "action", action, "err", err)
	}
}

func (w *eventWorkers) sendNotice(ctx context.Context, ev events.Event) {
	n, found := appointmentNotices[ev.Action]
	if !found {
		return
	}
	for _, id := range []uuid.UUID{ev.ClientID, ev.ProfessionalID} {
		if id == uuid.Nil || id == ev.ActorID {
			continue
		}
		u, err := w.users.GetByID(ctx, id)
		if err != nil {
			slog.WarnContext(ctx, "email_worker: recipient lookup failed", "user_id", id, "err", err)
			continue
		}
		w.deliver(ctx, u, ev.Action, email.BuildNotificationEmail(email.NotificationEmailData{
			FirstName: u.FirstName,
			Email:     u.Email,
			Title:     n.title,
			Body:      fmt.Sprintf(n.body, ev.AppointmentID),
		}))
	}
}

func (w *eventWorkers) sendReceipt(ctx context.Context, ev events.Event) {
	r, found := receiptHeadlines[ev.Action]
	if !found {
		return
	}

	recipient := ev.ClientID
	if r.toProfessional {
		recipient = ev.ProfessionalID
	}
	u, err := w.users.GetByID(ctx, recipient)
	if err != nil {
		slog.WarnContext(ctx, "email_worker: recipient lookup failed", "user_id", recipient, "err", err)
		return
	}

	w.deliver(ctx, u, ev.Action, email.BuildPaymentReceiptEmail(email.PaymentReceiptData{
		FirstName:     u.FirstName,
		Email:         u.Email,
		Headline:      r.headline,
		AppointmentID: ev.AppointmentID.String(),
		PaymentID:     ev.ID.String(),
		Amount:        ev.Amount,
		Currency:      w.currency,
	}))
}

// ---------------------------------------------------------------------------
// sms_worker
// ---------------------------------------------------------------------------

func smsText(ev events.Event) (string, bool) {
	if ev.Entity != events.EntityPayment {
		return "", false
	}
	switch ev.Action {
	case "released":
		return fmt.Sprintf("Karsaz: %s has been released to your payout account.", ev.Amount), true
	case "disputed":
		return "Karsaz: a client opened a dispute on one of your payments.", true
	}
	return "", false
}

func (w *eventWorkers) sendSMS(ctx context.Context, ev events.Event) {
	if w.text == nil || !w.text.IsEnabled() {
		return
	}
	text, found := smsText(ev)
	if !found {
		return
	}

	u, err := w.users.GetByID(ctx, ev.ProfessionalID)
	if err != nil {
		slog.Warn("sms_worker: professional lookup failed", "user_id", ev.ProfessionalID, "err", err)
		return
	}
	if u.Phone == nil || *u.Phone == "" {
		return
	}

	if err := w.text.SendNotice(ctx, *u.Phone, text); err != nil {
		slog.Warn("sms_worker: send failed", "user_id", u.ID, "action", ev.Action, "err", err)
	}
}

// ---------------------------------------------------------------------------
// metrics_worker
// ---------------------------------------------------------------------------

func (w *eventWorkers) refreshMetrics(ctx context.Context, ev events.Event) {
	if ev.Entity != events.EntityAppointment {
		return
	}
	for _, id := range []uuid.UUID{ev.ClientID, ev.ProfessionalID} {
		if id == uuid.Nil {
			continue
		}
		if err := w.users.RecomputeMetrics(ctx, id); err != nil {
			slog.Warn("metrics_worker: recompute failed", "user_id", id, "err", err)
		}
	}
}

package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/Alijeyrad/karsaz_backend/internal/repo"
	"github.com/Alijeyrad/karsaz_backend/pkg/email"
	"github.com/Alijeyrad/karsaz_backend/pkg/events"
)

type fakeUsers struct {
	byID       map[uuid.UUID]*repo.User
	recomputed []uuid.UUID
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*repo.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return u, nil
}

func (f *fakeUsers) RecomputeMetrics(_ context.Context, id uuid.UUID) error {
	f.recomputed = append(f.recomputed, id)
	return nil
}

type fakeMailer struct {
	sent []email.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, m email.Message) error {
	f.sent = append(f.sent, m)
	return f.err
}

type fakeTexter struct {
	enabled bool
	sent    map[string]string
}

func (f *fakeTexter) SendNotice(_ context.Context, phone, msg string) error {
	if f.sent == nil {
		f.sent = map[string]string{}
	}
	f.sent[phone] = msg
	return nil
}

func (f *fakeTexter) IsEnabled() bool { return f.enabled }

type fakeNotifier struct {
	got []events.Event
}

func (f *fakeNotifier) HandleEvent(_ context.Context, ev events.Event) error {
	f.got = append(f.got, ev)
	return nil
}

type workerFixture struct {
	w            *eventWorkers
	users        *fakeUsers
	mail         *fakeMailer
	text         *fakeTexter
	notif        *fakeNotifier
	client, prof *repo.User
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()
	phone := "+15550001111"
	client := &repo.User{ID: uuid.New(), Email: "client@example.com", FirstName: "Cleo"}
	prof := &repo.User{ID: uuid.New(), Email: "pro@example.com", FirstName: "Pat", Phone: &phone}

	f := &workerFixture{
		users: &fakeUsers{byID: map[uuid.UUID]*repo.User{client.ID: client, prof.ID: prof}},
		mail:  &fakeMailer{},
		text:  &fakeTexter{enabled: true},
		notif: &fakeNotifier{},

		client: client,
		prof:   prof,
	}
	f.w = &eventWorkers{notif: f.notif, users: f.users, mail: f.mail, text: f.text, currency: "USD"}
	return f
}

func (f *workerFixture) paymentEvent(action string) events.Event {
	return events.Event{
		Entity:         events.EntityPayment,
		Action:         action,
		ID:             uuid.New(),
		AppointmentID:  uuid.New(),
		ClientID:       f.client.ID,
		ProfessionalID: f.prof.ID,
		Amount:         "47.20",
	}
}

func TestWorkers_ReceiptRouting(t *testing.T) {
	tests := []struct {
		action string
		wantTo string
	}{
		{"paid", "client@example.com"},
		{"released", "pro@example.com"},
		{"refunded", "client@example.com"},
		{"disputed", ""},
		{"approved", ""},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			f := newWorkerFixture(t)
			f.w.handle(context.Background(), f.paymentEvent(tt.action))

			if len(f.notif.got) != 1 {
				t.Errorf("notifier got %d events, want 1", len(f.notif.got))
			}
			if tt.wantTo == "" {
				if len(f.mail.sent) != 0 {
					t.Errorf("unexpected email to %v", f.mail.sent[0].To)
				}
				return
			}
			if len(f.mail.sent) != 1 {
				t.Fatalf("sent %d emails, want 1", len(f.mail.sent))
			}
			m := f.mail.sent[0]
			if len(m.To) != 1 || m.To[0] != tt.wantTo {
				t.Errorf("To = %v, want %s", m.To, tt.wantTo)
			}
			if !strings.Contains(m.TextBody, "47.20 USD") {
				t.Errorf("body missing amount: %q", m.TextBody)
			}
		})
	}
}

func TestWorkers_DisabledMailerIsQuiet(t *testing.T) {
	f := newWorkerFixture(t)
	f.mail.err = email.ErrDisabled

	f.w.handle(context.Background(), f.paymentEvent("paid"))

	if len(f.mail.sent) != 1 {
		t.Fatalf("send attempted %d times, want 1", len(f.mail.sent))
	}
}

func TestSMSText(t *testing.T) {
	tests := []struct {
		name   string
		ev     events.Event
		want   bool
		substr string
	}{
		{"released", events.Event{Entity: events.EntityPayment, Action: "released", Amount: "36.00"}, true, "36.00"},
		{"disputed", events.Event{Entity: events.EntityPayment, Action: "disputed"}, true, "dispute"},
		{"paid", events.Event{Entity: events.EntityPayment, Action: "paid"}, false, ""},
		{"appointment released", events.Event{Entity: events.EntityAppointment, Action: "released"}, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := smsText(tt.ev)
			if ok != tt.want {
				t.Fatalf("ok = %v, want %v", ok, tt.want)
			}
			if !strings.Contains(got, tt.substr) {
				t.Errorf("text %q missing %q", got, tt.substr)
			}
		})
	}
}

func TestWorkers_SMSGoesToProfessional(t *testing.T) {
	f := newWorkerFixture(t)
	f.w.handle(context.Background(), f.paymentEvent("released"))

	if msg := f.text.sent[*f.prof.Phone]; !strings.Contains(msg, "47.20") {
		t.Errorf("sms = %q", msg)
	}
}

func TestWorkers_SMSDisabled(t *testing.T) {
	f := newWorkerFixture(t)
	f.text.enabled = false
	f.w.handle(context.Background(), f.paymentEvent("released"))

	if len(f.text.sent) != 0 {
		t.Errorf("sms sent while disabled: %v", f.text.sent)
	}
}

func TestWorkers_MetricsOnAppointmentEvents(t *testing.T) {
	f := newWorkerFixture(t)

	f.w.handle(context.Background(), f.paymentEvent("released"))
	if len(f.users.recomputed) != 0 {
		t.Fatalf("payment event recomputed metrics for %v", f.users.recomputed)
	}

	f.w.handle(context.Background(), events.Event{
		Entity:         events.EntityAppointment,
		Action:         "completed",
		ID:             uuid.New(),
		ClientID:       f.client.ID,
		ProfessionalID: f.prof.ID,
	})
	if len(f.users.recomputed) != 2 {
		t.Fatalf("recomputed = %v, want client and professional", f.users.recomputed)
	}
}

func TestWorkers_AppointmentNotices(t *testing.T) {
	tests := []struct {
		name   string
		action string
		actor  func(f *workerFixture) uuid.UUID
		wantTo []string
	}{
		{"confirmed by professional", "confirmed", func(f *workerFixture) uuid.UUID { return f.prof.ID }, []string{"client@example.com"}},
		{"cancelled by client", "cancelled", func(f *workerFixture) uuid.UUID { return f.client.ID }, []string{"pro@example.com"}},
		{"cancelled by admin", "cancelled", func(*workerFixture) uuid.UUID { return uuid.New() }, []string{"client@example.com", "pro@example.com"}},
		{"completed is silent", "completed", func(*workerFixture) uuid.UUID { return uuid.Nil }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWorkerFixture(t)
			apptID := uuid.New()
			f.w.handle(context.Background(), events.Event{
				Entity:         events.EntityAppointment,
				Action:         tt.action,
				ID:             apptID,
				AppointmentID:  apptID,
				ClientID:       f.client.ID,
				ProfessionalID: f.prof.ID,
				ActorID:        tt.actor(f),
			})

			var got []string
			for _, m := range f.mail.sent {
				got = append(got, m.To...)
				if !strings.Contains(m.TextBody, apptID.String()) {
					t.Errorf("notice body missing appointment id: %q", m.TextBody)
				}
			}
			if strings.Join(got, ",") != strings.Join(tt.wantTo, ",") {
				t.Errorf("recipients = %v, want %v", got, tt.wantTo)
			}
		})
	}
}

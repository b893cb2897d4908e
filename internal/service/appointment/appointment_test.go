package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/Alijeyrad/karsaz_backend/config"
	"github.com/Alijeyrad/karsaz_backend/internal/repo"
	"github.com/Alijeyrad/karsaz_backend/internal/repo/repotest"
	"github.com/Alijeyrad/karsaz_backend/internal/service/actor"
	"github.com/Alijeyrad/karsaz_backend/internal/service/payment"
	"github.com/Alijeyrad/karsaz_backend/internal/service/pricing"
	"github.com/Alijeyrad/karsaz_backend/pkg/events"
)

// fakePayments opens payments without a processor and records voids.
type fakePayments struct {
	store    *repotest.Store
	opened   int
	voided   []uuid.UUID
	guarded  int
	failOpen error
	failVoid error
}

func (f *fakePayments) Open(ctx context.Context, appt *repo.Appointment, persist payment.PersistFunc) (*repo.Payment, error) {
	if f.failOpen != nil {
		return nil, f.failOpen
	}
	f.opened++
	p := &repo.Payment{
		ID:                   uuid.New(),
		ClientID:             appt.ClientID,
		ProfessionalID:       appt.ProfessionalID,
		Amount:               appt.TotalPrice,
		ProfessionalEarnings: appt.ProfessionalEarnings,
		PaymentIntentID:      "pi_" + appt.ID.String(),
		ClientSecret:         "secret_" + appt.ID.String(),
		Status:               repo.PaymentPending,
	}
	if err := persist(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (f *fakePayments) VoidForAppointment(ctx context.Context, _ actor.Actor, appointmentID uuid.UUID) (*repo.Payment, error) {
	if f.failVoid != nil {
		return nil, f.failVoid
	}
	f.voided = append(f.voided, appointmentID)
	return f.store.GetPaymentByAppointment(ctx, appointmentID)
}

func (f *fakePayments) GuardAppointment(ctx context.Context, appointmentID uuid.UUID, fn payment.GuardFunc) error {
	f.guarded++
	p, err := f.store.GetPaymentByAppointment(ctx, appointmentID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		p = nil
	case err != nil:
		return err
	}
	return fn(ctx, p)
}

type recPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

type AppointmentSuite struct {
	suite.Suite
	ctx      context.Context
	store    *repotest.Store
	payments *fakePayments
	pub      *recPublisher
	svc      Service

	client  repo.User
	pro     repo.User
	service repo.Service
}

func TestAppointmentSuite(t *testing.T) {
	suite.Run(t, new(AppointmentSuite))
}

func (s *AppointmentSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = repotest.New()
	s.payments = &fakePayments{store: s.store}
	s.pub = &recPublisher{}
	s.svc = New(s.store, pricing.New(s.store, nil, config.PricingConfig{}), s.payments, s.pub)

	s.client = repo.User{ID: uuid.New(), Email: "client@example.com", Role: repo.RoleClient}
	s.pro = repo.User{
		ID:         uuid.New(),
		Email:      "pro@example.com",
		Role:       repo.RoleProfessional,
		HourlyRate: decimal.NewNullDecimal(decimal.NewFromInt(20)),
	}
	s.store.PutUser(s.client)
	s.store.PutUser(s.pro)

	s.service = repo.Service{ProfessionalID: s.pro.ID, Name: "Brake repair"}
	s.Require().NoError(s.store.CreateService(s.ctx, &s.service))
}

func (s *AppointmentSuite) clientActor() actor.Actor {
	return actor.Actor{UserID: s.client.ID, Role: repo.RoleClient}
}

func (s *AppointmentSuite) proActor() actor.Actor {
	return actor.Actor{UserID: s.pro.ID, Role: repo.RoleProfessional}
}

func (s *AppointmentSuite) request() CreateRequest {
	return CreateRequest{
		ProfessionalID: s.pro.ID,
		ServiceIDs:     []uuid.UUID{s.service.ID},
		ScheduledAt:    time.Now().Add(48 * time.Hour),
		Duration:       decimal.NewFromInt(2),
		Issue:          "Squeaking brakes",
		Location:       "12 Main St",
	}
}

func (s *AppointmentSuite) create() *repo.Appointment {
	res, err := s.svc.Create(s.ctx, s.clientActor(), s.request())
	s.Require().NoError(err)
	return res.Appointment
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func (s *AppointmentSuite) TestCreatePricesAndOpensPayment() {
	req := s.request()
	res, err := s.svc.Create(s.ctx, s.clientActor(), req)
	s.Require().NoError(err)

	a := res.Appointment
	s.Equal(repo.AppointmentPending, a.Status)
	s.Equal("40.00", a.BasePrice.StringFixed(2))
	s.Equal("47.20", a.TotalPrice.StringFixed(2))
	s.Equal("36.00", a.ProfessionalEarnings.StringFixed(2))
	s.True(a.EndsAt.Equal(req.ScheduledAt.UTC().Add(2*time.Hour)))
	s.NotEmpty(res.ClientSecret)
	s.Equal(1, s.store.PaymentCount(a.ID))

	stored, err := s.store.GetAppointment(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(a.TotalPrice.String(), stored.TotalPrice.String())

	s.Require().Len(s.pub.events, 1)
	s.Equal("created", s.pub.events[0].Action)
}

func (s *AppointmentSuite) TestCreateMatchesQuote() {
	q, err := pricing.New(s.store, nil, config.PricingConfig{}).Quote(s.ctx, s.pro.ID, decimal.RequireFromString("1.75"))
	s.Require().NoError(err)

	req := s.request()
	req.Duration = decimal.RequireFromString("1.75")
	res, err := s.svc.Create(s.ctx, s.clientActor(), req)
	s.Require().NoError(err)

	s.True(q.TotalPrice.Equal(res.Appointment.TotalPrice))
	s.True(q.PlatformFee.Equal(res.Appointment.PlatformFee))
	s.True(q.TaxAmount.Equal(res.Appointment.TaxAmount))
	s.True(q.ProfessionalEarnings.Equal(res.Appointment.ProfessionalEarnings))
}

func (s *AppointmentSuite) TestCreateValidation() {
	foreign := repo.Service{ProfessionalID: uuid.New(), Name: "Other"}
	s.Require().NoError(s.store.CreateService(s.ctx, &foreign))

	tests := []struct {
		name   string
		mutate func(*CreateRequest)
		want   error
	}{
		{"past schedule", func(r *CreateRequest) { r.ScheduledAt = time.Now().Add(-time.Hour) }, ErrInvalidInput},
		{"no services", func(r *CreateRequest) { r.ServiceIDs = nil }, ErrInvalidInput},
		{"foreign service", func(r *CreateRequest) { r.ServiceIDs = []uuid.UUID{foreign.ID} }, ErrInvalidInput},
		{"missing issue", func(r *CreateRequest) { r.Issue = " " }, ErrInvalidInput},
		{"zero duration", func(r *CreateRequest) { r.Duration = decimal.Zero }, pricing.ErrInvalidDuration},
		{"duration over max", func(r *CreateRequest) { r.Duration = decimal.NewFromInt(3_000_000) }, pricing.ErrInvalidDuration},
		{"sub-cent duration", func(r *CreateRequest) { r.Duration = decimal.RequireFromString("1.555") }, pricing.ErrInvalidDuration},
		{"unknown professional", func(r *CreateRequest) { r.ProfessionalID = uuid.New() }, ErrInvalidInput},
		{"self booking", func(r *CreateRequest) { r.ProfessionalID = s.client.ID }, ErrInvalidInput},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			req := s.request()
			tt.mutate(&req)
			_, err := s.svc.Create(s.ctx, s.clientActor(), req)
			s.ErrorIs(err, tt.want)
		})
	}
	s.Equal(0, s.store.AppointmentCount())
	s.Zero(s.payments.opened, "no intent is created for a rejected request")
}

func (s *AppointmentSuite) TestCreateRequiresClient() {
	_, err := s.svc.Create(s.ctx, s.proActor(), s.request())
	s.ErrorIs(err, ErrForbidden)
}

func (s *AppointmentSuite) TestCreateLeavesNothingWhenPaymentFails() {
	s.payments.failOpen = payment.ErrUpstream
	_, err := s.svc.Create(s.ctx, s.clientActor(), s.request())
	s.ErrorIs(err, payment.ErrUpstream)
	s.Equal(0, s.store.AppointmentCount())
	s.Empty(s.pub.events)
}

func (s *AppointmentSuite) TestCreateLeavesNothingWhenPersistFails() {
	boom := errors.New("connection reset")
	s.store.FailCreateAppointment = boom

	_, err := s.svc.Create(s.ctx, s.clientActor(), s.request())
	s.ErrorIs(err, boom)
	s.Equal(0, s.store.AppointmentCount())
	s.Empty(s.pub.events)

	_, err = s.svc.Create(s.ctx, s.clientActor(), s.request())
	s.Require().NoError(err)
	s.Equal(1, s.store.AppointmentCount())
}

// ---------------------------------------------------------------------------
// Transitions
// ---------------------------------------------------------------------------

func (s *AppointmentSuite) TestConfirm() {
	a := s.create()

	_, err := s.svc.Confirm(s.ctx, s.clientActor(), a.ID)
	s.ErrorIs(err, ErrForbidden)

	out, err := s.svc.Confirm(s.ctx, s.proActor(), a.ID)
	s.Require().NoError(err)
	s.Equal(repo.AppointmentConfirmed, out.Status)
	s.NotNil(out.ConfirmedAt)

	again, err := s.svc.Confirm(s.ctx, s.proActor(), a.ID)
	s.Require().NoError(err, "confirming twice is a no-op")
	s.Equal(repo.AppointmentConfirmed, again.Status)
}

func (s *AppointmentSuite) TestConfirmCancelledFails() {
	a := s.create()
	_, err := s.svc.Cancel(s.ctx, s.clientActor(), a.ID)
	s.Require().NoError(err)

	_, err = s.svc.Confirm(s.ctx, s.proActor(), a.ID)
	s.ErrorIs(err, ErrInvalidState)
}

func (s *AppointmentSuite) TestRejectVoidsPayment() {
	a := s.create()

	_, err := s.svc.Reject(s.ctx, s.clientActor(), a.ID)
	s.ErrorIs(err, ErrForbidden)

	out, err := s.svc.Reject(s.ctx, s.proActor(), a.ID)
	s.Require().NoError(err)
	s.Equal(repo.AppointmentCancelled, out.Status)
	s.Equal([]uuid.UUID{a.ID}, s.payments.voided)

	_, err = s.svc.Confirm(s.ctx, s.proActor(), a.ID)
	s.ErrorIs(err, ErrInvalidState)
}

func (s *AppointmentSuite) TestRejectConfirmedFails() {
	a := s.create()
	_, err := s.svc.Confirm(s.ctx, s.proActor(), a.ID)
	s.Require().NoError(err)

	_, err = s.svc.Reject(s.ctx, s.proActor(), a.ID)
	s.ErrorIs(err, ErrInvalidState)
}

func (s *AppointmentSuite) TestCancelRetriesVoid() {
	a := s.create()
	s.payments.failVoid = payment.ErrUpstream

	out, err := s.svc.Cancel(s.ctx, s.clientActor(), a.ID)
	s.ErrorIs(err, payment.ErrUpstream)
	s.Require().NotNil(out)
	s.Equal(repo.AppointmentCancelled, out.Status)

	s.payments.failVoid = nil
	out, err = s.svc.Cancel(s.ctx, s.clientActor(), a.ID)
	s.Require().NoError(err)
	s.Equal(repo.AppointmentCancelled, out.Status)
	s.Equal([]uuid.UUID{a.ID}, s.payments.voided)
}

func (s *AppointmentSuite) TestCancelBlockedByDisputedPayment() {
	a := s.create()
	p, err := s.store.GetPaymentByAppointment(s.ctx, a.ID)
	s.Require().NoError(err)
	p.Status = repo.PaymentDisputed
	s.store.PutPayment(*p)

	_, err = s.svc.Cancel(s.ctx, s.clientActor(), a.ID)
	s.ErrorIs(err, ErrInvalidState)
	s.Equal(1, s.payments.guarded, "payment check runs under the payment lock")

	got, err := s.store.GetAppointment(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(repo.AppointmentPending, got.Status)
}

func (s *AppointmentSuite) TestCancelPermissions() {
	a := s.create()

	_, err := s.svc.Cancel(s.ctx, s.proActor(), a.ID)
	s.ErrorIs(err, ErrForbidden)

	admin := actor.Actor{UserID: uuid.New(), Role: repo.RoleAdmin}
	out, err := s.svc.Cancel(s.ctx, admin, a.ID)
	s.Require().NoError(err)
	s.Equal(repo.AppointmentCancelled, out.Status)
}

// ---------------------------------------------------------------------------
// Sweep
// ---------------------------------------------------------------------------

func (s *AppointmentSuite) put(status repo.AppointmentStatus, start time.Time, dur time.Duration) repo.Appointment {
	a := repo.Appointment{
		ID:             uuid.New(),
		ClientID:       s.client.ID,
		ProfessionalID: s.pro.ID,
		ScheduledAt:    start,
		DurationHours:  decimal.NewFromFloat(dur.Hours()),
		EndsAt:         start.Add(dur),
		Status:         status,
	}
	s.store.PutAppointment(a)
	return a
}

func (s *AppointmentSuite) TestAutoCompleteOnlyEndedConfirmed() {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	ended := s.put(repo.AppointmentConfirmed, now.Add(-3*time.Hour), 2*time.Hour)
	running := s.put(repo.AppointmentConfirmed, now.Add(-1*time.Hour), 2*time.Hour)
	future := s.put(repo.AppointmentConfirmed, now.Add(time.Hour), time.Hour)
	pending := s.put(repo.AppointmentPending, now.Add(-5*time.Hour), time.Hour)

	n, err := s.svc.AutoComplete(s.ctx, now)
	s.Require().NoError(err)
	s.Equal(1, n)

	want := map[uuid.UUID]repo.AppointmentStatus{
		ended.ID:   repo.AppointmentCompleted,
		running.ID: repo.AppointmentConfirmed,
		future.ID:  repo.AppointmentConfirmed,
		pending.ID: repo.AppointmentPending,
	}
	for id, status := range want {
		got, err := s.store.GetAppointment(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(status, got.Status, "appointment %s", id)
	}

	s.Require().Len(s.pub.events, 1)
	s.Equal("completed", s.pub.events[0].Action)
	s.Equal(ended.ID, s.pub.events[0].ID)

	n, err = s.svc.AutoComplete(s.ctx, now)
	s.Require().NoError(err)
	s.Zero(n, "a second sweep finds nothing")
}

func (s *AppointmentSuite) TestAutoCompleteConcurrent() {
	now := time.Now().UTC()
	for i := 0; i < 20; i++ {
		s.put(repo.AppointmentConfirmed, now.Add(-2*time.Hour), time.Hour)
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.svc.AutoComplete(s.ctx, now)
			if err != nil {
				return
			}
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()
	s.Equal(20, total, "each appointment completes exactly once")
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

func (s *AppointmentSuite) TestGetListHistory() {
	a := s.create()
	b := s.create()
	_, err := s.svc.Cancel(s.ctx, s.clientActor(), b.ID)
	s.Require().NoError(err)

	_, err = s.svc.Get(s.ctx, actor.Actor{UserID: uuid.New(), Role: repo.RoleClient}, a.ID)
	s.ErrorIs(err, ErrForbidden)
	_, err = s.svc.Get(s.ctx, s.proActor(), uuid.New())
	s.ErrorIs(err, ErrNotFound)

	got, err := s.svc.Get(s.ctx, s.proActor(), a.ID)
	s.Require().NoError(err)
	s.Equal(a.ID, got.ID)

	all, total, err := s.svc.List(s.ctx, s.proActor(), ListRequest{})
	s.Require().NoError(err)
	s.EqualValues(2, total)
	s.Len(all, 2)

	pending, _, err := s.svc.List(s.ctx, s.clientActor(), ListRequest{Statuses: []repo.AppointmentStatus{repo.AppointmentPending}})
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(a.ID, pending[0].ID)

	hist, total, err := s.svc.History(s.ctx, s.clientActor(), 1, 20)
	s.Require().NoError(err)
	s.EqualValues(1, total)
	s.Equal(b.ID, hist[0].ID)
}

func TestHours(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"1", time.Hour},
		{"1.5", 90 * time.Minute},
		{"0.25", 15 * time.Minute},
	}
	for _, tt := range tests {
		if got := hours(decimal.RequireFromString(tt.in)); got != tt.want {
			t.Errorf("hours(%s) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

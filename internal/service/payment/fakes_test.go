package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/karsaz_backend/internal/repo"
	"github.com/Alijeyrad/karsaz_backend/internal/repo/repotest"
	"github.com/Alijeyrad/karsaz_backend/internal/service/actor"
	"github.com/Alijeyrad/karsaz_backend/pkg/crypto"
	"github.com/Alijeyrad/karsaz_backend/pkg/events"
	stripepay "github.com/Alijeyrad/karsaz_backend/pkg/stripe"
)

var testKeyHex = strings.Repeat("ab", 32)

// fakeProcessor records calls and honours idempotency keys like the real
// processor does.
type fakeProcessor struct {
	mu sync.Mutex

	intents   map[string]*stripepay.Intent
	transfers []stripepay.TransferParams
	refunds   []stripepay.RefundParams
	cancelled []string

	failIntent   error
	failTransfer error
	failRefund   error
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{intents: map[string]*stripepay.Intent{}}
}

func (f *fakeProcessor) CreatePaymentIntent(_ context.Context, in stripepay.IntentParams) (*stripepay.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIntent != nil {
		return nil, f.failIntent
	}
	if it, ok := f.intents[in.IdempotencyKey]; ok {
		return it, nil
	}
	it := &stripepay.Intent{
		ID:           "pi_" + strings.TrimPrefix(in.IdempotencyKey, "intent-")[:8],
		ClientSecret: "secret_" + in.IdempotencyKey,
		Status:       "requires_payment_method",
	}
	f.intents[in.IdempotencyKey] = it
	return it, nil
}

func (f *fakeProcessor) CancelPaymentIntent(_ context.Context, intentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, intentID)
	return nil
}

func (f *fakeProcessor) CreateTransfer(_ context.Context, in stripepay.TransferParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTransfer != nil {
		return "", f.failTransfer
	}
	f.transfers = append(f.transfers, in)
	return fmt.Sprintf("tr_%d", len(f.transfers)), nil
}

func (f *fakeProcessor) CreateRefund(_ context.Context, in stripepay.RefundParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRefund != nil {
		return "", f.failRefund
	}
	f.refunds = append(f.refunds, in)
	return fmt.Sprintf("re_%d", len(f.refunds)), nil
}

func (f *fakeProcessor) Currency() string { return "usd" }

// memLocker is a process-local Locker.
type memLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newMemLocker() *memLocker { return &memLocker{locks: map[string]*sync.Mutex{}} }

func (l *memLocker) Lock(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	var once sync.Once
	return func() { once.Do(m.Unlock) }, nil
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

func (p *recPublisher) actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Action)
	}
	return out
}

// fixture is a professional, a client and a Pending appointment priced at
// 47.20 with 36.00 earnings.
type fixture struct {
	store *repotest.Store
	proc  *fakeProcessor
	pub   *recPublisher
	svc   Service

	client repo.User
	pro    repo.User
	appt   repo.Appointment
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	key, err := crypto.KeyFromHex(testKeyHex)
	if err != nil {
		t.Fatalf("KeyFromHex: %v", err)
	}
	proID := uuid.New()
	enc, err := crypto.Encrypt(key, "acct_pro_1", proID)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	hash := crypto.Hash("acct_pro_1")

	f := &fixture{
		store: repotest.New(),
		proc:  newFakeProcessor(),
		pub:   &recPublisher{},
	}
	f.svc = New(f.store, f.proc, newMemLocker(), f.pub, nil, key)

	f.client = repo.User{ID: uuid.New(), Email: "client@example.com", Role: repo.RoleClient}
	f.pro = repo.User{
		ID:                proID,
		Email:             "pro@example.com",
		Role:              repo.RoleProfessional,
		HourlyRate:        decimal.NewNullDecimal(decimal.NewFromInt(20)),
		PayoutAccountEnc:  &enc,
		PayoutAccountHash: &hash,
		PayoutStatus:      repo.PayoutPending,
	}
	f.store.PutUser(f.client)
	f.store.PutUser(f.pro)

	start := time.Now().Add(24 * time.Hour).UTC()
	f.appt = repo.Appointment{
		ID:                   uuid.New(),
		ClientID:             f.client.ID,
		ProfessionalID:       f.pro.ID,
		ScheduledAt:          start,
		DurationHours:        decimal.NewFromInt(2),
		EndsAt:               start.Add(2 * time.Hour),
		BasePrice:            decimal.RequireFromString("40.00"),
		PlatformFee:          decimal.RequireFromString("4.00"),
		TaxAmount:            decimal.RequireFromString("3.20"),
		TotalPrice:           decimal.RequireFromString("47.20"),
		ProfessionalEarnings: decimal.RequireFromString("36.00"),
		Status:               repo.AppointmentPending,
	}
	return f
}

func (f *fixture) clientActor() actor.Actor {
	return actor.Actor{UserID: f.client.ID, Role: repo.RoleClient}
}

// open persists the fixture appointment with its payment.
func (f *fixture) open(t *testing.T) *repo.Payment {
	t.Helper()
	appt := f.appt
	p, err := f.svc.Open(context.Background(), &appt, func(ctx context.Context, p *repo.Payment) error {
		return f.store.CreateAppointmentWithPayment(ctx, &appt, p)
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return p
}

// paid opens the payment and delivers the processor success event.
func (f *fixture) paid(t *testing.T) *repo.Payment {
	t.Helper()
	return f.markPaid(t, f.open(t))
}

func (f *fixture) markPaid(t *testing.T, p *repo.Payment) *repo.Payment {
	t.Helper()
	err := f.svc.HandleProcessorEvent(context.Background(), ProcessorEvent{
		ID:            "evt_paid_" + p.ID.String(),
		Type:          TypeIntentSucceeded,
		IntentID:      p.PaymentIntentID,
		PaymentMethod: "card",
		ChargeID:      "ch_1",
	})
	if err != nil {
		t.Fatalf("HandleProcessorEvent: %v", err)
	}
	got, err := f.store.GetPayment(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("GetPayment: %v", err)
	}
	if got.Status != repo.PaymentPaid {
		t.Fatalf("status = %s, want paid", got.Status)
	}
	return got
}

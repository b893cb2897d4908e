package appointment

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijeyrad/karsaz_backend/config"
	"github.com/Alijeyrad/karsaz_backend/internal/repo"
	"github.com/Alijeyrad/karsaz_backend/internal/repo/repotest"
	"github.com/Alijeyrad/karsaz_backend/internal/service/actor"
	"github.com/Alijeyrad/karsaz_backend/internal/service/payment"
	"github.com/Alijeyrad/karsaz_backend/internal/service/pricing"
	"github.com/Alijeyrad/karsaz_backend/pkg/crypto"
	stripepay "github.com/Alijeyrad/karsaz_backend/pkg/stripe"
)

type stubProcessor struct {
	mu        sync.Mutex
	transfers int
	refunds   int
}

func (p *stubProcessor) CreatePaymentIntent(_ context.Context, in stripepay.IntentParams) (*stripepay.Intent, error) {
	return &stripepay.Intent{ID: "pi_" + in.IdempotencyKey, ClientSecret: "secret"}, nil
}

func (p *stubProcessor) CancelPaymentIntent(context.Context, string) error { return nil }

func (p *stubProcessor) CreateTransfer(context.Context, stripepay.TransferParams) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transfers++
	return "tr_1", nil
}

func (p *stubProcessor) CreateRefund(context.Context, stripepay.RefundParams) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refunds++
	return "re_1", nil
}

func (p *stubProcessor) Currency() string { return "usd" }

type chanLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func (l *chanLocker) Lock(ctx context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[key] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() { once.Do(func() { <-ch }) }, nil
}

// racingStore fires onCancel in the background the moment an appointment
// transition starts, then gives it time to reach the payment lock.
type racingStore struct {
	*repotest.Store
	once     sync.Once
	onCancel func()
}

func (s *racingStore) TransitionAppointment(ctx context.Context, id uuid.UUID, from []repo.AppointmentStatus, to repo.AppointmentStatus, at time.Time) (*repo.Appointment, error) {
	if to == repo.AppointmentCancelled && s.onCancel != nil {
		s.once.Do(func() {
			go s.onCancel()
			time.Sleep(50 * time.Millisecond)
		})
	}
	return s.Store.TransitionAppointment(ctx, id, from, to, at)
}

func TestCancelBlocksConcurrentDispute(t *testing.T) {
	ctx := context.Background()

	key, err := crypto.KeyFromHex(strings.Repeat("cd", 32))
	require.NoError(t, err)

	store := &racingStore{Store: repotest.New()}
	proc := &stubProcessor{}
	payments := payment.New(store, proc, &chanLocker{locks: map[string]chan struct{}{}}, nil, nil, key)
	svc := New(store, pricing.New(store, nil, config.PricingConfig{}), payments, nil)

	client := repo.User{ID: uuid.New(), Email: "client@example.com", Role: repo.RoleClient}
	proID := uuid.New()
	enc, err := crypto.Encrypt(key, "acct_guard", proID)
	require.NoError(t, err)
	hash := crypto.Hash("acct_guard")
	pro := repo.User{
		ID:                proID,
		Email:             "pro@example.com",
		Role:              repo.RoleProfessional,
		HourlyRate:        decimal.NewNullDecimal(decimal.NewFromInt(20)),
		PayoutAccountEnc:  &enc,
		PayoutAccountHash: &hash,
	}
	store.PutUser(client)
	store.PutUser(pro)
	svcRow := repo.Service{ProfessionalID: pro.ID, Name: "Brake repair"}
	require.NoError(t, store.CreateService(ctx, &svcRow))

	clientAct := actor.Actor{UserID: client.ID, Role: repo.RoleClient}
	res, err := svc.Create(ctx, clientAct, CreateRequest{
		ProfessionalID: pro.ID,
		ServiceIDs:     []uuid.UUID{svcRow.ID},
		ScheduledAt:    time.Now().Add(48 * time.Hour),
		Duration:       decimal.NewFromInt(2),
		Issue:          "Squeaking brakes",
		Location:       "12 Main St",
	})
	require.NoError(t, err)
	p, err := store.GetPaymentByAppointment(ctx, res.Appointment.ID)
	require.NoError(t, err)
	require.NoError(t, payments.HandleProcessorEvent(ctx, payment.ProcessorEvent{
		ID:       "evt_paid",
		Type:     payment.TypeIntentSucceeded,
		IntentID: p.PaymentIntentID,
	}))

	disputeErr := make(chan error, 1)
	store.onCancel = func() {
		_, err := payments.CreateDispute(ctx, clientAct, p.ID, payment.DisputeRequest{Message: "changed my mind"})
		disputeErr <- err
	}

	out, err := svc.Cancel(ctx, clientAct, res.Appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, repo.AppointmentCancelled, out.Status)

	select {
	case err := <-disputeErr:
		assert.ErrorIs(t, err, payment.ErrStatusConflict)
	case <-time.After(5 * time.Second):
		t.Fatal("dispute never finished")
	}

	got, err := store.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, repo.PaymentRefunded, got.Status)
	assert.Equal(t, 1, proc.refunds)
	assert.Zero(t, proc.transfers)

	_, err = store.LatestDispute(ctx, p.ID)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

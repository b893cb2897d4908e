package user

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijeyrad/karsaz_backend/internal/repo"
	"github.com/Alijeyrad/karsaz_backend/internal/repo/repotest"
	"github.com/Alijeyrad/karsaz_backend/internal/service/actor"
	"github.com/Alijeyrad/karsaz_backend/pkg/crypto"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	k, err := crypto.KeyFromHex(strings.Repeat("ab", 32))
	require.NoError(t, err)
	return k
}

func seed(t *testing.T, store *repotest.Store, role repo.Role) repo.User {
	t.Helper()
	u := repo.User{ID: uuid.New(), Email: uuid.NewString() + "@example.com", FirstName: "Pat", Role: role}
	store.PutUser(u)
	return u
}

func TestUpdateProfessionalProfile(t *testing.T) {
	ctx := context.Background()
	store := repotest.New()
	svc := New(store, testKey(t))
	pro := seed(t, store, repo.RoleProfessional)
	act := actor.Actor{UserID: pro.ID, Role: repo.RoleProfessional}

	rate := decimal.RequireFromString("42.505")
	acct := " acct_1Nv0FGQ9RKHgCVdK "
	u, err := svc.UpdateProfessionalProfile(ctx, act, ProfessionalProfileRequest{HourlyRate: &rate, PayoutAccountID: &acct})
	require.NoError(t, err)

	assert.Equal(t, "42.51", u.HourlyRate.Decimal.StringFixed(2))
	require.NotNil(t, u.PayoutAccountEnc)
	assert.NotContains(t, *u.PayoutAccountEnc, "acct_", "account id is stored encrypted")
	require.NotNil(t, u.PayoutAccountHash)
	assert.Equal(t, crypto.Hash("acct_1Nv0FGQ9RKHgCVdK"), *u.PayoutAccountHash)
	assert.Equal(t, repo.PayoutPending, u.PayoutStatus)

	plain, err := svc.PayoutAccount(u)
	require.NoError(t, err)
	assert.Equal(t, "acct_1Nv0FGQ9RKHgCVdK", plain)
}

func TestUpdateProfessionalProfileRejects(t *testing.T) {
	ctx := context.Background()
	store := repotest.New()
	svc := New(store, testKey(t))
	pro := seed(t, store, repo.RoleProfessional)
	client := seed(t, store, repo.RoleClient)

	zero := decimal.Zero
	bad := "cus_123"
	empty := "acct_"
	rate := decimal.NewFromInt(10)

	tests := []struct {
		name string
		act  actor.Actor
		req  ProfessionalProfileRequest
		want error
	}{
		{"client", actor.Actor{UserID: client.ID, Role: repo.RoleClient}, ProfessionalProfileRequest{HourlyRate: &rate}, ErrForbidden},
		{"empty", actor.Actor{UserID: pro.ID, Role: repo.RoleProfessional}, ProfessionalProfileRequest{}, ErrNothingToUpdate},
		{"zero rate", actor.Actor{UserID: pro.ID, Role: repo.RoleProfessional}, ProfessionalProfileRequest{HourlyRate: &zero}, ErrInvalidHourlyRate},
		{"wrong prefix", actor.Actor{UserID: pro.ID, Role: repo.RoleProfessional}, ProfessionalProfileRequest{PayoutAccountID: &bad}, ErrInvalidPayoutAccount},
		{"prefix only", actor.Actor{UserID: pro.ID, Role: repo.RoleProfessional}, ProfessionalProfileRequest{PayoutAccountID: &empty}, ErrInvalidPayoutAccount},
		{"unknown user", actor.Actor{UserID: uuid.New(), Role: repo.RoleProfessional}, ProfessionalProfileRequest{HourlyRate: &rate}, ErrUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateProfessionalProfile(ctx, tt.act, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMe(t *testing.T) {
	store := repotest.New()
	svc := New(store, testKey(t))
	u := seed(t, store, repo.RoleClient)

	got, err := svc.Me(context.Background(), actor.Actor{UserID: u.ID, Role: repo.RoleClient})
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)

	_, err = svc.Me(context.Background(), actor.Actor{UserID: uuid.New()})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRecomputeMetrics(t *testing.T) {
	ctx := context.Background()
	store := repotest.New()
	svc := New(store, testKey(t))
	pro := seed(t, store, repo.RoleProfessional)
	c1 := seed(t, store, repo.RoleClient)
	c2 := seed(t, store, repo.RoleClient)

	put := func(client uuid.UUID, status repo.AppointmentStatus) {
		store.PutAppointment(repo.Appointment{
			ID:             uuid.New(),
			ClientID:       client,
			ProfessionalID: pro.ID,
			ScheduledAt:    time.Now(),
			Status:         status,
		})
	}
	put(c1.ID, repo.AppointmentCompleted)
	put(c1.ID, repo.AppointmentConfirmed)
	put(c2.ID, repo.AppointmentPending)
	put(c2.ID, repo.AppointmentCancelled)

	require.NoError(t, svc.RecomputeMetrics(ctx, pro.ID))
	require.NoError(t, svc.RecomputeMetrics(ctx, c1.ID))

	got, err := store.GetUser(ctx, pro.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CompletedAppointments)
	assert.Equal(t, 2, got.ActiveAppointments)
	assert.Equal(t, 4, got.AllAppointments)
	assert.Equal(t, 2, got.TotalClients)

	client, err := store.GetUser(ctx, c1.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, client.AllAppointments)
	assert.Equal(t, 0, client.TotalClients)
}

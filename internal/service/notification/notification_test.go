package notification

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijeyrad/karsaz_backend/internal/repo"
	"github.com/Alijeyrad/karsaz_backend/internal/repo/repotest"
	"github.com/Alijeyrad/karsaz_backend/internal/service/actor"
	"github.com/Alijeyrad/karsaz_backend/pkg/events"
)

func paymentEvent(action string) events.Event {
	id := uuid.New()
	return events.Event{
		Entity:         events.EntityPayment,
		Action:         action,
		ID:             id,
		PaymentID:      id,
		AppointmentID:  uuid.New(),
		ClientID:       uuid.New(),
		ProfessionalID: uuid.New(),
		Amount:         "47.20",
	}
}

func TestBuild(t *testing.T) {
	tests := []struct {
		action string
		want   map[string]string // recipient role -> type
	}{
		{"initiated", map[string]string{"pro": TypePaymentInitiated}},
		{"paid", map[string]string{"client": TypePaymentPaid, "pro": TypePaymentPaid}},
		{"failed", map[string]string{"client": TypePaymentFailed}},
		{"approved", map[string]string{"pro": TypeWorkApproved}},
		{"released", map[string]string{"client": TypePaymentReleased, "pro": TypePaymentReceived}},
		{"refunded", map[string]string{"client": TypePaymentRefunded, "pro": TypePaymentRefunded}},
		{"disputed", map[string]string{"client": TypeDisputeRaised, "pro": TypeDisputeRaised}},
		{"resolved", map[string]string{"client": TypeDisputeResolved, "pro": TypeDisputeResolved}},
		{"unknown", map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			ev := paymentEvent(tt.action)
			got := map[string]string{}
			for _, req := range Build(ev) {
				switch req.UserID {
				case ev.ClientID:
					got["client"] = req.Type
				case ev.ProfessionalID:
					got["pro"] = req.Type
				default:
					t.Fatalf("notification for unexpected user %s", req.UserID)
				}
				assert.NotEmpty(t, req.Title)
				assert.Equal(t, ev.PaymentID.String(), req.Data["payment_id"])
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildCancelledSkipsActor(t *testing.T) {
	ev := paymentEvent("cancelled")
	ev.Entity = events.EntityAppointment
	ev.ActorID = ev.ClientID

	reqs := Build(ev)
	require.Len(t, reqs, 1)
	assert.Equal(t, ev.ProfessionalID, reqs[0].UserID)
	assert.Equal(t, TypeAppointmentCancelled, reqs[0].Type)

	ev.ActorID = uuid.New() // admin
	assert.Len(t, Build(ev), 2)
}

func TestResolvedCarriesResolution(t *testing.T) {
	ev := paymentEvent("resolved")
	ev.Note = "work was not done"
	for _, req := range Build(ev) {
		assert.Contains(t, req.Body, "work was not done")
	}
}

func TestHandleEventAndInbox(t *testing.T) {
	ctx := context.Background()
	store := repotest.New()
	svc := New(store)

	ev := paymentEvent("released")
	require.NoError(t, svc.HandleEvent(ctx, ev))
	require.NoError(t, svc.HandleEvent(ctx, paymentEvent("paid")))

	client := actor.Actor{UserID: ev.ClientID, Role: repo.RoleClient}
	pro := actor.Actor{UserID: ev.ProfessionalID, Role: repo.RoleProfessional}

	list, total, err := svc.List(ctx, pro, ListRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, TypePaymentReceived, list[0].Type)
	assert.Equal(t, "47.20", list[0].Data["amount"])

	assert.ErrorIs(t, svc.MarkRead(ctx, client, list[0].ID), ErrNotFound, "cannot read another user's notification")
	require.NoError(t, svc.MarkRead(ctx, pro, list[0].ID))

	unread, err := svc.UnreadCount(ctx, pro)
	require.NoError(t, err)
	assert.Zero(t, unread)

	n, err := svc.MarkAllRead(ctx, client)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	list, _, err = svc.List(ctx, client, ListRequest{UnreadOnly: true})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateValidation(t *testing.T) {
	svc := New(repotest.New())
	_, err := svc.Create(context.Background(), CreateRequest{Type: TypePaymentPaid, Title: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Create(context.Background(), CreateRequest{UserID: uuid.New(), Type: TypePaymentPaid, Title: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

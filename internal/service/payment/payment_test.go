package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/Alijeyrad/karsaz_backend/internal/repo"
	"github.com/Alijeyrad/karsaz_backend/internal/service/actor"
)

type PaymentSuite struct {
	suite.Suite
	ctx   context.Context
	f     *fixture
	admin actor.Actor
}

func TestPaymentSuite(t *testing.T) {
	suite.Run(t, new(PaymentSuite))
}

func (s *PaymentSuite) SetupTest() {
	s.ctx = context.Background()
	s.f = newFixture(s.T())
	s.admin = actor.Actor{UserID: uuid.New(), Role: repo.RoleAdmin, RequestID: "req-admin"}
}

func (s *PaymentSuite) clientActor() actor.Actor {
	return actor.Actor{UserID: s.f.client.ID, Role: repo.RoleClient}
}

func (s *PaymentSuite) proActor() actor.Actor {
	return actor.Actor{UserID: s.f.pro.ID, Role: repo.RoleProfessional}
}

// cancelAppointment cancels the booking behind the payment's back.
func (s *PaymentSuite) cancelAppointment(id uuid.UUID) {
	_, err := s.f.store.TransitionAppointment(s.ctx, id,
		[]repo.AppointmentStatus{repo.AppointmentPending, repo.AppointmentConfirmed},
		repo.AppointmentCancelled, time.Now().UTC())
	s.Require().NoError(err)
}

func (s *PaymentSuite) reload(id uuid.UUID) *repo.Payment {
	p, err := s.f.store.GetPayment(s.ctx, id)
	s.Require().NoError(err)
	return p
}

// ---------------------------------------------------------------------------
// Open / CreateIntent
// ---------------------------------------------------------------------------

func (s *PaymentSuite) TestOpenCreatesPendingPayment() {
	p := s.f.open(s.T())

	s.Equal(repo.PaymentPending, p.Status)
	s.Equal("47.20", p.Amount.StringFixed(2))
	s.Equal("36.00", p.ProfessionalEarnings.StringFixed(2))
	s.NotEmpty(p.ClientSecret)
	s.Contains(s.f.proc.intents, "intent-"+s.f.appt.ID.String())
	s.Equal([]string{"initiated"}, s.f.pub.actions())
}

func (s *PaymentSuite) TestOpenCancelsIntentWhenPersistFails() {
	appt := s.f.appt
	_, err := s.f.svc.Open(s.ctx, &appt, func(context.Context, *repo.Payment) error {
		return errors.New("db down")
	})
	s.Require().Error(err)

	s.Len(s.f.proc.cancelled, 1, "orphaned intent must be cancelled")
	s.Equal(0, s.f.store.AppointmentCount())
	s.Equal(0, s.f.store.PaymentCount(appt.ID))
	s.Empty(s.f.pub.actions())
}

func (s *PaymentSuite) TestOpenWithoutPayoutAccount() {
	pro := s.f.pro
	pro.PayoutAccountEnc = nil
	s.f.store.PutUser(pro)

	appt := s.f.appt
	_, err := s.f.svc.Open(s.ctx, &appt, s.f.store.CreatePayment)
	s.ErrorIs(err, ErrPayoutAccountMissing)
	s.Empty(s.f.proc.intents, "no processor call without a payout account")
}

func (s *PaymentSuite) TestOpenProcessorFailure() {
	s.f.proc.failIntent = errors.New("timeout")

	appt := s.f.appt
	_, err := s.f.svc.Open(s.ctx, &appt, s.f.store.CreatePayment)
	s.ErrorIs(err, ErrUpstream)
	s.Equal(0, s.f.store.PaymentCount(appt.ID))
}

func (s *PaymentSuite) TestCreateIntentReusesPendingPayment() {
	p := s.f.open(s.T())

	again, err := s.f.svc.CreateIntent(s.ctx, s.clientActor(), s.f.appt.ID)
	s.Require().NoError(err)
	s.Equal(p.ID, again.ID)
	s.Equal(p.ClientSecret, again.ClientSecret)
	s.Equal(1, s.f.store.PaymentCount(s.f.appt.ID))
}

func (s *PaymentSuite) TestCreateIntentRejectsSecondPayment() {
	s.f.paid(s.T())

	_, err := s.f.svc.CreateIntent(s.ctx, s.clientActor(), s.f.appt.ID)
	s.ErrorIs(err, ErrAlreadyExists)
	s.Equal(1, s.f.store.PaymentCount(s.f.appt.ID))
}

func (s *PaymentSuite) TestCreateIntentForAppointmentWithoutPayment() {
	s.f.store.PutAppointment(s.f.appt)

	p, err := s.f.svc.CreateIntent(s.ctx, s.clientActor(), s.f.appt.ID)
	s.Require().NoError(err)
	s.Equal(repo.PaymentPending, p.Status)
	s.Equal(1, s.f.store.PaymentCount(s.f.appt.ID))

	_, err = s.f.svc.CreateIntent(s.ctx, s.proActor(), s.f.appt.ID)
	s.ErrorIs(err, ErrForbidden)

	_, err = s.f.svc.CreateIntent(s.ctx, s.clientActor(), uuid.New())
	s.ErrorIs(err, ErrNotFound)
}

// ---------------------------------------------------------------------------
// Release / Refund / Approve / Cancel
// ---------------------------------------------------------------------------

func (s *PaymentSuite) TestReleasePendingPaymentConflicts() {
	p := s.f.open(s.T())

	_, err := s.f.svc.Release(s.ctx, s.admin, p.ID)
	s.ErrorIs(err, ErrStatusConflict)
	s.Empty(s.f.proc.transfers, "no transfer for an unpaid payment")
	s.Equal(repo.PaymentPending, s.reload(p.ID).Status)
}

func (s *PaymentSuite) TestReleasePaidPayment() {
	p := s.f.paid(s.T())

	out, err := s.f.svc.Release(s.ctx, s.admin, p.ID)
	s.Require().NoError(err)
	s.Equal(repo.PaymentReleased, out.Status)
	s.Require().NotNil(out.TransferID)
	s.NotNil(out.ReleasedAt)

	s.Require().Len(s.f.proc.transfers, 1)
	tr := s.f.proc.transfers[0]
	s.Equal(int64(3600), tr.AmountCents)
	s.Equal("acct_pro_1", tr.Destination)
	s.Equal("transfer-"+p.ID.String(), tr.IdempotencyKey)

	appt, err := s.f.store.GetAppointment(s.ctx, p.AppointmentID)
	s.Require().NoError(err)
	s.Equal(repo.AppointmentCompleted, appt.Status)

	_, err = s.f.svc.Release(s.ctx, s.admin, p.ID)
	s.ErrorIs(err, ErrStatusConflict)
	s.Len(s.f.proc.transfers, 1)
}

func (s *PaymentSuite) TestReleaseRequiresAdmin() {
	p := s.f.paid(s.T())

	for _, act := range []actor.Actor{s.clientActor(), s.proActor()} {
		_, err := s.f.svc.Release(s.ctx, act, p.ID)
		s.ErrorIs(err, ErrForbidden)
	}
	s.Empty(s.f.proc.transfers)
}

func (s *PaymentSuite) TestReleaseTransferFailureKeepsPaid() {
	p := s.f.paid(s.T())
	s.f.proc.failTransfer = errors.New("connection reset")

	_, err := s.f.svc.Release(s.ctx, s.admin, p.ID)
	s.ErrorIs(err, ErrUpstream)

	got := s.reload(p.ID)
	s.Equal(repo.PaymentPaid, got.Status)
	s.Nil(got.TransferID)
}

func (s *PaymentSuite) TestReleaseRefusedForCancelledAppointment() {
	p := s.f.paid(s.T())
	s.cancelAppointment(p.AppointmentID)

	_, err := s.f.svc.Release(s.ctx, s.admin, p.ID)
	s.ErrorIs(err, ErrStatusConflict)
	s.Empty(s.f.proc.transfers)
	s.Equal(repo.PaymentPaid, s.reload(p.ID).Status)
}

func (s *PaymentSuite) TestConcurrentReleaseAndRefund() {
	p := s.f.paid(s.T())

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = s.f.svc.Release(s.ctx, s.admin, p.ID)
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = s.f.svc.Refund(s.ctx, s.admin, p.ID)
	}()
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		s.ErrorIs(err, ErrStatusConflict)
	}
	s.Equal(1, won, "exactly one of release and refund wins")
	s.Equal(1, len(s.f.proc.transfers)+len(s.f.proc.refunds), "funds move once")

	got := s.reload(p.ID)
	if errs[0] == nil {
		s.Equal(repo.PaymentReleased, got.Status)
		s.Nil(got.RefundID)
	} else {
		s.Equal(repo.PaymentRefunded, got.Status)
		s.Nil(got.TransferID)
	}
}

func (s *PaymentSuite) TestConcurrentCaptureAndCancel() {
	p := s.f.open(s.T())

	var (
		wg        sync.WaitGroup
		cancelErr error
		eventErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, cancelErr = s.f.svc.Cancel(s.ctx, s.clientActor(), p.ID)
	}()
	go func() {
		defer wg.Done()
		eventErr = s.f.svc.HandleProcessorEvent(s.ctx, ProcessorEvent{
			ID:       "evt_race",
			Type:     TypeIntentSucceeded,
			IntentID: p.PaymentIntentID,
		})
	}()
	wg.Wait()

	s.Require().NoError(eventErr)
	got := s.reload(p.ID)
	if cancelErr == nil {
		s.Equal(repo.PaymentCancelled, got.Status)
		s.NotNil(got.RefundID, "captured funds are returned")
		s.Len(s.f.proc.refunds, 1)
	} else {
		s.ErrorIs(cancelErr, ErrStatusConflict)
		s.Equal(repo.PaymentPaid, got.Status)
		s.Empty(s.f.proc.refunds)
	}
	s.Empty(s.f.proc.transfers)
}

func (s *PaymentSuite) TestRefundPaidPayment() {
	p := s.f.paid(s.T())

	out, err := s.f.svc.Refund(s.ctx, s.admin, p.ID)
	s.Require().NoError(err)
	s.Equal(repo.PaymentRefunded, out.Status)
	s.NotNil(out.RefundID)
	s.Require().Len(s.f.proc.refunds, 1)
	s.Equal("refund-"+p.ID.String(), s.f.proc.refunds[0].IdempotencyKey)
	s.Equal(p.PaymentIntentID, s.f.proc.refunds[0].PaymentIntentID)

	_, err = s.f.svc.Refund(s.ctx, s.clientActor(), p.ID)
	s.ErrorIs(err, ErrForbidden)
}

func (s *PaymentSuite) TestApprove() {
	p := s.f.open(s.T())

	_, err := s.f.svc.Approve(s.ctx, s.clientActor(), p.ID)
	s.ErrorIs(err, ErrStatusConflict, "approval needs a paid payment")

	s.f.markPaid(s.T(), p)
	_, err = s.f.svc.Approve(s.ctx, s.proActor(), p.ID)
	s.ErrorIs(err, ErrForbidden)

	out, err := s.f.svc.Approve(s.ctx, s.clientActor(), p.ID)
	s.Require().NoError(err)
	s.True(out.ClientApproval)
	s.Equal(repo.PaymentPaid, out.Status, "approval is advisory")
	s.Empty(s.f.proc.transfers)
}

func (s *PaymentSuite) TestCancelPending() {
	p := s.f.open(s.T())

	_, err := s.f.svc.Cancel(s.ctx, s.proActor(), p.ID)
	s.ErrorIs(err, ErrForbidden)

	out, err := s.f.svc.Cancel(s.ctx, s.clientActor(), p.ID)
	s.Require().NoError(err)
	s.Equal(repo.PaymentCancelled, out.Status)
	s.Equal([]string{p.PaymentIntentID}, s.f.proc.cancelled)

	_, err = s.f.svc.Cancel(s.ctx, s.clientActor(), p.ID)
	s.ErrorIs(err, ErrStatusConflict)
}

func (s *PaymentSuite) TestVoidForAppointment() {
	p := s.f.paid(s.T())

	out, err := s.f.svc.VoidForAppointment(s.ctx, s.clientActor(), p.AppointmentID)
	s.Require().NoError(err)
	s.Equal(repo.PaymentRefunded, out.Status)

	again, err := s.f.svc.VoidForAppointment(s.ctx, s.clientActor(), p.AppointmentID)
	s.Require().NoError(err, "voiding twice is a no-op")
	s.Equal(repo.PaymentRefunded, again.Status)
	s.Len(s.f.proc.refunds, 1)

	none, err := s.f.svc.VoidForAppointment(s.ctx, s.clientActor(), uuid.New())
	s.Require().NoError(err)
	s.Nil(none)
}

// ---------------------------------------------------------------------------
// Disputes
// ---------------------------------------------------------------------------

func (s *PaymentSuite) TestDisputeRefundThenSecondResolveRejected() {
	p := s.f.paid(s.T())

	d, err := s.f.svc.CreateDispute(s.ctx, s.clientActor(), p.ID, DisputeRequest{
		Message:  "work was not done",
		Evidence: []string{"https://files.example.com/photo.jpg"},
	})
	s.Require().NoError(err)
	s.Equal(repo.DisputePending, d.Status)
	s.Equal(repo.PaymentDisputed, s.reload(p.ID).Status)

	res, err := s.f.svc.ResolveDispute(s.ctx, s.admin, p.ID, ResolveRequest{
		Resolution:   "refund approved",
		RefundClient: true,
	})
	s.Require().NoError(err)
	s.Equal(repo.PaymentRefunded, res.Payment.Status)
	s.Nil(res.Payment.TransferID)
	s.Equal(repo.DisputeRefunded, res.Dispute.Status)
	s.Require().NotNil(res.Dispute.ResolvedBy)
	s.Equal(s.admin.UserID, *res.Dispute.ResolvedBy)

	_, err = s.f.svc.ResolveDispute(s.ctx, s.admin, p.ID, ResolveRequest{Resolution: "again", RefundClient: true})
	s.ErrorIs(err, ErrStatusConflict)
	_, err = s.f.svc.ResolveDispute(s.ctx, s.admin, p.ID, ResolveRequest{Resolution: "again"})
	s.ErrorIs(err, ErrStatusConflict)

	got := s.reload(p.ID)
	s.Equal(repo.PaymentRefunded, got.Status)
	s.Nil(got.TransferID)
	s.Empty(s.f.proc.transfers)
	s.Len(s.f.proc.refunds, 1)
}

func (s *PaymentSuite) TestDisputeResolvedByRelease() {
	p := s.f.paid(s.T())
	_, err := s.f.svc.CreateDispute(s.ctx, s.proActor(), p.ID, DisputeRequest{Message: "client unresponsive"})
	s.Require().NoError(err)

	_, err = s.f.svc.ReviewDispute(s.ctx, s.admin, p.ID)
	s.Require().NoError(err)

	res, err := s.f.svc.ResolveDispute(s.ctx, s.admin, p.ID, ResolveRequest{Resolution: "work verified"})
	s.Require().NoError(err)
	s.Equal(repo.PaymentReleased, res.Payment.Status)
	s.NotNil(res.Payment.TransferID)
	s.Equal(repo.DisputeResolved, res.Dispute.Status)
	s.Len(s.f.proc.transfers, 1)
}

func (s *PaymentSuite) TestDisputeRules() {
	p := s.f.open(s.T())

	_, err := s.f.svc.CreateDispute(s.ctx, s.clientActor(), p.ID, DisputeRequest{Message: "early"})
	s.ErrorIs(err, ErrStatusConflict, "pending payments cannot be disputed")

	s.f.markPaid(s.T(), p)
	_, err = s.f.svc.CreateDispute(s.ctx, s.clientActor(), p.ID, DisputeRequest{Message: "  "})
	s.ErrorIs(err, ErrInvalidInput)

	stranger := actor.Actor{UserID: uuid.New(), Role: repo.RoleClient}
	_, err = s.f.svc.CreateDispute(s.ctx, stranger, p.ID, DisputeRequest{Message: "not mine"})
	s.ErrorIs(err, ErrForbidden)

	_, err = s.f.svc.CreateDispute(s.ctx, s.clientActor(), p.ID, DisputeRequest{Message: "first"})
	s.Require().NoError(err)
	_, err = s.f.svc.CreateDispute(s.ctx, s.proActor(), p.ID, DisputeRequest{Message: "second"})
	s.ErrorIs(err, ErrStatusConflict)

	_, err = s.f.svc.Release(s.ctx, s.admin, p.ID)
	s.ErrorIs(err, ErrStatusConflict, "disputed funds are released only through resolve")

	_, err = s.f.svc.ResolveDispute(s.ctx, s.clientActor(), p.ID, ResolveRequest{Resolution: "mine"})
	s.ErrorIs(err, ErrForbidden)
}

func (s *PaymentSuite) TestDisputeRefusedForCancelledAppointment() {
	p := s.f.paid(s.T())
	s.cancelAppointment(p.AppointmentID)

	_, err := s.f.svc.CreateDispute(s.ctx, s.clientActor(), p.ID, DisputeRequest{Message: "too late"})
	s.ErrorIs(err, ErrStatusConflict)
	s.Equal(repo.PaymentPaid, s.reload(p.ID).Status)
}

func (s *PaymentSuite) TestResolveForCancelledAppointmentOnlyRefunds() {
	p := s.f.paid(s.T())
	_, err := s.f.svc.CreateDispute(s.ctx, s.clientActor(), p.ID, DisputeRequest{Message: "no show"})
	s.Require().NoError(err)
	s.cancelAppointment(p.AppointmentID)

	_, err = s.f.svc.ResolveDispute(s.ctx, s.admin, p.ID, ResolveRequest{Resolution: "pay out"})
	s.ErrorIs(err, ErrStatusConflict)
	s.Empty(s.f.proc.transfers)

	res, err := s.f.svc.ResolveDispute(s.ctx, s.admin, p.ID, ResolveRequest{Resolution: "refund", RefundClient: true})
	s.Require().NoError(err)
	s.Equal(repo.PaymentRefunded, res.Payment.Status)
	s.Len(s.f.proc.refunds, 1)
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

func (s *PaymentSuite) TestGetAndList() {
	p := s.f.paid(s.T())
	_, err := s.f.svc.CreateDispute(s.ctx, s.clientActor(), p.ID, DisputeRequest{Message: "late"})
	s.Require().NoError(err)

	det, err := s.f.svc.Get(s.ctx, s.proActor(), p.ID)
	s.Require().NoError(err)
	s.Require().NotNil(det.Dispute)
	s.Equal("late", det.Dispute.Message)

	_, err = s.f.svc.Get(s.ctx, actor.Actor{UserID: uuid.New(), Role: repo.RoleClient}, p.ID)
	s.ErrorIs(err, ErrForbidden)

	_, err = s.f.svc.Get(s.ctx, s.admin, uuid.New())
	s.ErrorIs(err, ErrNotFound)

	mine, total, err := s.f.svc.List(s.ctx, s.clientActor(), ListFilter{})
	s.Require().NoError(err)
	s.EqualValues(1, total)
	s.Len(mine, 1)

	none, total, err := s.f.svc.List(s.ctx, actor.Actor{UserID: uuid.New(), Role: repo.RoleClient}, ListFilter{})
	s.Require().NoError(err)
	s.Zero(total)
	s.Empty(none)

	disputed := repo.PaymentDisputed
	all, total, err := s.f.svc.List(s.ctx, s.admin, ListFilter{Status: &disputed})
	s.Require().NoError(err)
	s.EqualValues(1, total)
	s.Len(all, 1)
}

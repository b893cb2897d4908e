package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/karsaz_backend/internal/repo"
	"github.com/Alijeyrad/karsaz_backend/internal/service/actor"
)

const maxEvidence = 10

func (s *paymentService) CreateDispute(ctx context.Context, act actor.Actor, id uuid.UUID, req DisputeRequest) (*repo.Dispute, error) {
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidInput)
	}
	if len(req.Evidence) > maxEvidence {
		return nil, fmt.Errorf("%w: at most %d evidence items", ErrInvalidInput, maxEvidence)
	}

	unlock, err := s.locker.Lock(ctx, lockKey(id), lockTTL)
	if err != nil {
		return nil, fmt.Errorf("lock payment: %w", err)
	}
	defer unlock()

	p, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "get payment")
	}
	if !p.IsParty(act.UserID) {
		return nil, ErrForbidden
	}
	if _, err := Next(p.Status, EventDispute); err != nil {
		return nil, err
	}
	if err := s.requireLiveAppointment(ctx, p); err != nil {
		return nil, err
	}

	d := &repo.Dispute{
		ID:        uuid.Must(uuid.NewV7()),
		PaymentID: p.ID,
		RaisedBy:  act.UserID,
		Message:   req.Message,
		Evidence:  req.Evidence,
		Status:    repo.DisputePending,
	}
	out, err := s.store.OpenDispute(ctx, d)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDisputeExists
		}
		return nil, conflictOr(err, "open dispute")
	}

	s.transitioned(ctx, act, p.Status, out)
	s.publish(ctx, "disputed", out, act.UserID, req.Message)
	return d, nil
}

func (s *paymentService) ReviewDispute(ctx context.Context, act actor.Actor, id uuid.UUID) (*repo.Dispute, error) {
	if !act.IsAdmin() {
		return nil, ErrForbidden
	}

	d, err := s.store.LatestDispute(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "latest dispute")
	}
	out, err := s.store.ReviewDispute(ctx, d.ID, time.Now().UTC())
	if err != nil {
		return nil, conflictOr(err, "review dispute")
	}
	return out, nil
}

func (s *paymentService) ResolveDispute(ctx context.Context, act actor.Actor, id uuid.UUID, req ResolveRequest) (*Details, error) {
	if !act.IsAdmin() {
		return nil, ErrForbidden
	}
	req.Resolution = strings.TrimSpace(req.Resolution)
	if req.Resolution == "" {
		return nil, fmt.Errorf("%w: resolution is required", ErrInvalidInput)
	}

	ctx, span := s.metrics.Start(ctx, "payment.resolve_dispute")
	defer span.End()

	unlock, err := s.locker.Lock(ctx, lockKey(id), lockTTL)
	if err != nil {
		return nil, fmt.Errorf("lock payment: %w", err)
	}
	defer unlock()

	p, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "get payment")
	}
	ev := EventResolveRelease
	if req.RefundClient {
		ev = EventResolveRefund
	}
	if _, err := Next(p.Status, ev); err != nil {
		return nil, err
	}
	if !req.RefundClient {
		if err := s.requireLiveAppointment(ctx, p); err != nil {
			return nil, err
		}
	}

	d, err := s.store.LatestDispute(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "latest dispute")
	}
	if !d.Status.IsOpen() {
		return nil, fmt.Errorf("%w: dispute is %s", ErrStatusConflict, d.Status)
	}

	now := time.Now().UTC()
	var upd repo.PaymentUpdate
	if req.RefundClient {
		refundID, err := s.refund(ctx, p)
		if err != nil {
			return nil, err
		}
		upd.RefundID, upd.RefundedAt = &refundID, &now
	} else {
		transferID, err := s.transfer(ctx, p)
		if err != nil {
			return nil, err
		}
		upd.TransferID, upd.ReleasedAt = &transferID, &now
	}

	closed, out, err := s.store.ResolveDispute(ctx, repo.DisputeResolution{
		DisputeID:  d.ID,
		ResolvedBy: act.UserID,
		Resolution: req.Resolution,
		Refund:     req.RefundClient,
		Update:     upd,
	})
	if err != nil {
		return nil, conflictOr(err, "resolve dispute")
	}

	s.transitioned(ctx, act, p.Status, out)
	s.publish(ctx, "resolved", out, act.UserID, req.Resolution)
	return &Details{Payment: out, Dispute: closed}, nil
}

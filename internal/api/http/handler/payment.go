package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/Alijeyrad/karsaz_backend/internal/repo"
	"github.com/Alijeyrad/karsaz_backend/internal/service/actor"
	"github.com/Alijeyrad/karsaz_backend/internal/service/payment"
)

type PaymentHandler struct {
	svc payment.Service
}

func NewPaymentHandler(svc payment.Service) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

func mapPaymentError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, payment.ErrNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, payment.ErrForbidden):
		return forbidden(c)
	case errors.Is(err, payment.ErrInvalidInput):
		return badRequest(c, err.Error())
	case errors.Is(err, payment.ErrStatusConflict),
		errors.Is(err, payment.ErrDisputeExists),
		errors.Is(err, payment.ErrAlreadyExists):
		return conflict(c, err.Error())
	case errors.Is(err, payment.ErrPayoutAccountMissing):
		return badGateway(c, payment.ErrPayoutAccountMissing.Error(), err)
	case errors.Is(err, payment.ErrUpstream):
		return badGateway(c, payment.ErrUpstream.Error(), err)
	default:
		return internalError(c, err)
	}
}

// POST /api/v1/payment/intent
func (h *PaymentHandler) CreateIntent(c fiber.Ctx) error {
	act, found := actorFromClaims(c)
	if !found {
		return unauthorized(c)
	}

	var body struct {
		AppointmentID uuid.UUID `json:"appointmentId"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.AppointmentID == uuid.Nil {
		return badRequest(c, "appointmentId is required")
	}

	p, err := h.svc.CreateIntent(c.Context(), act, body.AppointmentID)
	if err != nil {
		return mapPaymentError(c, err)
	}

	return ok(c, fiber.Map{
		"payment":      newPaymentView(p),
		"clientSecret": p.ClientSecret,
	})
}

// GET /api/v1/payment
func (h *PaymentHandler) List(c fiber.Ctx) error {
	act, found := actorFromClaims(c)
	if !found {
		return unauthorized(c)
	}

	var q pageQuery
	_ = c.Bind().Query(&q)
	q.normalize()

	f := payment.ListFilter{Page: q.Page, PerPage: q.PerPage}
	if raw := c.Query("status"); raw != "" {
		st, valid := parsePaymentStatus(raw)
		if !valid {
			return badRequest(c, "invalid status")
		}
		f.Status = &st
	}

	items, total, err := h.svc.List(c.Context(), act, f)
	if err != nil {
		return mapPaymentError(c, err)
	}

	return ok(c, paged(newPaymentViews(items), total, q))
}

// GET /api/v1/payment/:id
func (h *PaymentHandler) Get(c fiber.Ctx) error {
	act, found := actorFromClaims(c)
	if !found {
		return unauthorized(c)
	}
	id, valid := idParam(c)
	if !valid {
		return badRequest(c, "invalid payment id")
	}

	d, err := h.svc.Get(c.Context(), act, id)
	if err != nil {
		return mapPaymentError(c, err)
	}

	return ok(c, newPaymentDetailsView(d))
}

// POST /api/v1/payment/:id/approve
func (h *PaymentHandler) Approve(c fiber.Ctx) error {
	return h.transition(c, h.svc.Approve, "work approved")
}

// POST /api/v1/payment/:id/cancel
func (h *PaymentHandler) Cancel(c fiber.Ctx) error {
	return h.transition(c, h.svc.Cancel, "payment cancelled")
}

// POST /api/v1/payment/:id/release
func (h *PaymentHandler) Release(c fiber.Ctx) error {
	return h.transition(c, h.svc.Release, "funds released")
}

// POST /api/v1/payment/:id/refund
func (h *PaymentHandler) Refund(c fiber.Ctx) error {
	return h.transition(c, h.svc.Refund, "payment refunded")
}

type paymentTransition func(ctx context.Context, act actor.Actor, id uuid.UUID) (*repo.Payment, error)

func (h *PaymentHandler) transition(c fiber.Ctx, fn paymentTransition, msg string) error {
	act, found := actorFromClaims(c)
	if !found {
		return unauthorized(c)
	}
	id, valid := idParam(c)
	if !valid {
		return badRequest(c, "invalid payment id")
	}

	p, err := fn(c.Context(), act, id)
	if err != nil {
		return mapPaymentError(c, err)
	}

	return okMsg(c, msg, newPaymentView(p))
}

// ---------------------------------------------------------------------------
// Disputes
// ---------------------------------------------------------------------------

// POST /api/v1/payment/:id/dispute
func (h *PaymentHandler) Dispute(c fiber.Ctx) error {
	act, found := actorFromClaims(c)
	if !found {
		return unauthorized(c)
	}
	id, valid := idParam(c)
	if !valid {
		return badRequest(c, "invalid payment id")
	}

	var body struct {
		Message  string   `json:"message"`
		Evidence []string `json:"evidence"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	d, err := h.svc.CreateDispute(c.Context(), act, id, payment.DisputeRequest{
		Message:  body.Message,
		Evidence: body.Evidence,
	})
	if err != nil {
		return mapPaymentError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "dispute opened",
		"data":    newDisputeView(d),
	})
}

// POST /api/v1/payment/:id/dispute/review
func (h *PaymentHandler) ReviewDispute(c fiber.Ctx) error {
	act, found := actorFromClaims(c)
	if !found {
		return unauthorized(c)
	}
	id, valid := idParam(c)
	if !valid {
		return badRequest(c, "invalid payment id")
	}

	d, err := h.svc.ReviewDispute(c.Context(), act, id)
	if err != nil {
		return mapPaymentError(c, err)
	}

	return okMsg(c, "dispute under review", newDisputeView(d))
}

// POST /api/v1/payment/:id/resolve
func (h *PaymentHandler) Resolve(c fiber.Ctx) error {
	act, found := actorFromClaims(c)
	if !found {
		return unauthorized(c)
	}
	id, valid := idParam(c)
	if !valid {
		return badRequest(c, "invalid payment id")
	}

	var body struct {
		Resolution   string `json:"resolution"`
		RefundClient bool   `json:"refundClient"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	d, err := h.svc.ResolveDispute(c.Context(), act, id, payment.ResolveRequest{
		Resolution:   body.Resolution,
		RefundClient: body.RefundClient,
	})
	if err != nil {
		return mapPaymentError(c, err)
	}

	return okMsg(c, "dispute resolved", newPaymentDetailsView(d))
}

func parsePaymentStatus(s string) (repo.PaymentStatus, bool) {
	switch st := repo.PaymentStatus(s); st {
	case repo.PaymentPending, repo.PaymentPaid, repo.PaymentReleased, repo.PaymentRefunded,
		repo.PaymentDisputed, repo.PaymentCancelled, repo.PaymentFailed:
		return st, true
	}
	return "", false
}

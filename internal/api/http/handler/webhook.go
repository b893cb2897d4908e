package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/karsaz_backend/internal/api/http/middleware"
	"github.com/Alijeyrad/karsaz_backend/internal/service/payment"
	stripepay "github.com/Alijeyrad/karsaz_backend/pkg/stripe"
)

const stripeSignatureHeader = "Stripe-Signature"

// EventParser authenticates and decodes a raw webhook body.
type EventParser interface {
	ParseEvent(payload []byte, signature string) (*stripepay.Event, error)
}

type Reconciler interface {
	HandleProcessorEvent(ctx context.Context, ev payment.ProcessorEvent) error
}

type WebhookHandler struct {
	parser EventParser
	svc    Reconciler
}

func NewWebhookHandler(parser EventParser, svc Reconciler) *WebhookHandler {
	return &WebhookHandler{parser: parser, svc: svc}
}

// POST /api/v1/payment/webhook
//
// The body must reach ParseEvent byte for byte; it is never re-encoded.
func (h *WebhookHandler) Handle(c fiber.Ctx) error {
	rid, _ := middleware.RequestIDFromFiber(c)

	ev, err := h.parser.ParseEvent(c.Body(), c.Get(stripeSignatureHeader))
	if err != nil {
		slog.WarnContext(c.Context(), "webhook rejected", "request_id", rid, "error", err)
		if errors.Is(err, stripepay.ErrSignature) {
			return badRequest(c, "invalid signature")
		}
		return badRequest(c, "invalid event payload")
	}

	err = h.svc.HandleProcessorEvent(c.Context(), payment.ProcessorEvent{
		ID:             ev.ID,
		Type:           ev.Type,
		IntentID:       ev.IntentID,
		PaymentMethod:  ev.PaymentMethod,
		ChargeID:       ev.ChargeID,
		AccountID:      ev.AccountID,
		ChargesEnabled: ev.ChargesEnabled,
		DisabledReason: ev.DisabledReason,
		Raw:            ev.Raw,
	})
	if err != nil {
		slog.ErrorContext(c.Context(), "webhook handling failed",
			"request_id", rid, "event_id", ev.ID, "type", ev.Type, "error", err)
		return fail(c, fiber.StatusInternalServerError, "webhook handling failed")
	}

	return c.JSON(fiber.Map{"received": true})
}

package router

import (
	"github.com/Alijeyrad/karsaz_backend/internal/api/http/handler"
	"github.com/Alijeyrad/karsaz_backend/pkg/authorize"
	"github.com/gofiber/fiber/v3"
)

func (r *Router) registerPaymentRoutes(
	api fiber.Router,
	ph *handler.PaymentHandler,
	wh *handler.WebhookHandler,
	authRequired fiber.Handler,
	requirePerm func(authorize.Resource, authorize.Action) fiber.Handler,
) {
	// Public: authenticated by the Stripe-Signature header instead of a token
	api.Post("/payment/webhook", wh.Handle)

	payments := api.Group("/payment", authRequired)
	payments.Post("/intent", requirePerm(authorize.ResourcePayment, authorize.ActionCreate), ph.CreateIntent)
	payments.Get("/", requirePerm(authorize.ResourcePayment, authorize.ActionList), ph.List)

	p := payments.Group("/:id")
	p.Get("/", requirePerm(authorize.ResourcePayment, authorize.ActionRead), ph.Get)
	p.Post("/approve", requirePerm(authorize.ResourcePayment, authorize.ActionApprove), ph.Approve)
	p.Post("/cancel", requirePerm(authorize.ResourcePayment, authorize.ActionUpdate), ph.Cancel)
	p.Post("/release", requirePerm(authorize.ResourcePayment, authorize.ActionRelease), ph.Release)
	p.Post("/refund", requirePerm(authorize.ResourcePayment, authorize.ActionRefund), ph.Refund)

	p.Post("/dispute", requirePerm(authorize.ResourceDispute, authorize.ActionCreate), ph.Dispute)
	p.Post("/dispute/review", requirePerm(authorize.ResourceDispute, authorize.ActionUpdate), ph.ReviewDispute)
	p.Post("/resolve", requirePerm(authorize.ResourceDispute, authorize.ActionResolve), ph.Resolve)
}

package router

import (
	"github.com/Alijeyrad/karsaz_backend/internal/api/http/handler"
	"github.com/Alijeyrad/karsaz_backend/pkg/authorize"
	"github.com/gofiber/fiber/v3"
)

func (r *Router) registerAppointmentRoutes(
	api fiber.Router,
	ah *handler.AppointmentHandler,
	authRequired fiber.Handler,
	requirePerm func(authorize.Resource, authorize.Action) fiber.Handler,
) {
	appts := api.Group("/appointments", authRequired)

	appts.Get("/", requirePerm(authorize.ResourceAppointment, authorize.ActionList), ah.List)
	appts.Post("/", requirePerm(authorize.ResourceAppointment, authorize.ActionCreate), ah.Create)
	appts.Post("/cost", ah.Cost)
	appts.Get("/history", requirePerm(authorize.ResourceAppointment, authorize.ActionList), ah.History)

	a := appts.Group("/:id")
	a.Get("/", requirePerm(authorize.ResourceAppointment, authorize.ActionRead), ah.Get)
	a.Put("/confirm", requirePerm(authorize.ResourceAppointment, authorize.ActionUpdate), ah.Confirm)
	a.Put("/reject", requirePerm(authorize.ResourceAppointment, authorize.ActionUpdate), ah.Reject)
	a.Put("/cancel", requirePerm(authorize.ResourceAppointment, authorize.ActionUpdate), ah.Cancel)
}

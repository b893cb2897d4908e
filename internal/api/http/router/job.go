package router

import (
	"github.com/Alijeyrad/karsaz_backend/internal/api/http/handler"
	"github.com/Alijeyrad/karsaz_backend/pkg/authorize"
	"github.com/gofiber/fiber/v3"
)

func (r *Router) registerJobRoutes(
	api fiber.Router,
	jh *handler.JobHandler,
	authRequired fiber.Handler,
	requirePerm func(authorize.Resource, authorize.Action) fiber.Handler,
) {
	jobs := api.Group("/jobs", authRequired)

	jobs.Get("/", requirePerm(authorize.ResourceJob, authorize.ActionList), jh.List)
	jobs.Post("/", requirePerm(authorize.ResourceJob, authorize.ActionCreate), jh.Post)
	jobs.Get("/my", requirePerm(authorize.ResourceJob, authorize.ActionList), jh.Mine)

	j := jobs.Group("/:id")
	j.Get("/", requirePerm(authorize.ResourceJob, authorize.ActionRead), jh.Get)
	j.Post("/apply", requirePerm(authorize.ResourceJobApplication, authorize.ActionCreate), jh.Apply)
	j.Get("/applicants", requirePerm(authorize.ResourceJob, authorize.ActionUpdate), jh.Applicants)
	j.Post("/applicants/:applicantId/accept", requirePerm(authorize.ResourceJob, authorize.ActionUpdate), jh.Accept)
	j.Post("/applicants/:applicantId/decline", requirePerm(authorize.ResourceJob, authorize.ActionUpdate), jh.Decline)
}

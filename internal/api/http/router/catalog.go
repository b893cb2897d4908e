package router

import (
	"github.com/Alijeyrad/karsaz_backend/internal/api/http/handler"
	"github.com/Alijeyrad/karsaz_backend/pkg/authorize"
	"github.com/gofiber/fiber/v3"
)

func (r *Router) registerCatalogRoutes(
	api fiber.Router,
	ch *handler.CatalogHandler,
	authRequired fiber.Handler,
	requirePerm func(authorize.Resource, authorize.Action) fiber.Handler,
) {
	services := api.Group("/services", authRequired)

	services.Get("/", requirePerm(authorize.ResourceService, authorize.ActionList), ch.List)
	services.Post("/", requirePerm(authorize.ResourceService, authorize.ActionCreate), ch.Create)
}

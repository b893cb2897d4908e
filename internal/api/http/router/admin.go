package router

import (
	"github.com/Alijeyrad/karsaz_backend/internal/api/http/handler"
	"github.com/Alijeyrad/karsaz_backend/pkg/authorize"
	"github.com/gofiber/fiber/v3"
)

func (r *Router) registerAdminRoutes(
	api fiber.Router,
	adm *handler.AdminHandler,
	authRequired fiber.Handler,
	requirePerm func(authorize.Resource, authorize.Action) fiber.Handler,
) {
	admin := api.Group("/admin", authRequired)

	admin.Get("/tax-config", requirePerm(authorize.ResourceTaxConfig, authorize.ActionManage), adm.GetTaxConfig)
	admin.Post("/tax-config", requirePerm(authorize.ResourceTaxConfig, authorize.ActionManage), adm.SetTaxConfig)
}

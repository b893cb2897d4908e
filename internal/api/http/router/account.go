package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/karsaz_backend/internal/api/http/handler"
)

// Account routes need a session but no RBAC check: every handler acts on
// the caller's own user row or inbox.

func (r *Router) registerAuthRoutes(api fiber.Router, h *handler.AuthHandler, authRequired fiber.Handler) {
	sessions := api.Group("/auth")

	sessions.Post("/register", h.Register)
	sessions.Post("/login", h.Login)
	sessions.Post("/refresh", h.Refresh)
	sessions.Post("/logout", authRequired, h.Logout)
}

func (r *Router) registerUserRoutes(api fiber.Router, h *handler.UserHandler, authRequired fiber.Handler) {
	me := api.Group("/users/me", authRequired)

	me.Get("/", h.GetMe)
	me.Put("/professional", h.UpdateProfessional)
}

func (r *Router) registerNotificationRoutes(api fiber.Router, h *handler.NotificationHandler, authRequired fiber.Handler) {
	inbox := api.Group("/notifications", authRequired)

	inbox.Get("/", h.List)
	inbox.Patch("/read-all", h.MarkAllRead)
	inbox.Patch("/:id/read", h.MarkRead)
}

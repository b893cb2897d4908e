package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/karsaz_backend/internal/api/http/middleware"
)

func ok(c fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{"success": true, "data": data})
}

// okMsg is ok for action endpoints, which also carry a human message.
func okMsg(c fiber.Ctx, msg string, data any) error {
	return c.JSON(fiber.Map{"success": true, "message": msg, "data": data})
}

func created(c fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": data})
}

func fail(c fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "message": msg})
}

func badRequest(c fiber.Ctx, msg string) error {
	return fail(c, fiber.StatusBadRequest, msg)
}

func unauthorized(c fiber.Ctx) error {
	return fail(c, fiber.StatusUnauthorized, "unauthorized")
}

// forbidden never names the resource.
func forbidden(c fiber.Ctx) error {
	return fail(c, fiber.StatusForbidden, "forbidden")
}

func notFound(c fiber.Ctx, msg string) error {
	return fail(c, fiber.StatusNotFound, msg)
}

func conflict(c fiber.Ctx, msg string) error {
	return fail(c, fiber.StatusConflict, msg)
}

func tooManyRequests(c fiber.Ctx, msg string) error {
	return fail(c, fiber.StatusTooManyRequests, msg)
}

func badGateway(c fiber.Ctx, msg string, err error) error {
	rid, _ := middleware.RequestIDFromFiber(c)
	slog.WarnContext(c.Context(), "upstream failure", "request_id", rid, "path", c.Path(), "error", err)
	return fail(c, fiber.StatusBadGateway, msg)
}

func internalError(c fiber.Ctx, err error) error {
	rid, _ := middleware.RequestIDFromFiber(c)
	slog.ErrorContext(c.Context(), "request failed", "request_id", rid, "path", c.Path(), "error", err)
	return fail(c, fiber.StatusInternalServerError, "internal server error")
}

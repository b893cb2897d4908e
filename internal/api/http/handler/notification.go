package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/karsaz_backend/internal/service/notification"
)

type NotificationHandler struct {
	svc notification.Service
}

func NewNotificationHandler(svc notification.Service) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

func mapNotificationError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, notification.ErrNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, notification.ErrInvalidInput):
		return badRequest(c, err.Error())
	default:
		return internalError(c, err)
	}
}

// GET /api/v1/notifications
func (h *NotificationHandler) List(c fiber.Ctx) error {
	act, found := actorFromClaims(c)
	if !found {
		return unauthorized(c)
	}

	var q pageQuery
	_ = c.Bind().Query(&q)
	q.normalize()

	items, total, err := h.svc.List(c.Context(), act, notification.ListRequest{
		UnreadOnly: c.Query("unread") == "true",
		Page:       q.Page,
		PerPage:    q.PerPage,
	})
	if err != nil {
		return mapNotificationError(c, err)
	}

	unread, err := h.svc.UnreadCount(c.Context(), act)
	if err != nil {
		return mapNotificationError(c, err)
	}

	res := paged(newNotificationViews(items), total, q)
	res["unread"] = unread
	return ok(c, res)
}

// PATCH /api/v1/notifications/:id/read
func (h *NotificationHandler) MarkRead(c fiber.Ctx) error {
	act, found := actorFromClaims(c)
	if !found {
		return unauthorized(c)
	}
	id, valid := idParam(c)
	if !valid {
		return badRequest(c, "invalid notification id")
	}

	if err := h.svc.MarkRead(c.Context(), act, id); err != nil {
		return mapNotificationError(c, err)
	}

	return okMsg(c, "notification marked as read", nil)
}

// PATCH /api/v1/notifications/read-all
func (h *NotificationHandler) MarkAllRead(c fiber.Ctx) error {
	act, found := actorFromClaims(c)
	if !found {
		return unauthorized(c)
	}

	n, err := h.svc.MarkAllRead(c.Context(), act)
	if err != nil {
		return mapNotificationError(c, err)
	}

	return okMsg(c, "all notifications marked as read", fiber.Map{"updated": n})
}

package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/karsaz_backend/internal/service/user"
)

type UserHandler struct {
	svc user.Service
}

func NewUserHandler(svc user.Service) *UserHandler {
	return &UserHandler{svc: svc}
}

func mapUserError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, user.ErrUserNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, user.ErrForbidden):
		return forbidden(c)
	case errors.Is(err, user.ErrInvalidHourlyRate),
		errors.Is(err, user.ErrInvalidPayoutAccount),
		errors.Is(err, user.ErrNothingToUpdate):
		return badRequest(c, err.Error())
	default:
		return internalError(c, err)
	}
}

// GET /api/v1/users/me
func (h *UserHandler) GetMe(c fiber.Ctx) error {
	act, found := actorFromClaims(c)
	if !found {
		return unauthorized(c)
	}

	u, err := h.svc.Me(c.Context(), act)
	if err != nil {
		return mapUserError(c, err)
	}

	return ok(c, newUserView(u))
}

// PUT /api/v1/users/me/professional
func (h *UserHandler) UpdateProfessional(c fiber.Ctx) error {
	act, found := actorFromClaims(c)
	if !found {
		return unauthorized(c)
	}

	var body struct {
		HourlyRate      *decimal.Decimal `json:"hourlyRate"`
		PayoutAccountID *string          `json:"payoutAccountId"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	u, err := h.svc.UpdateProfessionalProfile(c.Context(), act, user.ProfessionalProfileRequest{
		HourlyRate:      body.HourlyRate,
		PayoutAccountID: body.PayoutAccountID,
	})
	if err != nil {
		return mapUserError(c, err)
	}

	return okMsg(c, "profile updated", newUserView(u))
}

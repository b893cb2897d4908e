package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/karsaz_backend/internal/service/pricing"
)

type AdminHandler struct {
	pricing pricing.Service
}

func NewAdminHandler(pricingSvc pricing.Service) *AdminHandler {
	return &AdminHandler{pricing: pricingSvc}
}

// mapPricingError falls through to mapPaymentError so appointment creation
// can map both with one call.
func mapPricingError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, pricing.ErrProfessionalNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, pricing.ErrRateNotSet),
		errors.Is(err, pricing.ErrInvalidDuration),
		errors.Is(err, pricing.ErrInvalidPercentage):
		return badRequest(c, err.Error())
	case errors.Is(err, pricing.ErrForbidden):
		return forbidden(c)
	}
	return mapPaymentError(c, err)
}

// GET /api/v1/admin/tax-config
func (h *AdminHandler) GetTaxConfig(c fiber.Ctx) error {
	cfg, err := h.pricing.CurrentConfig(c.Context())
	if err != nil {
		return mapPricingError(c, err)
	}
	return ok(c, newFeeConfigView(cfg))
}

// POST /api/v1/admin/tax-config
func (h *AdminHandler) SetTaxConfig(c fiber.Ctx) error {
	act, found := actorFromClaims(c)
	if !found {
		return unauthorized(c)
	}

	var body struct {
		TaxPercentage         *decimal.Decimal `json:"taxPercentage"`
		PlatformFeePercentage *decimal.Decimal `json:"platformFeePercentage"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.TaxPercentage == nil || body.PlatformFeePercentage == nil {
		return badRequest(c, "taxPercentage and platformFeePercentage are required")
	}

	tc, err := h.pricing.SetConfig(c.Context(), act, pricing.FeeConfig{
		TaxPercentage:         *body.TaxPercentage,
		PlatformFeePercentage: *body.PlatformFeePercentage,
	})
	if err != nil {
		return mapPricingError(c, err)
	}

	return okMsg(c, "tax config updated", newTaxConfigView(tc))
}

package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/Alijeyrad/karsaz_backend/internal/repo"
	"github.com/Alijeyrad/karsaz_backend/internal/service/catalog"
)

type CatalogHandler struct {
	svc catalog.Service
}

func NewCatalogHandler(svc catalog.Service) *CatalogHandler {
	return &CatalogHandler{svc: svc}
}

func mapCatalogError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, catalog.ErrForbidden):
		return forbidden(c)
	case errors.Is(err, catalog.ErrInvalidInput):
		return badRequest(c, err.Error())
	default:
		return internalError(c, err)
	}
}

// POST /api/v1/services
func (h *CatalogHandler) Create(c fiber.Ctx) error {
	act, found := actorFromClaims(c)
	if !found {
		return unauthorized(c)
	}

	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	s, err := h.svc.Create(c.Context(), act, catalog.CreateRequest{
		Name:        body.Name,
		Description: body.Description,
	})
	if err != nil {
		return mapCatalogError(c, err)
	}

	return created(c, newServiceViews([]repo.Service{*s})[0])
}

// GET /api/v1/services
func (h *CatalogHandler) List(c fiber.Ctx) error {
	var q pageQuery
	_ = c.Bind().Query(&q)
	q.normalize()

	req := catalog.ListRequest{Page: q.Page, PerPage: q.PerPage}
	if raw := c.Query("professionalId"); raw != "" {
		pid, err := uuid.Parse(raw)
		if err != nil {
			return badRequest(c, "invalid professionalId")
		}
		req.ProfessionalID = &pid
	}

	items, total, err := h.svc.List(c.Context(), req)
	if err != nil {
		return mapCatalogError(c, err)
	}

	return ok(c, paged(newServiceViews(items), total, q))
}

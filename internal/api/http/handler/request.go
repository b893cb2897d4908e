package handler

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/Alijeyrad/karsaz_backend/internal/api/http/middleware"
	"github.com/Alijeyrad/karsaz_backend/internal/repo"
	"github.com/Alijeyrad/karsaz_backend/internal/service/actor"
	pasetotoken "github.com/Alijeyrad/karsaz_backend/pkg/paseto"
)

// actorFromClaims builds the service caller from the verified access token.
func actorFromClaims(c fiber.Ctx) (actor.Actor, bool) {
	claims, found := pasetotoken.ClaimsFromFiber(c)
	if !found {
		return actor.Actor{}, false
	}
	rid, _ := middleware.RequestIDFromFiber(c)
	return actor.Actor{
		UserID:    claims.UserID,
		Role:      repo.Role(claims.Role),
		RequestID: rid,
	}, true
}

func idParam(c fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params("id"))
	return id, err == nil
}

type pageQuery struct {
	Page    int `query:"page"`
	PerPage int `query:"per_page"`
}

func (q *pageQuery) normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 || q.PerPage > 100 {
		q.PerPage = 20
	}
}

func paged(items any, total int64, q pageQuery) fiber.Map {
	return fiber.Map{
		"items":    items,
		"total":    total,
		"page":     q.Page,
		"per_page": q.PerPage,
	}
}

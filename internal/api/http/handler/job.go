package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/karsaz_backend/internal/service/job"
)

type JobHandler struct {
	svc job.Service
}

func NewJobHandler(svc job.Service) *JobHandler {
	return &JobHandler{svc: svc}
}

// mapJobError falls through to pricing and payment errors, which acceptance
// surfaces.
func mapJobError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, job.ErrNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, job.ErrForbidden):
		return forbidden(c)
	case errors.Is(err, job.ErrInvalidInput):
		return badRequest(c, err.Error())
	case errors.Is(err, job.ErrAlreadyApplied), errors.Is(err, job.ErrInvalidState):
		return conflict(c, err.Error())
	}
	return mapPricingError(c, err)
}

// POST /api/v1/jobs
func (h *JobHandler) Post(c fiber.Ctx) error {
	act, found := actorFromClaims(c)
	if !found {
		return unauthorized(c)
	}

	var body struct {
		ServiceID       uuid.UUID       `json:"serviceId"`
		RatePerHour     decimal.Decimal `json:"ratePerHour"`
		Duration        decimal.Decimal `json:"duration"`
		AppointmentDate string          `json:"appointmentDate"`
		AppointmentTime string          `json:"appointmentTime"`
		ScheduledAt     *time.Time      `json:"scheduledAt"`
		Location        string          `json:"location"`
		Description     string          `json:"description"`
		Skills          []string        `json:"skills"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	at, err := scheduleFrom(body.AppointmentDate, body.AppointmentTime, body.ScheduledAt)
	if err != nil {
		return badRequest(c, err.Error())
	}

	j, err := h.svc.Post(c.Context(), act, job.PostRequest{
		ServiceID:   body.ServiceID,
		RatePerHour: body.RatePerHour,
		Duration:    body.Duration,
		ScheduledAt: at,
		Location:    body.Location,
		Description: body.Description,
		Skills:      body.Skills,
	})
	if err != nil {
		return mapJobError(c, err)
	}
	return created(c, newJobView(j))
}

// GET /api/v1/jobs
func (h *JobHandler) List(c fiber.Ctx) error {
	return h.list(c, false)
}

// GET /api/v1/jobs/my
func (h *JobHandler) Mine(c fiber.Ctx) error {
	return h.list(c, true)
}

func (h *JobHandler) list(c fiber.Ctx, mine bool) error {
	act, found := actorFromClaims(c)
	if !found {
		return unauthorized(c)
	}

	var q pageQuery
	_ = c.Bind().Query(&q)
	q.normalize()

	items, total, err := h.svc.List(c.Context(), act, job.ListRequest{Mine: mine, Page: q.Page, PerPage: q.PerPage})
	if err != nil {
		return mapJobError(c, err)
	}
	return ok(c, paged(newJobViews(items), total, q))
}

// GET /api/v1/jobs/:id
func (h *JobHandler) Get(c fiber.Ctx) error {
	id, valid := idParam(c)
	if !valid {
		return badRequest(c, "invalid job id")
	}
	j, err := h.svc.Get(c.Context(), id)
	if err != nil {
		return mapJobError(c, err)
	}
	return ok(c, newJobView(j))
}

// POST /api/v1/jobs/:id/apply
func (h *JobHandler) Apply(c fiber.Ctx) error {
	act, found := actorFromClaims(c)
	if !found {
		return unauthorized(c)
	}
	id, valid := idParam(c)
	if !valid {
		return badRequest(c, "invalid job id")
	}

	a, err := h.svc.Apply(c.Context(), act, id)
	if err != nil {
		return mapJobError(c, err)
	}
	return created(c, newJobApplicationView(a))
}

// GET /api/v1/jobs/:id/applicants
func (h *JobHandler) Applicants(c fiber.Ctx) error {
	act, found := actorFromClaims(c)
	if !found {
		return unauthorized(c)
	}
	id, valid := idParam(c)
	if !valid {
		return badRequest(c, "invalid job id")
	}

	var q pageQuery
	_ = c.Bind().Query(&q)
	q.normalize()

	items, total, err := h.svc.Applicants(c.Context(), act, id, q.Page, q.PerPage)
	if err != nil {
		return mapJobError(c, err)
	}
	return ok(c, paged(newJobApplicationViews(items), total, q))
}

// POST /api/v1/jobs/:id/applicants/:applicantId/accept
func (h *JobHandler) Accept(c fiber.Ctx) error {
	act, found := actorFromClaims(c)
	if !found {
		return unauthorized(c)
	}
	id, proID, valid := applicantParams(c)
	if !valid {
		return badRequest(c, "invalid job or applicant id")
	}

	res, err := h.svc.Accept(c.Context(), act, id, proID)
	if err != nil {
		return mapJobError(c, err)
	}
	return okMsg(c, "applicant accepted", fiber.Map{
		"appointment":  newAppointmentView(res.Appointment),
		"clientSecret": res.ClientSecret,
	})
}

// POST /api/v1/jobs/:id/applicants/:applicantId/decline
func (h *JobHandler) Decline(c fiber.Ctx) error {
	act, found := actorFromClaims(c)
	if !found {
		return unauthorized(c)
	}
	id, proID, valid := applicantParams(c)
	if !valid {
		return badRequest(c, "invalid job or applicant id")
	}

	a, err := h.svc.Decline(c.Context(), act, id, proID)
	if err != nil {
		return mapJobError(c, err)
	}
	return okMsg(c, "applicant declined", newJobApplicationView(a))
}

func applicantParams(c fiber.Ctx) (uuid.UUID, uuid.UUID, bool) {
	id, valid := idParam(c)
	if !valid {
		return uuid.Nil, uuid.Nil, false
	}
	proID, err := uuid.Parse(c.Params("applicantId"))
	return id, proID, err == nil
}

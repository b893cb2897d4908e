package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/karsaz_backend/internal/repo"
	"github.com/Alijeyrad/karsaz_backend/internal/service/actor"
	"github.com/Alijeyrad/karsaz_backend/internal/service/appointment"
	"github.com/Alijeyrad/karsaz_backend/internal/service/pricing"
)

type AppointmentHandler struct {
	svc     appointment.Service
	pricing pricing.Service
}

func NewAppointmentHandler(svc appointment.Service, pricingSvc pricing.Service) *AppointmentHandler {
	return &AppointmentHandler{svc: svc, pricing: pricingSvc}
}

// mapAppointmentError also covers the pricing and payment errors that
// creation and cancellation surface.
func mapAppointmentError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, appointment.ErrNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, appointment.ErrForbidden):
		return forbidden(c)
	case errors.Is(err, appointment.ErrInvalidInput):
		return badRequest(c, err.Error())
	case errors.Is(err, appointment.ErrInvalidState):
		return conflict(c, err.Error())
	}
	return mapPricingError(c, err)
}

// POST /api/v1/appointments
func (h *AppointmentHandler) Create(c fiber.Ctx) error {
	act, found := actorFromClaims(c)
	if !found {
		return unauthorized(c)
	}

	var body struct {
		ProfessionalID  uuid.UUID       `json:"professionalId"`
		ServiceID       idList          `json:"serviceId"`
		ServiceIDs      idList          `json:"serviceIds"`
		AppointmentDate string          `json:"appointmentDate"`
		AppointmentTime string          `json:"appointmentTime"`
		ScheduledAt     *time.Time      `json:"scheduledAt"`
		Duration        decimal.Decimal `json:"duration"`
		Issue           string          `json:"issue"`
		Location        string          `json:"location"`
		VehicleType     *string         `json:"vehicleType"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	at, err := scheduleFrom(body.AppointmentDate, body.AppointmentTime, body.ScheduledAt)
	if err != nil {
		return badRequest(c, err.Error())
	}

	res, err := h.svc.Create(c.Context(), act, appointment.CreateRequest{
		ProfessionalID: body.ProfessionalID,
		ServiceIDs:     append(body.ServiceID, body.ServiceIDs...),
		ScheduledAt:    at,
		Duration:       body.Duration,
		Issue:          body.Issue,
		Location:       body.Location,
		VehicleType:    body.VehicleType,
	})
	if err != nil {
		return mapAppointmentError(c, err)
	}

	return created(c, fiber.Map{
		"appointment":  newAppointmentView(res.Appointment),
		"clientSecret": res.ClientSecret,
	})
}

// POST /api/v1/appointments/cost
func (h *AppointmentHandler) Cost(c fiber.Ctx) error {
	var body struct {
		ProfessionalID uuid.UUID       `json:"professionalId"`
		Duration       decimal.Decimal `json:"duration"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.ProfessionalID == uuid.Nil {
		return badRequest(c, "professionalId is required")
	}

	q, err := h.pricing.Quote(c.Context(), body.ProfessionalID, body.Duration)
	if err != nil {
		return mapPricingError(c, err)
	}

	return ok(c, newQuoteView(q))
}

// GET /api/v1/appointments
func (h *AppointmentHandler) List(c fiber.Ctx) error {
	act, found := actorFromClaims(c)
	if !found {
		return unauthorized(c)
	}

	var q pageQuery
	_ = c.Bind().Query(&q)
	q.normalize()

	req := appointment.ListRequest{Page: q.Page, PerPage: q.PerPage}
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			st, valid := parseAppointmentStatus(strings.TrimSpace(s))
			if !valid {
				return badRequest(c, "invalid status")
			}
			req.Statuses = append(req.Statuses, st)
		}
	}

	items, total, err := h.svc.List(c.Context(), act, req)
	if err != nil {
		return mapAppointmentError(c, err)
	}

	return ok(c, paged(newAppointmentViews(items), total, q))
}

// GET /api/v1/appointments/history
func (h *AppointmentHandler) History(c fiber.Ctx) error {
	act, found := actorFromClaims(c)
	if !found {
		return unauthorized(c)
	}

	var q pageQuery
	_ = c.Bind().Query(&q)
	q.normalize()

	items, total, err := h.svc.History(c.Context(), act, q.Page, q.PerPage)
	if err != nil {
		return mapAppointmentError(c, err)
	}

	return ok(c, paged(newAppointmentViews(items), total, q))
}

// GET /api/v1/appointments/:id
func (h *AppointmentHandler) Get(c fiber.Ctx) error {
	act, found := actorFromClaims(c)
	if !found {
		return unauthorized(c)
	}
	id, valid := idParam(c)
	if !valid {
		return badRequest(c, "invalid appointment id")
	}

	appt, err := h.svc.Get(c.Context(), act, id)
	if err != nil {
		return mapAppointmentError(c, err)
	}

	return ok(c, newAppointmentView(appt))
}

// PUT /api/v1/appointments/:id/confirm
func (h *AppointmentHandler) Confirm(c fiber.Ctx) error {
	return h.transition(c, h.svc.Confirm, "appointment confirmed")
}

// PUT /api/v1/appointments/:id/reject
func (h *AppointmentHandler) Reject(c fiber.Ctx) error {
	return h.transition(c, h.svc.Reject, "appointment rejected")
}

// PUT /api/v1/appointments/:id/cancel
func (h *AppointmentHandler) Cancel(c fiber.Ctx) error {
	return h.transition(c, h.svc.Cancel, "appointment cancelled")
}

type appointmentTransition func(ctx context.Context, act actor.Actor, id uuid.UUID) (*repo.Appointment, error)

func (h *AppointmentHandler) transition(c fiber.Ctx, fn appointmentTransition, msg string) error {
	act, found := actorFromClaims(c)
	if !found {
		return unauthorized(c)
	}
	id, valid := idParam(c)
	if !valid {
		return badRequest(c, "invalid appointment id")
	}

	appt, err := fn(c.Context(), act, id)
	if err != nil {
		return mapAppointmentError(c, err)
	}

	return okMsg(c, msg, newAppointmentView(appt))
}

func parseAppointmentStatus(s string) (repo.AppointmentStatus, bool) {
	for _, st := range []repo.AppointmentStatus{
		repo.AppointmentPending,
		repo.AppointmentConfirmed,
		repo.AppointmentCancelled,
		repo.AppointmentCompleted,
	} {
		if strings.EqualFold(s, string(st)) {
			return st, true
		}
	}
	return "", false
}

// idList decodes either a single id or an array of ids.
type idList []uuid.UUID

func (l *idList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		return nil
	case bytes.HasPrefix(b, []byte("[")):
		var ids []uuid.UUID
		if err := json.Unmarshal(b, &ids); err != nil {
			return err
		}
		*l = ids
		return nil
	}
	var id uuid.UUID
	if err := json.Unmarshal(b, &id); err != nil {
		return err
	}
	*l = idList{id}
	return nil
}

var errBadSchedule = errors.New("appointmentDate must be YYYY-MM-DD and appointmentTime HH:MM")

// scheduleFrom combines a calendar date and a wall-clock time, both read as
// UTC. A full timestamp in appointmentDate contributes only its date.
// scheduledAt is used when neither part is sent.
func scheduleFrom(date, clock string, at *time.Time) (time.Time, error) {
	date, clock = strings.TrimSpace(date), strings.TrimSpace(clock)
	if date == "" && clock == "" {
		if at == nil {
			return time.Time{}, nil
		}
		return at.UTC(), nil
	}
	if date == "" || clock == "" {
		return time.Time{}, errBadSchedule
	}

	day, err := time.Parse(time.DateOnly, date)
	if err != nil {
		ts, tsErr := time.Parse(time.RFC3339, date)
		if tsErr != nil {
			return time.Time{}, errBadSchedule
		}
		ts = ts.UTC()
		day = time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	}
	hm, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, errBadSchedule
	}
	return day.Add(time.Duration(hm.Hour())*time.Hour + time.Duration(hm.Minute())*time.Minute), nil
}

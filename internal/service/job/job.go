// Package job lets clients post work, professionals apply to it, and turns
// an accepted application into a confirmed appointment with its escrow
// payment.
package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/karsaz_backend/internal/repo"
	"github.com/Alijeyrad/karsaz_backend/internal/service/actor"
	"github.com/Alijeyrad/karsaz_backend/internal/service/payment"
	"github.com/Alijeyrad/karsaz_backend/internal/service/pricing"
	"github.com/Alijeyrad/karsaz_backend/pkg/events"
)

const (
	maxSkills      = 20
	maxDescription = 4000
)

// ---------------------------------------------------------------------------
// Dependencies
// ---------------------------------------------------------------------------

type Store interface {
	GetService(ctx context.Context, id uuid.UUID) (*repo.Service, error)
	CreateJob(ctx context.Context, j *repo.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*repo.Job, error)
	ListJobs(ctx context.Context, f repo.JobFilter) ([]repo.Job, int64, error)
	CreateJobApplication(ctx context.Context, a *repo.JobApplication) error
	GetJobApplication(ctx context.Context, jobID, professionalID uuid.UUID) (*repo.JobApplication, error)
	ListJobApplications(ctx context.Context, jobID uuid.UUID, page, perPage int) ([]repo.JobApplication, int64, error)
	RejectJobApplication(ctx context.Context, jobID, professionalID uuid.UUID) (*repo.JobApplication, error)
	AcceptJobApplication(ctx context.Context, jobID, professionalID uuid.UUID, a *repo.Appointment, p *repo.Payment) error
}

// Fees supplies the tax and platform fee percentages in force.
type Fees interface {
	CurrentConfig(ctx context.Context) (pricing.FeeConfig, error)
}

type Payments interface {
	Open(ctx context.Context, appt *repo.Appointment, persist payment.PersistFunc) (*repo.Payment, error)
}

type Publisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type PostRequest struct {
	ServiceID   uuid.UUID
	RatePerHour decimal.Decimal
	Duration    decimal.Decimal
	ScheduledAt time.Time
	Location    string
	Description string
	Skills      []string
}

type ListRequest struct {
	// Mine lists the caller's own postings in any status. Otherwise the
	// open feed is listed.
	Mine    bool
	Page    int
	PerPage int
}

type AcceptResult struct {
	Appointment  *repo.Appointment
	Payment      *repo.Payment
	ClientSecret string
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

type Service interface {
	Post(ctx context.Context, act actor.Actor, req PostRequest) (*repo.Job, error)
	Get(ctx context.Context, id uuid.UUID) (*repo.Job, error)
	List(ctx context.Context, act actor.Actor, req ListRequest) ([]repo.Job, int64, error)

	Apply(ctx context.Context, act actor.Actor, jobID uuid.UUID) (*repo.JobApplication, error)
	Applicants(ctx context.Context, act actor.Actor, jobID uuid.UUID, page, perPage int) ([]repo.JobApplication, int64, error)

	// Accept books the applicant: the job moves to in-progress, the
	// application to accepted, and a Confirmed appointment is stored with
	// its pending payment in the same transaction.
	Accept(ctx context.Context, act actor.Actor, jobID, professionalID uuid.UUID) (*AcceptResult, error)
	Decline(ctx context.Context, act actor.Actor, jobID, professionalID uuid.UUID) (*repo.JobApplication, error)
}

type jobService struct {
	store    Store
	fees     Fees
	payments Payments
	pub      Publisher
	now      func() time.Time
}

func New(store Store, fees Fees, payments Payments, pub Publisher) Service {
	return &jobService{
		store:    store,
		fees:     fees,
		payments: payments,
		pub:      pub,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ---------------------------------------------------------------------------
// Postings
// ---------------------------------------------------------------------------

func (s *jobService) Post(ctx context.Context, act actor.Actor, req PostRequest) (*repo.Job, error) {
	if act.Role != repo.RoleClient {
		return nil, ErrForbidden
	}
	if err := s.validatePost(&req); err != nil {
		return nil, err
	}
	if _, err := s.store.GetService(ctx, req.ServiceID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown service", ErrInvalidInput)
		}
		return nil, fmt.Errorf("get service: %w", err)
	}

	j := &repo.Job{
		ClientID:      act.UserID,
		ServiceID:     req.ServiceID,
		RatePerHour:   req.RatePerHour,
		Location:      req.Location,
		Description:   req.Description,
		Skills:        pq.StringArray(req.Skills),
		DurationHours: req.Duration,
		ScheduledAt:   req.ScheduledAt.UTC(),
		Status:        repo.JobOpen,
	}
	if err := s.store.CreateJob(ctx, j); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	slog.InfoContext(ctx, "job posted", "job_id", j.ID, "request_id", act.RequestID)
	return j, nil
}

func (s *jobService) validatePost(req *PostRequest) error {
	req.Location = strings.TrimSpace(req.Location)
	req.Description = strings.TrimSpace(req.Description)

	skills := make([]string, 0, len(req.Skills))
	for _, sk := range req.Skills {
		if sk = strings.TrimSpace(sk); sk != "" {
			skills = append(skills, sk)
		}
	}
	req.Skills = skills

	switch {
	case req.ServiceID == uuid.Nil:
		return fmt.Errorf("%w: serviceId is required", ErrInvalidInput)
	case !req.RatePerHour.IsPositive() || !req.RatePerHour.Equal(req.RatePerHour.Round(2)):
		return fmt.Errorf("%w: ratePerHour must be positive with at most two decimals", ErrInvalidInput)
	case pricing.ValidateDuration(req.Duration) != nil:
		return pricing.ErrInvalidDuration
	case req.ScheduledAt.IsZero() || !req.ScheduledAt.After(s.now()):
		return fmt.Errorf("%w: scheduledAt must be in the future", ErrInvalidInput)
	case req.Location == "":
		return fmt.Errorf("%w: location is required", ErrInvalidInput)
	case req.Description == "" || len(req.Description) > maxDescription:
		return fmt.Errorf("%w: description must be 1..%d characters", ErrInvalidInput, maxDescription)
	case len(req.Skills) > maxSkills:
		return fmt.Errorf("%w: at most %d skills", ErrInvalidInput, maxSkills)
	}
	return nil
}

func (s *jobService) Get(ctx context.Context, id uuid.UUID) (*repo.Job, error) {
	j, err := s.store.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (s *jobService) List(ctx context.Context, act actor.Actor, req ListRequest) ([]repo.Job, int64, error) {
	f := repo.JobFilter{Page: req.Page, PerPage: req.PerPage}
	if req.Mine {
		f.ClientID = act.UserID
	} else {
		open := repo.JobOpen
		f.Status = &open
	}
	out, total, err := s.store.ListJobs(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	return out, total, nil
}

// ---------------------------------------------------------------------------
// Applications
// ---------------------------------------------------------------------------

func (s *jobService) Apply(ctx context.Context, act actor.Actor, jobID uuid.UUID) (*repo.JobApplication, error) {
	if act.Role != repo.RoleProfessional {
		return nil, ErrForbidden
	}
	j, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.ClientID == act.UserID {
		return nil, fmt.Errorf("%w: cannot apply to your own job", ErrInvalidInput)
	}
	if j.Status != repo.JobOpen {
		return nil, fmt.Errorf("%w: job is %s", ErrInvalidState, j.Status)
	}

	a := &repo.JobApplication{JobID: jobID, ProfessionalID: act.UserID, Status: repo.ApplicationPending}
	if err := s.store.CreateJobApplication(ctx, a); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrAlreadyApplied
		}
		return nil, fmt.Errorf("create job application: %w", err)
	}
	return a, nil
}

func (s *jobService) Applicants(ctx context.Context, act actor.Actor, jobID uuid.UUID, page, perPage int) ([]repo.JobApplication, int64, error) {
	if _, err := s.owned(ctx, act, jobID); err != nil {
		return nil, 0, err
	}
	out, total, err := s.store.ListJobApplications(ctx, jobID, page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list job applications: %w", err)
	}
	return out, total, nil
}

func (s *jobService) Decline(ctx context.Context, act actor.Actor, jobID, professionalID uuid.UUID) (*repo.JobApplication, error) {
	if _, err := s.owned(ctx, act, jobID); err != nil {
		return nil, err
	}
	a, err := s.store.RejectJobApplication(ctx, jobID, professionalID)
	if err != nil {
		return nil, stateOr(err, "reject job application")
	}
	return a, nil
}

func (s *jobService) Accept(ctx context.Context, act actor.Actor, jobID, professionalID uuid.UUID) (*AcceptResult, error) {
	j, err := s.owned(ctx, act, jobID)
	if err != nil {
		return nil, err
	}
	if j.Status != repo.JobOpen {
		return nil, fmt.Errorf("%w: job is %s", ErrInvalidState, j.Status)
	}
	if !j.ScheduledAt.After(s.now()) {
		return nil, fmt.Errorf("%w: job start has passed", ErrInvalidState)
	}
	app, err := s.store.GetJobApplication(ctx, jobID, professionalID)
	if err != nil {
		return nil, stateOr(err, "get job application")
	}
	if app.Status != repo.ApplicationPending {
		return nil, fmt.Errorf("%w: application is %s", ErrInvalidState, app.Status)
	}

	fees, err := s.fees.CurrentConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("fee config: %w", err)
	}
	q, err := pricing.Calculate(j.RatePerHour, j.DurationHours, fees)
	if err != nil {
		return nil, err
	}

	now := s.now()
	appt := &repo.Appointment{
		ID:                    uuid.Must(uuid.NewV7()),
		ClientID:              j.ClientID,
		ProfessionalID:        professionalID,
		ServiceIDs:            pq.StringArray{j.ServiceID.String()},
		ScheduledAt:           j.ScheduledAt,
		DurationHours:         j.DurationHours,
		EndsAt:                j.ScheduledAt.Add(hours(j.DurationHours)),
		Issue:                 j.Description,
		Location:              j.Location,
		JobID:                 &j.ID,
		BasePrice:             q.BasePrice,
		TaxAmount:             q.TaxAmount,
		PlatformFee:           q.PlatformFee,
		TotalPrice:            q.TotalPrice,
		ProfessionalEarnings:  q.ProfessionalEarnings,
		TaxPercentage:         q.TaxPercentage,
		PlatformFeePercentage: q.PlatformFeePercentage,
		Status:                repo.AppointmentConfirmed,
		ConfirmedAt:           &now,
	}

	p, err := s.payments.Open(ctx, appt, func(ctx context.Context, p *repo.Payment) error {
		return s.store.AcceptJobApplication(ctx, j.ID, professionalID, appt, p)
	})
	if err != nil {
		if errors.Is(err, repo.ErrStaleState) || errors.Is(err, payment.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: job was taken concurrently", ErrInvalidState)
		}
		return nil, err
	}

	s.publish(ctx, appt, act.UserID)
	slog.InfoContext(ctx, "job applicant accepted",
		"job_id", j.ID,
		"appointment_id", appt.ID,
		"payment_id", p.ID,
		"total", appt.TotalPrice.StringFixed(2),
		"request_id", act.RequestID,
	)
	return &AcceptResult{Appointment: appt, Payment: p, ClientSecret: p.ClientSecret}, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *jobService) owned(ctx context.Context, act actor.Actor, jobID uuid.UUID) (*repo.Job, error) {
	j, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.ClientID != act.UserID && !act.IsAdmin() {
		return nil, ErrForbidden
	}
	return j, nil
}

func (s *jobService) publish(ctx context.Context, a *repo.Appointment, actorID uuid.UUID) {
	if s.pub == nil {
		return
	}
	ev := events.Event{
		Entity:         events.EntityAppointment,
		Action:         "confirmed",
		ID:             a.ID,
		AppointmentID:  a.ID,
		ClientID:       a.ClientID,
		ProfessionalID: a.ProfessionalID,
		ActorID:        actorID,
		Amount:         a.TotalPrice.StringFixed(2),
		OccurredAt:     s.now(),
	}
	if err := s.pub.Publish(ctx, ev); err != nil {
		slog.WarnContext(ctx, "publish appointment event failed", "subject", ev.Subject(), "error", err)
	}
}

func stateOr(err error, op string) error {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repo.ErrStaleState):
		return ErrInvalidState
	}
	return fmt.Errorf("%s: %w", op, err)
}

func hours(d decimal.Decimal) time.Duration {
	return time.Duration(d.Mul(decimal.NewFromInt(int64(time.Hour))).IntPart())
}

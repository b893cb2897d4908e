// Package repotest provides an in-memory Store with the same method set and
// error contract as repo.Client, for service tests.
package repotest

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/karsaz_backend/internal/repo"
)

type Store struct {
	mu sync.Mutex

	users         map[uuid.UUID]repo.User
	services      map[uuid.UUID]repo.Service
	appointments  map[uuid.UUID]repo.Appointment
	payments      map[uuid.UUID]repo.Payment
	disputes      map[uuid.UUID]repo.Dispute
	taxConfigs    []repo.TaxConfig
	notifications map[uuid.UUID]repo.Notification
	events        map[string]repo.ProcessorEvent
	jobs          map[uuid.UUID]repo.Job
	applications  map[uuid.UUID]repo.JobApplication

	// FailCreateAppointment makes CreateAppointmentWithPayment fail once.
	FailCreateAppointment error
}

func New() *Store {
	return &Store{
		users:         map[uuid.UUID]repo.User{},
		services:      map[uuid.UUID]repo.Service{},
		appointments:  map[uuid.UUID]repo.Appointment{},
		payments:      map[uuid.UUID]repo.Payment{},
		disputes:      map[uuid.UUID]repo.Dispute{},
		notifications: map[uuid.UUID]repo.Notification{},
		events:        map[string]repo.ProcessorEvent{},
		jobs:          map[uuid.UUID]repo.Job{},
		applications:  map[uuid.UUID]repo.JobApplication{},
	}
}

func notFound(op string) error { return fmt.Errorf("%s: %w", op, repo.ErrNotFound) }
func stale(op string) error    { return fmt.Errorf("%s: %w", op, repo.ErrStaleState) }
func dup(op string) error      { return fmt.Errorf("%s: %w", op, repo.ErrDuplicate) }

func page[T any](in []T, p, perPage int) []T {
	offset, limit := repo.Page(p, perPage)
	if offset >= len(in) {
		return nil
	}
	end := min(offset+limit, len(in))
	return in[offset:end]
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u *repo.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == uuid.Nil {
		u.ID = uuid.Must(uuid.NewV7())
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.PayoutStatus == "" {
		u.PayoutStatus = repo.PayoutPending
	}
	for _, other := range s.users {
		if other.Email == u.Email {
			return dup("create user")
		}
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	s.users[u.ID] = *u
	return nil
}

func (s *Store) GetUser(_ context.Context, id uuid.UUID) (*repo.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, notFound("get user")
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*repo.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, notFound("get user by email")
}

func (s *Store) UpdatePasswordHash(_ context.Context, id uuid.UUID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return notFound("update password hash")
	}
	u.PasswordHash = hash
	u.UpdatedAt = time.Now().UTC()
	s.users[id] = u
	return nil
}

func (s *Store) UpdateProfessionalProfile(_ context.Context, id uuid.UUID, in repo.ProfessionalProfileUpdate) (*repo.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, notFound("update professional profile")
	}
	if in.HourlyRate != nil {
		u.HourlyRate.Decimal = *in.HourlyRate
		u.HourlyRate.Valid = true
	}
	if in.PayoutAccountEnc != nil {
		u.PayoutAccountEnc = in.PayoutAccountEnc
		u.PayoutAccountHash = in.PayoutAccountHash
		u.PayoutStatus = repo.PayoutPending
		u.IdentityVerified = false
	}
	u.UpdatedAt = time.Now().UTC()
	s.users[id] = u
	return &u, nil
}

func (s *Store) UpdatePayoutStatusByAccount(_ context.Context, accountHash string, status repo.PayoutStatus, verified bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, u := range s.users {
		if u.PayoutAccountHash != nil && *u.PayoutAccountHash == accountHash {
			u.PayoutStatus = status
			u.IdentityVerified = verified
			s.users[id] = u
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) UpdateUserMetrics(_ context.Context, id uuid.UUID, m repo.UserMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return notFound("update user metrics")
	}
	u.CompletedAppointments = m.CompletedAppointments
	u.ActiveAppointments = m.ActiveAppointments
	u.AllAppointments = m.AllAppointments
	u.TotalClients = m.TotalClients
	s.users[id] = u
	return nil
}

func (s *Store) AppointmentMetrics(_ context.Context, userID uuid.UUID) (repo.UserMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var m repo.UserMetrics
	clients := map[uuid.UUID]struct{}{}
	for _, a := range s.appointments {
		if !a.IsParty(userID) {
			continue
		}
		m.AllAppointments++
		switch a.Status {
		case repo.AppointmentCompleted:
			m.CompletedAppointments++
		case repo.AppointmentPending, repo.AppointmentConfirmed:
			m.ActiveAppointments++
		}
		if a.ProfessionalID == userID {
			clients[a.ClientID] = struct{}{}
		}
	}
	m.TotalClients = len(clients)
	return m, nil
}

// ---------------------------------------------------------------------------
// Services
// ---------------------------------------------------------------------------

func (s *Store) CreateService(_ context.Context, svc *repo.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if svc.ID == uuid.Nil {
		svc.ID = uuid.Must(uuid.NewV7())
	}
	svc.CreatedAt = time.Now().UTC()
	s.services[svc.ID] = *svc
	return nil
}

func (s *Store) ListServices(_ context.Context, f repo.ServiceFilter) ([]repo.Service, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []repo.Service
	for _, svc := range s.services {
		if f.ProfessionalID != nil && svc.ProfessionalID != *f.ProfessionalID {
			continue
		}
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Page, f.PerPage), int64(len(out)), nil
}

func (s *Store) CountServicesOwnedBy(_ context.Context, professionalID uuid.UUID, ids []uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if svc, ok := s.services[id]; ok && svc.ProfessionalID == professionalID {
			n++
		}
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Appointments
// ---------------------------------------------------------------------------

func (s *Store) CreateAppointmentWithPayment(_ context.Context, a *repo.Appointment, p *repo.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.FailCreateAppointment; err != nil {
		s.FailCreateAppointment = nil
		return fmt.Errorf("create appointment with payment: %w", err)
	}
	p.AppointmentID = a.ID
	for _, other := range s.payments {
		if other.AppointmentID == a.ID || other.PaymentIntentID == p.PaymentIntentID {
			return dup("create appointment with payment")
		}
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	p.CreatedAt, p.UpdatedAt = now, now
	s.appointments[a.ID] = *a
	s.payments[p.ID] = *p
	return nil
}

func (s *Store) GetAppointment(_ context.Context, id uuid.UUID) (*repo.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return nil, notFound("get appointment")
	}
	return &a, nil
}

func (s *Store) ListAppointments(_ context.Context, f repo.AppointmentFilter) ([]repo.Appointment, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []repo.Appointment
	for _, a := range s.appointments {
		if f.UserID != uuid.Nil && !a.IsParty(f.UserID) {
			continue
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, a.Status) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.After(out[j].ScheduledAt) })
	return page(out, f.Page, f.PerPage), int64(len(out)), nil
}

func (s *Store) TransitionAppointment(_ context.Context, id uuid.UUID, from []repo.AppointmentStatus, to repo.AppointmentStatus, at time.Time) (*repo.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return nil, notFound("transition appointment")
	}
	if !slices.Contains(from, a.Status) {
		return nil, stale("transition appointment")
	}
	setAppointmentStatus(&a, to, at)
	s.appointments[id] = a
	return &a, nil
}

func setAppointmentStatus(a *repo.Appointment, to repo.AppointmentStatus, at time.Time) {
	a.Status = to
	a.UpdatedAt = at
	switch to {
	case repo.AppointmentConfirmed:
		a.ConfirmedAt = &at
	case repo.AppointmentCancelled:
		a.CancelledAt = &at
	case repo.AppointmentCompleted:
		a.CompletedAt = &at
	}
}

func (s *Store) CompleteEndedAppointments(_ context.Context, now time.Time) ([]repo.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []repo.Appointment
	for id, a := range s.appointments {
		if a.Status != repo.AppointmentConfirmed || !a.EndsAt.Before(now) {
			continue
		}
		setAppointmentStatus(&a, repo.AppointmentCompleted, now)
		s.appointments[id] = a
		out = append(out, a)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Payments
// ---------------------------------------------------------------------------

func (s *Store) CreatePayment(_ context.Context, p *repo.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.payments {
		if other.AppointmentID == p.AppointmentID || other.PaymentIntentID == p.PaymentIntentID {
			return dup("create payment")
		}
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	s.payments[p.ID] = *p
	return nil
}

func (s *Store) GetPayment(_ context.Context, id uuid.UUID) (*repo.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, notFound("get payment")
	}
	return &p, nil
}

func (s *Store) GetPaymentByAppointment(_ context.Context, appointmentID uuid.UUID) (*repo.Payment, error) {
	return s.findPayment("get payment by appointment", func(p repo.Payment) bool { return p.AppointmentID == appointmentID })
}

func (s *Store) GetPaymentByIntent(_ context.Context, intentID string) (*repo.Payment, error) {
	return s.findPayment("get payment by intent", func(p repo.Payment) bool { return p.PaymentIntentID == intentID })
}

func (s *Store) findPayment(op string, match func(repo.Payment) bool) (*repo.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if match(p) {
			return &p, nil
		}
	}
	return nil, notFound(op)
}

func (s *Store) ListPayments(_ context.Context, f repo.PaymentFilter) ([]repo.Payment, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []repo.Payment
	for _, p := range s.payments {
		if f.UserID != uuid.Nil && !p.IsParty(f.UserID) {
			continue
		}
		if f.Status != nil && p.Status != *f.Status {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Page, f.PerPage), int64(len(out)), nil
}

func (s *Store) TransitionPayment(_ context.Context, id uuid.UUID, from, to repo.PaymentStatus, upd repo.PaymentUpdate) (*repo.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.transitionPaymentLocked(id, from, to, upd)
	if err != nil {
		return nil, fmt.Errorf("transition payment: %w", err)
	}
	return p, nil
}

func (s *Store) transitionPaymentLocked(id uuid.UUID, from, to repo.PaymentStatus, upd repo.PaymentUpdate) (*repo.Payment, error) {
	p, ok := s.payments[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	if p.Status != from {
		return nil, repo.ErrStaleState
	}
	now := time.Now().UTC()
	if to == repo.PaymentReleased {
		a, ok := s.appointments[p.AppointmentID]
		switch {
		case ok && a.Status == repo.AppointmentCancelled:
			return nil, repo.ErrStaleState
		case ok && (a.Status == repo.AppointmentPending || a.Status == repo.AppointmentConfirmed):
			setAppointmentStatus(&a, repo.AppointmentCompleted, now)
			s.appointments[a.ID] = a
		}
	}
	p.Status = to
	p.UpdatedAt = now
	upd.Apply(&p)
	s.payments[id] = p
	return &p, nil
}

func (s *Store) SetClientApproval(_ context.Context, id uuid.UUID, at time.Time) (*repo.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, notFound("set client approval")
	}
	if p.Status != repo.PaymentPaid {
		return nil, stale("set client approval")
	}
	p.ClientApproval = true
	p.ApprovedAt = &at
	p.UpdatedAt = at
	s.payments[id] = p
	return &p, nil
}

// ---------------------------------------------------------------------------
// Disputes
// ---------------------------------------------------------------------------

func (s *Store) OpenDispute(_ context.Context, d *repo.Dispute) (*repo.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.disputes {
		if other.PaymentID == d.PaymentID && other.Status.IsOpen() {
			return nil, dup("open dispute")
		}
	}
	p, err := s.transitionPaymentLocked(d.PaymentID, repo.PaymentPaid, repo.PaymentDisputed, repo.PaymentUpdate{})
	if err != nil {
		return nil, fmt.Errorf("open dispute: %w", err)
	}
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now
	s.disputes[d.ID] = *d
	return p, nil
}

func (s *Store) GetDispute(_ context.Context, id uuid.UUID) (*repo.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.disputes[id]
	if !ok {
		return nil, notFound("get dispute")
	}
	return &d, nil
}

func (s *Store) LatestDispute(_ context.Context, paymentID uuid.UUID) (*repo.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *repo.Dispute
	for _, d := range s.disputes {
		if d.PaymentID != paymentID {
			continue
		}
		if latest == nil || d.CreatedAt.After(latest.CreatedAt) {
			latest = &d
		}
	}
	if latest == nil {
		return nil, notFound("latest dispute")
	}
	return latest, nil
}

func (s *Store) ReviewDispute(_ context.Context, id uuid.UUID, at time.Time) (*repo.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.disputes[id]
	if !ok {
		return nil, notFound("review dispute")
	}
	if d.Status != repo.DisputePending {
		return nil, stale("review dispute")
	}
	d.Status = repo.DisputeUnderReview
	d.UpdatedAt = at
	s.disputes[id] = d
	return &d, nil
}

func (s *Store) ResolveDispute(_ context.Context, r repo.DisputeResolution) (*repo.Dispute, *repo.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.disputes[r.DisputeID]
	if !ok {
		return nil, nil, notFound("resolve dispute")
	}
	if !d.Status.IsOpen() {
		return nil, nil, stale("resolve dispute")
	}

	status, payTo := repo.DisputeResolved, repo.PaymentReleased
	if r.Refund {
		status, payTo = repo.DisputeRefunded, repo.PaymentRefunded
	}
	p, err := s.transitionPaymentLocked(d.PaymentID, repo.PaymentDisputed, payTo, r.Update)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve dispute: %w", err)
	}

	now := time.Now().UTC()
	resolution, by := r.Resolution, r.ResolvedBy
	d.Status = status
	d.Resolution = &resolution
	d.ResolvedBy = &by
	d.ResolvedAt = &now
	d.UpdatedAt = now
	s.disputes[d.ID] = d
	return &d, p, nil
}

// ---------------------------------------------------------------------------
// Jobs
// ---------------------------------------------------------------------------

func (s *Store) GetService(_ context.Context, id uuid.UUID) (*repo.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[id]
	if !ok {
		return nil, notFound("get service")
	}
	return &svc, nil
}

func (s *Store) CreateJob(_ context.Context, j *repo.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	now := time.Now().UTC()
	j.CreatedAt, j.UpdatedAt = now, now
	s.jobs[j.ID] = *j
	return nil
}

func (s *Store) GetJob(_ context.Context, id uuid.UUID) (*repo.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, notFound("get job")
	}
	return &j, nil
}

func (s *Store) ListJobs(_ context.Context, f repo.JobFilter) ([]repo.Job, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []repo.Job
	for _, j := range s.jobs {
		if f.ClientID != uuid.Nil && j.ClientID != f.ClientID {
			continue
		}
		if f.Status != nil && j.Status != *f.Status {
			continue
		}
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Page, f.PerPage), int64(len(out)), nil
}

func (s *Store) CreateJobApplication(_ context.Context, a *repo.JobApplication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	for _, other := range s.applications {
		if other.JobID == a.JobID && other.ProfessionalID == a.ProfessionalID {
			return dup("create job application")
		}
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	s.applications[a.ID] = *a
	return nil
}

func (s *Store) GetJobApplication(_ context.Context, jobID, professionalID uuid.UUID) (*repo.JobApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.findApplicationLocked(jobID, professionalID)
	if !ok {
		return nil, notFound("get job application")
	}
	return &a, nil
}

func (s *Store) findApplicationLocked(jobID, professionalID uuid.UUID) (repo.JobApplication, bool) {
	for _, a := range s.applications {
		if a.JobID == jobID && a.ProfessionalID == professionalID {
			return a, true
		}
	}
	return repo.JobApplication{}, false
}

func (s *Store) ListJobApplications(_ context.Context, jobID uuid.UUID, p, perPage int) ([]repo.JobApplication, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []repo.JobApplication
	for _, a := range s.applications {
		if a.JobID == jobID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return page(out, p, perPage), int64(len(out)), nil
}

func (s *Store) RejectJobApplication(_ context.Context, jobID, professionalID uuid.UUID) (*repo.JobApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.findApplicationLocked(jobID, professionalID)
	if !ok {
		return nil, notFound("reject job application")
	}
	if a.Status != repo.ApplicationPending {
		return nil, stale("reject job application")
	}
	a.Status = repo.ApplicationRejected
	a.UpdatedAt = time.Now().UTC()
	s.applications[a.ID] = a
	return &a, nil
}

func (s *Store) AcceptJobApplication(_ context.Context, jobID, professionalID uuid.UUID, a *repo.Appointment, p *repo.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.FailCreateAppointment; err != nil {
		s.FailCreateAppointment = nil
		return fmt.Errorf("accept job application: %w", err)
	}
	j, ok := s.jobs[jobID]
	if !ok {
		return notFound("accept job application")
	}
	if j.Status != repo.JobOpen {
		return stale("accept job application")
	}
	app, ok := s.findApplicationLocked(jobID, professionalID)
	if !ok {
		return notFound("accept job application")
	}
	if app.Status != repo.ApplicationPending {
		return stale("accept job application")
	}
	p.AppointmentID = a.ID
	for _, other := range s.payments {
		if other.AppointmentID == a.ID || other.PaymentIntentID == p.PaymentIntentID {
			return dup("accept job application")
		}
	}

	now := time.Now().UTC()
	j.Status = repo.JobInProgress
	j.AcceptedID = &professionalID
	j.UpdatedAt = now
	s.jobs[jobID] = j
	app.Status = repo.ApplicationAccepted
	app.UpdatedAt = now
	s.applications[app.ID] = app
	a.CreatedAt, a.UpdatedAt = now, now
	p.CreatedAt, p.UpdatedAt = now, now
	s.appointments[a.ID] = *a
	s.payments[p.ID] = *p
	return nil
}

// ---------------------------------------------------------------------------
// Tax configs
// ---------------------------------------------------------------------------

func (s *Store) CreateTaxConfig(_ context.Context, tc *repo.TaxConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taxConfigs = append(s.taxConfigs, *tc)
	return nil
}

func (s *Store) LatestTaxConfig(_ context.Context) (*repo.TaxConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.taxConfigs) == 0 {
		return nil, notFound("latest tax config")
	}
	tc := s.taxConfigs[len(s.taxConfigs)-1]
	return &tc, nil
}

// ---------------------------------------------------------------------------
// Notifications
// ---------------------------------------------------------------------------

func (s *Store) CreateNotification(_ context.Context, n *repo.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.Must(uuid.NewV7())
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	s.notifications[n.ID] = *n
	return nil
}

func (s *Store) ListNotifications(_ context.Context, f repo.NotificationFilter) ([]repo.Notification, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []repo.Notification
	for _, n := range s.notifications {
		if n.UserID != f.UserID || (f.UnreadOnly && n.IsRead) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Page, f.PerPage), int64(len(out)), nil
}

func (s *Store) MarkNotificationRead(_ context.Context, userID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return notFound("mark notification read")
	}
	n.IsRead = true
	s.notifications[id] = n
	return nil
}

func (s *Store) MarkAllNotificationsRead(_ context.Context, userID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for id, n := range s.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			s.notifications[id] = n
			count++
		}
	}
	return count, nil
}

func (s *Store) CountUnread(_ context.Context, userID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, n := range s.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

// ---------------------------------------------------------------------------
// Processor event ledger
// ---------------------------------------------------------------------------

func (s *Store) RecordProcessorEvent(_ context.Context, ev *repo.ProcessorEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[ev.EventID]; ok {
		return false, nil
	}
	s.events[ev.EventID] = *ev
	return true, nil
}

func (s *Store) ProcessorEventSeen(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.events[eventID]
	return ok, nil
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// PutUser stores u as is, bypassing normalization.
func (s *Store) PutUser(u repo.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) PutAppointment(a repo.Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appointments[a.ID] = a
}

func (s *Store) PutPayment(p repo.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.ID] = p
}

// PaymentCount reports how many payments reference appointmentID.
func (s *Store) PaymentCount(appointmentID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.payments {
		if p.AppointmentID == appointmentID {
			n++
		}
	}
	return n
}

func (s *Store) AppointmentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.appointments)
}

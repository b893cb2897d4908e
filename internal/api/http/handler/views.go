package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/karsaz_backend/internal/repo"
	"github.com/Alijeyrad/karsaz_backend/internal/service/payment"
	"github.com/Alijeyrad/karsaz_backend/internal/service/pricing"
)

// Response shapes. Money is always rendered with two decimals.

func money(d decimal.Decimal) string { return d.StringFixed(2) }

type userView struct {
	ID                    uuid.UUID `json:"id"`
	Email                 string    `json:"email"`
	FirstName             string    `json:"firstName"`
	LastName              string    `json:"lastName"`
	Phone                 *string   `json:"phone,omitempty"`
	Role                  repo.Role `json:"role"`
	HourlyRate            *string   `json:"hourlyRate,omitempty"`
	PayoutStatus          string    `json:"payoutStatus,omitempty"`
	HasPayoutAccount      bool      `json:"hasPayoutAccount"`
	IdentityVerified      bool      `json:"identityVerified"`
	CompletedAppointments int       `json:"completedAppointments"`
	ActiveAppointments    int       `json:"activeAppointments"`
	AllAppointments       int       `json:"allAppointments"`
	TotalClients          int       `json:"totalClients"`
	CreatedAt             time.Time `json:"createdAt"`
}

func newUserView(u *repo.User) userView {
	v := userView{
		ID:                    u.ID,
		Email:                 u.Email,
		FirstName:             u.FirstName,
		LastName:              u.LastName,
		Phone:                 u.Phone,
		Role:                  u.Role,
		PayoutStatus:          string(u.PayoutStatus),
		HasPayoutAccount:      u.PayoutAccountEnc != nil,
		IdentityVerified:      u.IdentityVerified,
		CompletedAppointments: u.CompletedAppointments,
		ActiveAppointments:    u.ActiveAppointments,
		AllAppointments:       u.AllAppointments,
		TotalClients:          u.TotalClients,
		CreatedAt:             u.CreatedAt,
	}
	if u.HourlyRate.Valid {
		r := money(u.HourlyRate.Decimal)
		v.HourlyRate = &r
	}
	return v
}

type serviceView struct {
	ID             uuid.UUID `json:"id"`
	ProfessionalID uuid.UUID `json:"professionalId"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"createdAt"`
}

func newServiceViews(in []repo.Service) []serviceView {
	out := make([]serviceView, 0, len(in))
	for _, s := range in {
		out = append(out, serviceView{
			ID:             s.ID,
			ProfessionalID: s.ProfessionalID,
			Name:           s.Name,
			Description:    s.Description,
			CreatedAt:      s.CreatedAt,
		})
	}
	return out
}

type quoteView struct {
	HourlyRate            string `json:"hourlyRate"`
	Duration              string `json:"duration"`
	BasePrice             string `json:"basePrice"`
	TaxPercentage         string `json:"taxPercentage"`
	TaxAmount             string `json:"taxAmount"`
	PlatformFeePercentage string `json:"platformFeePercentage"`
	PlatformFee           string `json:"platformFee"`
	TotalPrice            string `json:"totalPrice"`
	ProfessionalEarnings  string `json:"professionalEarnings"`
}

func newQuoteView(q *pricing.Quote) quoteView {
	return quoteView{
		HourlyRate:            money(q.HourlyRate),
		Duration:              money(q.Duration),
		BasePrice:             money(q.BasePrice),
		TaxPercentage:         money(q.TaxPercentage),
		TaxAmount:             money(q.TaxAmount),
		PlatformFeePercentage: money(q.PlatformFeePercentage),
		PlatformFee:           money(q.PlatformFee),
		TotalPrice:            money(q.TotalPrice),
		ProfessionalEarnings:  money(q.ProfessionalEarnings),
	}
}

type appointmentView struct {
	ID             uuid.UUID  `json:"id"`
	ClientID       uuid.UUID  `json:"clientId"`
	ProfessionalID uuid.UUID  `json:"professionalId"`
	ServiceIDs     []string   `json:"serviceIds"`
	ScheduledAt    time.Time  `json:"scheduledAt"`
	Duration       string     `json:"duration"`
	EndsAt         time.Time  `json:"endsAt"`
	Issue          string     `json:"issue"`
	Location       string     `json:"location"`
	VehicleType    *string    `json:"vehicleType,omitempty"`
	JobID          *uuid.UUID `json:"jobId,omitempty"`

	BasePrice             string `json:"basePrice"`
	TaxPercentage         string `json:"taxPercentage"`
	TaxAmount             string `json:"taxAmount"`
	PlatformFeePercentage string `json:"platformFeePercentage"`
	PlatformFee           string `json:"platformFee"`
	TotalPrice            string `json:"totalPrice"`
	ProfessionalEarnings  string `json:"professionalEarnings"`

	Status      repo.AppointmentStatus `json:"status"`
	CreatedAt   time.Time              `json:"createdAt"`
	ConfirmedAt *time.Time             `json:"confirmedAt,omitempty"`
	CancelledAt *time.Time             `json:"cancelledAt,omitempty"`
	CompletedAt *time.Time             `json:"completedAt,omitempty"`
}

func newAppointmentView(a *repo.Appointment) appointmentView {
	ids := []string(a.ServiceIDs)
	if ids == nil {
		ids = []string{}
	}
	return appointmentView{
		ID:                    a.ID,
		ClientID:              a.ClientID,
		ProfessionalID:        a.ProfessionalID,
		ServiceIDs:            ids,
		ScheduledAt:           a.ScheduledAt,
		Duration:              money(a.DurationHours),
		EndsAt:                a.EndsAt,
		Issue:                 a.Issue,
		Location:              a.Location,
		VehicleType:           a.VehicleType,
		JobID:                 a.JobID,
		BasePrice:             money(a.BasePrice),
		TaxPercentage:         money(a.TaxPercentage),
		TaxAmount:             money(a.TaxAmount),
		PlatformFeePercentage: money(a.PlatformFeePercentage),
		PlatformFee:           money(a.PlatformFee),
		TotalPrice:            money(a.TotalPrice),
		ProfessionalEarnings:  money(a.ProfessionalEarnings),
		Status:                a.Status,
		CreatedAt:             a.CreatedAt,
		ConfirmedAt:           a.ConfirmedAt,
		CancelledAt:           a.CancelledAt,
		CompletedAt:           a.CompletedAt,
	}
}

func newAppointmentViews(in []repo.Appointment) []appointmentView {
	out := make([]appointmentView, 0, len(in))
	for i := range in {
		out = append(out, newAppointmentView(&in[i]))
	}
	return out
}

// paymentView leaves out the client secret; it is only returned to the
// client that opens the intent.
type paymentView struct {
	ID                   uuid.UUID          `json:"id"`
	AppointmentID        uuid.UUID          `json:"appointmentId"`
	ClientID             uuid.UUID          `json:"clientId"`
	ProfessionalID       uuid.UUID          `json:"professionalId"`
	Amount               string             `json:"amount"`
	TaxAmount            string             `json:"taxAmount"`
	PlatformFee          string             `json:"platformFee"`
	ProfessionalEarnings string             `json:"professionalEarnings"`
	Currency             string             `json:"currency"`
	PaymentIntentID      string             `json:"paymentIntentId"`
	PaymentMethod        *string            `json:"paymentMethod,omitempty"`
	TransactionID        *string            `json:"transactionId,omitempty"`
	TransferID           *string            `json:"transferId,omitempty"`
	RefundID             *string            `json:"refundId,omitempty"`
	Status               repo.PaymentStatus `json:"status"`
	ClientApproval       bool               `json:"clientApproval"`
	ApprovedAt           *time.Time         `json:"approvedAt,omitempty"`
	ReleasedAt           *time.Time         `json:"releasedAt,omitempty"`
	RefundedAt           *time.Time         `json:"refundedAt,omitempty"`
	CreatedAt            time.Time          `json:"createdAt"`
	UpdatedAt            time.Time          `json:"updatedAt"`
}

func newPaymentView(p *repo.Payment) paymentView {
	return paymentView{
		ID:                   p.ID,
		AppointmentID:        p.AppointmentID,
		ClientID:             p.ClientID,
		ProfessionalID:       p.ProfessionalID,
		Amount:               money(p.Amount),
		TaxAmount:            money(p.TaxAmount),
		PlatformFee:          money(p.PlatformFee),
		ProfessionalEarnings: money(p.ProfessionalEarnings),
		Currency:             p.Currency,
		PaymentIntentID:      p.PaymentIntentID,
		PaymentMethod:        p.PaymentMethod,
		TransactionID:        p.TransactionID,
		TransferID:           p.TransferID,
		RefundID:             p.RefundID,
		Status:               p.Status,
		ClientApproval:       p.ClientApproval,
		ApprovedAt:           p.ApprovedAt,
		ReleasedAt:           p.ReleasedAt,
		RefundedAt:           p.RefundedAt,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
}

func newPaymentViews(in []repo.Payment) []paymentView {
	out := make([]paymentView, 0, len(in))
	for i := range in {
		out = append(out, newPaymentView(&in[i]))
	}
	return out
}

type disputeView struct {
	ID         uuid.UUID          `json:"id"`
	PaymentID  uuid.UUID          `json:"paymentId"`
	RaisedBy   uuid.UUID          `json:"raisedBy"`
	Message    string             `json:"message"`
	Evidence   []string           `json:"evidence"`
	Status     repo.DisputeStatus `json:"status"`
	Resolution *string            `json:"resolution,omitempty"`
	ResolvedBy *uuid.UUID         `json:"resolvedBy,omitempty"`
	ResolvedAt *time.Time         `json:"resolvedAt,omitempty"`
	CreatedAt  time.Time          `json:"createdAt"`
}

func newDisputeView(d *repo.Dispute) *disputeView {
	if d == nil {
		return nil
	}
	ev := []string(d.Evidence)
	if ev == nil {
		ev = []string{}
	}
	return &disputeView{
		ID:         d.ID,
		PaymentID:  d.PaymentID,
		RaisedBy:   d.RaisedBy,
		Message:    d.Message,
		Evidence:   ev,
		Status:     d.Status,
		Resolution: d.Resolution,
		ResolvedBy: d.ResolvedBy,
		ResolvedAt: d.ResolvedAt,
		CreatedAt:  d.CreatedAt,
	}
}

type paymentDetailsView struct {
	paymentView
	Dispute *disputeView `json:"dispute,omitempty"`
}

func newPaymentDetailsView(d *payment.Details) paymentDetailsView {
	return paymentDetailsView{
		paymentView: newPaymentView(d.Payment),
		Dispute:     newDisputeView(d.Dispute),
	}
}

type taxConfigView struct {
	ID                    *uuid.UUID `json:"id,omitempty"`
	TaxPercentage         string     `json:"taxPercentage"`
	PlatformFeePercentage string     `json:"platformFeePercentage"`
	CreatedBy             *uuid.UUID `json:"createdBy,omitempty"`
	CreatedAt             *time.Time `json:"createdAt,omitempty"`
}

func newTaxConfigView(tc *repo.TaxConfig) taxConfigView {
	return taxConfigView{
		ID:                    &tc.ID,
		TaxPercentage:         money(tc.TaxPercentage),
		PlatformFeePercentage: money(tc.PlatformFeePercentage),
		CreatedBy:             tc.CreatedBy,
		CreatedAt:             &tc.CreatedAt,
	}
}

func newFeeConfigView(fc pricing.FeeConfig) taxConfigView {
	return taxConfigView{
		TaxPercentage:         money(fc.TaxPercentage),
		PlatformFeePercentage: money(fc.PlatformFeePercentage),
	}
}

type notificationView struct {
	ID        uuid.UUID      `json:"id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Data      map[string]any `json:"data,omitempty"`
	IsRead    bool           `json:"isRead"`
	CreatedAt time.Time      `json:"createdAt"`
}

func newNotificationViews(in []repo.Notification) []notificationView {
	out := make([]notificationView, 0, len(in))
	for _, n := range in {
		out = append(out, notificationView{
			ID:        n.ID,
			Type:      n.Type,
			Title:     n.Title,
			Body:      n.Body,
			Data:      n.Data,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}

type jobView struct {
	ID          uuid.UUID      `json:"id"`
	ClientID    uuid.UUID      `json:"clientId"`
	ServiceID   uuid.UUID      `json:"serviceId"`
	RatePerHour string         `json:"ratePerHour"`
	Duration    string         `json:"duration"`
	ScheduledAt time.Time      `json:"scheduledAt"`
	Location    string         `json:"location"`
	Description string         `json:"description"`
	Skills      []string       `json:"skills"`
	Status      repo.JobStatus `json:"status"`
	AcceptedID  *uuid.UUID     `json:"acceptedApplicant,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

func newJobView(j *repo.Job) jobView {
	skills := []string(j.Skills)
	if skills == nil {
		skills = []string{}
	}
	return jobView{
		ID:          j.ID,
		ClientID:    j.ClientID,
		ServiceID:   j.ServiceID,
		RatePerHour: money(j.RatePerHour),
		Duration:    j.DurationHours.StringFixed(2),
		ScheduledAt: j.ScheduledAt,
		Location:    j.Location,
		Description: j.Description,
		Skills:      skills,
		Status:      j.Status,
		AcceptedID:  j.AcceptedID,
		CreatedAt:   j.CreatedAt,
	}
}

func newJobViews(in []repo.Job) []jobView {
	out := make([]jobView, 0, len(in))
	for i := range in {
		out = append(out, newJobView(&in[i]))
	}
	return out
}

type jobApplicationView struct {
	ID             uuid.UUID              `json:"id"`
	JobID          uuid.UUID              `json:"jobId"`
	ProfessionalID uuid.UUID              `json:"professionalId"`
	Status         repo.ApplicationStatus `json:"status"`
	CreatedAt      time.Time              `json:"createdAt"`
}

func newJobApplicationView(a *repo.JobApplication) jobApplicationView {
	return jobApplicationView{
		ID:             a.ID,
		JobID:          a.JobID,
		ProfessionalID: a.ProfessionalID,
		Status:         a.Status,
		CreatedAt:      a.CreatedAt,
	}
}

func newJobApplicationViews(in []repo.JobApplication) []jobApplicationView {
	out := make([]jobApplicationView, 0, len(in))
	for i := range in {
		out = append(out, newJobApplicationView(&in[i]))
	}
	return out
}

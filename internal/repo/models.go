package repo

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ---------------------------------------------------------------------------
// Enumerations
// ---------------------------------------------------------------------------

type Role string

const (
	RoleClient       Role = "Client"
	RoleProfessional Role = "Professional"
	RoleAdmin        Role = "Admin"
	RoleSuperAdmin   Role = "SuperAdmin"
)

func (r Role) IsAdmin() bool { return r == RoleAdmin || r == RoleSuperAdmin }

type PayoutStatus string

const (
	PayoutPending PayoutStatus = "Pending"
	PayoutEnabled PayoutStatus = "Enabled"
)

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "Pending"
	AppointmentConfirmed AppointmentStatus = "Confirmed"
	AppointmentCancelled AppointmentStatus = "Cancelled"
	AppointmentCompleted AppointmentStatus = "Completed"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending_payment"
	PaymentPaid      PaymentStatus = "paid"
	PaymentReleased  PaymentStatus = "released"
	PaymentRefunded  PaymentStatus = "refunded"
	PaymentDisputed  PaymentStatus = "disputed"
	PaymentCancelled PaymentStatus = "cancelled"
	PaymentFailed    PaymentStatus = "failed"
)

type DisputeStatus string

const (
	DisputePending     DisputeStatus = "pending"
	DisputeUnderReview DisputeStatus = "under_review"
	DisputeResolved    DisputeStatus = "resolved"
	DisputeRefunded    DisputeStatus = "refunded"
)

// IsOpen reports whether the dispute still blocks its payment.
func (s DisputeStatus) IsOpen() bool { return s == DisputePending || s == DisputeUnderReview }

type JobStatus string

const (
	JobOpen       JobStatus = "open"
	JobInProgress JobStatus = "in-progress"
	JobCompleted  JobStatus = "completed"
	JobCancelled  JobStatus = "cancelled"
)

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationAccepted ApplicationStatus = "accepted"
	ApplicationRejected ApplicationStatus = "rejected"
)

// ---------------------------------------------------------------------------
// Models
// ---------------------------------------------------------------------------

type User struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Email        string    `gorm:"column:email"`
	PasswordHash string    `gorm:"column:password_hash"`
	FirstName    string    `gorm:"column:first_name"`
	LastName     string    `gorm:"column:last_name"`
	Phone        *string   `gorm:"column:phone"`
	Role         Role      `gorm:"column:role"`

	HourlyRate decimal.NullDecimal `gorm:"column:hourly_rate;type:numeric(12,2)"`

	// PayoutAccountEnc is the AES-GCM ciphertext of the connected account id;
	// PayoutAccountHash is its SHA-256 used for webhook lookups.
	PayoutAccountEnc  *string      `gorm:"column:payout_account_enc"`
	PayoutAccountHash *string      `gorm:"column:payout_account_hash"`
	PayoutStatus      PayoutStatus `gorm:"column:payout_status"`
	IdentityVerified  bool         `gorm:"column:identity_verified"`

	CompletedAppointments int `gorm:"column:completed_appointments"`
	ActiveAppointments    int `gorm:"column:active_appointments"`
	AllAppointments       int `gorm:"column:all_appointments"`
	TotalClients          int `gorm:"column:total_clients"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (User) TableName() string { return "users" }

func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

type Service struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProfessionalID uuid.UUID `gorm:"column:professional_id;type:uuid"`
	Name           string    `gorm:"column:name"`
	Description    string    `gorm:"column:description"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (Service) TableName() string { return "services" }

type Appointment struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ClientID       uuid.UUID       `gorm:"column:client_id;type:uuid"`
	ProfessionalID uuid.UUID       `gorm:"column:professional_id;type:uuid"`
	ServiceIDs     pq.StringArray  `gorm:"column:service_ids;type:text[]"`
	ScheduledAt    time.Time       `gorm:"column:scheduled_at"`
	DurationHours  decimal.Decimal `gorm:"column:duration_hours;type:numeric(8,2)"`
	EndsAt         time.Time       `gorm:"column:ends_at"`
	Issue          string          `gorm:"column:issue"`
	Location       string          `gorm:"column:location"`
	VehicleType    *string         `gorm:"column:vehicle_type"`
	JobID          *uuid.UUID      `gorm:"column:job_id;type:uuid"`

	BasePrice             decimal.Decimal `gorm:"column:base_price;type:numeric(12,2)"`
	TaxAmount             decimal.Decimal `gorm:"column:tax_amount;type:numeric(12,2)"`
	PlatformFee           decimal.Decimal `gorm:"column:platform_fee;type:numeric(12,2)"`
	TotalPrice            decimal.Decimal `gorm:"column:total_price;type:numeric(12,2)"`
	ProfessionalEarnings  decimal.Decimal `gorm:"column:professional_earnings;type:numeric(12,2)"`
	TaxPercentage         decimal.Decimal `gorm:"column:tax_percentage;type:numeric(5,2)"`
	PlatformFeePercentage decimal.Decimal `gorm:"column:platform_fee_percentage;type:numeric(5,2)"`

	Status      AppointmentStatus `gorm:"column:status"`
	CreatedAt   time.Time         `gorm:"column:created_at"`
	UpdatedAt   time.Time         `gorm:"column:updated_at"`
	ConfirmedAt *time.Time        `gorm:"column:confirmed_at"`
	CancelledAt *time.Time        `gorm:"column:cancelled_at"`
	CompletedAt *time.Time        `gorm:"column:completed_at"`
}

func (Appointment) TableName() string { return "appointments" }

// IsParty reports whether userID is the client or the professional.
func (a *Appointment) IsParty(userID uuid.UUID) bool {
	return a.ClientID == userID || a.ProfessionalID == userID
}

type Payment struct {
	ID                   uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ClientID             uuid.UUID       `gorm:"column:client_id;type:uuid"`
	ProfessionalID       uuid.UUID       `gorm:"column:professional_id;type:uuid"`
	AppointmentID        uuid.UUID       `gorm:"column:appointment_id;type:uuid"`
	Amount               decimal.Decimal `gorm:"column:amount;type:numeric(12,2)"`
	PlatformFee          decimal.Decimal `gorm:"column:platform_fee;type:numeric(12,2)"`
	TaxAmount            decimal.Decimal `gorm:"column:tax_amount;type:numeric(12,2)"`
	ProfessionalEarnings decimal.Decimal `gorm:"column:professional_earnings;type:numeric(12,2)"`
	Currency             string          `gorm:"column:currency"`

	PaymentIntentID string  `gorm:"column:payment_intent_id"`
	ClientSecret    string  `gorm:"column:client_secret"`
	PaymentMethod   *string `gorm:"column:payment_method"`
	TransactionID   *string `gorm:"column:transaction_id"`
	TransferID      *string `gorm:"column:transfer_id"`
	RefundID        *string `gorm:"column:refund_id"`

	Status         PaymentStatus `gorm:"column:status"`
	ClientApproval bool          `gorm:"column:client_approval"`
	ApprovedAt     *time.Time    `gorm:"column:approved_at"`
	ReleasedAt     *time.Time    `gorm:"column:released_at"`
	RefundedAt     *time.Time    `gorm:"column:refunded_at"`
	CreatedAt      time.Time     `gorm:"column:created_at"`
	UpdatedAt      time.Time     `gorm:"column:updated_at"`
}

func (Payment) TableName() string { return "payments" }

func (p *Payment) IsParty(userID uuid.UUID) bool {
	return p.ClientID == userID || p.ProfessionalID == userID
}

type Dispute struct {
	ID         uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	PaymentID  uuid.UUID      `gorm:"column:payment_id;type:uuid"`
	RaisedBy   uuid.UUID      `gorm:"column:raised_by;type:uuid"`
	Message    string         `gorm:"column:message"`
	Evidence   pq.StringArray `gorm:"column:evidence;type:text[]"`
	Status     DisputeStatus  `gorm:"column:status"`
	Resolution *string        `gorm:"column:resolution"`
	ResolvedBy *uuid.UUID     `gorm:"column:resolved_by;type:uuid"`
	ResolvedAt *time.Time     `gorm:"column:resolved_at"`
	CreatedAt  time.Time      `gorm:"column:created_at"`
	UpdatedAt  time.Time      `gorm:"column:updated_at"`
}

func (Dispute) TableName() string { return "disputes" }

// Job is work a client posts for professionals to apply to. Accepting an
// applicant turns it into a Confirmed appointment with its payment.
type Job struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ClientID      uuid.UUID       `gorm:"column:client_id;type:uuid"`
	ServiceID     uuid.UUID       `gorm:"column:service_id;type:uuid"`
	RatePerHour   decimal.Decimal `gorm:"column:rate_per_hour;type:numeric(12,2)"`
	Location      string          `gorm:"column:location"`
	Description   string          `gorm:"column:description"`
	Skills        pq.StringArray  `gorm:"column:skills;type:text[]"`
	DurationHours decimal.Decimal `gorm:"column:duration_hours;type:numeric(8,2)"`
	ScheduledAt   time.Time       `gorm:"column:scheduled_at"`
	Status        JobStatus       `gorm:"column:status"`
	AcceptedID    *uuid.UUID      `gorm:"column:accepted_professional_id;type:uuid"`
	CreatedAt     time.Time       `gorm:"column:created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at"`
}

func (Job) TableName() string { return "jobs" }

type JobApplication struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	JobID          uuid.UUID         `gorm:"column:job_id;type:uuid"`
	ProfessionalID uuid.UUID         `gorm:"column:professional_id;type:uuid"`
	Status         ApplicationStatus `gorm:"column:status"`
	CreatedAt      time.Time         `gorm:"column:created_at"`
	UpdatedAt      time.Time         `gorm:"column:updated_at"`
}

func (JobApplication) TableName() string { return "job_applications" }

type TaxConfig struct {
	ID                    uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	TaxPercentage         decimal.Decimal `gorm:"column:tax_percentage;type:numeric(5,2)"`
	PlatformFeePercentage decimal.Decimal `gorm:"column:platform_fee_percentage;type:numeric(5,2)"`
	CreatedBy             *uuid.UUID      `gorm:"column:created_by;type:uuid"`
	CreatedAt             time.Time       `gorm:"column:created_at"`
}

func (TaxConfig) TableName() string { return "tax_configs" }

type Notification struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID         `gorm:"column:user_id;type:uuid"`
	Type      string            `gorm:"column:type"`
	Title     string            `gorm:"column:title"`
	Body      string            `gorm:"column:body"`
	Data      datatypes.JSONMap `gorm:"column:data;type:jsonb"`
	IsRead    bool              `gorm:"column:is_read"`
	CreatedAt time.Time         `gorm:"column:created_at"`
}

func (Notification) TableName() string { return "notifications" }

type ProcessorEvent struct {
	EventID     string         `gorm:"column:event_id;primaryKey"`
	Type        string         `gorm:"column:type"`
	Payload     datatypes.JSON `gorm:"column:payload;type:jsonb"`
	ProcessedAt time.Time      `gorm:"column:processed_at"`
}

func (ProcessorEvent) TableName() string { return "processor_events" }

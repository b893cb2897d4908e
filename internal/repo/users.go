package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProfessionalProfileUpdate carries the optional professional fields; nil
// fields are left unchanged.
type ProfessionalProfileUpdate struct {
	HourlyRate        *decimal.Decimal
	PayoutAccountEnc  *string
	PayoutAccountHash *string
}

// UserMetrics are the denormalized appointment counters on users.
type UserMetrics struct {
	CompletedAppointments int
	ActiveAppointments    int
	AllAppointments       int
	TotalClients          int
}

func (c *Client) CreateUser(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.Must(uuid.NewV7())
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.PayoutStatus == "" {
		u.PayoutStatus = PayoutPending
	}
	return translate("create user", c.db.WithContext(ctx).Create(u).Error)
}

func (c *Client) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	if err := c.db.WithContext(ctx).Where("id = ?", id).Take(&u).Error; err != nil {
		return nil, translate("get user", err)
	}
	return &u, nil
}

func (c *Client) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := c.db.WithContext(ctx).
		Where("lower(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		Take(&u).Error
	if err != nil {
		return nil, translate("get user by email", err)
	}
	return &u, nil
}

func (c *Client) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	res := c.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Updates(map[string]any{
		"password_hash": hash,
		"updated_at":    time.Now().UTC(),
	})
	if res.Error != nil {
		return translate("update password hash", res.Error)
	}
	if res.RowsAffected == 0 {
		return translate("update password hash", ErrNotFound)
	}
	return nil
}

func (c *Client) UpdateProfessionalProfile(ctx context.Context, id uuid.UUID, in ProfessionalProfileUpdate) (*User, error) {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if in.HourlyRate != nil {
		updates["hourly_rate"] = *in.HourlyRate
	}
	if in.PayoutAccountEnc != nil {
		updates["payout_account_enc"] = *in.PayoutAccountEnc
		updates["payout_account_hash"] = in.PayoutAccountHash
		updates["payout_status"] = PayoutPending
		updates["identity_verified"] = false
	}

	res := c.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, translate("update professional profile", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, translate("update professional profile", ErrNotFound)
	}
	return c.GetUser(ctx, id)
}

// UpdatePayoutStatusByAccount applies a processor account.updated event.
// It returns false when no user owns the account.
func (c *Client) UpdatePayoutStatusByAccount(ctx context.Context, accountHash string, status PayoutStatus, verified bool) (bool, error) {
	res := c.db.WithContext(ctx).Model(&User{}).
		Where("payout_account_hash = ?", accountHash).
		Updates(map[string]any{
			"payout_status":     status,
			"identity_verified": verified,
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return false, translate("update payout status", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (c *Client) UpdateUserMetrics(ctx context.Context, id uuid.UUID, m UserMetrics) error {
	err := c.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Updates(map[string]any{
		"completed_appointments": m.CompletedAppointments,
		"active_appointments":    m.ActiveAppointments,
		"all_appointments":       m.AllAppointments,
		"total_clients":          m.TotalClients,
		"updated_at":             time.Now().UTC(),
	}).Error
	return translate("update user metrics", err)
}

// AppointmentMetrics recomputes the counters for a user from appointments
// where the user is either party.
func (c *Client) AppointmentMetrics(ctx context.Context, userID uuid.UUID) (UserMetrics, error) {
	var row struct {
		Completed int
		Active    int
		AllCount  int
		Clients   int
	}
	err := c.db.WithContext(ctx).Raw(`
		SELECT
			count(*) FILTER (WHERE status = ?)                           AS completed,
			count(*) FILTER (WHERE status IN (?, ?))                     AS active,
			count(*)                                                     AS all_count,
			count(DISTINCT client_id) FILTER (WHERE professional_id = ?) AS clients
		FROM appointments
		WHERE client_id = ? OR professional_id = ?`,
		AppointmentCompleted, AppointmentPending, AppointmentConfirmed, userID, userID, userID,
	).Scan(&row).Error
	if err != nil {
		return UserMetrics{}, translate("appointment metrics", err)
	}
	return UserMetrics{
		CompletedAppointments: row.Completed,
		ActiveAppointments:    row.Active,
		AllAppointments:       row.AllCount,
		TotalClients:          row.Clients,
	}, nil
}

package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AppointmentFilter struct {
	// UserID restricts to appointments where the user is either party.
	// uuid.Nil lists every appointment.
	UserID   uuid.UUID
	Statuses []AppointmentStatus
	Page     int
	PerPage  int
}

// CreateAppointmentWithPayment inserts an appointment and its payment in one
// transaction. A second payment for the same appointment fails with
// ErrDuplicate.
func (c *Client) CreateAppointmentWithPayment(ctx context.Context, a *Appointment, p *Payment) error {
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(a).Error; err != nil {
			return err
		}
		p.AppointmentID = a.ID
		return tx.Create(p).Error
	})
	return translate("create appointment with payment", err)
}

func (c *Client) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var a Appointment
	if err := c.db.WithContext(ctx).Where("id = ?", id).Take(&a).Error; err != nil {
		return nil, translate("get appointment", err)
	}
	return &a, nil
}

func (c *Client) ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, int64, error) {
	q := c.db.WithContext(ctx).Model(&Appointment{})
	if f.UserID != uuid.Nil {
		q = q.Where("client_id = ? OR professional_id = ?", f.UserID, f.UserID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate("count appointments", err)
	}

	offset, limit := Page(f.Page, f.PerPage)
	var out []Appointment
	if err := q.Order("scheduled_at DESC").Offset(offset).Limit(limit).Find(&out).Error; err != nil {
		return nil, 0, translate("list appointments", err)
	}
	return out, total, nil
}

// TransitionAppointment moves an appointment to `to` only if its current
// status is one of `from`. A mismatch returns ErrStaleState.
func (c *Client) TransitionAppointment(ctx context.Context, id uuid.UUID, from []AppointmentStatus, to AppointmentStatus, at time.Time) (*Appointment, error) {
	var out Appointment
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return transitionAppointmentTx(tx, &out, id, from, to, at)
	})
	if err != nil {
		return nil, translate("transition appointment", err)
	}
	return &out, nil
}

func transitionAppointmentTx(tx *gorm.DB, out *Appointment, id uuid.UUID, from []AppointmentStatus, to AppointmentStatus, at time.Time) error {
	updates := map[string]any{"status": to, "updated_at": at}
	switch to {
	case AppointmentConfirmed:
		updates["confirmed_at"] = at
	case AppointmentCancelled:
		updates["cancelled_at"] = at
	case AppointmentCompleted:
		updates["completed_at"] = at
	}

	res := tx.Model(out).Clauses(clause.Returning{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := tx.Model(&Appointment{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrStaleState
	}
	return nil
}

// CompleteEndedAppointments flips every Confirmed appointment whose end time
// is before now to Completed and returns the rows it changed. Concurrent
// callers never complete the same row twice.
func (c *Client) CompleteEndedAppointments(ctx context.Context, now time.Time) ([]Appointment, error) {
	var out []Appointment
	err := c.db.WithContext(ctx).Model(&out).Clauses(clause.Returning{}).
		Where("status = ? AND ends_at < ?", AppointmentConfirmed, now).
		Updates(map[string]any{
			"status":       AppointmentCompleted,
			"completed_at": now,
			"updated_at":   now,
		}).Error
	if err != nil {
		return nil, translate("complete ended appointments", err)
	}
	return out, nil
}

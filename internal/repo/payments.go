package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentFilter struct {
	// UserID restricts to payments where the user is either party.
	// uuid.Nil lists every payment.
	UserID  uuid.UUID
	Status  *PaymentStatus
	Page    int
	PerPage int
}

// PaymentUpdate carries the write-once columns a transition may set.
type PaymentUpdate struct {
	PaymentMethod *string
	TransactionID *string
	TransferID    *string
	RefundID      *string
	ReleasedAt    *time.Time
	RefundedAt    *time.Time
}

func (u PaymentUpdate) columns(to PaymentStatus, at time.Time) map[string]any {
	m := map[string]any{"status": to, "updated_at": at}
	if u.PaymentMethod != nil {
		m["payment_method"] = *u.PaymentMethod
	}
	if u.TransactionID != nil {
		m["transaction_id"] = *u.TransactionID
	}
	if u.TransferID != nil {
		m["transfer_id"] = *u.TransferID
	}
	if u.RefundID != nil {
		m["refund_id"] = *u.RefundID
	}
	if u.ReleasedAt != nil {
		m["released_at"] = *u.ReleasedAt
	}
	if u.RefundedAt != nil {
		m["refunded_at"] = *u.RefundedAt
	}
	return m
}

// Apply copies the set fields onto p. Used by in-memory stores.
func (u PaymentUpdate) Apply(p *Payment) {
	if u.PaymentMethod != nil {
		p.PaymentMethod = u.PaymentMethod
	}
	if u.TransactionID != nil {
		p.TransactionID = u.TransactionID
	}
	if u.TransferID != nil {
		p.TransferID = u.TransferID
	}
	if u.RefundID != nil {
		p.RefundID = u.RefundID
	}
	if u.ReleasedAt != nil {
		p.ReleasedAt = u.ReleasedAt
	}
	if u.RefundedAt != nil {
		p.RefundedAt = u.RefundedAt
	}
}

func (c *Client) CreatePayment(ctx context.Context, p *Payment) error {
	return translate("create payment", c.db.WithContext(ctx).Create(p).Error)
}

func (c *Client) GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return c.takePayment(ctx, "get payment", "id = ?", id)
}

func (c *Client) GetPaymentByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Payment, error) {
	return c.takePayment(ctx, "get payment by appointment", "appointment_id = ?", appointmentID)
}

func (c *Client) GetPaymentByIntent(ctx context.Context, intentID string) (*Payment, error) {
	return c.takePayment(ctx, "get payment by intent", "payment_intent_id = ?", intentID)
}

func (c *Client) takePayment(ctx context.Context, op, cond string, arg any) (*Payment, error) {
	var p Payment
	if err := c.db.WithContext(ctx).Where(cond, arg).Take(&p).Error; err != nil {
		return nil, translate(op, err)
	}
	return &p, nil
}

func (c *Client) ListPayments(ctx context.Context, f PaymentFilter) ([]Payment, int64, error) {
	q := c.db.WithContext(ctx).Model(&Payment{})
	if f.UserID != uuid.Nil {
		q = q.Where("client_id = ? OR professional_id = ?", f.UserID, f.UserID)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate("count payments", err)
	}

	offset, limit := Page(f.Page, f.PerPage)
	var out []Payment
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&out).Error; err != nil {
		return nil, 0, translate("list payments", err)
	}
	return out, total, nil
}

// TransitionPayment performs the conditional update
// UPDATE payments SET status=to ... WHERE id=? AND status=from.
// Moving to released also completes the appointment in the same transaction,
// and fails with ErrStaleState when the appointment is cancelled.
func (c *Client) TransitionPayment(ctx context.Context, id uuid.UUID, from, to PaymentStatus, upd PaymentUpdate) (*Payment, error) {
	var out Payment
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return transitionPaymentTx(tx, &out, id, from, to, upd)
	})
	if err != nil {
		return nil, translate("transition payment", err)
	}
	return &out, nil
}

func transitionPaymentTx(tx *gorm.DB, out *Payment, id uuid.UUID, from, to PaymentStatus, upd PaymentUpdate) error {
	now := time.Now().UTC()
	res := tx.Model(out).Clauses(clause.Returning{}).
		Where("id = ? AND status = ?", id, from).
		Updates(upd.columns(to, now))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := tx.Model(&Payment{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrStaleState
	}

	if to == PaymentReleased {
		err := tx.Model(&Appointment{}).
			Where("id = ? AND status IN ?", out.AppointmentID, []AppointmentStatus{AppointmentPending, AppointmentConfirmed}).
			Updates(map[string]any{
				"status":       AppointmentCompleted,
				"completed_at": now,
				"updated_at":   now,
			}).Error
		if err != nil {
			return err
		}
		// Funds never move for a cancelled booking; returning an error rolls
		// the payment update back.
		var cancelled int64
		err = tx.Model(&Appointment{}).
			Where("id = ? AND status = ?", out.AppointmentID, AppointmentCancelled).
			Count(&cancelled).Error
		if err != nil {
			return err
		}
		if cancelled > 0 {
			return ErrStaleState
		}
	}
	return nil
}

// SetClientApproval marks a paid payment as approved by the client.
func (c *Client) SetClientApproval(ctx context.Context, id uuid.UUID, at time.Time) (*Payment, error) {
	var out Payment
	res := c.db.WithContext(ctx).Model(&out).Clauses(clause.Returning{}).
		Where("id = ? AND status = ?", id, PaymentPaid).
		Updates(map[string]any{
			"client_approval": true,
			"approved_at":     at,
			"updated_at":      at,
		})
	if res.Error != nil {
		return nil, translate("set client approval", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := c.GetPayment(ctx, id); err != nil {
			return nil, err
		}
		return nil, translate("set client approval", ErrStaleState)
	}
	return &out, nil
}

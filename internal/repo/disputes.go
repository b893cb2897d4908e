package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OpenDispute moves the payment from paid to disputed and inserts d in the
// same transaction. The payment must be paid; a second open dispute for the
// same payment fails with ErrDuplicate.
func (c *Client) OpenDispute(ctx context.Context, d *Dispute) (*Payment, error) {
	var pay Payment
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := transitionPaymentTx(tx, &pay, d.PaymentID, PaymentPaid, PaymentDisputed, PaymentUpdate{}); err != nil {
			return err
		}
		return tx.Create(d).Error
	})
	if err != nil {
		return nil, translate("open dispute", err)
	}
	return &pay, nil
}

func (c *Client) GetDispute(ctx context.Context, id uuid.UUID) (*Dispute, error) {
	var d Dispute
	if err := c.db.WithContext(ctx).Where("id = ?", id).Take(&d).Error; err != nil {
		return nil, translate("get dispute", err)
	}
	return &d, nil
}

// LatestDispute returns the most recent dispute raised on a payment.
func (c *Client) LatestDispute(ctx context.Context, paymentID uuid.UUID) (*Dispute, error) {
	var d Dispute
	err := c.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at DESC").
		Take(&d).Error
	if err != nil {
		return nil, translate("latest dispute", err)
	}
	return &d, nil
}

// ReviewDispute moves a pending dispute to under_review.
func (c *Client) ReviewDispute(ctx context.Context, id uuid.UUID, at time.Time) (*Dispute, error) {
	var out Dispute
	res := c.db.WithContext(ctx).Model(&out).Clauses(clause.Returning{}).
		Where("id = ? AND status = ?", id, DisputePending).
		Updates(map[string]any{"status": DisputeUnderReview, "updated_at": at})
	if res.Error != nil {
		return nil, translate("review dispute", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := c.GetDispute(ctx, id); err != nil {
			return nil, err
		}
		return nil, translate("review dispute", ErrStaleState)
	}
	return &out, nil
}

// DisputeResolution describes how ResolveDispute closes a dispute.
type DisputeResolution struct {
	DisputeID  uuid.UUID
	ResolvedBy uuid.UUID
	Resolution string
	// Refund selects refunded over released for the payment.
	Refund bool
	Update PaymentUpdate
}

// ResolveDispute closes an open dispute and moves its payment out of
// disputed in one transaction. Resolving a closed dispute returns
// ErrStaleState.
func (c *Client) ResolveDispute(ctx context.Context, r DisputeResolution) (*Dispute, *Payment, error) {
	var (
		d   Dispute
		pay Payment
	)
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		status, payTo := DisputeResolved, PaymentReleased
		if r.Refund {
			status, payTo = DisputeRefunded, PaymentRefunded
		}

		res := tx.Model(&d).Clauses(clause.Returning{}).
			Where("id = ? AND status IN ?", r.DisputeID, []DisputeStatus{DisputePending, DisputeUnderReview}).
			Updates(map[string]any{
				"status":      status,
				"resolution":  r.Resolution,
				"resolved_by": r.ResolvedBy,
				"resolved_at": now,
				"updated_at":  now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&Dispute{}).Where("id = ?", r.DisputeID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return ErrNotFound
			}
			return ErrStaleState
		}

		return transitionPaymentTx(tx, &pay, d.PaymentID, PaymentDisputed, payTo, r.Update)
	})
	if err != nil {
		return nil, nil, translate("resolve dispute", err)
	}
	return &d, &pay, nil
}

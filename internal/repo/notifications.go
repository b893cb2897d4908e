package repo

import (
	"context"

	"github.com/google/uuid"
)

type NotificationFilter struct {
	UserID     uuid.UUID
	UnreadOnly bool
	Page       int
	PerPage    int
}

func (c *Client) CreateNotification(ctx context.Context, n *Notification) error {
	return translate("create notification", c.db.WithContext(ctx).Create(n).Error)
}

func (c *Client) ListNotifications(ctx context.Context, f NotificationFilter) ([]Notification, int64, error) {
	q := c.db.WithContext(ctx).Model(&Notification{}).Where("user_id = ?", f.UserID)
	if f.UnreadOnly {
		q = q.Where("is_read = ?", false)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate("count notifications", err)
	}

	offset, limit := Page(f.Page, f.PerPage)
	var out []Notification
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&out).Error; err != nil {
		return nil, 0, translate("list notifications", err)
	}
	return out, total, nil
}

// MarkNotificationRead only touches rows owned by userID.
func (c *Client) MarkNotificationRead(ctx context.Context, userID, id uuid.UUID) error {
	res := c.db.WithContext(ctx).Model(&Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		return translate("mark notification read", res.Error)
	}
	if res.RowsAffected == 0 {
		return translate("mark notification read", ErrNotFound)
	}
	return nil
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := c.db.WithContext(ctx).Model(&Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return res.RowsAffected, translate("mark all notifications read", res.Error)
}

// CountUnread backs the unread badge.
func (c *Client) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := c.db.WithContext(ctx).Model(&Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	return n, translate("count unread", err)
}

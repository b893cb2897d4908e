package repo

import (
	"context"

	"github.com/google/uuid"
)

type ServiceFilter struct {
	ProfessionalID *uuid.UUID
	Page           int
	PerPage        int
}

func (c *Client) CreateService(ctx context.Context, s *Service) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.Must(uuid.NewV7())
	}
	return translate("create service", c.db.WithContext(ctx).Create(s).Error)
}

func (c *Client) ListServices(ctx context.Context, f ServiceFilter) ([]Service, int64, error) {
	q := c.db.WithContext(ctx).Model(&Service{})
	if f.ProfessionalID != nil {
		q = q.Where("professional_id = ?", *f.ProfessionalID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate("count services", err)
	}

	offset, limit := Page(f.Page, f.PerPage)
	var out []Service
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&out).Error; err != nil {
		return nil, 0, translate("list services", err)
	}
	return out, total, nil
}

// CountServicesOwnedBy counts how many of ids belong to professionalID.
func (c *Client) CountServicesOwnedBy(ctx context.Context, professionalID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var n int64
	err := c.db.WithContext(ctx).Model(&Service{}).
		Where("professional_id = ? AND id IN ?", professionalID, ids).
		Count(&n).Error
	return n, translate("count services", err)
}

package repo

import (
	"context"
)

func (c *Client) CreateTaxConfig(ctx context.Context, tc *TaxConfig) error {
	return translate("create tax config", c.db.WithContext(ctx).Create(tc).Error)
}

// LatestTaxConfig returns the newest row. The caller falls back to defaults
// on ErrNotFound.
func (c *Client) LatestTaxConfig(ctx context.Context) (*TaxConfig, error) {
	var tc TaxConfig
	if err := c.db.WithContext(ctx).Order("created_at DESC").Take(&tc).Error; err != nil {
		return nil, translate("latest tax config", err)
	}
	return &tc, nil
}

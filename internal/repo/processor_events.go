package repo

import (
	"context"

	"gorm.io/gorm/clause"
)

// RecordProcessorEvent inserts the event into the ledger. It returns false
// when the event id was already recorded, so a redelivered webhook is a
// no-op for the caller.
func (c *Client) RecordProcessorEvent(ctx context.Context, ev *ProcessorEvent) (bool, error) {
	res := c.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(ev)
	if res.Error != nil {
		return false, translate("record processor event", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (c *Client) ProcessorEventSeen(ctx context.Context, eventID string) (bool, error) {
	var n int64
	err := c.db.WithContext(ctx).Model(&ProcessorEvent{}).Where("event_id = ?", eventID).Count(&n).Error
	return n > 0, translate("processor event seen", err)
}

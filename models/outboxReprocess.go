package models

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// RequeueDeadOrderEvents puts the order's DEAD outbox rows back to PENDING with a fresh
// attempt budget. DEAD rows may already have reached the broker, so this is an operator
// decision: call it only after checking the event was not delivered.
func RequeueDeadOrderEvents(ctx context.Context, db *gorm.DB, orderId int, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&OutboxMessageRecord{}).
		Where("reference_type = ? AND reference_id = ? AND publish_status = ?",
			OutboxReferenceTypeOrder, orderId, OutboxPublishStatusDead).
		Updates(map[string]interface{}{
			"publish_status":   OutboxPublishStatusPending,
			"publish_attempts": 0,
			"next_attempt_at":  &now,
			"locked_at":        nil,
			"locked_by":        nil,
		})
	return res.RowsAffected, res.Error
}

package models

import (
	"context"

	"gorm.io/gorm"
)

// GetOrderEventStatuses lists the outbox rows of an order, oldest first.
func GetOrderEventStatuses(ctx context.Context, db *gorm.DB, orderId int) ([]OutboxStatus, error) {
	var records []OutboxMessageRecord
	if err := db.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ?", OutboxReferenceTypeOrder, orderId).
		Order("id ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	statuses := make([]OutboxStatus, 0, len(records))
	for _, rec := range records {
		statuses = append(statuses, toOutboxStatus(rec))
	}
	return statuses, nil
}

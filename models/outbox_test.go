package models

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestOrderEventStatusAndRequeue(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	order := &Order{
		ID:            17,
		OrderNumber:   "ORD-20260310-0001",
		CustomerId:    1,
		Status:        OrderStatusPending,
		PaymentMethod: PaymentMethodCash,
		TotalAmount:   decimal.NewFromInt(1000),
		OrderDate:     now,
	}
	rec, err := PublishOrderEvent(ctx, db, OrderEventTypePlaced, order, now)
	if err != nil {
		t.Fatalf("publish order event: %v", err)
	}
	if rec.PublishStatus != OutboxPublishStatusPending || rec.CorrelationId == "" {
		t.Fatalf("unexpected outbox row %+v", rec)
	}

	if n, err := RequeueDeadOrderEvents(ctx, db, order.ID, now); err != nil || n != 0 {
		t.Fatalf("requeue of a pending row: n=%d err=%v", n, err)
	}

	errMsg := "publish timed out"
	if err := db.Model(&OutboxMessageRecord{}).Where("id = ?", rec.ID).Updates(map[string]interface{}{
		"publish_status":     OutboxPublishStatusDead,
		"publish_attempts":   3,
		"last_publish_error": &errMsg,
	}).Error; err != nil {
		t.Fatalf("mark dead: %v", err)
	}

	statuses, err := GetOrderEventStatuses(ctx, db, order.ID)
	if err != nil {
		t.Fatalf("statuses: %v", err)
	}
	if len(statuses) != 1 || statuses[0].PublishStatus != OutboxPublishStatusDead || statuses[0].IsPublished {
		t.Fatalf("unexpected statuses %+v", statuses)
	}

	n, err := RequeueDeadOrderEvents(ctx, db, order.ID, now)
	if err != nil || n != 1 {
		t.Fatalf("requeue: n=%d err=%v", n, err)
	}
	statuses, _ = GetOrderEventStatuses(ctx, db, order.ID)
	if statuses[0].PublishStatus != OutboxPublishStatusPending || statuses[0].PublishAttempts != 0 {
		t.Fatalf("unexpected status after requeue %+v", statuses[0])
	}
}

package models

import (
	"context"
	"time"

	"github.com/bangunmart/fulfillment_backend/config"
	"github.com/bangunmart/fulfillment_backend/utils"
	"gorm.io/gorm"
)

// OutboxMessageRecord is a transactional outbox row. It is written in the same
// transaction as the change it announces and published after commit by the dispatcher.
type OutboxMessageRecord struct {
	ID               int        `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	EventType        string     `gorm:"size:50;not null" json:"event_type"`
	ReferenceType    string     `gorm:"size:30;not null;index" json:"reference_type"`
	ReferenceId      int        `gorm:"index;not null" json:"reference_id"`
	Payload          []byte     `json:"payload"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	OccurredAt       time.Time  `gorm:"not null" json:"occurred_at"`
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// OrderPlacedPayload is the body of an order.placed event.
type OrderPlacedPayload struct {
	OrderId       int           `json:"order_id"`
	OrderNumber   string        `json:"order_number"`
	CustomerId    int           `json:"customer_id"`
	Status        OrderStatus   `json:"status"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	TotalAmount   string        `json:"total_amount"`
	ItemCount     int           `json:"item_count"`
	OrderDate     time.Time     `json:"order_date"`
}

// PublishOrderEvent writes the outbox record inside the caller's transaction but does NOT publish.
// A rolled-back order therefore never produces an event.
func PublishOrderEvent(ctx context.Context, tx *gorm.DB, eventType OrderEventType, order *Order, occurredAt time.Time) (*OutboxMessageRecord, error) {
	payload, err := utils.MarshalToJSON(OrderPlacedPayload{
		OrderId:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerId:    order.CustomerId,
		Status:        order.Status,
		PaymentMethod: order.PaymentMethod,
		TotalAmount:   order.TotalAmount.StringFixed(0),
		ItemCount:     len(order.Items),
		OrderDate:     order.OrderDate,
	})
	if err != nil {
		return nil, err
	}

	record := OutboxMessageRecord{
		EventType:     string(eventType),
		ReferenceType: OutboxReferenceTypeOrder,
		ReferenceId:   order.ID,
		Payload:       payload,
		CorrelationId: utils.CorrelationIdFromContextOrNew(ctx),
		OccurredAt:    occurredAt,
		PublishStatus: OutboxPublishStatusPending,
	}
	if err := tx.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func ConvertToOrderEventMessage(record OutboxMessageRecord) config.OrderEventMessage {
	return config.OrderEventMessage{
		ID:            record.ID,
		EventType:     record.EventType,
		ReferenceType: record.ReferenceType,
		ReferenceId:   record.ReferenceId,
		OccurredAt:    record.OccurredAt,
		CorrelationId: record.CorrelationId,
		Payload:       record.Payload,
	}
}

package models

import "time"

// OutboxStatus is the publish state of one order event, as shown to operators.
type OutboxStatus struct {
	RecordId         int        `json:"record_id"`
	EventType        string     `json:"event_type"`
	ReferenceType    string     `json:"reference_type"`
	ReferenceId      int        `json:"reference_id"`
	CorrelationId    string     `json:"correlation_id"`
	PublishStatus    string     `json:"publish_status"`
	IsPublished      bool       `json:"is_published"`
	PublishAttempts  int        `json:"publish_attempts"`
	NextAttemptAt    *time.Time `json:"next_attempt_at"`
	LastPublishError *string    `json:"last_publish_error"`
	CreatedAt        time.Time  `json:"created_at"`
	PublishedAt      *time.Time `json:"published_at"`
}

func toOutboxStatus(rec OutboxMessageRecord) OutboxStatus {
	return OutboxStatus{
		RecordId:         rec.ID,
		EventType:        rec.EventType,
		ReferenceType:    rec.ReferenceType,
		ReferenceId:      rec.ReferenceId,
		CorrelationId:    rec.CorrelationId,
		PublishStatus:    rec.PublishStatus,
		IsPublished:      rec.PublishStatus == OutboxPublishStatusSent,
		PublishAttempts:  rec.PublishAttempts,
		NextAttemptAt:    rec.NextAttemptAt,
		LastPublishError: rec.LastPublishError,
		CreatedAt:        rec.CreatedAt,
		PublishedAt:      rec.PublishedAt,
	}
}

package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bangunmart/fulfillment_backend/config"
	"github.com/bangunmart/fulfillment_backend/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventPublisher hands an order event to the broker and returns the broker's message id.
// Errors wrapping config.ErrPublisherUnavailable mean nothing was sent.
type EventPublisher interface {
	Publish(ctx context.Context, msg config.OrderEventMessage) (string, error)
}

// OutboxDispatcher publishes committed outbox rows at most once.
//
// A row is claimed (PROCESSING, committed) before the publish call. If the publish fails after
// the message may have reached the broker the row goes DEAD instead of being retried, and a
// PROCESSING row whose lock went stale is also moved to DEAD. Only failures that happen before
// anything is sent are retried with backoff.
type OutboxDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	Publisher    EventPublisher
	DispatcherID string
	Now          func() time.Time

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func NewOutboxDispatcher(db *gorm.DB, logger *logrus.Logger, publisher EventPublisher) *OutboxDispatcher {
	return &OutboxDispatcher{
		DB:             db,
		Logger:         logger,
		Publisher:      publisher,
		DispatcherID:   uuid.NewString(),
		Now:            func() time.Time { return time.Now().UTC() },
		BatchSize:      config.OutboxBatchSize(),
		PollInterval:   500 * time.Millisecond,
		LockTimeout:    30 * time.Second,
		MaxAttempts:    20,
		InitialBackoff: 5 * time.Second,
		MaxBackoff:     10 * time.Minute,
	}
}

// DispatchResult counts what one pass did.
type DispatchResult struct {
	Sent    int
	Retried int
	Dead    int
}

func (d *OutboxDispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if _, err := d.DispatchOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			config.LogError(d.Logger, "OutboxDispatcher", "Run", "dispatch", d.DispatcherID, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

// DispatchOnce claims one batch and publishes it.
func (d *OutboxDispatcher) DispatchOnce(ctx context.Context) (DispatchResult, error) {
	var result DispatchResult
	if d.DB == nil || d.Publisher == nil {
		return result, nil
	}
	now := d.Now()

	claimed, dead, err := d.claim(ctx, now)
	if err != nil {
		return result, err
	}
	result.Dead += dead

	for _, rec := range claimed {
		msg := models.ConvertToOrderEventMessage(rec)
		pubID, pubErr := d.Publisher.Publish(ctx, msg)
		if pubErr == nil {
			d.markPublishSent(ctx, rec.ID, pubID, now)
			result.Sent++
			continue
		}
		if d.markPublishFailed(ctx, rec, pubErr) {
			result.Retried++
		} else {
			result.Dead++
		}
	}
	return result, nil
}

// claim moves stale PROCESSING rows to DEAD and marks ready rows PROCESSING in one transaction.
func (d *OutboxDispatcher) claim(ctx context.Context, now time.Time) ([]models.OutboxMessageRecord, int, error) {
	staleBefore := now.Add(-d.LockTimeout)
	var claimed []models.OutboxMessageRecord
	dead := 0
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		staleMsg := "publish outcome unknown: dispatcher lock expired"
		stale := tx.Model(&models.OutboxMessageRecord{}).
			Where("publish_status = ? AND locked_at IS NOT NULL AND locked_at <= ?", models.OutboxPublishStatusProcessing, staleBefore).
			Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusDead,
				"last_publish_error": &staleMsg,
				"locked_at":          nil,
				"locked_by":          nil,
			})
		if stale.Error != nil {
			return stale.Error
		}
		dead += int(stale.RowsAffected)

		if err := tx.
			Where("publish_status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)",
				[]string{models.OutboxPublishStatusPending, models.OutboxPublishStatusFailed}, now).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Find(&claimed).Error; err != nil {
			return err
		}

		ready := claimed[:0]
		for _, rec := range claimed {
			if d.MaxAttempts > 0 && rec.PublishAttempts >= d.MaxAttempts {
				msg := fmt.Sprintf("max publish attempts exceeded (%d)", d.MaxAttempts)
				if err := tx.Model(&models.OutboxMessageRecord{}).Where("id = ?", rec.ID).Updates(map[string]interface{}{
					"publish_status":     models.OutboxPublishStatusDead,
					"last_publish_error": &msg,
					"next_attempt_at":    nil,
				}).Error; err != nil {
					return err
				}
				dead++
				continue
			}
			rec.PublishStatus = models.OutboxPublishStatusProcessing
			rec.LockedAt = &now
			rec.LockedBy = &d.DispatcherID
			rec.PublishAttempts++
			if err := tx.Model(&models.OutboxMessageRecord{}).Where("id = ?", rec.ID).Updates(map[string]interface{}{
				"publish_status":     rec.PublishStatus,
				"locked_at":          rec.LockedAt,
				"locked_by":          rec.LockedBy,
				"publish_attempts":   gorm.Expr("publish_attempts + 1"),
				"last_publish_error": nil,
				"next_attempt_at":    nil,
			}).Error; err != nil {
				return err
			}
			ready = append(ready, rec)
		}
		claimed = ready
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return claimed, dead, nil
}

func (d *OutboxDispatcher) markPublishSent(ctx context.Context, recordID int, pubsubMsgID string, now time.Time) {
	id := pubsubMsgID
	if err := d.DB.WithContext(ctx).Model(&models.OutboxMessageRecord{}).
		Where("id = ?", recordID).
		Updates(map[string]interface{}{
			"publish_status":     models.OutboxPublishStatusSent,
			"published_at":       &now,
			"pub_sub_message_id": &id,
			"locked_at":          nil,
			"locked_by":          nil,
			"next_attempt_at":    nil,
		}).Error; err != nil {
		config.LogError(d.Logger, "OutboxDispatcher", "markPublishSent", "update outbox row", recordID, err)
	}
}

// markPublishFailed reports whether the row will be retried.
func (d *OutboxDispatcher) markPublishFailed(ctx context.Context, rec models.OutboxMessageRecord, err error) bool {
	db := d.DB.WithContext(ctx)
	msg := err.Error()
	attempt := rec.PublishAttempts

	retry := errors.Is(err, config.ErrPublisherUnavailable) && (d.MaxAttempts <= 0 || attempt < d.MaxAttempts)
	if !retry {
		if updateErr := db.Model(&models.OutboxMessageRecord{}).
			Where("id = ?", rec.ID).
			Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusDead,
				"last_publish_error": &msg,
				"next_attempt_at":    nil,
				"locked_at":          nil,
				"locked_by":          nil,
			}).Error; updateErr != nil {
			config.LogError(d.Logger, "OutboxDispatcher", "markPublishFailed", "update outbox row", rec.ID, updateErr)
		}
		if d.Logger != nil {
			d.Logger.WithFields(logrus.Fields{
				"field":          "OutboxDispatcher",
				"record_id":      rec.ID,
				"reference_id":   rec.ReferenceId,
				"correlation_id": rec.CorrelationId,
				"attempt":        attempt,
			}).Error("outbox publish moved to DEAD: " + msg)
		}
		return false
	}

	next := d.Now().Add(d.backoff(attempt))
	if updateErr := db.Model(&models.OutboxMessageRecord{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"publish_status":     models.OutboxPublishStatusFailed,
			"last_publish_error": &msg,
			"next_attempt_at":    &next,
			"locked_at":          nil,
			"locked_by":          nil,
		}).Error; updateErr != nil {
		config.LogError(d.Logger, "OutboxDispatcher", "markPublishFailed", "update outbox row", rec.ID, updateErr)
	}
	if d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"field":           "OutboxDispatcher",
			"record_id":       rec.ID,
			"attempt":         attempt,
			"next_attempt_at": next.Format(time.RFC3339Nano),
		}).Warn("outbox publisher unavailable: " + msg)
	}
	return true
}

// backoff doubles InitialBackoff per attempt, capped at MaxBackoff.
func (d *OutboxDispatcher) backoff(attempt int) time.Duration {
	backoff := d.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if d.MaxBackoff > 0 && backoff >= d.MaxBackoff {
			return d.MaxBackoff
		}
	}
	return backoff
}

package models

import (
	"context"
	"time"

	"github.com/bangunmart/fulfillment_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	SequenceNameOrder    = "ORD"
	SequenceNameDelivery = "DN"
)

// DailySequence is a per-day counter; the row lock taken in NextDailySequence
// serializes concurrent number generation for the same day.
type DailySequence struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:20;not null;uniqueIndex:idx_daily_sequence,priority:1" json:"name"`
	Day       string    `gorm:"size:8;not null;uniqueIndex:idx_daily_sequence,priority:2" json:"day"`
	LastValue int       `gorm:"not null;default:0" json:"last_value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// NextDailySequence increments and returns the counter for (name, day). tx must be a transaction;
// the increment rolls back with it, so committed numbers have no gaps.
func NextDailySequence(ctx context.Context, tx *gorm.DB, name string, day time.Time) (int, error) {
	dayKey := utils.DayKey(day)
	seed := DailySequence{Name: name, Day: dayKey}
	if err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}, {Name: "day"}}, DoNothing: true}).
		Create(&seed).Error; err != nil {
		return 0, err
	}

	var seq DailySequence
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("name = ? AND day = ?", name, dayKey).
		First(&seq).Error; err != nil {
		return 0, err
	}
	next := seq.LastValue + 1
	if err := tx.WithContext(ctx).Model(&DailySequence{}).
		Where("id = ?", seq.ID).
		Update("last_value", next).Error; err != nil {
		return 0, err
	}
	return next, nil
}

func GenerateOrderNumber(ctx context.Context, tx *gorm.DB, day time.Time) (string, error) {
	seq, err := NextDailySequence(ctx, tx, SequenceNameOrder, day)
	if err != nil {
		return "", err
	}
	return utils.FormatSequenceNumber(SequenceNameOrder, day, seq), nil
}

func GenerateDeliveryNumber(ctx context.Context, tx *gorm.DB, day time.Time) (string, error) {
	seq, err := NextDailySequence(ctx, tx, SequenceNameDelivery, day)
	if err != nil {
		return "", err
	}
	return utils.FormatSequenceNumber(SequenceNameDelivery, day, seq), nil
}

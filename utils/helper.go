package utils

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bangunmart/fulfillment_backend/config"
	"github.com/bsm/redislock"
)

// ErrLockNotObtained is returned when another runner holds the lock.
var ErrLockNotObtained = errors.New("could not obtain lock")

// RunExclusive runs fn while holding a redis lock on key.
// When redis is not configured fn runs unguarded; database row locks still serialize the writes.
func RunExclusive(ctx context.Context, key string, ttl time.Duration, moduleName string, functionName string, fn func(context.Context) error) error {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		return fn(ctx)
	}
	lock, err := locker.Obtain(ctx, "lock:"+key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		config.LogError(logger, moduleName, functionName, "Could not obtain lock", key, err)
		return ErrLockNotObtained
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining lock", key, err)
		return err
	}
	defer func() {
		_ = lock.Release(context.WithoutCancel(ctx))
	}()

	return fn(ctx)
}

// StartOfDay truncates t to midnight in UTC.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole calendar days from `from` to `to` (negative when to is earlier).
func DaysBetween(from time.Time, to time.Time) int {
	return int(StartOfDay(to).Sub(StartOfDay(from)).Hours() / 24)
}

// AppendNote adds a line to existing notes without overwriting them.
func AppendNote(existing string, note string) string {
	note = strings.TrimSpace(note)
	if note == "" {
		return existing
	}
	if strings.TrimSpace(existing) == "" {
		return note
	}
	return existing + "\n" + note
}

// DayKey formats t as YYYYMMDD in UTC.
func DayKey(t time.Time) string {
	return t.UTC().Format("20060102")
}

// FormatSequenceNumber builds numbers like ORD-20261017-0001.
func FormatSequenceNumber(prefix string, day time.Time, seq int) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, DayKey(day), seq)
}

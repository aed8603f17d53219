// Package service holds the order fulfillment engine: StockManager, PriceCalculator,
// CreditValidator and OrderProcessor. Every mutating call runs in one database
// transaction; WithTx binds a service to a caller's transaction so the calls compose.
package service

import (
	"time"

	"github.com/bangunmart/fulfillment_backend/config"
	"github.com/sirupsen/logrus"
)

// Clock returns the current time. Services default to SystemClock.
type Clock func() time.Time

func SystemClock() time.Time {
	return time.Now().UTC()
}

func (c Clock) now() time.Time {
	if c == nil {
		return SystemClock()
	}
	return c().UTC()
}

func logFailure(logger *logrus.Logger, moduleName string, funcName string, context string, data any, err error) {
	if err == nil || isBusinessError(err) {
		return
	}
	config.LogError(logger, moduleName, funcName, context, data, err)
}

func intPtr(v int) *int {
	return &v
}

package workflow

import (
	"context"
	"time"

	"github.com/bangunmart/fulfillment_backend/service"
	"github.com/bangunmart/fulfillment_backend/utils"
	"github.com/sirupsen/logrus"
)

const overdueSweepLockKey = "payment-terms:mark-overdue"

// RunOverdueSweep marks pending payment terms past their due date as overdue.
// Only one runner sweeps at a time; a concurrent run gets utils.ErrLockNotObtained.
func RunOverdueSweep(ctx context.Context, credit *service.CreditValidator, logger *logrus.Logger) (int, error) {
	count := 0
	err := utils.RunExclusive(ctx, overdueSweepLockKey, 5*time.Minute, "workflow", "RunOverdueSweep", func(ctx context.Context) error {
		var err error
		count, err = credit.MarkOverduePayments(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}
	if logger != nil {
		logger.WithFields(logrus.Fields{
			"field": "RunOverdueSweep",
			"count": count,
		}).Info("overdue sweep finished")
	}
	return count, nil
}

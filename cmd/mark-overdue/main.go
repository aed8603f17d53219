package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bangunmart/fulfillment_backend/config"
	"github.com/bangunmart/fulfillment_backend/service"
	"github.com/bangunmart/fulfillment_backend/utils"
	"github.com/bangunmart/fulfillment_backend/workflow"
)

// mark-overdue flags pending payment terms past their due date. Meant for a daily scheduler;
// concurrent runs are kept apart by a redis lock.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	if config.RedisEnabled() {
		config.ConnectRedisWithRetry(ctx)
	}
	logger := config.GetLogger()

	count, err := workflow.RunOverdueSweep(ctx, service.NewCreditValidator(db, logger), logger)
	if errors.Is(err, utils.ErrLockNotObtained) {
		fmt.Println("another sweep is running; nothing to do")
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "mark overdue failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("marked %d payment term(s) overdue\n", count)
}

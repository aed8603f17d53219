package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/bangunmart/fulfillment_backend/config"
	"github.com/bangunmart/fulfillment_backend/models"
	"github.com/bangunmart/fulfillment_backend/service"
)

// stock-reconcile folds the stock ledger of each product and reports products whose
// cached current_stock or reserved_stock disagrees with it. Exits 2 when any mismatch is found.
func main() {
	productID := flag.Int("product-id", 0, "Optional: product id (default all products)")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	stock := service.NewStockManager(db, config.GetLogger())
	ctx := context.Background()

	var ids []int
	if *productID > 0 {
		ids = append(ids, *productID)
	} else if err := db.Model(&models.Product{}).Order("id ASC").Pluck("id", &ids).Error; err != nil {
		fmt.Fprintf(os.Stderr, "list products: %v\n", err)
		os.Exit(1)
	}

	mismatches := 0
	for _, id := range ids {
		result, err := stock.ReconcileStock(ctx, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "product %d: %v\n", id, err)
			os.Exit(1)
		}
		if result.IsConsistent {
			continue
		}
		mismatches++
		fmt.Printf("product %d: current_stock=%d ledger=%d difference=%d reserved_stock=%d ledger_reserved=%d\n",
			id, result.CurrentStock, result.LedgerStock, result.Difference, result.ReservedStock, result.LedgerReserved)
	}
	fmt.Printf("checked %d product(s), %d mismatch(es)\n", len(ids), mismatches)
	if mismatches > 0 {
		os.Exit(2)
	}
}

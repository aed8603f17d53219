package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/bangunmart/fulfillment_backend/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// A hold committed by another transaction is visible through the locked product row even
// when this transaction's ledger snapshot predates it.
func TestReserveStockGatesOnLockedReservedColumn(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "SEMEN-R", 65000, 10)
	if err := f.db.Model(&models.Product{}).Where("id = ?", p.ID).Update("reserved_stock", 8).Error; err != nil {
		t.Fatalf("set reserved: %v", err)
	}

	_, err := f.stock.ReserveStock(f.ctx(), p.ID, 3, 41, nil)
	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) || stockErr.Available != 2 {
		t.Fatalf("expected 2 available against the reserved column, got %v", err)
	}
	c := f.customer(t, models.CustomerTypeRetail, 0, 0)
	_, err = f.orders.ProcessOrder(f.ctx(), &NewOrder{
		CustomerId:    c.ID,
		Items:         []NewOrderItem{{ProductId: p.ID, Quantity: 3}},
		PaymentMethod: models.PaymentMethodCash,
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected the order to be refused, got %v", err)
	}

	result, err := f.stock.ReconcileStock(f.ctx(), p.ID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.IsConsistent || result.ReservedStock != 8 || result.LedgerReserved != 0 {
		t.Fatalf("expected a reserved mismatch, got %+v", result)
	}
}

func TestReservedColumnFollowsHolds(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "BATA-M", 900, 100)

	if _, err := f.stock.ReserveStock(f.ctx(), p.ID, 30, 1, nil); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := f.stock.ReserveStock(f.ctx(), p.ID, 20, 2, nil); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if got := f.reload(t, p).ReservedStock; got != 50 {
		t.Fatalf("reserved_stock = %d, want 50", got)
	}
	if _, err := f.stock.ReleaseReservedStock(f.ctx(), p.ID, 1, nil); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := f.stock.FulfillReservedStock(f.ctx(), p.ID, 2, nil); err != nil {
		t.Fatalf("fulfil: %v", err)
	}
	fresh := f.reload(t, p)
	if fresh.ReservedStock != 0 || fresh.CurrentStock != 80 {
		t.Fatalf("current/reserved = %d/%d, want 80/0", fresh.CurrentStock, fresh.ReservedStock)
	}
	assertLedgerConsistent(t, f, p.ID)
}

// Under REPEATABLE READ only locking reads see rows committed after the snapshot, so the
// reads that gate credit and hold release must carry FOR UPDATE on MySQL.
func TestGatingReadsLockOnMySQL(t *testing.T) {
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "fulfillment:secret@tcp(127.0.0.1:3306)/fulfillment?parseTime=true",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	if err != nil {
		t.Fatalf("open dry-run db: %v", err)
	}

	tests := []struct {
		name  string
		query func(tx *gorm.DB) *gorm.DB
	}{
		{"outstanding terms", func(tx *gorm.DB) *gorm.DB {
			return outstandingTermsForUpdate(tx, 7).Find(&[]models.PaymentTerm{})
		}},
		{"active holds", func(tx *gorm.DB) *gorm.DB {
			return activeReservationsForUpdate(tx, 3, 11).Find(&[]models.StockMovement{})
		}},
	}
	for _, tt := range tests {
		sql := db.ToSQL(tt.query)
		if !strings.HasSuffix(sql, "FOR UPDATE") {
			t.Fatalf("%s: expected a locking read, got %s", tt.name, sql)
		}
	}
}

package service

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/bangunmart/fulfillment_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// unique in-memory database per test
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// one connection: transactions serialize instead of failing with "table is locked"
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := models.MigrateTable(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fixture struct {
	db      *gorm.DB
	stock   *StockManager
	pricing *PriceCalculator
	credit  *CreditValidator
	orders  *OrderProcessor
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	logger := testLogger()
	f := &fixture{
		db:      db,
		stock:   NewStockManager(db, logger),
		pricing: NewPriceCalculator(db, logger),
		credit:  NewCreditValidator(db, logger),
		now:     time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	f.orders = NewOrderProcessor(db, logger, f.stock, f.pricing, f.credit)
	f.orders.SetClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) ctx() context.Context {
	return context.Background()
}

// product creates an active product and books its opening stock through StockIn.
func (f *fixture) product(t *testing.T, sku string, basePrice int64, openingStock int) *models.Product {
	t.Helper()
	p := &models.Product{
		Sku:             sku,
		Name:            "Product " + sku,
		Unit:            "sak",
		MinimumOrderQty: 1,
		BasePrice:       decimal.NewFromInt(basePrice),
		ReorderLevel:    20,
		IsActive:        true,
	}
	if err := f.db.Create(p).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	if openingStock > 0 {
		if _, err := f.stock.StockIn(f.ctx(), NewStockMovement{
			ProductId:     p.ID,
			Quantity:      openingStock,
			ReferenceType: models.StockReferenceTypePurchase,
			Notes:         "opening stock",
		}); err != nil {
			t.Fatalf("opening stock: %v", err)
		}
		p.CurrentStock = openingStock
	}
	return p
}

func (f *fixture) customer(t *testing.T, segment models.CustomerType, creditLimit int64, termDays int) *models.Customer {
	t.Helper()
	c := &models.Customer{
		Name:            "Customer " + string(segment),
		CustomerType:    segment,
		CreditLimit:     decimal.NewFromInt(creditLimit),
		PaymentTermDays: termDays,
	}
	if err := f.db.Create(c).Error; err != nil {
		t.Fatalf("create customer: %v", err)
	}
	return c
}

func (f *fixture) priceLevel(t *testing.T, productId int, segment models.CustomerType, minQty int, price int64) *models.PriceLevel {
	t.Helper()
	pl := &models.PriceLevel{
		ProductId:    productId,
		CustomerType: segment,
		MinQuantity:  minQty,
		Price:        decimal.NewFromInt(price),
		IsActive:     true,
	}
	if err := f.db.Create(pl).Error; err != nil {
		t.Fatalf("create price level: %v", err)
	}
	return pl
}

func (f *fixture) reload(t *testing.T, p *models.Product) *models.Product {
	t.Helper()
	var fresh models.Product
	if err := f.db.First(&fresh, p.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	return &fresh
}

func assertDecimal(t *testing.T, name string, got decimal.Decimal, want int64) {
	t.Helper()
	if !got.Equal(decimal.NewFromInt(want)) {
		t.Fatalf("%s = %s, want %d", name, got.String(), want)
	}
}

func assertLedgerConsistent(t *testing.T, f *fixture, productId int) {
	t.Helper()
	result, err := f.stock.ReconcileStock(f.ctx(), productId)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !result.IsConsistent {
		t.Fatalf("ledger %d does not match current stock %d", result.LedgerStock, result.CurrentStock)
	}
}

// seed-dev loads a small demo catalog: products with opening stock, price tiers and
// one customer per segment. Products that already exist (by SKU) are left alone, so it
// is safe to rerun.
//
// Usage (from backend directory):
//
//	DB_DRIVER=... DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-dev
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/bangunmart/fulfillment_backend/config"
	"github.com/bangunmart/fulfillment_backend/models"
	"github.com/bangunmart/fulfillment_backend/service"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type seedTier struct {
	segment models.CustomerType
	minQty  int
	price   int64
}

type seedProduct struct {
	sku       string
	name      string
	unit      string
	minQty    int
	basePrice int64
	reorder   int
	opening   int
	tiers     []seedTier
}

var products = []seedProduct{
	{"SEMEN-50", "Semen Portland 50kg", "sak", 1, 65000, 100, 800, []seedTier{
		{models.CustomerTypeWholesale, 10, 62000},
		{models.CustomerTypeContractor, 50, 60000},
		{models.CustomerTypeDistributor, 200, 57500},
	}},
	{"BESI-10", "Besi Beton 10mm", "batang", 1, 95000, 50, 400, []seedTier{
		{models.CustomerTypeContractor, 20, 90000},
		{models.CustomerTypeDistributor, 100, 86000},
	}},
	{"BATA-RINGAN", "Bata Ringan 60x20x10", "pcs", 100, 9500, 2000, 12000, []seedTier{
		{models.CustomerTypeWholesale, 500, 9000},
	}},
	{"PASIR-M3", "Pasir Beton", "m3", 1, 300000, 10, 60, nil},
}

var customers = []models.Customer{
	{Name: "Toko Bangunan Sejahtera", CustomerType: models.CustomerTypeRetail},
	{Name: "UD Makmur Jaya", CustomerType: models.CustomerTypeWholesale, CreditLimit: decimal.NewFromInt(25_000_000), PaymentTermDays: 14},
	{Name: "PT Karya Konstruksi", CustomerType: models.CustomerTypeContractor, CreditLimit: decimal.NewFromInt(150_000_000), PaymentTermDays: 30},
	{Name: "CV Distribusi Nusantara", CustomerType: models.CustomerTypeDistributor, CreditLimit: decimal.NewFromInt(500_000_000), PaymentTermDays: 45},
}

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	if err := models.MigrateTable(db); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
	stock := service.NewStockManager(db, config.GetLogger())

	for _, p := range products {
		created, err := seedCatalogProduct(ctx, db, stock, p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to seed product %s: %v\n", p.sku, err)
			os.Exit(1)
		}
		if created {
			fmt.Printf("Created product %s with %d %s in stock\n", p.sku, p.opening, p.unit)
		} else {
			fmt.Printf("Product %s already exists; skipped\n", p.sku)
		}
	}

	for _, c := range customers {
		var existing models.Customer
		err := db.WithContext(ctx).Where("name = ?", c.Name).First(&existing).Error
		if err == nil {
			fmt.Printf("Customer %q already exists; skipped\n", c.Name)
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			fmt.Fprintf(os.Stderr, "failed to lookup customer: %v\n", err)
			os.Exit(1)
		}
		customer := c
		if err := db.WithContext(ctx).Create(&customer).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create customer %q: %v\n", c.Name, err)
			os.Exit(1)
		}
		fmt.Printf("Created customer %q (%s, limit %s)\n", c.Name, c.CustomerType, c.CreditLimit.StringFixed(0))
	}
}

func seedCatalogProduct(ctx context.Context, db *gorm.DB, stock *service.StockManager, p seedProduct) (bool, error) {
	var existing models.Product
	err := db.WithContext(ctx).Where("sku = ?", p.sku).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	product := models.Product{
		Sku:             p.sku,
		Name:            p.name,
		Unit:            p.unit,
		MinimumOrderQty: p.minQty,
		BasePrice:       decimal.NewFromInt(p.basePrice),
		ReorderLevel:    p.reorder,
		IsActive:        true,
	}
	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		return false, err
	}
	for _, tier := range p.tiers {
		level := models.PriceLevel{
			ProductId:    product.ID,
			CustomerType: tier.segment,
			MinQuantity:  tier.minQty,
			Price:        decimal.NewFromInt(tier.price),
			IsActive:     true,
		}
		if err := db.WithContext(ctx).Create(&level).Error; err != nil {
			return false, err
		}
	}
	if p.opening > 0 {
		// opening stock goes through the ledger like any other receipt
		if _, err := stock.StockIn(ctx, service.NewStockMovement{
			ProductId:     product.ID,
			Quantity:      p.opening,
			ReferenceType: models.StockReferenceTypePurchase,
			Notes:         "opening stock",
		}); err != nil {
			return false, err
		}
	}
	return true, nil
}

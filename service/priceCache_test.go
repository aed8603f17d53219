package service

import (
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/bangunmart/fulfillment_backend/config"
	"github.com/bangunmart/fulfillment_backend/models"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// useTestRedis installs an in-memory redis for the test and disables it afterwards.
func useTestRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	config.SetRedisClient(client)
	t.Cleanup(func() {
		config.SetRedisClient(nil)
		_ = client.Close()
	})
	return mr
}

func resolveLevel(t *testing.T, f *fixture, productId int, segment models.CustomerType, quantity int) *models.PriceLevel {
	t.Helper()
	level, err := f.pricing.GetApplicablePriceLevel(f.ctx(), productId, segment, quantity)
	if err != nil {
		t.Fatalf("price level: %v", err)
	}
	return level
}

func assertLevelPrice(t *testing.T, level *models.PriceLevel, want int64) {
	t.Helper()
	if level == nil {
		t.Fatalf("expected a price level at %d, got none", want)
	}
	assertDecimal(t, "tier price", level.Price, want)
}

func TestCachedTierServedUntilInvalidated(t *testing.T) {
	mr := useTestRedis(t)
	f := newFixture(t)
	p := f.product(t, "SEMEN-50", 70000, 0)
	pl := f.priceLevel(t, p.ID, models.CustomerTypeWholesale, 10, 65000)

	assertLevelPrice(t, resolveLevel(t, f, p.ID, models.CustomerTypeWholesale, 20), 65000)
	key := models.PriceLevelCacheKey(p.ID, models.CustomerTypeWholesale, 20)
	if !mr.Exists(key) {
		t.Fatalf("expected %s to be cached", key)
	}
	members, err := mr.Members(models.PriceLevelCacheGroupKey(p.ID))
	if err != nil || len(members) != 1 || members[0] != key {
		t.Fatalf("group members = %v (%v), want [%s]", members, err, key)
	}

	// a write that skips hooks leaves the cached tier in place
	if err := f.db.Exec("UPDATE price_levels SET price = ? WHERE id = ?", 60000, pl.ID).Error; err != nil {
		t.Fatalf("raw update: %v", err)
	}
	assertLevelPrice(t, resolveLevel(t, f, p.ID, models.CustomerTypeWholesale, 20), 65000)

	if err := f.pricing.InvalidatePriceCache(f.ctx(), p.ID); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists(key) || mr.Exists(models.PriceLevelCacheGroupKey(p.ID)) {
		t.Fatalf("expected tier and group keys to be gone")
	}
	assertLevelPrice(t, resolveLevel(t, f, p.ID, models.CustomerTypeWholesale, 20), 60000)
}

func TestBasePriceAnswerIsCached(t *testing.T) {
	mr := useTestRedis(t)
	f := newFixture(t)
	p := f.product(t, "PASIR-M3", 300000, 0)

	if level := resolveLevel(t, f, p.ID, models.CustomerTypeRetail, 5); level != nil {
		t.Fatalf("expected no tier, got %+v", level)
	}
	if !mr.Exists(models.PriceLevelCacheKey(p.ID, models.CustomerTypeRetail, 5)) {
		t.Fatalf("expected the base price answer to be cached")
	}

	hidden := &models.PriceLevel{ProductId: p.ID, CustomerType: models.CustomerTypeRetail, MinQuantity: 1, Price: decimal.NewFromInt(280000), IsActive: true}
	if err := f.db.Session(&gorm.Session{SkipHooks: true}).Create(hidden).Error; err != nil {
		t.Fatalf("create without hooks: %v", err)
	}
	if level := resolveLevel(t, f, p.ID, models.CustomerTypeRetail, 5); level != nil {
		t.Fatalf("expected cached base price answer, got tier %d", level.ID)
	}

	if _, err := f.pricing.CreatePriceLevel(f.ctx(), p.ID, PriceLevelInput{
		CustomerType: models.CustomerTypeRetail,
		MinQuantity:  3,
		Price:        decimal.NewFromInt(290000),
	}); err != nil {
		t.Fatalf("create price level: %v", err)
	}
	assertLevelPrice(t, resolveLevel(t, f, p.ID, models.CustomerTypeRetail, 5), 290000)
}

func TestEditingOrDeletingLevelDropsCachedTier(t *testing.T) {
	mr := useTestRedis(t)
	f := newFixture(t)
	p := f.product(t, "BATA-MERAH", 1200, 0)
	pl := f.priceLevel(t, p.ID, models.CustomerTypeContractor, 100, 1000)

	assertLevelPrice(t, resolveLevel(t, f, p.ID, models.CustomerTypeContractor, 500), 1000)

	updated, err := f.pricing.UpdatePriceLevel(f.ctx(), pl.ID, PriceLevelInput{
		CustomerType: models.CustomerTypeContractor,
		MinQuantity:  100,
		Price:        decimal.NewFromInt(950),
	})
	if err != nil {
		t.Fatalf("update price level: %v", err)
	}
	if !updated.IsActive {
		t.Fatalf("update without is_active should keep the level active")
	}
	assertLevelPrice(t, resolveLevel(t, f, p.ID, models.CustomerTypeContractor, 500), 950)

	if err := f.pricing.DeletePriceLevel(f.ctx(), pl.ID); err != nil {
		t.Fatalf("delete price level: %v", err)
	}
	if mr.Exists(models.PriceLevelCacheKey(p.ID, models.CustomerTypeContractor, 500)) {
		t.Fatalf("expected cached tier to be dropped on delete")
	}
	if level := resolveLevel(t, f, p.ID, models.CustomerTypeContractor, 500); level != nil {
		t.Fatalf("expected base price after delete, got tier %d", level.ID)
	}

	if _, err := f.pricing.UpdatePriceLevel(f.ctx(), pl.ID, PriceLevelInput{
		CustomerType: models.CustomerType("vip"),
		MinQuantity:  1,
	}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for unknown customer type, got %v", err)
	}
}

func TestBulkLevelWriteClearsEveryProductCache(t *testing.T) {
	mr := useTestRedis(t)
	f := newFixture(t)
	semen := f.product(t, "SEMEN-40", 60000, 0)
	cat := f.product(t, "CAT-5KG", 150000, 0)
	f.priceLevel(t, semen.ID, models.CustomerTypeWholesale, 10, 55000)
	f.priceLevel(t, cat.ID, models.CustomerTypeWholesale, 10, 140000)

	assertLevelPrice(t, resolveLevel(t, f, semen.ID, models.CustomerTypeWholesale, 10), 55000)
	assertLevelPrice(t, resolveLevel(t, f, cat.ID, models.CustomerTypeWholesale, 10), 140000)

	// the hook sees no product id on a bulk update
	if err := f.db.Model(&models.PriceLevel{}).
		Where("customer_type = ?", models.CustomerTypeWholesale).
		Update("min_quantity", 20).Error; err != nil {
		t.Fatalf("bulk update: %v", err)
	}
	if mr.Exists(models.PriceLevelCacheGroupsKey) {
		t.Fatalf("expected the group registry to be cleared")
	}
	if level := resolveLevel(t, f, semen.ID, models.CustomerTypeWholesale, 10); level != nil {
		t.Fatalf("expected base price for semen below the new threshold, got tier %d", level.ID)
	}
	if level := resolveLevel(t, f, cat.ID, models.CustomerTypeWholesale, 10); level != nil {
		t.Fatalf("expected base price for cat below the new threshold, got tier %d", level.ID)
	}

	assertLevelPrice(t, resolveLevel(t, f, cat.ID, models.CustomerTypeWholesale, 20), 140000)
	affected, err := f.pricing.SetPriceLevelsActive(f.ctx(), cat.ID, false)
	if err != nil {
		t.Fatalf("deactivate levels: %v", err)
	}
	if affected != 1 {
		t.Fatalf("affected = %d, want 1", affected)
	}
	if level := resolveLevel(t, f, cat.ID, models.CustomerTypeWholesale, 20); level != nil {
		t.Fatalf("expected deactivated tier to stop applying, got %d", level.ID)
	}
}

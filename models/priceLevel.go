package models

import (
	"context"
	"fmt"
	"time"

	"github.com/bangunmart/fulfillment_backend/config"
	"github.com/bangunmart/fulfillment_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PriceLevel struct {
	ID           int             `gorm:"primary_key" json:"id"`
	ProductId    int             `gorm:"index;not null" json:"product_id"`
	CustomerType CustomerType    `gorm:"size:20;not null" json:"customer_type"`
	MinQuantity  int             `gorm:"not null;default:1" json:"min_quantity"`
	Price        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	IsActive     bool            `gorm:"index;not null" json:"is_active"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func PriceLevelCacheGroupKey(productId int) string {
	return fmt.Sprintf("PriceLevels:Product:%d", productId)
}

// PriceLevelCacheGroupsKey holds every product group key, so a write that
// cannot name its product can still clear the whole tier cache.
const PriceLevelCacheGroupsKey = "PriceLevels:Groups"

func PriceLevelCacheKey(productId int, customerType CustomerType, quantity int) string {
	return fmt.Sprintf("PriceLevel:%d:%s:%d", productId, customerType, quantity)
}

// InvalidatePriceLevelCache drops every cached tier resolution for the product.
func InvalidatePriceLevelCache(ctx context.Context, productId int) error {
	return utils.ClearCacheGroup(ctx, PriceLevelCacheGroupKey(productId))
}

// InvalidateAllPriceLevelCaches drops the cached tiers of every product.
func InvalidateAllPriceLevelCaches(ctx context.Context) error {
	groups, err := config.GetRedisSetMembers(ctx, PriceLevelCacheGroupsKey)
	if err != nil {
		return err
	}
	for _, group := range groups {
		if err := utils.ClearCacheGroup(ctx, group); err != nil {
			return err
		}
	}
	return config.RemoveRedisKey(ctx, PriceLevelCacheGroupsKey)
}

func (pl *PriceLevel) AfterSave(tx *gorm.DB) error {
	return pl.invalidateCache(tx)
}

func (pl *PriceLevel) AfterDelete(tx *gorm.DB) error {
	return pl.invalidateCache(tx)
}

// invalidateCache runs inside the write's transaction. Writers that go through
// PriceCalculator clear the product again after commit.
func (pl *PriceLevel) invalidateCache(tx *gorm.DB) error {
	if pl == nil {
		return nil
	}
	ctx := context.Background()
	if tx != nil && tx.Statement != nil && tx.Statement.Context != nil {
		ctx = tx.Statement.Context
	}
	// bulk updates and deletes by id carry no product
	if pl.ProductId == 0 {
		if err := InvalidateAllPriceLevelCaches(ctx); err != nil {
			config.LogError(config.GetLogger(), "PriceLevel", "invalidateCache", "clear all price caches", 0, err)
		}
		return nil
	}
	if err := InvalidatePriceLevelCache(ctx, pl.ProductId); err != nil {
		config.LogError(config.GetLogger(), "PriceLevel", "invalidateCache", "clear price cache", pl.ProductId, err)
	}
	return nil
}

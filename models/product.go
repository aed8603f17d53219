package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID              int             `gorm:"primary_key" json:"id"`
	Sku             string          `gorm:"size:64;uniqueIndex;not null" json:"sku"`
	Name            string          `gorm:"size:200;not null" json:"name"`
	Unit            string          `gorm:"size:20;not null" json:"unit"`
	MinimumOrderQty int             `gorm:"not null;default:1" json:"minimum_order_qty"`
	BasePrice       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"base_price"`
	CurrentStock    int             `gorm:"not null;default:0" json:"current_stock"`
	ReservedStock   int             `gorm:"not null;default:0" json:"reserved_stock"`
	ReorderLevel    int             `gorm:"not null;default:0" json:"reorder_level"`
	IsActive        bool            `gorm:"index;not null" json:"is_active"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// EffectiveMinimumOrderQty treats unset minimums as 1.
func (p Product) EffectiveMinimumOrderQty() int {
	if p.MinimumOrderQty < 1 {
		return 1
	}
	return p.MinimumOrderQty
}

// AvailableStock is on-hand stock not held by active reservations.
// Read it from a locked row when the result gates a write.
func (p Product) AvailableStock() int {
	return p.CurrentStock - p.ReservedStock
}

func (p Product) NeedsReordering() bool {
	return p.CurrentStock <= p.ReorderLevel
}

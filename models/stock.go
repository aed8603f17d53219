package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// StockMovement is an append-only inventory ledger row.
//
// Rows with IsReserved=false change on-hand stock; folding their Quantity in id order
// reproduces Product.CurrentStock. Reservation bookkeeping (a `reserved` hold and the
// `reservation_released` / `reservation_fulfilled` event that closes it) carries
// IsReserved=true and never touches on-hand stock. A hold is active while no closing
// event points at it through ReservationId.
type StockMovement struct {
	ID                  int                 `gorm:"primary_key" json:"id"`
	ProductId           int                 `gorm:"index;not null" json:"product_id"`
	Type                StockMovementType   `gorm:"size:30;index;not null" json:"type"`
	Quantity            int                 `gorm:"not null" json:"quantity"`
	ReferenceType       StockReferenceType  `gorm:"size:20;index" json:"reference_type"`
	ReferenceId         *int                `gorm:"index" json:"reference_id"`
	PreviousStock       int                 `gorm:"not null" json:"previous_stock"`
	NewStock            int                 `gorm:"not null" json:"new_stock"`
	IsReserved          bool                `gorm:"index;not null" json:"is_reserved"`
	AdjustmentDirection AdjustmentDirection `gorm:"size:10" json:"adjustment_direction,omitempty"`
	ReservationId       *int                `gorm:"index" json:"reservation_id"`
	Notes               string              `gorm:"type:text" json:"notes"`
	CreatedBy           *int                `json:"created_by"`
	CreatedAt           time.Time           `gorm:"index;not null" json:"created_at"`
}

var (
	ErrStockMovementImmutable = errors.New("stock movements are append-only")
	ErrStockMovementInvalid   = errors.New("stock movement is inconsistent")
)

func (m *StockMovement) BeforeUpdate(tx *gorm.DB) error {
	_ = tx
	return ErrStockMovementImmutable
}

func (m *StockMovement) BeforeDelete(tx *gorm.DB) error {
	_ = tx
	return ErrStockMovementImmutable
}

// BeforeCreate checks the snapshot and reservation flags agree with the movement type.
func (m *StockMovement) BeforeCreate(tx *gorm.DB) error {
	_ = tx
	if m == nil {
		return nil
	}
	switch m.Type {
	case StockMovementTypeReserved, StockMovementTypeReservationReleased, StockMovementTypeReservationFulfilled:
		m.IsReserved = true
		if m.NewStock != m.PreviousStock {
			return ErrStockMovementInvalid
		}
		if m.Type != StockMovementTypeReserved && m.ReservationId == nil {
			return ErrStockMovementInvalid
		}
	default:
		m.IsReserved = false
		if m.PreviousStock+m.Quantity != m.NewStock {
			return ErrStockMovementInvalid
		}
	}
	return nil
}

// ClosesReservation reports whether the row ends a hold.
func (m StockMovement) ClosesReservation() bool {
	return m.Type == StockMovementTypeReservationReleased || m.Type == StockMovementTypeReservationFulfilled
}

package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Order struct {
	ID              int                `gorm:"primary_key" json:"id"`
	OrderNumber     string             `gorm:"size:32;uniqueIndex;not null" json:"order_number"`
	CustomerId      int                `gorm:"index;not null" json:"customer_id"`
	CustomerType    CustomerType       `gorm:"size:20;not null" json:"customer_type"`
	Status          OrderStatus        `gorm:"size:30;index;not null" json:"status"`
	PaymentStatus   OrderPaymentStatus `gorm:"size:20;not null" json:"payment_status"`
	PaymentMethod   PaymentMethod      `gorm:"size:20;not null" json:"payment_method"`
	PaymentTermDays int                `gorm:"not null;default:0" json:"payment_term_days"`
	ProjectName     string             `gorm:"size:200" json:"project_name"`
	Notes           string             `gorm:"type:text" json:"notes"`
	Subtotal        decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	DiscountPercent decimal.Decimal    `gorm:"type:decimal(7,4);default:0" json:"discount_percent"`
	DiscountAmount  decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"discount_amount"`
	TaxAmount       decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"tax_amount"`
	TotalAmount     decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	OrderDate       time.Time          `gorm:"index;not null" json:"order_date"`
	CreatedBy       *int               `json:"created_by"`
	ApprovedBy      *int               `json:"approved_by"`
	ApprovedAt      *time.Time         `json:"approved_at"`
	ProcessedAt     *time.Time         `json:"processed_at"`
	CancelledAt     *time.Time         `json:"cancelled_at"`
	Items           []OrderItem        `gorm:"foreignKey:OrderId" json:"items"`
	PaymentTerm     *PaymentTerm       `gorm:"foreignKey:OrderId" json:"payment_term,omitempty"`
	CreatedAt       time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

// OrderItem prices are frozen when the order is placed.
type OrderItem struct {
	ID           int             `gorm:"primary_key" json:"id"`
	OrderId      int             `gorm:"index;not null" json:"order_id"`
	ProductId    int             `gorm:"index;not null" json:"product_id"`
	Quantity     int             `gorm:"not null" json:"quantity"`
	BasePrice    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"base_price"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	TotalPrice   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_price"`
	PriceLevelId *int            `json:"price_level_id"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

var ErrOrderItemImmutable = errors.New("order items cannot be changed after creation")

func (item *OrderItem) BeforeUpdate(tx *gorm.DB) error {
	_ = tx
	return ErrOrderItemImmutable
}

var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusDraft:            {OrderStatusPending, OrderStatusPendingApproval, OrderStatusCancelled},
	OrderStatusPending:          {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusPendingApproval:  {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:        {OrderStatusProcessing, OrderStatusReadyForDelivery, OrderStatusCancelled},
	OrderStatusProcessing:       {OrderStatusReadyForDelivery, OrderStatusCancelled},
	OrderStatusReadyForDelivery: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:          {OrderStatusDelivered},
	OrderStatusDelivered:        {OrderStatusCompleted},
}

func (o Order) CanTransitionTo(to OrderStatus) bool {
	for _, s := range orderStatusTransitions[o.Status] {
		if s == to {
			return true
		}
	}
	return false
}

// IsProcessed reports whether goods have left (or are leaving) the warehouse for good.
func (o Order) IsProcessed() bool {
	return o.Status == OrderStatusShipped || o.Status == OrderStatusDelivered || o.Status == OrderStatusCompleted
}

// StockWasFulfilled reports whether the order's reservations were already turned into stock-outs.
func (o Order) StockWasFulfilled() bool {
	return o.Status == OrderStatusProcessing || o.Status == OrderStatusReadyForDelivery
}

func (o Order) IsTempo() bool {
	return o.PaymentMethod == PaymentMethodTempo
}

// TransitionTo is the only place Order.Status changes.
func (o *Order) TransitionTo(to OrderStatus) error {
	if !o.CanTransitionTo(to) {
		return fmt.Errorf("order %d cannot move from %s to %s", o.ID, o.Status, to)
	}
	o.Status = to
	return nil
}

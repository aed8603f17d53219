package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer.CreditLimit is the nominal limit used to seed CustomerCredit.
// Once a credit row exists it is only written together with that row.
type Customer struct {
	ID              int             `gorm:"primary_key" json:"id"`
	Name            string          `gorm:"size:200;not null" json:"name"`
	CustomerType    CustomerType    `gorm:"size:20;not null;default:retail" json:"customer_type"`
	CreditLimit     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"credit_limit"`
	PaymentTermDays int             `gorm:"not null;default:0" json:"payment_term_days"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// Segment falls back to retail for unset or unknown customer types.
func (c Customer) Segment() CustomerType {
	if c.CustomerType.IsValid() {
		return c.CustomerType
	}
	return CustomerTypeRetail
}

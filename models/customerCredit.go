package models

import (
	"errors"
	"time"

	"github.com/bangunmart/fulfillment_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CustomerCredit is the authoritative credit facility of a customer.
// CurrentDebt and AvailableCredit are caches of the PaymentTerm ledger.
type CustomerCredit struct {
	ID               int             `gorm:"primary_key" json:"id"`
	CustomerId       int             `gorm:"uniqueIndex;not null" json:"customer_id"`
	CreditLimit      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"credit_limit"`
	CurrentDebt      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"current_debt"`
	AvailableCredit  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"available_credit"`
	IsActive         bool            `gorm:"not null" json:"is_active"`
	Notes            string          `gorm:"type:text" json:"notes"`
	LastCalculatedAt *time.Time      `json:"last_calculated_at"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

var ErrNegativeCreditLimit = errors.New("credit limit must not be negative")

// ApplyDebt replaces the cached debt and recomputes available credit.
func (cc *CustomerCredit) ApplyDebt(debt decimal.Decimal, at time.Time) {
	cc.CurrentDebt = debt
	cc.LastCalculatedAt = &at
	cc.recalculate()
}

func (cc *CustomerCredit) recalculate() {
	cc.AvailableCredit = utils.MaxZero(cc.CreditLimit.Sub(cc.CurrentDebt))
}

// BeforeSave keeps available_credit == max(0, credit_limit - current_debt) on every write.
func (cc *CustomerCredit) BeforeSave(tx *gorm.DB) error {
	_ = tx
	if cc == nil {
		return nil
	}
	if cc.CreditLimit.IsNegative() {
		return ErrNegativeCreditLimit
	}
	cc.recalculate()
	return nil
}

package models

import (
	"errors"
	"time"

	"github.com/bangunmart/fulfillment_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentTerm is the receivable of one tempo order.
type PaymentTerm struct {
	ID               int               `gorm:"primary_key" json:"id"`
	OrderId          int               `gorm:"uniqueIndex;not null" json:"order_id"`
	CustomerId       int               `gorm:"index;not null" json:"customer_id"`
	Amount           decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"amount"`
	PaidAmount       decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"paid_amount"`
	DueDate          time.Time         `gorm:"index;not null" json:"due_date"`
	Status           PaymentTermStatus `gorm:"size:20;index;not null" json:"status"`
	PaymentDate      *time.Time        `json:"payment_date"`
	PaymentMethod    string            `gorm:"size:50" json:"payment_method"`
	PaymentReference string            `gorm:"size:100" json:"payment_reference"`
	CreatedAt        time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

var (
	ErrPaymentTermNegative   = errors.New("payment term amounts must not be negative")
	ErrPaymentTermOverpaid   = errors.New("payment term paid amount exceeds amount")
	ErrPaymentTermCancelled  = errors.New("payment term is cancelled")
	ErrPaymentTermNotPending = errors.New("payment term is not pending")
)

func (pt PaymentTerm) Remaining() decimal.Decimal {
	return pt.Amount.Sub(pt.PaidAmount)
}

func (pt PaymentTerm) IsOutstanding() bool {
	for _, s := range OutstandingPaymentTermStatuses {
		if pt.Status == s {
			return true
		}
	}
	return false
}

// DaysPastDue is zero or negative until the due date has passed.
func (pt PaymentTerm) DaysPastDue(now time.Time) int {
	return utils.DaysBetween(pt.DueDate, now)
}

// ApplyPayment adds amount to PaidAmount and derives the new status.
// Callers check the remaining balance first; BeforeSave still refuses overpayment.
func (pt *PaymentTerm) ApplyPayment(amount decimal.Decimal, paidAt time.Time, method string, reference string) error {
	if pt.Status == PaymentTermStatusCancelled {
		return ErrPaymentTermCancelled
	}
	pt.PaidAmount = pt.PaidAmount.Add(amount)
	if pt.PaidAmount.GreaterThan(pt.Amount) {
		return ErrPaymentTermOverpaid
	}
	pt.PaymentDate = &paidAt
	if method != "" {
		pt.PaymentMethod = method
	}
	if reference != "" {
		pt.PaymentReference = reference
	}
	pt.Status = pt.derivedStatus(paidAt)
	return nil
}

func (pt *PaymentTerm) derivedStatus(now time.Time) PaymentTermStatus {
	if !pt.Remaining().IsPositive() {
		return PaymentTermStatusPaid
	}
	if pt.PaidAmount.IsPositive() {
		return PaymentTermStatusPartial
	}
	if pt.DaysPastDue(now) > 0 {
		return PaymentTermStatusOverdue
	}
	return PaymentTermStatusPending
}

// MarkOverdue moves a pending term past its due date to overdue.
func (pt *PaymentTerm) MarkOverdue(now time.Time) error {
	if pt.Status != PaymentTermStatusPending {
		return ErrPaymentTermNotPending
	}
	if pt.DaysPastDue(now) <= 0 {
		return nil
	}
	pt.Status = PaymentTermStatusOverdue
	return nil
}

func (pt *PaymentTerm) Cancel() {
	pt.Status = PaymentTermStatusCancelled
}

// BeforeSave refuses negative amounts and paid_amount above amount.
func (pt *PaymentTerm) BeforeSave(tx *gorm.DB) error {
	_ = tx
	if pt == nil {
		return nil
	}
	if pt.Amount.IsNegative() || pt.PaidAmount.IsNegative() {
		return ErrPaymentTermNegative
	}
	if pt.PaidAmount.GreaterThan(pt.Amount) {
		return ErrPaymentTermOverpaid
	}
	return nil
}

package utils

import (
	"github.com/shopspring/decimal"
)

var decimalOneHundred = decimal.NewFromInt(100)

// RoundAmount rounds to whole currency units.
func RoundAmount(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(0)
}

// CalculateTaxAmount applies an exclusive tax rate (in percent) to amount.
func CalculateTaxAmount(amount decimal.Decimal, taxRate decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() || !taxRate.IsPositive() {
		return decimal.Zero
	}
	return RoundAmount(amount.Mul(taxRate).Div(decimalOneHundred))
}

// CalculateDiscountAmount supports percentage ("P") and absolute ("A") discounts.
func CalculateDiscountAmount(subTotal decimal.Decimal, discount decimal.Decimal, discountType string) decimal.Decimal {
	if !discount.IsPositive() {
		return decimal.Zero
	}
	if discountType == "P" {
		return RoundAmount(subTotal.Mul(discount).Div(decimalOneHundred))
	}
	if discount.GreaterThan(subTotal) {
		return subTotal
	}
	return discount
}

// CalculatePercentage returns part/whole*100 rounded to places; zero when whole is not positive.
func CalculatePercentage(part decimal.Decimal, whole decimal.Decimal, places int32) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Mul(decimalOneHundred).DivRound(whole, places)
}

// MaxZero clamps negative amounts to zero.
func MaxZero(amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

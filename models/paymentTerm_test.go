package models

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestPaymentTermApplyPayment(t *testing.T) {
	due := time.Date(2026, 4, 9, 0, 0, 0, 0, time.UTC)
	paidAt := time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC)
	term := PaymentTerm{Amount: decimal.NewFromInt(1_000_000), PaidAmount: decimal.Zero, DueDate: due, Status: PaymentTermStatusPending}

	if err := term.ApplyPayment(decimal.NewFromInt(250_000), paidAt, "transfer", "BCA-1"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if term.Status != PaymentTermStatusPartial || !term.Remaining().Equal(decimal.NewFromInt(750_000)) {
		t.Fatalf("unexpected term %+v", term)
	}
	if term.PaymentReference != "BCA-1" || term.PaymentDate == nil {
		t.Fatalf("payment details not recorded: %+v", term)
	}

	if err := term.ApplyPayment(decimal.NewFromInt(750_000), paidAt, "", ""); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if term.Status != PaymentTermStatusPaid || term.PaymentMethod != "transfer" {
		t.Fatalf("unexpected term %+v", term)
	}

	if err := term.ApplyPayment(decimal.NewFromInt(1), paidAt, "", ""); !errors.Is(err, ErrPaymentTermOverpaid) {
		t.Fatalf("expected overpaid error, got %v", err)
	}

	cancelled := PaymentTerm{Amount: decimal.NewFromInt(10), Status: PaymentTermStatusCancelled}
	if err := cancelled.ApplyPayment(decimal.NewFromInt(1), paidAt, "", ""); !errors.Is(err, ErrPaymentTermCancelled) {
		t.Fatalf("expected cancelled error, got %v", err)
	}
}

func TestPaymentTermMarkOverdue(t *testing.T) {
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	term := PaymentTerm{Amount: decimal.NewFromInt(100), DueDate: due, Status: PaymentTermStatusPending}

	// same calendar day is not overdue yet
	if err := term.MarkOverdue(due.Add(23 * time.Hour)); err != nil || term.Status != PaymentTermStatusPending {
		t.Fatalf("status = %s err = %v", term.Status, err)
	}
	if err := term.MarkOverdue(due.AddDate(0, 0, 1)); err != nil || term.Status != PaymentTermStatusOverdue {
		t.Fatalf("status = %s err = %v", term.Status, err)
	}
	if err := term.MarkOverdue(due.AddDate(0, 0, 2)); !errors.Is(err, ErrPaymentTermNotPending) {
		t.Fatalf("expected not pending error, got %v", err)
	}
	if got := term.DaysPastDue(due.AddDate(0, 0, 45)); got != 45 {
		t.Fatalf("days past due = %d, want 45", got)
	}
}

func TestPaymentTermBeforeSave(t *testing.T) {
	over := &PaymentTerm{Amount: decimal.NewFromInt(10), PaidAmount: decimal.NewFromInt(11)}
	if err := over.BeforeSave(nil); !errors.Is(err, ErrPaymentTermOverpaid) {
		t.Fatalf("expected overpaid error, got %v", err)
	}
	negative := &PaymentTerm{Amount: decimal.NewFromInt(-1)}
	if err := negative.BeforeSave(nil); !errors.Is(err, ErrPaymentTermNegative) {
		t.Fatalf("expected negative error, got %v", err)
	}
}

func TestCustomerCreditKeepsAvailableInSync(t *testing.T) {
	at := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	cc := &CustomerCredit{CreditLimit: decimal.NewFromInt(1_000_000)}
	cc.ApplyDebt(decimal.NewFromInt(300_000), at)
	if !cc.AvailableCredit.Equal(decimal.NewFromInt(700_000)) {
		t.Fatalf("available = %s", cc.AvailableCredit)
	}
	cc.ApplyDebt(decimal.NewFromInt(1_300_000), at)
	if !cc.AvailableCredit.IsZero() {
		t.Fatalf("available = %s, want 0", cc.AvailableCredit)
	}

	cc.CreditLimit = decimal.NewFromInt(5_000_000)
	if err := cc.BeforeSave(nil); err != nil {
		t.Fatalf("before save: %v", err)
	}
	if !cc.AvailableCredit.Equal(decimal.NewFromInt(3_700_000)) {
		t.Fatalf("available after limit change = %s", cc.AvailableCredit)
	}

	cc.CreditLimit = decimal.NewFromInt(-1)
	if err := cc.BeforeSave(nil); !errors.Is(err, ErrNegativeCreditLimit) {
		t.Fatalf("expected negative limit error, got %v", err)
	}
}

package service

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bangunmart/fulfillment_backend/models"
	"github.com/shopspring/decimal"
)

// receivable books a tempo order with its payment term directly, bypassing OrderProcessor.
func (f *fixture) receivable(t *testing.T, customer *models.Customer, amount int64, dueDate time.Time, status models.PaymentTermStatus) *models.PaymentTerm {
	t.Helper()
	var count int64
	f.db.Model(&models.Order{}).Count(&count)
	order := &models.Order{
		OrderNumber:   fmt.Sprintf("TEST-%04d", count+1),
		CustomerId:    customer.ID,
		CustomerType:  customer.Segment(),
		Status:        models.OrderStatusConfirmed,
		PaymentStatus: models.OrderPaymentStatusUnpaid,
		PaymentMethod: models.PaymentMethodTempo,
		TotalAmount:   decimal.NewFromInt(amount),
		OrderDate:     f.now,
	}
	if err := f.db.Create(order).Error; err != nil {
		t.Fatalf("create order: %v", err)
	}
	term := &models.PaymentTerm{
		OrderId:    order.ID,
		CustomerId: customer.ID,
		Amount:     decimal.NewFromInt(amount),
		PaidAmount: decimal.Zero,
		DueDate:    dueDate,
		Status:     status,
	}
	if err := f.db.Create(term).Error; err != nil {
		t.Fatalf("create payment term: %v", err)
	}
	return term
}

func (f *fixture) daysFromNow(days int) time.Time {
	return f.now.AddDate(0, 0, days)
}

func TestValidateCreditLimitReportsShortfall(t *testing.T) {
	f := newFixture(t)
	c := f.customer(t, models.CustomerTypeContractor, 1_000_000, 30)

	decision, err := f.credit.ValidateCreditLimit(f.ctx(), c.ID, decimal.NewFromInt(1_200_000))
	if err != nil {
		t.Fatalf("validate credit: %v", err)
	}
	if decision.Approved || decision.Reason != CreditReasonInsufficientLimit {
		t.Fatalf("expected InsufficientLimit, got %+v", decision)
	}
	assertDecimal(t, "shortfall", decision.Shortfall, 200_000)
	assertDecimal(t, "available", decision.AvailableCredit, 1_000_000)

	info, err := f.credit.GetCustomerCreditInfo(f.ctx(), c.ID)
	if err != nil {
		t.Fatalf("credit info: %v", err)
	}
	assertDecimal(t, "credit limit after rejection", info.CreditLimit, 1_000_000)
	assertDecimal(t, "debt after rejection", info.CurrentDebt, 0)

	decision, err = f.credit.ValidateCreditLimit(f.ctx(), c.ID, decimal.NewFromInt(1_000_000))
	if err != nil {
		t.Fatalf("validate credit: %v", err)
	}
	if !decision.Approved {
		t.Fatalf("amount equal to available credit should pass, got %+v", decision)
	}
	assertDecimal(t, "remaining", decision.RemainingCredit, 0)

	if _, err := f.credit.ValidateCreditLimit(f.ctx(), c.ID, decimal.NewFromInt(-1)); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for negative amount, got %v", err)
	}
}

func TestValidateCreditLimitDenialReasons(t *testing.T) {
	f := newFixture(t)

	noFacility := f.customer(t, models.CustomerTypeRetail, 0, 0)
	decision, err := f.credit.ValidateCreditLimit(f.ctx(), noFacility.ID, decimal.NewFromInt(1))
	if err != nil {
		t.Fatalf("validate credit: %v", err)
	}
	if decision.Reason != CreditReasonNoCreditFacility {
		t.Fatalf("expected NoCreditFacility, got %s", decision.Reason)
	}

	blocked := f.customer(t, models.CustomerTypeWholesale, 5_000_000, 30)
	if _, err := f.credit.ToggleCreditStatus(f.ctx(), blocked.ID, false, "bounced giro"); err != nil {
		t.Fatalf("block: %v", err)
	}
	decision, err = f.credit.ValidateCreditLimit(f.ctx(), blocked.ID, decimal.NewFromInt(1))
	if err != nil {
		t.Fatalf("validate credit: %v", err)
	}
	if decision.Reason != CreditReasonCreditBlocked {
		t.Fatalf("expected CreditBlocked, got %s", decision.Reason)
	}
	if _, err := f.credit.ToggleCreditStatus(f.ctx(), blocked.ID, true, "cleared"); err != nil {
		t.Fatalf("unblock: %v", err)
	}
	decision, _ = f.credit.ValidateCreditLimit(f.ctx(), blocked.ID, decimal.NewFromInt(1))
	if !decision.Approved {
		t.Fatalf("expected approval after unblocking, got %+v", decision)
	}

	late := f.customer(t, models.CustomerTypeContractor, 5_000_000, 30)
	f.receivable(t, late, 1_000_000, f.daysFromNow(-9), models.PaymentTermStatusPending)
	decision, err = f.credit.ValidateCreditLimit(f.ctx(), late.ID, decimal.NewFromInt(500_000))
	if err != nil {
		t.Fatalf("validate credit: %v", err)
	}
	if decision.Reason != CreditReasonHasOverduePayments {
		t.Fatalf("expected HasOverduePayments, got %s", decision.Reason)
	}
	assertDecimal(t, "overdue", decision.OverdueAmount, 1_000_000)
	assertDecimal(t, "available", decision.AvailableCredit, 4_000_000)
}

func TestAvailableCreditNeverNegative(t *testing.T) {
	f := newFixture(t)
	c := f.customer(t, models.CustomerTypeDistributor, 1_000_000, 30)
	f.receivable(t, c, 1_500_000, f.daysFromNow(20), models.PaymentTermStatusPending)

	info, err := f.credit.GetCustomerCreditInfo(f.ctx(), c.ID)
	if err != nil {
		t.Fatalf("credit info: %v", err)
	}
	assertDecimal(t, "debt", info.CurrentDebt, 1_500_000)
	assertDecimal(t, "available", info.AvailableCredit, 0)
	assertDecimal(t, "utilization", info.UtilizationPercent, 150)
	assertDecimal(t, "overdue", info.OverdueAmount, 0)
	if info.TotalOrders != 1 {
		t.Fatalf("total orders = %d, want 1", info.TotalOrders)
	}
}

func TestUpdateCreditLimit(t *testing.T) {
	f := newFixture(t)
	c := f.customer(t, models.CustomerTypeContractor, 1_000_000, 30)
	f.receivable(t, c, 400_000, f.daysFromNow(10), models.PaymentTermStatusPending)
	approver := 42

	credit, err := f.credit.UpdateCreditLimit(f.ctx(), c.ID, decimal.NewFromInt(3_000_000), "project Tower B", &approver)
	if err != nil {
		t.Fatalf("update limit: %v", err)
	}
	assertDecimal(t, "limit", credit.CreditLimit, 3_000_000)
	assertDecimal(t, "available", credit.AvailableCredit, 2_600_000)
	if !strings.Contains(credit.Notes, "credit limit 1000000 -> 3000000 by 42: project Tower B") {
		t.Fatalf("missing audit note, got %q", credit.Notes)
	}

	var customer models.Customer
	if err := f.db.First(&customer, c.ID).Error; err != nil {
		t.Fatalf("reload customer: %v", err)
	}
	assertDecimal(t, "customer projection", customer.CreditLimit, 3_000_000)

	_, err = f.credit.UpdateCreditLimit(f.ctx(), c.ID, decimal.NewFromInt(-5), "typo", nil)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var stored models.CustomerCredit
	f.db.Where("customer_id = ?", c.ID).First(&stored)
	assertDecimal(t, "limit after rejected update", stored.CreditLimit, 3_000_000)
}

func TestRecordPayment(t *testing.T) {
	f := newFixture(t)
	c := f.customer(t, models.CustomerTypeContractor, 5_000_000, 30)
	term := f.receivable(t, c, 1_000_000, f.daysFromNow(30), models.PaymentTermStatusPending)

	paid, err := f.credit.RecordPayment(f.ctx(), RecordPaymentInput{
		PaymentTermId: term.ID,
		Amount:        decimal.NewFromInt(400_000),
		Method:        "transfer",
		Reference:     "BCA-7781",
	})
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if paid.Status != models.PaymentTermStatusPartial {
		t.Fatalf("status = %s, want partial", paid.Status)
	}
	assertOrderPaymentStatus(t, f, term.OrderId, models.OrderPaymentStatusPartial)
	info, _ := f.credit.GetCustomerCreditInfo(f.ctx(), c.ID)
	assertDecimal(t, "debt after partial", info.CurrentDebt, 600_000)
	if info.LastPaymentDate == nil || !info.LastPaymentDate.Equal(f.now) {
		t.Fatalf("last payment date = %v, want %v", info.LastPaymentDate, f.now)
	}

	_, err = f.credit.RecordPayment(f.ctx(), RecordPaymentInput{PaymentTermId: term.ID, Amount: decimal.NewFromInt(700_000)})
	var overpaid *OverpaymentError
	if !errors.As(err, &overpaid) {
		t.Fatalf("expected OverpaymentError, got %v", err)
	}
	assertDecimal(t, "excess", overpaid.Excess(), 100_000)

	paid, err = f.credit.RecordPayment(f.ctx(), RecordPaymentInput{PaymentTermId: term.ID, Amount: decimal.NewFromInt(600_000)})
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if paid.Status != models.PaymentTermStatusPaid {
		t.Fatalf("status = %s, want paid", paid.Status)
	}
	assertOrderPaymentStatus(t, f, term.OrderId, models.OrderPaymentStatusPaid)
	info, _ = f.credit.GetCustomerCreditInfo(f.ctx(), c.ID)
	assertDecimal(t, "debt after full payment", info.CurrentDebt, 0)
	assertDecimal(t, "available after full payment", info.AvailableCredit, 5_000_000)

	if _, err := f.credit.RecordPayment(f.ctx(), RecordPaymentInput{PaymentTermId: term.ID, Amount: decimal.Zero}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for zero amount, got %v", err)
	}
}

func TestRecordPaymentRejectsCancelledTerm(t *testing.T) {
	f := newFixture(t)
	c := f.customer(t, models.CustomerTypeContractor, 5_000_000, 30)
	term := f.receivable(t, c, 1_000_000, f.daysFromNow(30), models.PaymentTermStatusCancelled)

	_, err := f.credit.RecordPayment(f.ctx(), RecordPaymentInput{PaymentTermId: term.ID, Amount: decimal.NewFromInt(1)})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMarkOverduePayments(t *testing.T) {
	f := newFixture(t)
	c := f.customer(t, models.CustomerTypeContractor, 10_000_000, 30)
	late := f.receivable(t, c, 100_000, f.daysFromNow(-9), models.PaymentTermStatusPending)
	dueToday := f.receivable(t, c, 100_000, f.daysFromNow(0), models.PaymentTermStatusPending)
	f.receivable(t, c, 100_000, f.daysFromNow(10), models.PaymentTermStatusPending)
	partial := f.receivable(t, c, 100_000, f.daysFromNow(-30), models.PaymentTermStatusPartial)

	count, err := f.credit.MarkOverduePayments(f.ctx())
	if err != nil {
		t.Fatalf("mark overdue: %v", err)
	}
	if count != 1 {
		t.Fatalf("marked %d terms, want 1", count)
	}
	assertTermStatus(t, f, late.ID, models.PaymentTermStatusOverdue)
	assertTermStatus(t, f, dueToday.ID, models.PaymentTermStatusPending)
	assertTermStatus(t, f, partial.ID, models.PaymentTermStatusPartial)

	count, err = f.credit.MarkOverduePayments(f.ctx())
	if err != nil || count != 0 {
		t.Fatalf("second sweep should change nothing: count=%d err=%v", count, err)
	}
}

func TestGetAgingReport(t *testing.T) {
	f := newFixture(t)
	c := f.customer(t, models.CustomerTypeDistributor, 100_000_000, 30)
	f.receivable(t, c, 100_000, f.daysFromNow(10), models.PaymentTermStatusPending)
	f.receivable(t, c, 200_000, f.daysFromNow(-5), models.PaymentTermStatusPending)
	f.receivable(t, c, 300_000, f.daysFromNow(-37), models.PaymentTermStatusOverdue)
	f.receivable(t, c, 400_000, f.daysFromNow(-64), models.PaymentTermStatusOverdue)
	f.receivable(t, c, 500_000, f.daysFromNow(-129), models.PaymentTermStatusOverdue)
	f.receivable(t, c, 600_000, f.daysFromNow(-5), models.PaymentTermStatusPaid)
	f.receivable(t, c, 700_000, f.daysFromNow(-5), models.PaymentTermStatusCancelled)

	report, err := f.credit.GetAgingReport(f.ctx())
	if err != nil {
		t.Fatalf("aging report: %v", err)
	}
	assertDecimal(t, "current", report.Current, 100_000)
	assertDecimal(t, "1-30", report.Days1To30, 200_000)
	assertDecimal(t, "31-60", report.Days31To60, 300_000)
	assertDecimal(t, "61-90", report.Days61To90, 400_000)
	assertDecimal(t, "over 90", report.Over90, 500_000)
	assertDecimal(t, "total", report.Total, 1_500_000)
	if report.TermCount != 5 {
		t.Fatalf("term count = %d, want 5", report.TermCount)
	}
}

func TestCreditForUnknownCustomer(t *testing.T) {
	f := newFixture(t)
	if _, err := f.credit.ValidateCreditLimit(f.ctx(), 404, decimal.NewFromInt(1)); err == nil {
		t.Fatalf("expected an error for a missing customer")
	}
}

func assertOrderPaymentStatus(t *testing.T, f *fixture, orderId int, want models.OrderPaymentStatus) {
	t.Helper()
	var order models.Order
	if err := f.db.First(&order, orderId).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if order.PaymentStatus != want {
		t.Fatalf("order payment status = %s, want %s", order.PaymentStatus, want)
	}
}

func assertTermStatus(t *testing.T, f *fixture, termId int, want models.PaymentTermStatus) {
	t.Helper()
	var term models.PaymentTerm
	if err := f.db.First(&term, termId).Error; err != nil {
		t.Fatalf("reload payment term: %v", err)
	}
	if term.Status != want {
		t.Fatalf("payment term %d status = %s, want %s", termId, term.Status, want)
	}
}

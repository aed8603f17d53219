package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bangunmart/fulfillment_backend/models"
	"github.com/bangunmart/fulfillment_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreditValidator guards tempo (credit) sales. CustomerCredit is the authoritative facility;
// its debt figures are recomputed from outstanding PaymentTerms on every refresh.
type CreditValidator struct {
	db     *gorm.DB
	logger *logrus.Logger
	Clock  Clock
}

func NewCreditValidator(db *gorm.DB, logger *logrus.Logger) *CreditValidator {
	return &CreditValidator{db: db, logger: logger, Clock: SystemClock}
}

func (v *CreditValidator) WithTx(tx *gorm.DB) *CreditValidator {
	c := *v
	c.db = tx
	return &c
}

type CreditInfo struct {
	CustomerId         int             `json:"customer_id"`
	CreditLimit        decimal.Decimal `json:"credit_limit"`
	CurrentDebt        decimal.Decimal `json:"current_debt"`
	AvailableCredit    decimal.Decimal `json:"available_credit"`
	OverdueAmount      decimal.Decimal `json:"overdue_amount"`
	UtilizationPercent decimal.Decimal `json:"utilization_percent"`
	IsActive           bool            `json:"is_active"`
	TotalOrders        int64           `json:"total_orders"`
	LastPaymentDate    *time.Time      `json:"last_payment_date"`
}

type CreditDecision struct {
	Approved        bool               `json:"approved"`
	Reason          CreditDenialReason `json:"reason,omitempty"`
	Message         string             `json:"message"`
	CreditLimit     decimal.Decimal    `json:"credit_limit"`
	AvailableCredit decimal.Decimal    `json:"available_credit"`
	RequestedAmount decimal.Decimal    `json:"requested_amount"`
	Shortfall       decimal.Decimal    `json:"shortfall"`
	OverdueAmount   decimal.Decimal    `json:"overdue_amount"`
	RemainingCredit decimal.Decimal    `json:"remaining_credit"`
}

type RecordPaymentInput struct {
	PaymentTermId int             `json:"payment_term_id" validate:"required,gt=0"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method" validate:"max=50"`
	Reference     string          `json:"reference" validate:"max=100"`
	ActorId       *int            `json:"actor_id"`
}

type AgingReport struct {
	AsOf       time.Time       `json:"as_of"`
	Current    decimal.Decimal `json:"current"`
	Days1To30  decimal.Decimal `json:"days_1_30"`
	Days31To60 decimal.Decimal `json:"days_31_60"`
	Days61To90 decimal.Decimal `json:"days_61_90"`
	Over90     decimal.Decimal `json:"over_90"`
	Total      decimal.Decimal `json:"total"`
	TermCount  int             `json:"term_count"`
}

// creditSnapshot is a freshly recomputed, locked credit row.
type creditSnapshot struct {
	credit  *models.CustomerCredit
	overdue decimal.Decimal
}

// GetCustomerCreditInfo recomputes and persists the customer's credit position.
func (v *CreditValidator) GetCustomerCreditInfo(ctx context.Context, customerId int) (*CreditInfo, error) {
	var info *CreditInfo
	err := v.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		snapshot, err := v.refreshLocked(ctx, tx, customerId)
		if err != nil {
			return err
		}
		var totalOrders int64
		if err := tx.Model(&models.Order{}).
			Where("customer_id = ? AND status <> ?", customerId, models.OrderStatusCancelled).
			Count(&totalOrders).Error; err != nil {
			return err
		}
		var lastPaid []models.PaymentTerm
		if err := tx.Where("customer_id = ? AND payment_date IS NOT NULL", customerId).
			Order("payment_date DESC").Limit(1).
			Find(&lastPaid).Error; err != nil {
			return err
		}
		credit := snapshot.credit
		info = &CreditInfo{
			CustomerId:         customerId,
			CreditLimit:        credit.CreditLimit,
			CurrentDebt:        credit.CurrentDebt,
			AvailableCredit:    credit.AvailableCredit,
			OverdueAmount:      snapshot.overdue,
			UtilizationPercent: utils.CalculatePercentage(credit.CurrentDebt, credit.CreditLimit, 2),
			IsActive:           credit.IsActive,
			TotalOrders:        totalOrders,
		}
		if len(lastPaid) > 0 {
			info.LastPaymentDate = lastPaid[0].PaymentDate
		}
		return nil
	})
	if err != nil {
		logFailure(v.logger, "CreditValidator", "GetCustomerCreditInfo", "transaction", customerId, err)
		return nil, err
	}
	return info, nil
}

// RefreshCustomerCredit recomputes the cached debt of the customer.
func (v *CreditValidator) RefreshCustomerCredit(ctx context.Context, customerId int) (*models.CustomerCredit, error) {
	var credit *models.CustomerCredit
	err := v.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		snapshot, err := v.refreshLocked(ctx, tx, customerId)
		if err != nil {
			return err
		}
		credit = snapshot.credit
		return nil
	})
	if err != nil {
		logFailure(v.logger, "CreditValidator", "RefreshCustomerCredit", "transaction", customerId, err)
		return nil, err
	}
	return credit, nil
}

// ValidateCreditLimit decides whether the customer may take amount on credit.
// A rejection is a decision, not an error.
func (v *CreditValidator) ValidateCreditLimit(ctx context.Context, customerId int, amount decimal.Decimal) (*CreditDecision, error) {
	if amount.IsNegative() {
		return nil, newValidationError("credit amount must not be negative")
	}
	var decision *CreditDecision
	err := v.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		snapshot, err := v.refreshLocked(ctx, tx, customerId)
		if err != nil {
			return err
		}
		decision = decideCredit(snapshot, amount)
		return nil
	})
	if err != nil {
		logFailure(v.logger, "CreditValidator", "ValidateCreditLimit", "transaction", customerId, err)
		return nil, err
	}
	return decision, nil
}

func decideCredit(snapshot *creditSnapshot, amount decimal.Decimal) *CreditDecision {
	credit := snapshot.credit
	decision := &CreditDecision{
		CreditLimit:     credit.CreditLimit,
		AvailableCredit: credit.AvailableCredit,
		RequestedAmount: amount,
		Shortfall:       decimal.Zero,
		OverdueAmount:   snapshot.overdue,
		RemainingCredit: credit.AvailableCredit,
	}
	switch {
	case !credit.IsActive:
		decision.Reason = CreditReasonCreditBlocked
		decision.Message = "credit facility is blocked"
	case !credit.CreditLimit.IsPositive():
		decision.Reason = CreditReasonNoCreditFacility
		decision.Message = "customer has no credit facility"
	case amount.GreaterThan(credit.AvailableCredit):
		decision.Reason = CreditReasonInsufficientLimit
		decision.Shortfall = amount.Sub(credit.AvailableCredit)
		decision.Message = fmt.Sprintf("available credit %s is short by %s",
			credit.AvailableCredit.StringFixed(0), decision.Shortfall.StringFixed(0))
	case snapshot.overdue.IsPositive():
		decision.Reason = CreditReasonHasOverduePayments
		decision.Message = fmt.Sprintf("customer has overdue payments of %s", snapshot.overdue.StringFixed(0))
	default:
		decision.Approved = true
		decision.Message = "credit approved"
		decision.RemainingCredit = credit.AvailableCredit.Sub(amount)
	}
	return decision
}

// UpdateCreditLimit changes the facility and its Customer projection together.
func (v *CreditValidator) UpdateCreditLimit(ctx context.Context, customerId int, newLimit decimal.Decimal, reason string, approvedBy *int) (*models.CustomerCredit, error) {
	if newLimit.IsNegative() {
		return nil, &ValidationError{
			Message: "credit limit must not be negative",
			Fields:  map[string]string{"CreditLimit": "gte"},
		}
	}
	var credit *models.CustomerCredit
	err := v.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		snapshot, err := v.refreshLocked(ctx, tx, customerId)
		if err != nil {
			return err
		}
		credit = snapshot.credit
		previous := credit.CreditLimit
		credit.CreditLimit = newLimit
		credit.Notes = utils.AppendNote(credit.Notes, auditLine(v.Clock.now(), approvedBy,
			fmt.Sprintf("credit limit %s -> %s", previous.StringFixed(0), newLimit.StringFixed(0)), reason))
		if err := tx.Save(credit).Error; err != nil {
			return err
		}
		return tx.Model(&models.Customer{}).Where("id = ?", customerId).Update("credit_limit", newLimit).Error
	})
	if err != nil {
		logFailure(v.logger, "CreditValidator", "UpdateCreditLimit", "transaction", customerId, err)
		return nil, err
	}
	v.logger.WithFields(logrus.Fields{
		"customer_id":  customerId,
		"credit_limit": newLimit.StringFixed(0),
	}).Info("credit limit updated")
	return credit, nil
}

// ToggleCreditStatus blocks or unblocks the facility. Blocked customers cannot buy on tempo.
func (v *CreditValidator) ToggleCreditStatus(ctx context.Context, customerId int, isActive bool, reason string) (*models.CustomerCredit, error) {
	var credit *models.CustomerCredit
	err := v.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		snapshot, err := v.refreshLocked(ctx, tx, customerId)
		if err != nil {
			return err
		}
		credit = snapshot.credit
		action := "credit blocked"
		if isActive {
			action = "credit activated"
		}
		credit.IsActive = isActive
		credit.Notes = utils.AppendNote(credit.Notes, auditLine(v.Clock.now(), nil, action, reason))
		return tx.Save(credit).Error
	})
	if err != nil {
		logFailure(v.logger, "CreditValidator", "ToggleCreditStatus", "transaction", customerId, err)
		return nil, err
	}
	v.logger.WithFields(logrus.Fields{
		"customer_id": customerId,
		"is_active":   isActive,
	}).Info("credit status changed")
	return credit, nil
}

// RecordPayment books a (partial) payment on a term, mirrors the order's payment status
// and refreshes the customer's credit.
func (v *CreditValidator) RecordPayment(ctx context.Context, input RecordPaymentInput) (*models.PaymentTerm, error) {
	if err := validationFromStruct(&input, "invalid payment"); err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, &ValidationError{
			Message: "payment amount must be greater than zero",
			Fields:  map[string]string{"RecordPaymentInput.Amount": "gt"},
		}
	}
	var term *models.PaymentTerm
	err := v.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		head, err := utils.FetchModel[models.PaymentTerm](ctx, tx, input.PaymentTermId)
		if err != nil {
			return err
		}
		// order, credit row, then term: the order every order transition locks them in
		if _, err := utils.FetchModelForUpdate[models.Order](ctx, tx, head.OrderId); err != nil {
			return err
		}
		if _, err := lockCustomerCredit(ctx, tx, head.CustomerId); err != nil {
			return err
		}
		term, err = utils.FetchModelForUpdate[models.PaymentTerm](ctx, tx, head.ID)
		if err != nil {
			return err
		}
		if term.Status == models.PaymentTermStatusCancelled {
			return newValidationError("payment term %d is cancelled", term.ID)
		}
		remaining := term.Remaining()
		if input.Amount.GreaterThan(remaining) {
			return &OverpaymentError{PaymentTermId: term.ID, Remaining: remaining, Attempted: input.Amount}
		}
		if err := term.ApplyPayment(input.Amount, v.Clock.now(), input.Method, input.Reference); err != nil {
			return err
		}
		if err := tx.Save(term).Error; err != nil {
			return err
		}
		paymentStatus := models.OrderPaymentStatusPartial
		if term.Status == models.PaymentTermStatusPaid {
			paymentStatus = models.OrderPaymentStatusPaid
		}
		if err := tx.Model(&models.Order{}).Where("id = ?", term.OrderId).
			Update("payment_status", paymentStatus).Error; err != nil {
			return err
		}
		_, err = v.refreshLocked(ctx, tx, term.CustomerId)
		return err
	})
	if err != nil {
		logFailure(v.logger, "CreditValidator", "RecordPayment", "transaction", input, err)
		return nil, err
	}
	v.logger.WithFields(logrus.Fields{
		"payment_term_id": term.ID,
		"order_id":        term.OrderId,
		"amount":          input.Amount.StringFixed(0),
		"status":          term.Status,
	}).Info("payment recorded")
	return term, nil
}

// MarkOverduePayments flags pending terms whose due date has passed and reports how many changed.
func (v *CreditValidator) MarkOverduePayments(ctx context.Context) (int, error) {
	today := utils.StartOfDay(v.Clock.now())
	var count int
	err := v.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var terms []models.PaymentTerm
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("status = ? AND due_date < ?", models.PaymentTermStatusPending, today).
			Order("id ASC").
			Find(&terms).Error; err != nil {
			return err
		}
		for i := range terms {
			if err := terms[i].MarkOverdue(today); err != nil {
				return err
			}
			if terms[i].Status != models.PaymentTermStatusOverdue {
				continue
			}
			if err := tx.Model(&terms[i]).Update("status", terms[i].Status).Error; err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		logFailure(v.logger, "CreditValidator", "MarkOverduePayments", "transaction", today, err)
		return 0, err
	}
	if count > 0 {
		v.logger.WithFields(logrus.Fields{"count": count}).Info("payment terms marked overdue")
	}
	return count, nil
}

// GetAgingReport buckets outstanding receivables by days past due.
func (v *CreditValidator) GetAgingReport(ctx context.Context) (*AgingReport, error) {
	now := v.Clock.now()
	var terms []models.PaymentTerm
	if err := v.db.WithContext(ctx).
		Where("status IN ?", models.OutstandingPaymentTermStatuses).
		Find(&terms).Error; err != nil {
		return nil, err
	}
	report := &AgingReport{
		AsOf:       now,
		Current:    decimal.Zero,
		Days1To30:  decimal.Zero,
		Days31To60: decimal.Zero,
		Days61To90: decimal.Zero,
		Over90:     decimal.Zero,
		Total:      decimal.Zero,
		TermCount:  len(terms),
	}
	for _, term := range terms {
		remaining := term.Remaining()
		switch days := term.DaysPastDue(now); {
		case days <= 0:
			report.Current = report.Current.Add(remaining)
		case days <= 30:
			report.Days1To30 = report.Days1To30.Add(remaining)
		case days <= 60:
			report.Days31To60 = report.Days31To60.Add(remaining)
		case days <= 90:
			report.Days61To90 = report.Days61To90.Add(remaining)
		default:
			report.Over90 = report.Over90.Add(remaining)
		}
		report.Total = report.Total.Add(remaining)
	}
	return report, nil
}

// refreshLocked creates the credit row on first use, locks it and recomputes the debt
// from outstanding payment terms. tx must be a transaction.
func (v *CreditValidator) refreshLocked(ctx context.Context, tx *gorm.DB, customerId int) (*creditSnapshot, error) {
	credit, err := lockCustomerCredit(ctx, tx, customerId)
	if err != nil {
		return nil, err
	}
	var terms []models.PaymentTerm
	if err := outstandingTermsForUpdate(tx.WithContext(ctx), customerId).Find(&terms).Error; err != nil {
		return nil, err
	}
	now := v.Clock.now()
	debt := decimal.Zero
	overdue := decimal.Zero
	for _, term := range terms {
		debt = debt.Add(term.Remaining())
		if term.Status == models.PaymentTermStatusOverdue || term.DaysPastDue(now) > 0 {
			overdue = overdue.Add(term.Remaining())
		}
	}
	credit.ApplyDebt(debt, now)
	if err := tx.Save(credit).Error; err != nil {
		return nil, err
	}
	return &creditSnapshot{credit: credit, overdue: overdue}, nil
}

// outstandingTermsForUpdate is a locking read, so it sees terms committed after the
// transaction's first plain read under REPEATABLE READ.
func outstandingTermsForUpdate(tx *gorm.DB, customerId int) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("customer_id = ? AND status IN ?", customerId, models.OutstandingPaymentTermStatuses)
}

func lockCustomerCredit(ctx context.Context, tx *gorm.DB, customerId int) (*models.CustomerCredit, error) {
	customer, err := utils.FetchModel[models.Customer](ctx, tx, customerId)
	if err != nil {
		return nil, err
	}
	seed := models.CustomerCredit{
		CustomerId:  customer.ID,
		CreditLimit: customer.CreditLimit,
		IsActive:    true,
	}
	if err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "customer_id"}}, DoNothing: true}).
		Create(&seed).Error; err != nil {
		return nil, err
	}
	var credit models.CustomerCredit
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("customer_id = ?", customerId).
		First(&credit).Error; err != nil {
		return nil, utils.NotFoundOr(err)
	}
	return &credit, nil
}

func auditLine(at time.Time, actorId *int, action string, reason string) string {
	line := fmt.Sprintf("[%s] %s", at.Format("2006-01-02 15:04"), action)
	if actorId != nil {
		line += fmt.Sprintf(" by %d", *actorId)
	}
	if reason != "" {
		line += ": " + reason
	}
	return line
}

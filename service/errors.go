package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bangunmart/fulfillment_backend/models"
	"github.com/bangunmart/fulfillment_backend/utils"
	"github.com/shopspring/decimal"
)

var (
	ErrValidation                = errors.New("validation error")
	ErrInsufficientStock         = errors.New("insufficient stock")
	ErrCreditDenied              = errors.New("credit denied")
	ErrInvalidStateTransition    = errors.New("invalid state transition")
	ErrOverpaymentExceedsBalance = errors.New("overpayment exceeds balance")
)

// ValidationError reports malformed input. Fields maps the offending field to the failed rule.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+e.Fields[k])
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, ", "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func newValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

type InsufficientStockError struct {
	ProductId    int `json:"product_id"`
	CurrentStock int `json:"current_stock"`
	Available    int `json:"available"`
	Required     int `json:"required"`
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: available %d, required %d", e.ProductId, e.Available, e.Required)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// Shortfall is how many units are missing.
func (e *InsufficientStockError) Shortfall() int {
	return e.Required - e.Available
}

type CreditDenialReason string

const (
	CreditReasonNoCreditFacility   CreditDenialReason = "NoCreditFacility"
	CreditReasonInsufficientLimit  CreditDenialReason = "InsufficientLimit"
	CreditReasonHasOverduePayments CreditDenialReason = "HasOverduePayments"
	CreditReasonCreditBlocked      CreditDenialReason = "CreditBlocked"
)

type CreditDeniedError struct {
	CustomerId int
	Decision   CreditDecision
}

func (e *CreditDeniedError) Error() string {
	return fmt.Sprintf("credit denied for customer %d: %s", e.CustomerId, e.Decision.Message)
}

func (e *CreditDeniedError) Is(target error) bool { return target == ErrCreditDenied }

type StateTransitionReason string

const (
	ReasonNotPendingApproval  StateTransitionReason = "NotPendingApproval"
	ReasonNotPending          StateTransitionReason = "NotPending"
	ReasonAlreadyProcessed    StateTransitionReason = "AlreadyProcessed"
	ReasonAlreadyCancelled    StateTransitionReason = "AlreadyCancelled"
	ReasonNotConfirmed        StateTransitionReason = "NotConfirmed"
	ReasonNotReadyForDelivery StateTransitionReason = "NotReadyForDelivery"
	ReasonNotShipped          StateTransitionReason = "NotShipped"
	ReasonNotDelivered        StateTransitionReason = "NotDelivered"
)

type InvalidStateTransitionError struct {
	OrderId       int
	Operation     string
	CurrentStatus models.OrderStatus
	Reason        StateTransitionReason
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("order %d cannot be %s: status is %s (%s)", e.OrderId, e.Operation, e.CurrentStatus, e.Reason)
}

func (e *InvalidStateTransitionError) Is(target error) bool { return target == ErrInvalidStateTransition }

type OverpaymentError struct {
	PaymentTermId int
	Remaining     decimal.Decimal
	Attempted     decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment of %s exceeds remaining balance %s on payment term %d",
		e.Attempted.StringFixed(0), e.Remaining.StringFixed(0), e.PaymentTermId)
}

func (e *OverpaymentError) Is(target error) bool { return target == ErrOverpaymentExceedsBalance }

// Excess is the amount above the remaining balance.
func (e *OverpaymentError) Excess() decimal.Decimal {
	return e.Attempted.Sub(e.Remaining)
}

// isBusinessError reports errors that are part of the normal contract and not worth an error log.
func isBusinessError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrCreditDenied) ||
		errors.Is(err, ErrInvalidStateTransition) ||
		errors.Is(err, ErrOverpaymentExceedsBalance) ||
		errors.Is(err, utils.ErrorRecordNotFound)
}

// validationFromStruct converts validator failures into a ValidationError.
func validationFromStruct(obj interface{}, message string) error {
	err := utils.ValidateStruct(obj)
	if err == nil {
		return nil
	}
	return &ValidationError{Message: message, Fields: utils.ProcessValidationErrors(err)}
}

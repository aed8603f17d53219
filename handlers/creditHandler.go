package handlers

import (
	"net/http"

	"github.com/bangunmart/fulfillment_backend/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type CreditHandler struct {
	svc    *service.CreditValidator
	logger *logrus.Logger
}

type creditCheckRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type creditLimitRequest struct {
	CreditLimit decimal.Decimal `json:"credit_limit"`
	Reason      string          `json:"reason"`
}

type creditStatusRequest struct {
	IsActive bool   `json:"is_active"`
	Reason   string `json:"reason"`
}

type paymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Reference string          `json:"reference"`
}

func (h *CreditHandler) Info(c *gin.Context) {
	customerId, ok := idParam(c)
	if !ok {
		return
	}
	info, err := h.svc.GetCustomerCreditInfo(c.Request.Context(), customerId)
	if err != nil {
		respondError(c, h.logger, "Info", err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *CreditHandler) Check(c *gin.Context) {
	customerId, ok := idParam(c)
	if !ok {
		return
	}
	var req creditCheckRequest
	if !bindJSON(c, &req) {
		return
	}
	decision, err := h.svc.ValidateCreditLimit(c.Request.Context(), customerId, req.Amount)
	if err != nil {
		respondError(c, h.logger, "Check", err)
		return
	}
	c.JSON(http.StatusOK, decision)
}

func (h *CreditHandler) UpdateLimit(c *gin.Context) {
	customerId, ok := idParam(c)
	if !ok {
		return
	}
	var req creditLimitRequest
	if !bindJSON(c, &req) {
		return
	}
	credit, err := h.svc.UpdateCreditLimit(c.Request.Context(), customerId, req.CreditLimit, req.Reason, actorId(c))
	if err != nil {
		respondError(c, h.logger, "UpdateLimit", err)
		return
	}
	c.JSON(http.StatusOK, credit)
}

func (h *CreditHandler) ToggleStatus(c *gin.Context) {
	customerId, ok := idParam(c)
	if !ok {
		return
	}
	var req creditStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	credit, err := h.svc.ToggleCreditStatus(c.Request.Context(), customerId, req.IsActive, req.Reason)
	if err != nil {
		respondError(c, h.logger, "ToggleStatus", err)
		return
	}
	c.JSON(http.StatusOK, credit)
}

func (h *CreditHandler) RecordPayment(c *gin.Context) {
	termId, ok := idParam(c)
	if !ok {
		return
	}
	var req paymentRequest
	if !bindJSON(c, &req) {
		return
	}
	term, err := h.svc.RecordPayment(c.Request.Context(), service.RecordPaymentInput{
		PaymentTermId: termId,
		Amount:        req.Amount,
		Method:        req.Method,
		Reference:     req.Reference,
		ActorId:       actorId(c),
	})
	if err != nil {
		respondError(c, h.logger, "RecordPayment", err)
		return
	}
	c.JSON(http.StatusOK, term)
}

func (h *CreditHandler) Aging(c *gin.Context) {
	report, err := h.svc.GetAgingReport(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "Aging", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

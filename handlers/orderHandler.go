package handlers

import (
	"context"
	"net/http"

	"github.com/bangunmart/fulfillment_backend/models"
	"github.com/bangunmart/fulfillment_backend/service"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type OrderHandler struct {
	svc    *service.OrderProcessor
	logger *logrus.Logger
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	var input service.NewOrder
	if !bindJSON(c, &input) {
		return
	}
	// the acting user comes from the session, never from the body
	input.ActorId = actorId(c)
	order, err := h.svc.ProcessOrder(c.Request.Context(), &input)
	if err != nil {
		respondError(c, h.logger, "Create", err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) Get(c *gin.Context) {
	orderId, ok := idParam(c)
	if !ok {
		return
	}
	order, err := h.svc.GetOrder(c.Request.Context(), orderId)
	if err != nil {
		respondError(c, h.logger, "Get", err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) Approve(c *gin.Context) {
	h.transition(c, "Approve", h.svc.ApproveOrder)
}

func (h *OrderHandler) Confirm(c *gin.Context) {
	h.transition(c, "Confirm", h.svc.ConfirmOrder)
}

func (h *OrderHandler) ProcessForShipping(c *gin.Context) {
	h.transition(c, "ProcessForShipping", h.svc.ProcessForShipping)
}

func (h *OrderHandler) MarkShipped(c *gin.Context) {
	h.transition(c, "MarkShipped", h.svc.MarkShipped)
}

func (h *OrderHandler) MarkDelivered(c *gin.Context) {
	h.transition(c, "MarkDelivered", h.svc.MarkDelivered)
}

func (h *OrderHandler) Complete(c *gin.Context) {
	h.transition(c, "Complete", h.svc.CompleteOrder)
}

func (h *OrderHandler) transition(c *gin.Context, funcName string, fn func(ctx context.Context, orderId int, actorId *int) (*models.Order, error)) {
	orderId, ok := idParam(c)
	if !ok {
		return
	}
	order, err := fn(c.Request.Context(), orderId, actorId(c))
	if err != nil {
		respondError(c, h.logger, funcName, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	orderId, ok := idParam(c)
	if !ok {
		return
	}
	var req cancelOrderRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	order, err := h.svc.CancelOrder(c.Request.Context(), orderId, req.Reason, actorId(c))
	if err != nil {
		respondError(c, h.logger, "Cancel", err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) CreateDeliveryNote(c *gin.Context) {
	orderId, ok := idParam(c)
	if !ok {
		return
	}
	var input service.NewDeliveryNote
	if c.Request.ContentLength > 0 && !bindJSON(c, &input) {
		return
	}
	note, err := h.svc.CreateDeliveryNote(c.Request.Context(), orderId, input, actorId(c))
	if err != nil {
		respondError(c, h.logger, "CreateDeliveryNote", err)
		return
	}
	c.JSON(http.StatusCreated, note)
}

func (h *OrderHandler) Events(c *gin.Context) {
	orderId, ok := idParam(c)
	if !ok {
		return
	}
	events, err := h.svc.GetOrderEvents(c.Request.Context(), orderId)
	if err != nil {
		respondError(c, h.logger, "Events", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": events})
}

func (h *OrderHandler) RequeueEvents(c *gin.Context) {
	orderId, ok := idParam(c)
	if !ok {
		return
	}
	events, err := h.svc.RequeueOrderEvents(c.Request.Context(), orderId, actorId(c))
	if err != nil {
		respondError(c, h.logger, "RequeueEvents", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": events})
}

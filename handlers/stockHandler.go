package handlers

import (
	"context"
	"net/http"

	"github.com/bangunmart/fulfillment_backend/models"
	"github.com/bangunmart/fulfillment_backend/service"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type StockHandler struct {
	svc    *service.StockManager
	logger *logrus.Logger
}

type stockMovementRequest struct {
	Quantity      int                       `json:"quantity"`
	ReferenceType models.StockReferenceType `json:"reference_type"`
	ReferenceId   *int                      `json:"reference_id"`
	Notes         string                    `json:"notes"`
	AllowNegative bool                      `json:"allow_negative"`
}

type stockAdjustmentRequest struct {
	ActualStock int    `json:"actual_stock"`
	Reason      string `json:"reason"`
	Notes       string `json:"notes"`
}

func (h *StockHandler) StockIn(c *gin.Context) {
	h.move(c, "StockIn", h.svc.StockIn)
}

func (h *StockHandler) StockOut(c *gin.Context) {
	h.move(c, "StockOut", h.svc.StockOut)
}

func (h *StockHandler) move(c *gin.Context, funcName string, fn func(ctx context.Context, input service.NewStockMovement) (*models.StockMovement, error)) {
	productId, ok := idParam(c)
	if !ok {
		return
	}
	var req stockMovementRequest
	if !bindJSON(c, &req) {
		return
	}
	movement, err := fn(c.Request.Context(), service.NewStockMovement{
		ProductId:     productId,
		Quantity:      req.Quantity,
		ReferenceType: req.ReferenceType,
		ReferenceId:   req.ReferenceId,
		Notes:         req.Notes,
		ActorId:       actorId(c),
		AllowNegative: req.AllowNegative,
	})
	if err != nil {
		respondError(c, h.logger, funcName, err)
		return
	}
	c.JSON(http.StatusCreated, movement)
}

func (h *StockHandler) Adjust(c *gin.Context) {
	productId, ok := idParam(c)
	if !ok {
		return
	}
	var req stockAdjustmentRequest
	if !bindJSON(c, &req) {
		return
	}
	movement, err := h.svc.StockAdjustment(c.Request.Context(), service.NewStockAdjustment{
		ProductId:   productId,
		ActualStock: req.ActualStock,
		Reason:      req.Reason,
		Notes:       req.Notes,
		ActorId:     actorId(c),
	})
	if err != nil {
		respondError(c, h.logger, "Adjust", err)
		return
	}
	if movement == nil {
		c.JSON(http.StatusOK, gin.H{"adjusted": false})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"adjusted": true, "movement": movement})
}

func (h *StockHandler) Summary(c *gin.Context) {
	productId, ok := idParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	current, err := h.svc.GetCurrentStock(ctx, productId)
	if err != nil {
		respondError(c, h.logger, "Summary", err)
		return
	}
	reserved, err := h.svc.GetReservedStock(ctx, productId)
	if err != nil {
		respondError(c, h.logger, "Summary", err)
		return
	}
	reorder, err := h.svc.NeedsReordering(ctx, productId)
	if err != nil {
		respondError(c, h.logger, "Summary", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"product_id":       productId,
		"current_stock":    current,
		"reserved_stock":   reserved,
		"available_stock":  current - reserved,
		"needs_reordering": reorder,
	})
}

func (h *StockHandler) Movements(c *gin.Context) {
	productId, ok := idParam(c)
	if !ok {
		return
	}
	movements, err := h.svc.GetStockMovements(c.Request.Context(), productId)
	if err != nil {
		respondError(c, h.logger, "Movements", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": movements})
}

func (h *StockHandler) Reconcile(c *gin.Context) {
	productId, ok := idParam(c)
	if !ok {
		return
	}
	result, err := h.svc.ReconcileStock(c.Request.Context(), productId)
	if err != nil {
		respondError(c, h.logger, "Reconcile", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *StockHandler) LowStock(c *gin.Context) {
	products, err := h.svc.GetLowStockProducts(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "LowStock", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": products})
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/bangunmart/fulfillment_backend/models"
	"github.com/bangunmart/fulfillment_backend/service"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type PricingHandler struct {
	svc    *service.PriceCalculator
	logger *logrus.Logger
}

type quoteRequest struct {
	CustomerId   *int                `json:"customer_id"`
	CustomerType models.CustomerType `json:"customer_type"`
	Items        []service.OrderLine `json:"items"`
}

// Price answers GET /products/:id/price?quantity=&customer_type=
func (h *PricingHandler) Price(c *gin.Context) {
	productId, ok := idParam(c)
	if !ok {
		return
	}
	quantity, err := strconv.Atoi(c.DefaultQuery("quantity", "1"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quantity"})
		return
	}
	segment := models.CustomerType(c.DefaultQuery("customer_type", string(models.CustomerTypeRetail)))
	price, err := h.svc.CalculatePrice(c.Request.Context(), productId, segment, quantity, nil)
	if err != nil {
		respondError(c, h.logger, "Price", err)
		return
	}
	c.JSON(http.StatusOK, price)
}

func (h *PricingHandler) Quote(c *gin.Context) {
	var req quoteRequest
	if !bindJSON(c, &req) {
		return
	}
	totals, err := h.svc.CalculateOrderTotal(c.Request.Context(), req.Items, req.CustomerId, req.CustomerType)
	if err != nil {
		respondError(c, h.logger, "Quote", err)
		return
	}
	c.JSON(http.StatusOK, totals)
}

func (h *PricingHandler) InvalidateCache(c *gin.Context) {
	productId, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.svc.InvalidatePriceCache(c.Request.Context(), productId); err != nil {
		respondError(c, h.logger, "InvalidateCache", err)
		return
	}
	c.Status(http.StatusNoContent)
}

type priceLevelStatusRequest struct {
	IsActive bool `json:"is_active"`
}

func (h *PricingHandler) CreateLevel(c *gin.Context) {
	productId, ok := idParam(c)
	if !ok {
		return
	}
	var input service.PriceLevelInput
	if !bindJSON(c, &input) {
		return
	}
	level, err := h.svc.CreatePriceLevel(c.Request.Context(), productId, input)
	if err != nil {
		respondError(c, h.logger, "CreateLevel", err)
		return
	}
	c.JSON(http.StatusCreated, level)
}

func (h *PricingHandler) UpdateLevel(c *gin.Context) {
	levelId, ok := idParam(c)
	if !ok {
		return
	}
	var input service.PriceLevelInput
	if !bindJSON(c, &input) {
		return
	}
	level, err := h.svc.UpdatePriceLevel(c.Request.Context(), levelId, input)
	if err != nil {
		respondError(c, h.logger, "UpdateLevel", err)
		return
	}
	c.JSON(http.StatusOK, level)
}

func (h *PricingHandler) DeleteLevel(c *gin.Context) {
	levelId, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.svc.DeletePriceLevel(c.Request.Context(), levelId); err != nil {
		respondError(c, h.logger, "DeleteLevel", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PricingHandler) ToggleLevels(c *gin.Context) {
	productId, ok := idParam(c)
	if !ok {
		return
	}
	var req priceLevelStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	affected, err := h.svc.SetPriceLevelsActive(c.Request.Context(), productId, req.IsActive)
	if err != nil {
		respondError(c, h.logger, "ToggleLevels", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": affected})
}

// Package handlers exposes the fulfillment services over a small JSON API.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bangunmart/fulfillment_backend/config"
	"github.com/bangunmart/fulfillment_backend/service"
	"github.com/bangunmart/fulfillment_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Handlers struct {
	Stock   *StockHandler
	Pricing *PricingHandler
	Credit  *CreditHandler
	Order   *OrderHandler
}

type Services struct {
	Stock   *service.StockManager
	Pricing *service.PriceCalculator
	Credit  *service.CreditValidator
	Order   *service.OrderProcessor
}

func NewHandlers(svc Services, logger *logrus.Logger) *Handlers {
	return &Handlers{
		Stock:   &StockHandler{svc: svc.Stock, logger: logger},
		Pricing: &PricingHandler{svc: svc.Pricing, logger: logger},
		Credit:  &CreditHandler{svc: svc.Credit, logger: logger},
		Order:   &OrderHandler{svc: svc.Order, logger: logger},
	}
}

// RegisterRoutes mounts every endpoint under r.
func (h *Handlers) RegisterRoutes(r gin.IRouter) {
	products := r.Group("/products/:id")
	products.POST("/stock-in", h.Stock.StockIn)
	products.POST("/stock-out", h.Stock.StockOut)
	products.POST("/adjustments", h.Stock.Adjust)
	products.GET("/stock", h.Stock.Summary)
	products.GET("/movements", h.Stock.Movements)
	products.GET("/reconcile", h.Stock.Reconcile)
	products.GET("/price", h.Pricing.Price)
	products.DELETE("/price-cache", h.Pricing.InvalidateCache)
	products.POST("/price-levels", h.Pricing.CreateLevel)
	products.PUT("/price-levels/status", h.Pricing.ToggleLevels)
	r.PUT("/price-levels/:id", h.Pricing.UpdateLevel)
	r.DELETE("/price-levels/:id", h.Pricing.DeleteLevel)
	r.GET("/stock/low", h.Stock.LowStock)
	r.POST("/pricing/quote", h.Pricing.Quote)

	customers := r.Group("/customers/:id/credit")
	customers.GET("", h.Credit.Info)
	customers.POST("/check", h.Credit.Check)
	customers.PUT("/limit", h.Credit.UpdateLimit)
	customers.PUT("/status", h.Credit.ToggleStatus)
	r.POST("/payment-terms/:id/payments", h.Credit.RecordPayment)
	r.GET("/receivables/aging", h.Credit.Aging)

	orders := r.Group("/orders")
	orders.POST("", h.Order.Create)
	orders.GET("/:id", h.Order.Get)
	orders.POST("/:id/approve", h.Order.Approve)
	orders.POST("/:id/confirm", h.Order.Confirm)
	orders.POST("/:id/cancel", h.Order.Cancel)
	orders.POST("/:id/process", h.Order.ProcessForShipping)
	orders.POST("/:id/delivery-notes", h.Order.CreateDeliveryNote)
	orders.POST("/:id/ship", h.Order.MarkShipped)
	orders.POST("/:id/deliver", h.Order.MarkDelivered)
	orders.POST("/:id/complete", h.Order.Complete)
	orders.GET("/:id/events", h.Order.Events)
	orders.POST("/:id/events/requeue", h.Order.RequeueEvents)
}

func idParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// actorId is the caller set by SessionMiddleware, or nil for anonymous calls.
func actorId(c *gin.Context) *int {
	if id, ok := utils.GetActorIdFromContext(c.Request.Context()); ok {
		return &id
	}
	return nil
}

func bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return false
	}
	return true
}

// respondError maps service errors to status codes; business errors carry their details.
func respondError(c *gin.Context, logger *logrus.Logger, funcName string, err error) {
	var (
		validationErr *service.ValidationError
		stockErr      *service.InsufficientStockError
		creditErr     *service.CreditDeniedError
		stateErr      *service.InvalidStateTransitionError
		overpayErr    *service.OverpaymentError
	)
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": validationErr.Message, "fields": validationErr.Fields})
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":         stockErr.Error(),
			"product_id":    stockErr.ProductId,
			"current_stock": stockErr.CurrentStock,
			"available":     stockErr.Available,
			"required":      stockErr.Required,
			"shortfall":     stockErr.Shortfall(),
		})
	case errors.As(err, &creditErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": creditErr.Error(), "decision": creditErr.Decision})
	case errors.As(err, &stateErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":          stateErr.Error(),
			"order_id":       stateErr.OrderId,
			"current_status": stateErr.CurrentStatus,
			"reason":         stateErr.Reason,
		})
	case errors.As(err, &overpayErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":     overpayErr.Error(),
			"remaining": overpayErr.Remaining,
			"attempted": overpayErr.Attempted,
			"excess":    overpayErr.Excess(),
		})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		config.LogError(logger, "handlers", funcName, "request", c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

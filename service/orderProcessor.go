package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bangunmart/fulfillment_backend/models"
	"github.com/bangunmart/fulfillment_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderProcessor runs the order lifecycle on top of the stock, pricing and credit services.
// Every operation is one transaction; the sub-services join it through WithTx.
type OrderProcessor struct {
	db      *gorm.DB
	logger  *logrus.Logger
	tracer  trace.Tracer
	Clock   Clock
	stock   *StockManager
	pricing *PriceCalculator
	credit  *CreditValidator
}

func NewOrderProcessor(db *gorm.DB, logger *logrus.Logger, stock *StockManager, pricing *PriceCalculator, credit *CreditValidator) *OrderProcessor {
	return &OrderProcessor{
		db:      db,
		logger:  logger,
		tracer:  otel.Tracer("fulfillment-order-processor"),
		Clock:   SystemClock,
		stock:   stock,
		pricing: pricing,
		credit:  credit,
	}
}

// SetClock pins the clock of the processor and the services it drives.
func (p *OrderProcessor) SetClock(clock Clock) {
	p.Clock = clock
	p.stock.Clock = clock
	p.credit.Clock = clock
}

type NewOrderItem struct {
	ProductId int `json:"product_id" validate:"required,gt=0"`
	Quantity  int `json:"quantity" validate:"gt=0"`
}

type NewOrder struct {
	CustomerId      int                  `json:"customer_id" validate:"required,gt=0"`
	Items           []NewOrderItem       `json:"items" validate:"required,min=1,dive"`
	PaymentMethod   models.PaymentMethod `json:"payment_method" validate:"required,oneof=cash transfer tempo"`
	PaymentTermDays *int                 `json:"payment_term_days"`
	ProjectName     string               `json:"project_name" validate:"max=200"`
	Notes           string               `json:"notes"`
	ActorId         *int                 `json:"actor_id"`
}

type NewDeliveryNote struct {
	DeliveryDate    *time.Time `json:"delivery_date"`
	DriverName      string     `json:"driver_name" validate:"max=100"`
	VehicleNumber   string     `json:"vehicle_number" validate:"max=30"`
	RecipientName   string     `json:"recipient_name" validate:"max=100"`
	DeliveryAddress string     `json:"delivery_address"`
	Notes           string     `json:"notes"`
}

// ProcessOrder validates, prices, credit-checks and places an order, reserving stock for every line.
// Nothing is written unless every step succeeds.
func (p *OrderProcessor) ProcessOrder(ctx context.Context, input *NewOrder) (order *models.Order, err error) {
	ctx, span := p.tracer.Start(ctx, "OrderProcessor.ProcessOrder")
	defer func() { endSpan(span, err) }()

	if input == nil {
		return nil, newValidationError("order input is required")
	}
	if err := validationFromStruct(input, "invalid order"); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("customer_id", input.CustomerId))

	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := utils.FetchModel[models.Customer](ctx, tx, input.CustomerId)
		if err != nil {
			return err
		}
		if err := p.lockAndCheckLines(ctx, tx, input.Items); err != nil {
			return err
		}

		segment := customer.Segment()
		lines := make([]OrderLine, 0, len(input.Items))
		for _, item := range input.Items {
			lines = append(lines, OrderLine{ProductId: item.ProductId, Quantity: item.Quantity})
		}
		totals, err := p.pricing.WithTx(tx).CalculateOrderTotal(ctx, lines, &customer.ID, segment)
		if err != nil {
			return err
		}

		termDays := 0
		status := models.OrderStatusPending
		if input.PaymentMethod == models.PaymentMethodTempo {
			termDays = customer.PaymentTermDays
			if input.PaymentTermDays != nil {
				termDays = *input.PaymentTermDays
			}
			if termDays <= 0 {
				return &ValidationError{
					Message: "tempo orders need a positive payment term",
					Fields:  map[string]string{"NewOrder.PaymentTermDays": "gt"},
				}
			}
			decision, err := p.credit.WithTx(tx).ValidateCreditLimit(ctx, customer.ID, totals.Total)
			if err != nil {
				return err
			}
			if !decision.Approved {
				return &CreditDeniedError{CustomerId: customer.ID, Decision: *decision}
			}
			status = models.OrderStatusPendingApproval
		}

		now := p.Clock.now()
		number, err := models.GenerateOrderNumber(ctx, tx, now)
		if err != nil {
			return err
		}
		order = &models.Order{
			OrderNumber:     number,
			CustomerId:      customer.ID,
			CustomerType:    segment,
			Status:          models.OrderStatusDraft,
			PaymentStatus:   models.OrderPaymentStatusUnpaid,
			PaymentMethod:   input.PaymentMethod,
			PaymentTermDays: termDays,
			ProjectName:     input.ProjectName,
			Notes:           input.Notes,
			Subtotal:        totals.Subtotal,
			DiscountPercent: totals.DiscountPercent,
			DiscountAmount:  totals.DiscountAmount,
			TaxAmount:       totals.TaxAmount,
			TotalAmount:     totals.Total,
			OrderDate:       now,
			CreatedBy:       input.ActorId,
		}
		if err := order.TransitionTo(status); err != nil {
			return err
		}
		for _, line := range totals.Lines {
			order.Items = append(order.Items, models.OrderItem{
				ProductId:    line.ProductId,
				Quantity:     line.Quantity,
				BasePrice:    line.BasePrice,
				UnitPrice:    line.UnitPrice,
				TotalPrice:   line.TotalPrice,
				PriceLevelId: line.PriceLevelId,
			})
		}
		if err := tx.Create(order).Error; err != nil {
			return err
		}

		stock := p.stock.WithTx(tx)
		for _, item := range order.Items {
			if _, err := stock.ReserveStock(ctx, item.ProductId, item.Quantity, order.ID, input.ActorId); err != nil {
				return err
			}
		}

		if order.IsTempo() {
			term := &models.PaymentTerm{
				OrderId:    order.ID,
				CustomerId: customer.ID,
				Amount:     order.TotalAmount,
				PaidAmount: decimal.Zero,
				DueDate:    utils.StartOfDay(now).AddDate(0, 0, termDays),
				Status:     models.PaymentTermStatusPending,
			}
			if err := tx.Create(term).Error; err != nil {
				return err
			}
			order.PaymentTerm = term
			if _, err := p.credit.WithTx(tx).RefreshCustomerCredit(ctx, customer.ID); err != nil {
				return err
			}
		}

		_, err = models.PublishOrderEvent(ctx, tx, models.OrderEventTypePlaced, order, now)
		return err
	})
	if err != nil {
		logFailure(p.logger, "OrderProcessor", "ProcessOrder", "transaction", input, err)
		return nil, err
	}
	p.logOrder(ctx, order, "order placed")
	return order, nil
}

// lockAndCheckLines locks every product in ascending id order, then checks it can be sold
// in the requested quantity. Repeated products are checked against their combined quantity.
func (p *OrderProcessor) lockAndCheckLines(ctx context.Context, tx *gorm.DB, items []NewOrderItem) error {
	required := make(map[int]int)
	for i, item := range items {
		if item.Quantity <= 0 {
			return &ValidationError{
				Message: "quantity must be greater than zero",
				Fields:  map[string]string{fmt.Sprintf("NewOrder.Items[%d].Quantity", i): "gt"},
			}
		}
		required[item.ProductId] += item.Quantity
	}
	ids := make([]int, 0, len(required))
	for id := range required {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	products := make(map[int]*models.Product, len(ids))
	for _, id := range ids {
		product, err := lockProduct(ctx, tx, id)
		if err != nil {
			return err
		}
		products[id] = product
	}

	for i, item := range items {
		product := products[item.ProductId]
		if !product.IsActive {
			return &ValidationError{
				Message: fmt.Sprintf("product %s is not available for sale", product.Sku),
				Fields:  map[string]string{fmt.Sprintf("NewOrder.Items[%d].ProductId", i): "active"},
			}
		}
		if item.Quantity < product.EffectiveMinimumOrderQty() {
			return &ValidationError{
				Message: fmt.Sprintf("product %s has a minimum order of %d %s", product.Sku, product.EffectiveMinimumOrderQty(), product.Unit),
				Fields:  map[string]string{fmt.Sprintf("NewOrder.Items[%d].Quantity", i): "min"},
			}
		}
	}
	for _, id := range ids {
		product := products[id]
		available := product.AvailableStock()
		if available < required[id] {
			return &InsufficientStockError{
				ProductId:    id,
				CurrentStock: product.CurrentStock,
				Available:    available,
				Required:     required[id],
			}
		}
	}
	return nil
}

// ApproveOrder confirms a tempo order waiting for credit approval.
func (p *OrderProcessor) ApproveOrder(ctx context.Context, orderId int, approvedBy *int) (*models.Order, error) {
	return p.transition(ctx, "ApproveOrder", orderId, "approved", func(tx *gorm.DB, order *models.Order) error {
		if order.Status != models.OrderStatusPendingApproval {
			return stateError(order, "approved", ReasonNotPendingApproval)
		}
		now := p.Clock.now()
		order.ApprovedBy = approvedBy
		order.ApprovedAt = &now
		return order.TransitionTo(models.OrderStatusConfirmed)
	})
}

// ConfirmOrder confirms a cash or transfer order once payment has been received.
func (p *OrderProcessor) ConfirmOrder(ctx context.Context, orderId int, actorId *int) (*models.Order, error) {
	return p.transition(ctx, "ConfirmOrder", orderId, "confirmed", func(tx *gorm.DB, order *models.Order) error {
		if order.Status != models.OrderStatusPending {
			return stateError(order, "confirmed", ReasonNotPending)
		}
		now := p.Clock.now()
		order.ApprovedBy = actorId
		order.ApprovedAt = &now
		return order.TransitionTo(models.OrderStatusConfirmed)
	})
}

// CancelOrder releases reservations, puts already picked goods back on the shelf
// and cancels the open receivable.
func (p *OrderProcessor) CancelOrder(ctx context.Context, orderId int, reason string, actorId *int) (*models.Order, error) {
	return p.transition(ctx, "CancelOrder", orderId, "cancelled", func(tx *gorm.DB, order *models.Order) error {
		if order.Status == models.OrderStatusCancelled {
			return stateError(order, "cancelled", ReasonAlreadyCancelled)
		}
		if order.IsProcessed() {
			return stateError(order, "cancelled", ReasonAlreadyProcessed)
		}
		stock := p.stock.WithTx(tx)
		returnStock := order.StockWasFulfilled()
		for _, line := range orderProductTotals(order) {
			if _, err := stock.ReleaseReservedStock(ctx, line.ProductId, order.ID, actorId); err != nil {
				return err
			}
			if !returnStock {
				continue
			}
			if _, err := stock.StockIn(ctx, NewStockMovement{
				ProductId:     line.ProductId,
				Quantity:      line.Quantity,
				ReferenceType: models.StockReferenceTypeReturn,
				ReferenceId:   intPtr(order.ID),
				Notes:         fmt.Sprintf("returned from cancelled order %s", order.OrderNumber),
				ActorId:       actorId,
			}); err != nil {
				return err
			}
		}

		if err := tx.Model(&models.DeliveryNote{}).
			Where("order_id = ? AND status = ?", order.ID, models.DeliveryNoteStatusPrepared).
			Update("status", models.DeliveryNoteStatusCancelled).Error; err != nil {
			return err
		}

		note := "Cancelled"
		if reason != "" {
			note += ": " + reason
		}
		if order.IsTempo() {
			// credit row before its terms, the order ProcessOrder locks them in
			if _, err := lockCustomerCredit(ctx, tx, order.CustomerId); err != nil {
				return err
			}
		}
		var terms []models.PaymentTerm
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("order_id = ?", order.ID).Find(&terms).Error; err != nil {
			return err
		}
		for i := range terms {
			if !terms[i].IsOutstanding() {
				continue
			}
			if terms[i].PaidAmount.IsPositive() {
				note += fmt.Sprintf("; %s already paid on payment term %d, refund due",
					terms[i].PaidAmount.StringFixed(0), terms[i].ID)
			}
			terms[i].Cancel()
			if err := tx.Model(&terms[i]).Update("status", terms[i].Status).Error; err != nil {
				return err
			}
		}
		if len(terms) > 0 {
			if _, err := p.credit.WithTx(tx).RefreshCustomerCredit(ctx, order.CustomerId); err != nil {
				return err
			}
		}

		now := p.Clock.now()
		order.CancelledAt = &now
		order.Notes = utils.AppendNote(order.Notes, note)
		return order.TransitionTo(models.OrderStatusCancelled)
	})
}

// ProcessForShipping turns the order's reservations into real stock-outs.
func (p *OrderProcessor) ProcessForShipping(ctx context.Context, orderId int, actorId *int) (*models.Order, error) {
	return p.transition(ctx, "ProcessForShipping", orderId, "processed", func(tx *gorm.DB, order *models.Order) error {
		if order.Status != models.OrderStatusConfirmed {
			return stateError(order, "processed", ReasonNotConfirmed)
		}
		if err := p.fulfil(ctx, tx, order, actorId); err != nil {
			return err
		}
		return order.TransitionTo(models.OrderStatusProcessing)
	})
}

// CreateDeliveryNote prepares the delivery document. Confirmed orders are picked first.
func (p *OrderProcessor) CreateDeliveryNote(ctx context.Context, orderId int, input NewDeliveryNote, actorId *int) (note *models.DeliveryNote, err error) {
	if err := validationFromStruct(&input, "invalid delivery note"); err != nil {
		return nil, err
	}
	_, err = p.transition(ctx, "CreateDeliveryNote", orderId, "sent for delivery", func(tx *gorm.DB, order *models.Order) error {
		if order.Status != models.OrderStatusConfirmed && order.Status != models.OrderStatusProcessing {
			return stateError(order, "sent for delivery", ReasonNotReadyForDelivery)
		}
		if order.Status == models.OrderStatusConfirmed {
			if err := p.fulfil(ctx, tx, order, actorId); err != nil {
				return err
			}
		}

		now := p.Clock.now()
		number, err := models.GenerateDeliveryNumber(ctx, tx, now)
		if err != nil {
			return err
		}
		deliveryDate := now
		if input.DeliveryDate != nil {
			deliveryDate = input.DeliveryDate.UTC()
		}
		note = &models.DeliveryNote{
			DeliveryNumber:  number,
			OrderId:         order.ID,
			Status:          models.DeliveryNoteStatusPrepared,
			DeliveryDate:    deliveryDate,
			DriverName:      input.DriverName,
			VehicleNumber:   input.VehicleNumber,
			RecipientName:   input.RecipientName,
			DeliveryAddress: input.DeliveryAddress,
			Notes:           input.Notes,
			CreatedBy:       actorId,
		}
		for _, item := range order.Items {
			note.Items = append(note.Items, models.DeliveryNoteItem{
				OrderItemId: item.ID,
				ProductId:   item.ProductId,
				Quantity:    item.Quantity,
			})
		}
		if err := tx.Create(note).Error; err != nil {
			return err
		}
		return order.TransitionTo(models.OrderStatusReadyForDelivery)
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

func (p *OrderProcessor) MarkShipped(ctx context.Context, orderId int, actorId *int) (*models.Order, error) {
	return p.advance(ctx, "MarkShipped", orderId, "shipped", models.OrderStatusReadyForDelivery, models.OrderStatusShipped, ReasonNotReadyForDelivery)
}

func (p *OrderProcessor) MarkDelivered(ctx context.Context, orderId int, actorId *int) (*models.Order, error) {
	return p.advance(ctx, "MarkDelivered", orderId, "delivered", models.OrderStatusShipped, models.OrderStatusDelivered, ReasonNotShipped)
}

func (p *OrderProcessor) CompleteOrder(ctx context.Context, orderId int, actorId *int) (*models.Order, error) {
	return p.advance(ctx, "CompleteOrder", orderId, "completed", models.OrderStatusDelivered, models.OrderStatusCompleted, ReasonNotDelivered)
}

func (p *OrderProcessor) advance(ctx context.Context, funcName string, orderId int, operation string, from models.OrderStatus, to models.OrderStatus, reason StateTransitionReason) (*models.Order, error) {
	return p.transition(ctx, funcName, orderId, operation, func(tx *gorm.DB, order *models.Order) error {
		if order.Status != from {
			return stateError(order, operation, reason)
		}
		return order.TransitionTo(to)
	})
}

// GetOrder loads an order with its items and payment term.
func (p *OrderProcessor) GetOrder(ctx context.Context, orderId int) (*models.Order, error) {
	return utils.FetchModel[models.Order](ctx, p.db, orderId, "Items", "PaymentTerm")
}

// GetOrderEvents lists the publish state of the order's outbox events.
func (p *OrderProcessor) GetOrderEvents(ctx context.Context, orderId int) ([]models.OutboxStatus, error) {
	if _, err := utils.FetchModel[models.Order](ctx, p.db, orderId); err != nil {
		return nil, err
	}
	return models.GetOrderEventStatuses(ctx, p.db, orderId)
}

// RequeueOrderEvents sends the order's DEAD events back to the dispatcher.
func (p *OrderProcessor) RequeueOrderEvents(ctx context.Context, orderId int, actorId *int) ([]models.OutboxStatus, error) {
	if _, err := utils.FetchModel[models.Order](ctx, p.db, orderId); err != nil {
		return nil, err
	}
	requeued, err := models.RequeueDeadOrderEvents(ctx, p.db, orderId, p.Clock.now())
	if err != nil {
		logFailure(p.logger, "OrderProcessor", "RequeueOrderEvents", "requeue", orderId, err)
		return nil, err
	}
	if requeued > 0 {
		fields := logrus.Fields{"order_id": orderId, "requeued": requeued}
		if actorId != nil {
			fields["actor_id"] = *actorId
		}
		p.logger.WithFields(fields).Warn("dead order events requeued")
	}
	return models.GetOrderEventStatuses(ctx, p.db, orderId)
}

// transition locks the order, lets fn check and mutate it, and saves the header.
// fn must change Status only through Order.TransitionTo.
func (p *OrderProcessor) transition(ctx context.Context, funcName string, orderId int, operation string, fn func(tx *gorm.DB, order *models.Order) error) (order *models.Order, err error) {
	ctx, span := p.tracer.Start(ctx, "OrderProcessor."+funcName, trace.WithAttributes(attribute.Int("order_id", orderId)))
	defer func() { endSpan(span, err) }()

	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err = lockOrder(ctx, tx, orderId)
		if err != nil {
			return err
		}
		if err := fn(tx, order); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Save(order).Error
	})
	if err != nil {
		logFailure(p.logger, "OrderProcessor", funcName, "transaction", orderId, err)
		return nil, err
	}
	p.logOrder(ctx, order, "order "+operation)
	return order, nil
}

// fulfil converts every hold of the order into a stock-out.
func (p *OrderProcessor) fulfil(ctx context.Context, tx *gorm.DB, order *models.Order, actorId *int) error {
	stock := p.stock.WithTx(tx)
	for _, line := range orderProductTotals(order) {
		if _, err := stock.FulfillReservedStock(ctx, line.ProductId, order.ID, actorId); err != nil {
			return err
		}
	}
	now := p.Clock.now()
	order.ProcessedAt = &now
	return nil
}

func lockOrder(ctx context.Context, tx *gorm.DB, orderId int) (*models.Order, error) {
	order, err := utils.FetchModelForUpdate[models.Order](ctx, tx, orderId)
	if err != nil {
		return nil, err
	}
	if err := tx.WithContext(ctx).Where("order_id = ?", order.ID).Order("id ASC").Find(&order.Items).Error; err != nil {
		return nil, err
	}
	return order, nil
}

// orderProductTotals sums item quantities per product, ascending by product id.
func orderProductTotals(order *models.Order) []NewOrderItem {
	totals := make(map[int]int)
	for _, item := range order.Items {
		totals[item.ProductId] += item.Quantity
	}
	lines := make([]NewOrderItem, 0, len(totals))
	for id, qty := range totals {
		lines = append(lines, NewOrderItem{ProductId: id, Quantity: qty})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductId < lines[j].ProductId })
	return lines
}

func stateError(order *models.Order, operation string, reason StateTransitionReason) error {
	return &InvalidStateTransitionError{
		OrderId:       order.ID,
		Operation:     operation,
		CurrentStatus: order.Status,
		Reason:        reason,
	}
}

func (p *OrderProcessor) logOrder(ctx context.Context, order *models.Order, message string) {
	if p.logger == nil || order == nil {
		return
	}
	fields := logrus.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"status":       order.Status,
	}
	if correlationId, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		fields["correlation_id"] = correlationId
	}
	p.logger.WithFields(fields).Info(message)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

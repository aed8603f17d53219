package service

import (
	"context"
	"fmt"

	"github.com/bangunmart/fulfillment_backend/models"
	"github.com/bangunmart/fulfillment_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockManager owns the inventory ledger. Product.CurrentStock and Product.ReservedStock are
// only written here, always together with the StockMovement row that explains the change.
// Both are read from the locked product row, never from an aggregate over the ledger,
// so a check made after the lock sees every committed hold.
type StockManager struct {
	db     *gorm.DB
	logger *logrus.Logger
	Clock  Clock
}

func NewStockManager(db *gorm.DB, logger *logrus.Logger) *StockManager {
	return &StockManager{db: db, logger: logger, Clock: SystemClock}
}

// WithTx returns a copy bound to tx; its calls join the caller's transaction.
func (s *StockManager) WithTx(tx *gorm.DB) *StockManager {
	c := *s
	c.db = tx
	return &c
}

type NewStockMovement struct {
	ProductId     int                       `json:"product_id" validate:"required,gt=0"`
	Quantity      int                       `json:"quantity" validate:"gt=0"`
	ReferenceType models.StockReferenceType `json:"reference_type" validate:"required"`
	ReferenceId   *int                      `json:"reference_id"`
	Notes         string                    `json:"notes"`
	ActorId       *int                      `json:"actor_id"`
	AllowNegative bool                      `json:"allow_negative"`
}

func (input *NewStockMovement) validate() error {
	if err := validationFromStruct(input, "invalid stock movement"); err != nil {
		return err
	}
	if !input.ReferenceType.IsValid() {
		return &ValidationError{
			Message: "invalid stock movement",
			Fields:  map[string]string{"NewStockMovement.ReferenceType": "oneof"},
		}
	}
	return nil
}

type NewStockAdjustment struct {
	ProductId   int    `json:"product_id" validate:"required,gt=0"`
	ActualStock int    `json:"actual_stock" validate:"gte=0"`
	Reason      string `json:"reason" validate:"required"`
	Notes       string `json:"notes"`
	ActorId     *int   `json:"actor_id"`
}

type StockReconciliation struct {
	ProductId      int  `json:"product_id"`
	CurrentStock   int  `json:"current_stock"`
	LedgerStock    int  `json:"ledger_stock"`
	Difference     int  `json:"difference"`
	ReservedStock  int  `json:"reserved_stock"`
	LedgerReserved int  `json:"ledger_reserved"`
	IsConsistent   bool `json:"is_consistent"`
}

// StockIn adds quantity to on-hand stock.
func (s *StockManager) StockIn(ctx context.Context, input NewStockMovement) (*models.StockMovement, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	var movement *models.StockMovement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := lockProduct(ctx, tx, input.ProductId)
		if err != nil {
			return err
		}
		movement, err = s.applyMovement(tx, product, models.StockMovementTypeIn, input.Quantity, input)
		return err
	})
	if err != nil {
		logFailure(s.logger, "StockManager", "StockIn", "transaction", input, err)
		return nil, err
	}
	s.logMovement(movement)
	return movement, nil
}

// StockOut removes quantity from on-hand stock. Without AllowNegative it refuses to go below zero
// and leaves the ledger untouched.
func (s *StockManager) StockOut(ctx context.Context, input NewStockMovement) (*models.StockMovement, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	var movement *models.StockMovement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := lockProduct(ctx, tx, input.ProductId)
		if err != nil {
			return err
		}
		movement, err = s.stockOutLocked(ctx, tx, product, input)
		return err
	})
	if err != nil {
		logFailure(s.logger, "StockManager", "StockOut", "transaction", input, err)
		return nil, err
	}
	s.logMovement(movement)
	return movement, nil
}

func (s *StockManager) stockOutLocked(ctx context.Context, tx *gorm.DB, product *models.Product, input NewStockMovement) (*models.StockMovement, error) {
	if !input.AllowNegative && product.CurrentStock < input.Quantity {
		return nil, &InsufficientStockError{
			ProductId:    product.ID,
			CurrentStock: product.CurrentStock,
			Available:    product.CurrentStock,
			Required:     input.Quantity,
		}
	}
	return s.applyMovement(tx, product, models.StockMovementTypeOut, -input.Quantity, input)
}

// StockAdjustment sets on-hand stock to a physically counted value.
// It returns nil without writing anything when the count already matches.
func (s *StockManager) StockAdjustment(ctx context.Context, input NewStockAdjustment) (*models.StockMovement, error) {
	if err := validationFromStruct(&input, "invalid stock adjustment"); err != nil {
		return nil, err
	}
	var movement *models.StockMovement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := lockProduct(ctx, tx, input.ProductId)
		if err != nil {
			return err
		}
		difference := input.ActualStock - product.CurrentStock
		if difference == 0 {
			return nil
		}
		direction := models.AdjustmentDirectionIncrease
		if difference < 0 {
			direction = models.AdjustmentDirectionDecrease
		}
		movement = &models.StockMovement{
			ProductId:           product.ID,
			Type:                models.StockMovementTypeAdjustment,
			Quantity:            difference,
			ReferenceType:       models.StockReferenceTypeAdjustment,
			PreviousStock:       product.CurrentStock,
			NewStock:            input.ActualStock,
			AdjustmentDirection: direction,
			Notes:               utils.AppendNote(input.Reason, input.Notes),
			CreatedBy:           input.ActorId,
			CreatedAt:           s.Clock.now(),
		}
		if err := tx.Create(movement).Error; err != nil {
			return err
		}
		// set directly, never by delta
		if err := setProductStock(tx, product.ID, input.ActualStock); err != nil {
			return err
		}
		product.CurrentStock = input.ActualStock
		return nil
	})
	if err != nil {
		logFailure(s.logger, "StockManager", "StockAdjustment", "transaction", input, err)
		return nil, err
	}
	if movement != nil {
		s.logMovement(movement)
	}
	return movement, nil
}

// ReserveStock places a hold for an order. On-hand stock is untouched; the hold
// reduces what GetAvailableStock reports until it is released or fulfilled.
func (s *StockManager) ReserveStock(ctx context.Context, productId int, quantity int, orderId int, actorId *int) (*models.StockMovement, error) {
	if quantity <= 0 {
		return nil, newValidationError("reservation quantity must be greater than zero")
	}
	if orderId <= 0 {
		return nil, newValidationError("reservation requires an order")
	}
	var movement *models.StockMovement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := lockProduct(ctx, tx, productId)
		if err != nil {
			return err
		}
		available := product.AvailableStock()
		if available < quantity {
			return &InsufficientStockError{
				ProductId:    product.ID,
				CurrentStock: product.CurrentStock,
				Available:    available,
				Required:     quantity,
			}
		}
		movement = &models.StockMovement{
			ProductId:     product.ID,
			Type:          models.StockMovementTypeReserved,
			Quantity:      quantity,
			ReferenceType: models.StockReferenceTypeOrder,
			ReferenceId:   intPtr(orderId),
			PreviousStock: product.CurrentStock,
			NewStock:      product.CurrentStock,
			Notes:         fmt.Sprintf("reserved for order %d", orderId),
			CreatedBy:     actorId,
			CreatedAt:     s.Clock.now(),
		}
		if err := tx.Create(movement).Error; err != nil {
			return err
		}
		return setProductReserved(tx, product, product.ReservedStock+quantity)
	})
	if err != nil {
		logFailure(s.logger, "StockManager", "ReserveStock", "transaction", map[string]int{"product_id": productId, "order_id": orderId, "quantity": quantity}, err)
		return nil, err
	}
	s.logMovement(movement)
	return movement, nil
}

// ReleaseReservedStock closes every active hold of the order on the product.
// It reports false when there was nothing to release, so repeated calls are harmless.
func (s *StockManager) ReleaseReservedStock(ctx context.Context, productId int, orderId int, actorId *int) (bool, error) {
	released := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := lockProduct(ctx, tx, productId)
		if err != nil {
			return err
		}
		holds, err := activeReservations(ctx, tx, product.ID, orderId)
		if err != nil {
			return err
		}
		for _, hold := range holds {
			if _, err := s.closeReservation(tx, product, hold, models.StockMovementTypeReservationReleased, actorId); err != nil {
				return err
			}
		}
		released = len(holds) > 0
		return nil
	})
	if err != nil {
		logFailure(s.logger, "StockManager", "ReleaseReservedStock", "transaction", map[string]int{"product_id": productId, "order_id": orderId}, err)
		return false, err
	}
	if released {
		s.logger.WithFields(logrus.Fields{
			"product_id": productId,
			"order_id":   orderId,
		}).Info("stock reservation released")
	}
	return released, nil
}

// FulfillReservedStock closes the order's holds on the product and books the actual stock-out.
// It returns nil when the order holds nothing on the product.
func (s *StockManager) FulfillReservedStock(ctx context.Context, productId int, orderId int, actorId *int) (*models.StockMovement, error) {
	var movement *models.StockMovement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := lockProduct(ctx, tx, productId)
		if err != nil {
			return err
		}
		holds, err := activeReservations(ctx, tx, product.ID, orderId)
		if err != nil {
			return err
		}
		if len(holds) == 0 {
			return nil
		}
		total := 0
		for _, hold := range holds {
			if _, err := s.closeReservation(tx, product, hold, models.StockMovementTypeReservationFulfilled, actorId); err != nil {
				return err
			}
			total += hold.Quantity
		}
		movement, err = s.stockOutLocked(ctx, tx, product, NewStockMovement{
			ProductId:     product.ID,
			Quantity:      total,
			ReferenceType: models.StockReferenceTypeOrder,
			ReferenceId:   intPtr(orderId),
			Notes:         fmt.Sprintf("fulfilled reservation for order %d", orderId),
			ActorId:       actorId,
		})
		return err
	})
	if err != nil {
		logFailure(s.logger, "StockManager", "FulfillReservedStock", "transaction", map[string]int{"product_id": productId, "order_id": orderId}, err)
		return nil, err
	}
	if movement != nil {
		s.logMovement(movement)
	}
	return movement, nil
}

func (s *StockManager) closeReservation(tx *gorm.DB, product *models.Product, hold models.StockMovement, closing models.StockMovementType, actorId *int) (*models.StockMovement, error) {
	event := &models.StockMovement{
		ProductId:     product.ID,
		Type:          closing,
		Quantity:      hold.Quantity,
		ReferenceType: hold.ReferenceType,
		ReferenceId:   hold.ReferenceId,
		PreviousStock: product.CurrentStock,
		NewStock:      product.CurrentStock,
		ReservationId: intPtr(hold.ID),
		CreatedBy:     actorId,
		CreatedAt:     s.Clock.now(),
	}
	if err := tx.Create(event).Error; err != nil {
		return nil, err
	}
	if err := setProductReserved(tx, product, product.ReservedStock-hold.Quantity); err != nil {
		return nil, err
	}
	return event, nil
}

// applyMovement writes a non-reserved ledger row and moves the cached stock by delta.
func (s *StockManager) applyMovement(tx *gorm.DB, product *models.Product, movementType models.StockMovementType, delta int, input NewStockMovement) (*models.StockMovement, error) {
	newStock := product.CurrentStock + delta
	movement := &models.StockMovement{
		ProductId:     product.ID,
		Type:          movementType,
		Quantity:      delta,
		ReferenceType: input.ReferenceType,
		ReferenceId:   input.ReferenceId,
		PreviousStock: product.CurrentStock,
		NewStock:      newStock,
		Notes:         input.Notes,
		CreatedBy:     input.ActorId,
		CreatedAt:     s.Clock.now(),
	}
	if err := tx.Create(movement).Error; err != nil {
		return nil, err
	}
	if err := setProductStock(tx, product.ID, newStock); err != nil {
		return nil, err
	}
	product.CurrentStock = newStock
	return movement, nil
}

func (s *StockManager) logMovement(m *models.StockMovement) {
	if m == nil || s.logger == nil {
		return
	}
	s.logger.WithFields(logrus.Fields{
		"product_id":     m.ProductId,
		"type":           m.Type,
		"quantity":       m.Quantity,
		"previous_stock": m.PreviousStock,
		"new_stock":      m.NewStock,
		"reference_type": m.ReferenceType,
	}).Info("stock movement recorded")
}

func lockProduct(ctx context.Context, tx *gorm.DB, productId int) (*models.Product, error) {
	return utils.FetchModelForUpdate[models.Product](ctx, tx, productId)
}

func setProductStock(tx *gorm.DB, productId int, stock int) error {
	return tx.Model(&models.Product{}).Where("id = ?", productId).Update("current_stock", stock).Error
}

// setProductReserved stores the held total of a locked product.
func setProductReserved(tx *gorm.DB, product *models.Product, reserved int) error {
	if reserved < 0 {
		return fmt.Errorf("product %d reserved stock would drop to %d", product.ID, reserved)
	}
	if err := tx.Model(&models.Product{}).Where("id = ?", product.ID).Update("reserved_stock", reserved).Error; err != nil {
		return err
	}
	product.ReservedStock = reserved
	return nil
}

const activeHoldCondition = "NOT EXISTS (SELECT 1 FROM stock_movements closing WHERE closing.reservation_id = stock_movements.id)"

func activeReservations(ctx context.Context, tx *gorm.DB, productId int, orderId int) ([]models.StockMovement, error) {
	var holds []models.StockMovement
	err := activeReservationsForUpdate(tx.WithContext(ctx), productId, orderId).Find(&holds).Error
	return holds, err
}

// activeReservationsForUpdate locks the order's open holds so a concurrent release or fulfil
// of the same holds waits and then sees the closing rows.
func activeReservationsForUpdate(tx *gorm.DB, productId int, orderId int) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND type = ? AND reference_type = ? AND reference_id = ?",
			productId, models.StockMovementTypeReserved, models.StockReferenceTypeOrder, orderId).
		Where(activeHoldCondition).
		Order("id ASC")
}

// reservedQuantity folds the active holds from the ledger. Only reconciliation uses it.
func reservedQuantity(ctx context.Context, db *gorm.DB, productId int) (int, error) {
	var total int64
	err := db.WithContext(ctx).Model(&models.StockMovement{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("product_id = ? AND type = ?", productId, models.StockMovementTypeReserved).
		Where(activeHoldCondition).
		Scan(&total).Error
	return int(total), err
}

/* Queries */

func (s *StockManager) GetCurrentStock(ctx context.Context, productId int) (int, error) {
	product, err := utils.FetchModel[models.Product](ctx, s.db, productId)
	if err != nil {
		return 0, err
	}
	return product.CurrentStock, nil
}

// GetReservedStock is the total of the product's active holds.
func (s *StockManager) GetReservedStock(ctx context.Context, productId int) (int, error) {
	product, err := utils.FetchModel[models.Product](ctx, s.db, productId)
	if err != nil {
		return 0, err
	}
	return product.ReservedStock, nil
}

// GetAvailableStock is on-hand stock minus active holds.
func (s *StockManager) GetAvailableStock(ctx context.Context, productId int) (int, error) {
	product, err := utils.FetchModel[models.Product](ctx, s.db, productId)
	if err != nil {
		return 0, err
	}
	return product.AvailableStock(), nil
}

// ValidateStockAvailability returns an *InsufficientStockError when quantity cannot be served.
func (s *StockManager) ValidateStockAvailability(ctx context.Context, productId int, quantity int) error {
	product, err := utils.FetchModel[models.Product](ctx, s.db, productId)
	if err != nil {
		return err
	}
	available := product.AvailableStock()
	if available < quantity {
		return &InsufficientStockError{
			ProductId:    productId,
			CurrentStock: product.CurrentStock,
			Available:    available,
			Required:     quantity,
		}
	}
	return nil
}

// GetLowStockProducts lists active products at or below their reorder level.
func (s *StockManager) GetLowStockProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.WithContext(ctx).
		Where("is_active = ? AND current_stock <= reorder_level", true).
		Order("current_stock ASC, id ASC").
		Find(&products).Error
	return products, err
}

func (s *StockManager) NeedsReordering(ctx context.Context, productId int) (bool, error) {
	product, err := utils.FetchModel[models.Product](ctx, s.db, productId)
	if err != nil {
		return false, err
	}
	return product.NeedsReordering(), nil
}

// GetStockMovements returns the product's ledger in creation order.
func (s *StockManager) GetStockMovements(ctx context.Context, productId int) ([]models.StockMovement, error) {
	var movements []models.StockMovement
	err := s.db.WithContext(ctx).
		Where("product_id = ?", productId).
		Order("id ASC").
		Find(&movements).Error
	return movements, err
}

// ReconcileStock folds the ledger and compares it with the cached on-hand and reserved totals.
func (s *StockManager) ReconcileStock(ctx context.Context, productId int) (*StockReconciliation, error) {
	product, err := utils.FetchModel[models.Product](ctx, s.db, productId)
	if err != nil {
		return nil, err
	}
	var ledger int64
	if err := s.db.WithContext(ctx).Model(&models.StockMovement{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("product_id = ? AND is_reserved = ?", productId, false).
		Scan(&ledger).Error; err != nil {
		return nil, err
	}
	held, err := reservedQuantity(ctx, s.db, productId)
	if err != nil {
		return nil, err
	}
	return &StockReconciliation{
		ProductId:      productId,
		CurrentStock:   product.CurrentStock,
		LedgerStock:    int(ledger),
		Difference:     product.CurrentStock - int(ledger),
		ReservedStock:  product.ReservedStock,
		LedgerReserved: held,
		IsConsistent:   product.CurrentStock == int(ledger) && product.ReservedStock == held,
	}, nil
}

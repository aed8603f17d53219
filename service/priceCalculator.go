package service

import (
	"context"
	"fmt"

	"github.com/bangunmart/fulfillment_backend/config"
	"github.com/bangunmart/fulfillment_backend/models"
	"github.com/bangunmart/fulfillment_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	// PPN
	TaxPercent = decimal.NewFromInt(11)

	volumeDiscountBrackets = []struct {
		MinSubtotal decimal.Decimal
		Percent     decimal.Decimal
	}{
		{decimal.NewFromInt(50_000_000), decimal.NewFromInt(5)},
		{decimal.NewFromInt(20_000_000), decimal.NewFromInt(3)},
		{decimal.NewFromInt(10_000_000), decimal.NewFromInt(2)},
	}

	segmentDiscountPercent = map[models.CustomerType]decimal.Decimal{
		models.CustomerTypeDistributor: decimal.NewFromInt(2),
		models.CustomerTypeContractor:  decimal.NewFromInt(1),
		models.CustomerTypeWholesale:   decimal.RequireFromString("0.5"),
		models.CustomerTypeRetail:      decimal.Zero,
	}
)

type PriceCalculator struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewPriceCalculator(db *gorm.DB, logger *logrus.Logger) *PriceCalculator {
	return &PriceCalculator{db: db, logger: logger}
}

func (p *PriceCalculator) WithTx(tx *gorm.DB) *PriceCalculator {
	c := *p
	c.db = tx
	return &c
}

type PriceBreakdown struct {
	ProductId        int                 `json:"product_id"`
	Quantity         int                 `json:"quantity"`
	CustomerType     models.CustomerType `json:"customer_type"`
	BasePrice        decimal.Decimal     `json:"base_price"`
	UnitPrice        decimal.Decimal     `json:"unit_price"`
	TotalPrice       decimal.Decimal     `json:"total_price"`
	Savings          decimal.Decimal     `json:"savings"`
	PriceLevelId     *int                `json:"price_level_id"`
	CustomerDiscount decimal.Decimal     `json:"customer_discount"`
}

type OrderLine struct {
	ProductId int `json:"product_id" validate:"required,gt=0"`
	Quantity  int `json:"quantity" validate:"gt=0"`
}

type OrderTotals struct {
	Lines                  []PriceBreakdown `json:"lines"`
	Subtotal               decimal.Decimal  `json:"subtotal"`
	VolumeDiscountPercent  decimal.Decimal  `json:"volume_discount_percent"`
	SegmentDiscountPercent decimal.Decimal  `json:"segment_discount_percent"`
	DiscountPercent        decimal.Decimal  `json:"discount_percent"`
	DiscountAmount         decimal.Decimal  `json:"discount_amount"`
	AfterDiscount          decimal.Decimal  `json:"after_discount"`
	TaxPercent             decimal.Decimal  `json:"tax_percent"`
	TaxAmount              decimal.Decimal  `json:"tax_amount"`
	Total                  decimal.Decimal  `json:"total"`
}

// CalculatePrice prices quantity units of a product for the segment.
// Without a qualifying tier the product's base price applies.
func (p *PriceCalculator) CalculatePrice(ctx context.Context, productId int, segment models.CustomerType, quantity int, customerId *int) (*PriceBreakdown, error) {
	if quantity <= 0 {
		return nil, newValidationError("quantity must be greater than zero")
	}
	if !segment.IsValid() {
		segment = models.CustomerTypeRetail
	}
	product, err := utils.FetchModel[models.Product](ctx, p.db, productId)
	if err != nil {
		return nil, err
	}
	return p.priceProduct(ctx, product, segment, quantity, customerId)
}

func (p *PriceCalculator) priceProduct(ctx context.Context, product *models.Product, segment models.CustomerType, quantity int, customerId *int) (*PriceBreakdown, error) {
	level, err := p.GetApplicablePriceLevel(ctx, product.ID, segment, quantity)
	if err != nil {
		return nil, err
	}
	unitPrice := product.BasePrice
	var levelId *int
	if level != nil {
		unitPrice = level.Price
		levelId = intPtr(level.ID)
	}
	qty := decimal.NewFromInt(int64(quantity))
	total := unitPrice.Mul(qty)
	customerDiscount := p.customerDiscount(ctx, customerId, product.ID)
	return &PriceBreakdown{
		ProductId:        product.ID,
		Quantity:         quantity,
		CustomerType:     segment,
		BasePrice:        product.BasePrice,
		UnitPrice:        unitPrice,
		TotalPrice:       total,
		Savings:          utils.MaxZero(product.BasePrice.Sub(unitPrice).Mul(qty)),
		PriceLevelId:     levelId,
		CustomerDiscount: customerDiscount,
	}, nil
}

// customerDiscount is reserved for per-customer agreements. There are none yet.
func (p *PriceCalculator) customerDiscount(ctx context.Context, customerId *int, productId int) decimal.Decimal {
	_, _, _ = ctx, customerId, productId
	return decimal.Zero
}

// GetApplicablePriceLevel resolves the tier for (product, segment, quantity).
//
// Candidates are active levels with min_quantity <= quantity, largest threshold first.
// The first level for the customer's own segment wins outright. Otherwise the cheapest
// level of an equal or lower segment is used, keeping the earliest on ties.
// A nil level means the base price applies.
func (p *PriceCalculator) GetApplicablePriceLevel(ctx context.Context, productId int, segment models.CustomerType, quantity int) (*models.PriceLevel, error) {
	key := models.PriceLevelCacheKey(productId, segment, quantity)
	var cached cachedPriceLevel
	if ok, err := utils.GetCachedObject(ctx, key, &cached); err != nil {
		config.LogError(p.logger, "PriceCalculator", "GetApplicablePriceLevel", "read price cache", key, err)
	} else if ok {
		return cached.Level, nil
	}

	var levels []models.PriceLevel
	if err := p.db.WithContext(ctx).
		Where("product_id = ? AND is_active = ? AND min_quantity <= ?", productId, true, quantity).
		Order("min_quantity DESC, id ASC").
		Find(&levels).Error; err != nil {
		return nil, err
	}
	level := selectPriceLevel(levels, segment)

	groupKey := models.PriceLevelCacheGroupKey(productId)
	if err := utils.StoreCachedObject(ctx, groupKey, key, cachedPriceLevel{Level: level}, config.PriceCacheTTL()); err != nil {
		config.LogError(p.logger, "PriceCalculator", "GetApplicablePriceLevel", "write price cache", key, err)
	} else if err := config.AddRedisSet(ctx, models.PriceLevelCacheGroupsKey, groupKey); err != nil {
		config.LogError(p.logger, "PriceCalculator", "GetApplicablePriceLevel", "register price cache group", groupKey, err)
	}
	return level, nil
}

// cachedPriceLevel lets a "no tier" answer be cached too.
type cachedPriceLevel struct {
	Level *models.PriceLevel `json:"level"`
}

func selectPriceLevel(levels []models.PriceLevel, segment models.CustomerType) *models.PriceLevel {
	for i := range levels {
		if levels[i].CustomerType == segment {
			return &levels[i]
		}
	}
	priority := segment.Priority()
	var best *models.PriceLevel
	for i := range levels {
		if levels[i].CustomerType.Priority() == 0 || levels[i].CustomerType.Priority() > priority {
			continue
		}
		if best == nil || levels[i].Price.LessThan(best.Price) {
			best = &levels[i]
		}
	}
	return best
}

// VolumeDiscountPercent picks the highest bracket the subtotal reaches.
func VolumeDiscountPercent(subtotal decimal.Decimal) decimal.Decimal {
	for _, bracket := range volumeDiscountBrackets {
		if subtotal.GreaterThanOrEqual(bracket.MinSubtotal) {
			return bracket.Percent
		}
	}
	return decimal.Zero
}

func SegmentDiscountPercent(segment models.CustomerType) decimal.Decimal {
	if pct, ok := segmentDiscountPercent[segment]; ok {
		return pct
	}
	return decimal.Zero
}

// CalculateOrderTotal prices every line and applies the volume and segment discounts,
// then tax on the discounted amount.
func (p *PriceCalculator) CalculateOrderTotal(ctx context.Context, items []OrderLine, customerId *int, segment models.CustomerType) (*OrderTotals, error) {
	if len(items) == 0 {
		return nil, newValidationError("order must contain at least one item")
	}
	if !segment.IsValid() {
		segment = models.CustomerTypeRetail
	}
	lines := make([]PriceBreakdown, 0, len(items))
	subtotal := decimal.Zero
	for _, item := range items {
		line, err := p.CalculatePrice(ctx, item.ProductId, segment, item.Quantity, customerId)
		if err != nil {
			return nil, err
		}
		lines = append(lines, *line)
		subtotal = subtotal.Add(line.TotalPrice)
	}
	return BuildOrderTotals(lines, subtotal, segment), nil
}

func BuildOrderTotals(lines []PriceBreakdown, subtotal decimal.Decimal, segment models.CustomerType) *OrderTotals {
	volume := VolumeDiscountPercent(subtotal)
	segmentPct := SegmentDiscountPercent(segment)
	discountPct := volume.Add(segmentPct)
	discount := utils.CalculateDiscountAmount(subtotal, discountPct, "P")
	afterDiscount := utils.MaxZero(subtotal.Sub(discount))
	tax := utils.CalculateTaxAmount(afterDiscount, TaxPercent)
	return &OrderTotals{
		Lines:                  lines,
		Subtotal:               subtotal,
		VolumeDiscountPercent:  volume,
		SegmentDiscountPercent: segmentPct,
		DiscountPercent:        discountPct,
		DiscountAmount:         discount,
		AfterDiscount:          afterDiscount,
		TaxPercent:             TaxPercent,
		TaxAmount:              tax,
		Total:                  afterDiscount.Add(tax),
	}
}

// InvalidatePriceCache drops every cached tier of the product.
func (p *PriceCalculator) InvalidatePriceCache(ctx context.Context, productId int) error {
	if err := models.InvalidatePriceLevelCache(ctx, productId); err != nil {
		config.LogError(p.logger, "PriceCalculator", "InvalidatePriceCache", "clear price cache", productId, err)
		return err
	}
	return nil
}

type PriceLevelInput struct {
	CustomerType models.CustomerType `json:"customer_type" validate:"required"`
	MinQuantity  int                 `json:"min_quantity" validate:"gt=0"`
	Price        decimal.Decimal     `json:"price"`
	IsActive     *bool               `json:"is_active"`
}

func (in PriceLevelInput) validate() error {
	if !in.CustomerType.IsValid() {
		return &ValidationError{
			Message: fmt.Sprintf("unknown customer type %q", in.CustomerType),
			Fields:  map[string]string{"PriceLevelInput.CustomerType": "oneof"},
		}
	}
	if in.MinQuantity <= 0 {
		return &ValidationError{
			Message: "min quantity must be greater than zero",
			Fields:  map[string]string{"PriceLevelInput.MinQuantity": "gt"},
		}
	}
	if in.Price.IsNegative() {
		return &ValidationError{
			Message: "price must not be negative",
			Fields:  map[string]string{"PriceLevelInput.Price": "gte"},
		}
	}
	return nil
}

func (in PriceLevelInput) apply(level *models.PriceLevel) {
	level.CustomerType = in.CustomerType
	level.MinQuantity = in.MinQuantity
	level.Price = in.Price
	if in.IsActive != nil {
		level.IsActive = *in.IsActive
	}
}

// CreatePriceLevel adds a tier to the product. New tiers are active unless IsActive says otherwise.
func (p *PriceCalculator) CreatePriceLevel(ctx context.Context, productId int, input PriceLevelInput) (*models.PriceLevel, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	level := &models.PriceLevel{ProductId: productId, IsActive: true}
	input.apply(level)
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := utils.FetchModel[models.Product](ctx, tx, productId); err != nil {
			return err
		}
		return tx.Create(level).Error
	})
	if err != nil {
		logFailure(p.logger, "PriceCalculator", "CreatePriceLevel", "transaction", productId, err)
		return nil, err
	}
	p.afterPriceLevelWrite(ctx, "CreatePriceLevel", productId)
	return level, nil
}

func (p *PriceCalculator) UpdatePriceLevel(ctx context.Context, levelId int, input PriceLevelInput) (*models.PriceLevel, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	var level *models.PriceLevel
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		level, err = utils.FetchModelForUpdate[models.PriceLevel](ctx, tx, levelId)
		if err != nil {
			return err
		}
		input.apply(level)
		return tx.Save(level).Error
	})
	if err != nil {
		logFailure(p.logger, "PriceCalculator", "UpdatePriceLevel", "transaction", levelId, err)
		return nil, err
	}
	p.afterPriceLevelWrite(ctx, "UpdatePriceLevel", level.ProductId)
	return level, nil
}

func (p *PriceCalculator) DeletePriceLevel(ctx context.Context, levelId int) error {
	var productId int
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		level, err := utils.FetchModelForUpdate[models.PriceLevel](ctx, tx, levelId)
		if err != nil {
			return err
		}
		productId = level.ProductId
		return tx.Delete(level).Error
	})
	if err != nil {
		logFailure(p.logger, "PriceCalculator", "DeletePriceLevel", "transaction", levelId, err)
		return err
	}
	p.afterPriceLevelWrite(ctx, "DeletePriceLevel", productId)
	return nil
}

// SetPriceLevelsActive switches every tier of the product on or off and reports how many rows changed.
func (p *PriceCalculator) SetPriceLevelsActive(ctx context.Context, productId int, isActive bool) (int64, error) {
	var affected int64
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := utils.FetchModel[models.Product](ctx, tx, productId); err != nil {
			return err
		}
		result := tx.Model(&models.PriceLevel{}).
			Where("product_id = ? AND is_active = ?", productId, !isActive).
			Update("is_active", isActive)
		affected = result.RowsAffected
		return result.Error
	})
	if err != nil {
		logFailure(p.logger, "PriceCalculator", "SetPriceLevelsActive", "transaction", productId, err)
		return 0, err
	}
	p.afterPriceLevelWrite(ctx, "SetPriceLevelsActive", productId)
	return affected, nil
}

// afterPriceLevelWrite runs after commit. A read during the transaction may
// have cached the old tier.
func (p *PriceCalculator) afterPriceLevelWrite(ctx context.Context, funcName string, productId int) {
	if err := models.InvalidatePriceLevelCache(ctx, productId); err != nil {
		config.LogError(p.logger, "PriceCalculator", funcName, "clear price cache", productId, err)
	}
	p.logger.WithFields(logrus.Fields{"product_id": productId}).Info("price levels changed")
}

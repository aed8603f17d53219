package models

type CustomerType string

const (
	CustomerTypeRetail      CustomerType = "retail"
	CustomerTypeWholesale   CustomerType = "wholesale"
	CustomerTypeContractor  CustomerType = "contractor"
	CustomerTypeDistributor CustomerType = "distributor"
)

var customerTypePriority = map[CustomerType]int{
	CustomerTypeRetail:      1,
	CustomerTypeWholesale:   2,
	CustomerTypeContractor:  3,
	CustomerTypeDistributor: 4,
}

// Priority ranks segments for cross-tier price eligibility; unknown segments rank 0.
func (t CustomerType) Priority() int {
	return customerTypePriority[t]
}

func (t CustomerType) IsValid() bool {
	_, ok := customerTypePriority[t]
	return ok
}

type OrderStatus string

const (
	OrderStatusDraft            OrderStatus = "draft"
	OrderStatusPending          OrderStatus = "pending"
	OrderStatusPendingApproval  OrderStatus = "pending_approval"
	OrderStatusConfirmed        OrderStatus = "confirmed"
	OrderStatusProcessing       OrderStatus = "processing"
	OrderStatusReadyForDelivery OrderStatus = "ready_for_delivery"
	OrderStatusShipped          OrderStatus = "shipped"
	OrderStatusDelivered        OrderStatus = "delivered"
	OrderStatusCompleted        OrderStatus = "completed"
	OrderStatusCancelled        OrderStatus = "cancelled"
)

type OrderPaymentStatus string

const (
	OrderPaymentStatusUnpaid  OrderPaymentStatus = "unpaid"
	OrderPaymentStatusPartial OrderPaymentStatus = "partial"
	OrderPaymentStatusPaid    OrderPaymentStatus = "paid"
)

type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodTransfer PaymentMethod = "transfer"
	PaymentMethodTempo    PaymentMethod = "tempo"
)

type PaymentTermStatus string

const (
	PaymentTermStatusPending   PaymentTermStatus = "pending"
	PaymentTermStatusPartial   PaymentTermStatus = "partial"
	PaymentTermStatusPaid      PaymentTermStatus = "paid"
	PaymentTermStatusOverdue   PaymentTermStatus = "overdue"
	PaymentTermStatusCancelled PaymentTermStatus = "cancelled"
)

// OutstandingPaymentTermStatuses are the statuses that still carry a receivable.
var OutstandingPaymentTermStatuses = []PaymentTermStatus{
	PaymentTermStatusPending,
	PaymentTermStatusPartial,
	PaymentTermStatusOverdue,
}

type StockMovementType string

const (
	StockMovementTypeIn                   StockMovementType = "in"
	StockMovementTypeOut                  StockMovementType = "out"
	StockMovementTypeAdjustment           StockMovementType = "adjustment"
	StockMovementTypeReserved             StockMovementType = "reserved"
	StockMovementTypeReservationReleased  StockMovementType = "reservation_released"
	StockMovementTypeReservationFulfilled StockMovementType = "reservation_fulfilled"
)

type StockReferenceType string

const (
	StockReferenceTypePurchase   StockReferenceType = "purchase"
	StockReferenceTypeOrder      StockReferenceType = "order"
	StockReferenceTypeAdjustment StockReferenceType = "adjustment"
	StockReferenceTypeReturn     StockReferenceType = "return"
	StockReferenceTypeManual     StockReferenceType = "manual"
)

func (t StockReferenceType) IsValid() bool {
	switch t {
	case StockReferenceTypePurchase, StockReferenceTypeOrder, StockReferenceTypeAdjustment,
		StockReferenceTypeReturn, StockReferenceTypeManual:
		return true
	}
	return false
}

type AdjustmentDirection string

const (
	AdjustmentDirectionIncrease AdjustmentDirection = "increase"
	AdjustmentDirectionDecrease AdjustmentDirection = "decrease"
)

type DeliveryNoteStatus string

const (
	DeliveryNoteStatusPrepared  DeliveryNoteStatus = "prepared"
	DeliveryNoteStatusCancelled DeliveryNoteStatus = "cancelled"
)

type OrderEventType string

const (
	OrderEventTypePlaced OrderEventType = "order.placed"
)

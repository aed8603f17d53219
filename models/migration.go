package models

import (
	"gorm.io/gorm"
)

func AllModels() []interface{} {
	return []interface{}{
		&Product{}, &PriceLevel{},
		&Customer{}, &CustomerCredit{}, &PaymentTerm{},
		&Order{}, &OrderItem{},
		&StockMovement{},
		&DeliveryNote{}, &DeliveryNoteItem{},
		&DailySequence{},
		&OutboxMessageRecord{},
	}
}

func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}

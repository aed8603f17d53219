package models

import (
	"time"
)

type DeliveryNote struct {
	ID              int                `gorm:"primary_key" json:"id"`
	DeliveryNumber  string             `gorm:"size:32;uniqueIndex;not null" json:"delivery_number"`
	OrderId         int                `gorm:"index;not null" json:"order_id"`
	Status          DeliveryNoteStatus `gorm:"size:20;not null" json:"status"`
	DeliveryDate    time.Time          `gorm:"not null" json:"delivery_date"`
	DriverName      string             `gorm:"size:100" json:"driver_name"`
	VehicleNumber   string             `gorm:"size:30" json:"vehicle_number"`
	RecipientName   string             `gorm:"size:100" json:"recipient_name"`
	DeliveryAddress string             `gorm:"type:text" json:"delivery_address"`
	Notes           string             `gorm:"type:text" json:"notes"`
	CreatedBy       *int               `json:"created_by"`
	Items           []DeliveryNoteItem `gorm:"foreignKey:DeliveryNoteId" json:"items"`
	CreatedAt       time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

type DeliveryNoteItem struct {
	ID             int `gorm:"primary_key" json:"id"`
	DeliveryNoteId int `gorm:"index;not null" json:"delivery_note_id"`
	OrderItemId    int `gorm:"index;not null" json:"order_item_id"`
	ProductId      int `gorm:"not null" json:"product_id"`
	Quantity       int `gorm:"not null" json:"quantity"`
}
